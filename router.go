package filegate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gogogo1024/filegate/protocol"
	"github.com/gogogo1024/filegate/transfer"
)

// Handler serves one decoded REQUEST frame, writing its response frames to w.
// The returned error is the request outcome; see transfer.Service.
type Handler func(ctx context.Context, w io.Writer, req *protocol.Response) error

// Router maps commands to handlers.
// It is safe for concurrent use.
type Router struct {
	mu       sync.RWMutex
	handlers map[protocol.Command]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[protocol.Command]Handler)}
}

func (r *Router) Register(cmd protocol.Command, h Handler) {
	r.mu.Lock()
	r.handlers[cmd] = h
	r.mu.Unlock()
}

// Dispatch runs the handler for req. Frames that are not requests and
// commands without a handler are answered with an ERROR response.
func (r *Router) Dispatch(ctx context.Context, w io.Writer, req *protocol.Response) error {
	cmd := req.Header.Command
	if req.Header.MessageType != protocol.TypeRequest {
		err := fmt.Errorf("%w: %s", protocol.ErrUnexpectedMessageType, req.Header.MessageType)
		msg := fmt.Sprintf("Unexpected message type: %d", uint8(req.Header.MessageType))
		return errors.Join(err, transfer.SendError(w, cmd, protocol.ErrUnexpectedMessageType, msg))
	}

	r.mu.RLock()
	h := r.handlers[cmd]
	r.mu.RUnlock()
	if h == nil {
		err := fmt.Errorf("%w: %d", protocol.ErrInvalidCommand, uint8(cmd))
		msg := fmt.Sprintf("Invalid command: %d", uint8(cmd))
		return errors.Join(err, transfer.SendError(w, cmd, protocol.ErrInvalidCommand, msg))
	}
	return h(ctx, w, req)
}

// PayloadHandler adapts a payload-only function, such as the methods of
// transfer.Service, to a Handler.
func PayloadHandler(fn func(context.Context, io.Writer, []byte) error) Handler {
	return func(ctx context.Context, w io.Writer, req *protocol.Response) error {
		return fn(ctx, w, req.Payload)
	}
}
