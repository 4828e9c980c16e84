package filegate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/gogogo1024/filegate/protocol"
	"github.com/gogogo1024/filegate/transfer"
)

var (
	errBufferQuota = errors.New("filegate: connection buffer quota exceeded")
	errRateLimited = errors.New("filegate: rate limit exceeded")
)

type connOptions struct {
	idleTimeout  time.Duration
	writeTimeout time.Duration
	cc           *ConnContext
	log          *zap.Logger
}

// HandleConn serves requests on conn until the peer disconnects, the
// connection stays idle for too long, or a response cannot be sent.
func HandleConn(ctx context.Context, conn net.Conn, router *Router) error {
	cfg := defaultServeConfig()
	return handleConn(ctx, conn, router, cfg.idleTimeout, cfg.writeTimeout)
}

func handleConn(ctx context.Context, conn net.Conn, router *Router, idleTimeout, writeTimeout time.Duration) error {
	return runConn(ctx, conn, router, connOptions{
		idleTimeout:  idleTimeout,
		writeTimeout: writeTimeout,
		cc:           NewConnContext(),
		log:          zap.NewNop(),
	})
}

type connHandlerState struct {
	conn connOptions
	c    net.Conn
	w    *connWriter
	buf  []byte
	tmp  []byte
}

func runConn(ctx context.Context, conn net.Conn, router *Router, opts connOptions) error {
	if router == nil {
		return errors.New("filegate: nil router")
	}
	if opts.cc == nil {
		opts.cc = NewConnContext()
	}
	if opts.log == nil {
		opts.log = zap.NewNop()
	}

	state := &connHandlerState{
		conn: opts,
		c:    conn,
		w:    &connWriter{conn: conn, timeout: opts.writeTimeout},
		buf:  make([]byte, 0, 2*protocol.MaxMessageSize),
		tmp:  make([]byte, protocol.MaxMessageSize),
	}
	defer func() { opts.cc.Release(len(state.buf)) }()

	for {
		rerr := readIntoBuffer(state)
		if err := processBufferedFrames(ctx, state, router); err != nil {
			return err
		}
		if rerr == nil {
			continue
		}
		switch {
		case errors.Is(rerr, io.EOF):
			return nil
		case isTimeout(rerr):
			opts.log.Debug("idle timeout", zap.Duration("idle", opts.idleTimeout))
			return nil
		case ctx.Err() != nil:
			return nil
		}
		return rerr
	}
}

func readIntoBuffer(state *connHandlerState) error {
	if d := state.conn.idleTimeout; d > 0 {
		_ = state.c.SetReadDeadline(time.Now().Add(d))
	} else {
		_ = state.c.SetReadDeadline(time.Time{})
	}

	n, err := state.c.Read(state.tmp)
	if n > 0 {
		if !state.conn.cc.Reserve(n) {
			state.conn.cc.Release(n)
			return errBufferQuota
		}
		state.buf = append(state.buf, state.tmp[:n]...)
	}
	return err
}

func processBufferedFrames(ctx context.Context, state *connHandlerState, router *Router) error {
	consumed := 0

	for {
		n, ok, err := protocol.FrameLen(state.buf[consumed:])
		if err != nil {
			// The declared size cannot be trusted, so the stream cannot be resynchronized.
			h, _ := protocol.ExtractHeader(state.buf[consumed:])
			_ = transfer.SendError(state.w, h.Command, protocol.ErrMaxPayloadSizeExceeded, "Payload size exceeds maximum")
			return err
		}
		if !ok {
			break
		}

		if err := handleFrame(ctx, state, router, state.buf[consumed:consumed+n]); err != nil {
			return err
		}
		consumed += n
	}

	if consumed > 0 {
		state.conn.cc.Release(consumed)
		copy(state.buf, state.buf[consumed:])
		state.buf = state.buf[:len(state.buf)-consumed]
	}
	return nil
}

func handleFrame(ctx context.Context, state *connHandlerState, router *Router, frame []byte) error {
	if !state.conn.cc.Allow() {
		return errRateLimited
	}

	req, err := protocol.Decode(frame)
	if err != nil {
		return err
	}
	defer req.Destroy()

	log := state.conn.log.With(zap.Stringer("cmd", req.Header.Command))
	err = router.Dispatch(ctx, state.w, req)
	switch {
	case err == nil:
		log.Debug("request served", zap.String("file", protocol.TrimCString(req.Payload)))
		return nil
	case errors.Is(err, protocol.ErrSendFailed):
		return err
	}
	log.Info("request failed",
		zap.String("file", protocol.TrimCString(req.Payload)),
		zap.Stringer("code", protocol.CodeOf(err)),
		zap.Error(err))
	return nil
}

// connWriter writes whole frames to the connection under a write deadline.
type connWriter struct {
	conn    net.Conn
	timeout time.Duration
}

func (w *connWriter) Write(p []byte) (int, error) {
	if err := writeAll(w.conn, p, w.timeout); err != nil {
		return 0, err
	}
	return len(p), nil
}

// writeAll writes data in full. The write deadline is cleared on return.
func writeAll(conn net.Conn, data []byte, timeout time.Duration) error {
	if timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	defer func() { _ = conn.SetWriteDeadline(time.Time{}) }()

	total := len(data)
	for len(data) > 0 {
		n, err := conn.Write(data)
		if err != nil {
			return fmt.Errorf("wrote %d of %d bytes: %w", total-len(data)+n, total, err)
		}
		data = data[n:]
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
