package transfer

import (
	"fmt"
	"io"

	"github.com/gogogo1024/filegate/protocol"
)

// SendResponse writes a single successful RESPONSE frame for cmd.
func SendResponse(w io.Writer, cmd protocol.Command, payload []byte) error {
	msg, err := protocol.EncodePayload(protocol.Header{
		MessageType: protocol.TypeResponse,
		Command:     cmd,
		Status:      protocol.StatusOK,
		ErrorCode:   protocol.ErrorCodeNotSet,
	}, payload)
	if err != nil {
		return err
	}
	return WriteMessage(w, msg)
}

// SendError writes a RESPONSE frame with status ERROR, the given code and a
// NUL-terminated description. Every server-side failure reaches the client
// through this function.
func SendError(w io.Writer, cmd protocol.Command, code protocol.ErrorCode, text string) error {
	payload := protocol.CString(text)
	if len(payload) > protocol.MaxPayloadSize {
		payload = payload[:protocol.MaxPayloadSize]
		payload[len(payload)-1] = 0
	}
	msg, err := protocol.EncodePayload(protocol.Header{
		MessageType: protocol.TypeResponse,
		Command:     cmd,
		Status:      protocol.StatusError,
		ErrorCode:   code,
	}, payload)
	if err != nil {
		return err
	}
	return WriteMessage(w, msg)
}

// WriteMessage hands msg to w and releases it. A write that transmits fewer
// bytes than the frame is fatal and reported as ErrSendFailed; it is not retried.
func WriteMessage(w io.Writer, msg *protocol.Message) error {
	defer msg.Destroy()

	n, err := w.Write(msg.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrSendFailed, err)
	}
	if n < msg.Len() {
		return fmt.Errorf("%w: sent %d of %d bytes", protocol.ErrSendFailed, n, msg.Len())
	}
	return nil
}
