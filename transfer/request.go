package transfer

import (
	"bufio"
	"fmt"
	"io"

	"github.com/gogogo1024/filegate/protocol"
)

// FrameSource yields complete raw frames in arrival order.
type FrameSource interface {
	ReadFrame() ([]byte, error)
}

// FrameReader splits a byte stream into frames. The stream keeps ordering
// but not message boundaries, so each frame is read with io.ReadFull.
type FrameReader struct {
	br *bufio.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{br: bufio.NewReaderSize(r, protocol.MaxMessageSize)}
}

// ReadFrame returns the next frame. Any read failure, including the peer
// closing the connection mid-frame, wraps protocol.ErrReceiveFailed.
func (r *FrameReader) ReadFrame() ([]byte, error) {
	var head [protocol.HeaderSize]byte
	if _, err := io.ReadFull(r.br, head[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrReceiveFailed, err)
	}
	n, _, err := protocol.FrameLen(head[:])
	if err != nil {
		return nil, err
	}
	frame := make([]byte, n)
	copy(frame, head[:])
	if _, err := io.ReadFull(r.br, frame[protocol.HeaderSize:]); err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrReceiveFailed, err)
	}
	return frame, nil
}

// SendRequest writes a REQUEST frame for cmd carrying name as a NUL-terminated string.
func SendRequest(w io.Writer, cmd protocol.Command, name string) error {
	msg, err := protocol.EncodePayload(protocol.Header{
		MessageType: protocol.TypeRequest,
		Command:     cmd,
		Status:      protocol.StatusNotSet,
		ErrorCode:   protocol.ErrorCodeNotSet,
	}, protocol.CString(name))
	if err != nil {
		return err
	}
	return WriteMessage(w, msg)
}

// RequestMetadata asks for the metadata of name and returns the RESPONSE.
// An ERROR response is returned as *protocol.RemoteError.
func RequestMetadata(src FrameSource, w io.Writer, name string) (*protocol.Response, error) {
	if err := SendRequest(w, protocol.CmdRequestMetadata, name); err != nil {
		return nil, err
	}
	frame, err := src.ReadFrame()
	if err != nil {
		return nil, err
	}
	r, err := protocol.Decode(frame)
	if err != nil {
		return nil, err
	}
	if r.Header.MessageType != protocol.TypeResponse {
		return nil, fmt.Errorf("%w: %s in reply to metadata request", protocol.ErrUnexpectedMessageType, r.Header.MessageType)
	}
	if r.Failed() {
		return nil, protocol.RemoteErrorFrom(r)
	}
	return r, nil
}

// RequestContents asks for the contents of name and reassembles the chunked
// reply. maxSize bounds the reassembled payload (<= 0 for no limit).
func RequestContents(src FrameSource, w io.Writer, name string, maxSize int) (*protocol.Response, error) {
	if err := SendRequest(w, protocol.CmdRequestFile, name); err != nil {
		return nil, err
	}

	a := NewAssembler(maxSize)
	for {
		frame, err := src.ReadFrame()
		if err != nil {
			return nil, err
		}
		done, err := a.Feed(frame)
		if err != nil {
			return nil, err
		}
		if done {
			return a.Result(), nil
		}
	}
}
