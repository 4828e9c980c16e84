package transfer

import (
	"fmt"

	"github.com/gogogo1024/filegate/protocol"
)

type assemblerState uint8

const (
	awaitingChunk assemblerState = iota
	assembled
	failed
)

// Assembler rebuilds one chunked content response on the client.
//
// It relies on the transport delivering frames in order; chunk indexes must
// run 0, 1, 2, ... and any gap or repeat fails the transfer with
// protocol.ErrChunkOutOfOrder. Nothing is returned from a failed transfer.
type Assembler struct {
	state   assemblerState
	buf     []byte
	next    uint32
	maxSize int
	result  *protocol.Response
	err     error
}

// NewAssembler returns an Assembler that fails once the reassembled payload
// would exceed maxSize bytes. maxSize <= 0 means no limit.
func NewAssembler(maxSize int) *Assembler {
	return &Assembler{maxSize: maxSize}
}

// Feed consumes one complete raw frame. It returns true once the last chunk
// has been applied; Result then holds the reassembled response.
func (a *Assembler) Feed(frame []byte) (bool, error) {
	switch a.state {
	case failed:
		return false, a.err
	case assembled:
		return true, fmt.Errorf("%w: frame after last chunk", protocol.ErrUnexpectedMessageType)
	}

	h, err := protocol.ExtractHeader(frame)
	if err != nil {
		return false, a.abort(err)
	}

	switch {
	case h.MessageType.IsChunk():
		return a.applyChunk(frame, h)
	case h.MessageType == protocol.TypeResponse && h.Status == protocol.StatusError:
		r, err := protocol.Decode(frame)
		if err != nil {
			return false, a.abort(err)
		}
		return false, a.abort(protocol.RemoteErrorFrom(r))
	default:
		return false, a.abort(fmt.Errorf("%w: %s during content transfer", protocol.ErrUnexpectedMessageType, h.MessageType))
	}
}

func (a *Assembler) applyChunk(frame []byte, h protocol.Header) (bool, error) {
	if h.ChunkIndex != a.next {
		return false, a.abort(fmt.Errorf("%w: got chunk %d, want %d", protocol.ErrChunkOutOfOrder, h.ChunkIndex, a.next))
	}
	payload, err := protocol.PayloadOf(frame, h)
	if err != nil {
		return false, a.abort(err)
	}
	if a.maxSize > 0 && len(a.buf)+len(payload) > a.maxSize {
		return false, a.abort(fmt.Errorf("%w: content exceeds %d bytes", protocol.ErrMaxPayloadSizeExceeded, a.maxSize))
	}
	a.buf = append(a.buf, payload...)
	a.next++

	if h.MessageType != protocol.TypeResponseLastChunk {
		return false, nil
	}

	a.state = assembled
	a.result = &protocol.Response{
		Header: protocol.Header{
			MessageType: protocol.TypeResponse,
			Command:     protocol.CmdRequestFile,
			PayloadSize: uint32(len(a.buf)),
			ChunkIndex:  h.ChunkIndex,
			Status:      protocol.StatusOK,
			ErrorCode:   protocol.ErrorCodeNotSet,
		},
		Payload: a.buf,
	}
	a.buf = nil
	return true, nil
}

func (a *Assembler) abort(err error) error {
	a.state = failed
	a.buf = nil
	a.err = err
	return err
}

// Result returns the reassembled response, or nil before the last chunk.
func (a *Assembler) Result() *protocol.Response {
	return a.result
}

// Received returns the number of chunks applied so far.
func (a *Assembler) Received() int {
	return int(a.next)
}
