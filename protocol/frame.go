package protocol

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the fixed header length in bytes.
	HeaderSize = 12
	// MaxPayloadSize is the maximum payload carried by a single frame.
	MaxPayloadSize = 1024
	// MaxMessageSize is the largest frame on the wire.
	MaxMessageSize = HeaderSize + MaxPayloadSize
)

// Field offsets within the header. Multi-byte fields are big-endian.
const (
	offMessageType = 0
	offCommand     = 1
	offPayloadSize = 2
	offChunkIndex  = 6
	offStatus      = 10
	offErrorCode   = 11
)

// Encode serializes h followed by the first h.PayloadSize bytes of payload.
func Encode(h Header, payload []byte) (*Message, error) {
	if h.PayloadSize > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload size %d > %d", ErrMaxPayloadSizeExceeded, h.PayloadSize, MaxPayloadSize)
	}
	if uint32(len(payload)) < h.PayloadSize {
		return nil, fmt.Errorf("%w: header declares %d payload bytes, have %d", ErrInvalidDataSize, h.PayloadSize, len(payload))
	}

	buf := make([]byte, HeaderSize+int(h.PayloadSize))
	putHeader(buf, h)
	copy(buf[HeaderSize:], payload[:h.PayloadSize])
	return &Message{Data: buf}, nil
}

// EncodePayload is Encode with PayloadSize taken from len(payload).
func EncodePayload(h Header, payload []byte) (*Message, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload size %d > %d", ErrMaxPayloadSizeExceeded, len(payload), MaxPayloadSize)
	}
	h.PayloadSize = uint32(len(payload))
	return Encode(h, payload)
}

// Decode parses one frame from data into a Response owning a copy of the payload.
// Status and error_code are returned as-is; interpreting them is up to the caller.
func Decode(data []byte) (*Response, error) {
	h, err := ExtractHeader(data)
	if err != nil {
		return nil, err
	}

	r := &Response{Header: h}
	if h.PayloadSize == 0 {
		return r, nil
	}
	end := HeaderSize + int(h.PayloadSize)
	if len(data) < end {
		return nil, fmt.Errorf("%w: frame needs %d bytes, have %d", ErrInvalidDataSize, end, len(data))
	}
	r.Payload = make([]byte, h.PayloadSize)
	copy(r.Payload, data[HeaderSize:end])
	return r, nil
}

// ExtractHeader decodes only the header of data.
func ExtractHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes is shorter than the %d byte header", ErrInvalidDataSize, len(data), HeaderSize)
	}
	return Header{
		MessageType: MessageType(data[offMessageType]),
		Command:     Command(data[offCommand]),
		PayloadSize: binary.BigEndian.Uint32(data[offPayloadSize : offPayloadSize+4]),
		ChunkIndex:  binary.BigEndian.Uint32(data[offChunkIndex : offChunkIndex+4]),
		Status:      Status(data[offStatus]),
		ErrorCode:   ErrorCode(data[offErrorCode]),
	}, nil
}

// PayloadOf returns the payload bytes of a complete raw frame without copying.
func PayloadOf(frame []byte, h Header) ([]byte, error) {
	end := HeaderSize + int(h.PayloadSize)
	if len(frame) < end {
		return nil, fmt.Errorf("%w: frame needs %d bytes, have %d", ErrInvalidDataSize, end, len(frame))
	}
	return frame[HeaderSize:end], nil
}

// FrameLen reports the total length of the frame at the start of buf.
// ok is false until the whole frame is buffered. A header declaring more
// than MaxPayloadSize is rejected so stream readers never buffer past one frame.
func FrameLen(buf []byte) (n int, ok bool, err error) {
	if len(buf) < HeaderSize {
		return 0, false, nil
	}
	size := binary.BigEndian.Uint32(buf[offPayloadSize : offPayloadSize+4])
	if size > MaxPayloadSize {
		return 0, false, fmt.Errorf("%w: declared payload %d > %d", ErrMaxPayloadSizeExceeded, size, MaxPayloadSize)
	}
	n = HeaderSize + int(size)
	return n, len(buf) >= n, nil
}

// TotalChunks returns how many chunks a file of size bytes is sent in.
// An empty file still takes one (empty) last chunk.
func TotalChunks(size int64) int {
	if size <= 0 {
		return 1
	}
	return int((size + MaxPayloadSize - 1) / MaxPayloadSize)
}

func putHeader(buf []byte, h Header) {
	buf[offMessageType] = byte(h.MessageType)
	buf[offCommand] = byte(h.Command)
	binary.BigEndian.PutUint32(buf[offPayloadSize:offPayloadSize+4], h.PayloadSize)
	binary.BigEndian.PutUint32(buf[offChunkIndex:offChunkIndex+4], h.ChunkIndex)
	buf[offStatus] = byte(h.Status)
	buf[offErrorCode] = byte(h.ErrorCode)
}
