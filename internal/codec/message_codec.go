package codec

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gogogo1024/filegate/protocol"

	"github.com/cloudwego/kitex/pkg/remote"
)

// Tags read by Encode and filled in by Decode.
const (
	TagCommand     = "filegate.command"
	TagMessageType = "filegate.message_type"
	TagChunkIndex  = "filegate.chunk_index"
	TagStatus      = "filegate.status"
	TagErrorCode   = "filegate.error_code"
)

// MessageCodec carries kitex messages as single file-protocol frames.
// The kitex method selects the command through protocol.MapMethodToCommand.
type MessageCodec struct{}

func (c *MessageCodec) Name() string { return "filegate" }

func (c *MessageCodec) Encode(
	ctx context.Context,
	msg remote.Message,
	out remote.ByteBuffer,
) error {
	inv := msg.RPCInfo().Invocation()
	cmd, err := protocol.MapMethodToCommand(inv.ServiceName() + "." + inv.MethodName())
	if err != nil {
		return err
	}

	payload, err := payloadOf(msg.Data())
	if err != nil {
		return err
	}

	m, err := protocol.EncodePayload(headerFromTags(cmd, msg.Tags()), payload)
	if err != nil {
		return err
	}
	defer m.Destroy()

	if _, err := out.WriteBinary(m.Data); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrSendFailed, err)
	}
	return nil
}

// Decode consumes exactly one frame from in. An ERROR response is returned
// as *protocol.RemoteError after the tags have been filled in.
func (c *MessageCodec) Decode(
	ctx context.Context,
	msg remote.Message,
	in remote.ByteBuffer,
) error {
	head, err := in.Peek(protocol.HeaderSize)
	if err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrReceiveFailed, err)
	}
	n, _, err := protocol.FrameLen(head)
	if err != nil {
		return err
	}
	if in.ReadableLen() < n {
		return fmt.Errorf("%w: incomplete frame: need %d bytes, have %d", protocol.ErrInvalidDataSize, n, in.ReadableLen())
	}
	frame, err := in.Next(n)
	if err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrReceiveFailed, err)
	}

	resp, err := protocol.Decode(frame)
	if err != nil {
		return err
	}

	// Best-effort: populate msg.Data() when it's a pointer type.
	switch d := msg.Data().(type) {
	case *[]byte:
		if d != nil {
			*d = resp.Payload
		}
	case *string:
		if d != nil {
			*d = protocol.TrimCString(resp.Payload)
		}
	case *interface{}:
		if d != nil {
			*d = resp.Payload
		}
	}
	msg.SetPayloadLen(len(resp.Payload))

	if tags := msg.Tags(); tags != nil {
		putTags(tags, resp.Header)
	}
	if resp.Failed() {
		return protocol.RemoteErrorFrom(resp)
	}
	return nil
}

// payloadOf accepts raw bytes or a file name, which is sent NUL-terminated.
func payloadOf(data interface{}) ([]byte, error) {
	switch v := data.(type) {
	case []byte:
		return v, nil
	case *[]byte:
		if v != nil {
			return *v, nil
		}
		return nil, nil
	case string:
		return protocol.CString(v), nil
	case *string:
		if v != nil {
			return protocol.CString(*v), nil
		}
		return nil, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported kitex message data type: %T", data)
}

// headerFromTags builds a REQUEST header unless the tags say otherwise.
func headerFromTags(cmd protocol.Command, tags map[string]interface{}) protocol.Header {
	h := protocol.HeaderInit
	h.MessageType = protocol.TypeRequest
	h.Command = cmd
	if tags == nil {
		return h
	}
	if v, ok := parseUint(tags[TagMessageType], 8); ok {
		h.MessageType = protocol.MessageType(v)
	}
	if v, ok := parseUint(tags[TagChunkIndex], 32); ok {
		h.ChunkIndex = uint32(v)
	}
	if v, ok := parseUint(tags[TagStatus], 8); ok {
		h.Status = protocol.Status(v)
	}
	if v, ok := parseUint(tags[TagErrorCode], 8); ok {
		h.ErrorCode = protocol.ErrorCode(v)
	}
	return h
}

// putTags preserves protocol metadata for upper layers. The error code is
// stored as a plain uint8; ErrorCode would print through its Error method.
func putTags(tags map[string]interface{}, h protocol.Header) {
	tags[TagCommand] = h.Command
	tags[TagMessageType] = h.MessageType
	tags[TagChunkIndex] = h.ChunkIndex
	tags[TagStatus] = h.Status
	tags[TagErrorCode] = uint8(h.ErrorCode)
}

func parseUint(v any, bits int) (uint64, bool) {
	var u uint64
	switch x := v.(type) {
	case protocol.MessageType:
		u = uint64(x)
	case protocol.Status:
		u = uint64(x)
	case protocol.ErrorCode:
		u = uint64(x)
	case uint8:
		u = uint64(x)
	case uint16:
		u = uint64(x)
	case uint32:
		u = uint64(x)
	case uint64:
		u = x
	case int:
		if x < 0 {
			return 0, false
		}
		u = uint64(x)
	case int64:
		if x < 0 {
			return 0, false
		}
		u = uint64(x)
	case string:
		// Accept "0x.." or decimal.
		p, err := strconv.ParseUint(x, 0, bits)
		if err != nil {
			return 0, false
		}
		return p, true
	default:
		return 0, false
	}
	if bits < 64 && u >= 1<<bits {
		return 0, false
	}
	return u, true
}
