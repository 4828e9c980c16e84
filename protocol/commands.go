package protocol

import "fmt"

// Protocol command IDs.
const (
	CmdRequestFile     Command = 0x01
	CmdRequestMetadata Command = 0x02
)

// Command selects the operation a REQUEST frame asks for.
type Command uint8

func (c Command) String() string {
	switch c {
	case CmdRequestFile:
		return "REQUEST_FILE"
	case CmdRequestMetadata:
		return "REQUEST_METADATA"
	default:
		return fmt.Sprintf("Command(%d)", uint8(c))
	}
}

// MessageType classifies a frame.
type MessageType uint8

const (
	TypeRequest           MessageType = 1
	TypeResponse          MessageType = 2
	TypeResponseChunk     MessageType = 3
	TypeResponseLastChunk MessageType = 4
)

func (t MessageType) String() string {
	switch t {
	case TypeRequest:
		return "REQUEST"
	case TypeResponse:
		return "RESPONSE"
	case TypeResponseChunk:
		return "RESPONSE_CHUNK"
	case TypeResponseLastChunk:
		return "RESPONSE_LAST_CHUNK"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}

// IsChunk reports whether t is part of a chunked content transfer.
func (t MessageType) IsChunk() bool {
	return t == TypeResponseChunk || t == TypeResponseLastChunk
}

// Status is the outcome carried by response frames.
type Status uint8

const (
	StatusOK     Status = 0
	StatusError  Status = 1
	StatusNotSet Status = 255
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	case StatusNotSet:
		return "NOT_SET"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}
