package protocol

import (
	"errors"
	"fmt"
)

// ErrorCode is the error taxonomy shared by both ends of a connection.
// The values below 10 travel on the wire in the error_code header field;
// ErrorCode also implements error so local failures can wrap it.
type ErrorCode uint8

const (
	ErrUnknownCommand         ErrorCode = 1
	ErrFileNotFound           ErrorCode = 2
	ErrMaxPayloadSizeExceeded ErrorCode = 3
	ErrMemoryAllocationFailed ErrorCode = 4
	ErrInvalidDataSize        ErrorCode = 5
	ErrSendFailed             ErrorCode = 6
	ErrReceiveFailed          ErrorCode = 7
	ErrFileOpenFailed         ErrorCode = 8
	ErrInvalidCommand         ErrorCode = 9
	ErrUnexpectedMessageType  ErrorCode = 10
	// ErrChunkOutOfOrder is raised by the client only; servers never send it.
	ErrChunkOutOfOrder ErrorCode = 11

	// ErrorCodeNotSet marks the field as unused (success frames, requests).
	ErrorCodeNotSet ErrorCode = 255
)

var errorCodeNames = map[ErrorCode]string{
	ErrUnknownCommand:         "unknown command",
	ErrFileNotFound:           "file not found",
	ErrMaxPayloadSizeExceeded: "max payload size exceeded",
	ErrMemoryAllocationFailed: "memory allocation failed",
	ErrInvalidDataSize:        "invalid data size",
	ErrSendFailed:             "send failed",
	ErrReceiveFailed:          "receive failed",
	ErrFileOpenFailed:         "file open failed",
	ErrInvalidCommand:         "invalid command",
	ErrUnexpectedMessageType:  "unexpected message type",
	ErrChunkOutOfOrder:        "chunk out of order",
	ErrorCodeNotSet:           "not set",
}

func (c ErrorCode) String() string {
	if s, ok := errorCodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("error code %d", uint8(c))
}

func (c ErrorCode) Error() string {
	return "filegate: " + c.String()
}

// CodeOf returns the ErrorCode wrapped by err, or ErrorCodeNotSet.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrorCodeNotSet
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return code
	}
	return ErrorCodeNotSet
}

// RemoteError is an ERROR RESPONSE received from the peer.
type RemoteError struct {
	Code    ErrorCode
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote error %d (%s)", uint8(e.Code), e.Code.String())
	}
	return fmt.Sprintf("remote error %d (%s): %s", uint8(e.Code), e.Code.String(), e.Message)
}

func (e *RemoteError) Unwrap() error { return e.Code }

// RemoteErrorFrom builds a RemoteError from a decoded ERROR RESPONSE.
func RemoteErrorFrom(r *Response) *RemoteError {
	return &RemoteError{Code: r.Header.ErrorCode, Message: TrimCString(r.Payload)}
}
