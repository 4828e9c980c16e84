package protocol

import "bytes"

// Header is the decoded form of the fixed 12-byte frame header.
type Header struct {
	MessageType MessageType
	Command     Command
	PayloadSize uint32
	ChunkIndex  uint32
	Status      Status
	ErrorCode   ErrorCode
}

// HeaderInit is the zero state of a header: nothing typed, status and error unset.
var HeaderInit = Header{Status: StatusNotSet, ErrorCode: ErrorCodeNotSet}

// Message owns one encoded frame ready to be written to a transport.
type Message struct {
	Data []byte
}

// Len returns the encoded frame size in bytes.
func (m *Message) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Data)
}

// Destroy releases the frame buffer. Calling it again is a no-op.
func (m *Message) Destroy() {
	if m == nil {
		return
	}
	m.Data = nil
}

// Response is a decoded frame: header plus an owned copy of its payload.
// Payload is nil when the header declares no payload.
type Response struct {
	Header  Header
	Payload []byte
}

// Destroy drops the payload and resets the header. Calling it again is a no-op.
func (r *Response) Destroy() {
	if r == nil {
		return
	}
	r.Payload = nil
	r.Header = HeaderInit
}

// Failed reports whether r carries an ERROR status.
func (r *Response) Failed() bool {
	return r != nil && r.Header.Status == StatusError
}

// Text returns the payload as a string without its trailing NUL.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return TrimCString(r.Payload)
}

// CString returns s as NUL-terminated bytes, the form used for
// file names and human-readable payloads.
func CString(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

// TrimCString returns b up to (not including) its first NUL.
func TrimCString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
