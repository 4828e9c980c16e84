package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("foobar")
	in := Header{
		MessageType: TypeRequest,
		Command:     CmdRequestMetadata,
		PayloadSize: uint32(len(payload)),
		ChunkIndex:  7,
		Status:      StatusNotSet,
		ErrorCode:   ErrorCodeNotSet,
	}

	msg, err := Encode(in, payload)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if msg.Len() != HeaderSize+len(payload) {
		t.Fatalf("Len=%d, want %d", msg.Len(), HeaderSize+len(payload))
	}

	out, err := Decode(msg.Data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if out.Header != in {
		t.Fatalf("Header mismatch: got %+v, want %+v", out.Header, in)
	}
	if !bytes.Equal(out.Payload, payload) {
		t.Fatalf("Payload mismatch: got %q, want %q", out.Payload, payload)
	}
}

func TestEncodeWireLayout(t *testing.T) {
	h := Header{
		MessageType: TypeResponseChunk,
		Command:     CmdRequestFile,
		PayloadSize: 3,
		ChunkIndex:  0x01020304,
		Status:      StatusOK,
		ErrorCode:   ErrorCodeNotSet,
	}
	msg, err := Encode(h, []byte{0xAA, 0xBB, 0xCC})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	want := []byte{
		3, 1,
		0x00, 0x00, 0x00, 0x03,
		0x01, 0x02, 0x03, 0x04,
		0, 255,
		0xAA, 0xBB, 0xCC,
	}
	if !bytes.Equal(msg.Data, want) {
		t.Fatalf("wire bytes:\n got %v\nwant %v", msg.Data, want)
	}
}

func TestEncodePayloadSizeBoundary(t *testing.T) {
	payload := make([]byte, MaxPayloadSize+1)

	h := Header{MessageType: TypeResponseChunk, PayloadSize: MaxPayloadSize}
	msg, err := Encode(h, payload)
	if err != nil {
		t.Fatalf("Encode at limit: %v", err)
	}
	if msg.Len() != MaxMessageSize {
		t.Fatalf("Len=%d, want %d", msg.Len(), MaxMessageSize)
	}

	h.PayloadSize = MaxPayloadSize + 1
	if _, err := Encode(h, payload); !errors.Is(err, ErrMaxPayloadSizeExceeded) {
		t.Fatalf("expected ErrMaxPayloadSizeExceeded, got %v", err)
	}
}

func TestEncodeRejectsMissingPayload(t *testing.T) {
	_, err := Encode(Header{PayloadSize: 4}, []byte{1, 2})
	if !errors.Is(err, ErrInvalidDataSize) {
		t.Fatalf("expected ErrInvalidDataSize, got %v", err)
	}
}

func TestEncodePayloadSetsSize(t *testing.T) {
	msg, err := EncodePayload(Header{MessageType: TypeRequest}, []byte("abc"))
	if err != nil {
		t.Fatalf("EncodePayload error: %v", err)
	}
	if got := binary.BigEndian.Uint32(msg.Data[2:6]); got != 3 {
		t.Fatalf("payload_size=%d, want 3", got)
	}

	if _, err := EncodePayload(Header{}, make([]byte, MaxPayloadSize+1)); !errors.Is(err, ErrMaxPayloadSizeExceeded) {
		t.Fatalf("expected ErrMaxPayloadSizeExceeded, got %v", err)
	}
}

func TestDecodeShortHeader(t *testing.T) {
	for _, n := range []int{0, 1, HeaderSize - 1} {
		if _, err := Decode(make([]byte, n)); !errors.Is(err, ErrInvalidDataSize) {
			t.Fatalf("len=%d: expected ErrInvalidDataSize, got %v", n, err)
		}
	}
}

func TestDecodeTruncatedPayload(t *testing.T) {
	msg, err := Encode(Header{MessageType: TypeResponse, PayloadSize: 5}, []byte("hello"))
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	_, err = Decode(msg.Data[:len(msg.Data)-1])
	if !errors.Is(err, ErrInvalidDataSize) {
		t.Fatalf("expected ErrInvalidDataSize, got %v", err)
	}
	if CodeOf(err) != ErrInvalidDataSize {
		t.Fatalf("CodeOf=%v, want %v", CodeOf(err), ErrInvalidDataSize)
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	msg, err := Encode(Header{MessageType: TypeResponseLastChunk}, nil)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	r, err := Decode(msg.Data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if r.Payload != nil {
		t.Fatalf("expected nil payload, got %v", r.Payload)
	}
}

func TestDecodeCopiesPayload(t *testing.T) {
	msg, _ := Encode(Header{PayloadSize: 3}, []byte("abc"))
	r, err := Decode(msg.Data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	msg.Data[HeaderSize] = 'z'
	if string(r.Payload) != "abc" {
		t.Fatalf("payload aliases input buffer: %q", r.Payload)
	}
}

func TestExtractHeaderIgnoresPayload(t *testing.T) {
	msg, _ := Encode(Header{MessageType: TypeResponseChunk, PayloadSize: 4, ChunkIndex: 9}, []byte("data"))
	h, err := ExtractHeader(msg.Data[:HeaderSize])
	if err != nil {
		t.Fatalf("ExtractHeader error: %v", err)
	}
	if h.MessageType != TypeResponseChunk || h.PayloadSize != 4 || h.ChunkIndex != 9 {
		t.Fatalf("unexpected header %+v", h)
	}
	if _, err := PayloadOf(msg.Data[:HeaderSize], h); !errors.Is(err, ErrInvalidDataSize) {
		t.Fatalf("expected ErrInvalidDataSize from PayloadOf, got %v", err)
	}
}

func TestFrameLen(t *testing.T) {
	msg, _ := Encode(Header{PayloadSize: 5}, []byte("hello"))

	if _, ok, err := FrameLen(msg.Data[:HeaderSize-1]); ok || err != nil {
		t.Fatalf("short header: ok=%v err=%v", ok, err)
	}
	if n, ok, err := FrameLen(msg.Data[:HeaderSize+2]); ok || err != nil || n != HeaderSize+5 {
		t.Fatalf("partial payload: n=%d ok=%v err=%v", n, ok, err)
	}
	if n, ok, err := FrameLen(append(msg.Data, 0xFF)); !ok || err != nil || n != HeaderSize+5 {
		t.Fatalf("full frame: n=%d ok=%v err=%v", n, ok, err)
	}

	bad := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(bad[2:6], MaxPayloadSize+1)
	if _, _, err := FrameLen(bad); !errors.Is(err, ErrMaxPayloadSizeExceeded) {
		t.Fatalf("expected ErrMaxPayloadSizeExceeded, got %v", err)
	}
}

func TestTotalChunks(t *testing.T) {
	cases := map[int64]int{
		0:    1,
		1:    1,
		1024: 1,
		1025: 2,
		2048: 2,
		2049: 3,
	}
	for size, want := range cases {
		if got := TotalChunks(size); got != want {
			t.Fatalf("TotalChunks(%d)=%d, want %d", size, got, want)
		}
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	msg, _ := Encode(Header{PayloadSize: 1}, []byte{1})
	msg.Destroy()
	msg.Destroy()
	if msg.Data != nil || msg.Len() != 0 {
		t.Fatalf("message not released")
	}

	r := &Response{Header: Header{Status: StatusOK, ErrorCode: ErrFileNotFound}, Payload: []byte("x")}
	r.Destroy()
	r.Destroy()
	if r.Payload != nil || r.Header != HeaderInit {
		t.Fatalf("response not reset: %+v", r)
	}

	var nilMsg *Message
	nilMsg.Destroy()
	var nilResp *Response
	nilResp.Destroy()
}

func TestCString(t *testing.T) {
	b := CString("Size: 35")
	if len(b) != 9 || b[8] != 0 {
		t.Fatalf("CString=%v", b)
	}
	if got := TrimCString(b); got != "Size: 35" {
		t.Fatalf("TrimCString=%q", got)
	}
	if got := TrimCString([]byte("no-nul")); got != "no-nul" {
		t.Fatalf("TrimCString without NUL=%q", got)
	}
}

func TestRemoteErrorUnwrapsToCode(t *testing.T) {
	r := &Response{
		Header:  Header{MessageType: TypeResponse, Status: StatusError, ErrorCode: ErrFileNotFound},
		Payload: CString("File not found: a.txt"),
	}
	err := error(RemoteErrorFrom(r))
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected errors.Is(err, ErrFileNotFound), got %v", err)
	}
	if CodeOf(err) != ErrFileNotFound {
		t.Fatalf("CodeOf=%v", CodeOf(err))
	}
	var re *RemoteError
	if !errors.As(err, &re) || re.Message != "File not found: a.txt" {
		t.Fatalf("unexpected remote error %#v", re)
	}
}

func TestRemoteErrorText(t *testing.T) {
	err := &RemoteError{Code: ErrFileNotFound, Message: "File not found: a.txt"}
	if got, want := err.Error(), "remote error 2 (file not found): File not found: a.txt"; got != want {
		t.Fatalf("Error()=%q, want %q", got, want)
	}
	bare := &RemoteError{Code: ErrInvalidCommand}
	if got, want := bare.Error(), "remote error 9 (invalid command)"; got != want {
		t.Fatalf("Error()=%q, want %q", got, want)
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != ErrorCodeNotSet {
		t.Fatalf("CodeOf=%v, want not set", got)
	}
	if got := CodeOf(nil); got != ErrorCodeNotSet {
		t.Fatalf("CodeOf(nil)=%v, want not set", got)
	}
}
