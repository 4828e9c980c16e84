package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/gogogo1024/filegate"
	"github.com/gogogo1024/filegate/protocol"
	"github.com/gogogo1024/filegate/transfer"
)

func request(cmd protocol.Command, name string) *protocol.Response {
	payload := protocol.CString(name)
	return &protocol.Response{
		Header: protocol.Header{
			MessageType: protocol.TypeRequest,
			Command:     cmd,
			PayloadSize: uint32(len(payload)),
			Status:      protocol.StatusNotSet,
			ErrorCode:   protocol.ErrorCodeNotSet,
		},
		Payload: payload,
	}
}

func TestRegisterHandlersServesStore(t *testing.T) {
	store := transfer.NewMemStore()
	_ = store.Put("notes.txt", []byte("twelve bytes"))

	r := filegate.NewRouter()
	RegisterHandlers(r, transfer.NewService(store))

	var wire bytes.Buffer
	if err := r.Dispatch(context.Background(), &wire, request(protocol.CmdRequestMetadata, "notes.txt")); err != nil {
		t.Fatalf("Dispatch metadata: %v", err)
	}
	resp, err := protocol.Decode(wire.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := resp.Text(); got != "Size: 12" {
		t.Fatalf("metadata: got %q", got)
	}

	wire.Reset()
	if err := r.Dispatch(context.Background(), &wire, request(protocol.CmdRequestFile, "notes.txt")); err != nil {
		t.Fatalf("Dispatch contents: %v", err)
	}
	resp, err = protocol.Decode(wire.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if resp.Header.MessageType != protocol.TypeResponseLastChunk || string(resp.Payload) != "twelve bytes" {
		t.Fatalf("contents: unexpected frame %+v %q", resp.Header, resp.Payload)
	}
}

func TestRegisterHandlersReportsMissingFile(t *testing.T) {
	r := filegate.NewRouter()
	RegisterHandlers(r, transfer.NewService(transfer.NewMemStore()))

	var wire bytes.Buffer
	err := r.Dispatch(context.Background(), &wire, request(protocol.CmdRequestFile, "gone"))
	if !errors.Is(err, protocol.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	resp, derr := protocol.Decode(wire.Bytes())
	if derr != nil {
		t.Fatalf("Decode: %v", derr)
	}
	if resp.Header.ErrorCode != protocol.ErrFileNotFound {
		t.Fatalf("unexpected header %+v", resp.Header)
	}
}

func TestRegisterMethodsIsIdempotent(t *testing.T) {
	RegisterMethods()
	RegisterMethods()

	cmd, err := protocol.MapMethodToCommand("FileService.Contents")
	if err != nil || cmd != protocol.CmdRequestFile {
		t.Fatalf("FileService.Contents -> %s, %v", cmd, err)
	}
	if m, ok := protocol.MethodForCommand(protocol.CmdRequestMetadata); !ok || m != MetadataMethod.FullName() {
		t.Fatalf("reverse lookup: %q, %v", m, ok)
	}
}
