package filegate

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gogogo1024/filegate/protocol"
	"github.com/gogogo1024/filegate/transfer"
)

func TestRunConnIdleWithPartialFrame(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	cc := NewConnContext()
	done := make(chan error, 1)
	go func() {
		done <- runConn(context.Background(), server, NewRouter(), connOptions{
			idleTimeout: 50 * time.Millisecond,
			cc:          cc,
		})
	}()

	// Header plus part of the name, then silence.
	frame := requestFrame(t, protocol.CmdRequestMetadata, "report.pdf")
	if _, err := client.Write(frame[:protocol.HeaderSize+3]); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on idle timeout, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("handler did not give up on an idle connection")
	}
	if got := cc.Buffered(); got != 0 {
		t.Fatalf("expected buffered bytes released, got %d", got)
	}
	if got := cc.Served(); got != 0 {
		t.Fatalf("partial frame must not count as served, got %d", got)
	}
}

func TestRunConnIdleAfterAnsweredRequest(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	r := NewRouter()
	registerFiles(t, r, map[string][]byte{"a.txt": []byte("abc")})

	cc := NewConnContext()
	done := make(chan error, 1)
	go func() {
		done <- runConn(context.Background(), server, r, connOptions{
			idleTimeout: 100 * time.Millisecond,
			cc:          cc,
		})
	}()

	if _, err := client.Write(requestFrame(t, protocol.CmdRequestMetadata, "a.txt")); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp := readResponse(t, transfer.NewFrameReader(client))
	if got := resp.Text(); got != "Size: 3" {
		t.Fatalf("metadata=%q", got)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on idle timeout, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("handler did not time out after the request was answered")
	}
	if cc.Served() != 1 || cc.Buffered() != 0 {
		t.Fatalf("served=%d buffered=%d", cc.Served(), cc.Buffered())
	}
}
