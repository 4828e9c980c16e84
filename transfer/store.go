// Package transfer implements the file-transfer semantics on top of the
// protocol package: the server-side request handlers and chunk emitter,
// the client-side chunk assembler, and the file stores they read from.
package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gogogo1024/filegate/protocol"
)

// MaxNameLen bounds file names accepted from the wire.
const MaxNameLen = 255

// File is an open, readable file of known size.
type File interface {
	io.ReadCloser
	Size() int64
}

// FileStore is the filesystem collaborator the request handlers serve from.
// Implementations return errors wrapping protocol.ErrFileNotFound when the
// name does not exist and protocol.ErrFileOpenFailed for anything else.
type FileStore interface {
	Stat(ctx context.Context, name string) (int64, error)
	Open(ctx context.Context, name string) (File, error)
}

// ValidateName rejects names that are empty, too long, or that are paths
// rather than plain file names.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty file name", protocol.ErrFileOpenFailed)
	}
	if len(name) > MaxNameLen {
		return fmt.Errorf("%w: file name longer than %d bytes", protocol.ErrFileOpenFailed, MaxNameLen)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: %q is not a plain file name", protocol.ErrFileOpenFailed, name)
	}
	return nil
}

type bytesFile struct {
	r    *bytes.Reader
	size int64
}

func newBytesFile(data []byte) *bytesFile {
	return &bytesFile{r: bytes.NewReader(data), size: int64(len(data))}
}

func (f *bytesFile) Read(p []byte) (int, error) { return f.r.Read(p) }
func (f *bytesFile) Close() error               { return nil }
func (f *bytesFile) Size() int64                { return f.size }
