package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/gogogo1024/filegate/protocol"
)

// Service answers REQUEST_METADATA and REQUEST_FILE from a FileStore.
//
// Handlers return the outcome of the request. Application failures
// (missing file, bad name) have already been sent to the peer as an ERROR
// response when they are returned; an error wrapping protocol.ErrSendFailed
// means the connection can no longer be written to.
type Service struct {
	store FileStore
	log   *zap.Logger
}

type ServiceOption func(*Service)

func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(store FileStore, opts ...ServiceOption) *Service {
	s := &Service{store: store, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Metadata replies with "Size: <bytes>" for the file named in payload.
func (s *Service) Metadata(ctx context.Context, w io.Writer, payload []byte) error {
	name := protocol.TrimCString(payload)
	size, err := s.store.Stat(ctx, name)
	if err != nil {
		return s.fail(w, protocol.CmdRequestMetadata, name, err)
	}

	s.log.Debug("metadata", zap.String("file", name), zap.Int64("size", size))
	return SendResponse(w, protocol.CmdRequestMetadata, protocol.CString(fmt.Sprintf("Size: %d", size)))
}

// Contents streams the file named in payload as a chunked response.
func (s *Service) Contents(ctx context.Context, w io.Writer, payload []byte) error {
	name := protocol.TrimCString(payload)
	f, err := s.store.Open(ctx, name)
	if err != nil {
		return s.fail(w, protocol.CmdRequestFile, name, err)
	}
	defer f.Close()

	s.log.Debug("streaming file",
		zap.String("file", name),
		zap.Int64("size", f.Size()),
		zap.Int("chunks", protocol.TotalChunks(f.Size())),
	)
	return EmitChunks(w, f)
}

func (s *Service) fail(w io.Writer, cmd protocol.Command, name string, err error) error {
	code := protocol.CodeOf(err)
	var text string
	switch code {
	case protocol.ErrFileNotFound:
		text = "File not found: " + name
	case protocol.ErrFileOpenFailed:
		text = "Failed to open file: " + name
	default:
		code = protocol.ErrFileOpenFailed
		text = "Failed to open file: " + name
		err = fmt.Errorf("%w: %v", protocol.ErrFileOpenFailed, err)
	}

	if sendErr := SendError(w, cmd, code, text); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return err
}
