package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gogogo1024/filegate/protocol"
)

// DirStore serves regular files from a single directory. Lookups go through
// an os.Root, so a name can never resolve outside the directory.
type DirStore struct {
	root *os.Root
}

var _ FileStore = (*DirStore)(nil)

func NewDirStore(dir string) (*DirStore, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	return &DirStore{root: root}, nil
}

// Dir returns the directory the store serves from.
func (s *DirStore) Dir() string {
	return s.root.Name()
}

func (s *DirStore) Close() error {
	return s.root.Close()
}

func (s *DirStore) Stat(_ context.Context, name string) (int64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	fi, err := s.root.Stat(name)
	if err != nil {
		return 0, mapFSError(name, err)
	}
	if !fi.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: %s is not a regular file", protocol.ErrFileNotFound, name)
	}
	return fi.Size(), nil
}

func (s *DirStore) Open(_ context.Context, name string) (File, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	f, err := s.root.Open(name)
	if err != nil {
		return nil, mapFSError(name, err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, mapFSError(name, err)
	}
	if !fi.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is not a regular file", protocol.ErrFileNotFound, name)
	}
	return &osFile{File: f, size: fi.Size()}, nil
}

type osFile struct {
	*os.File
	size int64
}

func (f *osFile) Size() int64 { return f.size }

func mapFSError(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", protocol.ErrFileNotFound, name)
	}
	return fmt.Errorf("%w: %s: %v", protocol.ErrFileOpenFailed, name, err)
}
