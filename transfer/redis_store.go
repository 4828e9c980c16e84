package transfer

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/gogogo1024/filegate/protocol"
)

// RedisStore serves file contents stored as Redis strings under prefix+name.
type RedisStore struct {
	c      *redis.Client
	prefix string
}

var _ FileStore = (*RedisStore)(nil)

func NewRedisStore(c *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "filegate:file:"
	}
	return &RedisStore{c: c, prefix: keyPrefix}
}

// Put stores data under name, replacing any previous contents.
func (s *RedisStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return s.c.Set(ctx, s.key(name), data, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return s.c.Del(ctx, s.key(name)).Err()
}

func (s *RedisStore) Stat(ctx context.Context, name string) (int64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	key := s.key(name)

	// STRLEN reports 0 for missing keys, so existence is checked alongside.
	pipe := s.c.Pipeline()
	exists := pipe.Exists(ctx, key)
	size := pipe.StrLen(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", protocol.ErrFileOpenFailed, name, err)
	}
	if exists.Val() == 0 {
		return 0, fmt.Errorf("%w: %s", protocol.ErrFileNotFound, name)
	}
	return size.Val(), nil
}

func (s *RedisStore) Open(ctx context.Context, name string) (File, error) {
	size, err := s.Stat(ctx, name)
	if err != nil {
		return nil, err
	}
	return &redisFile{ctx: ctx, c: s.c, key: s.key(name), size: size}, nil
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

// redisFile reads a value in GETRANGE pages so a large file is never
// pulled into memory at once.
type redisFile struct {
	ctx  context.Context
	c    *redis.Client
	key  string
	size int64
	off  int64
}

func (f *redisFile) Size() int64 { return f.size }

func (f *redisFile) Read(p []byte) (int, error) {
	if f.off >= f.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	end := f.off + int64(len(p)) - 1
	if end >= f.size {
		end = f.size - 1
	}
	b, err := f.c.GetRange(f.ctx, f.key, f.off, end).Bytes()
	if err != nil {
		return 0, err
	}
	if len(b) == 0 {
		// Value shrank after Open.
		return 0, io.ErrUnexpectedEOF
	}
	n := copy(p, b)
	f.off += int64(n)
	return n, nil
}

func (f *redisFile) Close() error { return nil }
