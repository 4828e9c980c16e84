package filegate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gogogo1024/filegate/protocol"
	"github.com/gogogo1024/filegate/transfer"
)

// ErrConnectionFailed is returned by Dial once every attempt has failed.
var ErrConnectionFailed = errors.New("filegate: connection failed")

type clientConfig struct {
	dialTimeout    time.Duration
	retries        int
	retryDelay     time.Duration
	maxContentSize int
}

// ClientOption customizes Dial and NewClient.
type ClientOption func(*clientConfig)

// WithDialRetry retries a refused connection up to attempts times, waiting delay in between.
func WithDialRetry(attempts int, delay time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.retries = attempts
		c.retryDelay = delay
	}
}

func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.dialTimeout = d }
}

// WithMaxContentSize bounds a reassembled file (<= 0 for no limit).
func WithMaxContentSize(n int) ClientOption {
	return func(c *clientConfig) { c.maxContentSize = n }
}

func newClientConfig(opts []ClientOption) clientConfig {
	cfg := clientConfig{
		dialTimeout: 5 * time.Second,
		retries:     3,
		retryDelay:  time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.retries < 1 {
		cfg.retries = 1
	}
	return cfg
}

// Client issues requests over a single connection, one at a time.
// A failure other than a server ERROR reply leaves the stream unframed, so
// the connection is closed and every later request fails with ErrReceiveFailed.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	fr     *transfer.FrameReader
	cfg    clientConfig
	broken error
}

// Dial connects to addr. Refused connections are retried per WithDialRetry;
// any other dial error is returned immediately.
func Dial(ctx context.Context, addr string, opts ...ClientOption) (*Client, error) {
	cfg := newClientConfig(opts)
	d := net.Dialer{Timeout: cfg.dialTimeout}

	var lastErr error
	for attempt := 1; attempt <= cfg.retries; attempt++ {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return newClient(conn, cfg), nil
		}
		lastErr = err
		if !errors.Is(err, syscall.ECONNREFUSED) || attempt == cfg.retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.retryDelay):
		}
	}
	return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, addr, lastErr)
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, opts ...ClientOption) *Client {
	return newClient(conn, newClientConfig(opts))
}

func newClient(conn net.Conn, cfg clientConfig) *Client {
	return &Client{conn: conn, fr: transfer.NewFrameReader(conn), cfg: cfg}
}

func (c *Client) Close() error { return c.conn.Close() }

// RequestMetadata returns the RESPONSE to a metadata request for name.
func (c *Client) RequestMetadata(ctx context.Context, name string) (*protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return nil, c.broken
	}

	stop := c.bind(ctx)
	r, err := transfer.RequestMetadata(c.fr, c.conn, name)
	stop()
	return r, c.settle(ctx, err)
}

// RequestContents fetches and reassembles the contents of name.
func (c *Client) RequestContents(ctx context.Context, name string) (*protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return nil, c.broken
	}

	stop := c.bind(ctx)
	r, err := transfer.RequestContents(c.fr, c.conn, name, c.cfg.maxContentSize)
	stop()
	return r, c.settle(ctx, err)
}

// settle attributes err to ctx where it applies and retires the connection
// unless the server answered with an ERROR frame.
func (c *Client) settle(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	err = ctxErr(ctx, err)
	var remote *protocol.RemoteError
	if errors.As(err, &remote) {
		return err
	}
	c.broken = fmt.Errorf("%w: connection closed after earlier failure: %w", protocol.ErrReceiveFailed, err)
	_ = c.conn.Close()
	return err
}

// Size requests metadata for name and parses the reported size.
func (c *Client) Size(ctx context.Context, name string) (int64, error) {
	r, err := c.RequestMetadata(ctx, name)
	if err != nil {
		return 0, err
	}
	return ParseSize(r.Payload)
}

// ParseSize parses a "Size: N" metadata payload.
func ParseSize(payload []byte) (int64, error) {
	s, ok := strings.CutPrefix(protocol.TrimCString(payload), "Size: ")
	if !ok {
		return 0, fmt.Errorf("%w: malformed metadata %q", protocol.ErrInvalidDataSize, protocol.TrimCString(payload))
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: malformed size %q", protocol.ErrInvalidDataSize, s)
	}
	return n, nil
}

// bind applies ctx's deadline to the connection and aborts pending I/O on cancellation.
func (c *Client) bind(ctx context.Context) func() {
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(dl)
	}
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
		close(fired)
	})
	return func() {
		if !stop() {
			<-fired
		}
		_ = c.conn.SetDeadline(time.Time{})
	}
}

// ctxErr attributes an I/O failure to ctx when ctx caused it. The connection
// deadline can fire slightly before ctx itself reports expiry.
func ctxErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return errors.Join(err, cerr)
	}
	if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
		return errors.Join(err, context.DeadlineExceeded)
	}
	return err
}
