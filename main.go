package filegate

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// SetupFunc is an injection point for registering command handlers.
// It is called once before serving starts.
type SetupFunc func(r *Router) error

var ErrNoSetup = errors.New("filegate: setup is required")

const defaultAddr = ":9002"

type serveConfig struct {
	addr         string
	idleTimeout  time.Duration
	writeTimeout time.Duration
	maxConns     int64
	limits       connLimits
	log          *zap.Logger
}

func defaultServeConfig() serveConfig {
	return serveConfig{
		idleTimeout:  5 * time.Minute,
		writeTimeout: 10 * time.Second,
		limits:       defaultConnLimits(),
		log:          zap.NewNop(),
	}
}

// ServeOption customizes the server.
type ServeOption func(*serveConfig)

// WithAddr sets the listen address used when ListenAndServe gets an empty addr.
func WithAddr(addr string) ServeOption {
	return func(c *serveConfig) { c.addr = addr }
}

// WithIdleTimeout closes connections that send nothing for d (0 disables).
func WithIdleTimeout(d time.Duration) ServeOption {
	return func(c *serveConfig) { c.idleTimeout = d }
}

// WithWriteTimeout bounds every frame write (0 disables).
func WithWriteTimeout(d time.Duration) ServeOption {
	return func(c *serveConfig) { c.writeTimeout = d }
}

// WithMaxConns caps concurrently served connections (0 means unlimited).
// Accepting pauses while the cap is reached.
func WithMaxConns(n int) ServeOption {
	return func(c *serveConfig) { c.maxConns = int64(n) }
}

// WithRateLimit sets the per-connection request rate (requests/second) and burst.
func WithRateLimit(rate, burst int) ServeOption {
	return func(c *serveConfig) {
		if rate > 0 {
			c.limits.rate = int64(rate)
		}
		if burst > 0 {
			c.limits.burst = int64(burst)
		}
	}
}

func WithLogger(l *zap.Logger) ServeOption {
	return func(c *serveConfig) {
		if l != nil {
			c.log = l
		}
	}
}

func newServeConfig(opts []ServeOption) serveConfig {
	cfg := defaultServeConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// normalizeAddr picks the explicit addr, then WithAddr, then the default.
func normalizeAddr(addr string, opts []ServeOption) string {
	if addr != "" {
		return addr
	}
	if cfg := newServeConfig(opts); cfg.addr != "" {
		return cfg.addr
	}
	return defaultAddr
}

// ListenAndServe starts a TCP listener on addr and serves the file protocol.
func ListenAndServe(addr string, setup SetupFunc, opts ...ServeOption) error {
	listener, err := net.Listen("tcp", normalizeAddr(addr, opts))
	if err != nil {
		return err
	}
	return Serve(listener, setup, opts...)
}

// Serve handles accepted connections from an existing listener.
func Serve(listener net.Listener, setup SetupFunc, opts ...ServeOption) error {
	return ServeWithContext(context.Background(), listener, setup, opts...)
}

// ServeWithContext serves until ctx is cancelled, then closes the listener and
// every open connection and returns nil once they have all finished.
func ServeWithContext(ctx context.Context, listener net.Listener, setup SetupFunc, opts ...ServeOption) error {
	if setup == nil {
		return ErrNoSetup
	}
	cfg := newServeConfig(opts)
	router := NewRouter()
	if err := setup(router); err != nil {
		return err
	}

	// Runs last: connections are closed by the cancel below before waiting on them.
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopListener := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stopListener()

	var sem *semaphore.Weighted
	if cfg.maxConns > 0 {
		sem = semaphore.NewWeighted(cfg.maxConns)
	}

	var backoff time.Duration
	for {
		if sem != nil {
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil
			}
		}
		conn, err := listener.Accept()
		if err != nil {
			if sem != nil {
				sem.Release(1)
			}
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			backoff = nextAcceptBackoff(backoff)
			cfg.log.Warn("accept error", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			if sem != nil {
				defer sem.Release(1)
			}
			serveConn(ctx, c, router, cfg)
		}(conn)
	}
}

func serveConn(ctx context.Context, c net.Conn, router *Router, cfg serveConfig) {
	defer c.Close()
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	remote := ""
	if addr := c.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	log := cfg.log.With(zap.String("conn_id", uuid.NewString()), zap.String("remote", remote))
	log.Debug("connection accepted")

	cc := newConnContext(cfg.limits)
	err := runConn(ctx, c, router, connOptions{
		idleTimeout:  cfg.idleTimeout,
		writeTimeout: cfg.writeTimeout,
		cc:           cc,
		log:          log,
	})
	if err != nil && ctx.Err() == nil {
		log.Warn("connection error", zap.Error(err), zap.Int64("requests", cc.Served()))
		return
	}
	log.Debug("connection closed", zap.Int64("requests", cc.Served()))
}

func nextAcceptBackoff(cur time.Duration) time.Duration {
	const (
		minBackoff = 5 * time.Millisecond
		maxBackoff = time.Second
	)
	if cur <= 0 {
		return minBackoff
	}
	cur *= 2
	if cur > maxBackoff {
		return maxBackoff
	}
	return cur
}
