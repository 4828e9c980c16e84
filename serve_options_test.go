package filegate

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNormalizeAddr(t *testing.T) {
	cases := []struct {
		addr string
		opts []ServeOption
		want string
	}{
		{"127.0.0.1:1234", []ServeOption{WithAddr(":9100")}, "127.0.0.1:1234"},
		{"", []ServeOption{WithAddr("0.0.0.0:7777")}, "0.0.0.0:7777"},
		{"", []ServeOption{nil}, defaultAddr},
		{"", nil, ":9002"},
	}
	for _, tc := range cases {
		if got := normalizeAddr(tc.addr, tc.opts); got != tc.want {
			t.Fatalf("normalizeAddr(%q)=%q, want %q", tc.addr, got, tc.want)
		}
	}
}

func TestServeConfigOptions(t *testing.T) {
	l := zap.NewExample()
	cfg := newServeConfig([]ServeOption{
		WithIdleTimeout(0),
		WithWriteTimeout(2 * time.Second),
		WithMaxConns(8),
		WithRateLimit(10, 0),
		WithLogger(l),
	})
	if cfg.idleTimeout != 0 || cfg.writeTimeout != 2*time.Second || cfg.maxConns != 8 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	// A zero burst keeps the default.
	if cfg.limits.rate != 10 || cfg.limits.burst != defaultConnLimits().burst {
		t.Fatalf("limits=%+v", cfg.limits)
	}
	if cfg.log != l {
		t.Fatalf("WithLogger was not applied")
	}

	if cfg := newServeConfig([]ServeOption{WithLogger(nil)}); cfg.log == nil {
		t.Fatalf("WithLogger(nil) must keep the default logger")
	}
}

func TestNextAcceptBackoffSequence(t *testing.T) {
	want := []time.Duration{
		5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond,
		40 * time.Millisecond, 80 * time.Millisecond, 160 * time.Millisecond,
		320 * time.Millisecond, 640 * time.Millisecond, time.Second, time.Second,
	}
	var cur time.Duration
	for i, w := range want {
		cur = nextAcceptBackoff(cur)
		if cur != w {
			t.Fatalf("step %d: got %s, want %s", i, cur, w)
		}
	}
}
