package filegate

import (
	"sync"
	"sync/atomic"
	"time"
)

// connLimits bounds what a single connection may consume.
type connLimits struct {
	maxBuffer int64 // bytes of unprocessed input
	rate      int64 // requests per second
	burst     int64
	initial   int64 // tokens available right after accept
}

func defaultConnLimits() connLimits {
	return connLimits{
		maxBuffer: 64 * 1024,
		rate:      100,
		burst:     200,
		initial:   100,
	}
}

// ConnContext tracks per-connection buffer usage and request rate.
type ConnContext struct {
	bufferUsed int64
	served     int64
	limits     connLimits

	mu         sync.Mutex
	tokens     int64
	lastRefill time.Time
	now        func() time.Time
}

func NewConnContext() *ConnContext {
	return newConnContext(defaultConnLimits())
}

func newConnContext(l connLimits) *ConnContext {
	if l.initial > l.burst {
		l.initial = l.burst
	}
	return &ConnContext{
		limits:     l,
		tokens:     l.initial,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Reserve accounts n more buffered bytes and reports whether the quota still holds.
func (c *ConnContext) Reserve(n int) bool {
	used := atomic.AddInt64(&c.bufferUsed, int64(n))
	return used <= c.limits.maxBuffer
}

func (c *ConnContext) Release(n int) {
	atomic.AddInt64(&c.bufferUsed, -int64(n))
}

// Buffered returns the bytes currently reserved.
func (c *ConnContext) Buffered() int64 {
	return atomic.LoadInt64(&c.bufferUsed)
}

// Allow takes one token from the bucket. Every admitted request counts as served.
func (c *ConnContext) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	add := int64(now.Sub(c.lastRefill)) * c.limits.rate / int64(time.Second)
	if add > 0 {
		if c.tokens+add >= c.limits.burst {
			c.tokens = c.limits.burst
			c.lastRefill = now
		} else {
			// Advance only by the time the whole tokens took; the remainder carries over.
			c.tokens += add
			c.lastRefill = c.lastRefill.Add(time.Duration(add * int64(time.Second) / c.limits.rate))
		}
	}
	if c.tokens <= 0 {
		return false
	}
	c.tokens--
	atomic.AddInt64(&c.served, 1)
	return true
}

func (c *ConnContext) Served() int64 {
	return atomic.LoadInt64(&c.served)
}
