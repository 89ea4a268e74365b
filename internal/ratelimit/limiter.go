// Package ratelimit paces outbound API requests per remote host.
package ratelimit

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/latebit/wikichain/internal/metrics"
)

// Limiter holds one token bucket per host. A zero or negative rate disables
// limiting.
type Limiter struct {
	limit rate.Limit
	burst int

	mu    sync.Mutex
	hosts map[string]*rate.Limiter

	waited atomic.Int64 // nanoseconds
}

// New creates a Limiter allowing rps requests per second per host with the
// given burst.
func New(rps float64, burst int) *Limiter {
	l := &Limiter{
		limit: rate.Limit(rps),
		burst: max(burst, 1),
		hosts: make(map[string]*rate.Limiter),
	}
	if rps <= 0 {
		l.limit = rate.Inf
	}
	return l
}

func (l *Limiter) bucket(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.hosts[host]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.hosts[host] = b
	}
	return b
}

// Wait blocks until a request to host may proceed or ctx is done. Time spent
// waiting is recorded.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	start := time.Now()
	if err := l.bucket(host).Wait(ctx); err != nil {
		return err
	}
	if d := time.Since(start); d > time.Millisecond {
		l.waited.Add(int64(d))
		metrics.RateLimitWait.Observe(d.Seconds())
	}
	return nil
}

// Allow reports whether a request to host may proceed right now and takes a
// token if so.
func (l *Limiter) Allow(host string) bool {
	return l.bucket(host).Allow()
}

// Waited returns the total time Wait calls have been held back.
func (l *Limiter) Waited() time.Duration {
	return time.Duration(l.waited.Load())
}

// Hosts returns how many hosts have a bucket.
func (l *Limiter) Hosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hosts)
}

// HostOf returns the host portion of a URL, or the raw string if it cannot be parsed.
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
