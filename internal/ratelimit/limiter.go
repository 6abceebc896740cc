// Package ratelimit paces outgoing requests per spec.md §4.2, wrapping
// golang.org/x/time/rate's token bucket the way rate_limiter.py wraps its
// own hand-rolled bucket: one limiter for global mode, one per host for
// per-host mode, with a priority chain resolving the effective rate for
// a given step.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/psbr27/testPilotOne/internal/logging"
	"github.com/psbr27/testPilotOne/internal/types"
)

var log = logging.Get("ratelimit")

// Limiter paces requests globally or per host depending on configuration.
type Limiter struct {
	mu          sync.Mutex
	perHost     bool
	defaultRate float64
	burst       int

	global  *rate.Limiter
	buckets map[string]*rate.Limiter
}

// New builds a Limiter from the host config's rate_limiting block. It
// returns nil when rate limiting is disabled, matching
// create_rate_limiter_from_config's Optional[RateLimiter] return.
func New(cfg types.RateLimiting) *Limiter {
	if !cfg.Enabled {
		log.Debug("rate limiting disabled in config")
		return nil
	}
	defaultRate := cfg.DefaultReqsPerS
	if defaultRate < 0.1 {
		defaultRate = 0.1
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = maxInt(1, int(defaultRate))
	}
	log.Infow("rate limiter created", "rate", defaultRate, "per_host", cfg.PerHost, "burst", burst)
	l := &Limiter{
		perHost:     cfg.PerHost,
		defaultRate: defaultRate,
		burst:       burst,
		buckets:     make(map[string]*rate.Limiter),
	}
	if !cfg.PerHost {
		l.global = rate.NewLimiter(rate.Limit(defaultRate), burst)
	}
	return l
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// bucketFor returns (creating if needed) the limiter governing host, or
// the global limiter when per-host mode is off.
func (l *Limiter) bucketFor(host string) *rate.Limiter {
	if !l.perHost {
		return l.global
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[host]
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.defaultRate), l.burst)
		l.buckets[host] = b
		log.Debugw("initialized rate bucket", "host", host)
	}
	return b
}

// EffectiveRate resolves a step's rate from the priority chain: the
// step's own Reqs_Per_Sec column wins, otherwise the limiter's
// configured default (parse_excel_rate_limit's fallback semantics).
func (l *Limiter) EffectiveRate(step types.TestStep) float64 {
	if step.HasReqsPerSec() {
		return step.ReqsPerSec
	}
	return l.defaultRate
}

// Wait blocks until a token is available for host, honoring ctx
// cancellation (spec.md §5's soft-cancel boundary). If step carries its
// own rate, the call sets the limit of the bucket it waits on (the
// host's, or the global one) to that rate before waiting, mirroring
// RateLimiter.set_rate; the new limit stays in effect for later waits
// on the same bucket.
func (l *Limiter) Wait(ctx context.Context, host string, step types.TestStep) error {
	b := l.bucketFor(host)
	if step.HasReqsPerSec() {
		l.mu.Lock()
		b.SetLimit(rate.Limit(step.ReqsPerSec))
		l.mu.Unlock()
	}
	if err := b.Wait(ctx); err != nil {
		log.Debugw("rate wait aborted", "host", host, "err", err)
		return err
	}
	return nil
}

// SetRate updates the rate for a host's bucket (the global bucket when
// per-host mode is off), matching RateLimiter.set_rate. When per-host
// mode is off or host is empty, rps also becomes the default rate, which
// per-host buckets created afterwards start with; existing per-host
// buckets keep their own rate.
func (l *Limiter) SetRate(rps float64, host string) {
	if rps < 0.1 {
		rps = 0.1
	}
	b := l.bucketFor(host)
	l.mu.Lock()
	b.SetLimit(rate.Limit(rps))
	if !l.perHost || host == "" {
		l.defaultRate = rps
	}
	l.mu.Unlock()
	log.Debugw("rate updated", "host", host, "rate", rps)
}

// Reset drops per-host state, or rebuilds the global bucket when host is
// empty, matching RateLimiter.reset.
func (l *Limiter) Reset(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.perHost && host != "" {
		delete(l.buckets, host)
		return
	}
	l.buckets = make(map[string]*rate.Limiter)
	if l.global != nil {
		l.global = rate.NewLimiter(rate.Limit(l.defaultRate), l.burst)
	}
}
