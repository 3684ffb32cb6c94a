// Package ratelimit provides the sliding-window per-source limiter shared by
// the WHOIS/RDAP read path and, optionally, pre-login EPP connections.
package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"time"

	"zonecore/internal/platform/metrics"
	dErrors "zonecore/pkg/domain-errors"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed      bool
	Remaining    int
	BlockedUntil time.Time
}

// WindowStore counts queries per source in a sliding window and tracks the
// block state. Implementations: in-memory (single process) and Redis
// (distributed).
type WindowStore interface {
	Allow(ctx context.Context, key string, limit int, window, block time.Duration, now time.Time) (Decision, error)
}

// Limiter applies one threshold/window/block policy to all sources.
type Limiter struct {
	store     WindowStore
	threshold int
	window    time.Duration
	block     time.Duration

	clock   func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Limiter)

func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

func New(store WindowStore, threshold int, window, block time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		store:     store,
		threshold: threshold,
		window:    window,
		block:     block,
		clock:     time.Now,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow checks one query from a source identifier (IP). A denied source
// stays blocked until BlockedUntil passes, after which the window resets.
func (l *Limiter) Allow(ctx context.Context, source string) (Decision, error) {
	d, err := l.store.Allow(ctx, source, l.threshold, l.window, l.block, l.clock())
	if err != nil {
		return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "rate limit check failed")
	}
	if !d.Allowed {
		if l.metrics != nil {
			l.metrics.RateLimited.Inc()
		}
		l.logger.Warn("rate limited", "source", source, "blocked_until", d.BlockedUntil)
	}
	return d, nil
}

// Err returns the coded error for a denied decision, for callers that
// propagate errors rather than decisions.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return dErrors.Newf(dErrors.CodeRateLimited, "rate limited until %s", d.BlockedUntil.UTC().Format(time.RFC3339))
}
