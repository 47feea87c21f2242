package biz

import (
	"context"
	"time"

	"go-shortlinks/internal/conf"
	"go-shortlinks/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
)

// Policy is a fixed window budget for one kind of request.
type Policy struct {
	Type  domain.RateLimitType
	Scope string
	// Limit of zero or less disables the policy.
	Limit  int64
	Window time.Duration
}

// NewPolicy converts a configured budget.
func NewPolicy(typ domain.RateLimitType, scope string, c *conf.RateLimitPolicy) Policy {
	return Policy{
		Type:   typ,
		Scope:  scope,
		Limit:  c.GetLimit(),
		Window: c.Window(),
	}
}

// Decision is the outcome of one check.
type Decision struct {
	Allowed bool
	Count   int64
	Limit   int64
	ResetAt time.Time
}

// RetryAfter is the time left in the current window.
func (d *Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.After(now) {
		return d.ResetAt.Sub(now)
	}
	return 0
}

// Limiter implements fixed-window counting on the key-value store. The read
// and the write are separate store calls, so racing requests on one key can
// both be admitted.
type Limiter struct {
	store domain.CounterStore
	now   func() time.Time
	log   *log.Helper
}

// NewLimiter .
func NewLimiter(store domain.CounterStore, logger log.Logger) *Limiter {
	return &Limiter{
		store: store,
		now:   time.Now,
		log:   log.NewHelper(logger),
	}
}

// CheckAndIncrement counts one request for identifier against limit per window.
func (l *Limiter) CheckAndIncrement(ctx context.Context, typ domain.RateLimitType, identifier string, limit int64, window time.Duration) (*Decision, error) {
	return l.check(ctx, domain.RateLimitKey(typ, "", identifier), limit, window)
}

func (l *Limiter) check(ctx context.Context, key string, limit int64, window time.Duration) (*Decision, error) {
	now := l.now()

	counter, err := l.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if counter == nil || now.Sub(counter.WindowStart) >= window {
		counter = &domain.RateLimitCounter{Count: 1, WindowStart: now}
		if err := l.store.Set(ctx, key, counter, window); err != nil {
			return nil, err
		}
		return &Decision{Allowed: true, Count: 1, Limit: limit, ResetAt: now.Add(window)}, nil
	}

	resetAt := counter.WindowStart.Add(window)
	next := counter.Count + 1
	if next > limit {
		return &Decision{Allowed: false, Count: counter.Count, Limit: limit, ResetAt: resetAt}, nil
	}

	counter.Count = next
	if err := l.store.Set(ctx, key, counter, resetAt.Sub(now)); err != nil {
		return nil, err
	}
	return &Decision{Allowed: true, Count: next, Limit: limit, ResetAt: resetAt}, nil
}

// Allow applies a policy and returns a RateLimited error when the budget is
// spent. Store failures are logged and the request is let through.
func (l *Limiter) Allow(ctx context.Context, p Policy, identifier string) error {
	if p.Limit <= 0 || identifier == "" {
		return nil
	}
	key := domain.RateLimitKey(p.Type, p.Scope, identifier)
	d, err := l.check(ctx, key, p.Limit, p.Window)
	if err != nil {
		l.log.WithContext(ctx).Warnf("rate limiter unavailable for %s: %v", key, err)
		return nil
	}
	if !d.Allowed {
		return domain.RateLimitedError(d.RetryAfter(l.now()))
	}
	return nil
}
