package biz

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go-shortlinks/internal/conf"
	"go-shortlinks/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
)

// RedirectRequest carries what the transport knows about one redirect.
type RedirectRequest struct {
	ShortCode string
	ClientIP  string
	Referrer  string
	UserAgent string
	Country   string
}

// Redirect is the resolved response.
type Redirect struct {
	Location   string
	StatusCode int
	LinkID     string
}

// Resolver serves the redirect hot path: rate limit, key-value lookup, live
// validation, awaited analytics write, 301.
type Resolver struct {
	links     domain.LinkRepository
	mappings  domain.MappingStore
	analytics domain.AnalyticsRepository
	limiter   *Limiter
	policy    Policy
	now       func() time.Time
	log       *log.Helper
}

// NewResolver .
func NewResolver(
	links domain.LinkRepository,
	mappings domain.MappingStore,
	analytics domain.AnalyticsRepository,
	limiter *Limiter,
	c *conf.Shortener,
	logger log.Logger,
) *Resolver {
	var rl *conf.RateLimitPolicy
	if c != nil && c.RateLimit != nil {
		rl = c.RateLimit.Redirect
	}
	return &Resolver{
		links:     links,
		mappings:  mappings,
		analytics: analytics,
		limiter:   limiter,
		policy:    NewPolicy(domain.RateLimitIP, "", rl),
		now:       time.Now,
		log:       log.NewHelper(logger),
	}
}

// Resolve returns the redirect for a short code or a NotFound/RateLimited error.
func (r *Resolver) Resolve(ctx context.Context, req *RedirectRequest) (*Redirect, error) {
	if err := r.limiter.Allow(ctx, r.policy, req.ClientIP); err != nil {
		return nil, err
	}

	if !plausibleCode(req.ShortCode) {
		return nil, domain.ErrLinkNotFound
	}

	mapping, err := r.mappings.Get(ctx, req.ShortCode)
	if err != nil {
		return nil, domain.StorageError("read redirect mapping", err)
	}
	now := r.now()
	if mapping == nil || !mapping.Redirectable(now) {
		return nil, domain.ErrLinkNotFound
	}

	event := &domain.AnalyticsEvent{
		LinkID:     mapping.LinkID,
		OccurredAt: storedTime(now),
		Referrer:   optional(req.Referrer),
		UserAgent:  optional(req.UserAgent),
		Country:    optional(req.Country),
	}
	if err := r.analytics.RecordClick(ctx, event); err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			r.evictDrifted(ctx, req.ShortCode, mapping)
			return nil, domain.ErrLinkNotFound
		}
		// The redirect is still served; the lost click is only visible in logs.
		r.log.WithContext(ctx).Errorw(
			"msg", "analytics write failed, serving redirect anyway",
			"short_code", req.ShortCode,
			"link_id", mapping.LinkID,
			"error", err,
		)
	}

	return &Redirect{
		Location:   mapping.DestinationURL,
		StatusCode: http.StatusMovedPermanently,
		LinkID:     mapping.LinkID,
	}, nil
}

// evictDrifted repairs a mapping whose relational record is gone or no
// longer active. The record is read again first since a status change that
// landed after the click may already have restored the mapping, and the
// store is only touched while the key still holds the mapping that was read.
func (r *Resolver) evictDrifted(ctx context.Context, code string, mapping *domain.LinkMapping) {
	fresh, err := r.links.Get(ctx, mapping.LinkID)
	if err != nil {
		r.log.WithContext(ctx).Errorf("re-read link %s before evicting %s: %v", mapping.LinkID, code, err)
		return
	}

	var next *domain.LinkMapping
	if fresh != nil && fresh.ShortCode == code && fresh.KeepsMapping(r.now()) {
		next = fresh.Mapping()
		if next.IsActive {
			return
		}
	}

	swapped, err := r.mappings.CompareAndSwap(ctx, code, mapping, next)
	if err != nil {
		r.log.WithContext(ctx).Errorf("evict mapping %s: %v", code, err)
		return
	}
	if swapped {
		r.log.WithContext(ctx).Warnf("mapping %s pointed at inactive link %s, evicted", code, mapping.LinkID)
	}
}

func plausibleCode(code string) bool {
	if len(code) < MinCodeLength || len(code) > MaxCodeLength {
		return false
	}
	return shortCodePattern.MatchString(code)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
