package biz

import (
	"context"
	"time"

	"go-shortlinks/internal/conf"
	"go-shortlinks/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
)

const yearMonthLayout = "2006-01"

// Reservation remembers the month a quota check was made for, so the
// increment after creation lands on the same counter.
type Reservation struct {
	OrgID     string
	YearMonth string
}

// QuotaTracker enforces per-organization monthly creation limits. The check
// and the increment are separate operations; bursts near the limit can
// overshoot it slightly.
type QuotaTracker struct {
	repo         domain.QuotaRepository
	defaultLimit *int64
	now          func() time.Time
	log          *log.Helper
}

// NewQuotaTracker .
func NewQuotaTracker(repo domain.QuotaRepository, c *conf.Shortener, logger log.Logger) *QuotaTracker {
	var def *int64
	if c != nil && c.Quota != nil {
		def = c.Quota.DefaultMonthlyLimit
	}
	return &QuotaTracker{
		repo:         repo,
		defaultLimit: def,
		now:          time.Now,
		log:          log.NewHelper(logger),
	}
}

// CheckAndReserve fails with ErrQuotaExceeded when the organization has used
// its monthly allowance.
func (q *QuotaTracker) CheckAndReserve(ctx context.Context, orgID string) (*Reservation, error) {
	res := &Reservation{OrgID: orgID, YearMonth: q.now().UTC().Format(yearMonthLayout)}

	limit, found, err := q.repo.MonthlyLimit(ctx, orgID)
	if err != nil {
		return nil, domain.StorageError("read organization tier", err)
	}
	if !found {
		limit = q.defaultLimit
	}
	if limit == nil {
		return res, nil
	}

	count, err := q.repo.MonthlyCount(ctx, orgID, res.YearMonth)
	if err != nil {
		return nil, domain.StorageError("read monthly counter", err)
	}
	if count >= *limit {
		return nil, domain.ErrQuotaExceeded
	}
	return res, nil
}

// Commit counts one created link against the reservation's month.
func (q *QuotaTracker) Commit(ctx context.Context, res *Reservation) error {
	if err := q.repo.IncrementMonthlyCount(ctx, res.OrgID, res.YearMonth); err != nil {
		return domain.StorageError("increment monthly counter", err)
	}
	return nil
}

// SetLimit is the billing boundary's entry point for tier changes.
func (q *QuotaTracker) SetLimit(ctx context.Context, actor *domain.Actor, orgID, tier string, limit *int64) error {
	if actor == nil || actor.Role != domain.RoleBilling {
		return domain.ErrPermissionDenied
	}
	if orgID == "" {
		return domain.ValidationError("org_id", "organization id is required")
	}
	if limit != nil && *limit < 0 {
		return domain.ValidationError("monthly_link_limit", "limit must not be negative")
	}
	if err := q.repo.SetMonthlyLimit(ctx, orgID, tier, limit); err != nil {
		return domain.StorageError("update organization tier", err)
	}
	q.log.WithContext(ctx).Infof("organization %s moved to tier %q", orgID, tier)
	return nil
}

// Usage reports the month's counter for an organization.
func (q *QuotaTracker) Usage(ctx context.Context, orgID string) (used int64, limit *int64, err error) {
	limit, found, err := q.repo.MonthlyLimit(ctx, orgID)
	if err != nil {
		return 0, nil, domain.StorageError("read organization tier", err)
	}
	if !found {
		limit = q.defaultLimit
	}
	used, err = q.repo.MonthlyCount(ctx, orgID, q.now().UTC().Format(yearMonthLayout))
	if err != nil {
		return 0, nil, domain.StorageError("read monthly counter", err)
	}
	return used, limit, nil
}
