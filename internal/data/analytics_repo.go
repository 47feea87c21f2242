package data

import (
	"context"
	stdsql "database/sql"
	"fmt"

	"go-shortlinks/internal/domain"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/go-kratos/kratos/v2/log"
)

var _ domain.AnalyticsRepository = (*analyticsRepo)(nil)

var analyticsColumns = []string{"id", "link_id", "org_id", "occurred_at", "referrer", "user_agent", "country"}

type analyticsRepo struct {
	data *Data
	log  *log.Helper
}

// NewAnalyticsRepo creates the analytics event repository.
func NewAnalyticsRepo(data *Data, logger log.Logger) domain.AnalyticsRepository {
	return &analyticsRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// RecordClick increments the counter of an active link and appends the event
// in a single transaction, so the two never diverge.
func (r *analyticsRepo) RecordClick(ctx context.Context, ev *domain.AnalyticsEvent) error {
	return r.data.InTx(ctx, func(ctx context.Context) error {
		b := r.data.builder()

		query, args := b.Update(linksTable).
			Add("click_count", 1).
			Where(entsql.And(
				entsql.EQ("id", ev.LinkID),
				entsql.EQ("status", string(domain.LinkStatusActive)),
			)).
			Query()
		n, err := r.data.exec(ctx, query, args)
		if err != nil {
			return fmt.Errorf("increment click count: %w", err)
		}
		if n == 0 {
			return domain.ErrLinkNotFound
		}

		if ev.OrgID == "" {
			orgID, err := r.orgOf(ctx, ev.LinkID)
			if err != nil {
				return err
			}
			ev.OrgID = orgID
		}

		query, args = b.Insert(analyticsTable).
			Columns("link_id", "org_id", "occurred_at", "referrer", "user_agent", "country").
			Values(ev.LinkID, ev.OrgID, ev.OccurredAt.UTC(),
				nullString(ev.Referrer), nullString(ev.UserAgent), nullString(ev.Country)).
			Query()
		if _, err := r.data.exec(ctx, query, args); err != nil {
			return fmt.Errorf("append analytics event: %w", err)
		}
		return nil
	})
}

func (r *analyticsRepo) orgOf(ctx context.Context, linkID string) (string, error) {
	b := r.data.builder()
	t := b.Table(linksTable)
	query, args := b.Select(t.C("org_id")).From(t).Where(entsql.EQ(t.C("id"), linkID)).Query()
	rows, err := r.data.query(ctx, query, args)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	var orgID string
	if rows.Next() {
		if err := rows.Scan(&orgID); err != nil {
			return "", err
		}
	}
	return orgID, rows.Err()
}

func (r *analyticsRepo) ListEvents(ctx context.Context, linkID string, limit int) ([]*domain.AnalyticsEvent, error) {
	b := r.data.builder()
	t := b.Table(analyticsTable)
	query, args := b.Select(t.Columns(analyticsColumns...)...).
		From(t).
		Where(entsql.EQ(t.C("link_id"), linkID)).
		OrderBy(entsql.Desc(t.C("occurred_at")), entsql.Desc(t.C("id"))).
		Limit(limit).
		Query()

	rows, err := r.data.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.AnalyticsEvent
	for rows.Next() {
		var (
			ev                           domain.AnalyticsEvent
			referrer, userAgent, country stdsql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.LinkID, &ev.OrgID, &ev.OccurredAt, &referrer, &userAgent, &country); err != nil {
			return nil, err
		}
		ev.OccurredAt = ev.OccurredAt.UTC()
		ev.Referrer = fromNullString(referrer)
		ev.UserAgent = fromNullString(userAgent)
		ev.Country = fromNullString(country)
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (r *analyticsRepo) CountEvents(ctx context.Context, linkID string) (int64, error) {
	b := r.data.builder()
	t := b.Table(analyticsTable)
	query, args := b.Select(entsql.Count("*")).From(t).Where(entsql.EQ(t.C("link_id"), linkID)).Query()
	rows, err := r.data.query(ctx, query, args)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

func fromNullString(s stdsql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
