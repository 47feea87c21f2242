package data

import (
	"context"
	stdsql "database/sql"
	"time"

	"go-shortlinks/internal/domain"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/go-kratos/kratos/v2/log"
)

var _ domain.QuotaRepository = (*quotaRepo)(nil)

type quotaRepo struct {
	data *Data
	log  *log.Helper
}

// NewQuotaRepo creates the organization tier and monthly counter repository.
func NewQuotaRepo(data *Data, logger log.Logger) domain.QuotaRepository {
	return &quotaRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *quotaRepo) MonthlyLimit(ctx context.Context, orgID string) (*int64, bool, error) {
	b := r.data.builder()
	t := b.Table(organizationsTable)
	query, args := b.Select(t.C("monthly_link_limit")).
		From(t).
		Where(entsql.EQ(t.C("id"), orgID)).
		Query()
	rows, err := r.data.query(ctx, query, args)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, false, rows.Err()
	}
	var limit stdsql.NullInt64
	if err := rows.Scan(&limit); err != nil {
		return nil, false, err
	}
	if !limit.Valid {
		return nil, true, nil
	}
	return &limit.Int64, true, nil
}

// SetMonthlyLimit upserts the organization's tier row.
func (r *quotaRepo) SetMonthlyLimit(ctx context.Context, orgID, tier string, limit *int64) error {
	var value stdsql.NullInt64
	if limit != nil {
		value = stdsql.NullInt64{Int64: *limit, Valid: true}
	}
	if tier == "" {
		tier = "custom"
	}
	now := time.Now().UTC()

	return r.data.InTx(ctx, func(ctx context.Context) error {
		b := r.data.builder()
		query, args := b.Update(organizationsTable).
			Set("tier", tier).
			Set("monthly_link_limit", value).
			Set("updated_at", now).
			Where(entsql.EQ("id", orgID)).
			Query()
		n, err := r.data.exec(ctx, query, args)
		if err != nil || n > 0 {
			return err
		}
		query, args = b.Insert(organizationsTable).
			Columns("id", "tier", "monthly_link_limit", "updated_at").
			Values(orgID, tier, value, now).
			Query()
		_, err = r.data.exec(ctx, query, args)
		return err
	})
}

func (r *quotaRepo) MonthlyCount(ctx context.Context, orgID, yearMonth string) (int64, error) {
	b := r.data.builder()
	t := b.Table(monthlyCounterTable)
	query, args := b.Select(t.C("links_created")).
		From(t).
		Where(entsql.And(
			entsql.EQ(t.C("org_id"), orgID),
			entsql.EQ(t.C("year_month"), yearMonth),
		)).
		Query()
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

// IncrementMonthlyCount bumps the counter with a single-row update, creating
// the row on the first link of the month.
func (r *quotaRepo) IncrementMonthlyCount(ctx context.Context, orgID, yearMonth string) error {
	n, err := r.increment(ctx, orgID, yearMonth)
	if err != nil || n > 0 {
		return err
	}

	query, args := r.data.builder().Insert(monthlyCounterTable).
		Columns("org_id", "year_month", "links_created").
		Values(orgID, yearMonth, 1).
		Query()
	if _, err := r.data.exec(ctx, query, args); err != nil {
		if !isUniqueViolation(err) {
			return err
		}
		// Lost the insert race to another creation; count on its row.
		_, err = r.increment(ctx, orgID, yearMonth)
		return err
	}
	return nil
}

func (r *quotaRepo) increment(ctx context.Context, orgID, yearMonth string) (int64, error) {
	query, args := r.data.builder().Update(monthlyCounterTable).
		Add("links_created", 1).
		Where(entsql.And(
			entsql.EQ("org_id", orgID),
			entsql.EQ("year_month", yearMonth),
		)).
		Query()
	return r.data.exec(ctx, query, args)
}
