package data

import (
	"context"
	stdsql "database/sql"
	"time"

	"go-shortlinks/internal/domain"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/samber/lo"
)

var _ domain.BlacklistRepository = (*blacklistRepo)(nil)

type blacklistRepo struct {
	data *Data
	log  *log.Helper
}

// NewBlacklistRepo creates the destination blacklist repository.
func NewBlacklistRepo(data *Data, logger log.Logger) domain.BlacklistRepository {
	return &blacklistRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *blacklistRepo) AnyBlacklisted(ctx context.Context, domains []string) (bool, error) {
	if len(domains) == 0 {
		return false, nil
	}
	b := r.data.builder()
	t := b.Table(blacklistTable)
	query, args := b.Select(entsql.Count("*")).
		From(t).
		Where(entsql.In(t.C("domain"), lo.ToAnySlice(domains)...)).
		Query()
	rows, err := r.data.query(ctx, query, args)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return false, err
		}
	}
	return n > 0, rows.Err()
}

// Add is idempotent: re-adding a listed domain keeps the first entry.
func (r *blacklistRepo) Add(ctx context.Context, domain, reason string) error {
	var why stdsql.NullString
	if reason != "" {
		why = stdsql.NullString{String: reason, Valid: true}
	}
	query, args := r.data.builder().Insert(blacklistTable).
		Columns("domain", "reason", "created_at").
		Values(domain, why, time.Now().UTC()).
		Query()
	if _, err := r.data.exec(ctx, query, args); err != nil && !isUniqueViolation(err) {
		return err
	}
	return nil
}
