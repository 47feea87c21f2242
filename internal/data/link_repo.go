package data

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go-shortlinks/internal/domain"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/go-kratos/kratos/v2/log"
)

// Compile-time interface check
var _ domain.LinkRepository = (*linkRepo)(nil)

var linkColumns = []string{
	"id", "org_id", "short_code", "destination_url", "title", "created_by",
	"created_at", "updated_at", "expires_at", "deleted_at", "status", "click_count", "tags",
}

type linkRepo struct {
	data *Data
	log  *log.Helper
}

// NewLinkRepo creates the relational link repository.
func NewLinkRepo(data *Data, logger log.Logger) domain.LinkRepository {
	return &linkRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *linkRepo) Insert(ctx context.Context, l *domain.Link) error {
	tags, err := encodeTags(l.Tags)
	if err != nil {
		return err
	}
	query, args := r.data.builder().Insert(linksTable).
		Columns(linkColumns...).
		Values(
			l.ID, l.OrgID, l.ShortCode, l.DestinationURL, nullString(l.Title), l.CreatedBy,
			l.CreatedAt.UTC(), nullTime(l.UpdatedAt), nullTime(l.ExpiresAt), nullTime(l.DeletedAt),
			string(l.Status), l.ClickCount, tags,
		).
		Query()
	if _, err := r.data.exec(ctx, query, args); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateShortCode, l.ShortCode)
		}
		return err
	}
	return nil
}

func (r *linkRepo) Get(ctx context.Context, id string) (*domain.Link, error) {
	return r.getBy(ctx, "id", id)
}

func (r *linkRepo) GetByShortCode(ctx context.Context, code string) (*domain.Link, error) {
	return r.getBy(ctx, "short_code", code)
}

func (r *linkRepo) getBy(ctx context.Context, column, value string) (*domain.Link, error) {
	b := r.data.builder()
	t := b.Table(linksTable)
	query, args := b.Select(t.Columns(linkColumns...)...).
		From(t).
		Where(entsql.EQ(t.C(column), value)).
		Limit(1).
		Query()

	links, err := r.queryLinks(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}
	return links[0], nil
}

// Update rewrites the mutable columns. click_count is owned by the analytics
// path and never written here.
func (r *linkRepo) Update(ctx context.Context, l *domain.Link) error {
	tags, err := encodeTags(l.Tags)
	if err != nil {
		return err
	}
	query, args := r.data.builder().Update(linksTable).
		Set("destination_url", l.DestinationURL).
		Set("title", nullString(l.Title)).
		Set("updated_at", nullTime(l.UpdatedAt)).
		Set("expires_at", nullTime(l.ExpiresAt)).
		Set("deleted_at", nullTime(l.DeletedAt)).
		Set("status", string(l.Status)).
		Set("tags", tags).
		Where(entsql.EQ("id", l.ID)).
		Query()
	n, err := r.data.exec(ctx, query, args)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update link %s: %w", l.ID, domain.ErrLinkNotFound)
	}
	return nil
}

func (r *linkRepo) List(ctx context.Context, f domain.ListFilter) ([]*domain.Link, int, error) {
	b := r.data.builder()
	t := b.Table(linksTable)

	where := func(t *entsql.SelectTable) *entsql.Predicate {
		preds := []*entsql.Predicate{entsql.EQ(t.C("org_id"), f.OrgID)}
		if f.Status != "" {
			preds = append(preds, entsql.EQ(t.C("status"), string(f.Status)))
		}
		if !f.IncludeDeleted {
			preds = append(preds, entsql.NEQ(t.C("status"), string(domain.LinkStatusDeleted)))
		}
		return entsql.And(preds...)
	}

	countQuery, countArgs := b.Select(entsql.Count("*")).From(t).Where(where(t)).Query()
	rows, err := r.data.query(ctx, countQuery, countArgs)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			rows.Close()
			return nil, 0, err
		}
	}
	if err := rows.Close(); err != nil {
		return nil, 0, err
	}

	t = b.Table(linksTable)
	query, args := b.Select(t.Columns(linkColumns...)...).
		From(t).
		Where(where(t)).
		OrderBy(entsql.Desc(t.C("created_at")), entsql.Desc(t.C("id"))).
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Query()
	links, err := r.queryLinks(ctx, query, args)
	if err != nil {
		return nil, 0, err
	}
	return links, total, nil
}

func (r *linkRepo) ListAfter(ctx context.Context, afterID string, limit int) ([]*domain.Link, error) {
	b := r.data.builder()
	t := b.Table(linksTable)
	sel := b.Select(t.Columns(linkColumns...)...).From(t)
	if afterID != "" {
		sel = sel.Where(entsql.GT(t.C("id"), afterID))
	}
	query, args := sel.OrderBy(t.C("id")).Limit(limit).Query()
	return r.queryLinks(ctx, query, args)
}

func (r *linkRepo) queryLinks(ctx context.Context, query string, args []any) ([]*domain.Link, error) {
	rows, err := r.data.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*domain.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func scanLink(rows *entsql.Rows) (*domain.Link, error) {
	var (
		l                               domain.Link
		title                           stdsql.NullString
		updatedAt, expiresAt, deletedAt stdsql.NullTime
		status                          string
		tags                            []byte
	)
	err := rows.Scan(
		&l.ID, &l.OrgID, &l.ShortCode, &l.DestinationURL, &title, &l.CreatedBy,
		&l.CreatedAt, &updatedAt, &expiresAt, &deletedAt, &status, &l.ClickCount, &tags,
	)
	if err != nil {
		return nil, err
	}
	l.Status = domain.LinkStatus(status)
	l.CreatedAt = l.CreatedAt.UTC()
	if title.Valid {
		l.Title = &title.String
	}
	l.UpdatedAt = fromNullTime(updatedAt)
	l.ExpiresAt = fromNullTime(expiresAt)
	l.DeletedAt = fromNullTime(deletedAt)
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &l.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of link %s: %w", l.ID, err)
		}
	}
	return &l, nil
}

// encodeTags stores tags as a JSON text value, which both jsonb and sqlite's
// json column accept.
func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullString(s *string) stdsql.NullString {
	if s == nil {
		return stdsql.NullString{}
	}
	return stdsql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) stdsql.NullTime {
	if t == nil {
		return stdsql.NullTime{}
	}
	return stdsql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(t stdsql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
