package domain

import (
	"context"
	"time"
)

// LinkRepository is the relational store of link records.
type LinkRepository interface {
	// Insert stores a new record. Returns ErrDuplicateShortCode when the
	// short code is already present in the relational store.
	Insert(ctx context.Context, link *Link) error

	// Get returns nil, nil when no record has the id.
	Get(ctx context.Context, id string) (*Link, error)

	// Update overwrites the mutable columns of an existing record.
	Update(ctx context.Context, link *Link) error

	// List returns one page of records and the total count for the filter.
	List(ctx context.Context, filter ListFilter) ([]*Link, int, error)

	// ListAfter pages through every record ordered by id.
	ListAfter(ctx context.Context, afterID string, limit int) ([]*Link, error)

	// GetByShortCode returns nil, nil when no record has the code.
	GetByShortCode(ctx context.Context, code string) (*Link, error)
}

// AnalyticsRepository records and reads redirect events.
type AnalyticsRepository interface {
	// RecordClick appends the event and increments the link's click count in
	// one relational transaction. Returns ErrLinkNotFound when no active
	// record exists for the event's link.
	RecordClick(ctx context.Context, event *AnalyticsEvent) error

	// ListEvents returns the newest events first.
	ListEvents(ctx context.Context, linkID string, limit int) ([]*AnalyticsEvent, error)

	CountEvents(ctx context.Context, linkID string) (int64, error)
}

// QuotaRepository holds organization tiers and monthly creation counters.
type QuotaRepository interface {
	// MonthlyLimit returns the organization's limit; found is false when the
	// organization has no tier row. A nil limit means unlimited.
	MonthlyLimit(ctx context.Context, orgID string) (limit *int64, found bool, err error)

	SetMonthlyLimit(ctx context.Context, orgID, tier string, limit *int64) error

	MonthlyCount(ctx context.Context, orgID, yearMonth string) (int64, error)

	IncrementMonthlyCount(ctx context.Context, orgID, yearMonth string) error
}

// BlacklistRepository holds destination domains that may not be shortened.
type BlacklistRepository interface {
	// AnyBlacklisted reports whether any of the given domains is listed.
	AnyBlacklisted(ctx context.Context, domains []string) (bool, error)

	Add(ctx context.Context, domain, reason string) error
}

// MappingStore is the key-value index of redirectable short codes.
type MappingStore interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, code string) (*LinkMapping, error)

	Put(ctx context.Context, code string, mapping *LinkMapping) error

	Delete(ctx context.Context, code string) error

	// CompareAndSwap replaces the value only while the key still holds old.
	// A nil next removes the key. It reports whether the write happened.
	CompareAndSwap(ctx context.Context, code string, old, next *LinkMapping) (bool, error)

	Exists(ctx context.Context, code string) (bool, error)

	// Scan iterates mapping keys; a returned cursor of 0 ends the iteration.
	Scan(ctx context.Context, cursor uint64, count int64) (codes []string, next uint64, err error)
}

// CounterStore persists rate limit counters with a TTL.
type CounterStore interface {
	// Get returns nil, nil when the counter does not exist.
	Get(ctx context.Context, key string) (*RateLimitCounter, error)

	Set(ctx context.Context, key string, counter *RateLimitCounter, ttl time.Duration) error
}

// CountryResolver maps a client IP to an ISO country code. It returns "" when
// the country is unknown.
type CountryResolver interface {
	ResolveCountry(ip string) string
}
