package domain

import (
	"time"
)

// LinkStatus is the lifecycle state of a link record.
type LinkStatus string

const (
	LinkStatusActive   LinkStatus = "active"
	LinkStatusDisabled LinkStatus = "disabled"
	LinkStatusBlocked  LinkStatus = "blocked"
	// LinkStatusDeleted is terminal and only reachable through a soft delete.
	LinkStatusDeleted LinkStatus = "deleted"
)

// LinkStatuses lists every status in a stable order.
var LinkStatuses = []LinkStatus{LinkStatusActive, LinkStatusDisabled, LinkStatusBlocked, LinkStatusDeleted}

func (s LinkStatus) String() string {
	return string(s)
}

// Valid reports whether s is a known status.
func (s LinkStatus) Valid() bool {
	switch s {
	case LinkStatusActive, LinkStatusDisabled, LinkStatusBlocked, LinkStatusDeleted:
		return true
	}
	return false
}

// Link is the full metadata record held in the relational store.
type Link struct {
	ID             string
	OrgID          string
	ShortCode      string
	DestinationURL string
	Title          *string
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	ExpiresAt      *time.Time
	DeletedAt      *time.Time
	Status         LinkStatus
	ClickCount     int64
	Tags           []string
}

// IsExpired reports whether the link has an expiry at or before now.
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// IsRedirectable reports whether a redirect for this link may be served at now.
func (l *Link) IsRedirectable(now time.Time) bool {
	return l.Status == LinkStatusActive && !l.IsExpired(now)
}

// KeepsMapping reports whether the key-value store should hold a mapping for
// the link. Disabled links keep an inactive mapping so the code stays occupied.
func (l *Link) KeepsMapping(now time.Time) bool {
	if l.IsExpired(now) {
		return false
	}
	return l.Status == LinkStatusActive || l.Status == LinkStatusDisabled
}

// Mapping derives the redirect-time mapping from the record.
func (l *Link) Mapping() *LinkMapping {
	return &LinkMapping{
		DestinationURL: l.DestinationURL,
		LinkID:         l.ID,
		ExpiresAt:      l.ExpiresAt,
		IsActive:       l.Status == LinkStatusActive,
	}
}

// Clone returns a deep copy so callers can compute a next state without
// touching the loaded record.
func (l *Link) Clone() *Link {
	c := *l
	c.Title = clonePtr(l.Title)
	c.UpdatedAt = clonePtr(l.UpdatedAt)
	c.ExpiresAt = clonePtr(l.ExpiresAt)
	c.DeletedAt = clonePtr(l.DeletedAt)
	if l.Tags != nil {
		c.Tags = append([]string(nil), l.Tags...)
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// LinkMapping is the minimal redirect record stored in the key-value store
// under the short code.
type LinkMapping struct {
	DestinationURL string     `json:"destination_url"`
	LinkID         string     `json:"link_id"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IsActive       bool       `json:"is_active"`
}

// IsExpired reports whether the mapping's expiry is at or before now.
func (m *LinkMapping) IsExpired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}

// Redirectable is evaluated at read time so expiry is a live property.
func (m *LinkMapping) Redirectable(now time.Time) bool {
	return m.IsActive && !m.IsExpired(now)
}

// Equal reports whether two mappings would serve the same redirect.
func (m *LinkMapping) Equal(o *LinkMapping) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.DestinationURL != o.DestinationURL || m.LinkID != o.LinkID || m.IsActive != o.IsActive {
		return false
	}
	if (m.ExpiresAt == nil) != (o.ExpiresAt == nil) {
		return false
	}
	return m.ExpiresAt == nil || m.ExpiresAt.Equal(*o.ExpiresAt)
}

// AnalyticsEvent is appended once per served redirect.
type AnalyticsEvent struct {
	ID         int64
	LinkID     string
	OrgID      string
	OccurredAt time.Time
	Referrer   *string
	UserAgent  *string
	Country    *string
}

// ListFilter scopes a link listing.
type ListFilter struct {
	OrgID          string
	Status         LinkStatus
	IncludeDeleted bool
	Page           int
	PageSize       int
}
