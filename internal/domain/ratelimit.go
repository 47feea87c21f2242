package domain

import (
	"strings"
	"time"
)

// RateLimitType is the kind of identifier a counter is keyed by.
type RateLimitType string

const (
	RateLimitIP      RateLimitType = "ip"
	RateLimitUser    RateLimitType = "user"
	RateLimitSession RateLimitType = "session"
)

// RateLimitCounter is the fixed-window state persisted in the key-value store.
type RateLimitCounter struct {
	Count       int64     `json:"count"`
	WindowStart time.Time `json:"window_start"`
}

// RateLimitKey builds ratelimit:{type}:{identifier}. A non-empty scope is
// inserted before the identifier so independent budgets over the same
// identifier do not share a counter.
func RateLimitKey(typ RateLimitType, scope, identifier string) string {
	var b strings.Builder
	b.WriteString("ratelimit:")
	b.WriteString(string(typ))
	b.WriteByte(':')
	if scope != "" {
		b.WriteString(scope)
		b.WriteByte(':')
	}
	b.WriteString(identifier)
	return b.String()
}
