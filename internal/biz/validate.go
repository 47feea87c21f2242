package biz

import (
	"net"
	"net/url"
	"strings"
	"time"

	"go-shortlinks/internal/domain"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/samber/lo"
)

const (
	maxDestinationLength = 2048
	maxTitleLength       = 255
	maxTags              = 20
	maxTagLength         = 50
)

// validateDestination accepts absolute http and https URLs only.
func validateDestination(raw string) (*url.URL, error) {
	err := validation.Validate(raw,
		validation.Required.Error("destination_url is required"),
		validation.Length(1, maxDestinationLength).Error("destination_url is too long"),
		is.URL.Error("destination_url is not a valid URL"),
	)
	if err != nil {
		return nil, domain.ValidationError("destination_url", "%s", err.Error())
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, domain.ValidationError("destination_url", "destination_url is not a valid URL")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, domain.ValidationError("destination_url", "only http and https destinations are allowed")
	}
	if u.Hostname() == "" {
		return nil, domain.ValidationError("destination_url", "destination_url must include a host")
	}
	return u, nil
}

// destinationDomains lists the host and each parent domain, most specific
// first: a.b.example.com -> [a.b.example.com b.example.com example.com].
func destinationDomains(u *url.URL) []string {
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if net.ParseIP(host) != nil {
		return []string{host}
	}
	labels := strings.Split(host, ".")
	if len(labels) == 1 {
		return []string{host}
	}
	return lo.Times(len(labels)-1, func(i int) string {
		return strings.Join(labels[i:], ".")
	})
}

func validateTitle(title *string) error {
	if title == nil {
		return nil
	}
	err := validation.Validate(*title, validation.RuneLength(0, maxTitleLength).Error("title is too long"))
	if err != nil {
		return domain.ValidationError("title", "%s", err.Error())
	}
	return nil
}

func validateExpiry(expiresAt *time.Time, now time.Time) error {
	if expiresAt != nil && !expiresAt.After(now) {
		return domain.ValidationError("expires_at", "expires_at must be in the future")
	}
	return nil
}

// normalizeTags trims, drops empties and de-duplicates while keeping order.
func normalizeTags(tags []string) ([]string, error) {
	cleaned := lo.Uniq(lo.Compact(lo.Map(tags, func(t string, _ int) string {
		return strings.TrimSpace(t)
	})))
	if len(cleaned) > maxTags {
		return nil, domain.ValidationError("tags", "at most %d tags are allowed", maxTags)
	}
	for _, t := range cleaned {
		if len([]rune(t)) > maxTagLength {
			return nil, domain.ValidationError("tags", "tag %q is longer than %d characters", t, maxTagLength)
		}
	}
	return cleaned, nil
}

// normalizeDomain prepares a blacklist entry.
func normalizeDomain(raw string) (string, error) {
	d := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), ".")
	err := validation.Validate(d,
		validation.Required.Error("domain is required"),
		is.Host.Error("domain must be a host name"),
	)
	if err != nil {
		return "", domain.ValidationError("domain", "%s", err.Error())
	}
	return d, nil
}
