package data

import (
	"net"

	"go-shortlinks/internal/conf"
	"go-shortlinks/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
	geoip2 "github.com/oschwald/geoip2-golang"
)

var (
	_ domain.CountryResolver = (*geoIPResolver)(nil)
	_ domain.CountryResolver = noopCountryResolver{}
)

type geoIPResolver struct {
	db *geoip2.Reader
}

type noopCountryResolver struct{}

func (noopCountryResolver) ResolveCountry(string) string { return "" }

// NewCountryResolver opens the configured MaxMind database. Without one, or
// when it cannot be opened, countries are only taken from request headers.
func NewCountryResolver(c *conf.Data, logger log.Logger) (domain.CountryResolver, func()) {
	helper := log.NewHelper(logger)
	if c == nil || c.GeoipDatabase == "" {
		return noopCountryResolver{}, func() {}
	}
	db, err := geoip2.Open(c.GeoipDatabase)
	if err != nil {
		helper.Warnf("geoip database %s unavailable, country lookup disabled: %v", c.GeoipDatabase, err)
		return noopCountryResolver{}, func() {}
	}
	return &geoIPResolver{db: db}, func() {
		if err := db.Close(); err != nil {
			helper.Error(err)
		}
	}
}

func (g *geoIPResolver) ResolveCountry(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsPrivate() || parsed.IsLoopback() {
		return ""
	}
	record, err := g.db.Country(parsed)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}
