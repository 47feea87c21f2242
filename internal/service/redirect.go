package service

import (
	"context"
	nethttp "net/http"
	"strings"

	"go-shortlinks/internal/biz"
	"go-shortlinks/internal/conf"
	"go-shortlinks/internal/domain"

	"github.com/go-kratos/kratos/v2/transport/http"
)

const OperationRedirectResolve = "/shortlinks.v1.Redirect/Resolve"

// countryHeader is set by Cloudflare; "XX" marks an unknown country.
const countryHeader = "CF-IPCountry"

// RedirectService serves GET /{short_code}.
type RedirectService struct {
	resolver   *biz.Resolver
	countries  domain.CountryResolver
	trustProxy bool
}

func NewRedirectService(resolver *biz.Resolver, countries domain.CountryResolver, c *conf.Server) *RedirectService {
	return &RedirectService{
		resolver:   resolver,
		countries:  countries,
		trustProxy: c != nil && c.TrustProxyHeaders,
	}
}

func (s *RedirectService) Resolve(ctx context.Context, req *biz.RedirectRequest) (*biz.Redirect, error) {
	return s.resolver.Resolve(ctx, req)
}

// requestFrom collects the request facts the resolver records with a click.
func (s *RedirectService) requestFrom(r *nethttp.Request, code string) *biz.RedirectRequest {
	ip := ClientIP(r, s.trustProxy)
	return &biz.RedirectRequest{
		ShortCode: code,
		ClientIP:  ip,
		Referrer:  r.Referer(),
		UserAgent: r.UserAgent(),
		Country:   s.country(r, ip),
	}
}

func (s *RedirectService) country(r *nethttp.Request, ip string) string {
	if c := strings.ToUpper(strings.TrimSpace(r.Header.Get(countryHeader))); c != "" && c != "XX" {
		return c
	}
	if s.countries == nil {
		return ""
	}
	return s.countries.ResolveCountry(ip)
}

// RegisterRedirectHTTPServer mounts the catch-all redirect route. It must be
// registered after every fixed single-segment path.
func RegisterRedirectHTTPServer(s *http.Server, srv *RedirectService) {
	r := s.Route("/")
	r.GET("/{short_code}", redirectHandler(srv))
}

func redirectHandler(srv *RedirectService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		in := srv.requestFrom(ctx.Request(), ctx.Vars().Get("short_code"))
		http.SetOperation(ctx, OperationRedirectResolve)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return srv.Resolve(ctx, req.(*biz.RedirectRequest))
		})
		out, err := h(ctx, in)
		if err != nil {
			return err
		}
		reply := out.(*biz.Redirect)
		w := ctx.Response()
		// clients must come back so deletes and expiry take effect
		w.Header().Set("Cache-Control", "private, no-store")
		nethttp.Redirect(w, ctx.Request(), reply.Location, reply.StatusCode)
		return nil
	}
}
