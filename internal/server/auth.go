package server

import (
	"fmt"
	nethttp "net/http"
	"strings"

	"go-shortlinks/internal/biz"
	"go-shortlinks/internal/conf"
	"go-shortlinks/internal/domain"
	"go-shortlinks/internal/service"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/lo"
)

const apiPrefix = "/api/"

var knownRoles = []domain.Role{domain.RoleMember, domain.RoleAdmin, domain.RoleModerator, domain.RoleBilling}

// Claims is the token payload issued by the identity provider.
type Claims struct {
	OrgID string `json:"org_id"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// AuthFilter turns a bearer token into a domain.Actor for every /api/ request.
type AuthFilter struct {
	secret     []byte
	issuer     string
	limiter    *biz.Limiter
	policy     biz.Policy
	trustProxy bool
	log        *log.Helper
}

func NewAuthFilter(c *conf.Auth, srv *conf.Server, sc *conf.Shortener, limiter *biz.Limiter, logger log.Logger) *AuthFilter {
	f := &AuthFilter{
		limiter:    limiter,
		policy:     biz.NewPolicy(domain.RateLimitIP, "auth", sc.GetRateLimit().Auth),
		trustProxy: srv != nil && srv.TrustProxyHeaders,
		log:        log.NewHelper(logger),
	}
	if c != nil {
		f.secret = []byte(c.JwtSecret)
		f.issuer = c.Issuer
	}
	if len(f.secret) == 0 {
		f.log.Warn("auth.jwt_secret is empty, every /api/ request will be rejected")
	}
	return f
}

// Filter is a transport filter; paths outside /api/ pass through untouched.
func (f *AuthFilter) Filter(next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if !strings.HasPrefix(r.URL.Path, apiPrefix) {
			next.ServeHTTP(w, r)
			return
		}

		ip := service.ClientIP(r, f.trustProxy)
		if err := f.limiter.Allow(r.Context(), f.policy, ip); err != nil {
			writeProblem(w, r, errors.FromError(err))
			return
		}

		actor, err := f.authenticate(r)
		if err != nil {
			f.log.WithContext(r.Context()).Debugf("rejected credentials from %s: %v", ip, err)
			writeProblem(w, r, domain.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(domain.NewActorContext(r.Context(), actor)))
	})
}

func (f *AuthFilter) authenticate(r *nethttp.Request) (*domain.Actor, error) {
	if len(f.secret) == 0 {
		return nil, fmt.Errorf("no signing secret configured")
	}
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("missing bearer token")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if f.issuer != "" {
		opts = append(opts, jwt.WithIssuer(f.issuer))
	}
	var claims Claims
	if _, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
		return f.secret, nil
	}, opts...); err != nil {
		return nil, err
	}

	role := domain.Role(claims.Role)
	switch {
	case claims.Subject == "":
		return nil, fmt.Errorf("token has no subject")
	case claims.OrgID == "":
		return nil, fmt.Errorf("token has no org_id")
	case !lo.Contains(knownRoles, role):
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}
	return &domain.Actor{UserID: claims.Subject, OrgID: claims.OrgID, Role: role}, nil
}
