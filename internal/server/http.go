package server

import (
	"go-shortlinks/internal/conf"
	"go-shortlinks/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(
	c *conf.Server,
	auth *AuthFilter,
	links *service.LinkService,
	admin *service.AdminService,
	health *service.HealthService,
	redirect *service.RedirectService,
	logger log.Logger,
) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
		),
		http.Filter(auth.Filter),
		http.ErrorEncoder(NewErrorEncoder(logger)),
	}
	if c != nil && c.Http != nil {
		if c.Http.Network != "" {
			opts = append(opts, http.Network(c.Http.Network))
		}
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if c.Http.Timeout != nil {
			opts = append(opts, http.Timeout(c.Http.Timeout.AsDuration()))
		}
	}
	srv := http.NewServer(opts...)
	service.RegisterHealthHTTPServer(srv, health)
	service.RegisterLinkHTTPServer(srv, links)
	service.RegisterAdminHTTPServer(srv, admin)
	// catch-all /{short_code} goes last so fixed paths win
	service.RegisterRedirectHTTPServer(srv, redirect)
	return srv
}
