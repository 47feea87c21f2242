package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/transport/http"
)

const (
	OperationHealthLiveness  = "/shortlinks.v1.Health/Liveness"
	OperationHealthReadiness = "/shortlinks.v1.Health/Readiness"
)

// Pinger checks the backing stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthReply struct {
	Status string `json:"status"`
}

type HealthService struct {
	stores Pinger
}

func NewHealthService(stores Pinger) *HealthService {
	return &HealthService{stores: stores}
}

func (s *HealthService) Liveness(context.Context, *struct{}) (*HealthReply, error) {
	return &HealthReply{Status: "ok"}, nil
}

func (s *HealthService) Readiness(ctx context.Context, _ *struct{}) (*HealthReply, error) {
	if err := s.stores.Ping(ctx); err != nil {
		return nil, errors.ServiceUnavailable("NOT_READY", "backing stores unavailable").WithCause(err)
	}
	return &HealthReply{Status: "ready"}, nil
}

func RegisterHealthHTTPServer(s *http.Server, srv *HealthService) {
	r := s.Route("/")
	r.GET("/healthz", healthHandler(OperationHealthLiveness, srv.Liveness))
	r.GET("/readyz", healthHandler(OperationHealthReadiness, srv.Readiness))
}

func healthHandler(op string, check func(context.Context, *struct{}) (*HealthReply, error)) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		http.SetOperation(ctx, op)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return check(ctx, req.(*struct{}))
		})
		out, err := h(ctx, &struct{}{})
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*HealthReply))
	}
}
