package service

import (
	"context"

	"go-shortlinks/internal/biz"

	"github.com/go-kratos/kratos/v2/transport/http"
)

const (
	OperationAdminBlacklistDomain = "/shortlinks.v1.Admin/BlacklistDomain"
	OperationAdminSetOrgQuota     = "/shortlinks.v1.Admin/SetOrgQuota"
)

type BlacklistRequest struct {
	Domain string `json:"domain"`
	Reason string `json:"reason,omitempty"`
}

type BlacklistReply struct {
	Domain string `json:"domain"`
}

type SetOrgQuotaRequest struct {
	OrgID            string `json:"-"`
	Tier             string `json:"tier"`
	MonthlyLinkLimit *int64 `json:"monthly_link_limit"`
}

type OrgQuotaReply struct {
	OrgID            string `json:"org_id"`
	Tier             string `json:"tier"`
	MonthlyLinkLimit *int64 `json:"monthly_link_limit"`
}

// AdminService is the moderation and billing boundary.
type AdminService struct {
	dir   *biz.LinkDirectory
	quota *biz.QuotaTracker
}

func NewAdminService(dir *biz.LinkDirectory, quota *biz.QuotaTracker) *AdminService {
	return &AdminService{dir: dir, quota: quota}
}

func (s *AdminService) BlacklistDomain(ctx context.Context, req *BlacklistRequest) (*BlacklistReply, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	host, err := s.dir.BlacklistDomain(ctx, actor, req.Domain, req.Reason)
	if err != nil {
		return nil, err
	}
	return &BlacklistReply{Domain: host}, nil
}

func (s *AdminService) SetOrgQuota(ctx context.Context, req *SetOrgQuotaRequest) (*OrgQuotaReply, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.quota.SetLimit(ctx, actor, req.OrgID, req.Tier, req.MonthlyLinkLimit); err != nil {
		return nil, err
	}
	return &OrgQuotaReply{OrgID: req.OrgID, Tier: req.Tier, MonthlyLinkLimit: req.MonthlyLinkLimit}, nil
}

func RegisterAdminHTTPServer(s *http.Server, srv *AdminService) {
	r := s.Route("/")
	r.POST("/api/admin/blacklist", adminBlacklistHandler(srv))
	r.PUT("/api/admin/orgs/{org_id}/quota", adminSetQuotaHandler(srv))
}

func adminBlacklistHandler(srv *AdminService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in BlacklistRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationAdminBlacklistDomain)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return srv.BlacklistDomain(ctx, req.(*BlacklistRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*BlacklistReply))
	}
}

func adminSetQuotaHandler(srv *AdminService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in SetOrgQuotaRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		in.OrgID = ctx.Vars().Get("org_id")
		http.SetOperation(ctx, OperationAdminSetOrgQuota)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return srv.SetOrgQuota(ctx, req.(*SetOrgQuotaRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*OrgQuotaReply))
	}
}
