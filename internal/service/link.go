package service

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"go-shortlinks/internal/biz"
	"go-shortlinks/internal/conf"
	"go-shortlinks/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/samber/lo"
)

const (
	OperationLinkCreateLink   = "/shortlinks.v1.Link/CreateLink"
	OperationLinkListLinks    = "/shortlinks.v1.Link/ListLinks"
	OperationLinkGetLink      = "/shortlinks.v1.Link/GetLink"
	OperationLinkUpdateLink   = "/shortlinks.v1.Link/UpdateLink"
	OperationLinkDeleteLink   = "/shortlinks.v1.Link/DeleteLink"
	OperationLinkGetAnalytics = "/shortlinks.v1.Link/GetAnalytics"
	OperationLinkGetUsage     = "/shortlinks.v1.Link/GetUsage"
)

type CreateLinkRequest struct {
	DestinationURL string     `json:"destination_url"`
	ShortCode      string     `json:"short_code,omitempty"`
	Title          *string    `json:"title,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
}

type ListLinksRequest struct {
	Page           int    `json:"page"`
	PageSize       int    `json:"page_size"`
	Status         string `json:"status"`
	IncludeDeleted bool   `json:"include_deleted"`
}

// UpdateLinkRequest keeps title and expires_at raw so an explicit null can
// clear them while an absent key leaves them alone.
type UpdateLinkRequest struct {
	ID             string          `json:"-"`
	DestinationURL *string         `json:"destination_url,omitempty"`
	Title          json.RawMessage `json:"title,omitempty"`
	ExpiresAt      json.RawMessage `json:"expires_at,omitempty"`
	Status         *string         `json:"status,omitempty"`
	Tags           *[]string       `json:"tags,omitempty"`
}

type LinkRequest struct {
	ID string `json:"id"`
}

type AnalyticsRequest struct {
	ID    string `json:"-"`
	Limit int    `json:"limit"`
}

type LinkInfo struct {
	ID             string     `json:"id"`
	OrgID          string     `json:"org_id"`
	ShortCode      string     `json:"short_code"`
	DestinationURL string     `json:"destination_url"`
	Title          *string    `json:"title"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
	ExpiresAt      *time.Time `json:"expires_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	Status         string     `json:"status"`
	ClickCount     int64      `json:"click_count"`
	Tags           []string   `json:"tags"`
}

type ListLinksReply struct {
	Links    []*LinkInfo `json:"links"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

type EventInfo struct {
	OccurredAt time.Time `json:"occurred_at"`
	Referrer   *string   `json:"referrer"`
	UserAgent  *string   `json:"user_agent"`
	Country    *string   `json:"country"`
}

type AnalyticsReply struct {
	LinkID      string       `json:"link_id"`
	ShortCode   string       `json:"short_code"`
	ClickCount  int64        `json:"click_count"`
	TotalEvents int64        `json:"total_events"`
	Events      []*EventInfo `json:"events"`
}

type UsageReply struct {
	OrgID            string `json:"org_id"`
	LinksThisMonth   int64  `json:"links_this_month"`
	MonthlyLinkLimit *int64 `json:"monthly_link_limit"`
}

// LinkService exposes the link directory to organization members.
type LinkService struct {
	dir          *biz.LinkDirectory
	quota        *biz.QuotaTracker
	limiter      *biz.Limiter
	createPolicy biz.Policy
	log          *log.Helper
}

func NewLinkService(
	dir *biz.LinkDirectory,
	quota *biz.QuotaTracker,
	limiter *biz.Limiter,
	c *conf.Shortener,
	logger log.Logger,
) *LinkService {
	return &LinkService{
		dir:          dir,
		quota:        quota,
		limiter:      limiter,
		createPolicy: biz.NewPolicy(domain.RateLimitUser, "", c.GetRateLimit().Create),
		log:          log.NewHelper(logger),
	}
}

func (s *LinkService) CreateLink(ctx context.Context, req *CreateLinkRequest) (*LinkInfo, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Allow(ctx, s.createPolicy, actor.UserID); err != nil {
		return nil, err
	}
	link, err := s.dir.Create(ctx, actor, &biz.CreateLinkInput{
		DestinationURL: req.DestinationURL,
		ShortCode:      req.ShortCode,
		Title:          req.Title,
		ExpiresAt:      req.ExpiresAt,
		Tags:           req.Tags,
	})
	if err != nil {
		return nil, err
	}
	return toLinkInfo(link), nil
}

func (s *LinkService) ListLinks(ctx context.Context, req *ListLinksRequest) (*ListLinksReply, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	filter := domain.ListFilter{
		Status:         domain.LinkStatus(req.Status),
		IncludeDeleted: req.IncludeDeleted,
		Page:           req.Page,
		PageSize:       req.PageSize,
	}
	page, err := s.dir.List(ctx, actor, filter)
	if err != nil {
		return nil, err
	}
	return &ListLinksReply{
		Links:    lo.Map(page.Links, func(l *domain.Link, _ int) *LinkInfo { return toLinkInfo(l) }),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}, nil
}

func (s *LinkService) GetLink(ctx context.Context, req *LinkRequest) (*LinkInfo, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	link, err := s.dir.Get(ctx, actor, req.ID)
	if err != nil {
		return nil, err
	}
	return toLinkInfo(link), nil
}

func (s *LinkService) UpdateLink(ctx context.Context, req *UpdateLinkRequest) (*LinkInfo, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	patch, err := req.patch()
	if err != nil {
		return nil, err
	}

	var link *domain.Link
	if onlyStatus(patch) {
		link, err = s.dir.SetStatus(ctx, actor, req.ID, *patch.Status)
	} else {
		link, err = s.dir.Update(ctx, actor, req.ID, patch)
	}
	if err != nil {
		return nil, err
	}
	return toLinkInfo(link), nil
}

func (s *LinkService) DeleteLink(ctx context.Context, req *LinkRequest) (*LinkInfo, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	link, err := s.dir.SoftDelete(ctx, actor, req.ID)
	if err != nil {
		return nil, err
	}
	return toLinkInfo(link), nil
}

func (s *LinkService) GetAnalytics(ctx context.Context, req *AnalyticsRequest) (*AnalyticsReply, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.dir.Analytics(ctx, actor, req.ID, req.Limit)
	if err != nil {
		return nil, err
	}
	return &AnalyticsReply{
		LinkID:      a.Link.ID,
		ShortCode:   a.Link.ShortCode,
		ClickCount:  a.Link.ClickCount,
		TotalEvents: a.TotalEvents,
		Events: lo.Map(a.Events, func(e *domain.AnalyticsEvent, _ int) *EventInfo {
			return &EventInfo{
				OccurredAt: e.OccurredAt,
				Referrer:   e.Referrer,
				UserAgent:  e.UserAgent,
				Country:    e.Country,
			}
		}),
	}, nil
}

func (s *LinkService) GetUsage(ctx context.Context, _ *struct{}) (*UsageReply, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	used, limit, err := s.quota.Usage(ctx, actor.OrgID)
	if err != nil {
		return nil, err
	}
	return &UsageReply{OrgID: actor.OrgID, LinksThisMonth: used, MonthlyLinkLimit: limit}, nil
}

func (r *UpdateLinkRequest) patch() (*biz.LinkPatch, error) {
	patch := &biz.LinkPatch{
		DestinationURL: r.DestinationURL,
		Tags:           r.Tags,
	}
	if r.Status != nil {
		st := domain.LinkStatus(*r.Status)
		patch.Status = &st
	}

	if len(r.Title) > 0 {
		if isNull(r.Title) {
			patch.Title = lo.ToPtr("")
		} else {
			var title string
			if err := json.Unmarshal(r.Title, &title); err != nil {
				return nil, domain.ValidationError("title", "title must be a string or null")
			}
			patch.Title = &title
		}
	}

	if len(r.ExpiresAt) > 0 {
		if isNull(r.ExpiresAt) {
			patch.ClearExpiresAt = true
		} else {
			var t time.Time
			if err := json.Unmarshal(r.ExpiresAt, &t); err != nil {
				return nil, domain.ValidationError("expires_at", "expires_at must be an RFC 3339 timestamp or null")
			}
			patch.ExpiresAt = &t
		}
	}
	return patch, nil
}

func onlyStatus(p *biz.LinkPatch) bool {
	return p.Status != nil && p.DestinationURL == nil && p.Title == nil &&
		p.ExpiresAt == nil && !p.ClearExpiresAt && p.Tags == nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func toLinkInfo(l *domain.Link) *LinkInfo {
	return &LinkInfo{
		ID:             l.ID,
		OrgID:          l.OrgID,
		ShortCode:      l.ShortCode,
		DestinationURL: l.DestinationURL,
		Title:          l.Title,
		CreatedBy:      l.CreatedBy,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
		ExpiresAt:      l.ExpiresAt,
		DeletedAt:      l.DeletedAt,
		Status:         string(l.Status),
		ClickCount:     l.ClickCount,
		Tags:           lo.Ternary(l.Tags == nil, []string{}, l.Tags),
	}
}

// RegisterLinkHTTPServer mounts the /api/links routes.
func RegisterLinkHTTPServer(s *http.Server, srv *LinkService) {
	r := s.Route("/")
	r.POST("/api/links", linkCreateHandler(srv))
	r.GET("/api/links", linkListHandler(srv))
	r.GET("/api/links/{id}", linkGetHandler(srv))
	r.PUT("/api/links/{id}", linkUpdateHandler(srv))
	r.DELETE("/api/links/{id}", linkDeleteHandler(srv))
	r.GET("/api/links/{id}/analytics", linkAnalyticsHandler(srv))
	r.GET("/api/usage", linkUsageHandler(srv))
}

func linkCreateHandler(srv *LinkService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in CreateLinkRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationLinkCreateLink)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return srv.CreateLink(ctx, req.(*CreateLinkRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*LinkInfo))
	}
}

func linkListHandler(srv *LinkService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ListLinksRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationLinkListLinks)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return srv.ListLinks(ctx, req.(*ListLinksRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*ListLinksReply))
	}
}

func linkGetHandler(srv *LinkService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		in := LinkRequest{ID: ctx.Vars().Get("id")}
		http.SetOperation(ctx, OperationLinkGetLink)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return srv.GetLink(ctx, req.(*LinkRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*LinkInfo))
	}
}

func linkUpdateHandler(srv *LinkService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in UpdateLinkRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		in.ID = ctx.Vars().Get("id")
		http.SetOperation(ctx, OperationLinkUpdateLink)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return srv.UpdateLink(ctx, req.(*UpdateLinkRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*LinkInfo))
	}
}

func linkDeleteHandler(srv *LinkService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		in := LinkRequest{ID: ctx.Vars().Get("id")}
		http.SetOperation(ctx, OperationLinkDeleteLink)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return srv.DeleteLink(ctx, req.(*LinkRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*LinkInfo))
	}
}

func linkAnalyticsHandler(srv *LinkService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in AnalyticsRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		in.ID = ctx.Vars().Get("id")
		http.SetOperation(ctx, OperationLinkGetAnalytics)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return srv.GetAnalytics(ctx, req.(*AnalyticsRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*AnalyticsReply))
	}
}

func linkUsageHandler(srv *LinkService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		http.SetOperation(ctx, OperationLinkGetUsage)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return srv.GetUsage(ctx, req.(*struct{}))
		})
		out, err := h(ctx, &struct{}{})
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*UsageReply))
	}
}
