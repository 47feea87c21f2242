package biz

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-shortlinks/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// maxInsertAttempts bounds retries when a generated code is free in the
	// key-value store but already used by a relational record.
	maxInsertAttempts = 3
)

// CreateLinkInput is the body of a create call.
type CreateLinkInput struct {
	DestinationURL string
	ShortCode      string
	Title          *string
	ExpiresAt      *time.Time
	Tags           []string
}

// LinkPatch lists the fields an update touches. Nil fields are left alone.
type LinkPatch struct {
	DestinationURL *string
	// Title set to an empty string clears it.
	Title          *string
	ExpiresAt      *time.Time
	ClearExpiresAt bool
	Status         *domain.LinkStatus
	Tags           *[]string
}

func (p *LinkPatch) editsContent() bool {
	return p.DestinationURL != nil || p.Title != nil || p.ExpiresAt != nil || p.ClearExpiresAt || p.Tags != nil
}

func (p *LinkPatch) empty() bool {
	return p.Status == nil && !p.editsContent()
}

// LinkPage is one page of a listing with the paging actually applied.
type LinkPage struct {
	Links    []*domain.Link
	Total    int
	Page     int
	PageSize int
}

// LinkAnalytics is the owner's view of a link's redirect history.
type LinkAnalytics struct {
	Link        *domain.Link
	TotalEvents int64
	Events      []*domain.AnalyticsEvent
}

// LinkDirectory owns every mutation of link records and keeps the key-value
// mapping in step. Writes that make a link redirectable go relational first;
// writes that stop redirects go key-value first.
type LinkDirectory struct {
	links     domain.LinkRepository
	mappings  domain.MappingStore
	blacklist domain.BlacklistRepository
	analytics domain.AnalyticsRepository
	alloc     *Allocator
	quota     *QuotaTracker

	now   func() time.Time
	newID func() (string, error)
	log   *log.Helper
}

// NewLinkDirectory .
func NewLinkDirectory(
	links domain.LinkRepository,
	mappings domain.MappingStore,
	blacklist domain.BlacklistRepository,
	analytics domain.AnalyticsRepository,
	alloc *Allocator,
	quota *QuotaTracker,
	logger log.Logger,
) *LinkDirectory {
	return &LinkDirectory{
		links:     links,
		mappings:  mappings,
		blacklist: blacklist,
		analytics: analytics,
		alloc:     alloc,
		quota:     quota,
		now:       time.Now,
		newID:     newLinkID,
		log:       log.NewHelper(logger),
	}
}

// storedTime matches the precision of a Postgres timestamptz.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func newLinkID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Create validates the input, reserves quota, allocates a code, inserts the
// record and then writes the mapping.
func (d *LinkDirectory) Create(ctx context.Context, actor *domain.Actor, in *CreateLinkInput) (*domain.Link, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	now := storedTime(d.now())

	link, err := d.newLink(actor, in, now)
	if err != nil {
		return nil, err
	}
	if err := d.checkBlacklist(ctx, link.DestinationURL); err != nil {
		return nil, err
	}

	res, err := d.quota.CheckAndReserve(ctx, actor.OrgID)
	if err != nil {
		return nil, err
	}

	requested := strings.TrimSpace(in.ShortCode)
	for attempt := 1; ; attempt++ {
		code, err := d.alloc.Allocate(ctx, requested)
		if err != nil {
			return nil, err
		}
		link.ShortCode = code

		err = d.links.Insert(ctx, link)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrDuplicateShortCode) {
			return nil, domain.StorageError("insert link", err)
		}
		if requested != "" {
			return nil, domain.ErrConflict
		}
		if attempt >= maxInsertAttempts {
			return nil, domain.ErrAllocationExhausted
		}
	}

	if err := d.quota.Commit(ctx, res); err != nil {
		d.log.WithContext(ctx).Warnf("link %s created but monthly counter for %s not incremented: %v", link.ID, actor.OrgID, err)
	}

	if err := d.syncMapping(ctx, link, now); err != nil {
		d.log.WithContext(ctx).Errorw(
			"msg", "partial write: link stored without redirect mapping",
			"link_id", link.ID,
			"short_code", link.ShortCode,
			"error", err,
		)
		return nil, domain.PartialWriteError(link.ID, err)
	}

	d.log.WithContext(ctx).Infof("created link %s (%s) for org %s", link.ID, link.ShortCode, link.OrgID)
	return link, nil
}

func (d *LinkDirectory) newLink(actor *domain.Actor, in *CreateLinkInput, now time.Time) (*domain.Link, error) {
	if _, err := validateDestination(in.DestinationURL); err != nil {
		return nil, err
	}
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	if err := validateExpiry(in.ExpiresAt, now); err != nil {
		return nil, err
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	id, err := d.newID()
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if in.ExpiresAt != nil {
		t := storedTime(*in.ExpiresAt)
		expiresAt = &t
	}
	var title *string
	if in.Title != nil && *in.Title != "" {
		title = in.Title
	}

	return &domain.Link{
		ID:             id,
		OrgID:          actor.OrgID,
		DestinationURL: in.DestinationURL,
		Title:          title,
		CreatedBy:      actor.UserID,
		CreatedAt:      now,
		ExpiresAt:      expiresAt,
		Status:         domain.LinkStatusActive,
		ClickCount:     0,
		Tags:           tags,
	}, nil
}

func (d *LinkDirectory) checkBlacklist(ctx context.Context, destination string) error {
	u, err := validateDestination(destination)
	if err != nil {
		return err
	}
	listed, err := d.blacklist.AnyBlacklisted(ctx, destinationDomains(u))
	if err != nil {
		return domain.StorageError("check destination blacklist", err)
	}
	if listed {
		return domain.ValidationError("destination_url", "destination domain is not allowed")
	}
	return nil
}

// Get returns a record visible to the actor. Soft deleted records stay
// readable by their organization.
func (d *LinkDirectory) Get(ctx context.Context, actor *domain.Actor, id string) (*domain.Link, error) {
	link, err := d.links.Get(ctx, id)
	if err != nil {
		return nil, domain.StorageError("get link", err)
	}
	if link == nil || !actor.CanView(link) {
		return nil, domain.ErrLinkNotFound
	}
	return link, nil
}

// List pages through the actor's organization.
func (d *LinkDirectory) List(ctx context.Context, actor *domain.Actor, filter domain.ListFilter) (*LinkPage, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	filter.OrgID = actor.OrgID
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ValidationError("status", "unknown status %q", filter.Status)
	}
	if filter.Status == domain.LinkStatusDeleted {
		filter.IncludeDeleted = true
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}

	links, total, err := d.links.List(ctx, filter)
	if err != nil {
		return nil, domain.StorageError("list links", err)
	}
	return &LinkPage{Links: links, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// Update applies a patch. Destination, expiry and status changes reach both
// stores in the same call.
func (d *LinkDirectory) Update(ctx context.Context, actor *domain.Actor, id string, patch *LinkPatch) (*domain.Link, error) {
	cur, err := d.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == domain.LinkStatusDeleted {
		return nil, domain.ValidationError("status", "link has been deleted")
	}
	if patch.editsContent() && !actor.CanManage(cur) {
		return nil, domain.ErrPermissionDenied
	}
	if patch.empty() {
		if !actor.CanManage(cur) {
			return nil, domain.ErrPermissionDenied
		}
		return cur, nil
	}

	now := storedTime(d.now())
	next := cur.Clone()

	if patch.Status != nil {
		if err := domain.CanTransition(actor, cur, *patch.Status); err != nil {
			return nil, err
		}
		next.Status = *patch.Status
	}
	if patch.DestinationURL != nil && *patch.DestinationURL != cur.DestinationURL {
		if err := d.checkBlacklist(ctx, *patch.DestinationURL); err != nil {
			return nil, err
		}
		next.DestinationURL = *patch.DestinationURL
	}
	if patch.Title != nil {
		if err := validateTitle(patch.Title); err != nil {
			return nil, err
		}
		next.Title = patch.Title
		if *patch.Title == "" {
			next.Title = nil
		}
	}
	switch {
	case patch.ClearExpiresAt:
		next.ExpiresAt = nil
	case patch.ExpiresAt != nil:
		if err := validateExpiry(patch.ExpiresAt, now); err != nil {
			return nil, err
		}
		t := storedTime(*patch.ExpiresAt)
		next.ExpiresAt = &t
	}
	if patch.Tags != nil {
		tags, err := normalizeTags(*patch.Tags)
		if err != nil {
			return nil, err
		}
		next.Tags = tags
	}

	next.UpdatedAt = &now
	if err := d.commit(ctx, next, now); err != nil {
		return nil, err
	}
	return next, nil
}

// SetStatus moves a link through the status state machine.
func (d *LinkDirectory) SetStatus(ctx context.Context, actor *domain.Actor, id string, status domain.LinkStatus) (*domain.Link, error) {
	cur, err := d.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := domain.CanTransition(actor, cur, status); err != nil {
		return nil, err
	}
	if cur.Status == status {
		return cur, nil
	}

	now := storedTime(d.now())
	next := cur.Clone()
	next.Status = status
	next.UpdatedAt = &now
	if err := d.commit(ctx, next, now); err != nil {
		return nil, err
	}
	d.log.WithContext(ctx).Infof("link %s moved from %s to %s by %s", id, cur.Status, status, actor.UserID)
	return next, nil
}

// SoftDelete removes the mapping and then marks the record deleted. The
// relational row and its analytics stay for reporting.
func (d *LinkDirectory) SoftDelete(ctx context.Context, actor *domain.Actor, id string) (*domain.Link, error) {
	cur, err := d.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := domain.CanDelete(actor, cur); err != nil {
		return nil, err
	}

	if err := d.mappings.Delete(ctx, cur.ShortCode); err != nil {
		return nil, domain.StorageError("delete redirect mapping", err)
	}
	if cur.Status == domain.LinkStatusDeleted {
		return cur, nil
	}

	now := storedTime(d.now())
	next := cur.Clone()
	next.Status = domain.LinkStatusDeleted
	next.DeletedAt = &now
	next.UpdatedAt = &now
	if err := d.links.Update(ctx, next); err != nil {
		return nil, domain.StorageError("soft delete link", err)
	}
	d.log.WithContext(ctx).Infof("link %s (%s) deleted by %s", id, cur.ShortCode, actor.UserID)
	return next, nil
}

// Analytics returns the click count and recent events of a link.
func (d *LinkDirectory) Analytics(ctx context.Context, actor *domain.Actor, id string, limit int) (*LinkAnalytics, error) {
	link, err := d.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	total, err := d.analytics.CountEvents(ctx, link.ID)
	if err != nil {
		return nil, domain.StorageError("count analytics events", err)
	}
	events, err := d.analytics.ListEvents(ctx, link.ID, limit)
	if err != nil {
		return nil, domain.StorageError("list analytics events", err)
	}
	return &LinkAnalytics{Link: link, TotalEvents: total, Events: events}, nil
}

// BlacklistDomain is the moderation boundary's entry point for blacklist entries.
func (d *LinkDirectory) BlacklistDomain(ctx context.Context, actor *domain.Actor, rawDomain, reason string) (string, error) {
	if !actor.IsModerator() {
		return "", domain.ErrPermissionDenied
	}
	host, err := normalizeDomain(rawDomain)
	if err != nil {
		return "", err
	}
	if err := d.blacklist.Add(ctx, host, reason); err != nil {
		return "", domain.StorageError("add blacklist entry", err)
	}
	d.log.WithContext(ctx).Infof("domain %s blacklisted by %s", host, actor.UserID)
	return host, nil
}

// commit writes next to both stores in the order that never exposes a
// redirect the relational store does not back.
func (d *LinkDirectory) commit(ctx context.Context, next *domain.Link, now time.Time) error {
	if !next.IsRedirectable(now) {
		if err := d.syncMapping(ctx, next, now); err != nil {
			return domain.StorageError("update redirect mapping", err)
		}
		if err := d.links.Update(ctx, next); err != nil {
			return domain.StorageError("update link", err)
		}
		return nil
	}

	if err := d.links.Update(ctx, next); err != nil {
		return domain.StorageError("update link", err)
	}
	if err := d.syncMapping(ctx, next, now); err != nil {
		d.log.WithContext(ctx).Errorw(
			"msg", "partial write: link updated but redirect mapping is stale",
			"link_id", next.ID,
			"short_code", next.ShortCode,
			"error", err,
		)
		return domain.PartialWriteError(next.ID, err)
	}
	return nil
}

// syncMapping puts or removes the key-value mapping to match the record.
func (d *LinkDirectory) syncMapping(ctx context.Context, link *domain.Link, now time.Time) error {
	if link.KeepsMapping(now) {
		return d.mappings.Put(ctx, link.ShortCode, link.Mapping())
	}
	return d.mappings.Delete(ctx, link.ShortCode)
}
