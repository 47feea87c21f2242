package biz

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go-shortlinks/internal/conf"
	"go-shortlinks/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createLink(t *testing.T, e *testEnv, actor *domain.Actor, in *CreateLinkInput) *domain.Link {
	t.Helper()
	link, err := e.dir.Create(context.Background(), actor, in)
	require.NoError(t, err)
	return link
}

func TestLinkDirectory_Create(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)
	expires := testNow.Add(24 * time.Hour)

	link, err := e.dir.Create(ctx, alice, &CreateLinkInput{
		DestinationURL: "https://example.com/x",
		Title:          ptr("Example"),
		ExpiresAt:      &expires,
		Tags:           []string{" go ", "go", "", "docs"},
	})
	require.NoError(t, err)

	assert.Regexp(t, `^[0-9A-Za-z]{6}$`, link.ShortCode)
	assert.Equal(t, domain.LinkStatusActive, link.Status)
	assert.Zero(t, link.ClickCount)
	assert.Equal(t, "acme", link.OrgID)
	assert.Equal(t, "alice", link.CreatedBy)
	assert.Equal(t, []string{"go", "docs"}, link.Tags)
	assert.True(t, testNow.Equal(link.CreatedAt))

	stored := e.links.get(link.ID)
	require.NotNil(t, stored)
	assert.Equal(t, link.ShortCode, stored.ShortCode)

	m := e.mappings.get(link.ShortCode)
	require.NotNil(t, m)
	assert.Equal(t, "https://example.com/x", m.DestinationURL)
	assert.Equal(t, link.ID, m.LinkID)
	assert.True(t, m.IsActive)
	require.NotNil(t, m.ExpiresAt)
	assert.True(t, expires.Equal(*m.ExpiresAt))

	assert.Equal(t, int64(1), e.quotaRepo.counters["acme/2026-05"])
}

func TestLinkDirectory_CreateValidation(t *testing.T) {
	past := testNow.Add(-time.Second)

	tests := []struct {
		name  string
		input *CreateLinkInput
	}{
		{name: "javascript scheme", input: &CreateLinkInput{DestinationURL: "javascript:alert(1)"}},
		{name: "ftp scheme", input: &CreateLinkInput{DestinationURL: "ftp://files.example.com/a"}},
		{name: "empty destination", input: &CreateLinkInput{DestinationURL: ""}},
		{name: "not a url", input: &CreateLinkInput{DestinationURL: "example dot com"}},
		{name: "destination too long", input: &CreateLinkInput{DestinationURL: "https://example.com/" + strings.Repeat("a", 2048)}},
		{name: "title too long", input: &CreateLinkInput{DestinationURL: "https://example.com", Title: ptr(strings.Repeat("é", 256))}},
		{name: "expiry in the past", input: &CreateLinkInput{DestinationURL: "https://example.com", ExpiresAt: &past}},
		{name: "reserved code", input: &CreateLinkInput{DestinationURL: "https://example.com", ShortCode: "Admin"}},
		{name: "code with symbols", input: &CreateLinkInput{DestinationURL: "https://example.com", ShortCode: "my_code"}},
		{name: "too many tags", input: &CreateLinkInput{DestinationURL: "https://example.com", Tags: strings.Split("a b c d e f g h i j k l m n o p q r s t u", " ")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, nil)
			_, err := e.dir.Create(context.Background(), alice, tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
			assert.Zero(t, e.links.inserts)
			assert.Empty(t, e.quotaRepo.counters)
		})
	}
}

func TestLinkDirectory_CreateRequestedCodeTwice(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)

	first, err := e.dir.Create(ctx, alice, &CreateLinkInput{DestinationURL: "https://github.com", ShortCode: "github"})
	require.NoError(t, err)
	assert.Equal(t, "github", first.ShortCode)

	_, err = e.dir.Create(ctx, bob, &CreateLinkInput{DestinationURL: "https://github.com/other", ShortCode: "github"})
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.Equal(t, 1, e.links.inserts)
}

func TestLinkDirectory_CreateRelationalDuplicate(t *testing.T) {
	ctx := context.Background()

	t.Run("requested code", func(t *testing.T) {
		e := newTestEnv(t, nil)
		e.links.put(&domain.Link{ID: "old", OrgID: "acme", ShortCode: "github", Status: domain.LinkStatusBlocked})

		_, err := e.dir.Create(ctx, alice, &CreateLinkInput{DestinationURL: "https://github.com", ShortCode: "github"})
		assert.True(t, errors.Is(err, domain.ErrConflict))
	})

	t.Run("generated code is retried", func(t *testing.T) {
		e := newTestEnv(t, nil)
		e.links.put(&domain.Link{ID: "old", OrgID: "acme", ShortCode: "dup001", Status: domain.LinkStatusDeleted})
		e.alloc.generate = sequence("dup001", "new001")

		link, err := e.dir.Create(ctx, alice, &CreateLinkInput{DestinationURL: "https://example.com"})
		require.NoError(t, err)
		assert.Equal(t, "new001", link.ShortCode)
	})

	t.Run("generated code keeps colliding", func(t *testing.T) {
		e := newTestEnv(t, nil)
		e.links.put(&domain.Link{ID: "old", OrgID: "acme", ShortCode: "dup001", Status: domain.LinkStatusDeleted})
		e.alloc.generate = sequence("dup001")

		_, err := e.dir.Create(ctx, alice, &CreateLinkInput{DestinationURL: "https://example.com"})
		assert.True(t, errors.Is(err, domain.ErrAllocationExhausted))
	})
}

func TestLinkDirectory_CreateQuotaExceeded(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, &conf.Shortener{Quota: &conf.Quota{DefaultMonthlyLimit: ptr[int64](1)}})

	createLink(t, e, alice, &CreateLinkInput{DestinationURL: "https://example.com/1"})
	_, err := e.dir.Create(ctx, bob, &CreateLinkInput{DestinationURL: "https://example.com/2"})
	assert.True(t, errors.Is(err, domain.ErrQuotaExceeded))
	assert.Equal(t, 1, e.links.inserts)

	// other organizations have their own allowance
	createLink(t, e, mallory, &CreateLinkInput{DestinationURL: "https://example.com/3"})
}

func TestLinkDirectory_CreatePartialWrite(t *testing.T) {
	e := newTestEnv(t, nil)
	e.mappings.putErr = errors.New("READONLY You can't write against a read only replica")

	_, err := e.dir.Create(context.Background(), alice, &CreateLinkInput{DestinationURL: "https://example.com", ShortCode: "partial"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPartialWrite))

	stored, _ := e.links.GetByShortCode(context.Background(), "partial")
	require.NotNil(t, stored)
	assert.Equal(t, domain.LinkStatusActive, stored.Status)
	assert.Nil(t, e.mappings.get("partial"))
}

func TestLinkDirectory_CreateStorageFailure(t *testing.T) {
	e := newTestEnv(t, nil)
	e.links.insertErr = errors.New("connection reset by peer")

	_, err := e.dir.Create(context.Background(), alice, &CreateLinkInput{DestinationURL: "https://example.com"})
	assert.True(t, errors.Is(err, domain.ErrStorage))
	assert.Empty(t, e.mappings.data)
	assert.Empty(t, e.quotaRepo.counters)
}

func TestLinkDirectory_Blacklist(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)

	_, err := e.dir.BlacklistDomain(ctx, alice, "evil-phish.com", "phishing")
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))

	_, err = e.dir.BlacklistDomain(ctx, moderator, "not a host!", "")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	host, err := e.dir.BlacklistDomain(ctx, moderator, " Evil-Phish.COM. ", "phishing")
	require.NoError(t, err)
	assert.Equal(t, "evil-phish.com", host)

	for _, dest := range []string{"https://evil-phish.com/login", "http://login.EVIL-phish.com:8080/x"} {
		_, err = e.dir.Create(ctx, alice, &CreateLinkInput{DestinationURL: dest})
		assert.True(t, errors.Is(err, domain.ErrValidation), dest)
	}

	link := createLink(t, e, alice, &CreateLinkInput{DestinationURL: "https://notevil-phish.com/ok"})
	_, err = e.dir.Update(ctx, alice, link.ID, &LinkPatch{DestinationURL: ptr("https://www.evil-phish.com/")})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, "https://notevil-phish.com/ok", e.mappings.get(link.ShortCode).DestinationURL)
}

func TestLinkDirectory_GetVisibility(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)
	link := createLink(t, e, alice, &CreateLinkInput{DestinationURL: "https://example.com"})

	for _, actor := range []*domain.Actor{alice, bob, acmeAdmin, moderator} {
		got, err := e.dir.Get(ctx, actor, link.ID)
		require.NoError(t, err, actor.UserID)
		assert.Equal(t, link.ID, got.ID)
	}

	_, err := e.dir.Get(ctx, mallory, link.ID)
	assert.True(t, errors.Is(err, domain.ErrLinkNotFound))

	_, err = e.dir.Get(ctx, alice, "missing")
	assert.True(t, errors.Is(err, domain.ErrLinkNotFound))

	e.links.getErr = errors.New("timeout")
	_, err = e.dir.Get(ctx, alice, link.ID)
	assert.True(t, errors.Is(err, domain.ErrStorage))
}

func TestLinkDirectory_Update(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)
	expires := testNow.Add(time.Hour)
	link := createLink(t, e, alice, &CreateLinkInput{
		DestinationURL: "https://example.com/old",
		Title:          ptr("Old"),
		ExpiresAt:      &expires,
	})

	updated, err := e.dir.Update(ctx, alice, link.ID, &LinkPatch{
		DestinationURL: ptr("https://example.com/new"),
		Title:          ptr(""),
		ClearExpiresAt: true,
		Tags:           &[]string{"launch"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/new", updated.DestinationURL)
	assert.Nil(t, updated.Title)
	assert.Nil(t, updated.ExpiresAt)
	assert.Equal(t, []string{"launch"}, updated.Tags)
	require.NotNil(t, updated.UpdatedAt)

	m := e.mappings.get(link.ShortCode)
	require.NotNil(t, m)
	assert.Equal(t, "https://example.com/new", m.DestinationURL)
	assert.Nil(t, m.ExpiresAt)

	stored := e.links.get(link.ID)
	assert.Equal(t, "https://example.com/new", stored.DestinationURL)
	assert.Equal(t, link.ShortCode, stored.ShortCode)
}

func TestLinkDirectory_UpdateRejected(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   *domain.Actor
		patch   *LinkPatch
		wantErr error
	}{
		{name: "colleague edits", actor: bob, patch: &LinkPatch{Title: ptr("mine now")}, wantErr: domain.ErrPermissionDenied},
		{name: "other org", actor: mallory, patch: &LinkPatch{Title: ptr("x")}, wantErr: domain.ErrLinkNotFound},
		{name: "bad destination", actor: alice, patch: &LinkPatch{DestinationURL: ptr("data:text/html,hi")}, wantErr: domain.ErrValidation},
		{name: "past expiry", actor: alice, patch: &LinkPatch{ExpiresAt: ptr(testNow.Add(-time.Hour))}, wantErr: domain.ErrValidation},
		{name: "status deleted", actor: alice, patch: &LinkPatch{Status: ptr(domain.LinkStatusDeleted)}, wantErr: domain.ErrValidation},
		{name: "member blocks", actor: alice, patch: &LinkPatch{Status: ptr(domain.LinkStatusBlocked)}, wantErr: domain.ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, nil)
			link := createLink(t, e, alice, &CreateLinkInput{DestinationURL: "https://example.com/keep"})

			_, err := e.dir.Update(ctx, tt.actor, link.ID, tt.patch)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, "https://example.com/keep", e.links.get(link.ID).DestinationURL)
			assert.True(t, e.mappings.get(link.ShortCode).IsActive)
		})
	}
}

func TestLinkDirectory_EmptyUpdate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   *domain.Actor
		wantErr error
	}{
		{name: "creator"},
		{name: "org admin", actor: acmeAdmin},
		{name: "colleague", actor: bob, wantErr: domain.ErrPermissionDenied},
		{name: "other org", actor: mallory, wantErr: domain.ErrLinkNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, nil)
			link := createLink(t, e, alice, &CreateLinkInput{DestinationURL: "https://example.com"})
			puts := e.mappings.puts
			actor := tt.actor
			if actor == nil {
				actor = alice
			}

			got, err := e.dir.Update(ctx, actor, link.ID, &LinkPatch{})
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, link.ID, got.ID)
			}
			assert.Nil(t, e.links.get(link.ID).UpdatedAt)
			assert.Equal(t, puts, e.mappings.puts)
		})
	}
}

func TestLinkDirectory_TimestampPrecision(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)
	e.clock.Advance(1500 * time.Nanosecond)
	expires := testNow.Add(time.Hour + 123456789*time.Nanosecond)

	link, err := e.dir.Create(ctx, alice, &CreateLinkInput{DestinationURL: "https://example.com", ExpiresAt: &expires})
	require.NoError(t, err)
	assert.Zero(t, link.CreatedAt.Nanosecond()%1000)
	require.NotNil(t, link.ExpiresAt)
	assert.True(t, expires.Truncate(time.Microsecond).Equal(*link.ExpiresAt))
	assert.True(t, e.mappings.get(link.ShortCode).ExpiresAt.Equal(*link.ExpiresAt))

	later := expires.Add(777 * time.Nanosecond)
	updated, err := e.dir.Update(ctx, alice, link.ID, &LinkPatch{ExpiresAt: &later})
	require.NoError(t, err)
	assert.Zero(t, updated.ExpiresAt.Nanosecond()%1000)
	assert.Zero(t, updated.UpdatedAt.Nanosecond()%1000)
}

func TestLinkDirectory_UpdateAfterExpiryDropsMapping(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)
	expires := testNow.Add(time.Hour)
	link := createLink(t, e, alice, &CreateLinkInput{DestinationURL: "https://example.com", ExpiresAt: &expires})

	e.clock.Advance(2 * time.Hour)
	_, err := e.dir.Update(ctx, alice, link.ID, &LinkPatch{Title: ptr("late edit")})
	require.NoError(t, err)
	assert.Nil(t, e.mappings.get(link.ShortCode))
}

func TestLinkDirectory_SetStatus(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)
	link := createLink(t, e, alice, &CreateLinkInput{DestinationURL: "https://example.com"})

	disabled, err := e.dir.SetStatus(ctx, alice, link.ID, domain.LinkStatusDisabled)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkStatusDisabled, disabled.Status)
	m := e.mappings.get(link.ShortCode)
	require.NotNil(t, m, "disabled links keep their code occupied")
	assert.False(t, m.IsActive)

	_, err = e.dir.SetStatus(ctx, alice, link.ID, domain.LinkStatusActive)
	require.NoError(t, err)
	assert.True(t, e.mappings.get(link.ShortCode).IsActive)

	_, err = e.dir.SetStatus(ctx, acmeAdmin, link.ID, domain.LinkStatusBlocked)
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))

	blocked, err := e.dir.SetStatus(ctx, moderator, link.ID, domain.LinkStatusBlocked)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkStatusBlocked, blocked.Status)
	assert.Nil(t, e.mappings.get(link.ShortCode))

	_, err = e.dir.SetStatus(ctx, alice, link.ID, domain.LinkStatusActive)
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))

	_, err = e.dir.SetStatus(ctx, moderator, link.ID, domain.LinkStatusActive)
	require.NoError(t, err)
	assert.True(t, e.mappings.get(link.ShortCode).IsActive)
	assert.Equal(t, domain.LinkStatusActive, e.links.get(link.ID).Status)
}

func TestLinkDirectory_StoreOrdering(t *testing.T) {
	ctx := context.Background()

	t.Run("deactivation writes key-value first", func(t *testing.T) {
		e := newTestEnv(t, nil)
		link := createLink(t, e, alice, &CreateLinkInput{DestinationURL: "https://example.com"})
		e.mappings.putErr = errors.New("redis down")

		_, err := e.dir.SetStatus(ctx, alice, link.ID, domain.LinkStatusDisabled)
		assert.True(t, errors.Is(err, domain.ErrStorage))
		assert.Equal(t, domain.LinkStatusActive, e.links.get(link.ID).Status)
	})

	t.Run("deactivation stops when the relational write fails", func(t *testing.T) {
		e := newTestEnv(t, nil)
		link := createLink(t, e, alice, &CreateLinkInput{DestinationURL: "https://example.com"})
		e.links.updateErr = errors.New("deadlock detected")

		_, err := e.dir.SetStatus(ctx, moderator, link.ID, domain.LinkStatusBlocked)
		assert.True(t, errors.Is(err, domain.ErrStorage))
		// the redirect is already gone, which is the safe side
		assert.Nil(t, e.mappings.get(link.ShortCode))
	})

	t.Run("activation reports a partial write", func(t *testing.T) {
		e := newTestEnv(t, nil)
		link := createLink(t, e, alice, &CreateLinkInput{DestinationURL: "https://example.com"})
		_, err := e.dir.SetStatus(ctx, alice, link.ID, domain.LinkStatusDisabled)
		require.NoError(t, err)

		e.mappings.putErr = errors.New("redis down")
		_, err = e.dir.SetStatus(ctx, alice, link.ID, domain.LinkStatusActive)
		assert.True(t, errors.Is(err, domain.ErrPartialWrite))
		assert.Equal(t, domain.LinkStatusActive, e.links.get(link.ID).Status)
		assert.False(t, e.mappings.get(link.ShortCode).IsActive)
	})
}

func TestLinkDirectory_SoftDelete(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)
	link := createLink(t, e, alice, &CreateLinkInput{DestinationURL: "https://example.com"})

	_, err := e.dir.SoftDelete(ctx, bob, link.ID)
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))
	require.NotNil(t, e.mappings.get(link.ShortCode))

	deleted, err := e.dir.SoftDelete(ctx, alice, link.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkStatusDeleted, deleted.Status)
	require.NotNil(t, deleted.DeletedAt)
	assert.Nil(t, e.mappings.get(link.ShortCode))

	got, err := e.dir.Get(ctx, alice, link.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkStatusDeleted, got.Status)

	again, err := e.dir.SoftDelete(ctx, alice, link.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkStatusDeleted, again.Status)

	_, err = e.dir.Update(ctx, alice, link.ID, &LinkPatch{Title: ptr("revive")})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	_, err = e.dir.SetStatus(ctx, moderator, link.ID, domain.LinkStatusActive)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Nil(t, e.mappings.get(link.ShortCode))
}

func TestLinkDirectory_SoftDeleteKeyValueFailure(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)
	link := createLink(t, e, alice, &CreateLinkInput{DestinationURL: "https://example.com"})
	e.mappings.deleteErr = errors.New("redis down")

	_, err := e.dir.SoftDelete(ctx, alice, link.ID)
	assert.True(t, errors.Is(err, domain.ErrStorage))
	assert.Equal(t, domain.LinkStatusActive, e.links.get(link.ID).Status)
}

func TestLinkDirectory_List(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)
	first := createLink(t, e, alice, &CreateLinkInput{DestinationURL: "https://example.com/1"})
	second := createLink(t, e, bob, &CreateLinkInput{DestinationURL: "https://example.com/2"})
	third := createLink(t, e, alice, &CreateLinkInput{DestinationURL: "https://example.com/3"})
	createLink(t, e, mallory, &CreateLinkInput{DestinationURL: "https://example.com/other-org"})
	_, err := e.dir.SoftDelete(ctx, alice, first.ID)
	require.NoError(t, err)

	tests := []struct {
		name      string
		filter    domain.ListFilter
		wantIDs   []string
		wantTotal int
		wantSize  int
	}{
		{name: "default hides deleted", wantIDs: []string{third.ID, second.ID}, wantTotal: 2, wantSize: 20},
		{name: "include deleted", filter: domain.ListFilter{IncludeDeleted: true}, wantIDs: []string{third.ID, second.ID, first.ID}, wantTotal: 3, wantSize: 20},
		{name: "only deleted", filter: domain.ListFilter{Status: domain.LinkStatusDeleted}, wantIDs: []string{first.ID}, wantTotal: 1, wantSize: 20},
		{name: "second page", filter: domain.ListFilter{Page: 2, PageSize: 1}, wantIDs: []string{second.ID}, wantTotal: 2, wantSize: 1},
		{name: "page size capped", filter: domain.ListFilter{PageSize: 1000}, wantIDs: []string{third.ID, second.ID}, wantTotal: 2, wantSize: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := e.dir.List(ctx, alice, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(page.Links))
			for _, l := range page.Links {
				ids = append(ids, l.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantTotal, page.Total)
			assert.Equal(t, tt.wantSize, page.PageSize)
		})
	}

	_, err = e.dir.List(ctx, alice, domain.ListFilter{Status: "archived"})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestLinkDirectory_Analytics(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)
	link := createLink(t, e, alice, &CreateLinkInput{DestinationURL: "https://example.com", ShortCode: "stats1"})

	for _, ref := range []string{"https://news.example", ""} {
		_, err := e.resolver.Resolve(ctx, &RedirectRequest{ShortCode: "stats1", ClientIP: "192.0.2.1", Referrer: ref})
		require.NoError(t, err)
	}

	a, err := e.dir.Analytics(ctx, bob, link.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), a.Link.ClickCount)
	assert.Equal(t, int64(2), a.TotalEvents)
	require.Len(t, a.Events, 2)
	assert.Nil(t, a.Events[0].Referrer)
	require.NotNil(t, a.Events[1].Referrer)
	assert.Equal(t, "https://news.example", *a.Events[1].Referrer)

	_, err = e.dir.Analytics(ctx, mallory, link.ID, 10)
	assert.True(t, errors.Is(err, domain.ErrLinkNotFound))
}
