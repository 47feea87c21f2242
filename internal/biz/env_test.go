package biz

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go-shortlinks/internal/conf"
	"go-shortlinks/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
)

var (
	testNow = time.Date(2026, 5, 14, 10, 0, 0, 0, time.UTC)

	alice     = &domain.Actor{UserID: "alice", OrgID: "acme", Role: domain.RoleMember}
	bob       = &domain.Actor{UserID: "bob", OrgID: "acme", Role: domain.RoleMember}
	acmeAdmin = &domain.Actor{UserID: "carol", OrgID: "acme", Role: domain.RoleAdmin}
	mallory   = &domain.Actor{UserID: "mallory", OrgID: "globex", Role: domain.RoleAdmin}
	moderator = &domain.Actor{UserID: "mod", OrgID: "trust", Role: domain.RoleModerator}
	billing   = &domain.Actor{UserID: "bill", OrgID: "finance", Role: domain.RoleBilling}
)

// testEnv wires every use case over in-memory stores and one clock.
type testEnv struct {
	links     *memLinkRepo
	mappings  *memMappingStore
	analytics *memAnalytics
	quotaRepo *memQuotaRepo
	blacklist *memBlacklist
	counters  *memCounterStore
	clock     *fakeClock

	alloc      *Allocator
	limiter    *Limiter
	quota      *QuotaTracker
	dir        *LinkDirectory
	resolver   *Resolver
	reconciler *Reconciler
}

func newTestEnv(t *testing.T, c *conf.Shortener) *testEnv {
	t.Helper()
	if c == nil {
		c = &conf.Shortener{}
	}
	logger := log.DefaultLogger

	e := &testEnv{
		links:     newMemLinkRepo(),
		mappings:  newMemMappingStore(),
		quotaRepo: newMemQuotaRepo(),
		blacklist: newMemBlacklist(),
		counters:  newMemCounterStore(),
		clock:     newFakeClock(testNow),
	}
	e.analytics = newMemAnalytics(e.links)

	e.alloc = NewAllocator(e.mappings, NewReservedWords(c), c, logger)
	e.limiter = NewLimiter(e.counters, logger)
	e.limiter.now = e.clock.Now
	e.quota = NewQuotaTracker(e.quotaRepo, c, logger)
	e.quota.now = e.clock.Now
	e.dir = NewLinkDirectory(e.links, e.mappings, e.blacklist, e.analytics, e.alloc, e.quota, logger)
	e.dir.now = e.clock.Now
	e.dir.newID = sequentialIDs()
	e.resolver = NewResolver(e.links, e.mappings, e.analytics, e.limiter, c, logger)
	e.resolver.now = e.clock.Now
	e.reconciler = NewReconciler(e.links, e.mappings, c, logger)
	e.reconciler.now = e.clock.Now
	return e
}

// sequentialIDs yields ids that sort in creation order.
func sequentialIDs() func() (string, error) {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("link-%04d", n), nil
	}
}

func ptr[T any](v T) *T { return &v }
