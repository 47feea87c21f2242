package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go-shortlinks/internal/domain"
)

// memLinkRepo is an in-memory relational store. Records are copied in and
// out so tests observe only what was written.
type memLinkRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.Link
	inserts int

	insertErr error
	getErr    error
	updateErr error
	listErr   error
}

func newMemLinkRepo() *memLinkRepo {
	return &memLinkRepo{byID: make(map[string]*domain.Link)}
}

func (m *memLinkRepo) Insert(_ context.Context, l *domain.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, existing := range m.byID {
		if existing.ShortCode == l.ShortCode {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateShortCode, l.ShortCode)
		}
	}
	m.inserts++
	m.byID[l.ID] = l.Clone()
	return nil
}

func (m *memLinkRepo) Get(_ context.Context, id string) (*domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	l, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return l.Clone(), nil
}

func (m *memLinkRepo) GetByShortCode(_ context.Context, code string) (*domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, l := range m.byID {
		if l.ShortCode == code {
			return l.Clone(), nil
		}
	}
	return nil, nil
}

func (m *memLinkRepo) Update(_ context.Context, l *domain.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	cur, ok := m.byID[l.ID]
	if !ok {
		return domain.ErrLinkNotFound
	}
	next := l.Clone()
	next.ClickCount = cur.ClickCount
	m.byID[l.ID] = next
	return nil
}

func (m *memLinkRepo) List(_ context.Context, f domain.ListFilter) ([]*domain.Link, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var matched []*domain.Link
	for _, l := range m.byID {
		if l.OrgID != f.OrgID {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if !f.IncludeDeleted && l.Status == domain.LinkStatusDeleted {
			continue
		}
		matched = append(matched, l.Clone())
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := len(matched)
	start := (f.Page - 1) * f.PageSize
	if start > total {
		start = total
	}
	end := min(start+f.PageSize, total)
	return matched[start:end], total, nil
}

func (m *memLinkRepo) ListAfter(_ context.Context, afterID string, limit int) ([]*domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var ids []string
	for id := range m.byID {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*domain.Link, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.byID[id].Clone())
	}
	return out, nil
}

func (m *memLinkRepo) put(l *domain.Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[l.ID] = l.Clone()
}

func (m *memLinkRepo) get(id string) *domain.Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.byID[id]; ok {
		return l.Clone()
	}
	return nil
}

type memMappingStore struct {
	mu   sync.Mutex
	data map[string]*domain.LinkMapping
	puts int

	getErr    error
	putErr    error
	deleteErr error
	existsErr error
	scanErr   error
}

func newMemMappingStore() *memMappingStore {
	return &memMappingStore{data: make(map[string]*domain.LinkMapping)}
}

func (m *memMappingStore) Get(_ context.Context, code string) (*domain.LinkMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[code]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (m *memMappingStore) Put(_ context.Context, code string, v *domain.LinkMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	cp := *v
	m.data[code] = &cp
	m.puts++
	return nil
}

func (m *memMappingStore) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.data, code)
	return nil
}

func (m *memMappingStore) CompareAndSwap(_ context.Context, code string, old, next *domain.LinkMapping) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return false, m.deleteErr
	}
	cur, ok := m.data[code]
	if !ok || !cur.Equal(old) {
		return false, nil
	}
	if next == nil {
		delete(m.data, code)
		return true, nil
	}
	cp := *next
	m.data[code] = &cp
	m.puts++
	return true, nil
}

func (m *memMappingStore) Exists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.data[code]
	return ok, nil
}

// Scan returns every key in one page.
func (m *memMappingStore) Scan(_ context.Context, _ uint64, _ int64) ([]string, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scanErr != nil {
		return nil, 0, m.scanErr
	}
	codes := make([]string, 0, len(m.data))
	for code := range m.data {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, 0, nil
}

func (m *memMappingStore) get(code string) *domain.LinkMapping {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[code]; ok {
		cp := *v
		return &cp
	}
	return nil
}

func (m *memMappingStore) set(code string, v *domain.LinkMapping) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.data[code] = &cp
}

// memAnalytics increments click counts on the shared link repo under its
// lock, mirroring the single relational transaction.
type memAnalytics struct {
	links *memLinkRepo

	mu        sync.Mutex
	events    []*domain.AnalyticsEvent
	recordErr error
	listErr   error
}

func newMemAnalytics(links *memLinkRepo) *memAnalytics {
	return &memAnalytics{links: links}
}

func (m *memAnalytics) RecordClick(_ context.Context, ev *domain.AnalyticsEvent) error {
	m.mu.Lock()
	err := m.recordErr
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.links.mu.Lock()
	l, ok := m.links.byID[ev.LinkID]
	if !ok || l.Status != domain.LinkStatusActive {
		m.links.mu.Unlock()
		return domain.ErrLinkNotFound
	}
	l.ClickCount++
	orgID := l.OrgID
	m.links.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ev
	cp.ID = int64(len(m.events) + 1)
	cp.OrgID = orgID
	m.events = append(m.events, &cp)
	return nil
}

func (m *memAnalytics) ListEvents(_ context.Context, linkID string, limit int) ([]*domain.AnalyticsEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*domain.AnalyticsEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].LinkID == linkID {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *memAnalytics) CountEvents(_ context.Context, linkID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return 0, m.listErr
	}
	var n int64
	for _, e := range m.events {
		if e.LinkID == linkID {
			n++
		}
	}
	return n, nil
}

func (m *memAnalytics) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

type orgTier struct {
	tier  string
	limit *int64
}

type memQuotaRepo struct {
	mu       sync.Mutex
	tiers    map[string]orgTier
	counters map[string]int64

	limitErr error
	countErr error
	incrErr  error
}

func newMemQuotaRepo() *memQuotaRepo {
	return &memQuotaRepo{
		tiers:    make(map[string]orgTier),
		counters: make(map[string]int64),
	}
}

func (m *memQuotaRepo) MonthlyLimit(_ context.Context, orgID string) (*int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limitErr != nil {
		return nil, false, m.limitErr
	}
	t, ok := m.tiers[orgID]
	return t.limit, ok, nil
}

func (m *memQuotaRepo) SetMonthlyLimit(_ context.Context, orgID, tier string, limit *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiers[orgID] = orgTier{tier: tier, limit: limit}
	return nil
}

func (m *memQuotaRepo) MonthlyCount(_ context.Context, orgID, ym string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.counters[orgID+"/"+ym], nil
}

func (m *memQuotaRepo) IncrementMonthlyCount(_ context.Context, orgID, ym string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrErr != nil {
		return m.incrErr
	}
	m.counters[orgID+"/"+ym]++
	return nil
}

type memBlacklist struct {
	mu      sync.Mutex
	domains map[string]string
	err     error
}

func newMemBlacklist(domains ...string) *memBlacklist {
	b := &memBlacklist{domains: make(map[string]string)}
	for _, d := range domains {
		b.domains[d] = ""
	}
	return b
}

func (b *memBlacklist) AnyBlacklisted(_ context.Context, domains []string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return false, b.err
	}
	for _, d := range domains {
		if _, ok := b.domains[strings.ToLower(d)]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (b *memBlacklist) Add(_ context.Context, d, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.domains[d] = reason
	return nil
}

type memCounterStore struct {
	mu   sync.Mutex
	data map[string]domain.RateLimitCounter
	ttls map[string]time.Duration

	getErr error
	setErr error
}

func newMemCounterStore() *memCounterStore {
	return &memCounterStore{
		data: make(map[string]domain.RateLimitCounter),
		ttls: make(map[string]time.Duration),
	}
}

func (m *memCounterStore) Get(_ context.Context, key string) (*domain.RateLimitCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memCounterStore) Set(_ context.Context, key string, c *domain.RateLimitCounter, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = *c
	m.ttls[key] = ttl
	return nil
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequence returns the given codes in order, then repeats the last one.
func sequence(codes ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[min(i, len(codes)-1)]
		i++
		return c, nil
	}
}
