package biz

import (
	"context"
	"sync"
	"time"

	"go-shortlinks/internal/conf"
	"go-shortlinks/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
)

const defaultReconcileBatch = 200

// ReconcileReport summarises one pass.
type ReconcileReport struct {
	Checked  int
	Repaired int
	Removed  int
}

// Reconciler periodically compares relational records with the key-value
// mappings and repairs drift left by partial writes.
type Reconciler struct {
	links    domain.LinkRepository
	mappings domain.MappingStore
	interval time.Duration
	batch    int
	now      func() time.Time
	log      *log.Helper

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReconciler .
func NewReconciler(links domain.LinkRepository, mappings domain.MappingStore, c *conf.Shortener, logger log.Logger) *Reconciler {
	r := &Reconciler{
		links:    links,
		mappings: mappings,
		batch:    defaultReconcileBatch,
		now:      time.Now,
		log:      log.NewHelper(logger),
	}
	if c != nil && c.Reconcile != nil {
		r.interval = c.Reconcile.Interval.AsDuration()
		if c.Reconcile.BatchSize > 0 {
			r.batch = c.Reconcile.BatchSize
		}
	}
	return r
}

// Start runs a pass every interval until Stop. A zero interval disables it.
func (r *Reconciler) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.log.Info("reconciler disabled")
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.run(ctx)
	r.log.Infof("reconciler started, interval %s", r.interval)
}

// Stop waits for the running pass to finish.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Reconciler) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := r.RunOnce(ctx)
			if err != nil {
				r.log.WithContext(ctx).Errorf("reconcile pass failed: %v", err)
				continue
			}
			if report.Repaired > 0 || report.Removed > 0 {
				r.log.WithContext(ctx).Warnf("reconcile pass checked=%d repaired=%d removed=%d",
					report.Checked, report.Repaired, report.Removed)
			}
		}
	}
}

// RunOnce walks every relational record, then every mapping key.
func (r *Reconciler) RunOnce(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}
	if err := r.reconcileRecords(ctx, report); err != nil {
		return report, err
	}
	if err := r.reconcileMappings(ctx, report); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Reconciler) reconcileRecords(ctx context.Context, report *ReconcileReport) error {
	after := ""
	for {
		links, err := r.links.ListAfter(ctx, after, r.batch)
		if err != nil {
			return err
		}
		for _, link := range links {
			if err := ctx.Err(); err != nil {
				return err
			}
			report.Checked++
			if err := r.reconcileLink(ctx, link, report); err != nil {
				r.log.WithContext(ctx).Errorf("reconcile link %s: %v", link.ID, err)
			}
		}
		if len(links) < r.batch {
			return nil
		}
		after = links[len(links)-1].ID
	}
}

func (r *Reconciler) reconcileLink(ctx context.Context, link *domain.Link, report *ReconcileReport) error {
	now := r.now()
	current, err := r.mappings.Get(ctx, link.ShortCode)
	if err != nil {
		return err
	}

	if !link.KeepsMapping(now) {
		if current == nil || current.LinkID != link.ID {
			return nil
		}
		if err := r.mappings.Delete(ctx, link.ShortCode); err != nil {
			return err
		}
		report.Removed++
		return nil
	}

	want := link.Mapping()
	if want.Equal(current) {
		return nil
	}

	// Re-read so a delete that landed during the pass is not undone.
	fresh, err := r.links.Get(ctx, link.ID)
	if err != nil {
		return err
	}
	if fresh == nil || !fresh.KeepsMapping(now) || !fresh.Mapping().Equal(want) {
		return nil
	}
	if err := r.mappings.Put(ctx, link.ShortCode, want); err != nil {
		return err
	}
	report.Repaired++
	return nil
}

func (r *Reconciler) reconcileMappings(ctx context.Context, report *ReconcileReport) error {
	var cursor uint64
	for {
		codes, next, err := r.mappings.Scan(ctx, cursor, int64(r.batch))
		if err != nil {
			return err
		}
		for _, code := range codes {
			if err := ctx.Err(); err != nil {
				return err
			}
			link, err := r.links.GetByShortCode(ctx, code)
			if err != nil {
				r.log.WithContext(ctx).Errorf("reconcile mapping %s: %v", code, err)
				continue
			}
			if link != nil && link.KeepsMapping(r.now()) {
				continue
			}
			if err := r.mappings.Delete(ctx, code); err != nil {
				r.log.WithContext(ctx).Errorf("remove orphan mapping %s: %v", code, err)
				continue
			}
			report.Removed++
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
