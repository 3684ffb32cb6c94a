package lifecycle

import (
	"context"
	"time"

	"zonecore/internal/domain"
	"zonecore/internal/store"
	dErrors "zonecore/pkg/domain-errors"
)

const sweepBatch = 100

// Run executes the delete-lifecycle sweeps on a fixed schedule until the
// context ends. Deadlines live in the store, not in process timers, so
// transitions survive restarts.
func (e *Engine) Run(ctx context.Context, st store.Store, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.SweepRedemptions(ctx, st); err != nil {
				e.logger.Error("redemption sweep failed", "error", err)
			}
			if _, err := e.SweepPurges(ctx, st); err != nil {
				e.logger.Error("purge sweep failed", "error", err)
			}
		}
	}
}

// SweepRedemptions moves pendingDelete domains whose window elapsed into
// redemptionPeriod. Objects that lose their concurrency race are skipped;
// the next pass re-checks them, and re-checking an already-transitioned
// domain is a no-op.
func (e *Engine) SweepRedemptions(ctx context.Context, st store.Store) (int, error) {
	now := e.clock()
	due, err := st.Domains().ListRedeemDue(ctx, now, sweepBatch)
	if err != nil {
		return 0, store.Translate(err, "domain")
	}
	var moved int
	for _, stale := range due {
		err := st.RunInTx(ctx, func(ctx context.Context, s store.Stores) error {
			d, err := s.Domains().GetByName(ctx, stale.Name)
			if err != nil {
				return store.Translate(err, "domain")
			}
			if !d.Status.Has(domain.StatusPendingDelete) || d.RedeemAt.After(now) {
				return nil
			}
			d.Status.Remove(domain.StatusPendingDelete)
			d.Status.Add(domain.StatusRedemptionPeriod)
			d.RedeemAt = time.Time{}
			d.PurgeAt = now.Add(e.redemptionWindow)
			d.UpdatedAt = now
			if err := s.Domains().Update(ctx, d); err != nil {
				return store.Translate(err, "domain")
			}
			return nil
		})
		switch {
		case err == nil:
			moved++
			e.observeSweep("redemption")
			e.logger.Info("domain entered redemption", "name", stale.Name)
		case dErrors.Is(err, dErrors.CodeConcurrent), dErrors.Is(err, dErrors.CodeNotFound):
			e.logger.Debug("redemption sweep skipped object", "name", stale.Name, "error", err)
		default:
			return moved, err
		}
	}
	return moved, nil
}

// SweepPurges releases names whose redemption period elapsed without a
// restore.
func (e *Engine) SweepPurges(ctx context.Context, st store.Store) (int, error) {
	now := e.clock()
	due, err := st.Domains().ListPurgeDue(ctx, now, sweepBatch)
	if err != nil {
		return 0, store.Translate(err, "domain")
	}
	var purged int
	for _, stale := range due {
		err := st.RunInTx(ctx, func(ctx context.Context, s store.Stores) error {
			d, err := s.Domains().GetByName(ctx, stale.Name)
			if err != nil {
				return store.Translate(err, "domain")
			}
			if !d.Status.Has(domain.StatusRedemptionPeriod) || d.PurgeAt.After(now) {
				return nil
			}
			if err := s.Domains().Purge(ctx, d.Name, d.Version); err != nil {
				return store.Translate(err, "domain")
			}
			return nil
		})
		switch {
		case err == nil:
			purged++
			e.observeSweep("purge")
			e.logger.Info("domain purged", "name", stale.Name)
		case dErrors.Is(err, dErrors.CodeConcurrent), dErrors.Is(err, dErrors.CodeNotFound):
			e.logger.Debug("purge sweep skipped object", "name", stale.Name, "error", err)
		default:
			return purged, err
		}
	}
	return purged, nil
}

func (e *Engine) observeSweep(kind string) {
	if e.metrics != nil {
		e.metrics.SweepTransitions.WithLabelValues(kind).Inc()
	}
}
