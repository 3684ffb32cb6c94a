package transfer

import (
	"context"
	"time"

	"zonecore/internal/store"
	dErrors "zonecore/pkg/domain-errors"
)

const sweepBatch = 100

// Run auto-approves overdue transfers on a fixed schedule until the context
// ends. The deadline is store-persisted, so a restart never loses a pending
// resolution.
func (e *Engine) Run(ctx context.Context, st store.Store, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.SweepAutoApprovals(ctx, st); err != nil {
				e.logger.Error("transfer sweep failed", "error", err)
			}
		}
	}
}

// SweepAutoApprovals completes transfers whose window elapsed with no action
// from the losing registrar, exactly as an explicit approve would. Records
// that lost a concurrency race are skipped until the next pass.
func (e *Engine) SweepAutoApprovals(ctx context.Context, st store.Store) (int, error) {
	now := e.clock()
	due, err := st.Transfers().ListAutoApproveDue(ctx, now, sweepBatch)
	if err != nil {
		return 0, store.Translate(err, "transfer")
	}
	var approved int
	for _, stale := range due {
		err := st.RunInTx(ctx, func(ctx context.Context, s store.Stores) error {
			t, err := s.Transfers().Get(ctx, stale.ID)
			if err != nil {
				return store.Translate(err, "transfer")
			}
			if t.Status.Terminal() || t.AutoApproveAt.After(now) {
				return nil
			}
			_, err = e.Approve(ctx, s, Registry, t.DomainName)
			return err
		})
		switch {
		case err == nil:
			approved++
			if e.metrics != nil {
				e.metrics.SweepTransitions.WithLabelValues("transfer_auto_approve").Inc()
			}
			e.logger.Info("transfer auto-approved", "domain", stale.DomainName, "gaining", stale.GainingID)
		case dErrors.Is(err, dErrors.CodeConcurrent), dErrors.Is(err, dErrors.CodeNotFound):
			e.logger.Debug("transfer sweep skipped record", "domain", stale.DomainName, "error", err)
		default:
			return approved, err
		}
	}
	return approved, nil
}
