package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/cassette-service/internal/config"
	"github.com/spec-kit/cassette-service/internal/service"
)

// Reconciler runs one bounded sweep over reconcilable tickets.
type Reconciler interface {
	ReconcilePending(ctx context.Context, limit int) (service.BatchResult, error)
}

// Locker hands out an expiring lease so only one replica sweeps at a time.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// ReconcileWorker periodically syncs ticket statuses with repair progress.
type ReconcileWorker struct {
	reconciler Reconciler
	locker     Locker
	cfg        config.ReconcileConfig
	logger     *zap.Logger
}

// NewReconcileWorker builds the worker. A nil locker sweeps without a lease.
func NewReconcileWorker(reconciler Reconciler, locker Locker, cfg config.ReconcileConfig, logger *zap.Logger) *ReconcileWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileWorker{reconciler: reconciler, locker: locker, cfg: cfg, logger: logger}
}

// Run sweeps once per interval until ctx is cancelled.
func (w *ReconcileWorker) Run(ctx context.Context) {
	if !w.cfg.Enabled {
		w.logger.Info("reconcile worker disabled")
		return
	}
	ticker := time.NewTicker(w.cfg.Interval())
	defer ticker.Stop()

	w.logger.Info("reconcile worker started", zap.Duration("interval", w.cfg.Interval()))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconcile worker stopped")
			return
		case <-ticker.C:
			if _, _, err := w.Sweep(ctx); err != nil {
				w.logger.Error("reconcile sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs a single pass. ran is false when another holder owns the lease.
func (w *ReconcileWorker) Sweep(ctx context.Context) (result service.BatchResult, ran bool, err error) {
	if w.locker != nil {
		release, ok, err := w.locker.TryLock(ctx, w.cfg.LockKey, w.cfg.LockTTL())
		if err != nil {
			return result, false, err
		}
		if !ok {
			w.logger.Debug("reconcile lease held elsewhere", zap.String("key", w.cfg.LockKey))
			return result, false, nil
		}
		defer func() {
			// the sweep context may already be cancelled
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if relErr := release(releaseCtx); relErr != nil {
				w.logger.Warn("release reconcile lease", zap.Error(relErr))
			}
		}()
	}

	limit := w.cfg.BatchLimit
	if limit <= 0 {
		limit = service.DefaultBatchLimit
	}
	result, err = w.reconciler.ReconcilePending(ctx, limit)
	return result, true, err
}
