package sched

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/infra/metrics"
	red "telegram-tier-entitlements/internal/infra/redis"
	"telegram-tier-entitlements/internal/usecase"
)

const leaderLockKey = "sweep:leader"

// SweepWorker runs the reconciliation sweep on a cron schedule. The sweep
// itself is idempotent, so an overlapping or missed firing is harmless;
// overlap is still prevented to keep advisory lock contention down.
type SweepWorker struct {
	spec   string
	uc     *usecase.SweepUseCase
	cron   *cron.Cron
	locker red.Locker
	log    *zerolog.Logger

	mu      sync.Mutex
	running bool
	last    model.SweepStats
}

func NewSweepWorker(spec string, uc *usecase.SweepUseCase, logger *zerolog.Logger) *SweepWorker {
	if spec == "" {
		spec = "@every 1h"
	}
	l := logger.With().Str("component", "SweepWorker").Logger()
	return &SweepWorker{spec: spec, uc: uc, log: &l}
}

// WithLeaderLock makes firings race for a distributed lock first, so only
// one replica sweeps per schedule tick. Lock errors fail open: a broken
// Redis must not stop reconciliation.
func (w *SweepWorker) WithLeaderLock(locker red.Locker) *SweepWorker {
	w.locker = locker
	return w
}

// Start schedules the sweep and fires one run immediately so a restart
// never extends the reconciliation gap. Returns after scheduling; Stop
// halts future firings.
func (w *SweepWorker) Start(ctx context.Context) error {
	w.cron = cron.New()
	if _, err := w.cron.AddFunc(w.spec, func() { w.runOnce(ctx) }); err != nil {
		return err
	}
	w.log.Info().Str("schedule", w.spec).Msg("starting sweep worker")
	w.cron.Start()
	go w.runOnce(ctx)

	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}

func (w *SweepWorker) Stop() {
	if w.cron != nil {
		stopCtx := w.cron.Stop()
		<-stopCtx.Done()
	}
	w.log.Info().Msg("sweep worker stopped")
}

func (w *SweepWorker) runOnce(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		w.log.Warn().Msg("previous sweep still running; skipping this firing")
		return
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if w.locker != nil {
		token, acquired, err := w.locker.TryLock(ctx, leaderLockKey, 10*time.Minute)
		if err != nil {
			w.log.Warn().Err(err).Msg("leader lock unavailable; sweeping anyway")
		} else if !acquired {
			w.log.Debug().Msg("another replica holds the sweep lock")
			return
		} else {
			defer func() {
				if err := w.locker.Unlock(context.Background(), leaderLockKey, token); err != nil {
					w.log.Warn().Err(err).Msg("leader unlock failed; lock will expire on its own")
				}
			}()
		}
	}

	start := time.Now()
	stats, err := w.uc.Sweep(ctx, nil)
	if err != nil {
		w.log.Error().Err(err).Msg("sweep failed")
		return
	}
	metrics.ObserveSweep(stats, time.Since(start).Seconds())

	// A quiet system sweeps nothing most runs; only state changes are
	// worth an info line.
	w.mu.Lock()
	changed := stats != w.last
	w.last = stats
	w.mu.Unlock()

	if stats.IsZero() && !changed {
		w.log.Debug().Msg("sweep found nothing")
		return
	}
	w.log.Info().
		Int("expired_found", stats.ExpiredFound).
		Int("removed", stats.Removed).
		Int("skipped_missing_account", stats.SkippedMissingAccount).
		Int("skipped_missing_external", stats.SkippedMissingExternal).
		Int("skipped_already_revoked", stats.SkippedAlreadyRevoked).
		Int("accounts_failed", stats.AccountsFailed).
		Dur("took", time.Since(start)).
		Msg("sweep completed")
}
