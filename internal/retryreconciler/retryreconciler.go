// Package retryreconciler implements the ticker-driven sweep that enqueues
// stuck pending complaints and retries failed ones up to a bounded attempt
// count. Complaints that exhaust the cap stay failed for manual review.
package retryreconciler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/civicsignal/complaint-ai-core/internal/logger"
	"github.com/civicsignal/complaint-ai-core/internal/runtimestats"
	"github.com/civicsignal/complaint-ai-core/internal/store"
	"github.com/civicsignal/complaint-ai-core/internal/telemetry"
)

// Enqueuer is the subset of *queue.Queue the reconciler needs.
type Enqueuer interface {
	Enqueue(cid string) bool
}

type Reconciler struct {
	st               store.Store
	q                Enqueuer
	stats            *runtimestats.Stats
	log              *zerolog.Logger
	interval         time.Duration
	maxRetryAttempts int
	batchSize        int
}

func New(st store.Store, q Enqueuer, stats *runtimestats.Stats, log *zerolog.Logger, interval time.Duration, maxRetryAttempts, batchSize int) *Reconciler {
	return &Reconciler{
		st:               st,
		q:                q,
		stats:            stats,
		log:              log,
		interval:         interval,
		maxRetryAttempts: maxRetryAttempts,
		batchSize:        batchSize,
	}
}

// Run sweeps once immediately, then on every tick, until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	r.sweepOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepOnce(ctx)
		}
	}
}

func (r *Reconciler) sweepOnce(ctx context.Context) {
	r.sweepPending(ctx)
	r.sweepFailed(ctx)
}

// sweepPending re-enqueues pending cids that never made it onto the queue
// (e.g. missed change-stream events, a restart that dropped the in-memory
// queue).
func (r *Reconciler) sweepPending(ctx context.Context) {
	cids, err := r.st.SweepPending(ctx, r.batchSize)
	if err != nil {
		r.logger(ctx).Error().Err(err).Msg("sweep pending failed")
		return
	}
	for _, cid := range cids {
		r.q.Enqueue(cid)
	}
}

// sweepFailed retries failed complaints under the attempt cap, and leaves
// ones that have exhausted it in the failed state for manual review.
func (r *Reconciler) sweepFailed(ctx context.Context) {
	cids, err := r.st.SweepFailed(ctx, r.batchSize)
	if err != nil {
		r.logger(ctx).Error().Err(err).Msg("sweep failed failed")
		return
	}
	for _, cid := range cids {
		attempts := r.stats.RetryAttempts(cid)
		if attempts >= r.maxRetryAttempts {
			telemetry.IncRetryExhausted()
			continue
		}

		flipped, err := r.st.FlipFailedToPending(ctx, cid)
		if err != nil {
			r.logger(ctx).Error().Err(err).Str("cid", cid).Msg("flip failed->pending failed")
			continue
		}
		if !flipped {
			continue
		}

		r.stats.IncRetryAttempt(cid)
		r.stats.IncRetried()
		telemetry.IncRetryAttempt("requeued")
		r.q.Enqueue(cid)
	}
}

func (r *Reconciler) logger(ctx context.Context) *zerolog.Logger {
	c := logger.WithComponent(ctx, "retryreconciler")
	return logger.FromContext(c, r.log)
}
