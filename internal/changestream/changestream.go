// Package changestream wires the document store's change-stream watch to
// the processing queue: every newly inserted claimable complaint is
// enqueued as soon as it is observed, and the subscription reconnects with
// a fixed backoff on every disconnect.
package changestream

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/civicsignal/complaint-ai-core/internal/logger"
	"github.com/civicsignal/complaint-ai-core/internal/runtimestats"
	"github.com/civicsignal/complaint-ai-core/internal/store"
	"github.com/civicsignal/complaint-ai-core/internal/telemetry"
)

const reconnectBackoff = 5 * time.Second

// Enqueuer is the subset of *queue.Queue the listener needs.
type Enqueuer interface {
	Enqueue(cid string) bool
}

// Listener subscribes to store.WatchPendingInserts and feeds cids to q.
type Listener struct {
	st    store.Store
	q     Enqueuer
	stats *runtimestats.Stats
	log   *zerolog.Logger
}

func New(st store.Store, q Enqueuer, stats *runtimestats.Stats, log *zerolog.Logger) *Listener {
	return &Listener{st: st, q: q, stats: stats, log: log}
}

// Run blocks until ctx is cancelled, reconnecting the underlying change
// stream with a fixed backoff on every disconnect or startup failure. If
// the store isn't a replica set, it logs once and stays inactive — the
// retry reconciler's periodic sweep is the only ingestion path in that
// mode.
func (l *Listener) Run(ctx context.Context) {
	loggedNoReplicaSet := false

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ch, err := l.st.WatchPendingInserts(ctx)
		if err != nil {
			if errors.Is(err, store.ErrNoReplicaSet) {
				if !loggedNoReplicaSet {
					l.logger(ctx).Warn().Msg("change stream unavailable: store is not a replica set, relying on retry reconciler sweep")
					loggedNoReplicaSet = true
				}
				l.stats.SetChangeStreamRunning(false)
				l.stats.SetReplicaSetEnabled(false)
				if !sleepOrDone(ctx, reconnectBackoff) {
					return
				}
				continue
			}
			l.logger(ctx).Error().Err(err).Msg("change stream subscribe failed, retrying")
			l.stats.SetChangeStreamRunning(false)
			if !sleepOrDone(ctx, reconnectBackoff) {
				return
			}
			continue
		}

		l.stats.SetChangeStreamRunning(true)
		l.stats.SetReplicaSetEnabled(true)
		l.consume(ctx, ch)
		l.stats.SetChangeStreamRunning(false)

		if !sleepOrDone(ctx, reconnectBackoff) {
			return
		}
	}
}

// consume drains ch until it closes (stream ended) or ctx is done.
func (l *Listener) consume(ctx context.Context, ch <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case cid, ok := <-ch:
			if !ok {
				return
			}
			telemetry.IncChangeStreamEvent("insert")
			l.q.Enqueue(cid)
		}
	}
}

func (l *Listener) logger(ctx context.Context) *zerolog.Logger {
	c := logger.WithComponent(ctx, "changestream")
	return logger.FromContext(c, l.log)
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
