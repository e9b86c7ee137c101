// Package runtimestats holds the single process-wide mutable object the
// three long-lived tasks (change-stream listener, queue worker, retry
// reconciler) and the monitoring HTTP surface all read and write: counters,
// the in-flight marker, capability flags, and the per-cid retry-attempt map.
package runtimestats

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const numShards = 64

type attemptShard struct {
	mu sync.Mutex
	m  map[string]int
}

// Stats is safe for concurrent use. Counters and the in-flight marker use
// atomics; the retry-attempt map is sharded by xxhash of the cid, mirroring
// the hot-key map shape used elsewhere in this codebase.
type Stats struct {
	processedSuccess atomic.Int64
	processedFailed  atomic.Int64
	retried          atomic.Int64
	queueEnqueued    atomic.Int64

	inFlight atomic.Pointer[string]

	changeStreamRunning atomic.Bool
	replicaSetEnabled   atomic.Bool

	shards [numShards]attemptShard
}

func New() *Stats {
	s := &Stats{}
	for i := range s.shards {
		s.shards[i].m = make(map[string]int)
	}
	return s
}

func (s *Stats) IncProcessedSuccess() { s.processedSuccess.Add(1) }
func (s *Stats) IncProcessedFailed()  { s.processedFailed.Add(1) }
func (s *Stats) IncRetried()          { s.retried.Add(1) }
func (s *Stats) IncQueueEnqueued()    { s.queueEnqueued.Add(1) }

func (s *Stats) SetInFlight(cid string) {
	c := cid
	s.inFlight.Store(&c)
}

func (s *Stats) ClearInFlight() {
	s.inFlight.Store(nil)
}

// InFlight returns the currently in-flight cid, or "" if none.
func (s *Stats) InFlight() string {
	p := s.inFlight.Load()
	if p == nil {
		return ""
	}
	return *p
}

func (s *Stats) SetChangeStreamRunning(v bool) { s.changeStreamRunning.Store(v) }
func (s *Stats) ChangeStreamRunning() bool     { return s.changeStreamRunning.Load() }

func (s *Stats) SetReplicaSetEnabled(v bool) { s.replicaSetEnabled.Store(v) }
func (s *Stats) ReplicaSetEnabled() bool     { return s.replicaSetEnabled.Load() }

func (s *Stats) pick(cid string) *attemptShard {
	h := xxhash.Sum64String(cid)
	idx := h & (uint64(len(s.shards)) - 1)
	return &s.shards[idx]
}

// RetryAttempts returns the current retry count for cid (0 if absent).
func (s *Stats) RetryAttempts(cid string) int {
	sh := s.pick(cid)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.m[cid]
}

// IncRetryAttempt increments and returns the new retry count for cid.
func (s *Stats) IncRetryAttempt(cid string) int {
	sh := s.pick(cid)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.m[cid]++
	return sh.m[cid]
}

// ClearRetryAttempts removes cid's entry, called on success. An entry that
// reaches the retry cap is kept.
func (s *Stats) ClearRetryAttempts(cid string) {
	sh := s.pick(cid)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.m, cid)
}

func (s *Stats) retryAttemptsLen() int {
	total := 0
	for i := range s.shards {
		s.shards[i].mu.Lock()
		total += len(s.shards[i].m)
		s.shards[i].mu.Unlock()
	}
	return total
}

// Snapshot is a point-in-time copy suitable for the /stats endpoint.
type Snapshot struct {
	ProcessedSuccess    int64  `json:"processedSuccess"`
	ProcessedFailed     int64  `json:"processedFailed"`
	Retried             int64  `json:"retried"`
	QueueEnqueued       int64  `json:"queueEnqueued"`
	InFlightComplaintID string `json:"inFlightComplaintId,omitempty"`
	ChangeStreamRunning bool   `json:"changeStreamRunning"`
	ReplicaSetEnabled   bool   `json:"replicaSetEnabled"`
	RetryAttemptCount   int    `json:"retryAttemptCount"`
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		ProcessedSuccess:    s.processedSuccess.Load(),
		ProcessedFailed:     s.processedFailed.Load(),
		Retried:             s.retried.Load(),
		QueueEnqueued:       s.queueEnqueued.Load(),
		InFlightComplaintID: s.InFlight(),
		ChangeStreamRunning: s.ChangeStreamRunning(),
		ReplicaSetEnabled:   s.ReplicaSetEnabled(),
		RetryAttemptCount:   s.retryAttemptsLen(),
	}
}
