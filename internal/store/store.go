// Package store is the only place in this repository that knows about the
// concrete document store. It exposes a narrow Store interface
// (claim/find/count/mark/watch/probe) so every consumer — the priority
// engine's geo lookups, the duplicate validator, the AI processor, the
// change-stream listener, the retry reconciler — depends on behavior, not on
// MongoDB.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/civicsignal/complaint-ai-core/internal/model"
)

var (
	// ErrStoreUnavailable is returned when the store cannot be reached,
	// including when the circuit breaker in front of it is open.
	ErrStoreUnavailable = errors.New("store: unavailable")
	// ErrNoReplicaSet is returned by WatchPendingInserts when the backing
	// store is not running as a replica set.
	ErrNoReplicaSet = errors.New("store: not a replica set")
)

// Capabilities records what the connected store can do, probed once at
// startup and cached.
type Capabilities struct {
	ReplicaSet                bool
	ComplaintsGeoIndex        bool
	SensitiveLocationGeoIndex bool
}

// SuccessUpdate carries every field the AI processor writes back on a
// successful run.
type SuccessUpdate struct {
	SeverityScore float64
	Priority      model.Priority
	AIMeta        model.AIMeta
}

// Store is the polymorphism boundary over collection backends: a
// replica-set store with geo indexes, a standalone store without them, and
// a test double are the three implementations of interest.
type Store interface {
	// ClaimPending atomically transitions status pending->processing for
	// cid and returns the claimed document, or (nil, nil) if the document
	// was not claimable (already claimed, missing, or wrong status).
	ClaimPending(ctx context.Context, cid string) (*model.Complaint, error)

	// CountPending returns the number of claimable complaints.
	CountPending(ctx context.Context) (int, error)

	// FindRecentCandidates returns up to limit complaints created at or
	// after since, excluding excludeCID, projected to the fields the
	// duplicate validator needs, most recent first.
	FindRecentCandidates(ctx context.Context, excludeCID string, since time.Time, limit int) ([]model.CandidateProjection, error)

	// NearSensitiveLocation returns sensitive locations of the given
	// keyword pattern within radiusMeters of pt. Uses a geo index when
	// present, a haversine-filtered scan otherwise.
	NearSensitiveLocation(ctx context.Context, pt model.Point, radiusMeters float64, keywordPattern string) ([]model.SensitiveLocation, error)

	// CountNearbyComplaints counts complaints within radiusMeters of pt
	// created at or after since, excluding excludeCID, stopping once
	// stopAt is reached.
	CountNearbyComplaints(ctx context.Context, pt model.Point, radiusMeters float64, since time.Time, excludeCID string, stopAt int) (int, error)

	// MarkSuccess applies the write-back fields for a completed run and
	// sets aiProcessed=true, status=done|review_required per up.
	MarkSuccess(ctx context.Context, cid string, reviewRequired bool, up SuccessUpdate) error

	// MarkFailed sets aiProcessed=false, status=failed, aiMeta.error=msg,
	// aiMeta.processedAt=now.
	MarkFailed(ctx context.Context, cid string, msg string) error

	// WatchPendingInserts streams cids of newly inserted, claimable
	// complaints. Returns ErrNoReplicaSet if the store cannot stream.
	WatchPendingInserts(ctx context.Context) (<-chan string, error)

	// ProbeCapabilities returns the cached capability probe from connect
	// time.
	ProbeCapabilities(ctx context.Context) (Capabilities, error)

	// SweepPending returns up to limit pending cids, oldest first.
	SweepPending(ctx context.Context, limit int) ([]string, error)

	// SweepFailed returns up to limit failed cids, oldest first.
	SweepFailed(ctx context.Context, limit int) ([]string, error)

	// FlipFailedToPending atomically transitions status failed->pending
	// for cid, returning false if the precondition didn't hold.
	FlipFailedToPending(ctx context.Context, cid string) (bool, error)

	// RecordBlacklistMismatch upserts ai_blacklist.{userId,mismatchCount}
	// when blacklist writes are enabled. A no-op otherwise; the blacklist
	// is never read by the scoring pipeline.
	RecordBlacklistMismatch(ctx context.Context, userID string) error

	Close(ctx context.Context) error
}
