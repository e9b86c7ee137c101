package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/civicsignal/complaint-ai-core/internal/breaker"
	"github.com/civicsignal/complaint-ai-core/internal/config"
)

const (
	collComplaints         = "complaints"
	collSensitiveLocations = "sensitive_locations"
	collBlacklist          = "ai_blacklist"
)

// MongoStore is the production Store implementation: a replica-set backed
// MongoDB deployment, falling back to a standalone connection and to
// in-memory haversine scans when geo indexes are absent.
type MongoStore struct {
	cli *mongo.Client
	db  *mongo.Database

	complaints, sensitive, blacklist *mongo.Collection

	breaker *breaker.Breaker
	cap     Capabilities

	redis *redis.Client
	cfg   config.Config
	log   zerolog.Logger

	warnOnce   sync.Map // collection name -> *sync.Once, for the "fell back to scan" warning

	now func() time.Time
}

// Connect dials MongoDB per cfg, falling back from a replica-set URI to a
// standalone one when fallback is enabled, then probes capabilities.
func Connect(ctx context.Context, cfg config.Config, log zerolog.Logger) (*MongoStore, error) {
	client, usedFallback, err := dial(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store connect: %w", err)
	}

	db := client.Database(cfg.MongoDatabase)
	s := &MongoStore{
		cli:        client,
		db:         db,
		complaints: db.Collection(collComplaints),
		sensitive:  db.Collection(collSensitiveLocations),
		blacklist:  db.Collection(collBlacklist),
		breaker: breaker.New(breaker.Opts{
			FailThreshold: cfg.StoreBreakerFailThreshold,
			Cooldown:      cfg.StoreBreakerCooldown,
		}),
		cfg: cfg,
		log: log,
		now: time.Now,
	}

	if cfg.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	caps, err := s.probeCapabilities(ctx, usedFallback)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("store probe capabilities: %w", err)
	}
	s.cap = caps

	if cfg.BlacklistWritesEnabled {
		_, err := s.blacklist.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("store ensure blacklist index: %w", err)
		}
	}

	return s, nil
}

// dial connects using cfg.MongoURI; on failure, if the URI names a replica
// set and fallback is enabled, it rewrites the URI to a direct connection
// and retries once. Returns whether the fallback path was used.
func dial(ctx context.Context, cfg config.Config) (*mongo.Client, bool, error) {
	client, err := connectOne(ctx, cfg, cfg.MongoURI, false)
	if err == nil {
		return client, false, nil
	}

	if !cfg.MongoAllowStandaloneFallback {
		return nil, false, fmt.Errorf("primary connect failed and standalone fallback disabled: %w", err)
	}

	standaloneURI, rewritten := stripReplicaSet(cfg.MongoURI)
	if !rewritten {
		return nil, false, fmt.Errorf("primary connect failed and uri has no replicaSet to strip: %w", err)
	}

	client2, err2 := connectOne(ctx, cfg, standaloneURI, true)
	if err2 != nil {
		return nil, false, fmt.Errorf("standalone fallback also failed (primary: %v): %w", err, err2)
	}
	return client2, true, nil
}

func connectOne(ctx context.Context, cfg config.Config, uri string, direct bool) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(cfg.MongoServerSelectionTimeout).
		SetConnectTimeout(cfg.MongoConnectTimeout)
	if direct {
		opts = opts.SetDirect(true)
	}

	cctx, cancel := context.WithTimeout(ctx, cfg.MongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

// stripReplicaSet removes the replicaSet query parameter from a MongoDB URI,
// reporting whether one was present.
func stripReplicaSet(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil {
		return uri, false
	}
	q := u.Query()
	if !q.Has("replicaSet") {
		return uri, false
	}
	q.Del("replicaSet")
	u.RawQuery = q.Encode()
	return strings.TrimSuffix(u.String(), "?"), true
}

func (s *MongoStore) Close(ctx context.Context) error {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if err := s.cli.Disconnect(ctx); err != nil {
		return fmt.Errorf("store close: %w", err)
	}
	return nil
}

// warnOnceFor logs msg at warn level the first time it is called for
// collection, and silently does nothing on subsequent calls.
func (s *MongoStore) warnOnceFor(collection, msg string) {
	v, _ := s.warnOnce.LoadOrStore(collection, &sync.Once{})
	once := v.(*sync.Once)
	once.Do(func() {
		s.log.Warn().Str("collection", collection).Msg(msg)
	})
}
