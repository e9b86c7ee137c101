// Package app owns the process lifecycle: it wires the document store, the
// AI processor and its collaborators, the processing queue, the three
// long-lived background loops, and the monitoring HTTP server, then runs
// them until ctx is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/civicsignal/complaint-ai-core/internal/aiprocessor"
	"github.com/civicsignal/complaint-ai-core/internal/annstore"
	"github.com/civicsignal/complaint-ai-core/internal/changestream"
	"github.com/civicsignal/complaint-ai-core/internal/config"
	"github.com/civicsignal/complaint-ai-core/internal/events"
	"github.com/civicsignal/complaint-ai-core/internal/httpapi"
	"github.com/civicsignal/complaint-ai-core/internal/imagefetch"
	"github.com/civicsignal/complaint-ai-core/internal/inference"
	"github.com/civicsignal/complaint-ai-core/internal/queue"
	"github.com/civicsignal/complaint-ai-core/internal/retryreconciler"
	"github.com/civicsignal/complaint-ai-core/internal/runtimestats"
	"github.com/civicsignal/complaint-ai-core/internal/store"
	"github.com/civicsignal/complaint-ai-core/internal/telemetry"
	"github.com/civicsignal/complaint-ai-core/internal/validator"
)

const shutdownTimeout = 10 * time.Second

// Run wires and runs the full complaint AI pipeline until ctx is cancelled,
// then shuts down in order: HTTP listener, the three cooperative
// background loops (observed via ctx.Done() at their next suspension
// point), then the store connection.
func Run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	telemetry.Init(prometheus.DefaultRegisterer, true)

	st, err := store.Connect(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("app: connect store: %w", err)
	}
	defer func() { _ = st.Close(context.Background()) }()

	caps, err := st.ProbeCapabilities(ctx)
	if err != nil {
		return fmt.Errorf("app: probe capabilities: %w", err)
	}

	stats := runtimestats.New()
	stats.SetReplicaSetEnabled(caps.ReplicaSet)

	detector := &inference.LocalDetector{MaxDimension: cfg.YOLOMaxImageDimension}
	classifier := &inference.LocalClassifier{MaxDimension: cfg.YOLOMaxImageDimension}
	embedder := &inference.LocalEmbedder{Dimensions: 32, MaxDimension: cfg.YOLOMaxImageDimension}
	for _, loader := range []interface{ Load(context.Context) error }{detector, classifier, embedder} {
		if err := loader.Load(ctx); err != nil {
			return fmt.Errorf("app: load inference service: %w", err)
		}
	}

	fetcher := imagefetch.New(cfg.ImageDownloadTimeout, cfg.ImageFetchRatePerSec, cfg.ImageFetchBurst, cfg.ImageMaxBytes)
	cache := validator.NewCandidateCache(128, cfg.RedisCacheTTL)

	var ann validator.ANNPrefilter
	var annUpserter aiprocessor.EmbedUpserter
	if cfg.QdrantAddr != "" {
		as, err := annstore.New(cfg.QdrantAddr, cfg.QdrantCollection)
		if err != nil {
			log.Warn().Err(err).Msg("qdrant unavailable, ANN pre-filter disabled")
		} else {
			if err := as.EnsureCollection(ctx, 32); err != nil {
				log.Warn().Err(err).Msg("qdrant ensure collection failed, ANN pre-filter disabled")
			} else {
				ann = as
				annUpserter = as
				defer func() { _ = as.Close() }()
			}
		}
	}

	var publisher aiprocessor.EventPublisher
	if cfg.EventPublishEnabled && cfg.KafkaBrokers != "" {
		pub, err := events.New(splitCSV(cfg.KafkaBrokers), cfg.KafkaTopic)
		if err != nil {
			log.Warn().Err(err).Msg("kafka publisher unavailable, completion events disabled")
		} else if pub != nil {
			publisher = pub
			defer func() { _ = pub.Close() }()
		}
	}

	procCfg := aiprocessor.Config{
		ModelVersion:                 "complaint-ai-core/1",
		YOLOMinConfidenceForSeverity: cfg.YOLOMinConfidenceForSeverity,
		YOLOMaxImageDimension:        cfg.YOLOMaxImageDimension,
		SchoolRadiusMeters:           cfg.SchoolRadiusMeters,
		Duplicate: validator.DuplicateConfig{
			SimilarityThreshold: cfg.DuplicateSimilarityThreshold,
			LookbackDays:        cfg.DuplicateLookbackDays,
			CompareLimit:        cfg.DuplicateCompareLimit,
		},
		InferenceTimeout:       cfg.InferenceTimeout,
		BlacklistWritesEnabled: cfg.BlacklistWritesEnabled,
	}
	processor := aiprocessor.New(st, fetcher, detector, classifier, embedder, ann, annUpserter, cache, publisher, stats, &log, procCfg)

	q := queue.New(stats, processor)
	listener := changestream.New(st, q, stats, &log)
	reconciler := retryreconciler.New(st, q, stats, &log, time.Duration(cfg.RetryIntervalSeconds)*time.Second, cfg.MaxRetryAttempts, cfg.RetryBatchSize)

	mux := httpapi.New(stats, st, q, telemetry.Enabled())
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	bgCtx, cancelBG := context.WithCancel(context.Background())
	defer cancelBG()

	go q.Run(bgCtx, func(cid string, recovered any) {
		log.Error().Str("cid", cid).Interface("panic", recovered).Msg("recovered panic in ai processor")
	})
	go listener.Run(bgCtx)
	go reconciler.Run(bgCtx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listen")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		cancelBG()
		return nil
	case err := <-errCh:
		cancelBG()
		return err
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
