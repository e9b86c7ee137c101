// Package aiprocessor implements the per-item state machine that the queue
// worker invokes for every claimed complaint id:
//
//	Claim -> Fetch/Decode Image -> Inference (embed+classify+detect)
//	      -> Semantic Check -> Priority Compute -> Duplicate Check
//	      -> Rule Apply -> Write-back
//
// Every path through the machine ends in a terminal write-back: success,
// review, or failure.
package aiprocessor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"

	"github.com/civicsignal/complaint-ai-core/internal/geocontext"
	"github.com/civicsignal/complaint-ai-core/internal/imagefetch"
	"github.com/civicsignal/complaint-ai-core/internal/inference"
	"github.com/civicsignal/complaint-ai-core/internal/logger"
	"github.com/civicsignal/complaint-ai-core/internal/model"
	"github.com/civicsignal/complaint-ai-core/internal/priority"
	"github.com/civicsignal/complaint-ai-core/internal/runtimestats"
	"github.com/civicsignal/complaint-ai-core/internal/store"
	"github.com/civicsignal/complaint-ai-core/internal/telemetry"
	"github.com/civicsignal/complaint-ai-core/internal/textscore"
	"github.com/civicsignal/complaint-ai-core/internal/validator"
)

// EmbedUpserter optionally persists an embedding to the ANN pre-filter
// index after a successful run. A nil Upserter disables this side effect
// entirely.
type EmbedUpserter interface {
	Upsert(ctx context.Context, cid, category string, embedding []float32) error
}

// EventPublisher optionally announces a completed run to downstream
// consumers. A nil Publisher disables this side effect entirely.
type EventPublisher interface {
	PublishProcessed(ctx context.Context, c model.Complaint) error
}

// Config bundles every tunable the processor consults, mirrored from
// internal/config.Config so this package doesn't import the whole struct.
type Config struct {
	ModelVersion string

	YOLOMinConfidenceForSeverity float64
	YOLOMaxImageDimension        int

	SchoolRadiusMeters float64

	Duplicate validator.DuplicateConfig

	InferenceTimeout time.Duration

	BlacklistWritesEnabled bool
}

// Processor implements internal/queue.Processor.
type Processor struct {
	st       store.Store
	fetcher  *imagefetch.Fetcher
	detector inference.Detector
	classifier inference.Classifier
	embedder inference.Embedder
	ann      validator.ANNPrefilter
	annStore EmbedUpserter
	cache    *validator.CandidateCache
	events   EventPublisher
	stats    *runtimestats.Stats
	log      *zerolog.Logger
	cfg      Config
}

func New(
	st store.Store,
	fetcher *imagefetch.Fetcher,
	detector inference.Detector,
	classifier inference.Classifier,
	embedder inference.Embedder,
	ann validator.ANNPrefilter,
	annStore EmbedUpserter,
	cache *validator.CandidateCache,
	events EventPublisher,
	stats *runtimestats.Stats,
	log *zerolog.Logger,
	cfg Config,
) *Processor {
	return &Processor{
		st: st, fetcher: fetcher, detector: detector, classifier: classifier,
		embedder: embedder, ann: ann, annStore: annStore, cache: cache,
		events: events, stats: stats, log: log, cfg: cfg,
	}
}

// inferenceContext holds everything the image pipeline produces, tolerating
// individual stage failures.
type inferenceContext struct {
	img image.Image

	detections        []inference.Detection
	hasClassifier     bool
	classifier        inference.ClassifierResult
	embedding         []float32
	fingerprint       uint64
	hasFingerprint    bool

	semanticFallback bool
	imageNote        string
}

// Process runs the full state machine for cid. It never returns an error:
// a claim error is only logged and the item is skipped, every failure after
// a successful claim is converted to a failed write-back, and a panic never
// escapes (the queue worker recovers any that do, as a last resort).
func (p *Processor) Process(ctx context.Context, cid string) {
	start := time.Now()
	ctx = logger.WithCID(ctx, cid)
	log := logger.FromContext(logger.WithComponent(ctx, "aiprocessor"), p.log)

	c, err := p.st.ClaimPending(ctx, cid)
	if err != nil {
		log.Error().Err(err).Msg("claim failed")
		return
	}
	if c == nil {
		return
	}
	telemetry.IncClaimed("queue")

	outcome := "done"
	if err := p.run(ctx, log, c); err != nil {
		outcome = "failed"
		p.markFailed(ctx, log, cid, err)
	}

	telemetry.ObserveProcessed(outcome, time.Since(start).Seconds())
}

func (p *Processor) run(ctx context.Context, log *zerolog.Logger, c *model.Complaint) error {
	ictx := p.runInference(ctx, log, c)

	semantic := validator.CheckSemantic(c.Category, ictx.detections, ictx.classifier, ictx.hasClassifier, p.cfg.YOLOMinConfidenceForSeverity)
	ictx.semanticFallback = semantic.Match != nil && !*semantic.Match

	basePriority, err := p.computePriority(ctx, c)
	if err != nil {
		return err
	}

	current := validator.CandidateInput{
		CID: c.CID, Category: c.Category, Location: c.Location,
		Embedding: ictx.embedding, Fingerprint: ictx.fingerprint, HasFingerprint: ictx.hasFingerprint,
	}
	dup, err := validator.FindDuplicate(ctx, p.st, p.ann, p.cache, p.cfg.Duplicate, time.Now(), current)
	if err != nil {
		return fmt.Errorf("duplicate check: %w", err)
	}
	telemetry.IncDuplicateCheck(dup.Method, duplicateOutcome(dup))

	result, reviewRequired := applyRule(basePriority, dup, semantic)
	status := model.StatusDone
	if reviewRequired {
		status = model.StatusReviewRequired
	}

	up := store.SuccessUpdate{
		SeverityScore: result.Components.BaseScore,
		Priority: model.Priority{
			Score: result.FinalScore, Level: result.Level,
			Reason: result.Reason, ReasonSentence: result.ReasonSentence,
			AIProcessed: true, AIProcessingStatus: status,
		},
		AIMeta: model.AIMeta{
			ProcessedAt:             time.Now(),
			ModelVersion:            p.cfg.ModelVersion,
			IsAIDuplicate:           dup.IsDuplicate,
			DuplicateSimilarity:     dup.Similarity,
			DuplicateComplaintID:    dup.ComplaintID,
			DuplicateDistanceMeters: dup.DistanceMeters,
			DuplicateCategoryMatch:  dup.CategoryMatch,
			DuplicateMethod:         dup.Method,
			ImageFingerprint:        ictx.fingerprint,
			Embedding:               ictx.embedding,
			YOLOTopDetections:       topDetections(ictx.detections, 3),
			MobilenetTopLabel:       ictx.classifier.Label,
			MobilenetConfidence:     ictx.classifier.Confidence,
			MobilenetTopLabels:      ictx.classifier.TopLabels,
			SemanticCategoryMatch:   semantic.Match,
			SemanticFallbackUsed:    ictx.semanticFallback,
			SemanticNote:            firstNonEmpty(semantic.Note, ictx.imageNote),
		},
	}

	if err := p.st.MarkSuccess(ctx, c.CID, reviewRequired, up); err != nil {
		return fmt.Errorf("mark success: %w", err)
	}
	p.stats.IncProcessedSuccess()
	p.stats.ClearRetryAttempts(c.CID)

	if semantic.Match != nil && !*semantic.Match && p.cfg.BlacklistWritesEnabled && c.ReportedBy != "" {
		if err := p.st.RecordBlacklistMismatch(ctx, c.ReportedBy); err != nil {
			log.Warn().Err(err).Msg("record blacklist mismatch failed")
		}
	}

	if p.annStore != nil && len(ictx.embedding) > 0 {
		if err := p.annStore.Upsert(ctx, c.CID, c.Category, ictx.embedding); err != nil {
			log.Warn().Err(err).Msg("ann upsert failed")
		}
	}

	if p.events != nil {
		c.SeverityScore = up.SeverityScore
		c.Priority = up.Priority
		c.AIMeta = up.AIMeta
		if err := p.events.PublishProcessed(ctx, *c); err != nil {
			log.Warn().Err(err).Msg("publish processed event failed")
			telemetry.IncEventPublish("error")
		} else {
			telemetry.IncEventPublish("ok")
		}
	}

	return nil
}

// runInference fetches/decodes the image and runs embed/classify/detect,
// each independently tolerated. A missing or unfetchable image degrades to
// an empty inference context with a descriptive note rather than failing
// the whole item.
func (p *Processor) runInference(ctx context.Context, log *zerolog.Logger, c *model.Complaint) inferenceContext {
	var ictx inferenceContext

	url := c.FirstImageURL()
	if url == "" {
		ictx.imageNote = "no_image"
		return ictx
	}

	img, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("image fetch/decode failed")
		ictx.imageNote = "image_unavailable"
		return ictx
	}
	ictx.img = imagefetch.DownscaleMaxDim(img, p.cfg.YOLOMaxImageDimension)

	if p.detector != nil {
		t0 := time.Now()
		stageCtx, cancel := context.WithTimeout(ctx, p.cfg.InferenceTimeout)
		dets, err := p.detector.Infer(stageCtx, ictx.img)
		cancel()
		telemetry.ObserveInferenceStage("detect", time.Since(t0).Seconds(), err)
		if err != nil {
			log.Warn().Err(err).Msg("detector inference failed")
		} else {
			ictx.detections = dets
		}
	}

	if p.classifier != nil {
		t0 := time.Now()
		stageCtx, cancel := context.WithTimeout(ctx, p.cfg.InferenceTimeout)
		cls, err := p.classifier.Infer(stageCtx, ictx.img)
		cancel()
		telemetry.ObserveInferenceStage("classify", time.Since(t0).Seconds(), err)
		if err != nil {
			log.Warn().Err(err).Msg("classifier inference failed")
		} else {
			ictx.classifier = cls
			ictx.hasClassifier = true
		}
	}

	if p.embedder != nil {
		t0 := time.Now()
		stageCtx, cancel := context.WithTimeout(ctx, p.cfg.InferenceTimeout)
		emb, err := p.embedder.Infer(stageCtx, ictx.img)
		cancel()
		telemetry.ObserveInferenceStage("embed", time.Since(t0).Seconds(), err)
		if err != nil {
			log.Warn().Err(err).Msg("embedder inference failed")
		} else {
			ictx.embedding = emb
		}
	}

	ictx.fingerprint = validator.Fingerprint(ictx.img)
	ictx.hasFingerprint = true

	return ictx
}

func (p *Processor) computePriority(ctx context.Context, c *model.Complaint) (priority.Result, error) {
	text := textscore.Score(c.Title, c.Description)

	var pt model.Point
	if c.Location != nil {
		pt = *c.Location
	}

	mult, err := geocontext.Multiplier(ctx, p.st, pt, p.cfg.SchoolRadiusMeters)
	if err != nil {
		return priority.Result{}, fmt.Errorf("geo multiplier: %w", err)
	}
	cluster, err := geocontext.Cluster(ctx, p.st, pt, c.CID, time.Now())
	if err != nil {
		return priority.Result{}, fmt.Errorf("cluster: %w", err)
	}

	daysPending := time.Since(c.CreatedAt).Hours() / 24
	if c.CreatedAt.IsZero() {
		daysPending = 0
	}

	return priority.Compute(text.BaseScore, mult.Multiplier, mult.MatchedType, cluster.ClusterBoost, cluster.NearbyCount, daysPending), nil
}

// applyRule decides the final outcome: a confirmed duplicate forces
// level=low/score=0 and completes as done; a semantic mismatch appends a
// reason and is flagged for human review; otherwise the computed priority
// stands and the item completes as done.
func applyRule(base priority.Result, dup validator.DuplicateResult, semantic validator.SemanticResult) (priority.Result, bool) {
	if dup.IsDuplicate {
		return priority.ForceLow(base, "Duplicate complaint"), false
	}
	if semantic.Match != nil && !*semantic.Match {
		base.Reason = appendReason(base.Reason, "Image semantic mismatch fallback applied")
		base.ReasonSentence = appendReason(base.ReasonSentence, "Image semantic mismatch fallback applied")
		return base, true
	}
	return base, false
}

func appendReason(existing, addition string) string {
	if existing == "" {
		return addition
	}
	return existing + "; " + addition
}

func duplicateOutcome(dup validator.DuplicateResult) string {
	if dup.IsDuplicate {
		return "duplicate"
	}
	if dup.Method == "" {
		return "no_candidates"
	}
	return "unique"
}

func topDetections(dets []inference.Detection, n int) []model.TopDetection {
	if len(dets) > n {
		dets = dets[:n]
	}
	out := make([]model.TopDetection, 0, len(dets))
	for _, d := range dets {
		out = append(out, model.TopDetection{Label: d.Label, Confidence: d.Confidence, AreaPercent: d.AreaPercent})
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (p *Processor) markFailed(ctx context.Context, log *zerolog.Logger, cid string, cause error) {
	msg := cause.Error()
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		msg = "processing timed out: " + msg
	}
	if err := p.st.MarkFailed(ctx, cid, msg); err != nil {
		log.Error().Err(err).Msg("mark failed also failed")
	}
	p.stats.IncProcessedFailed()
}
