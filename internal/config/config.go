// Package config loads runtime configuration from the environment, following
// the flat-struct/typed-getter shape used throughout this codebase.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config enumerates every recognized option, all with defaults.
type Config struct {
	HTTPAddr string
	LogLevel string

	MongoURI                     string
	MongoDatabase                string
	MongoServerSelectionTimeout  time.Duration
	MongoConnectTimeout          time.Duration
	MongoAllowStandaloneFallback bool

	YOLOConfidenceThreshold     float64
	YOLOImageSize               int
	YOLOMaxImageDimension       int
	YOLOMinConfidenceForSeverity float64

	ImageDownloadTimeout  time.Duration
	ImageMaxBytes         int64
	ImageFetchRatePerSec  float64
	ImageFetchBurst       int

	SchoolRadiusMeters float64

	DuplicateSimilarityThreshold float64
	DuplicateLookbackDays        int
	DuplicateCompareLimit        int

	RetryIntervalSeconds int
	MaxRetryAttempts     int
	RetryBatchSize       int

	RedisAddr            string
	RedisCacheTTL         time.Duration
	H3FallbackResolution  int

	StoreBreakerFailThreshold int
	StoreBreakerCooldown      time.Duration

	QdrantAddr       string
	QdrantCollection string

	EventPublishEnabled bool
	KafkaBrokers        string
	KafkaTopic          string

	BlacklistWritesEnabled bool

	InferenceTimeout time.Duration
}

// FromEnv populates a Config from the environment, falling back to the
// documented defaults. Malformed values are ignored, not fatal.
func FromEnv() Config {
	return Config{
		HTTPAddr: getenv("HTTP_ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		MongoURI:                     getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:                getenv("MONGO_DATABASE", "civicsense"),
		MongoServerSelectionTimeout:  getmillis("MONGO_SERVER_SELECTION_TIMEOUT_MS", 5000),
		MongoConnectTimeout:          getmillis("MONGO_CONNECT_TIMEOUT_MS", 10000),
		MongoAllowStandaloneFallback: getbool("MONGO_ALLOW_STANDALONE_FALLBACK", true),

		YOLOConfidenceThreshold:      getfloat("YOLO_CONFIDENCE_THRESHOLD", 0.25),
		YOLOImageSize:                getint("YOLO_IMAGE_SIZE", 640),
		YOLOMaxImageDimension:        getint("YOLO_MAX_IMAGE_DIMENSION", 1024),
		YOLOMinConfidenceForSeverity: getfloat("YOLO_MIN_CONFIDENCE_FOR_SEVERITY", 0.4),

		ImageDownloadTimeout: getseconds("IMAGE_DOWNLOAD_TIMEOUT_SECONDS", 15),
		ImageMaxBytes:        int64(getint("IMAGE_MAX_BYTES", 10*1024*1024)),
		ImageFetchRatePerSec: getfloat("IMAGE_FETCH_RATE_PER_SECOND", 10),
		ImageFetchBurst:      getint("IMAGE_FETCH_BURST", 20),

		SchoolRadiusMeters: getfloat("SCHOOL_RADIUS_METERS", 2000),

		DuplicateSimilarityThreshold: getfloat("DUPLICATE_SIMILARITY_THRESHOLD", 0.92),
		DuplicateLookbackDays:        getint("DUPLICATE_LOOKBACK_DAYS", 7),
		DuplicateCompareLimit:        getint("DUPLICATE_COMPARE_LIMIT", 50),

		RetryIntervalSeconds: getint("RETRY_INTERVAL_SECONDS", 60),
		MaxRetryAttempts:     getint("MAX_RETRY_ATTEMPTS", 3),
		RetryBatchSize:       getint("RETRY_BATCH_SIZE", 25),

		RedisAddr:           getenv("REDIS_ADDR", ""),
		RedisCacheTTL:       getseconds("REDIS_CACHE_TTL_SECONDS", 5),
		H3FallbackResolution: getint("H3_FALLBACK_RESOLUTION", 8),

		StoreBreakerFailThreshold: getint("STORE_BREAKER_FAIL_THRESHOLD", 5),
		StoreBreakerCooldown:      getseconds("STORE_BREAKER_COOLDOWN_SECONDS", 30),

		QdrantAddr:       getenv("QDRANT_ADDR", ""),
		QdrantCollection: getenv("QDRANT_COLLECTION", "complaint_embeddings"),

		EventPublishEnabled: getbool("EVENT_PUBLISH_ENABLED", false),
		KafkaBrokers:        getenv("KAFKA_BROKERS", ""),
		KafkaTopic:          getenv("KAFKA_TOPIC", "complaints.processed"),

		BlacklistWritesEnabled: getbool("BLACKLIST_WRITES_ENABLED", false),

		InferenceTimeout: getseconds("INFERENCE_TIMEOUT_SECONDS", 20),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getmillis(k string, defMs int) time.Duration {
	return time.Duration(getint(k, defMs)) * time.Millisecond
}

func getseconds(k string, defSec int) time.Duration {
	return time.Duration(getint(k, defSec)) * time.Second
}
