package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.MongoServerSelectionTimeout != 5*time.Second {
		t.Fatalf("expected 5s server selection timeout, got %v", cfg.MongoServerSelectionTimeout)
	}
	if cfg.MongoConnectTimeout != 10*time.Second {
		t.Fatalf("expected 10s connect timeout, got %v", cfg.MongoConnectTimeout)
	}
	if !cfg.MongoAllowStandaloneFallback {
		t.Fatal("expected standalone fallback enabled by default")
	}
	if cfg.DuplicateSimilarityThreshold != 0.92 {
		t.Fatalf("expected 0.92 similarity threshold, got %v", cfg.DuplicateSimilarityThreshold)
	}
	if cfg.DuplicateLookbackDays != 7 || cfg.DuplicateCompareLimit != 50 {
		t.Fatalf("expected lookback 7 / limit 50, got %d / %d", cfg.DuplicateLookbackDays, cfg.DuplicateCompareLimit)
	}
	if cfg.MaxRetryAttempts != 3 || cfg.RetryBatchSize != 25 || cfg.RetryIntervalSeconds != 60 {
		t.Fatalf("unexpected retry defaults: %+v", cfg)
	}
	if cfg.ImageMaxBytes != 10*1024*1024 {
		t.Fatalf("expected 10MiB image cap, got %d", cfg.ImageMaxBytes)
	}
	if cfg.SchoolRadiusMeters != 2000 {
		t.Fatalf("expected 2000m school radius, got %v", cfg.SchoolRadiusMeters)
	}
	if cfg.EventPublishEnabled || cfg.BlacklistWritesEnabled {
		t.Fatal("expected optional side-effect features off by default")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MONGO_SERVER_SELECTION_TIMEOUT_MS", "1500")
	t.Setenv("DUPLICATE_SIMILARITY_THRESHOLD", "0.8")
	t.Setenv("MAX_RETRY_ATTEMPTS", "5")
	t.Setenv("MONGO_ALLOW_STANDALONE_FALLBACK", "false")

	cfg := FromEnv()

	if cfg.MongoServerSelectionTimeout != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s timeout, got %v", cfg.MongoServerSelectionTimeout)
	}
	if cfg.DuplicateSimilarityThreshold != 0.8 {
		t.Fatalf("expected 0.8 threshold, got %v", cfg.DuplicateSimilarityThreshold)
	}
	if cfg.MaxRetryAttempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", cfg.MaxRetryAttempts)
	}
	if cfg.MongoAllowStandaloneFallback {
		t.Fatal("expected fallback disabled via env")
	}
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MAX_RETRY_ATTEMPTS", "not-a-number")
	t.Setenv("DUPLICATE_SIMILARITY_THRESHOLD", "high")

	cfg := FromEnv()

	if cfg.MaxRetryAttempts != 3 {
		t.Fatalf("expected malformed int to fall back to default, got %d", cfg.MaxRetryAttempts)
	}
	if cfg.DuplicateSimilarityThreshold != 0.92 {
		t.Fatalf("expected malformed float to fall back to default, got %v", cfg.DuplicateSimilarityThreshold)
	}
}
