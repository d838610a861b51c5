package config

import (
	"testing"
	"time"
)

func TestLoadEnvConfigWorkerDefaults(t *testing.T) {
	for _, key := range []string{"BATCH_SIZE", "MAX_RETRIES", "RETRY_DELAY", "POLL_INTERVAL", "MINT_CONCURRENCY", "EMPTY_POLL_LIMIT"} {
		t.Setenv(key, "")
	}

	cfg := LoadEnvConfig()

	if cfg.Worker.BatchSize != 100 {
		t.Fatalf("expected default batch size 100, got %d", cfg.Worker.BatchSize)
	}
	if cfg.Worker.MaxRetries != 3 {
		t.Fatalf("expected default max retries 3, got %d", cfg.Worker.MaxRetries)
	}
	if cfg.Worker.RetryDelay != 5*time.Second {
		t.Fatalf("expected default retry delay 5s, got %s", cfg.Worker.RetryDelay)
	}
	if cfg.Worker.PollInterval != 10*time.Second {
		t.Fatalf("expected default poll interval 10s, got %s", cfg.Worker.PollInterval)
	}
	if cfg.Worker.Concurrency != 10 {
		t.Fatalf("expected default concurrency 10, got %d", cfg.Worker.Concurrency)
	}
	if cfg.Worker.EmptyPollLimit != 3 {
		t.Fatalf("expected default empty poll limit 3, got %d", cfg.Worker.EmptyPollLimit)
	}
}

func TestLoadEnvConfigWorkerOverrides(t *testing.T) {
	t.Setenv("BATCH_SIZE", "25")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("RETRY_DELAY", "250")
	t.Setenv("POLL_INTERVAL", "1000")
	t.Setenv("MINT_CONCURRENCY", "4")
	t.Setenv("EMPTY_POLL_LIMIT", "7")

	cfg := LoadEnvConfig()

	if cfg.Worker.BatchSize != 25 {
		t.Fatalf("expected batch size 25, got %d", cfg.Worker.BatchSize)
	}
	if cfg.Worker.MaxRetries != 5 {
		t.Fatalf("expected max retries 5, got %d", cfg.Worker.MaxRetries)
	}
	if cfg.Worker.RetryDelay != 250*time.Millisecond {
		t.Fatalf("expected retry delay 250ms, got %s", cfg.Worker.RetryDelay)
	}
	if cfg.Worker.PollInterval != time.Second {
		t.Fatalf("expected poll interval 1s, got %s", cfg.Worker.PollInterval)
	}
	if cfg.Worker.Concurrency != 4 {
		t.Fatalf("expected concurrency 4, got %d", cfg.Worker.Concurrency)
	}
	if cfg.Worker.EmptyPollLimit != 7 {
		t.Fatalf("expected empty poll limit 7, got %d", cfg.Worker.EmptyPollLimit)
	}
}

func TestLoadEnvConfigRejectsGarbageValues(t *testing.T) {
	t.Setenv("BATCH_SIZE", "not-a-number")
	t.Setenv("MAX_RETRIES", "-2")

	cfg := LoadEnvConfig()

	if cfg.Worker.BatchSize != 100 {
		t.Fatalf("unparseable batch size should fall back to 100, got %d", cfg.Worker.BatchSize)
	}
	if cfg.Worker.MaxRetries != 3 {
		t.Fatalf("negative max retries should fall back to 3, got %d", cfg.Worker.MaxRetries)
	}
}

func TestLoadEnvConfigRetryDelayZero(t *testing.T) {
	t.Setenv("RETRY_DELAY", "0")

	cfg := LoadEnvConfig()

	if cfg.Worker.RetryDelay != 0 {
		t.Fatalf("RETRY_DELAY=0 should disable the re-eligibility window, got %s", cfg.Worker.RetryDelay)
	}

	t.Setenv("RETRY_DELAY", "-100")
	cfg = LoadEnvConfig()
	if cfg.Worker.RetryDelay != 5*time.Second {
		t.Fatalf("negative retry delay should fall back to 5s, got %s", cfg.Worker.RetryDelay)
	}
}
