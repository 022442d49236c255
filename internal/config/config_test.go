package config

import (
	"strings"
	"testing"
	"time"

	"github.com/park285/linkrace-arena/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.FrameBackend != "memory" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Rating.K != 32 || cfg.Rating.Floor != 100 || cfg.Rating.Initial != 1200 {
		t.Fatalf("unexpected rating defaults: %+v", cfg.Rating)
	}
	if cfg.Match.Countdown != 5*time.Second || cfg.Match.DefaultTimeLimit != 5*time.Minute {
		t.Fatalf("unexpected match defaults: %+v", cfg.Match)
	}
}

func TestLoadRequiresRedis(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "REDIS_URL") {
		t.Fatalf("expected REDIS_URL error, got %v", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("FRAME_BACKEND", "disk")
	if _, err := Load(); err == nil {
		t.Fatalf("expected FRAME_BACKEND error")
	}
	t.Setenv("FRAME_BACKEND", "redis")
	t.Setenv("JUDGE_TIMEOUT", "soon")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse env") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestLoadRejectsInvertedTimeLimits(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("MIN_TIME_LIMIT", "10m")
	t.Setenv("MAX_TIME_LIMIT", "2m")
	if _, err := Load(); err == nil {
		t.Fatalf("expected bounds error")
	}
}

func TestLoadPairingMode(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err := Load()
	if err != nil || cfg.Pairing() != domain.PairingQueue {
		t.Fatalf("default pairing: err=%v", err)
	}
	t.Setenv("PAIRING_MODE", "Hosted")
	cfg, err = Load()
	if err != nil || cfg.Pairing() != domain.PairingHosted {
		t.Fatalf("hosted pairing: err=%v", err)
	}
	t.Setenv("PAIRING_MODE", "both")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "PAIRING_MODE") {
		t.Fatalf("expected PAIRING_MODE error, got %v", err)
	}
}
