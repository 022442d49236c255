package arenabuilder

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/linkrace-arena/internal/config"
	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/frames"
	"github.com/park285/linkrace-arena/internal/match"
	"github.com/park285/linkrace-arena/internal/matchmaking"
	"github.com/park285/linkrace-arena/internal/store"
)

func loadConfig(t *testing.T, env map[string]string) *config.AppConfig {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestNewWiresDefaults(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := loadConfig(t, map[string]string{"REDIS_URL": "redis://" + mr.Addr()})

	d, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close(context.Background())

	if d.Archive != nil || d.Ledger != nil {
		t.Fatal("optional dependencies should stay nil without configuration")
	}
	if _, ok := d.Frames.(*frames.Memory); !ok {
		t.Fatalf("default frame store is %T", d.Frames)
	}
	if d.Engine == nil || d.Queue == nil || d.API == nil || d.Scheduler == nil {
		t.Fatalf("missing component: %+v", d)
	}

	srv := httptest.NewServer(d.SpectatorHandler())
	defer srv.Close()
	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: %d", path, resp.StatusCode)
		}
	}
}

func TestNewRedisFrames(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := loadConfig(t, map[string]string{"REDIS_URL": "redis://" + mr.Addr(), "FRAME_BACKEND": "redis"})
	d, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close(context.Background())
	if _, ok := d.Frames.(*frames.Redis); !ok {
		t.Fatalf("frame store is %T", d.Frames)
	}
}

func TestNewFailsWithoutRedis(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"REDIS_URL": "redis://127.0.0.1:1"})
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

func TestNewHostedPairingDisablesQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := loadConfig(t, map[string]string{"REDIS_URL": "redis://" + mr.Addr(), "PAIRING_MODE": "hosted"})
	d, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close(context.Background())

	ctx := context.Background()
	p, _, err := store.Register(ctx, d.Store, "Host", "", cfg.Rating.Initial, time.Now())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := d.Queue.Join(ctx, p.ID, matchmaking.Preferences{}); !errors.Is(err, domain.ErrPairingDisabled) {
		t.Fatalf("queue join: expected ErrPairingDisabled, got %v", err)
	}
	if _, err := d.Engine.OpenMatch(ctx, p.ID, match.HostedConfig{}); err != nil {
		t.Fatalf("open hosted match: %v", err)
	}
}
