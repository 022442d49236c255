// Package arenabuilder wires every arena dependency from an AppConfig.
package arenabuilder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/linkrace-arena/internal/archive"
	"github.com/park285/linkrace-arena/internal/config"
	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/events"
	"github.com/park285/linkrace-arena/internal/frames"
	"github.com/park285/linkrace-arena/internal/httpapi"
	"github.com/park285/linkrace-arena/internal/httpclient"
	"github.com/park285/linkrace-arena/internal/judge"
	"github.com/park285/linkrace-arena/internal/ledger"
	"github.com/park285/linkrace-arena/internal/match"
	"github.com/park285/linkrace-arena/internal/matchmaking"
	"github.com/park285/linkrace-arena/internal/monitor"
	"github.com/park285/linkrace-arena/internal/msgcat"
	"github.com/park285/linkrace-arena/internal/obslog"
	"github.com/park285/linkrace-arena/internal/prompts"
	"github.com/park285/linkrace-arena/internal/rating"
	"github.com/park285/linkrace-arena/internal/scheduler"
	"github.com/park285/linkrace-arena/internal/store"
)

const metricsNamespace = "arena"

type Deps struct {
	Config  *config.AppConfig
	Redis   *redis.Client
	Store   *store.Redis
	Frames  frames.Store
	Archive *archive.Repository
	Ledger  *ledger.Dispatcher
	Metrics *monitor.Metrics
	Hub     *events.Hub

	Queue     *matchmaking.Service
	Engine    *match.Engine
	API       *httpapi.Server
	Scheduler *scheduler.Scheduler

	ownsRedis bool
}

// Option overrides a dependency, mainly for tests.
type Option func(*options)

type options struct {
	clock clockwork.Clock
	redis *redis.Client
}

func WithClock(c clockwork.Clock) Option { return func(o *options) { o.clock = c } }

// WithRedis uses an existing client instead of dialing REDIS_URL.
func WithRedis(rdb *redis.Client) Option { return func(o *options) { o.redis = rdb } }

func New(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*Deps, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	o := options{clock: clockwork.NewRealClock()}
	for _, fn := range opts {
		fn(&o)
	}

	d := &Deps{Config: cfg, Metrics: monitor.NewMetrics(metricsNamespace), Hub: events.NewHub()}

	rdb := o.redis
	if rdb == nil {
		var err error
		rdb, err = store.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
	}
	d.Redis = rdb
	d.ownsRedis = o.redis == nil
	d.Store = store.NewRedis(rdb, store.WithRetention(cfg.Match.Retention))

	switch cfg.FrameBackend {
	case "redis":
		d.Frames = frames.NewRedis(rdb, cfg.FrameTTL)
	default:
		d.Frames = frames.NewMemory(frames.WithClock(o.clock))
	}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			d.closeRedis()
			return nil, fmt.Errorf("init archive: %w", err)
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = repo.Close()
			d.closeRedis()
			return nil, fmt.Errorf("archive schema: %w", err)
		}
		d.Archive = repo
	}

	if strings.TrimSpace(cfg.LedgerURL) != "" {
		c := httpclient.New(cfg.LedgerURL, httpclient.WithBearer(cfg.LedgerAPIKey), httpclient.WithTimeout(10*time.Second))
		d.Ledger = ledger.NewDispatcher(ledger.NewHTTPMirror(c), 15*time.Second)
	}

	catalog, err := prompts.Load(cfg.PromptsFile, cfg.WikiBaseURL)
	if err != nil {
		d.Close(ctx)
		return nil, err
	}
	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		d.Close(ctx)
		return nil, fmt.Errorf("load messages: %w", err)
	}

	limits := domain.TimeLimits{
		Default: cfg.Match.DefaultTimeLimit,
		Min:     cfg.Match.MinTimeLimit,
		Max:     cfg.Match.MaxTimeLimit,
	}
	publisher := events.NewRedisPublisher(rdb, o.clock)
	pairing := cfg.Pairing()
	obslog.L().Info("pairing_mode", zap.String("mode", string(pairing)))

	d.Queue = matchmaking.New(matchmaking.Deps{
		Store:   d.Store,
		Prompts: catalog,
		Events:  publisher,
		Metrics: d.Metrics,
		Clock:   o.clock,
		Limits:  limits,
		Pairing: pairing,
	})

	md := match.Deps{
		Store:   d.Store,
		Frames:  d.Frames,
		Judge:   newJudge(cfg.Judge),
		Rating:  rating.Config{K: cfg.Rating.K, Floor: cfg.Rating.Floor, Initial: cfg.Rating.Initial},
		Events:  publisher,
		Prompts: catalog,
		Ledger:  d.Ledger,
		Metrics: d.Metrics,
		Clock:   o.clock,
	}
	if d.Archive != nil {
		md.Archive = d.Archive
	}
	d.Engine = match.New(md, match.Config{
		Countdown:           cfg.Match.Countdown,
		SweepBatch:          cfg.Match.SweepBatch,
		AdjudicationTimeout: cfg.Judge.Timeout,
		Limits:              limits,
		Pairing:             pairing,
	})

	d.API = httpapi.New(httpapi.Deps{
		Store:    d.Store,
		Queue:    d.Queue,
		Engine:   d.Engine,
		Messages: msgs,
		Clock:    o.clock,
		Pairing:  pairing,
	})

	d.Scheduler, err = scheduler.New(d.Engine, d.Frames, scheduler.Options{
		Interval:    cfg.Match.SweepInterval,
		FrameMaxAge: cfg.FrameTTL,
		RunTimeout:  cfg.Match.SweepInterval + cfg.Judge.Timeout,
		Clock:       o.clock,
	})
	if err != nil {
		d.Close(ctx)
		return nil, fmt.Errorf("init scheduler: %w", err)
	}
	return d, nil
}

func newJudge(cfg config.JudgeConfig) *judge.Adjudicator {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		obslog.L().Warn("judge_disabled", zap.String("reason", "JUDGE_BASE_URL not set; timeouts without a rules verdict end in a draw"))
		return judge.New(nil, cfg.Timeout)
	}
	c := httpclient.New(cfg.BaseURL,
		httpclient.WithBearer(cfg.APIKey),
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithRetry(1),
	)
	return judge.New(judge.NewChatClient(c, cfg.Model, cfg.MaxTokens), cfg.Timeout)
}

// SpectatorHandler serves the event websocket, metrics and a health check.
func (d *Deps) SpectatorHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/matches/", d.Hub)
	mux.Handle("/metrics", d.Metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Close releases everything New opened. Ledger calls in flight are drained
// until ctx ends.
func (d *Deps) Close(ctx context.Context) {
	if d.Scheduler != nil {
		if err := d.Scheduler.Shutdown(); err != nil {
			obslog.L().Warn("scheduler_shutdown_error", zap.Error(err))
		}
	}
	if err := d.Ledger.Close(ctx); err != nil {
		obslog.L().Warn("ledger_close_error", zap.Error(err))
	}
	if err := d.Archive.Close(); err != nil {
		obslog.L().Warn("archive_close_error", zap.Error(err))
	}
	d.closeRedis()
}

func (d *Deps) closeRedis() {
	if d.ownsRedis && d.Redis != nil {
		_ = d.Redis.Close()
		d.Redis = nil
	}
}
