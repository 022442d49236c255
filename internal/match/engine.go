// Package match drives a match from pairing to completion: ready check,
// frame ingestion, victory claims and timeout adjudication.
package match

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/events"
	"github.com/park285/linkrace-arena/internal/frames"
	"github.com/park285/linkrace-arena/internal/judge"
	"github.com/park285/linkrace-arena/internal/ledger"
	"github.com/park285/linkrace-arena/internal/monitor"
	"github.com/park285/linkrace-arena/internal/obslog"
	"github.com/park285/linkrace-arena/internal/prompts"
	"github.com/park285/linkrace-arena/internal/rating"
	"github.com/park285/linkrace-arena/internal/store"
)

const (
	DefaultCountdown  = 5 * time.Second
	defaultSweepBatch = 50
	persistTimeout    = 5 * time.Second
)

type Adjudicator interface {
	Adjudicate(ctx context.Context, in judge.Input) judge.Verdict
}

// Archiver persists completed matches; *archive.Repository implements it.
type Archiver interface {
	SaveMatch(ctx context.Context, m *domain.Match) error
	SaveParticipant(ctx context.Context, p domain.Participant) error
}

type Config struct {
	Countdown           time.Duration
	SweepBatch          int
	AdjudicationTimeout time.Duration
	Limits              domain.TimeLimits
	// Pairing gates the hosted-match operations; queue is the default.
	Pairing domain.PairingMode
}

type Deps struct {
	Store   store.Store
	Frames  frames.Store
	Judge   Adjudicator
	Rating  rating.Config
	Events  events.Publisher
	Prompts *prompts.Catalog
	Archive Archiver
	Ledger  *ledger.Dispatcher
	Metrics *monitor.Metrics
	Clock   clockwork.Clock
}

type Engine struct {
	store   store.Store
	frames  frames.Store
	judge   Adjudicator
	rating  rating.Config
	events  events.Publisher
	prompts *prompts.Catalog
	archive Archiver
	ledger  *ledger.Dispatcher
	metrics *monitor.Metrics
	clock   clockwork.Clock
	cfg     Config

	resolving singleflight.Group
}

func New(d Deps, cfg Config) *Engine {
	e := &Engine{
		store:   d.Store,
		frames:  d.Frames,
		judge:   d.Judge,
		rating:  d.Rating,
		events:  d.Events,
		prompts: d.Prompts,
		archive: d.Archive,
		ledger:  d.Ledger,
		metrics: d.Metrics,
		clock:   d.Clock,
		cfg:     cfg,
	}
	if e.frames == nil {
		e.frames = frames.NewMemory()
	}
	if e.judge == nil {
		e.judge = judge.New(nil, 0)
	}
	if e.rating == (rating.Config{}) {
		e.rating = rating.DefaultConfig()
	}
	if e.events == nil {
		e.events = events.Nop{}
	}
	if e.clock == nil {
		e.clock = clockwork.NewRealClock()
	}
	if e.cfg.Countdown < 0 {
		e.cfg.Countdown = DefaultCountdown
	}
	if e.cfg.SweepBatch <= 0 {
		e.cfg.SweepBatch = defaultSweepBatch
	}
	if e.cfg.AdjudicationTimeout <= 0 {
		e.cfg.AdjudicationTimeout = judge.DefaultTimeout
	}
	e.cfg.Pairing = e.cfg.Pairing.OrDefault()
	if e.cfg.Limits == (domain.TimeLimits{}) {
		e.cfg.Limits = domain.DefaultTimeLimits()
	}
	return e
}

// State is a match together with both participants' latest frames.
type State struct {
	Match     *domain.Match
	FrameA    *frames.Snapshot
	FrameB    *frames.Snapshot
	Remaining *time.Duration
}

// Get returns the match, resolving it first when its clock has run out.
func (e *Engine) Get(ctx context.Context, matchID string) (State, error) {
	m, err := e.store.Match(ctx, matchID)
	if err != nil {
		return State{}, err
	}
	if m.Expired(e.clock.Now()) {
		if resolved, rerr := e.Resolve(ctx, matchID); rerr == nil {
			m = resolved
		} else {
			obslog.L().Warn("match_lazy_resolve_error", zap.String("match_id", matchID), zap.Error(rerr))
		}
	}
	st := State{Match: m}
	st.FrameA = e.latestFrame(ctx, m.ID, m.SlotA.ParticipantID)
	st.FrameB = e.latestFrame(ctx, m.ID, m.SlotB.ParticipantID)
	if d, ok := m.Remaining(e.clock.Now()); ok {
		st.Remaining = &d
	}
	return st, nil
}

func (e *Engine) latestFrame(ctx context.Context, matchID, participantID string) *frames.Snapshot {
	if participantID == "" {
		return nil
	}
	s, ok, err := e.frames.Get(ctx, matchID, participantID)
	if err != nil {
		obslog.L().Warn("frame_read_error", zap.String("match_id", matchID), zap.String("participant_id", participantID), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return &s
}

// Sweep resolves active matches whose deadline has passed and reports how
// many it completed.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	ids, err := e.store.DueMatches(ctx, e.clock.Now(), e.cfg.SweepBatch)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		m, err := e.Resolve(ctx, id)
		switch {
		case errors.Is(err, domain.ErrMatchNotFound):
			_ = e.store.DropDeadline(ctx, id)
		case err != nil:
			obslog.L().Warn("match_sweep_error", zap.String("match_id", id), zap.Error(err))
		case m.Status.Terminal() && m.Method == domain.MethodAdjudication:
			resolved++
		}
	}
	return resolved, nil
}
