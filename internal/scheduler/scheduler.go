// Package scheduler runs the periodic deadline sweep.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/park285/linkrace-arena/internal/obslog"
)

// MatchSweeper resolves matches whose clock has run out.
type MatchSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// FrameSweeper evicts frames not refreshed since olderThan.
type FrameSweeper interface {
	Sweep(ctx context.Context, olderThan time.Time) (int, error)
}

type Options struct {
	Interval    time.Duration
	FrameMaxAge time.Duration
	// RunTimeout bounds one sweep pass. Defaults to the interval plus the
	// adjudication budget so a slow judge does not pile up passes.
	RunTimeout time.Duration
	Clock      clockwork.Clock
}

type Scheduler struct {
	matches MatchSweeper
	frames  FrameSweeper
	opts    Options

	sched  gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
}

func New(matches MatchSweeper, frames FrameSweeper, opts Options) (*Scheduler, error) {
	if matches == nil {
		return nil, errors.New("scheduler: nil match sweeper")
	}
	if opts.Interval <= 0 {
		return nil, errors.New("scheduler: interval must be positive")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = opts.Interval + time.Minute
	}
	sched, err := gocron.NewScheduler(gocron.WithClock(opts.Clock))
	if err != nil {
		return nil, err
	}
	s := &Scheduler{matches: matches, frames: frames, opts: opts, sched: sched}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	_, err = sched.NewJob(
		gocron.DurationJob(opts.Interval),
		gocron.NewTask(func() { s.RunOnce(s.ctx) }),
		gocron.WithName("deadline-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	obslog.L().Info("scheduler_start", zap.Duration("interval", s.opts.Interval))
	s.sched.Start()
}

// Shutdown cancels a running pass and waits for it to return.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.sched.Shutdown()
}

// RunOnce performs one sweep pass.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()

	n, err := s.matches.Sweep(ctx)
	if err != nil {
		obslog.L().Warn("sweep_matches_error", zap.Error(err))
	}
	if n > 0 {
		obslog.L().Info("sweep_matches", zap.Int("resolved", n))
	}

	if s.frames == nil || s.opts.FrameMaxAge <= 0 {
		return
	}
	evicted, err := s.frames.Sweep(ctx, s.opts.Clock.Now().Add(-s.opts.FrameMaxAge))
	if err != nil {
		obslog.L().Warn("sweep_frames_error", zap.Error(err))
		return
	}
	if evicted > 0 {
		obslog.L().Debug("sweep_frames", zap.Int("evicted", evicted))
	}
}
