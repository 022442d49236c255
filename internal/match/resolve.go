package match

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/judge"
	"github.com/park285/linkrace-arena/internal/obslog"
	"github.com/park285/linkrace-arena/internal/rating"
)

// Resolve adjudicates an active match whose clock has run out. Concurrent
// callers for the same match share one adjudication. Matches that are not
// due are returned unchanged.
func (e *Engine) Resolve(ctx context.Context, matchID string) (*domain.Match, error) {
	v, err, _ := e.resolving.Do(matchID, func() (any, error) {
		// detached so one caller hanging up does not abort the shared work
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.AdjudicationTimeout+persistTimeout)
		defer cancel()
		return e.resolve(rctx, matchID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Match), nil
}

func (e *Engine) resolveAsync(ctx context.Context, matchID string) {
	go func() {
		if _, err := e.Resolve(context.WithoutCancel(ctx), matchID); err != nil {
			obslog.L().Warn("match_resolve_error", zap.String("match_id", matchID), zap.Error(err))
		}
	}()
}

func (e *Engine) resolve(ctx context.Context, matchID string) (*domain.Match, error) {
	m, err := e.store.Match(ctx, matchID)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	if !m.Expired(now) {
		if m.Status.Terminal() {
			_ = e.store.DropDeadline(ctx, m.ID)
		}
		return m, nil
	}

	in := judge.Input{
		Task:   m.Task,
		Target: m.Target,
		A:      e.contestant(ctx, m, &m.SlotA),
		B:      e.contestant(ctx, m, &m.SlotB),
	}
	started := time.Now()
	verdict := e.judge.Adjudicate(ctx, in)
	e.metrics.Adjudicated(string(verdict.Source), time.Since(started))
	obslog.L().Info("match_adjudicate",
		zap.String("match_id", m.ID),
		zap.String("winner", string(verdict.Winner)),
		zap.String("source", string(verdict.Source)),
		zap.Bool("degraded", verdict.Degraded),
	)

	outcome := rating.Draw
	switch verdict.Winner {
	case judge.WinnerA:
		outcome = rating.AWins
	case judge.WinnerB:
		outcome = rating.BWins
	}
	at := e.clock.Now()
	done, err := e.store.CompleteMatch(ctx, matchID, func(cur *domain.Match, a, b *domain.Participant) error {
		if cur.Status.Terminal() {
			return domain.ErrMatchAlreadyComplete
		}
		if cur.Status != domain.StatusActive {
			return domain.ErrMatchNotActive
		}
		for _, s := range []*domain.Slot{&cur.SlotA, &cur.SlotB} {
			c := in.A
			if s.ParticipantID == in.B.ID {
				c = in.B
			}
			if c.Clicks > s.Clicks {
				s.Clicks = c.Clicks
			}
		}
		e.finish(cur, a, b, result{outcome: outcome, method: domain.MethodAdjudication, rationale: verdict.Rationale, at: at})
		return nil
	})
	if errors.Is(err, domain.ErrMatchAlreadyComplete) {
		// a claim won the race; report the stored outcome
		return e.store.Match(ctx, matchID)
	}
	if err != nil {
		return nil, err
	}
	e.afterComplete(ctx, done)
	return done, nil
}

func (e *Engine) contestant(ctx context.Context, m *domain.Match, s *domain.Slot) judge.Contestant {
	c := judge.Contestant{ID: s.ParticipantID, Name: s.Name, Clicks: s.Clicks}
	if f := e.latestFrame(ctx, m.ID, s.ParticipantID); f != nil {
		c.FinalLocation = f.Location
		if f.ClickCount > c.Clicks {
			c.Clicks = f.ClickCount
		}
	}
	return c
}
