package match

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/obslog"
	"github.com/park285/linkrace-arena/internal/store"
	"github.com/park285/linkrace-arena/pkg/arenadto"
)

type ReadyResult struct {
	Match         *domain.Match
	YouReady      bool
	OpponentReady bool
	// Activated is true only for the call that started the clock.
	Activated bool
	Countdown time.Duration
}

// SignalReady marks the caller's slot ready. The second distinct ready
// activates the match with a countdown before the clock starts.
func (e *Engine) SignalReady(ctx context.Context, matchID, participantID string) (ReadyResult, error) {
	var activated, changed bool
	m, err := e.store.UpdateMatch(ctx, matchID, func(m *domain.Match) error {
		activated, changed = false, false
		slot := m.SlotOf(participantID)
		if slot == nil {
			return domain.ErrNotInMatch
		}
		switch m.Status {
		case domain.StatusComplete:
			return domain.ErrMatchAlreadyComplete
		case domain.StatusActive:
			return store.ErrNoChange
		case domain.StatusReadyCheck:
		default:
			return domain.ErrWrongPhase
		}
		if slot.Ready {
			return store.ErrNoChange
		}
		slot.Ready = true
		changed = true
		if m.SlotA.Ready && m.SlotB.Ready {
			now := e.clock.Now()
			startsAt := now.Add(e.cfg.Countdown)
			endsAt := startsAt.Add(m.TimeLimit)
			m.Status = domain.StatusActive
			m.StartedAt = &startsAt
			m.EndsAt = &endsAt
			activated = true
		}
		return nil
	})
	if err != nil {
		return ReadyResult{}, err
	}

	res := ReadyResult{
		Match:         m,
		YouReady:      m.SlotOf(participantID).Ready,
		OpponentReady: m.Opponent(participantID).Ready,
		Activated:     activated,
		Countdown:     e.cfg.Countdown,
	}
	switch {
	case activated:
		obslog.L().Info("match_activate",
			zap.String("match_id", m.ID),
			zap.Time("starts_at", *m.StartedAt),
			zap.Time("ends_at", *m.EndsAt),
		)
		a1, a2 := agentRefs(m)
		e.events.Publish(ctx, m.ID, arenadto.EventMatchCountdown, arenadto.CountdownEvent{
			Agent1:           a1,
			Agent2:           a2,
			CountdownSeconds: int(e.cfg.Countdown.Seconds()),
			StartsAt:         *m.StartedAt,
		})
		e.events.Publish(ctx, m.ID, arenadto.EventMatchStart, arenadto.StartEvent{
			Agent1:           a1,
			Agent2:           a2,
			TaskDescription:  m.Task,
			StartURL:         m.StartURL,
			TargetArticle:    m.Target,
			TimeLimitSeconds: int(m.TimeLimit.Seconds()),
			StartedAt:        *m.StartedAt,
			EndsAt:           *m.EndsAt,
		})
	case changed:
		slot := m.SlotOf(participantID)
		obslog.L().Info("match_ready", zap.String("match_id", m.ID), zap.String("participant_id", participantID))
		e.events.Publish(ctx, m.ID, arenadto.EventAgentReady, arenadto.ReadyEvent{AgentID: slot.ParticipantID, AgentName: slot.Name})
	}
	return res, nil
}

func agentRefs(m *domain.Match) (arenadto.AgentRef, arenadto.AgentRef) {
	return arenadto.AgentRef{AgentID: m.SlotA.ParticipantID, Name: m.SlotA.Name},
		arenadto.AgentRef{AgentID: m.SlotB.ParticipantID, Name: m.SlotB.Name}
}
