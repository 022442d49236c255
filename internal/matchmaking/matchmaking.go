// Package matchmaking pairs queued participants first come, first served.
package matchmaking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/events"
	"github.com/park285/linkrace-arena/internal/monitor"
	"github.com/park285/linkrace-arena/internal/obslog"
	"github.com/park285/linkrace-arena/internal/prompts"
	"github.com/park285/linkrace-arena/internal/store"
	"github.com/park285/linkrace-arena/pkg/arenadto"
)

type Outcome string

const (
	Queued Outcome = "queued"
	Paired Outcome = "paired"
	// Idle is reported by Status for participants neither queued nor playing.
	Idle Outcome = "not_queued"
)

type Preferences struct {
	TimeLimit time.Duration
}

type JoinResult struct {
	Status   Outcome
	Match    *domain.Match
	Position int
	Ticket   domain.Ticket
}

type Deps struct {
	Store   store.Store
	Prompts *prompts.Catalog
	Events  events.Publisher
	Metrics *monitor.Metrics
	Clock   clockwork.Clock
	Limits  domain.TimeLimits
	// Pairing must be queue (the default) for Join to accept tickets.
	Pairing domain.PairingMode
}

type Service struct {
	store   store.Store
	prompts *prompts.Catalog
	events  events.Publisher
	metrics *monitor.Metrics
	clock   clockwork.Clock
	limits  domain.TimeLimits
	pairing domain.PairingMode
}

func New(d Deps) *Service {
	s := &Service{
		store:   d.Store,
		prompts: d.Prompts,
		events:  d.Events,
		metrics: d.Metrics,
		clock:   d.Clock,
		limits:  d.Limits,
		pairing: d.Pairing.OrDefault(),
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.limits == (domain.TimeLimits{}) {
		s.limits = domain.DefaultTimeLimits()
	}
	return s
}

// Join enqueues participantID, or pairs it with the oldest waiting ticket.
// The waiting participant takes slot A.
func (s *Service) Join(ctx context.Context, participantID string, prefs Preferences) (JoinResult, error) {
	if s.pairing != domain.PairingQueue {
		return JoinResult{}, domain.ErrPairingDisabled
	}
	joiner, err := s.store.Participant(ctx, participantID)
	if err != nil {
		return JoinResult{}, err
	}
	now := s.clock.Now()
	limit := s.limits.Clamp(prefs.TimeLimit)

	out, err := s.store.Join(ctx, joiner.ID, now, func(w domain.Ticket) (*domain.Match, error) {
		waiting, err := s.store.Participant(ctx, w.ParticipantID)
		if err != nil {
			return nil, err
		}
		return s.newMatch(waiting, joiner, limit, now), nil
	})
	if err != nil {
		return JoinResult{}, err
	}
	s.refreshDepth(ctx)

	if !out.Paired() {
		obslog.L().Info("queue_join",
			zap.String("participant_id", joiner.ID),
			zap.Int("position", out.Position),
		)
		return JoinResult{Status: Queued, Position: out.Position, Ticket: out.Ticket}, nil
	}

	m := out.Match
	obslog.L().Info("queue_pair",
		zap.String("match_id", m.ID),
		zap.String("slot_a", m.SlotA.ParticipantID),
		zap.String("slot_b", m.SlotB.ParticipantID),
		zap.String("target", m.Target),
		zap.Duration("time_limit", m.TimeLimit),
	)
	s.metrics.MatchCreated(string(domain.OriginQueue))
	s.events.Publish(ctx, m.ID, arenadto.EventMatchPaired, PairedEvent(m))
	return JoinResult{Status: Paired, Match: m}, nil
}

func (s *Service) newMatch(a, b domain.Participant, limit time.Duration, now time.Time) *domain.Match {
	pair := s.prompts.Pick()
	start := s.prompts.StartURL(pair.Start)
	return &domain.Match{
		ID:        uuid.NewString(),
		Origin:    domain.OriginQueue,
		Status:    domain.StatusReadyCheck,
		SlotA:     domain.Slot{ParticipantID: a.ID, Name: a.Name, Path: []string{}},
		SlotB:     domain.Slot{ParticipantID: b.ID, Name: b.Name, Path: []string{}},
		Task:      prompts.Task(pair.Start, pair.Target),
		StartURL:  start,
		Target:    pair.Target,
		TimeLimit: limit,
		CreatedAt: now,
	}
}

// Leave removes the participant's ticket. Leaving twice is not an error.
func (s *Service) Leave(ctx context.Context, participantID string) (bool, error) {
	left, err := s.store.Leave(ctx, participantID)
	if err != nil {
		return false, err
	}
	if left {
		obslog.L().Info("queue_leave", zap.String("participant_id", participantID))
		s.refreshDepth(ctx)
	}
	return left, nil
}

func (s *Service) Position(ctx context.Context, participantID string) (int, error) {
	return s.store.Position(ctx, participantID)
}

// Status reports whether the participant is queued, paired into a live
// match, or neither.
func (s *Service) Status(ctx context.Context, participantID string) (JoinResult, error) {
	if _, err := s.store.Participant(ctx, participantID); err != nil {
		return JoinResult{}, err
	}
	if id, err := s.store.ActiveMatch(ctx, participantID); err != nil {
		return JoinResult{}, err
	} else if id != "" {
		m, err := s.store.Match(ctx, id)
		if err != nil && !errors.Is(err, domain.ErrMatchNotFound) {
			return JoinResult{}, err
		}
		if m != nil {
			return JoinResult{Status: Paired, Match: m}, nil
		}
	}
	t, ok, err := s.store.Ticket(ctx, participantID)
	if err != nil {
		return JoinResult{}, err
	}
	if !ok {
		return JoinResult{Status: Idle}, nil
	}
	pos, err := s.store.Position(ctx, participantID)
	if err != nil {
		return JoinResult{}, err
	}
	return JoinResult{Status: Queued, Position: pos, Ticket: t}, nil
}

func (s *Service) refreshDepth(ctx context.Context) {
	if n, err := s.store.QueueLen(ctx); err == nil {
		s.metrics.SetQueueDepth(n)
	}
}

// PairedEvent is the match_paired payload.
func PairedEvent(m *domain.Match) arenadto.PairedEvent {
	return arenadto.PairedEvent{
		Agent1:           arenadto.AgentRef{AgentID: m.SlotA.ParticipantID, Name: m.SlotA.Name},
		Agent2:           arenadto.AgentRef{AgentID: m.SlotB.ParticipantID, Name: m.SlotB.Name},
		Origin:           string(m.Origin),
		StartArticle:     m.StartURL,
		TargetArticle:    m.Target,
		TimeLimitSeconds: int(m.TimeLimit.Seconds()),
	}
}
