package match

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/matchmaking"
	"github.com/park285/linkrace-arena/internal/obslog"
	"github.com/park285/linkrace-arena/internal/prompts"
	"github.com/park285/linkrace-arena/internal/store"
	"github.com/park285/linkrace-arena/internal/verify"
	"github.com/park285/linkrace-arena/pkg/arenadto"
)

// HostedConfig describes a match opened by a participant for anyone to
// join. Empty articles are drawn from the prompt catalog.
type HostedConfig struct {
	Start     string
	Target    string
	TimeLimit time.Duration
}

// OpenMatch creates a waiting match with the creator in slot A.
func (e *Engine) OpenMatch(ctx context.Context, creatorID string, cfg HostedConfig) (*domain.Match, error) {
	if e.cfg.Pairing != domain.PairingHosted {
		return nil, domain.ErrPairingDisabled
	}
	creator, err := e.store.Participant(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	start, target := strings.TrimSpace(cfg.Start), strings.TrimSpace(cfg.Target)
	if (start == "") != (target == "") {
		return nil, fmt.Errorf("start and target must be given together: %w", domain.ErrInvalidArgs)
	}
	if start == "" {
		if e.prompts == nil {
			return nil, fmt.Errorf("no prompt catalog: %w", domain.ErrInvalidArgs)
		}
		p := e.prompts.Pick()
		start, target = p.Start, p.Target
	}
	if _, err := verify.Title(start); err != nil {
		return nil, fmt.Errorf("start article: %w", domain.ErrInvalidArgs)
	}
	if _, err := verify.Title(target); err != nil {
		return nil, fmt.Errorf("target article: %w", domain.ErrInvalidArgs)
	}
	if verify.Verify(start, target).Matched {
		return nil, fmt.Errorf("start is already the target: %w", domain.ErrInvalidArgs)
	}
	startURL := start
	if e.prompts != nil {
		startURL = e.prompts.StartURL(start)
	}
	targetTitle, _ := verify.Title(target)

	m := &domain.Match{
		ID:        uuid.NewString(),
		Origin:    domain.OriginHosted,
		Status:    domain.StatusWaitingForOpponent,
		SlotA:     domain.Slot{ParticipantID: creator.ID, Name: creator.Name, Path: []string{}},
		Task:      prompts.Task(start, targetTitle),
		StartURL:  startURL,
		Target:    targetTitle,
		TimeLimit: e.cfg.Limits.Clamp(cfg.TimeLimit),
		CreatedAt: e.clock.Now(),
	}
	if err := e.store.OpenMatch(ctx, m); err != nil {
		return nil, err
	}
	e.metrics.MatchCreated(string(domain.OriginHosted))
	obslog.L().Info("match_open",
		zap.String("match_id", m.ID),
		zap.String("creator_id", creator.ID),
		zap.String("target", m.Target),
	)
	return m, nil
}

// FillSlot seats participantID in the open slot B. Only one joiner wins the
// slot; the rest get ErrSlotAlreadyFilled.
func (e *Engine) FillSlot(ctx context.Context, matchID, participantID string) (*domain.Match, error) {
	if e.cfg.Pairing != domain.PairingHosted {
		return nil, domain.ErrPairingDisabled
	}
	joiner, err := e.store.Participant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	var filled bool
	m, err := e.store.FillSlot(ctx, matchID, joiner.ID, func(m *domain.Match) error {
		filled = false
		if m.Status.Terminal() {
			return domain.ErrMatchAlreadyComplete
		}
		if m.SlotB.ParticipantID == joiner.ID {
			return store.ErrNoChange
		}
		if m.SlotA.ParticipantID == joiner.ID {
			return domain.ErrAlreadyInMatch
		}
		if m.Status != domain.StatusWaitingForOpponent || !m.SlotB.Empty() {
			return domain.ErrSlotAlreadyFilled
		}
		m.SlotB = domain.Slot{ParticipantID: joiner.ID, Name: joiner.Name, Path: []string{}}
		m.Status = domain.StatusReadyCheck
		filled = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if filled {
		obslog.L().Info("match_fill", zap.String("match_id", m.ID), zap.String("participant_id", joiner.ID))
		e.events.Publish(ctx, m.ID, arenadto.EventAgentJoined, arenadto.ReadyEvent{AgentID: joiner.ID, AgentName: joiner.Name})
		e.events.Publish(ctx, m.ID, arenadto.EventMatchPaired, matchmaking.PairedEvent(m))
	}
	return m, nil
}

// WithdrawMatch cancels a hosted match nobody has joined yet, freeing its
// creator to open or join another.
func (e *Engine) WithdrawMatch(ctx context.Context, matchID, participantID string) (*domain.Match, error) {
	if e.cfg.Pairing != domain.PairingHosted {
		return nil, domain.ErrPairingDisabled
	}
	m, err := e.store.WithdrawMatch(ctx, matchID, participantID)
	if err != nil {
		return nil, err
	}
	obslog.L().Info("match_withdraw", zap.String("match_id", m.ID), zap.String("creator_id", participantID))
	e.events.Publish(ctx, m.ID, arenadto.EventMatchWithdrawn, arenadto.ReadyEvent{AgentID: m.SlotA.ParticipantID, AgentName: m.SlotA.Name})
	return m, nil
}
