package match

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/obslog"
	"github.com/park285/linkrace-arena/internal/rating"
	"github.com/park285/linkrace-arena/internal/verify"
)

type ClaimOutcome string

const (
	ClaimVictory  ClaimOutcome = "victory"
	ClaimRejected ClaimOutcome = "rejected"
)

// Rejection reasons.
const (
	ReasonMismatch    = "mismatch"
	ReasonUnparseable = "unparseable_location"
)

type ClaimResult struct {
	Result   ClaimOutcome
	Reason   string
	Location string
	// Page is the title the location resolved to; empty when unparseable.
	Page      string
	Target    string
	Clicks    int
	Path      []string
	Elapsed   time.Duration
	NewRating int
	Match     *domain.Match
}

// ClaimVictory verifies the claimant's location against the target and, on
// a match, completes the race in their favor. A wrong page is a soft
// rejection, not an error.
func (e *Engine) ClaimVictory(ctx context.Context, matchID, participantID, location string) (ClaimResult, error) {
	m, err := e.store.Match(ctx, matchID)
	if err != nil {
		return ClaimResult{}, err
	}
	now := e.clock.Now()
	if err := claimPhase(m, participantID, now); err != nil {
		return ClaimResult{}, e.claimRefused(ctx, m.ID, err)
	}

	location = strings.TrimSpace(location)
	frameClicks := 0
	if f := e.latestFrame(ctx, m.ID, participantID); f != nil {
		if location == "" {
			location = f.Location
		}
		frameClicks = f.ClickCount
	}
	if location == "" {
		return ClaimResult{}, domain.ErrNoLocationAvailable
	}

	v := verify.Verify(location, m.Target)
	res := ClaimResult{Location: location, Page: v.Page, Target: m.Target, Match: m}
	switch {
	case v.Unparseable:
		res.Result, res.Reason = ClaimRejected, ReasonUnparseable
	case !v.Matched:
		res.Result, res.Reason = ClaimRejected, ReasonMismatch
	}
	if res.Result == ClaimRejected {
		e.metrics.Claim(string(ClaimRejected))
		obslog.L().Info("claim_rejected",
			zap.String("match_id", m.ID),
			zap.String("participant_id", participantID),
			zap.String("reason", res.Reason),
			zap.String("page", v.Page),
		)
		return res, nil
	}

	done, err := e.store.CompleteMatch(ctx, matchID, func(cur *domain.Match, a, b *domain.Participant) error {
		if err := claimPhase(cur, participantID, now); err != nil {
			return err
		}
		slot := cur.SlotOf(participantID)
		if frameClicks > slot.Clicks {
			slot.Clicks = frameClicks
		}
		slot.AppendPath(v.Page)
		outcome := rating.AWins
		if cur.SlotB.ParticipantID == participantID {
			outcome = rating.BWins
		}
		e.finish(cur, a, b, result{outcome: outcome, method: domain.MethodClaim, at: now})
		return nil
	})
	if err != nil {
		return ClaimResult{}, e.claimRefused(ctx, matchID, err)
	}

	slot := done.SlotOf(participantID)
	res.Result = ClaimVictory
	res.Match = done
	res.Clicks = slot.Clicks
	res.Path = slot.Path
	res.Elapsed = done.Elapsed(now)
	res.NewRating = ratingAfter(done, participantID)
	e.metrics.Claim(string(ClaimVictory))
	e.afterComplete(ctx, done)
	return res, nil
}

// claimPhase maps the match phase to the claim errors. It has no side
// effects and may run inside a store transaction.
func claimPhase(m *domain.Match, participantID string, now time.Time) error {
	if m.SlotOf(participantID) == nil {
		return domain.ErrNotInMatch
	}
	switch m.Status {
	case domain.StatusComplete:
		return domain.ErrMatchAlreadyComplete
	case domain.StatusActive:
	default:
		return domain.ErrMatchNotActive
	}
	if m.StartedAt != nil && now.Before(*m.StartedAt) {
		return domain.ErrCountdown
	}
	if m.Expired(now) {
		return domain.ErrExpired
	}
	return nil
}

// claimRefused hands an expired match to Resolve in the background.
func (e *Engine) claimRefused(ctx context.Context, matchID string, err error) error {
	if errors.Is(err, domain.ErrExpired) {
		e.resolveAsync(ctx, matchID)
	}
	return err
}
