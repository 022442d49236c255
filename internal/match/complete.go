package match

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/ledger"
	"github.com/park285/linkrace-arena/internal/obslog"
	"github.com/park285/linkrace-arena/internal/rating"
	"github.com/park285/linkrace-arena/pkg/arenadto"
)

// result is what finish applies to a match and its two participants.
type result struct {
	outcome   rating.Outcome
	method    domain.Method
	rationale string
	at        time.Time
}

// finish moves m to complete and updates both participants. It runs inside
// the store's complete transaction and may run more than once.
func (e *Engine) finish(m *domain.Match, a, b *domain.Participant, r result) {
	change := e.rating.Update(a.Rating, b.Rating, r.outcome)
	a.Rating, b.Rating = change.AfterA, change.AfterB
	a.UpdatedAt, b.UpdatedAt = r.at, r.at

	m.WinnerID, m.Draw = "", false
	switch r.outcome {
	case rating.AWins:
		m.WinnerID = a.ID
		a.Wins++
		b.Losses++
	case rating.BWins:
		m.WinnerID = b.ID
		b.Wins++
		a.Losses++
	default:
		m.Draw = true
		a.Draws++
		b.Draws++
	}
	if r.method == domain.MethodClaim && m.WinnerID != "" {
		w := a
		clicks := m.SlotA.Clicks
		if m.WinnerID == b.ID {
			w, clicks = b, m.SlotB.Clicks
		}
		if w.BestClickCount == nil || clicks < *w.BestClickCount {
			best := clicks
			w.BestClickCount = &best
		}
	}

	at := r.at
	m.Status = domain.StatusComplete
	m.CompletedAt = &at
	m.Method = r.method
	m.Rationale = r.rationale
	m.Ratings = []domain.RatingUpdate{
		{ParticipantID: a.ID, Before: change.BeforeA, After: change.AfterA},
		{ParticipantID: b.ID, Before: change.BeforeB, After: change.AfterB},
	}
}

// afterComplete runs the side effects of a committed completion. None of
// them can fail the caller.
func (e *Engine) afterComplete(ctx context.Context, m *domain.Match) {
	if err := e.frames.Clear(ctx, m.ID); err != nil {
		obslog.L().Warn("frame_clear_error", zap.String("match_id", m.ID), zap.Error(err))
	}

	outcome := "draw"
	if !m.Draw {
		outcome = "win"
	}
	e.metrics.MatchCompleted(string(m.Method), outcome)
	obslog.L().Info("match_complete",
		zap.String("match_id", m.ID),
		zap.String("method", string(m.Method)),
		zap.String("winner_id", m.WinnerID),
		zap.Bool("draw", m.Draw),
	)
	e.events.Publish(ctx, m.ID, arenadto.EventMatchComplete, e.completeEvent(m))

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	var parts []domain.Participant
	for _, id := range m.ParticipantIDs() {
		p, err := e.store.Participant(pctx, id)
		if err != nil {
			obslog.L().Warn("participant_reload_error", zap.String("participant_id", id), zap.Error(err))
			continue
		}
		parts = append(parts, p)
	}
	if e.archive != nil {
		if err := e.archive.SaveMatch(pctx, m); err != nil {
			obslog.L().Error("match_archive_error", zap.String("match_id", m.ID), zap.Error(err))
		}
		for _, p := range parts {
			if err := e.archive.SaveParticipant(pctx, p); err != nil {
				obslog.L().Error("participant_archive_error", zap.String("participant_id", p.ID), zap.Error(err))
			}
		}
	}
	if e.ledger != nil {
		recs := make([]ledger.Record, 0, len(parts))
		for _, p := range parts {
			recs = append(recs, ledgerRecord(m, p))
		}
		e.ledger.Dispatch(recs...)
	}
}

func ledgerRecord(m *domain.Match, p domain.Participant) ledger.Record {
	outcome := "loss"
	switch {
	case m.Draw:
		outcome = "draw"
	case m.WinnerID == p.ID:
		outcome = "win"
	}
	clicks := 0
	if s := m.SlotOf(p.ID); s != nil {
		clicks = s.Clicks
	}
	return ledger.Record{Ref: p.LedgerRef, MatchID: m.ID, Outcome: outcome, Rating: p.Rating, ClickCount: clicks}
}

func (e *Engine) completeEvent(m *domain.Match) arenadto.CompleteEvent {
	ev := arenadto.CompleteEvent{
		Method:    string(m.Method),
		Draw:      m.Draw,
		Rationale: m.Rationale,
	}
	if m.CompletedAt != nil {
		ev.TimeElapsedSeconds = int(m.Elapsed(*m.CompletedAt).Seconds())
	}
	for _, r := range m.Ratings {
		ev.Ratings = append(ev.Ratings, arenadto.RatingChange{AgentID: r.ParticipantID, Before: r.Before, After: r.After})
	}
	if w := m.SlotOf(m.WinnerID); w != nil {
		ev.Winner = &arenadto.WinnerSummary{
			AgentID:    w.ParticipantID,
			Name:       w.Name,
			ClickCount: w.Clicks,
			Path:       w.Path,
			NewRating:  ratingAfter(m, w.ParticipantID),
		}
	}
	return ev
}

func ratingAfter(m *domain.Match, participantID string) int {
	for _, r := range m.Ratings {
		if r.ParticipantID == participantID {
			return r.After
		}
	}
	return 0
}
