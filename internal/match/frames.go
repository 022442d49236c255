package match

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/frames"
	"github.com/park285/linkrace-arena/internal/obslog"
	"github.com/park285/linkrace-arena/internal/store"
	"github.com/park285/linkrace-arena/internal/verify"
	"github.com/park285/linkrace-arena/pkg/arenadto"
)

type FrameInput struct {
	Location   string
	ClickCount int
	Thought    string
	Image      string
}

// PushFrame records the participant's latest frame. Once the countdown is
// over it also advances the slot's click counter and visited path.
// Frames arriving after the clock ran out are ignored; accepted reports
// whether the frame was stored.
func (e *Engine) PushFrame(ctx context.Context, matchID, participantID string, in FrameInput) (accepted bool, err error) {
	m, err := e.store.Match(ctx, matchID)
	if err != nil {
		return false, err
	}
	if m.SlotOf(participantID) == nil {
		return false, domain.ErrNotInMatch
	}
	if m.Status.Terminal() {
		return false, domain.ErrMatchAlreadyComplete
	}
	now := e.clock.Now()
	if m.Expired(now) {
		e.resolveAsync(ctx, m.ID)
		return false, nil
	}
	if in.ClickCount < 0 {
		in.ClickCount = 0
	}

	snap := frames.Snapshot{
		Location:   strings.TrimSpace(in.Location),
		ClickCount: in.ClickCount,
		Thought:    in.Thought,
		Image:      in.Image,
		CapturedAt: now,
	}
	if err := e.frames.Put(ctx, m.ID, participantID, snap); err != nil {
		return false, err
	}
	e.metrics.FrameReceived()

	if m.Racing(now) {
		title, terr := verify.Title(snap.Location)
		_, err := e.store.UpdateMatch(ctx, m.ID, func(cur *domain.Match) error {
			if !cur.Racing(now) {
				return store.ErrNoChange
			}
			slot := cur.SlotOf(participantID)
			changed := false
			if snap.ClickCount > slot.Clicks {
				slot.Clicks = snap.ClickCount
				changed = true
			}
			if terr == nil && slot.AppendPath(title) {
				changed = true
			}
			if !changed {
				return store.ErrNoChange
			}
			return nil
		})
		if err != nil {
			obslog.L().Warn("frame_progress_error", zap.String("match_id", m.ID), zap.String("participant_id", participantID), zap.Error(err))
		}
	}

	e.events.Publish(ctx, m.ID, arenadto.EventFrameUpdate, arenadto.FrameEvent{
		AgentID:    participantID,
		CurrentURL: snap.Location,
		ClickCount: snap.ClickCount,
		Thought:    snap.Thought,
		Frame:      snap.Image,
		CapturedAt: snap.CapturedAt,
	})
	return true, nil
}
