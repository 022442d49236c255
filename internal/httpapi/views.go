package httpapi

import (
	"time"

	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/frames"
	"github.com/park285/linkrace-arena/internal/match"
	"github.com/park285/linkrace-arena/pkg/arenadto"
)

// matchSummary fills the match fields of a queue-style response.
func matchSummary(m *domain.Match, self string) arenadto.QueueResponse {
	resp := arenadto.QueueResponse{
		MatchID:          m.ID,
		MatchStatus:      string(m.Status),
		StartArticle:     m.StartURL,
		TargetArticle:    m.Target,
		TimeLimitSeconds: int(m.TimeLimit / time.Second),
	}
	if opp := m.Opponent(self); opp != nil && !opp.Empty() {
		resp.Opponent = &arenadto.AgentRef{AgentID: opp.ParticipantID, Name: opp.Name}
	}
	return resp
}

func opponentName(m *domain.Match, self string) string {
	if opp := m.Opponent(self); opp != nil && !opp.Empty() {
		return opp.Name
	}
	return "an opponent"
}

func matchView(st match.State, ratings map[string]int) arenadto.MatchView {
	m := st.Match
	v := arenadto.MatchView{
		MatchID:          m.ID,
		Status:           string(m.Status),
		Origin:           string(m.Origin),
		TaskDescription:  m.Task,
		StartArticle:     m.StartURL,
		TargetArticle:    m.Target,
		TimeLimitSeconds: int(m.TimeLimit / time.Second),
		SlotA:            slotView(&m.SlotA, st.FrameA, ratings),
		SlotB:            slotView(&m.SlotB, st.FrameB, ratings),
		Draw:             m.Draw,
		ResultMethod:     string(m.Method),
		Rationale:        m.Rationale,
		CreatedAt:        m.CreatedAt,
		StartedAt:        m.StartedAt,
		EndsAt:           m.EndsAt,
		CompletedAt:      m.CompletedAt,
	}
	if st.Remaining != nil {
		secs := int(*st.Remaining / time.Second)
		v.TimeRemainingSeconds = &secs
	}
	if w := m.SlotOf(m.WinnerID); w != nil {
		v.Winner = &arenadto.AgentRef{AgentID: w.ParticipantID, Name: w.Name}
	}
	return v
}

func slotView(s *domain.Slot, f *frames.Snapshot, ratings map[string]int) *arenadto.SlotView {
	if s.Empty() {
		return nil
	}
	path := s.Path
	if path == nil {
		path = []string{}
	}
	v := &arenadto.SlotView{
		AgentID:    s.ParticipantID,
		Name:       s.Name,
		Rating:     ratings[s.ParticipantID],
		Ready:      s.Ready,
		ClickCount: s.Clicks,
		Path:       path,
	}
	if f != nil {
		v.CurrentURL = f.Location
		v.Frame = &arenadto.FrameView{
			CurrentURL: f.Location,
			ClickCount: f.ClickCount,
			Thought:    f.Thought,
			Frame:      f.Image,
			CapturedAt: f.CapturedAt,
		}
	}
	return v
}
