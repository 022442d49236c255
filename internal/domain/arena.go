package domain

import (
	"time"
)

// Status is the lifecycle position of a match. Transitions only move forward.
type Status string

const (
	StatusWaitingForOpponent Status = "waiting_for_opponent"
	StatusReadyCheck         Status = "ready_check"
	StatusActive             Status = "active"
	StatusComplete           Status = "complete"
)

// Rank orders statuses; a transition is legal only when it increases the rank.
func (s Status) Rank() int {
	switch s {
	case StatusWaitingForOpponent:
		return 0
	case StatusReadyCheck:
		return 1
	case StatusActive:
		return 2
	case StatusComplete:
		return 3
	default:
		return -1
	}
}

func (s Status) Terminal() bool { return s == StatusComplete }

// Origin records how a match was created.
type Origin string

const (
	OriginQueue  Origin = "queue"
	OriginHosted Origin = "hosted"
)

// Method records how a completed match was decided.
type Method string

const (
	MethodClaim        Method = "claim"
	MethodAdjudication Method = "adjudication"
)

type Participant struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Rating         int       `json:"rating"`
	Wins           int       `json:"wins"`
	Losses         int       `json:"losses"`
	Draws          int       `json:"draws"`
	BestClickCount *int      `json:"best_click_count,omitempty"`
	LedgerRef      string    `json:"ledger_ref,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Ticket is a queued participant waiting for an opponent.
type Ticket struct {
	ParticipantID string    `json:"participant_id"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// Slot is one of the two participant positions of a match.
type Slot struct {
	ParticipantID string   `json:"participant_id,omitempty"`
	Name          string   `json:"name,omitempty"`
	Ready         bool     `json:"ready"`
	Clicks        int      `json:"clicks"`
	Path          []string `json:"path"`
}

func (s *Slot) Empty() bool { return s == nil || s.ParticipantID == "" }

// AppendPath adds a page to the visited path unless already present.
func (s *Slot) AppendPath(page string) bool {
	if page == "" {
		return false
	}
	for _, p := range s.Path {
		if p == page {
			return false
		}
	}
	s.Path = append(s.Path, page)
	return true
}

// RatingUpdate is the before/after pair produced for one completed match.
type RatingUpdate struct {
	ParticipantID string `json:"participant_id"`
	Before        int    `json:"before"`
	After         int    `json:"after"`
}

type Match struct {
	ID          string         `json:"id"`
	Origin      Origin         `json:"origin"`
	Status      Status         `json:"status"`
	SlotA       Slot           `json:"slot_a"`
	SlotB       Slot           `json:"slot_b"`
	Task        string         `json:"task"`
	StartURL    string         `json:"start_url"`
	Target      string         `json:"target"`
	TimeLimit   time.Duration  `json:"time_limit"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	EndsAt      *time.Time     `json:"ends_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	WinnerID    string         `json:"winner_id,omitempty"`
	Draw        bool           `json:"draw,omitempty"`
	Method      Method         `json:"method,omitempty"`
	Rationale   string         `json:"rationale,omitempty"`
	Ratings     []RatingUpdate `json:"ratings,omitempty"`
}

// SlotOf returns the slot held by participantID, or nil.
func (m *Match) SlotOf(participantID string) *Slot {
	if participantID == "" {
		return nil
	}
	if m.SlotA.ParticipantID == participantID {
		return &m.SlotA
	}
	if m.SlotB.ParticipantID == participantID {
		return &m.SlotB
	}
	return nil
}

// Opponent returns the other slot of participantID, or nil.
func (m *Match) Opponent(participantID string) *Slot {
	switch participantID {
	case "":
		return nil
	case m.SlotA.ParticipantID:
		return &m.SlotB
	case m.SlotB.ParticipantID:
		return &m.SlotA
	}
	return nil
}

func (m *Match) ParticipantIDs() []string {
	ids := make([]string, 0, 2)
	if !m.SlotA.Empty() {
		ids = append(ids, m.SlotA.ParticipantID)
	}
	if !m.SlotB.Empty() {
		ids = append(ids, m.SlotB.ParticipantID)
	}
	return ids
}

// Expired reports whether the active clock has run out at now.
func (m *Match) Expired(now time.Time) bool {
	return m.Status == StatusActive && m.EndsAt != nil && now.After(*m.EndsAt)
}

// Racing reports whether the clock is running at now: active, past the
// countdown and not expired.
func (m *Match) Racing(now time.Time) bool {
	if m.Status != StatusActive || m.Expired(now) {
		return false
	}
	return m.StartedAt == nil || !now.Before(*m.StartedAt)
}

// Remaining is the time left on the clock, clamped at zero. ok is false
// before activation.
func (m *Match) Remaining(now time.Time) (time.Duration, bool) {
	if m.EndsAt == nil {
		return 0, false
	}
	if m.Status == StatusComplete {
		return 0, true
	}
	d := m.EndsAt.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Elapsed is the racing time between the start of the clock and at.
func (m *Match) Elapsed(at time.Time) time.Duration {
	if m.StartedAt == nil || at.Before(*m.StartedAt) {
		return 0
	}
	return at.Sub(*m.StartedAt)
}
