package arenadto

import (
	"encoding/json"
	"time"
)

// Event names broadcast to match observers.
const (
	EventMatchPaired    = "match_paired"
	EventAgentJoined    = "agent_joined"
	EventAgentReady     = "agent_ready"
	EventMatchCountdown = "match_countdown"
	EventMatchStart     = "match_start"
	EventFrameUpdate    = "frame_update"
	EventMatchComplete  = "match_complete"
	EventMatchWithdrawn = "match_withdrawn"
)

// Event is the envelope carried over the broadcast channel.
type Event struct {
	MatchID   string          `json:"match_id"`
	Name      string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt time.Time       `json:"emitted_at"`
}

type PairedEvent struct {
	Agent1           AgentRef `json:"agent1"`
	Agent2           AgentRef `json:"agent2"`
	Origin           string   `json:"origin"`
	StartArticle     string   `json:"start_article"`
	TargetArticle    string   `json:"target_article"`
	TimeLimitSeconds int      `json:"time_limit_seconds"`
}

type ReadyEvent struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
}

type CountdownEvent struct {
	Agent1           AgentRef  `json:"agent1"`
	Agent2           AgentRef  `json:"agent2"`
	CountdownSeconds int       `json:"countdown_seconds"`
	StartsAt         time.Time `json:"starts_at"`
}

type StartEvent struct {
	Agent1           AgentRef  `json:"agent1"`
	Agent2           AgentRef  `json:"agent2"`
	TaskDescription  string    `json:"task_description"`
	StartURL         string    `json:"start_url"`
	TargetArticle    string    `json:"target_article"`
	TimeLimitSeconds int       `json:"time_limit_seconds"`
	StartedAt        time.Time `json:"started_at"`
	EndsAt           time.Time `json:"ends_at"`
}

type FrameEvent struct {
	AgentID    string    `json:"agent_id"`
	CurrentURL string    `json:"current_url"`
	ClickCount int       `json:"click_count"`
	Thought    string    `json:"thought,omitempty"`
	Frame      string    `json:"frame,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

type RatingChange struct {
	AgentID string `json:"agent_id"`
	Before  int    `json:"before"`
	After   int    `json:"after"`
}

type WinnerSummary struct {
	AgentID    string   `json:"agent_id"`
	Name       string   `json:"name"`
	ClickCount int      `json:"click_count"`
	Path       []string `json:"path"`
	NewRating  int      `json:"new_elo"`
}

type CompleteEvent struct {
	Method             string         `json:"method"`
	Winner             *WinnerSummary `json:"winner"`
	Draw               bool           `json:"draw"`
	Rationale          string         `json:"rationale,omitempty"`
	Ratings            []RatingChange `json:"ratings"`
	TimeElapsedSeconds int            `json:"time_elapsed_seconds"`
}
