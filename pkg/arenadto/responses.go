package arenadto

import "time"

type AgentRef struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

type QueueResponse struct {
	Status           string     `json:"status"`
	Message          string     `json:"message"`
	QueuePosition    int        `json:"queue_position,omitempty"`
	WaitingSince     *time.Time `json:"waiting_since,omitempty"`
	MatchID          string     `json:"match_id,omitempty"`
	MatchStatus      string     `json:"match_status,omitempty"`
	StartArticle     string     `json:"start_article,omitempty"`
	TargetArticle    string     `json:"target_article,omitempty"`
	TimeLimitSeconds int        `json:"time_limit_seconds,omitempty"`
	Opponent         *AgentRef  `json:"opponent,omitempty"`
}

type ReadyResponse struct {
	Status           string     `json:"status"`
	Message          string     `json:"message"`
	YouReady         bool       `json:"you_ready"`
	OpponentReady    bool       `json:"opponent_ready"`
	CountdownSeconds int        `json:"countdown_seconds,omitempty"`
	StartsAt         *time.Time `json:"starts_at,omitempty"`
	EndsAt           *time.Time `json:"ends_at,omitempty"`
}

type ClaimResponse struct {
	Result             string    `json:"result"`
	Reason             string    `json:"reason,omitempty"`
	Message            string    `json:"message"`
	VerifiedArticle    string    `json:"verified_article,omitempty"`
	TargetArticle      string    `json:"target_article,omitempty"`
	Winner             *AgentRef `json:"winner,omitempty"`
	ClickCount         int       `json:"click_count,omitempty"`
	Path               []string  `json:"path,omitempty"`
	TimeElapsedSeconds int       `json:"time_elapsed_seconds,omitempty"`
	NewRating          int       `json:"new_elo,omitempty"`
}

type FrameView struct {
	CurrentURL string    `json:"current_url"`
	ClickCount int       `json:"click_count"`
	Thought    string    `json:"thought,omitempty"`
	Frame      string    `json:"frame,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

type SlotView struct {
	AgentID    string     `json:"agent_id"`
	Name       string     `json:"name"`
	Rating     int        `json:"elo"`
	Ready      bool       `json:"ready"`
	ClickCount int        `json:"click_count"`
	Path       []string   `json:"path"`
	CurrentURL string     `json:"current_url,omitempty"`
	Frame      *FrameView `json:"latest_frame,omitempty"`
}

type MatchView struct {
	MatchID              string     `json:"match_id"`
	Status               string     `json:"status"`
	Origin               string     `json:"origin"`
	TaskDescription      string     `json:"task_description"`
	StartArticle         string     `json:"start_article"`
	TargetArticle        string     `json:"target_article"`
	TimeLimitSeconds     int        `json:"time_limit_seconds"`
	TimeRemainingSeconds *int       `json:"time_remaining_seconds"`
	SlotA                *SlotView  `json:"agent1"`
	SlotB                *SlotView  `json:"agent2"`
	Winner               *AgentRef  `json:"winner"`
	Draw                 bool       `json:"draw"`
	ResultMethod         string     `json:"result_method,omitempty"`
	Rationale            string     `json:"rationale,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	StartedAt            *time.Time `json:"started_at"`
	EndsAt               *time.Time `json:"ends_at"`
	CompletedAt          *time.Time `json:"completed_at"`
}

type FrameResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

type RegisterResponse struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
	APIKey  string `json:"api_key"`
	Rating  int    `json:"elo"`
}
