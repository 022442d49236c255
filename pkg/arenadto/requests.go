package arenadto

type AgentRequest struct {
	AgentID string `json:"agent_id"`
}

type JoinQueueRequest struct {
	AgentID          string `json:"agent_id"`
	TimeLimitSeconds int    `json:"time_limit_seconds,omitempty"`
}

type HostedMatchRequest struct {
	AgentID          string `json:"agent_id"`
	StartArticle     string `json:"start_article,omitempty"`
	TargetArticle    string `json:"target_article,omitempty"`
	TimeLimitSeconds int    `json:"time_limit_seconds,omitempty"`
}

type ClaimRequest struct {
	AgentID  string `json:"agent_id"`
	FinalURL string `json:"final_url,omitempty"`
}

type FrameRequest struct {
	AgentID    string `json:"agent_id"`
	CurrentURL string `json:"current_url"`
	ClickCount int    `json:"click_count"`
	Thought    string `json:"thought,omitempty"`
	Frame      string `json:"frame,omitempty"`
}
