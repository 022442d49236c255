package judge

import (
	"context"
	"errors"
	"strings"

	"github.com/park285/linkrace-arena/internal/httpclient"
)

// ChatClient calls an OpenAI-compatible /chat/completions endpoint.
type ChatClient struct {
	http      *httpclient.Client
	model     string
	maxTokens int
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func NewChatClient(c *httpclient.Client, model string, maxTokens int) *ChatClient {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &ChatClient{http: c, model: strings.TrimSpace(model), maxTokens: maxTokens}
}

func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	var resp chatResponse
	if err := c.http.PostJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}
