// Package frames keeps the latest observation each participant reported for
// a match. Frames are ephemeral: last write wins and nothing is archived.
package frames

import (
	"context"
	"time"
)

// Snapshot is the latest reported view of one participant.
type Snapshot struct {
	Location   string    `json:"location"`
	ClickCount int       `json:"click_count"`
	Thought    string    `json:"thought,omitempty"`
	Image      string    `json:"image,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// Store is implemented by Memory and Redis.
type Store interface {
	Put(ctx context.Context, matchID, participantID string, s Snapshot) error
	Get(ctx context.Context, matchID, participantID string) (Snapshot, bool, error)
	Clear(ctx context.Context, matchID string) error
	// Sweep drops snapshots captured before olderThan and reports how many.
	Sweep(ctx context.Context, olderThan time.Time) (int, error)
}
