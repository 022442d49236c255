package frames

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jonboulle/clockwork"
)

const defaultShards = 32

type shard struct {
	mu      sync.RWMutex
	matches map[string]map[string]Snapshot
}

// Memory is an in-process Store. Matches are spread over independently
// locked shards so unrelated matches never contend.
type Memory struct {
	shards []*shard
	clock  clockwork.Clock
}

type MemoryOption func(*Memory)

func WithClock(c clockwork.Clock) MemoryOption {
	return func(m *Memory) {
		if c != nil {
			m.clock = c
		}
	}
}

func WithShards(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.shards = newShards(n)
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{shards: newShards(defaultShards), clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func newShards(n int) []*shard {
	out := make([]*shard, n)
	for i := range out {
		out[i] = &shard{matches: make(map[string]map[string]Snapshot)}
	}
	return out
}

func (m *Memory) shardFor(matchID string) *shard {
	return m.shards[xxhash.Sum64String(matchID)%uint64(len(m.shards))]
}

func (m *Memory) Put(_ context.Context, matchID, participantID string, s Snapshot) error {
	matchID, participantID = strings.TrimSpace(matchID), strings.TrimSpace(participantID)
	if matchID == "" || participantID == "" {
		return nil
	}
	if s.CapturedAt.IsZero() {
		s.CapturedAt = m.clock.Now()
	}
	sh := m.shardFor(matchID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	byParticipant, ok := sh.matches[matchID]
	if !ok {
		byParticipant = make(map[string]Snapshot, 2)
		sh.matches[matchID] = byParticipant
	}
	byParticipant[participantID] = s
	return nil
}

func (m *Memory) Get(_ context.Context, matchID, participantID string) (Snapshot, bool, error) {
	sh := m.shardFor(strings.TrimSpace(matchID))
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.matches[strings.TrimSpace(matchID)][strings.TrimSpace(participantID)]
	return s, ok, nil
}

func (m *Memory) Clear(_ context.Context, matchID string) error {
	matchID = strings.TrimSpace(matchID)
	sh := m.shardFor(matchID)
	sh.mu.Lock()
	delete(sh.matches, matchID)
	sh.mu.Unlock()
	return nil
}

func (m *Memory) Sweep(_ context.Context, olderThan time.Time) (int, error) {
	removed := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		for matchID, byParticipant := range sh.matches {
			for pid, s := range byParticipant {
				if s.CapturedAt.Before(olderThan) {
					delete(byParticipant, pid)
					removed++
				}
			}
			if len(byParticipant) == 0 {
				delete(sh.matches, matchID)
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}
