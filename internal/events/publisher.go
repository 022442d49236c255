// Package events fans match events out to spectators. Publishing is
// fire-and-forget: a broken event path never fails a match operation.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/linkrace-arena/internal/obslog"
	"github.com/park285/linkrace-arena/pkg/arenadto"
)

const channelPrefix = "arena:events:"

func Channel(matchID string) string { return channelPrefix + strings.TrimSpace(matchID) }

type Publisher interface {
	Publish(ctx context.Context, matchID, name string, payload any)
}

// Envelope wraps payload for the wire.
func Envelope(matchID, name string, payload any, at time.Time) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(arenadto.Event{MatchID: matchID, Name: name, Payload: body, EmittedAt: at})
}

type RedisPublisher struct {
	rdb   redis.UniversalClient
	clock clockwork.Clock
}

func NewRedisPublisher(rdb redis.UniversalClient, clock clockwork.Clock) *RedisPublisher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RedisPublisher{rdb: rdb, clock: clock}
}

func (p *RedisPublisher) Publish(ctx context.Context, matchID, name string, payload any) {
	raw, err := Envelope(matchID, name, payload, p.clock.Now())
	if err != nil {
		obslog.L().Error("event_encode_error", zap.String("match_id", matchID), zap.String("event", name), zap.Error(err))
		return
	}
	if err := p.rdb.Publish(ctx, Channel(matchID), raw).Err(); err != nil {
		obslog.L().Warn("event_publish_error", zap.String("match_id", matchID), zap.String("event", name), zap.Error(err))
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

type Recorded struct {
	MatchID string
	Name    string
	Payload any
}

func (r *Recorder) Publish(_ context.Context, matchID, name string, payload any) {
	r.mu.Lock()
	r.events = append(r.events, Recorded{MatchID: matchID, Name: name, Payload: payload})
	r.mu.Unlock()
}

func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}

// Count returns how many events named name were published.
func (r *Recorder) Count(name string) int {
	n := 0
	for _, e := range r.Events() {
		if e.Name == name {
			n++
		}
	}
	return n
}
