package frames

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 2 * time.Hour

// Redis keeps one hash per match; the key expires ttl after the last write.
type Redis struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedis(rdb redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

func frameKey(matchID string) string { return "arena:frames:" + strings.TrimSpace(matchID) }

func (r *Redis) Put(ctx context.Context, matchID, participantID string, s Snapshot) error {
	matchID, participantID = strings.TrimSpace(matchID), strings.TrimSpace(participantID)
	if matchID == "" || participantID == "" {
		return nil
	}
	if s.CapturedAt.IsZero() {
		s.CapturedAt = time.Now()
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	key := frameKey(matchID)
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, participantID, raw)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store frame: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, matchID, participantID string) (Snapshot, bool, error) {
	raw, err := r.rdb.HGet(ctx, frameKey(matchID), strings.TrimSpace(participantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode frame: %w", err)
	}
	return s, true, nil
}

func (r *Redis) Clear(ctx context.Context, matchID string) error {
	return r.rdb.Del(ctx, frameKey(matchID)).Err()
}

// Sweep is a no-op: key expiry bounds retention.
func (r *Redis) Sweep(context.Context, time.Time) (int, error) { return 0, nil }
