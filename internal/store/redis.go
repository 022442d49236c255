package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/obslog"
)

const (
	defaultRetention = 24 * time.Hour
	defaultRetries   = 8
)

type Redis struct {
	rdb       *redis.Client
	retention time.Duration
	retries   int
}

type Option func(*Redis)

// WithRetention sets how long completed matches stay readable.
func WithRetention(d time.Duration) Option {
	return func(r *Redis) {
		if d > 0 {
			r.retention = d
		}
	}
}

func WithRetries(n int) Option {
	return func(r *Redis) {
		if n > 0 {
			r.retries = n
		}
	}
}

func NewRedis(rdb *redis.Client, opts ...Option) *Redis {
	r := &Redis{rdb: rdb, retention: defaultRetention, retries: defaultRetries}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open connects to REDIS_URL and pings it.
func Open(ctx context.Context, redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (r *Redis) Client() *redis.Client { return r.rdb }

// watch runs fn under WATCH on keys, retrying optimistic-lock failures.
func (r *Redis) watch(ctx context.Context, op string, fn func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < r.retries; attempt++ {
		err := r.rdb.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
	}
	obslog.L().Warn("store_conflict", zap.String("op", op), zap.Strings("keys", keys))
	return domain.ErrConflict
}

// Participants

func (r *Redis) CreateParticipant(ctx context.Context, p domain.Participant, keyHash string) error {
	if strings.TrimSpace(p.ID) == "" {
		return domain.ErrInvalidArgs
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, keyParticipant(p.ID), raw, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("participant %s already exists: %w", p.ID, domain.ErrInvalidArgs)
	}
	if strings.TrimSpace(keyHash) != "" {
		if err := r.rdb.Set(ctx, keyAPIKey(keyHash), p.ID, 0).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Redis) Participant(ctx context.Context, id string) (domain.Participant, error) {
	return readParticipant(ctx, r.rdb, id)
}

func (r *Redis) ParticipantByKeyHash(ctx context.Context, hash string) (domain.Participant, error) {
	id, err := r.rdb.Get(ctx, keyAPIKey(hash)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Participant{}, domain.ErrUnauthenticated
	}
	if err != nil {
		return domain.Participant{}, err
	}
	return r.Participant(ctx, id)
}

func (r *Redis) SaveParticipant(ctx context.Context, p domain.Participant) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, keyParticipant(p.ID), raw, 0).Err()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readParticipant(ctx context.Context, g getter, id string) (domain.Participant, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	raw, err := g.Get(ctx, keyParticipant(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, err
	}
	var p domain.Participant
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Participant{}, fmt.Errorf("decode participant: %w", err)
	}
	return p, nil
}

func readMatch(ctx context.Context, g getter, id string) (*domain.Match, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrMatchNotFound
	}
	raw, err := g.Get(ctx, keyMatch(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	var m domain.Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode match: %w", err)
	}
	return &m, nil
}

// Matches

func (r *Redis) Match(ctx context.Context, id string) (*domain.Match, error) {
	return readMatch(ctx, r.rdb, id)
}

func (r *Redis) OpenMatch(ctx context.Context, m *domain.Match) error {
	creator := m.SlotA.ParticipantID
	if strings.TrimSpace(m.ID) == "" || creator == "" {
		return domain.ErrInvalidArgs
	}
	return r.watch(ctx, "open_match", func(tx *redis.Tx) error {
		if err := r.ensureFree(ctx, tx, creator); err != nil {
			return err
		}
		raw, err := json.Marshal(m)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, keyMatch(m.ID), raw, 0)
			pipe.Set(ctx, keyActive(creator), m.ID, 0)
			return nil
		})
		return err
	}, keyQueue, keyActive(creator))
}

func (r *Redis) FillSlot(ctx context.Context, id, participantID string, fn func(*domain.Match) error) (*domain.Match, error) {
	var out *domain.Match
	err := r.watch(ctx, "fill_slot", func(tx *redis.Tx) error {
		m, err := readMatch(ctx, tx, id)
		if err != nil {
			return err
		}
		if m.Status.Terminal() {
			return domain.ErrMatchAlreadyComplete
		}
		if m.SlotOf(participantID) == nil {
			if err := r.ensureFree(ctx, tx, participantID); err != nil {
				return err
			}
		}
		if err := fn(m); err != nil {
			return err
		}
		raw, err := json.Marshal(m)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, keyMatch(m.ID), raw, 0)
			pipe.Set(ctx, keyActive(participantID), m.ID, 0)
			return nil
		})
		if err == nil {
			out = m
		}
		return err
	}, keyMatch(id), keyQueue, keyActive(participantID))
	if errors.Is(err, ErrNoChange) {
		return r.Match(ctx, id)
	}
	return out, err
}

// WithdrawMatch deletes a hosted match nobody has joined yet and frees its
// creator.
func (r *Redis) WithdrawMatch(ctx context.Context, id, participantID string) (*domain.Match, error) {
	var out *domain.Match
	err := r.watch(ctx, "withdraw_match", func(tx *redis.Tx) error {
		m, err := readMatch(ctx, tx, id)
		if err != nil {
			return err
		}
		switch {
		case m.SlotOf(participantID) == nil:
			return domain.ErrNotInMatch
		case m.SlotA.ParticipantID != participantID:
			return domain.ErrNotCreator
		case m.Status.Terminal():
			return domain.ErrMatchAlreadyComplete
		case m.Status != domain.StatusWaitingForOpponent:
			return domain.ErrSlotAlreadyFilled
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, keyMatch(m.ID))
			pipe.Del(ctx, keyActive(participantID))
			return nil
		})
		if err == nil {
			out = m
		}
		return err
	}, keyMatch(id), keyActive(participantID))
	return out, err
}

func (r *Redis) UpdateMatch(ctx context.Context, id string, fn func(*domain.Match) error) (*domain.Match, error) {
	var out *domain.Match
	err := r.watch(ctx, "update_match", func(tx *redis.Tx) error {
		m, err := readMatch(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
		raw, err := json.Marshal(m)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, keyMatch(m.ID), raw, 0)
			if m.Status == domain.StatusActive && m.EndsAt != nil {
				pipe.ZAdd(ctx, keyDeadlines, redis.Z{Score: float64(m.EndsAt.UnixMilli()), Member: m.ID})
			}
			return nil
		})
		if err == nil {
			out = m
		}
		return err
	}, keyMatch(id))
	if errors.Is(err, ErrNoChange) {
		return r.Match(ctx, id)
	}
	return out, err
}

// CompleteMatch writes the final match, both participants and index cleanup
// in one transaction. fn must move the match to complete.
func (r *Redis) CompleteMatch(ctx context.Context, id string, fn CompleteFunc) (*domain.Match, error) {
	m, err := r.Match(ctx, id)
	if err != nil {
		return nil, err
	}
	a, b := m.SlotA.ParticipantID, m.SlotB.ParticipantID
	keys := []string{keyMatch(id), keyParticipant(a), keyParticipant(b), keyActive(a), keyActive(b)}

	var out *domain.Match
	err = r.watch(ctx, "complete_match", func(tx *redis.Tx) error {
		cur, err := readMatch(ctx, tx, id)
		if err != nil {
			return err
		}
		pa, err := readParticipant(ctx, tx, a)
		if err != nil {
			return err
		}
		pb, err := readParticipant(ctx, tx, b)
		if err != nil {
			return err
		}
		if err := fn(cur, &pa, &pb); err != nil {
			return err
		}
		if cur.Status != domain.StatusComplete {
			return fmt.Errorf("complete callback left match in %s", cur.Status)
		}
		idxA, _ := tx.Get(ctx, keyActive(a)).Result()
		idxB, _ := tx.Get(ctx, keyActive(b)).Result()

		rawM, err := json.Marshal(cur)
		if err != nil {
			return err
		}
		rawA, err := json.Marshal(pa)
		if err != nil {
			return err
		}
		rawB, err := json.Marshal(pb)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, keyMatch(id), rawM, r.retention)
			pipe.Set(ctx, keyParticipant(a), rawA, 0)
			pipe.Set(ctx, keyParticipant(b), rawB, 0)
			if idxA == id {
				pipe.Del(ctx, keyActive(a))
			}
			if idxB == id {
				pipe.Del(ctx, keyActive(b))
			}
			pipe.ZRem(ctx, keyDeadlines, id)
			return nil
		})
		if err == nil {
			out = cur
		}
		return err
	}, keys...)
	return out, err
}

// ensureFree fails when participantID is queued or holds a live match. Stale
// index entries (missing or completed matches) are ignored.
func (r *Redis) ensureFree(ctx context.Context, tx *redis.Tx, participantID string) error {
	if _, err := tx.ZScore(ctx, keyQueue, participantID).Result(); err == nil {
		return domain.ErrAlreadyQueued
	} else if !errors.Is(err, redis.Nil) {
		return err
	}
	live, err := liveMatch(ctx, tx, participantID)
	if err != nil {
		return err
	}
	if live != "" {
		return domain.ErrAlreadyInMatch
	}
	return nil
}

func liveMatch(ctx context.Context, g getter, participantID string) (string, error) {
	id, err := g.Get(ctx, keyActive(participantID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	m, err := readMatch(ctx, g, id)
	if errors.Is(err, domain.ErrMatchNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if m.Status.Terminal() {
		return "", nil
	}
	return id, nil
}

func (r *Redis) ActiveMatch(ctx context.Context, participantID string) (string, error) {
	return liveMatch(ctx, r.rdb, participantID)
}

func (r *Redis) DueMatches(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.rdb.ZRangeByScore(ctx, keyDeadlines, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
}

func (r *Redis) DropDeadline(ctx context.Context, matchID string) error {
	return r.rdb.ZRem(ctx, keyDeadlines, matchID).Err()
}

// Queue

func (r *Redis) Join(ctx context.Context, participantID string, now time.Time, pair PairFunc) (JoinOutcome, error) {
	var out JoinOutcome
	err := r.watch(ctx, "queue_join", func(tx *redis.Tx) error {
		out = JoinOutcome{}
		if err := r.ensureFree(ctx, tx, participantID); err != nil {
			return err
		}
		oldest, err := tx.ZRangeWithScores(ctx, keyQueue, 0, 0).Result()
		if err != nil {
			return err
		}
		if len(oldest) == 0 {
			score := float64(now.UnixMilli())
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.ZAdd(ctx, keyQueue, redis.Z{Score: score, Member: participantID})
				return nil
			})
			if err != nil {
				return err
			}
			out.Ticket = domain.Ticket{ParticipantID: participantID, EnqueuedAt: time.UnixMilli(now.UnixMilli())}
			out.Position = 1
			return nil
		}

		waiting := ticketFromZ(oldest[0])
		if err := tx.Watch(ctx, keyActive(waiting.ParticipantID)).Err(); err != nil {
			return err
		}
		m, err := pair(waiting)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(m)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, keyQueue, waiting.ParticipantID)
			pipe.Set(ctx, keyMatch(m.ID), raw, 0)
			pipe.Set(ctx, keyActive(waiting.ParticipantID), m.ID, 0)
			pipe.Set(ctx, keyActive(participantID), m.ID, 0)
			return nil
		})
		if err != nil {
			return err
		}
		out.Match = m
		return nil
	}, keyQueue, keyActive(participantID))
	return out, err
}

func (r *Redis) Leave(ctx context.Context, participantID string) (bool, error) {
	n, err := r.rdb.ZRem(ctx, keyQueue, participantID).Result()
	return n > 0, err
}

func (r *Redis) Ticket(ctx context.Context, participantID string) (domain.Ticket, bool, error) {
	score, err := r.rdb.ZScore(ctx, keyQueue, participantID).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Ticket{}, false, nil
	}
	if err != nil {
		return domain.Ticket{}, false, err
	}
	return domain.Ticket{ParticipantID: participantID, EnqueuedAt: time.UnixMilli(int64(score))}, true, nil
}

// Position is the number of strictly older tickets plus one, or 0 when the
// participant is not queued.
func (r *Redis) Position(ctx context.Context, participantID string) (int, error) {
	t, ok, err := r.Ticket(ctx, participantID)
	if err != nil || !ok {
		return 0, err
	}
	older, err := r.rdb.ZCount(ctx, keyQueue, "-inf", "("+strconv.FormatInt(t.EnqueuedAt.UnixMilli(), 10)).Result()
	if err != nil {
		return 0, err
	}
	return int(older) + 1, nil
}

func (r *Redis) Tickets(ctx context.Context) ([]domain.Ticket, error) {
	zs, err := r.rdb.ZRangeWithScores(ctx, keyQueue, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Ticket, 0, len(zs))
	for _, z := range zs {
		out = append(out, ticketFromZ(z))
	}
	return out, nil
}

func (r *Redis) QueueLen(ctx context.Context) (int, error) {
	n, err := r.rdb.ZCard(ctx, keyQueue).Result()
	return int(n), err
}

func ticketFromZ(z redis.Z) domain.Ticket {
	id, _ := z.Member.(string)
	return domain.Ticket{ParticipantID: id, EnqueuedAt: time.UnixMilli(int64(z.Score))}
}
