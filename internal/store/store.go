// Package store keeps participants, matches, the queue and their indexes in
// Redis. Every multi-key mutation runs under WATCH/MULTI so concurrent
// requests either commit together or retry.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/park285/linkrace-arena/internal/domain"
)

// ErrNoChange may be returned by an update callback to skip the write.
var ErrNoChange = errors.New("no change")

// PairFunc builds the match for a joiner and the oldest waiting ticket. It is
// called inside the queue transaction and may be called again on retry.
type PairFunc func(waiting domain.Ticket) (*domain.Match, error)

// CompleteFunc finalizes a match and both participants' records.
type CompleteFunc func(m *domain.Match, a, b *domain.Participant) error

// JoinOutcome is either a new ticket or a freshly paired match.
type JoinOutcome struct {
	Ticket   domain.Ticket
	Position int
	Match    *domain.Match
}

func (o JoinOutcome) Paired() bool { return o.Match != nil }

type Store interface {
	CreateParticipant(ctx context.Context, p domain.Participant, keyHash string) error
	Participant(ctx context.Context, id string) (domain.Participant, error)
	ParticipantByKeyHash(ctx context.Context, hash string) (domain.Participant, error)
	SaveParticipant(ctx context.Context, p domain.Participant) error

	Match(ctx context.Context, id string) (*domain.Match, error)
	// OpenMatch stores a hosted match and indexes its creator.
	OpenMatch(ctx context.Context, m *domain.Match) error
	// FillSlot hands the match to fn together with the joiner's guard checks.
	FillSlot(ctx context.Context, id, participantID string, fn func(*domain.Match) error) (*domain.Match, error)
	// WithdrawMatch removes a hosted match still waiting for an opponent.
	WithdrawMatch(ctx context.Context, id, participantID string) (*domain.Match, error)
	UpdateMatch(ctx context.Context, id string, fn func(*domain.Match) error) (*domain.Match, error)
	CompleteMatch(ctx context.Context, id string, fn CompleteFunc) (*domain.Match, error)

	Join(ctx context.Context, participantID string, now time.Time, pair PairFunc) (JoinOutcome, error)
	Leave(ctx context.Context, participantID string) (bool, error)
	Ticket(ctx context.Context, participantID string) (domain.Ticket, bool, error)
	Position(ctx context.Context, participantID string) (int, error)
	Tickets(ctx context.Context) ([]domain.Ticket, error)
	QueueLen(ctx context.Context) (int, error)

	// ActiveMatch returns the participant's current non-terminal match id.
	ActiveMatch(ctx context.Context, participantID string) (string, error)
	// DueMatches lists active matches whose deadline is not after now.
	DueMatches(ctx context.Context, now time.Time, limit int) ([]string, error)
	// DropDeadline removes a match from the deadline index.
	DropDeadline(ctx context.Context, matchID string) error
}
