package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/park285/linkrace-arena/internal/domain"
)

const apiKeyPrefix = "lra_"

// HashKey is the lookup form of an API key; raw keys are never stored.
func HashKey(apiKey string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(apiKey)))
	return hex.EncodeToString(sum[:])
}

func newAPIKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(b), nil
}

// Register creates a participant with a fresh API key and returns both.
func Register(ctx context.Context, s Store, name, ledgerRef string, rating int, now time.Time) (domain.Participant, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Participant{}, "", fmt.Errorf("name required: %w", domain.ErrInvalidArgs)
	}
	key, err := newAPIKey()
	if err != nil {
		return domain.Participant{}, "", fmt.Errorf("generate api key: %w", err)
	}
	p := domain.Participant{
		ID:        uuid.NewString(),
		Name:      name,
		Rating:    rating,
		LedgerRef: strings.TrimSpace(ledgerRef),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateParticipant(ctx, p, HashKey(key)); err != nil {
		return domain.Participant{}, "", err
	}
	return p, key, nil
}
