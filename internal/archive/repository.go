// Package archive stores completed matches and participant totals in
// Postgres for history and leaderboards. Live state never depends on it.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/linkrace-arena/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS arena_matches (
    match_id      TEXT PRIMARY KEY,
    origin        TEXT NOT NULL,
    agent1_id     TEXT NOT NULL,
    agent1_name   TEXT NOT NULL,
    agent2_id     TEXT NOT NULL,
    agent2_name   TEXT NOT NULL,
    start_url     TEXT NOT NULL,
    target        TEXT NOT NULL,
    result        TEXT NOT NULL,
    winner_id     TEXT,
    result_method TEXT NOT NULL,
    rationale     TEXT,
    agent1_clicks INT NOT NULL,
    agent2_clicks INT NOT NULL,
    agent1_path   JSONB NOT NULL,
    agent2_path   JSONB NOT NULL,
    ratings       JSONB NOT NULL,
    time_limit_s  INT NOT NULL,
    started_at    TIMESTAMPTZ,
    completed_at  TIMESTAMPTZ NOT NULL,
    duration_ms   BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS arena_participants (
    participant_id   TEXT PRIMARY KEY,
    name             TEXT NOT NULL,
    rating           INT NOT NULL,
    wins             INT NOT NULL,
    losses           INT NOT NULL,
    draws            INT NOT NULL,
    best_click_count INT,
    updated_at       TIMESTAMPTZ NOT NULL
);`

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) Ping(ctx context.Context) error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Result is the outcome token stored for a match.
func Result(m *domain.Match) string {
	switch {
	case m.Draw:
		return "draw"
	case m.WinnerID == m.SlotA.ParticipantID:
		return "agent1"
	case m.WinnerID == m.SlotB.ParticipantID:
		return "agent2"
	default:
		return ""
	}
}

type matchRow struct {
	result      string
	winnerID    sql.NullString
	path1       string
	path2       string
	ratings     string
	completedAt time.Time
	durationMS  int64
}

func rowFor(m *domain.Match) (matchRow, error) {
	row := matchRow{result: Result(m)}
	if m.WinnerID != "" {
		row.winnerID = sql.NullString{String: m.WinnerID, Valid: true}
	}
	p1, err := json.Marshal(nonNil(m.SlotA.Path))
	if err != nil {
		return row, err
	}
	p2, err := json.Marshal(nonNil(m.SlotB.Path))
	if err != nil {
		return row, err
	}
	ratings, err := json.Marshal(m.Ratings)
	if err != nil {
		return row, err
	}
	if m.Ratings == nil {
		ratings = []byte("[]")
	}
	row.path1, row.path2, row.ratings = string(p1), string(p2), string(ratings)
	if m.CompletedAt != nil {
		row.completedAt = *m.CompletedAt
	}
	if m.CompletedAt != nil && m.StartedAt != nil {
		row.durationMS = max(m.CompletedAt.Sub(*m.StartedAt).Milliseconds(), 0)
	}
	return row, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// SaveMatch upserts a completed match.
func (r *Repository) SaveMatch(ctx context.Context, m *domain.Match) error {
	if r == nil || r.db == nil || m == nil {
		return nil
	}
	if m.Status != domain.StatusComplete {
		return fmt.Errorf("match %s is %s, not complete", m.ID, m.Status)
	}
	row, err := rowFor(m)
	if err != nil {
		return err
	}

	q := `INSERT INTO arena_matches (
        match_id, origin, agent1_id, agent1_name, agent2_id, agent2_name,
        start_url, target, result, winner_id, result_method, rationale,
        agent1_clicks, agent2_clicks, agent1_path, agent2_path, ratings,
        time_limit_s, started_at, completed_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21
      ) ON CONFLICT (match_id) DO UPDATE SET
        result=EXCLUDED.result,
        winner_id=EXCLUDED.winner_id,
        result_method=EXCLUDED.result_method,
        rationale=EXCLUDED.rationale,
        agent1_clicks=EXCLUDED.agent1_clicks,
        agent2_clicks=EXCLUDED.agent2_clicks,
        agent1_path=EXCLUDED.agent1_path,
        agent2_path=EXCLUDED.agent2_path,
        ratings=EXCLUDED.ratings,
        completed_at=EXCLUDED.completed_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		m.ID, string(m.Origin),
		m.SlotA.ParticipantID, m.SlotA.Name,
		m.SlotB.ParticipantID, m.SlotB.Name,
		m.StartURL, m.Target, row.result, row.winnerID, string(m.Method), m.Rationale,
		m.SlotA.Clicks, m.SlotB.Clicks, row.path1, row.path2, row.ratings,
		int(m.TimeLimit.Seconds()), m.StartedAt, row.completedAt, row.durationMS,
	)
	return err
}

// SaveParticipant upserts a participant's totals.
func (r *Repository) SaveParticipant(ctx context.Context, p domain.Participant) error {
	if r == nil || r.db == nil {
		return nil
	}
	var best sql.NullInt64
	if p.BestClickCount != nil {
		best = sql.NullInt64{Int64: int64(*p.BestClickCount), Valid: true}
	}
	q := `INSERT INTO arena_participants (
        participant_id, name, rating, wins, losses, draws, best_click_count, updated_at
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
      ON CONFLICT (participant_id) DO UPDATE SET
        name=EXCLUDED.name,
        rating=EXCLUDED.rating,
        wins=EXCLUDED.wins,
        losses=EXCLUDED.losses,
        draws=EXCLUDED.draws,
        best_click_count=EXCLUDED.best_click_count,
        updated_at=EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q, p.ID, p.Name, p.Rating, p.Wins, p.Losses, p.Draws, best, p.UpdatedAt)
	return err
}
