package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/park285/linkrace-arena/internal/domain"
)

type LogConfig struct {
	Level   string `env:"LOG_LEVEL" envDefault:"info"`
	Format  string `env:"LOG_FORMAT" envDefault:"legacy"`
	Console bool   `env:"LOG_TO_CONSOLE" envDefault:"true"`
	ToFile  bool   `env:"LOG_TO_FILE" envDefault:"false"`
	File    string `env:"LOG_FILE" envDefault:"logs/arena.log"`
	Caller  bool   `env:"LOG_CALLER" envDefault:"false"`
}

type RatingConfig struct {
	K       float64 `env:"RATING_K" envDefault:"32"`
	Floor   int     `env:"RATING_FLOOR" envDefault:"100"`
	Initial int     `env:"RATING_INITIAL" envDefault:"1200"`
}

type JudgeConfig struct {
	BaseURL   string        `env:"JUDGE_BASE_URL"`
	APIKey    string        `env:"JUDGE_API_KEY"`
	Model     string        `env:"JUDGE_MODEL" envDefault:"gpt-4o-mini"`
	MaxTokens int           `env:"JUDGE_MAX_TOKENS" envDefault:"512"`
	Timeout   time.Duration `env:"JUDGE_TIMEOUT" envDefault:"30s"`
}

type MatchConfig struct {
	DefaultTimeLimit time.Duration `env:"DEFAULT_TIME_LIMIT" envDefault:"5m"`
	MinTimeLimit     time.Duration `env:"MIN_TIME_LIMIT" envDefault:"1m"`
	MaxTimeLimit     time.Duration `env:"MAX_TIME_LIMIT" envDefault:"30m"`
	Countdown        time.Duration `env:"COUNTDOWN" envDefault:"5s"`
	Retention        time.Duration `env:"MATCH_RETENTION" envDefault:"24h"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"5s"`
	SweepBatch       int           `env:"SWEEP_BATCH" envDefault:"50"`
	PairingMode      string        `env:"PAIRING_MODE" envDefault:"queue"`
}

type AppConfig struct {
	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080"`
	SpectatorAddr string `env:"SPECTATOR_ADDR" envDefault:":8081"`

	FrameBackend string        `env:"FRAME_BACKEND" envDefault:"memory"`
	FrameTTL     time.Duration `env:"FRAME_TTL" envDefault:"2h"`

	PromptsFile  string `env:"PROMPTS_FILE"`
	WikiBaseURL  string `env:"WIKI_BASE_URL" envDefault:"https://en.wikipedia.org"`
	MessagesDir  string `env:"MESSAGES_DIR"`
	LedgerURL    string `env:"LEDGER_BASE_URL"`
	LedgerAPIKey string `env:"LEDGER_API_KEY"`

	Log    LogConfig
	Rating RatingConfig
	Judge  JudgeConfig
	Match  MatchConfig
}

// Load parses the environment into an AppConfig and validates it.
func Load() (*AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.FrameBackend = strings.ToLower(strings.TrimSpace(cfg.FrameBackend))
	cfg.Match.PairingMode = strings.ToLower(strings.TrimSpace(cfg.Match.PairingMode))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	switch c.FrameBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("FRAME_BACKEND must be memory or redis, got %q", c.FrameBackend)
	}
	m := c.Match
	if _, err := domain.ParsePairingMode(m.PairingMode); err != nil {
		return fmt.Errorf("PAIRING_MODE must be queue or hosted: %w", err)
	}
	if m.MinTimeLimit <= 0 || m.MaxTimeLimit < m.MinTimeLimit {
		return fmt.Errorf("invalid time limit bounds: min=%s max=%s", m.MinTimeLimit, m.MaxTimeLimit)
	}
	if m.DefaultTimeLimit < m.MinTimeLimit || m.DefaultTimeLimit > m.MaxTimeLimit {
		return fmt.Errorf("DEFAULT_TIME_LIMIT %s outside [%s, %s]", m.DefaultTimeLimit, m.MinTimeLimit, m.MaxTimeLimit)
	}
	if m.Countdown < 0 {
		return errors.New("COUNTDOWN must not be negative")
	}
	if c.Rating.K <= 0 || c.Rating.Floor < 0 || c.Rating.Initial < c.Rating.Floor {
		return fmt.Errorf("invalid rating settings: %+v", c.Rating)
	}
	return nil
}

// Pairing returns the validated pairing mode.
func (c *AppConfig) Pairing() domain.PairingMode {
	mode, _ := domain.ParsePairingMode(c.Match.PairingMode)
	return mode.OrDefault()
}
