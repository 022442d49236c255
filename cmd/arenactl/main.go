package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/park285/linkrace-arena/internal/archive"
	appcfg "github.com/park285/linkrace-arena/internal/config"
	"github.com/park285/linkrace-arena/internal/events"
	"github.com/park285/linkrace-arena/internal/store"
	"github.com/park285/linkrace-arena/pkg/arenadto"
)

const usage = `usage: arenactl <command> [args]

commands:
  register <name> [ledger-ref]   create a participant and print its API key
  queue                          list waiting tickets
  match <id>                     print a match as JSON
  check                          ping Redis and Postgres
  watch <id> [spectator-url]     stream a match's events`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := strings.ToLower(os.Args[1]), os.Args[2:]

	// watch talks to the spectator endpoint only
	if cmd == "watch" {
		if err := watch(args); err != nil {
			log.Fatalf("watch: %v", err)
		}
		return
	}

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cmd {
	case "register":
		err = register(ctx, cfg, args)
	case "queue":
		err = queue(ctx, cfg)
	case "match":
		err = showMatch(ctx, cfg, args)
	case "check":
		err = check(ctx, cfg)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func openStore(ctx context.Context, cfg *appcfg.AppConfig) (*store.Redis, func(), error) {
	rdb, err := store.Open(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return store.NewRedis(rdb, store.WithRetention(cfg.Match.Retention)), func() { _ = rdb.Close() }, nil
}

func register(ctx context.Context, cfg *appcfg.AppConfig, args []string) error {
	if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
		return fmt.Errorf("name is required")
	}
	ref := ""
	if len(args) >= 2 {
		ref = args[1]
	}
	s, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	p, key, err := store.Register(ctx, s, args[0], ref, cfg.Rating.Initial, time.Now())
	if err != nil {
		return err
	}
	return printJSON(arenadto.RegisterResponse{AgentID: p.ID, Name: p.Name, APIKey: key, Rating: p.Rating})
}

func queue(ctx context.Context, cfg *appcfg.AppConfig) error {
	s, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	tickets, err := s.Tickets(ctx)
	if err != nil {
		return err
	}
	if len(tickets) == 0 {
		fmt.Println("queue is empty")
		return nil
	}
	now := time.Now()
	for i, t := range tickets {
		name := "?"
		if p, err := s.Participant(ctx, t.ParticipantID); err == nil {
			name = p.Name
		}
		fmt.Printf("%2d. %s (%s) waiting %s\n", i+1, name, t.ParticipantID, now.Sub(t.EnqueuedAt).Round(time.Second))
	}
	return nil
}

func showMatch(ctx context.Context, cfg *appcfg.AppConfig, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("match id is required")
	}
	s, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	m, err := s.Match(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(m)
}

func check(ctx context.Context, cfg *appcfg.AppConfig) error {
	_, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	closeFn()
	log.Println("redis ok")

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Println("DATABASE_URL not set; skipping archive check")
		return nil
	}
	repo, err := archive.NewRepository(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer repo.Close()
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("archive schema: %w", err)
	}
	log.Println("postgres ok")
	return nil
}

func watch(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("match id is required")
	}
	base := os.Getenv("SPECTATOR_URL")
	if len(args) >= 2 {
		base = args[1]
	}
	if strings.TrimSpace(base) == "" {
		base = "http://localhost:8081"
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := events.NewWatcher(base, args[0], 5)
	w.OnStateChange(func(s events.WatchState) { log.Printf("watch %s: %s", w.URL(), s) })
	w.OnEvent(func(ev arenadto.Event) {
		fmt.Printf("%s %-16s %s\n", ev.EmittedAt.Format(time.TimeOnly), ev.Name, ev.Payload)
	})
	return w.Run(ctx)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
