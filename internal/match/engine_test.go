package match

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/park285/linkrace-arena/internal/domain"
	"github.com/park285/linkrace-arena/internal/events"
	"github.com/park285/linkrace-arena/internal/frames"
	"github.com/park285/linkrace-arena/internal/judge"
	"github.com/park285/linkrace-arena/internal/matchmaking"
	"github.com/park285/linkrace-arena/internal/monitor"
	"github.com/park285/linkrace-arena/internal/prompts"
	"github.com/park285/linkrace-arena/internal/store"
	"github.com/park285/linkrace-arena/pkg/arenadto"
)

type stubJudge struct {
	verdict judge.Verdict
	calls   atomic.Int32
}

func (s *stubJudge) Adjudicate(_ context.Context, in judge.Input) judge.Verdict {
	s.calls.Add(1)
	v := s.verdict
	switch v.Winner {
	case judge.WinnerA:
		v.WinnerID = in.A.ID
	case judge.WinnerB:
		v.WinnerID = in.B.ID
	}
	return v
}

type archiveStub struct {
	mu      sync.Mutex
	matches []string
}

func (a *archiveStub) SaveMatch(_ context.Context, m *domain.Match) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.matches = append(a.matches, m.ID)
	return nil
}

func (a *archiveStub) SaveParticipant(context.Context, domain.Participant) error { return nil }

type fixture struct {
	engine  *Engine
	mm      *matchmaking.Service
	store   *store.Redis
	frames  frames.Store
	rec     *events.Recorder
	clock   *clockwork.FakeClock
	judge   *stubJudge
	archive *archiveStub
}

func newFixture(t *testing.T, countdown time.Duration) *fixture {
	t.Helper()
	return newFixtureMode(t, countdown, domain.PairingQueue)
}

func newHostedFixture(t *testing.T, countdown time.Duration) *fixture {
	t.Helper()
	return newFixtureMode(t, countdown, domain.PairingHosted)
}

func newFixtureMode(t *testing.T, countdown time.Duration, mode domain.PairingMode) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cat, err := prompts.Load("", "")
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	f := &fixture{
		store:   store.NewRedis(rdb),
		frames:  frames.NewMemory(),
		rec:     &events.Recorder{},
		clock:   clockwork.NewFakeClock(),
		judge:   &stubJudge{verdict: judge.Verdict{Winner: judge.WinnerDraw, Source: judge.SourceNone, Rationale: "Judge unavailable", Degraded: true}},
		archive: &archiveStub{},
	}
	metrics := monitor.NewMetrics("test")
	f.engine = New(Deps{
		Store:   f.store,
		Frames:  f.frames,
		Judge:   f.judge,
		Events:  f.rec,
		Prompts: cat,
		Archive: f.archive,
		Metrics: metrics,
		Clock:   f.clock,
	}, Config{Countdown: countdown, Pairing: mode})
	f.mm = matchmaking.New(matchmaking.Deps{Store: f.store, Prompts: cat, Events: f.rec, Metrics: metrics, Clock: f.clock, Pairing: mode})
	return f
}

func (f *fixture) register(t *testing.T, name string) domain.Participant {
	t.Helper()
	p, _, err := store.Register(context.Background(), f.store, name, "", 1200, f.clock.Now())
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return p
}

// paired queues a then b and returns their ready-check match.
func (f *fixture) paired(t *testing.T) (*domain.Match, domain.Participant, domain.Participant) {
	t.Helper()
	ctx := context.Background()
	a, b := f.register(t, "Alpha"), f.register(t, "Beta")
	if _, err := f.mm.Join(ctx, a.ID, matchmaking.Preferences{}); err != nil {
		t.Fatalf("join a: %v", err)
	}
	res, err := f.mm.Join(ctx, b.ID, matchmaking.Preferences{TimeLimit: 2 * time.Minute})
	if err != nil || res.Match == nil {
		t.Fatalf("join b: %+v err=%v", res, err)
	}
	return res.Match, a, b
}

// active pairs two participants and readies both.
func (f *fixture) active(t *testing.T) (*domain.Match, domain.Participant, domain.Participant) {
	t.Helper()
	m, a, b := f.paired(t)
	ctx := context.Background()
	if _, err := f.engine.SignalReady(ctx, m.ID, a.ID); err != nil {
		t.Fatalf("ready a: %v", err)
	}
	res, err := f.engine.SignalReady(ctx, m.ID, b.ID)
	if err != nil || !res.Activated {
		t.Fatalf("ready b: %+v err=%v", res, err)
	}
	return res.Match, a, b
}

func (f *fixture) assertFramesCleared(t *testing.T, matchID string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if snap, ok, err := f.frames.Get(context.Background(), matchID, id); err != nil || ok {
			t.Fatalf("frame for %s still stored: %+v err=%v", id, snap, err)
		}
	}
}

func targetURL(m *domain.Match) string {
	return "https://en.wikipedia.org/wiki/" + strings.ReplaceAll(m.Target, " ", "_")
}

func TestSignalReadyActivatesOnSecondReady(t *testing.T) {
	f := newFixture(t, 5*time.Second)
	ctx := context.Background()
	m, a, b := f.paired(t)

	res, err := f.engine.SignalReady(ctx, m.ID, a.ID)
	if err != nil || res.Activated || !res.YouReady || res.OpponentReady {
		t.Fatalf("first ready: %+v err=%v", res, err)
	}
	again, err := f.engine.SignalReady(ctx, m.ID, a.ID)
	if err != nil || again.Activated {
		t.Fatalf("repeat ready: %+v err=%v", again, err)
	}
	if n := f.rec.Count(arenadto.EventAgentReady); n != 1 {
		t.Fatalf("expected one agent_ready, got %d", n)
	}

	res, err = f.engine.SignalReady(ctx, m.ID, b.ID)
	if err != nil || !res.Activated {
		t.Fatalf("second ready: %+v err=%v", res, err)
	}
	got := res.Match
	if got.Status != domain.StatusActive || got.StartedAt == nil || got.EndsAt == nil {
		t.Fatalf("not activated: %+v", got)
	}
	if want := f.clock.Now().Add(5 * time.Second); !got.StartedAt.Equal(want) {
		t.Fatalf("started_at = %v, want %v", got.StartedAt, want)
	}
	if d := got.EndsAt.Sub(*got.StartedAt); d != 2*time.Minute {
		t.Fatalf("clock length = %v", d)
	}
	if f.rec.Count(arenadto.EventMatchCountdown) != 1 || f.rec.Count(arenadto.EventMatchStart) != 1 {
		t.Fatalf("missing activation events: %+v", f.rec.Events())
	}

	// readying an active match is a no-op
	if res, err := f.engine.SignalReady(ctx, m.ID, a.ID); err != nil || res.Activated {
		t.Fatalf("ready on active: %+v err=%v", res, err)
	}
	if f.rec.Count(arenadto.EventMatchStart) != 1 {
		t.Fatal("activation events repeated")
	}
}

func TestSignalReadyRejectsOutsider(t *testing.T) {
	f := newFixture(t, 0)
	m, _, _ := f.paired(t)
	c := f.register(t, "Gamma")
	if _, err := f.engine.SignalReady(context.Background(), m.ID, c.ID); !errors.Is(err, domain.ErrNotInMatch) {
		t.Fatalf("expected ErrNotInMatch, got %v", err)
	}
	if _, err := f.engine.SignalReady(context.Background(), "missing", c.ID); !errors.Is(err, domain.ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}
}

func TestClaimDuringCountdown(t *testing.T) {
	f := newFixture(t, 5*time.Second)
	m, a, _ := f.active(t)
	_, err := f.engine.ClaimVictory(context.Background(), m.ID, a.ID, targetURL(m))
	if !errors.Is(err, domain.ErrCountdown) {
		t.Fatalf("expected ErrCountdown, got %v", err)
	}
	f.clock.Advance(6 * time.Second)
	if res, err := f.engine.ClaimVictory(context.Background(), m.ID, a.ID, targetURL(m)); err != nil || res.Result != ClaimVictory {
		t.Fatalf("claim after countdown: %+v err=%v", res, err)
	}
}

func TestClaimVictoryCompletesMatch(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	m, a, b := f.active(t)
	f.clock.Advance(30 * time.Second)

	if ok, err := f.engine.PushFrame(ctx, m.ID, b.ID, FrameInput{Location: "https://en.wikipedia.org/wiki/Cheese", ClickCount: 2}); err != nil || !ok {
		t.Fatalf("push b: ok=%v err=%v", ok, err)
	}
	if ok, err := f.engine.PushFrame(ctx, m.ID, b.ID, FrameInput{Location: "https://en.wikipedia.org/wiki/Bread", ClickCount: 1}); err != nil || !ok {
		t.Fatalf("push b again: ok=%v err=%v", ok, err)
	}
	if ok, err := f.engine.PushFrame(ctx, m.ID, a.ID, FrameInput{Location: targetURL(m), ClickCount: 4}); err != nil || !ok {
		t.Fatalf("push a: ok=%v err=%v", ok, err)
	}

	// empty location falls back to the latest frame
	res, err := f.engine.ClaimVictory(ctx, m.ID, a.ID, "")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if res.Result != ClaimVictory || res.Clicks != 4 || res.NewRating != 1216 {
		t.Fatalf("unexpected claim result: %+v", res)
	}
	if res.Elapsed != 30*time.Second {
		t.Fatalf("elapsed = %v", res.Elapsed)
	}
	if len(res.Path) == 0 || res.Path[len(res.Path)-1] != m.Target {
		t.Fatalf("path does not end at target: %v", res.Path)
	}

	done, err := f.store.Match(ctx, m.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if done.Status != domain.StatusComplete || done.WinnerID != a.ID || done.Method != domain.MethodClaim {
		t.Fatalf("unexpected completion: %+v", done)
	}
	if done.SlotB.Clicks != 2 {
		t.Fatalf("loser clicks should keep the highest reported count, got %d", done.SlotB.Clicks)
	}

	pa, _ := f.store.Participant(ctx, a.ID)
	pb, _ := f.store.Participant(ctx, b.ID)
	if pa.Rating != 1216 || pa.Wins != 1 || pa.BestClickCount == nil || *pa.BestClickCount != 4 {
		t.Fatalf("winner record: %+v", pa)
	}
	if pb.Rating != 1184 || pb.Losses != 1 || pb.BestClickCount != nil {
		t.Fatalf("loser record: %+v", pb)
	}
	if id, _ := f.store.ActiveMatch(ctx, a.ID); id != "" {
		t.Fatalf("winner still indexed in %s", id)
	}
	if f.rec.Count(arenadto.EventMatchComplete) != 1 {
		t.Fatal("match_complete not published")
	}
	if len(f.archive.matches) != 1 {
		t.Fatalf("expected one archived match, got %v", f.archive.matches)
	}

	f.assertFramesCleared(t, m.ID, a.ID, b.ID)

	if _, err := f.engine.ClaimVictory(ctx, m.ID, b.ID, targetURL(m)); !errors.Is(err, domain.ErrMatchAlreadyComplete) {
		t.Fatalf("expected ErrMatchAlreadyComplete, got %v", err)
	}
}

func TestClaimMismatchIsSoft(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	m, a, _ := f.active(t)

	res, err := f.engine.ClaimVictory(ctx, m.ID, a.ID, "https://en.wikipedia.org/wiki/Definitely_Not_It")
	if err != nil || res.Result != ClaimRejected || res.Reason != ReasonMismatch {
		t.Fatalf("mismatch: %+v err=%v", res, err)
	}
	res, err = f.engine.ClaimVictory(ctx, m.ID, a.ID, "https://example.com/")
	if err != nil || res.Result != ClaimRejected || res.Reason != ReasonUnparseable {
		t.Fatalf("unparseable: %+v err=%v", res, err)
	}
	if _, err := f.engine.ClaimVictory(ctx, m.ID, a.ID, ""); !errors.Is(err, domain.ErrNoLocationAvailable) {
		t.Fatalf("expected ErrNoLocationAvailable, got %v", err)
	}
	cur, _ := f.store.Match(ctx, m.ID)
	if cur.Status != domain.StatusActive {
		t.Fatalf("rejected claim changed the match: %s", cur.Status)
	}
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	m, a, b := f.active(t)

	var wg sync.WaitGroup
	var wins, done atomic.Int32
	for _, id := range []string{a.ID, b.ID, a.ID, b.ID} {
		wg.Add(1)
		go func(pid string) {
			defer wg.Done()
			res, err := f.engine.ClaimVictory(ctx, m.ID, pid, targetURL(m))
			switch {
			case err == nil && res.Result == ClaimVictory:
				wins.Add(1)
			case errors.Is(err, domain.ErrMatchAlreadyComplete), errors.Is(err, domain.ErrConflict):
				done.Add(1)
			default:
				t.Errorf("claim %s: %+v err=%v", pid, res, err)
			}
		}(id)
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
	pa, _ := f.store.Participant(ctx, a.ID)
	pb, _ := f.store.Participant(ctx, b.ID)
	if pa.Wins+pb.Wins != 1 || pa.Losses+pb.Losses != 1 {
		t.Fatalf("ratings applied more than once: %+v %+v", pa, pb)
	}
}

func TestSweepAdjudicatesExpiredMatch(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	m, a, b := f.active(t)
	f.judge.verdict = judge.Verdict{Winner: judge.WinnerB, Source: judge.SourceModel, Rationale: "Beta was closer."}

	if n, err := f.engine.Sweep(ctx); err != nil || n != 0 {
		t.Fatalf("early sweep: n=%d err=%v", n, err)
	}
	f.clock.Advance(2*time.Minute + time.Second)

	n, err := f.engine.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("sweep: n=%d err=%v", n, err)
	}
	done, _ := f.store.Match(ctx, m.ID)
	if done.Status != domain.StatusComplete || done.Method != domain.MethodAdjudication || done.WinnerID != b.ID {
		t.Fatalf("unexpected adjudication: %+v", done)
	}
	if done.Rationale != "Beta was closer." {
		t.Fatalf("rationale = %q", done.Rationale)
	}
	pa, _ := f.store.Participant(ctx, a.ID)
	if pa.Losses != 1 || pa.Rating != 1184 {
		t.Fatalf("loser record: %+v", pa)
	}

	if n, err := f.engine.Sweep(ctx); err != nil || n != 0 {
		t.Fatalf("second sweep: n=%d err=%v", n, err)
	}
	if c := f.judge.calls.Load(); c != 1 {
		t.Fatalf("judge called %d times", c)
	}
}

func TestResolveDegradedDraw(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	m, a, b := f.active(t)
	f.clock.Advance(3 * time.Minute)

	done, err := f.engine.Resolve(ctx, m.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !done.Draw || done.WinnerID != "" || !strings.Contains(done.Rationale, "unavailable") {
		t.Fatalf("expected degraded draw: %+v", done)
	}
	pa, _ := f.store.Participant(ctx, a.ID)
	pb, _ := f.store.Participant(ctx, b.ID)
	if pa.Draws != 1 || pb.Draws != 1 || pa.Rating != 1200 {
		t.Fatalf("draw not recorded: %+v %+v", pa, pb)
	}
}

func TestResolveNotDueIsNoop(t *testing.T) {
	f := newFixture(t, 0)
	m, _, _ := f.active(t)
	got, err := f.engine.Resolve(context.Background(), m.ID)
	if err != nil || got.Status != domain.StatusActive {
		t.Fatalf("resolve before deadline: %+v err=%v", got, err)
	}
	if f.judge.calls.Load() != 0 {
		t.Fatal("judge called for a running match")
	}
}

func TestGetResolvesLazily(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	m, a, b := f.active(t)
	for _, pid := range []string{a.ID, b.ID} {
		if ok, err := f.engine.PushFrame(ctx, m.ID, pid, FrameInput{Location: "/wiki/Cheese", ClickCount: 1}); err != nil || !ok {
			t.Fatalf("push %s: ok=%v err=%v", pid, ok, err)
		}
	}

	st, err := f.engine.Get(ctx, m.ID)
	if err != nil || st.Remaining == nil || *st.Remaining != 2*time.Minute {
		t.Fatalf("get running: %+v err=%v", st, err)
	}
	f.clock.Advance(2*time.Minute + time.Second)
	st, err = f.engine.Get(ctx, m.ID)
	if err != nil || st.Match.Status != domain.StatusComplete {
		t.Fatalf("get expired: %+v err=%v", st, err)
	}
	if st.Remaining == nil || *st.Remaining != 0 {
		t.Fatalf("remaining after completion: %v", st.Remaining)
	}
	if st.FrameA != nil || st.FrameB != nil {
		t.Fatalf("frames survived completion: a=%+v b=%+v", st.FrameA, st.FrameB)
	}
	f.assertFramesCleared(t, m.ID, a.ID, b.ID)
}

func TestExpiredMatchRejectsClaimsAndFrames(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	m, a, _ := f.active(t)
	f.clock.Advance(2*time.Minute + time.Second)

	ok, err := f.engine.PushFrame(ctx, m.ID, a.ID, FrameInput{Location: targetURL(m), ClickCount: 3})
	if err != nil || ok {
		t.Fatalf("late frame: ok=%v err=%v", ok, err)
	}
	_, err = f.engine.ClaimVictory(ctx, m.ID, a.ID, targetURL(m))
	if !errors.Is(err, domain.ErrExpired) && !errors.Is(err, domain.ErrMatchAlreadyComplete) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	done, err := f.engine.Resolve(ctx, m.ID)
	if err != nil || done.Status != domain.StatusComplete || done.Method != domain.MethodAdjudication {
		t.Fatalf("resolve: %+v err=%v", done, err)
	}
}

func TestPushFrameTracksProgress(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	m, a, _ := f.active(t)

	for i, loc := range []string{"https://en.wikipedia.org/wiki/Cheese", "/wiki/Milk", "https://en.wikipedia.org/wiki/Cheese"} {
		if ok, err := f.engine.PushFrame(ctx, m.ID, a.ID, FrameInput{Location: loc, ClickCount: i + 1, Thought: "going"}); err != nil || !ok {
			t.Fatalf("push %d: ok=%v err=%v", i, ok, err)
		}
	}
	st, err := f.engine.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if st.FrameA == nil || st.FrameA.ClickCount != 3 || st.FrameB != nil {
		t.Fatalf("frames: a=%+v b=%+v", st.FrameA, st.FrameB)
	}
	slot := st.Match.SlotOf(a.ID)
	if slot.Clicks != 3 || len(slot.Path) != 2 || slot.Path[0] != "Cheese" || slot.Path[1] != "Milk" {
		t.Fatalf("slot progress: %+v", slot)
	}
	if f.rec.Count(arenadto.EventFrameUpdate) != 3 {
		t.Fatalf("frame events = %d", f.rec.Count(arenadto.EventFrameUpdate))
	}

	outsider := f.register(t, "Gamma")
	if _, err := f.engine.PushFrame(ctx, m.ID, outsider.ID, FrameInput{Location: "/wiki/X"}); !errors.Is(err, domain.ErrNotInMatch) {
		t.Fatalf("expected ErrNotInMatch, got %v", err)
	}
}

func TestHostedMatchLifecycle(t *testing.T) {
	f := newHostedFixture(t, 0)
	ctx := context.Background()
	host, guest, late := f.register(t, "Host"), f.register(t, "Guest"), f.register(t, "Late")

	m, err := f.engine.OpenMatch(ctx, host.ID, HostedConfig{Start: "/wiki/Potato", Target: "Moon", TimeLimit: time.Hour})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if m.Status != domain.StatusWaitingForOpponent || m.Origin != domain.OriginHosted || m.Target != "Moon" {
		t.Fatalf("unexpected hosted match: %+v", m)
	}
	if m.TimeLimit != domain.DefaultTimeLimits().Max {
		t.Fatalf("time limit not clamped: %v", m.TimeLimit)
	}
	if _, err := f.engine.OpenMatch(ctx, host.ID, HostedConfig{}); !errors.Is(err, domain.ErrAlreadyInMatch) {
		t.Fatalf("second open: expected ErrAlreadyInMatch, got %v", err)
	}
	if _, err := f.engine.FillSlot(ctx, m.ID, host.ID); !errors.Is(err, domain.ErrAlreadyInMatch) {
		t.Fatalf("self join: expected ErrAlreadyInMatch, got %v", err)
	}

	joined, err := f.engine.FillSlot(ctx, m.ID, guest.ID)
	if err != nil || joined.Status != domain.StatusReadyCheck || joined.SlotB.ParticipantID != guest.ID {
		t.Fatalf("fill: %+v err=%v", joined, err)
	}
	if again, err := f.engine.FillSlot(ctx, m.ID, guest.ID); err != nil || again.SlotB.ParticipantID != guest.ID {
		t.Fatalf("repeat fill: %+v err=%v", again, err)
	}
	if f.rec.Count(arenadto.EventAgentJoined) != 1 {
		t.Fatalf("agent_joined published %d times", f.rec.Count(arenadto.EventAgentJoined))
	}
	if _, err := f.engine.FillSlot(ctx, m.ID, late.ID); !errors.Is(err, domain.ErrSlotAlreadyFilled) {
		t.Fatalf("late join: expected ErrSlotAlreadyFilled, got %v", err)
	}
}

func TestOpenMatchValidatesArticles(t *testing.T) {
	f := newHostedFixture(t, 0)
	ctx := context.Background()
	host := f.register(t, "Host")

	cases := []HostedConfig{
		{Start: "/wiki/Potato"},
		{Start: "/wiki/Moon", Target: "moon"},
		{Start: "https://example.com/", Target: "Moon"},
	}
	for _, c := range cases {
		if _, err := f.engine.OpenMatch(ctx, host.ID, c); !errors.Is(err, domain.ErrInvalidArgs) {
			t.Fatalf("%+v: expected ErrInvalidArgs, got %v", c, err)
		}
	}
	m, err := f.engine.OpenMatch(ctx, host.ID, HostedConfig{})
	if err != nil || m.Target == "" || m.StartURL == "" {
		t.Fatalf("catalog pick: %+v err=%v", m, err)
	}
}

func TestConcurrentFillSlotSeatsOne(t *testing.T) {
	f := newHostedFixture(t, 0)
	ctx := context.Background()
	host := f.register(t, "Host")
	m, err := f.engine.OpenMatch(ctx, host.ID, HostedConfig{Start: "/wiki/Potato", Target: "Moon"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	joiners := []domain.Participant{f.register(t, "J1"), f.register(t, "J2"), f.register(t, "J3")}

	var wg sync.WaitGroup
	var seated atomic.Int32
	for _, j := range joiners {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.engine.FillSlot(ctx, m.ID, id)
			switch {
			case err == nil:
				seated.Add(1)
			case errors.Is(err, domain.ErrSlotAlreadyFilled), errors.Is(err, domain.ErrConflict):
			default:
				t.Errorf("fill %s: %v", id, err)
			}
		}(j.ID)
	}
	wg.Wait()
	if seated.Load() != 1 {
		t.Fatalf("expected one seated joiner, got %d", seated.Load())
	}
}

func TestHostedOpsDisabledInQueueMode(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	host := f.register(t, "Host")
	if _, err := f.engine.OpenMatch(ctx, host.ID, HostedConfig{}); !errors.Is(err, domain.ErrPairingDisabled) {
		t.Fatalf("open: expected ErrPairingDisabled, got %v", err)
	}
	if _, err := f.engine.FillSlot(ctx, "any", host.ID); !errors.Is(err, domain.ErrPairingDisabled) {
		t.Fatalf("fill: expected ErrPairingDisabled, got %v", err)
	}
	if _, err := f.engine.WithdrawMatch(ctx, "any", host.ID); !errors.Is(err, domain.ErrPairingDisabled) {
		t.Fatalf("withdraw: expected ErrPairingDisabled, got %v", err)
	}
}

func TestQueueDisabledInHostedMode(t *testing.T) {
	f := newHostedFixture(t, 0)
	a := f.register(t, "Alpha")
	if _, err := f.mm.Join(context.Background(), a.ID, matchmaking.Preferences{}); !errors.Is(err, domain.ErrPairingDisabled) {
		t.Fatalf("expected ErrPairingDisabled, got %v", err)
	}
}

func TestWithdrawFreesUnjoinedCreator(t *testing.T) {
	f := newHostedFixture(t, 0)
	ctx := context.Background()
	host, other := f.register(t, "Host"), f.register(t, "Other")

	m, err := f.engine.OpenMatch(ctx, host.ID, HostedConfig{Start: "/wiki/Potato", Target: "Moon"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f.clock.Advance(24 * time.Hour)
	if _, err := f.engine.OpenMatch(ctx, host.ID, HostedConfig{}); !errors.Is(err, domain.ErrAlreadyInMatch) {
		t.Fatalf("expected creator busy before withdrawing, got %v", err)
	}
	if _, err := f.engine.WithdrawMatch(ctx, m.ID, other.ID); !errors.Is(err, domain.ErrNotInMatch) {
		t.Fatalf("outsider withdraw: expected ErrNotInMatch, got %v", err)
	}

	gone, err := f.engine.WithdrawMatch(ctx, m.ID, host.ID)
	if err != nil || gone.ID != m.ID {
		t.Fatalf("withdraw: %+v err=%v", gone, err)
	}
	if f.rec.Count(arenadto.EventMatchWithdrawn) != 1 {
		t.Fatal("match_withdrawn not published")
	}
	if _, err := f.engine.FillSlot(ctx, m.ID, other.ID); !errors.Is(err, domain.ErrMatchNotFound) {
		t.Fatalf("fill withdrawn: expected ErrMatchNotFound, got %v", err)
	}
	if _, err := f.engine.OpenMatch(ctx, host.ID, HostedConfig{}); err != nil {
		t.Fatalf("reopen after withdraw: %v", err)
	}
}

func TestWithdrawRejectedOnceJoined(t *testing.T) {
	f := newHostedFixture(t, 0)
	ctx := context.Background()
	host, guest := f.register(t, "Host"), f.register(t, "Guest")
	m, err := f.engine.OpenMatch(ctx, host.ID, HostedConfig{Start: "/wiki/Potato", Target: "Moon"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.engine.FillSlot(ctx, m.ID, guest.ID); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if _, err := f.engine.WithdrawMatch(ctx, m.ID, guest.ID); !errors.Is(err, domain.ErrNotCreator) {
		t.Fatalf("guest withdraw: expected ErrNotCreator, got %v", err)
	}
	if _, err := f.engine.WithdrawMatch(ctx, m.ID, host.ID); !errors.Is(err, domain.ErrSlotAlreadyFilled) {
		t.Fatalf("host withdraw: expected ErrSlotAlreadyFilled, got %v", err)
	}
}

func TestFillSlotRejectsCompletedMatch(t *testing.T) {
	f := newHostedFixture(t, 0)
	ctx := context.Background()
	host, guest, late := f.register(t, "Host"), f.register(t, "Guest"), f.register(t, "Late")

	m, err := f.engine.OpenMatch(ctx, host.ID, HostedConfig{Start: "/wiki/Potato", Target: "Moon"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.engine.FillSlot(ctx, m.ID, guest.ID); err != nil {
		t.Fatalf("fill: %v", err)
	}
	for _, id := range []string{host.ID, guest.ID} {
		if _, err := f.engine.SignalReady(ctx, m.ID, id); err != nil {
			t.Fatalf("ready %s: %v", id, err)
		}
	}
	res, err := f.engine.ClaimVictory(ctx, m.ID, host.ID, "https://en.wikipedia.org/wiki/Moon")
	if err != nil || res.Result != ClaimVictory {
		t.Fatalf("claim: %+v err=%v", res, err)
	}
	joined := f.rec.Count(arenadto.EventAgentJoined)

	for _, id := range []string{guest.ID, host.ID, late.ID} {
		if _, err := f.engine.FillSlot(ctx, m.ID, id); !errors.Is(err, domain.ErrMatchAlreadyComplete) {
			t.Fatalf("fill %s after completion: expected ErrMatchAlreadyComplete, got %v", id, err)
		}
	}
	if f.rec.Count(arenadto.EventAgentJoined) != joined {
		t.Fatal("join events published for a completed match")
	}
}

func TestFramesDuringCountdownDoNotAdvance(t *testing.T) {
	f := newFixture(t, 5*time.Second)
	ctx := context.Background()
	m, a, _ := f.active(t)

	ok, err := f.engine.PushFrame(ctx, m.ID, a.ID, FrameInput{Location: "/wiki/Cheese", ClickCount: 3})
	if err != nil || !ok {
		t.Fatalf("countdown push: ok=%v err=%v", ok, err)
	}
	cur, _ := f.store.Match(ctx, m.ID)
	if slot := cur.SlotOf(a.ID); slot.Clicks != 0 || len(slot.Path) != 0 {
		t.Fatalf("progress tracked during countdown: %+v", slot)
	}
	if snap, ok, _ := f.frames.Get(ctx, m.ID, a.ID); !ok || snap.ClickCount != 3 {
		t.Fatalf("countdown frame not stored: %+v ok=%v", snap, ok)
	}

	f.clock.Advance(6 * time.Second)
	if ok, err := f.engine.PushFrame(ctx, m.ID, a.ID, FrameInput{Location: "/wiki/Milk", ClickCount: 1}); err != nil || !ok {
		t.Fatalf("racing push: ok=%v err=%v", ok, err)
	}
	cur, _ = f.store.Match(ctx, m.ID)
	if slot := cur.SlotOf(a.ID); slot.Clicks != 1 || len(slot.Path) != 1 || slot.Path[0] != "Milk" {
		t.Fatalf("racing progress: %+v", slot)
	}
}

func TestExpiredClaimResolvesInBackground(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	m, a, _ := f.active(t)
	f.clock.Advance(2*time.Minute + time.Second)

	if _, err := f.engine.ClaimVictory(ctx, m.ID, a.ID, targetURL(m)); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		cur, err := f.store.Match(ctx, m.ID)
		if err == nil && cur.Status == domain.StatusComplete {
			if cur.Method != domain.MethodAdjudication {
				t.Fatalf("method = %s", cur.Method)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expired claim did not trigger adjudication")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if c := f.judge.calls.Load(); c != 1 {
		t.Fatalf("judge called %d times", c)
	}
}
