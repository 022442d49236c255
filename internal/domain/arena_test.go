package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestStatusOrder(t *testing.T) {
	order := []Status{StatusWaitingForOpponent, StatusReadyCheck, StatusActive, StatusComplete}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Fatalf("%s should rank after %s", order[i], order[i-1])
		}
	}
	if !StatusComplete.Terminal() || StatusActive.Terminal() {
		t.Fatalf("only complete is terminal")
	}
}

func TestSlotLookup(t *testing.T) {
	m := &Match{SlotA: Slot{ParticipantID: "a"}, SlotB: Slot{ParticipantID: "b"}}
	if m.SlotOf("a") != &m.SlotA || m.Opponent("a") != &m.SlotB || m.SlotOf("c") != nil || m.SlotOf("") != nil {
		t.Fatalf("slot lookup broken")
	}
	if ids := m.ParticipantIDs(); len(ids) != 2 {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestAppendPathDedupes(t *testing.T) {
	var s Slot
	if !s.AppendPath("Potato") || s.AppendPath("Potato") || s.AppendPath("") {
		t.Fatalf("unexpected append results")
	}
	if len(s.Path) != 1 {
		t.Fatalf("unexpected path %v", s.Path)
	}
}

func TestClockHelpers(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ends := start.Add(time.Minute)
	m := &Match{Status: StatusActive, StartedAt: &start, EndsAt: &ends}
	if m.Expired(ends) || !m.Expired(ends.Add(time.Millisecond)) {
		t.Fatalf("expiry must be strictly after endsAt")
	}
	if d, ok := m.Remaining(start.Add(20 * time.Second)); !ok || d != 40*time.Second {
		t.Fatalf("unexpected remaining %s %v", d, ok)
	}
	if d, _ := m.Remaining(ends.Add(time.Hour)); d != 0 {
		t.Fatalf("remaining should clamp at zero")
	}
	if m.Elapsed(start.Add(-time.Second)) != 0 || m.Elapsed(start.Add(5*time.Second)) != 5*time.Second {
		t.Fatalf("unexpected elapsed")
	}
}

func TestRacing(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	start, end := now.Add(5*time.Second), now.Add(time.Minute)
	m := &Match{Status: StatusActive, StartedAt: &start, EndsAt: &end}
	if m.Racing(now) {
		t.Fatal("racing during countdown")
	}
	if !m.Racing(start) || !m.Racing(end) {
		t.Fatal("clock should run from start through the deadline")
	}
	if m.Racing(end.Add(time.Millisecond)) {
		t.Fatal("racing after expiry")
	}
	m.Status = StatusReadyCheck
	if m.Racing(start) {
		t.Fatal("racing before activation")
	}
}

func TestClamp(t *testing.T) {
	l := DefaultTimeLimits()
	if l.Clamp(0) != 5*time.Minute || l.Clamp(time.Second) != time.Minute || l.Clamp(time.Hour) != 30*time.Minute || l.Clamp(10*time.Minute) != 10*time.Minute {
		t.Fatalf("unexpected clamp results")
	}
}

func TestDomainErrorsMatchThroughWrap(t *testing.T) {
	err := fmt.Errorf("ready: %w", ErrWrongPhase)
	if !errors.Is(err, ErrWrongPhase) || errors.Is(err, ErrNotInMatch) {
		t.Fatalf("errors.Is should compare by value")
	}
}
