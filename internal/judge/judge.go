// Package judge decides timed-out matches. Deterministic rules are applied
// first; otherwise a language model is asked, and any failure along that path
// degrades to a draw.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/linkrace-arena/internal/obslog"
	"github.com/park285/linkrace-arena/internal/verify"
)

type Winner string

const (
	WinnerA    Winner = "slot_a"
	WinnerB    Winner = "slot_b"
	WinnerDraw Winner = "draw"
)

// Source tells where a verdict came from.
type Source string

const (
	SourceRules Source = "rules"
	SourceModel Source = "model"
	SourceNone  Source = "fallback"
)

const DefaultTimeout = 30 * time.Second

type Contestant struct {
	ID            string
	Name          string
	FinalLocation string
	Clicks        int
}

type Input struct {
	Task   string
	Target string
	A      Contestant
	B      Contestant
}

type Verdict struct {
	Winner    Winner
	WinnerID  string
	Rationale string
	Source    Source
	// Degraded is set when the model was needed but gave no usable answer.
	Degraded bool
}

// Completer is a text-completion backend.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

var ErrNoVerdict = errors.New("reply has no verdict object")

type Adjudicator struct {
	completer Completer
	timeout   time.Duration
}

// New returns an Adjudicator. A nil completer makes every undecided match a
// draw.
func New(c Completer, timeout time.Duration) *Adjudicator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Adjudicator{completer: c, timeout: timeout}
}

// Adjudicate always returns a verdict.
func (a *Adjudicator) Adjudicate(ctx context.Context, in Input) Verdict {
	if v, ok := ByRules(in); ok {
		return v
	}
	if a == nil || a.completer == nil {
		return degraded("Judge unavailable (no model configured). Match declared a draw.")
	}

	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	text, err := a.completer.Complete(cctx, SystemPrompt, UserMessage(in))
	if err != nil {
		obslog.L().Warn("judge_complete_error", zap.String("a", in.A.ID), zap.String("b", in.B.ID), zap.Error(err))
		return degraded("Judge failed to produce a verdict. Match declared a draw.")
	}
	v, err := ParseVerdict(text, in)
	if err != nil {
		obslog.L().Warn("judge_parse_error", zap.String("reply", truncate(text, 256)), zap.Error(err))
		return degraded("Judge returned an unparseable response. Match declared a draw.")
	}
	return v
}

// ByRules decides the cases that need no model: a contestant whose final
// location is the target beats one who is not; if both arrived, fewer clicks
// wins and equal clicks is a draw.
func ByRules(in Input) (Verdict, bool) {
	aHit := verify.Verify(in.A.FinalLocation, in.Target).Matched
	bHit := verify.Verify(in.B.FinalLocation, in.Target).Matched
	switch {
	case aHit && !bHit:
		return decided(WinnerA, in, fmt.Sprintf("%s reached %s; %s did not.", name(in.A), in.Target, name(in.B))), true
	case bHit && !aHit:
		return decided(WinnerB, in, fmt.Sprintf("%s reached %s; %s did not.", name(in.B), in.Target, name(in.A))), true
	case aHit && bHit:
		switch {
		case in.A.Clicks < in.B.Clicks:
			return decided(WinnerA, in, fmt.Sprintf("Both reached %s; %s used fewer clicks (%d vs %d).", in.Target, name(in.A), in.A.Clicks, in.B.Clicks)), true
		case in.B.Clicks < in.A.Clicks:
			return decided(WinnerB, in, fmt.Sprintf("Both reached %s; %s used fewer clicks (%d vs %d).", in.Target, name(in.B), in.B.Clicks, in.A.Clicks)), true
		default:
			return decided(WinnerDraw, in, fmt.Sprintf("Both reached %s in %d clicks.", in.Target, in.A.Clicks)), true
		}
	}
	return Verdict{}, false
}

type reply struct {
	Winner    string `json:"winner"`
	Reasoning string `json:"reasoning"`
}

// ParseVerdict decodes the outermost {...} block of a model reply. Only the
// winners agent1, agent2 and draw are accepted.
func ParseVerdict(text string, in Input) (Verdict, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Verdict{}, ErrNoVerdict
	}
	var r reply
	if err := json.Unmarshal([]byte(text[start:end+1]), &r); err != nil {
		return Verdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	var w Winner
	switch strings.TrimSpace(r.Winner) {
	case "agent1":
		w = WinnerA
	case "agent2":
		w = WinnerB
	case "draw":
		w = WinnerDraw
	default:
		return Verdict{}, fmt.Errorf("unknown winner %q", r.Winner)
	}
	reasoning := strings.TrimSpace(r.Reasoning)
	if reasoning == "" {
		reasoning = "No reasoning provided."
	}
	v := decided(w, in, reasoning)
	v.Source = SourceModel
	return v, nil
}

func decided(w Winner, in Input, rationale string) Verdict {
	v := Verdict{Winner: w, Rationale: rationale, Source: SourceRules}
	switch w {
	case WinnerA:
		v.WinnerID = in.A.ID
	case WinnerB:
		v.WinnerID = in.B.ID
	}
	return v
}

func degraded(rationale string) Verdict {
	return Verdict{Winner: WinnerDraw, Rationale: rationale, Source: SourceNone, Degraded: true}
}

func name(c Contestant) string {
	if strings.TrimSpace(c.Name) != "" {
		return c.Name
	}
	return c.ID
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
