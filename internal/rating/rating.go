// Package rating implements the pairwise logistic (Elo) update applied when
// a match completes.
package rating

import "math"

const (
	DefaultK       = 32
	DefaultFloor   = 100
	DefaultInitial = 1200
)

// Outcome of a match from slot A's point of view.
type Outcome int

const (
	AWins Outcome = iota
	BWins
	Draw
)

type Config struct {
	K       float64
	Floor   int
	Initial int
}

func DefaultConfig() Config {
	return Config{K: DefaultK, Floor: DefaultFloor, Initial: DefaultInitial}
}

// Change is the before/after pair for both participants of one match.
type Change struct {
	BeforeA, AfterA int
	BeforeB, AfterB int
}

func (c Change) DeltaA() int { return c.AfterA - c.BeforeA }
func (c Change) DeltaB() int { return c.AfterB - c.BeforeB }

// Expected is the probability that a player rated r beats one rated opp.
func Expected(r, opp int) float64 {
	return 1 / (1 + math.Pow(10, float64(opp-r)/400))
}

// Decisive returns the updated ratings of the winner and the loser.
func (c Config) Decisive(winner, loser int) (int, int) {
	ew := Expected(winner, loser)
	el := 1 - ew
	return c.apply(winner, 1, ew), c.apply(loser, 0, el)
}

// Draw returns the updated ratings after a drawn match; both sides score 0.5.
func (c Config) Draw(a, b int) (int, int) {
	ea := Expected(a, b)
	return c.apply(a, 0.5, ea), c.apply(b, 0.5, 1-ea)
}

// Update applies outcome to the pair (a, b).
func (c Config) Update(a, b int, outcome Outcome) Change {
	ch := Change{BeforeA: a, BeforeB: b}
	switch outcome {
	case AWins:
		ch.AfterA, ch.AfterB = c.Decisive(a, b)
	case BWins:
		ch.AfterB, ch.AfterA = c.Decisive(b, a)
	default:
		ch.AfterA, ch.AfterB = c.Draw(a, b)
	}
	return ch
}

func (c Config) apply(r int, score, expected float64) int {
	k := c.K
	if k <= 0 {
		k = DefaultK
	}
	// half-up rounding, so -15.5 becomes -15 rather than -16
	next := int(math.Floor(float64(r) + k*(score-expected) + 0.5))
	if next < c.Floor {
		next = c.Floor
	}
	return next
}
