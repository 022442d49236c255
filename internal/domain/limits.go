package domain

import "time"

// TimeLimits bounds the racing time a caller may request.
type TimeLimits struct {
	Default time.Duration
	Min     time.Duration
	Max     time.Duration
}

func DefaultTimeLimits() TimeLimits {
	return TimeLimits{Default: 5 * time.Minute, Min: time.Minute, Max: 30 * time.Minute}
}

// Clamp returns Default for a non-positive request, else d bounded to
// [Min, Max].
func (l TimeLimits) Clamp(d time.Duration) time.Duration {
	if d <= 0 {
		return l.Default
	}
	if l.Min > 0 && d < l.Min {
		return l.Min
	}
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}
