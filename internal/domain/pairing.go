package domain

import (
	"fmt"
	"strings"
)

// PairingMode selects how participants are brought together. A deployment
// runs exactly one of them.
type PairingMode string

const (
	// PairingQueue pairs tickets first come, first served.
	PairingQueue PairingMode = "queue"
	// PairingHosted lets a participant open a match that anyone may join.
	PairingHosted PairingMode = "hosted"
)

// ParsePairingMode accepts queue or hosted; empty means queue.
func ParsePairingMode(s string) (PairingMode, error) {
	switch PairingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", PairingQueue:
		return PairingQueue, nil
	case PairingHosted:
		return PairingHosted, nil
	}
	return "", fmt.Errorf("unknown pairing mode %q", s)
}

// OrDefault returns m, or PairingQueue when m is unset.
func (m PairingMode) OrDefault() PairingMode {
	if m == "" {
		return PairingQueue
	}
	return m
}
