package domain

import "testing"

func TestParsePairingMode(t *testing.T) {
	cases := map[string]PairingMode{"": PairingQueue, "queue": PairingQueue, " Hosted ": PairingHosted}
	for in, want := range cases {
		got, err := ParsePairingMode(in)
		if err != nil || got != want {
			t.Fatalf("ParsePairingMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePairingMode("both"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if PairingMode("").OrDefault() != PairingQueue {
		t.Fatal("unset mode should default to queue")
	}
}
