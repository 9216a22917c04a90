package intent

import "testing"

func TestSignalDelta(t *testing.T) {
	cases := []struct {
		kind SignalKind
		want int
	}{
		{SignalPositive, 20},
		{SignalCommitted, 22},
		{SignalNeutral, 8},
		{SignalNegative, -30},
		{SignalKind("shrug"), 0},
		{SignalKind(""), 0},
	}
	for _, tc := range cases {
		if got := SignalDelta(tc.kind); got != tc.want {
			t.Fatalf("SignalDelta(%q) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestPhaseForBoundaries(t *testing.T) {
	cases := []struct {
		confidence int
		want       Phase
	}{
		{0, PhaseNoticed},
		{24, PhaseNoticed},
		{25, PhaseProbing},
		{59, PhaseProbing},
		{60, PhaseShifting},
		{84, PhaseShifting},
		{85, PhaseExecuting},
		{100, PhaseExecuting},
	}
	for _, tc := range cases {
		if got := PhaseFor(tc.confidence); got != tc.want {
			t.Fatalf("PhaseFor(%d) = %q, want %q", tc.confidence, got, tc.want)
		}
	}
}

func TestApplySignalClampsHigh(t *testing.T) {
	conf, phase, delta := ApplySignal(95, SignalPositive)
	if conf != 100 {
		t.Fatalf("ApplySignal(95, positive) confidence = %d, want 100", conf)
	}
	if phase != PhaseExecuting {
		t.Fatalf("ApplySignal(95, positive) phase = %q, want %q", phase, PhaseExecuting)
	}
	if delta != 20 {
		t.Fatalf("ApplySignal(95, positive) delta = %d, want 20", delta)
	}
}

func TestApplySignalClampsLow(t *testing.T) {
	conf, phase, delta := ApplySignal(10, SignalNegative)
	if conf != 0 {
		t.Fatalf("ApplySignal(10, negative) confidence = %d, want 0", conf)
	}
	if phase != PhaseNoticed {
		t.Fatalf("ApplySignal(10, negative) phase = %q, want %q", phase, PhaseNoticed)
	}
	if delta != -30 {
		t.Fatalf("ApplySignal(10, negative) delta = %d, want -30", delta)
	}
}

func TestApplySignalStaysInRange(t *testing.T) {
	kinds := []SignalKind{SignalPositive, SignalCommitted, SignalNeutral, SignalNegative, SignalKind("bogus")}
	for c := 0; c <= 100; c++ {
		for _, kind := range kinds {
			got, _, _ := ApplySignal(c, kind)
			if got < 0 || got > 100 {
				t.Fatalf("ApplySignal(%d, %q) = %d, out of range", c, kind, got)
			}
		}
	}
}

func TestClampRoundTrip(t *testing.T) {
	// +20 then -20 with no clamp triggered lands back on the start.
	for c := 0; c <= 80; c++ {
		up := clampConfidence(c + 20)
		down := clampConfidence(up - 20)
		if down != c {
			t.Fatalf("round trip from %d: got %d, want %d", c, down, c)
		}
	}
}
