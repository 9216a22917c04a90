package intent

// Confidence delta per signal kind. Unrecognized kinds contribute
// nothing but are still recorded by callers.
const (
	deltaPositive  = 20
	deltaCommitted = 22
	deltaNeutral   = 8
	deltaNegative  = -30
)

// Phase thresholds on the 0..100 confidence scale.
const (
	thresholdExecuting = 85
	thresholdShifting  = 60
	thresholdProbing   = 25
)

// SignalDelta returns the confidence adjustment for a signal kind.
func SignalDelta(kind SignalKind) int {
	switch kind {
	case SignalPositive:
		return deltaPositive
	case SignalCommitted:
		return deltaCommitted
	case SignalNeutral:
		return deltaNeutral
	case SignalNegative:
		return deltaNegative
	default:
		return 0
	}
}

func clampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// PhaseFor maps a confidence score to the active phase it implies.
// Terminal phases are never derived from confidence; callers keep
// completed and abandoned topics out of this path.
func PhaseFor(confidence int) Phase {
	switch {
	case confidence >= thresholdExecuting:
		return PhaseExecuting
	case confidence >= thresholdShifting:
		return PhaseShifting
	case confidence >= thresholdProbing:
		return PhaseProbing
	default:
		return PhaseNoticed
	}
}

// ApplySignal folds one signal into a confidence score. It returns the
// clamped updated score, the phase that score maps to and the raw delta
// that was applied.
func ApplySignal(confidence int, kind SignalKind) (int, Phase, int) {
	delta := SignalDelta(kind)
	updated := clampConfidence(confidence + delta)
	return updated, PhaseFor(updated), delta
}
