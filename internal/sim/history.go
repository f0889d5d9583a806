package sim

// appendHistory pushes the ship's current position onto its bounded
// position-history ring, dropping the oldest sample once it holds more
// than historyCapacity entries. Grounded on spec.md §3/§9's description
// of a fixed-capacity ring per ship.
func (s *Ship) appendHistory() {
	s.history = append(s.history, historySample{X: s.X, Y: s.Y})
	if len(s.history) > historyCapacity {
		s.history = s.history[len(s.history)-historyCapacity:]
	}
}

// rewind returns the ship's position lagMs milliseconds in the past, per
// spec.md §4.3.3's rewind rule: round(lagMs/16) ticks back, clamped at
// index 0 (the oldest sample) when history is shorter than that. The
// current position is used only when history is empty.
func (s *Ship) rewind(lagMs float64) (float64, float64) {
	if len(s.history) == 0 {
		return s.X, s.Y
	}
	ticksBack := int(roundHalfAwayFromZero(lagMs / tickMsApprox))
	idx := len(s.history) - 1 - ticksBack
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.history) {
		idx = len(s.history) - 1
	}
	sample := s.history[idx]
	return sample.X, sample.Y
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}
