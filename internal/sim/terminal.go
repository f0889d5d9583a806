package sim

import "math"

const tieTolerance = 1e-4

// resolveTerminal checks spec.md §4.3.6's termination conditions and, if
// met, marks the world finished with its winners and reason. It is a
// no-op once the world is already finished.
func resolveTerminal(world *World) {
	if world.Phase != PhasePlaying {
		return
	}

	var aliveIDs []string
	for _, id := range world.PlayerOrder {
		if ship := world.Players[id]; ship != nil && ship.Alive {
			aliveIDs = append(aliveIDs, id)
		}
	}

	if len(aliveIDs) <= 1 {
		world.Phase = PhaseFinished
		world.WinnerIDs = aliveIDs
		world.Reason = ReasonElimination
		return
	}

	if world.RemainingMs <= 0 {
		maxHP := -1.0
		for _, id := range aliveIDs {
			if hp := world.Players[id].HP; hp > maxHP {
				maxHP = hp
			}
		}
		var winners []string
		for _, id := range aliveIDs {
			if math.Abs(world.Players[id].HP-maxHP) <= tieTolerance {
				winners = append(winners, id)
			}
		}
		world.Phase = PhaseFinished
		world.WinnerIDs = winners
		world.Reason = ReasonTimeout
	}
}

// IsTerminal reports the world's current termination state. It performs no
// mutation; Tick already resolved Phase/WinnerIDs/Reason by the time this
// is called.
func IsTerminal(world *World) TerminalResult {
	return TerminalResult{
		Terminal:    world.Phase == PhaseFinished,
		WinnerIDs:   world.WinnerIDs,
		Reason:      world.Reason,
		FinalTick:   world.Tick,
		RemainingMs: world.RemainingMs,
	}
}
