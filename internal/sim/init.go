package sim

import (
	"fmt"
	"math"
)

// Init assigns the first two player ids to symmetric spawn points and
// returns a fresh World ready to tick. Per spec.md §4.3: left spawn at
// (18,50) facing 0 rad, right spawn at (82,50) facing pi.
func Init(playerIDs []string, seed int64) *World {
	world := &World{
		Phase:       PhasePlaying,
		Seed:        seed,
		Tick:        0,
		RemainingMs: RoundDurationMs,
		Arena:       Arena{Width: ArenaExtent, Height: ArenaExtent},
		Players:     make(map[string]*Ship),
	}

	spawns := []struct {
		X, Y, Angle float64
	}{
		{18, 50, 0},
		{82, 50, math.Pi},
	}

	for i, id := range playerIDs {
		if i >= len(spawns) {
			break
		}
		spawn := spawns[i]
		ship := &Ship{
			UserID: id,
			X:      spawn.X,
			Y:      spawn.Y,
			Angle:  spawn.Angle,
			HP:     MaxHP,
			Alive:  true,
			Weapon: WeaponNone,
		}
		ship.appendHistory()
		world.Players[id] = ship
		world.PlayerOrder = append(world.PlayerOrder, id)
	}

	return world
}

// ApplyInput stores payload into the ship's input slot. It is a no-op if
// the ship is absent or dead. Per spec.md §4.3: clamps turn/thrust to
// [-1,1], lag-comp to [0,120]; FirePressed is set verbatim on the boolean
// received, to be consumed and cleared by the tick loop.
func ApplyInput(world *World, userID string, payload InputSnapshot) {
	if world == nil {
		return
	}
	ship, ok := world.Players[userID]
	if !ok || !ship.Alive {
		return
	}
	ship.Input.Turn = clamp(payload.Turn, -1, 1)
	ship.Input.Thrust = clamp(payload.Thrust, -1, 1)
	ship.Input.Fire = payload.Fire
	ship.Input.FirePressed = payload.FirePressed
	ship.Input.FireSeq = payload.FireSeq
	ship.Input.LagCompMs = clamp(payload.LagCompMs, 0, MaxLagCompMs)
}

func (w *World) newProjectileID() string {
	w.nextProjectileID++
	return fmt.Sprintf("proj-%d", w.nextProjectileID)
}

func (w *World) newPickupID() string {
	w.nextPickupID++
	return fmt.Sprintf("pickup-%d", w.nextPickupID)
}

func (w *World) newEffectID() string {
	w.nextEffectID++
	return fmt.Sprintf("effect-%d", w.nextEffectID)
}
