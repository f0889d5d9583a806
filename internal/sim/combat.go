package sim

import "math"

// damageShip applies dmg to target's hp, marks it dead at zero, and
// credits the owner's stats. Shared by projectile, bomb, laser, and nova
// resolution so kill/death bookkeeping stays in one place.
func damageShip(world *World, ownerID string, target *Ship, dmg float64) {
	if target == nil || !target.Alive {
		return
	}
	target.HP -= dmg
	if target.HP < 0 {
		target.HP = 0
	}
	target.HP = quantize(target.HP)

	if owner, ok := world.Players[ownerID]; ok && ownerID != target.UserID {
		owner.Stats.DamageDealt = quantize(owner.Stats.DamageDealt + dmg)
	}

	if target.HP <= 0 && target.Alive {
		target.Alive = false
		target.Stats.Deaths++
		if owner, ok := world.Players[ownerID]; ok && ownerID != target.UserID {
			owner.Stats.Kills++
		}
	}
}

func otherAliveShips(world *World, excludeID string) []*Ship {
	var out []*Ship
	for _, id := range world.PlayerOrder {
		if id == excludeID {
			continue
		}
		if ship := world.Players[id]; ship != nil && ship.Alive {
			out = append(out, ship)
		}
	}
	return out
}

func distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x1-x2, y1-y2)
}
