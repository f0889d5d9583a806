package sim

import "math"

// Tick advances the world by one fixed simulation step of dtMs
// milliseconds, per spec.md §4.3.2's seven-step ordering. It is
// synchronous and mutates world in place; the caller (room runtime) owns
// all scheduling and must not call Tick concurrently for the same world.
func Tick(world *World, dtMs float64) {
	if world == nil || world.Phase != PhasePlaying {
		return
	}
	dt := dtMs / 1000.0

	world.RemainingMs -= dtMs
	if world.RemainingMs < 0 {
		world.RemainingMs = 0
	}
	world.Tick++

	expireEffects(world, dtMs)

	for _, id := range world.PlayerOrder {
		ship := world.Players[id]
		if ship == nil || !ship.Alive {
			continue
		}
		stepShip(world, ship, dt, dtMs)
	}

	updateProjectiles(world, dtMs)
	maybeSpawnPickup(world)
	collectPickups(world)

	resolveTerminal(world)
}

func expireEffects(world *World, dtMs float64) {
	kept := world.Effects[:0]
	for _, fx := range world.Effects {
		fx.TTLMs -= dtMs
		if fx.TTLMs > 0 {
			kept = append(kept, fx)
		}
	}
	world.Effects = kept
}

func stepShip(world *World, ship *Ship, dt, dtMs float64) {
	ship.Angle = normalizeAngle(ship.Angle + ship.Input.Turn*TurnRateRadPerSec*dt)

	accel := ForwardAccel
	if ship.Input.Thrust < 0 {
		accel = ReverseAccel
	}
	thrust := ship.Input.Thrust
	ship.VX += math.Cos(ship.Angle) * accel * thrust * dt
	ship.VY += math.Sin(ship.Angle) * accel * thrust * dt

	dragMul := math.Exp(-DragFactor * dt)
	ship.VX *= dragMul
	ship.VY *= dragMul

	if speed := math.Hypot(ship.VX, ship.VY); speed > MaxSpeed {
		scale := MaxSpeed / speed
		ship.VX *= scale
		ship.VY *= scale
	}

	ship.X += ship.VX * dt
	ship.Y += ship.VY * dt

	minCoord := PlayerRadius
	maxCoord := ArenaExtent - PlayerRadius
	if ship.X < minCoord {
		ship.X = minCoord
		ship.VX = 0
	} else if ship.X > maxCoord {
		ship.X = maxCoord
		ship.VX = 0
	}
	if ship.Y < minCoord {
		ship.Y = minCoord
		ship.VY = 0
	} else if ship.Y > maxCoord {
		ship.Y = maxCoord
		ship.VY = 0
	}

	ship.X = quantize(ship.X)
	ship.Y = quantize(ship.Y)
	ship.VX = quantize(ship.VX)
	ship.VY = quantize(ship.VY)
	ship.Angle = quantize(ship.Angle)

	ship.appendHistory()

	ship.FireCooldownMs -= dtMs
	if ship.FireCooldownMs < 0 {
		ship.FireCooldownMs = 0
	}
	ship.NovaCooldownMs -= dtMs
	if ship.NovaCooldownMs < 0 {
		ship.NovaCooldownMs = 0
	}

	firePressed := ship.Input.FirePressed
	if firePressed && ship.FireCooldownMs == 0 {
		fireShip(world, ship)
	}
	ship.Input.FirePressed = false

	if ship.Weapon == WeaponLaser && ship.Input.Fire && ship.WeaponUses > 0 {
		applyLaserBeam(world, ship, dtMs)
		ship.LaserActiveMs += dtMs
		if ship.LaserActiveMs >= LaserBurnDurationMs {
			consumeWeaponUse(ship)
			ship.LaserActiveMs = 0
		}
	}
}

// fireShip dispatches a fire-press to a ship's special weapon when it has
// one armed, or spawns a standard projectile otherwise.
func fireShip(world *World, ship *Ship) {
	switch ship.Weapon {
	case WeaponBomb:
		if ship.WeaponUses > 0 {
			fireBomb(world, ship)
			consumeWeaponUse(ship)
			ship.FireCooldownMs = FireCooldownMs * 2
			return
		}
	case WeaponNova:
		if ship.WeaponUses > 0 && ship.NovaCooldownMs == 0 {
			fireNova(world, ship)
			consumeWeaponUse(ship)
			ship.NovaCooldownMs = FireCooldownMs * NovaCooldownMultiple
			ship.FireCooldownMs = FireCooldownMs
			return
		}
	case WeaponLaser:
		// Laser fires continuously via the Fire-held branch in stepShip,
		// gated on Input.Fire and WeaponUses, not on FireCooldownMs
		// (spec.md §4.3.4 has no cooldown for the laser). A fresh press
		// does not spawn anything additional.
		return
	}
	spawnProjectile(world, ship)
	ship.FireCooldownMs = FireCooldownMs
}

func consumeWeaponUse(ship *Ship) {
	if ship.WeaponUses > 0 {
		ship.WeaponUses--
	}
	if ship.WeaponUses <= 0 {
		ship.Weapon = WeaponNone
		ship.WeaponUses = 0
		ship.LaserActiveMs = 0
	}
}
