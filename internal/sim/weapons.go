package sim

import "math"

// fireBomb spawns a slow, high-damage projectile that detonates in an area
// on impact, arena exit, or ttl expiry, per spec.md §4.3.4.
func fireBomb(world *World, ship *Ship) {
	noseX, noseY := noseOffset(ship, PlayerRadius+0.5)
	proj := &Projectile{
		ID:      world.newProjectileID(),
		OwnerID: ship.UserID,
		X:       quantize(noseX),
		Y:       quantize(noseY),
		VX:      math.Cos(ship.Angle) * BombSpeed,
		VY:      math.Sin(ship.Angle) * BombSpeed,
		TTLMs:   BombTTLMs,
		Damage:  BombDamage,
		Kind:    ProjectileBomb,

		LagCompMs: clamp(ship.Input.LagCompMs, 0, MaxLagCompMs),
	}
	world.Projectiles = append(world.Projectiles, proj)
}

// detonateBomb applies area damage with linear fall-off to 40% at the
// radius edge, halves the owner's own share of that damage, and drops an
// explosion visual marker. directHitID is the ship the bomb collided with,
// if any (informational only; every ship in range still takes damage).
func detonateBomb(world *World, proj *Projectile, directHitID string) {
	_ = directHitID
	for _, id := range world.PlayerOrder {
		ship := world.Players[id]
		if ship == nil || !ship.Alive {
			continue
		}
		d := distance(proj.X, proj.Y, ship.X, ship.Y)
		if d > BombRadius {
			continue
		}
		falloff := 1.0 - (d/BombRadius)*0.6
		dmg := BombDamage * falloff
		if id == proj.OwnerID {
			dmg *= 0.5
		}
		damageShip(world, proj.OwnerID, ship, dmg)
	}
	world.Effects = append(world.Effects, &Effect{
		ID:    world.newEffectID(),
		Kind:  EffectExplosion,
		X:     proj.X,
		Y:     proj.Y,
		TTLMs: 500,
	})
}

// fireNova bursts instant radial damage around the ship, against every
// other ship's position rewound by the firer's current lag compensation,
// per spec.md §4.3.4.
func fireNova(world *World, ship *Ship) {
	lagMs := ship.Input.LagCompMs
	for _, target := range otherAliveShips(world, ship.UserID) {
		rx, ry := target.rewind(lagMs)
		d := distance(ship.X, ship.Y, rx, ry)
		if d > NovaRadius {
			continue
		}
		falloff := 1.0 - (d/NovaRadius)*0.5
		damageShip(world, ship.UserID, target, NovaDamage*falloff)
	}
	world.Effects = append(world.Effects, &Effect{
		ID:    world.newEffectID(),
		Kind:  EffectNova,
		X:     ship.X,
		Y:     ship.Y,
		TTLMs: 400,
	})
}

// applyLaserBeam deals continuous beam damage for one tick to every other
// ship whose rewound position falls within the beam's forward range and
// half-width, per spec.md §4.3.4.
func applyLaserBeam(world *World, ship *Ship, dtMs float64) {
	dt := dtMs / 1000.0
	dmg := LaserDPS * dt
	halfWidth := LaserHalfWidth()
	facingX, facingY := math.Cos(ship.Angle), math.Sin(ship.Angle)
	lagMs := ship.Input.LagCompMs

	for _, target := range otherAliveShips(world, ship.UserID) {
		rx, ry := target.rewind(lagMs)
		dx, dy := rx-ship.X, ry-ship.Y
		along := dx*facingX + dy*facingY
		if along < 0 || along > LaserRange {
			continue
		}
		perp := math.Abs(dx*facingY - dy*facingX)
		if perp <= halfWidth {
			damageShip(world, ship.UserID, target, dmg)
		}
	}
}
