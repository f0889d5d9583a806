package sim

import "math"

// spawnProjectile places a standard bullet at the ship's nose and, if the
// input carried lag compensation, performs the instant rewind hit-scan of
// spec.md §4.3.3 before the projectile is allowed to exist as a live
// entity for longer than a single visual frame.
func spawnProjectile(world *World, ship *Ship) {
	noseX, noseY := noseOffset(ship, PlayerRadius+0.5)
	vx := math.Cos(ship.Angle) * ProjectileSpeed
	vy := math.Sin(ship.Angle) * ProjectileSpeed
	lagMs := clamp(ship.Input.LagCompMs, 0, MaxLagCompMs)

	if lagMs > 0 {
		if hit := rewindHitScan(world, ship, noseX, noseY, vx, vy, lagMs); hit {
			return
		}
		advanceMs := lagMs / 1000.0
		noseX += vx * advanceMs
		noseY += vy * advanceMs
	}

	proj := &Projectile{
		ID:        world.newProjectileID(),
		OwnerID:   ship.UserID,
		X:         quantize(noseX),
		Y:         quantize(noseY),
		VX:        vx,
		VY:        vy,
		TTLMs:     ProjectileTTLMs - lagMs,
		Damage:    ProjectileDamage,
		Kind:      ProjectileBullet,
		LagCompMs: lagMs,
	}
	if proj.TTLMs <= 0 {
		return
	}
	world.Projectiles = append(world.Projectiles, proj)
}

func noseOffset(ship *Ship, offset float64) (float64, float64) {
	x := ship.X + math.Cos(ship.Angle)*offset
	y := ship.Y + math.Sin(ship.Angle)*offset
	min := PlayerRadius
	max := ArenaExtent - PlayerRadius
	return clamp(x, min, max), clamp(y, min, max)
}

// rewindHitScan discretizes the lag window into ceil(lagMs/16) substeps and
// tests the projectile's forward path against every other ship's rewound
// history. On a hit it applies damage immediately and leaves a short-lived
// visual projectile at the impact point; it reports whether a hit occurred.
func rewindHitScan(world *World, shooter *Ship, spawnX, spawnY, vx, vy, lagMs float64) bool {
	substeps := int(math.Ceil(lagMs / tickMsApprox))
	if substeps < 1 {
		substeps = 1
	}
	for s := 0; s < substeps; s++ {
		elapsedMs := float64(s+1) * tickMsApprox
		if elapsedMs > lagMs {
			elapsedMs = lagMs
		}
		pathX := spawnX + vx*(elapsedMs/1000.0)
		pathY := spawnY + vy*(elapsedMs/1000.0)
		rewindMs := lagMs - elapsedMs
		if rewindMs < 0 {
			rewindMs = 0
		}
		for _, target := range otherAliveShips(world, shooter.UserID) {
			rx, ry := target.rewind(rewindMs)
			if distance(pathX, pathY, rx, ry) <= PlayerRadius+ProjectileRadius {
				damageShip(world, shooter.UserID, target, ProjectileDamage)
				world.Projectiles = append(world.Projectiles, &Projectile{
					ID:      world.newProjectileID(),
					OwnerID: shooter.UserID,
					X:       quantize(pathX),
					Y:       quantize(pathY),
					TTLMs:   50,
					Damage:  0,
					Kind:    ProjectileBullet,
				})
				return true
			}
		}
	}
	return false
}

// updateProjectiles advances every live projectile by one tick: ttl decay,
// integration, arena-exit/impact removal, and collision resolution against
// both the current and (when lag-compensated) rewound ship positions.
func updateProjectiles(world *World, dtMs float64) {
	dt := dtMs / 1000.0
	kept := world.Projectiles[:0]
	for _, proj := range world.Projectiles {
		proj.TTLMs -= dtMs
		if proj.TTLMs <= 0 {
			detonateIfBomb(world, proj)
			continue
		}

		proj.X = quantize(proj.X + proj.VX*dt)
		proj.Y = quantize(proj.Y + proj.VY*dt)

		min := ProjectileRadius
		max := ArenaExtent - ProjectileRadius
		if proj.X < min || proj.X > max || proj.Y < min || proj.Y > max {
			detonateIfBomb(world, proj)
			continue
		}

		// Zero-damage impact markers only expire; they never collide, so a
		// marker left on a target is not replaced by a fresh one each tick.
		if proj.Damage <= 0 {
			kept = append(kept, proj)
			continue
		}

		if target, hitX, hitY := projectileHit(world, proj); target != nil {
			if proj.Kind == ProjectileBomb {
				detonateBomb(world, proj, target.UserID)
			} else {
				damageShip(world, proj.OwnerID, target, proj.Damage)
				// Same-treatment impact marker as rewindHitScan: a
				// short-lived, zero-damage projectile at the position the
				// hit was actually resolved against (which may be the
				// target's rewound position, not its current one). Append
				// to kept, not world.Projectiles directly — the latter is
				// overwritten by kept once this loop finishes.
				kept = append(kept, &Projectile{
					ID:      world.newProjectileID(),
					OwnerID: proj.OwnerID,
					X:       quantize(hitX),
					Y:       quantize(hitY),
					TTLMs:   50,
					Damage:  0,
					Kind:    ProjectileBullet,
				})
			}
			continue
		}

		kept = append(kept, proj)
	}
	world.Projectiles = kept
}

// projectileHit tests proj against every other alive ship, accepting a hit
// if the projectile is within range of the ship's current position or (when
// the projectile carries lag compensation) its rewound position.
func projectileHit(world *World, proj *Projectile) (*Ship, float64, float64) {
	for _, target := range otherAliveShips(world, proj.OwnerID) {
		if distance(proj.X, proj.Y, target.X, target.Y) <= PlayerRadius+ProjectileRadius {
			return target, target.X, target.Y
		}
		if proj.LagCompMs > 0 {
			rx, ry := target.rewind(proj.LagCompMs)
			if distance(proj.X, proj.Y, rx, ry) <= PlayerRadius+ProjectileRadius {
				return target, rx, ry
			}
		}
	}
	return nil, 0, 0
}

func detonateIfBomb(world *World, proj *Projectile) {
	if proj.Kind == ProjectileBomb {
		detonateBomb(world, proj, "")
	}
}
