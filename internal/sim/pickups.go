package sim

// pickupTypeDraws is the fixed set of PRNG constants used to place and
// type a pickup, per spec.md §4.3.5.
var pickupTypeDraws = [3]int64{7919, 1543, 3571}

var pickupKinds = [3]WeaponKind{WeaponLaser, WeaponBomb, WeaponNova}

// maybeSpawnPickup places a new pickup at a deterministic position every
// PickupSpawnPeriodTicks ticks, while fewer than MaxPickupsAtOnce exist.
func maybeSpawnPickup(world *World) {
	if world.Tick%PickupSpawnPeriodTicks != 0 {
		return
	}
	if len(world.Pickups) >= MaxPickupsAtOnce {
		return
	}

	rx := pickupPRNG(world.Seed, world.Tick, pickupTypeDraws[0])
	ry := pickupPRNG(world.Seed, world.Tick, pickupTypeDraws[1])
	rt := pickupPRNG(world.Seed, world.Tick, pickupTypeDraws[2])

	inset := PickupRadius + 5
	span := ArenaExtent - 2*inset
	x := inset + rx*span
	y := inset + ry*span

	kind := pickupKinds[int(rt*3)%3]

	world.Pickups = append(world.Pickups, &Pickup{
		ID:    world.newPickupID(),
		X:     quantize(x),
		Y:     quantize(y),
		Type:  kind,
		Value: PickupUses,
	})
}

// collectPickups grants the first alive ship overlapping each pickup its
// weapon type and uses, then removes the pickup from the world.
func collectPickups(world *World) {
	if len(world.Pickups) == 0 {
		return
	}
	kept := world.Pickups[:0]
	for _, pickup := range world.Pickups {
		collected := false
		for _, id := range world.PlayerOrder {
			ship := world.Players[id]
			if ship == nil || !ship.Alive {
				continue
			}
			if distance(ship.X, ship.Y, pickup.X, pickup.Y) <= PlayerRadius+PickupRadius {
				ship.Weapon = pickup.Type
				ship.WeaponUses = pickup.Value
				ship.LaserActiveMs = 0
				ship.Stats.PickupsCollected++
				collected = true
				break
			}
		}
		if !collected {
			kept = append(kept, pickup)
		}
	}
	world.Pickups = kept
}
