// Package delta projects the simulation's internal World into the wire
// network shape and computes the changed/removed diff between two such
// projections, per spec.md §4.4.
package delta

import "usion-arena/server/internal/sim"

// Ship is the network-facing projection of sim.Ship: server-only fields
// (position history, transient input) are stripped. Every field is
// comparable so two Ships can be compared with ==, which is what the
// delta builder's "shallow-equal" rule means in practice.
type Ship struct {
	X, Y           float64
	VX, VY         float64
	Angle          float64
	HP             float64
	Alive          bool
	Weapon         sim.WeaponKind
	WeaponUses     int
	LaserActiveMs  float64
	NovaCooldownMs float64
	Kills          int
	Deaths         int
	DamageDealt    float64
	PickupsCollected int
}

// Projectile is the network-facing projection of sim.Projectile.
type Projectile struct {
	OwnerID string
	X, Y    float64
	VX, VY  float64
	TTLMs   float64
	Kind    sim.ProjectileKind
}

// Pickup is the network-facing projection of sim.Pickup.
type Pickup struct {
	X, Y  float64
	Type  sim.WeaponKind
	Value int
}

// Effect is the network-facing projection of sim.Effect.
type Effect struct {
	Kind  sim.EffectKind
	X, Y  float64
	TTLMs float64
}

// State is one network-projected snapshot of the world, suitable for
// full_state payloads or for diffing against another State.
type State struct {
	Phase       sim.Phase
	Tick        uint64
	RemainingMs float64
	Players     map[string]Ship
	Projectiles map[string]Projectile
	Pickups     map[string]Pickup
	Effects     map[string]Effect
	WinnerIDs   []string
	Reason      sim.TerminationReason
}

// Project strips world down to the network-facing State.
func Project(world *sim.World) State {
	state := State{
		Phase:       world.Phase,
		Tick:        world.Tick,
		RemainingMs: world.RemainingMs,
		Players:     make(map[string]Ship, len(world.Players)),
		Projectiles: make(map[string]Projectile, len(world.Projectiles)),
		Pickups:     make(map[string]Pickup, len(world.Pickups)),
		Effects:     make(map[string]Effect, len(world.Effects)),
		WinnerIDs:   world.WinnerIDs,
		Reason:      world.Reason,
	}
	for id, ship := range world.Players {
		state.Players[id] = Ship{
			X: ship.X, Y: ship.Y, VX: ship.VX, VY: ship.VY, Angle: ship.Angle,
			HP: ship.HP, Alive: ship.Alive,
			Weapon: ship.Weapon, WeaponUses: ship.WeaponUses,
			LaserActiveMs: ship.LaserActiveMs, NovaCooldownMs: ship.NovaCooldownMs,
			Kills: ship.Stats.Kills, Deaths: ship.Stats.Deaths,
			DamageDealt: ship.Stats.DamageDealt, PickupsCollected: ship.Stats.PickupsCollected,
		}
	}
	for _, proj := range world.Projectiles {
		state.Projectiles[proj.ID] = Projectile{
			OwnerID: proj.OwnerID, X: proj.X, Y: proj.Y, VX: proj.VX, VY: proj.VY,
			TTLMs: proj.TTLMs, Kind: proj.Kind,
		}
	}
	for _, pickup := range world.Pickups {
		state.Pickups[pickup.ID] = Pickup{X: pickup.X, Y: pickup.Y, Type: pickup.Type, Value: pickup.Value}
	}
	for _, fx := range world.Effects {
		state.Effects[fx.ID] = Effect{Kind: fx.Kind, X: fx.X, Y: fx.Y, TTLMs: fx.TTLMs}
	}
	return state
}

// Delta is the {changed_entities, removed_entities} pair spec.md §4.4
// requires on the wire.
type Delta struct {
	ChangedEntities map[string]any `json:"changed_entities"`
	RemovedEntities map[string]any `json:"removed_entities"`
}

// Build computes the diff from prev to next. A nil prev emits phase, tick,
// remainingMs and every entity collection of next as changed (players only
// when there is at least one) with an empty removed set. WinnerIDs and
// Reason are never part of the diff.
func Build(prev *State, next State) Delta {
	changed := map[string]any{}
	removed := map[string]any{}

	if prev == nil {
		changed["phase"] = next.Phase
		changed["tick"] = next.Tick
		changed["remainingMs"] = next.RemainingMs
		if len(next.Players) > 0 {
			changed["players"] = next.Players
		}
		changed["projectiles"] = next.Projectiles
		changed["pickups"] = next.Pickups
		changed["effects"] = next.Effects
		return Delta{ChangedEntities: changed, RemovedEntities: removed}
	}

	if prev.Phase != next.Phase {
		changed["phase"] = next.Phase
	}
	if prev.Tick != next.Tick {
		changed["tick"] = next.Tick
	}
	if prev.RemainingMs != next.RemainingMs {
		changed["remainingMs"] = next.RemainingMs
	}

	if changedPlayers := diffShips(prev.Players, next.Players); len(changedPlayers) > 0 {
		changed["players"] = changedPlayers
	}

	changedProjectiles, removedProjectiles := diffCollection(prev.Projectiles, next.Projectiles)
	if len(changedProjectiles) > 0 {
		changed["projectiles"] = changedProjectiles
	}
	if len(removedProjectiles) > 0 {
		removed["projectiles"] = removedProjectiles
	}

	changedPickups, removedPickups := diffCollection(prev.Pickups, next.Pickups)
	if len(changedPickups) > 0 {
		changed["pickups"] = changedPickups
	}
	if len(removedPickups) > 0 {
		removed["pickups"] = removedPickups
	}

	changedEffects, removedEffects := diffCollection(prev.Effects, next.Effects)
	if len(changedEffects) > 0 {
		changed["effects"] = changedEffects
	}
	if len(removedEffects) > 0 {
		removed["effects"] = removedEffects
	}

	return Delta{ChangedEntities: changed, RemovedEntities: removed}
}

// Apply reconstructs next from prev and d, per the round-trip law in
// spec.md §8: applyDelta(prev, buildDelta(prev, next)) == next. WinnerIDs
// and Reason are copied from prev, so the law does not hold across a
// transition that changes them (the switch to the finished phase).
func Apply(prev State, d Delta) State {
	next := State{
		Phase:       prev.Phase,
		Tick:        prev.Tick,
		RemainingMs: prev.RemainingMs,
		Players:     cloneShips(prev.Players),
		Projectiles: cloneProjectiles(prev.Projectiles),
		Pickups:     clonePickups(prev.Pickups),
		Effects:     cloneEffects(prev.Effects),
		WinnerIDs:   prev.WinnerIDs,
		Reason:      prev.Reason,
	}

	if v, ok := d.ChangedEntities["phase"]; ok {
		next.Phase = v.(sim.Phase)
	}
	if v, ok := d.ChangedEntities["tick"]; ok {
		next.Tick = v.(uint64)
	}
	if v, ok := d.ChangedEntities["remainingMs"]; ok {
		next.RemainingMs = v.(float64)
	}
	if v, ok := d.ChangedEntities["players"]; ok {
		for id, ship := range v.(map[string]Ship) {
			next.Players[id] = ship
		}
	}
	if v, ok := d.ChangedEntities["projectiles"]; ok {
		for id, proj := range v.(map[string]Projectile) {
			next.Projectiles[id] = proj
		}
	}
	if v, ok := d.RemovedEntities["projectiles"]; ok {
		for _, id := range v.([]string) {
			delete(next.Projectiles, id)
		}
	}
	if v, ok := d.ChangedEntities["pickups"]; ok {
		for id, p := range v.(map[string]Pickup) {
			next.Pickups[id] = p
		}
	}
	if v, ok := d.RemovedEntities["pickups"]; ok {
		for _, id := range v.([]string) {
			delete(next.Pickups, id)
		}
	}
	if v, ok := d.ChangedEntities["effects"]; ok {
		for id, e := range v.(map[string]Effect) {
			next.Effects[id] = e
		}
	}
	if v, ok := d.RemovedEntities["effects"]; ok {
		for _, id := range v.([]string) {
			delete(next.Effects, id)
		}
	}

	return next
}

func cloneShips(m map[string]Ship) map[string]Ship {
	out := make(map[string]Ship, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneProjectiles(m map[string]Projectile) map[string]Projectile {
	out := make(map[string]Projectile, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clonePickups(m map[string]Pickup) map[string]Pickup {
	out := make(map[string]Pickup, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneEffects(m map[string]Effect) map[string]Effect {
	out := make(map[string]Effect, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func diffShips(prev, next map[string]Ship) map[string]Ship {
	out := map[string]Ship{}
	for id, ship := range next {
		if old, ok := prev[id]; !ok || old != ship {
			out[id] = ship
		}
	}
	return out
}

func diffCollection[T comparable](prev, next map[string]T) (map[string]T, []string) {
	changed := map[string]T{}
	for id, entity := range next {
		if old, ok := prev[id]; !ok || old != entity {
			changed[id] = entity
		}
	}
	var removed []string
	for id := range prev {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	return changed, removed
}
