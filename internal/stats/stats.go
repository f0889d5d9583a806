// Package stats builds the final per-player statistics record the room
// runtime attaches to match_end frames and webhook submissions.
package stats

import "usion-arena/server/internal/sim"

// Record is one player's final match statistics.
type Record struct {
	Kills            int     `json:"kills"`
	Deaths           int     `json:"deaths"`
	DamageDealt      float64 `json:"damage_dealt"`
	PickupsCollected int     `json:"pickups_collected"`
}

// Final builds the user-id-keyed stats map spec.md §4.5.5 calls
// "final_stats" from the world's ships.
func Final(world *sim.World) map[string]Record {
	out := make(map[string]Record, len(world.Players))
	for id, ship := range world.Players {
		out[id] = Record{
			Kills:            ship.Stats.Kills,
			Deaths:           ship.Stats.Deaths,
			DamageDealt:      ship.Stats.DamageDealt,
			PickupsCollected: ship.Stats.PickupsCollected,
		}
	}
	return out
}
