package delta

import (
	"reflect"
	"testing"

	"usion-arena/server/internal/sim"
)

func TestBuildWithNilPrevEmitsEverything(t *testing.T) {
	world := sim.Init([]string{"a", "b"}, 1)
	next := Project(world)

	d := Build(nil, next)
	if len(d.RemovedEntities) != 0 {
		t.Fatalf("expected empty removed set, got %v", d.RemovedEntities)
	}
	if _, ok := d.ChangedEntities["players"]; !ok {
		t.Fatalf("expected players in changed entities")
	}
}

func TestRoundTripLaw(t *testing.T) {
	world := sim.Init([]string{"a", "b"}, 9)
	world.Players["a"].Input.Thrust = 1
	world.Players["b"].Input.FirePressed = true
	world.Players["b"].Input.Fire = true

	prev := Project(world)
	for i := 0; i < 50; i++ {
		sim.Tick(world, 16)
	}
	next := Project(world)

	d := Build(&prev, next)
	reconstructed := Apply(prev, d)

	if !reflect.DeepEqual(reconstructed, next) {
		t.Fatalf("round-trip mismatch:\nwant %+v\ngot  %+v", next, reconstructed)
	}
}

func TestDiffOnlyEmitsChangedShips(t *testing.T) {
	world := sim.Init([]string{"a", "b"}, 2)
	prev := Project(world)
	sim.Tick(world, 16)
	next := Project(world)

	d := Build(&prev, next)
	players, ok := d.ChangedEntities["players"].(map[string]Ship)
	if !ok {
		t.Fatalf("expected players map in diff")
	}
	if len(players) == 0 {
		t.Fatalf("expected at least one changed ship after a tick")
	}
	// a neither moves nor turns, so its projection is unchanged.
	if _, ok := players["a"]; ok {
		t.Fatalf("expected unchanged ship a to be omitted from the diff, got %+v", players["a"])
	}
}
