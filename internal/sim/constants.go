package sim

// Tunables exactly as spec.md §4.3.1 requires. Do not change these without
// also re-deriving the scenario expectations in spec.md §8.
const (
	TurnRateRadPerSec = 3.8

	ForwardAccel = 55.0
	ReverseAccel = 28.0
	DragFactor   = 0.18
	MaxSpeed     = 32.0

	PlayerRadius     = 2.5
	ProjectileRadius = 0.8
	PickupRadius     = 2.8

	ArenaExtent = 100.0

	ProjectileSpeed  = 70.0
	ProjectileTTLMs  = 1200.0
	ProjectileDamage = 30.0

	FireCooldownMs = 160.0

	MaxLagCompMs = 120.0

	MaxHP = 100.0

	PickupSpawnPeriodTicks = 120
	MaxPickupsAtOnce       = 3
	PickupUses             = 3

	LaserDPS           = 80.0
	LaserRange         = 55.0
	LaserHalfWidthBase = 0.6

	LaserBurnDurationMs = 2000.0

	BombSpeed   = 50.0
	BombDamage  = 60.0
	BombRadius  = 8.0
	BombTTLMs   = 1600.0

	NovaDamage           = 50.0
	NovaRadius           = 15.0
	NovaCooldownMultiple = 3.0

	RoundDurationMs = 180000.0

	historyCapacity = 30

	tickMsApprox = 16.0

	quantizeScale = 10000.0
)

// LaserHalfWidth returns the beam half-width used for hit-testing:
// 0.6 plus the target's player radius.
func LaserHalfWidth() float64 {
	return LaserHalfWidthBase + PlayerRadius
}
