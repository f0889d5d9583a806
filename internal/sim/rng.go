package sim

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
)

// DeriveSeed turns a room id into the deterministic world seed: the first
// 12 hex characters of sha256(roomID), interpreted as base-16. Grounded on
// spec.md §3's "seed: integer derived from the room id".
func DeriveSeed(roomID string) int64 {
	sum := sha256.Sum256([]byte(roomID))
	hexStr := hex.EncodeToString(sum[:])[:12]
	seed, err := strconv.ParseInt(hexStr, 16, 64)
	if err != nil {
		return 0
	}
	return seed
}

// pickupPRNG draws a reproducible pseudo-random value in [0,1) from the
// world seed, the current tick, and a per-draw constant k, per spec.md
// §4.3.5 and the design note in §9: frac(sin((seed + tick*k) * 12.9898) *
// 43758.5453). This exact formula must never be replaced by a library
// PRNG or every scenario expectation that depends on pickup placement
// changes.
func pickupPRNG(seed int64, tick uint64, k int64) float64 {
	x := float64(seed+int64(tick)*k) * 12.9898
	v := math.Sin(x) * 43758.5453
	_, frac := math.Modf(v)
	if frac < 0 {
		frac += 1
	}
	return frac
}
