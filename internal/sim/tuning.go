package sim

// Tuning holds the timing and placement parameters of a round. Times are in
// seconds of simulation clock.
type Tuning struct {
	RespawnDelay            float64
	InvulnerabilityDuration float64
	// SafeSpawnDistance keeps respawning ships and new asteroids away from
	// existing asteroids and ships.
	SafeSpawnDistance float64
	// MinAsteroidDistance keeps new asteroids away from ships.
	MinAsteroidDistance float64
	SpawnMargin         float64
	MaxSpawnAttempts    int
	AsteroidCount       int
	// DestroyGrace is how long a locally destroyed asteroid waits for the
	// server's broadcast before it is dropped anyway.
	DestroyGrace       float64
	ExplosionParticles int
	HitParticles       int
}

func DefaultTuning() Tuning {
	return Tuning{
		RespawnDelay:            3,
		InvulnerabilityDuration: 3,
		SafeSpawnDistance:       100,
		MinAsteroidDistance:     150,
		SpawnMargin:             50,
		MaxSpawnAttempts:        64,
		AsteroidCount:           4,
		DestroyGrace:            1,
		ExplosionParticles:      20,
		HitParticles:            15,
	}
}
