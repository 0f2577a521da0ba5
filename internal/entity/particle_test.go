package entity

import (
	"math/rand/v2"
	"testing"
)

// TestParticleFadesOut tests that particles decay to death and round-trip through snapshots
func TestParticleFadesOut(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(3, 4))
	for _, kind := range []ParticleKind{ParticleExplosion, ParticleThrust, ParticleImpact} {
		p := NewParticle(10, 10, "", kind, rng)

		mirror := &Particle{}
		mirror.ApplySnapshot(p.Snapshot())
		if mirror.Snapshot() != p.Snapshot() {
			t.Errorf("%s: snapshot round trip mismatch", kind)
		}

		steps := 0
		for !p.Dead() {
			p.Update(1)
			steps++
			if steps > 1000 {
				t.Fatalf("%s particle never died", kind)
			}
		}
	}
}
