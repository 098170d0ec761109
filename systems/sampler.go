package systems

import (
	"math/rand"

	"github.com/pthm-cable/nanosim/components"
	"github.com/pthm-cable/nanosim/config"
)

// Sampler draws initial kinematics. Not safe for concurrent use; the
// coordinator samples the whole population before any task starts.
type Sampler struct {
	rng      *rand.Rand
	position config.Range
	velocity config.Range
}

// NewSampler creates a sampler over the configured ranges.
func NewSampler(rng *rand.Rand, sampling config.SamplingConfig) *Sampler {
	return &Sampler{
		rng:      rng,
		position: sampling.Position,
		velocity: sampling.Velocity,
	}
}

// Particle returns a particle with the given id, position drawn per axis from
// the position range and velocity per axis from the velocity range.
func (s *Sampler) Particle(id int) components.Particle {
	return components.Particle{
		ID:       id,
		Position: s.vec(s.position),
		Velocity: s.vec(s.velocity),
	}
}

func (s *Sampler) vec(r config.Range) components.Vec3 {
	var v components.Vec3
	for i := range v {
		v[i] = r.Min + s.rng.Float64()*(r.Max-r.Min)
	}
	return v
}
