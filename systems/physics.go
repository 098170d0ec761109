// Package systems contains the motion rules for particles.
package systems

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/nanosim/components"
)

// Advance moves p by its velocity, exactly once. It never fails: non-finite
// inputs propagate as IEEE-754 values.
func Advance(p *components.Particle) {
	floats.Add(p.Position[:], p.Velocity[:])
}

// AdvanceN calls Advance n times.
func AdvanceN(p *components.Particle, n int) {
	for i := 0; i < n; i++ {
		Advance(p)
	}
}

// PhysicsSystem advances every particle stored in an ECS world, single-threaded.
// Task runners own detached copies instead; this is the in-place reference path.
type PhysicsSystem struct {
	filter ecs.Filter2[components.Position, components.Velocity]
}

// NewPhysicsSystem creates a new physics system.
func NewPhysicsSystem(w *ecs.World) *PhysicsSystem {
	return &PhysicsSystem{
		filter: *ecs.NewFilter2[components.Position, components.Velocity](w),
	}
}

// Update advances all particles by one step.
func (s *PhysicsSystem) Update() {
	query := s.filter.Query()
	for query.Next() {
		pos, vel := query.Get()
		floats.Add(pos.Vec3[:], vel.Vec3[:])
	}
}
