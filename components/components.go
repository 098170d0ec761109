// Package components defines the particle data model and its ECS components.
package components

// Identity holds a particle's run-unique id. Immutable after spawn.
type Identity struct {
	ID int
}

// Particle is the value a task owns for its whole lifetime.
// Position is the only field that changes after spawn.
type Particle struct {
	ID       int
	Position Vec3
	Velocity Vec3
}

// Components splits p into its ECS components.
func (p Particle) Components() (Identity, Position, Velocity) {
	return Identity{ID: p.ID}, Position{p.Position}, Velocity{p.Velocity}
}

// FromComponents assembles a Particle from its ECS components.
func FromComponents(id *Identity, pos *Position, vel *Velocity) Particle {
	return Particle{ID: id.ID, Position: pos.Vec3, Velocity: vel.Vec3}
}
