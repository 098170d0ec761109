package simulation

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/nanosim/components"
	"github.com/pthm-cable/nanosim/systems"
)

// Population is the registry of particles for one run, stored in an ECS world.
// Tasks never touch the world: Detach hands out value copies and Apply writes
// the final state back after every task has been joined.
type Population struct {
	world *ecs.World

	mapper *ecs.Map3[components.Identity, components.Position, components.Velocity]
	idMap  *ecs.Map1[components.Identity]
	posMap *ecs.Map1[components.Position]
	velMap *ecs.Map1[components.Velocity]

	// Slot order; slot i is the i-th spawned particle.
	entities []ecs.Entity
	ids      map[int]struct{}
}

// NewPopulation creates an empty population.
func NewPopulation() *Population {
	world := ecs.NewWorld()
	return &Population{
		world:  world,
		mapper: ecs.NewMap3[components.Identity, components.Position, components.Velocity](world),
		idMap:  ecs.NewMap1[components.Identity](world),
		posMap: ecs.NewMap1[components.Position](world),
		velMap: ecs.NewMap1[components.Velocity](world),
		ids:    make(map[int]struct{}),
	}
}

// Spawn creates n particles with sequential ids continuing from Len().
func (p *Population) Spawn(n int, sampler *systems.Sampler) error {
	base := len(p.entities)
	for i := 0; i < n; i++ {
		if err := p.Add(sampler.Particle(base + i)); err != nil {
			return err
		}
	}
	return nil
}

// Add inserts a particle with an explicit id.
func (p *Population) Add(particle components.Particle) error {
	if _, dup := p.ids[particle.ID]; dup {
		return fmt.Errorf("particle id %d already in population", particle.ID)
	}
	id, pos, vel := particle.Components()
	entity := p.mapper.NewEntity(&id, &pos, &vel)
	p.entities = append(p.entities, entity)
	p.ids[particle.ID] = struct{}{}
	return nil
}

// Len returns the number of particles.
func (p *Population) Len() int {
	return len(p.entities)
}

// World exposes the underlying ECS world for systems.
func (p *Population) World() *ecs.World {
	return p.world
}

// Detach returns a copy of every particle in slot order. The copies are
// independent of the world and of each other.
func (p *Population) Detach() []components.Particle {
	out := make([]components.Particle, len(p.entities))
	for i, e := range p.entities {
		out[i] = components.FromComponents(p.idMap.Get(e), p.posMap.Get(e), p.velMap.Get(e))
	}
	return out
}

// Apply writes the final position of every completed result back to its slot
// after checking that each result belongs to that slot. Failed slots keep
// their last known state. Detach afterwards returns the applied finals.
func (p *Population) Apply(results []Result) error {
	if len(results) != len(p.entities) {
		return fmt.Errorf("apply: %d results for %d particles", len(results), len(p.entities))
	}
	for i, r := range results {
		if r.Err != nil {
			continue
		}
		e := p.entities[i]
		if got := p.idMap.Get(e).ID; got != r.Final.ID {
			return fmt.Errorf("apply: slot %d holds particle %d, result is for %d", i, got, r.Final.ID)
		}
		p.posMap.Get(e).Vec3 = r.Final.Position
	}
	return nil
}

// Release removes every particle from the world.
func (p *Population) Release() {
	for _, e := range p.entities {
		if p.world.Alive(e) {
			p.world.RemoveEntity(e)
		}
	}
	p.entities = p.entities[:0]
	clear(p.ids)
}
