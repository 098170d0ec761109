package components

import "fmt"

// Vec3 is a 3-D coordinate or displacement.
type Vec3 [3]float64

// Add returns v + o component-wise.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Sub returns v - o component-wise.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// String formats v as "[x, y, z]".
func (v Vec3) String() string {
	return fmt.Sprintf("[%.4f, %.4f, %.4f]", v[0], v[1], v[2])
}

// Position represents an entity's world position.
type Position struct {
	Vec3
}

// Velocity represents an entity's per-step displacement. Never reassigned after spawn.
type Velocity struct {
	Vec3
}
