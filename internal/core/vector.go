// Package core provides the vector and quaternion math the simulation is
// built on. It has no external dependencies so game logic stays pure and
// testable.
package core

import "math"

// Vector3 is a value-type 3D vector. Operations return new vectors and never
// mutate the receiver, so passing a Vector3 around always copies it.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec3 creates a new vector.
func Vec3(x, y, z float64) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// Up is the vertical axis of the play field.
var Up = Vector3{Y: 1}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v multiplied by s.
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

// Dot returns the dot product of v and o.
func (v Vector3) Dot(o Vector3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns v × o using the right-hand rule.
func (v Vector3) Cross(o Vector3) Vector3 {
	return Vector3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// LengthSq returns the squared magnitude.
func (v Vector3) LengthSq() float64 {
	return v.Dot(v)
}

// Length returns the magnitude.
func (v Vector3) Length() float64 {
	return math.Sqrt(v.LengthSq())
}

// Normalize returns v scaled to unit length.
// A zero vector is divided by 1 instead of 0 and comes back as zero.
func (v Vector3) Normalize() Vector3 {
	l := v.Length()
	if l == 0 {
		l = 1
	}
	return v.Scale(1 / l)
}

// ApplyQuaternion rotates v by q without building a rotation matrix:
// v' = v + 2*q.Vec × (q.Vec × v + q.W*v).
func (v Vector3) ApplyQuaternion(q Quaternion) Vector3 {
	t := q.Vec.Cross(v).Add(v.Scale(q.W))
	return v.Add(q.Vec.Cross(t).Scale(2))
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vector3) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

// ApproxEqual reports whether every component of v and o differs by less than eps.
func (v Vector3) ApproxEqual(o Vector3, eps float64) bool {
	return math.Abs(v.X-o.X) < eps && math.Abs(v.Y-o.Y) < eps && math.Abs(v.Z-o.Z) < eps
}
