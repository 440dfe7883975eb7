package core

import "math"

// Quaternion is a rotation stored as a vector part and a scalar part.
type Quaternion struct {
	Vec Vector3
	W   float64
}

// IdentityQuaternion is the rotation that leaves vectors unchanged.
var IdentityQuaternion = Quaternion{W: 1}

// QuaternionFromAxisAngle returns the unit quaternion rotating by angle
// radians about axis. The axis does not need to be normalized.
func QuaternionFromAxisAngle(axis Vector3, angle float64) Quaternion {
	var q Quaternion
	q.SetAxisAngle(axis, angle)
	return q
}

// SetAxisAngle sets q to a rotation of angle radians about axis.
func (q *Quaternion) SetAxisAngle(axis Vector3, angle float64) {
	half := angle / 2
	q.Vec = axis.Normalize().Scale(math.Sin(half))
	q.W = math.Cos(half)
}

// Length returns the quaternion norm. Unit quaternions have length 1.
func (q Quaternion) Length() float64 {
	return math.Sqrt(q.Vec.LengthSq() + q.W*q.W)
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}
