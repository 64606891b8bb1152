// Package geom holds the vector and rotation helpers shared by the pose
// layers. Vectors are gonum r3.Vec and rotations are unit quat.Number values
// composed with the Hamilton product, so quat.Mul(a, b) applies b first.
package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Epsilon is the squared length below which a vector is treated as zero.
const Epsilon = 1e-12

var (
	// Identity is the rotation that leaves every vector unchanged.
	Identity = quat.Number{Real: 1}

	// Up is the world up axis used when a look rotation has no better reference.
	Up = r3.Vec{Y: 1}

	// Forward is the axis a look rotation maps onto the look direction.
	Forward = r3.Vec{Z: 1}
)

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b r3.Vec) r3.Vec {
	return r3.Scale(0.5, r3.Add(a, b))
}

// IsFinite reports whether every component of v is a finite number.
func IsFinite(v r3.Vec) bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Normalize returns the unit vector along v. ok is false when v has no
// usable direction (zero length or non-finite components).
func Normalize(v r3.Vec) (unit r3.Vec, ok bool) {
	n2 := r3.Norm2(v)
	if !(n2 > Epsilon) || math.IsInf(n2, 0) {
		return r3.Vec{}, false
	}
	return r3.Scale(1/math.Sqrt(n2), v), true
}

// TriangleNormal returns the unit normal of triangle (a, b, c) using the
// right-hand rule on the edges (a-b) x (a-c). ok is false for collinear or
// non-finite input; swapping b and c negates the result.
func TriangleNormal(a, b, c r3.Vec) (normal r3.Vec, ok bool) {
	return Normalize(r3.Cross(r3.Sub(a, b), r3.Sub(a, c)))
}

// Parallel reports whether a and b point along the same line, in either
// direction. A zero vector is parallel to nothing.
func Parallel(a, b r3.Vec) bool {
	ua, ok := Normalize(a)
	if !ok {
		return false
	}
	ub, ok := Normalize(b)
	if !ok {
		return false
	}
	return r3.Norm2(r3.Cross(ua, ub)) <= Epsilon
}

// LookRotation returns the rotation that maps +Z onto forward and keeps +Y
// as close to up as possible. A zero forward yields Identity. When up is
// parallel to forward a world axis is used as the reference instead.
func LookRotation(forward, up r3.Vec) quat.Number {
	z, ok := Normalize(forward)
	if !ok {
		return Identity
	}
	x, ok := Normalize(r3.Cross(up, z))
	if !ok {
		ref := Up
		if math.Abs(r3.Dot(z, Up)) > 0.9 {
			ref = Forward
		}
		x, _ = Normalize(r3.Cross(ref, z))
	}
	y := r3.Cross(z, x)
	return fromBasis(x, y, z)
}

// fromBasis converts the orthonormal basis (columns x, y, z) into a
// quaternion.
func fromBasis(x, y, z r3.Vec) quat.Number {
	m00, m01, m02 := x.X, y.X, z.X
	m10, m11, m12 := x.Y, y.Y, z.Y
	m20, m21, m22 := x.Z, y.Z, z.Z

	var q quat.Number
	switch trace := m00 + m11 + m22; {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		q = quat.Number{
			Real: 0.25 / s,
			Imag: (m21 - m12) * s,
			Jmag: (m02 - m20) * s,
			Kmag: (m10 - m01) * s,
		}
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		q = quat.Number{
			Real: (m21 - m12) / s,
			Imag: 0.25 * s,
			Jmag: (m01 + m10) / s,
			Kmag: (m02 + m20) / s,
		}
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		q = quat.Number{
			Real: (m02 - m20) / s,
			Imag: (m01 + m10) / s,
			Jmag: 0.25 * s,
			Kmag: (m12 + m21) / s,
		}
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		q = quat.Number{
			Real: (m10 - m01) / s,
			Imag: (m02 + m20) / s,
			Jmag: (m12 + m21) / s,
			Kmag: 0.25 * s,
		}
	}
	return Unit(q)
}

// Unit rescales q to unit length. The zero quaternion maps to Identity.
func Unit(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// Inverse returns the inverse of rotation q.
func Inverse(q quat.Number) quat.Number {
	return quat.Inv(q)
}

// Compose returns the product of the rotations in order, so
// Compose(a, b, c) = a*b*c and c is applied first.
func Compose(qs ...quat.Number) quat.Number {
	out := Identity
	for _, q := range qs {
		out = quat.Mul(out, q)
	}
	return out
}

// Rotate applies the unit rotation q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(q).Rotate(v)
}

// AxisAngle returns the rotation of angle radians about axis.
func AxisAngle(axis r3.Vec, angle float64) quat.Number {
	u, ok := Normalize(axis)
	if !ok {
		return Identity
	}
	return quat.Number(r3.NewRotation(angle, u))
}

// Angle returns the angle in radians of the rotation taking a to b. q and -q
// describe the same rotation and compare as equal.
func Angle(a, b quat.Number) float64 {
	d := quat.Mul(quat.Conj(a), b)
	v := math.Sqrt(d.Imag*d.Imag + d.Jmag*d.Jmag + d.Kmag*d.Kmag)
	return 2 * math.Atan2(v, math.Abs(d.Real))
}
