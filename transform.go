package stagehand

import "cogentcore.org/core/math32"

// affine is a row-major 3x4 matrix: three rows of [m0 m1 m2 t].
type affine [12]float32

// identityTransform is the identity affine matrix.
var identityTransform = affine{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
}

// computeLocalTransform builds T * R * S from the node's transform fields.
// R applies the Euler angles in XYZ order.
func computeLocalTransform(n *Node) affine {
	sx, cx := math32.Sincos(n.Rotation.X)
	sy, cy := math32.Sincos(n.Rotation.Y)
	sz, cz := math32.Sincos(n.Rotation.Z)

	ae, af := cx*cz, cx*sz
	be, bf := sx*cz, sx*sz

	r := [9]float32{
		cy * cz, -cy * sz, sy,
		af + be*sy, ae - bf*sy, -sx * cy,
		bf - ae*sy, be + af*sy, cx * cy,
	}
	s := n.Scale
	return affine{
		r[0] * s.X, r[1] * s.Y, r[2] * s.Z, n.Position.X,
		r[3] * s.X, r[4] * s.Y, r[5] * s.Z, n.Position.Y,
		r[6] * s.X, r[7] * s.Y, r[8] * s.Z, n.Position.Z,
	}
}

// multiplyAffine returns p * c.
func multiplyAffine(p, c affine) affine {
	var out affine
	for row := 0; row < 3; row++ {
		o := row * 4
		for col := 0; col < 3; col++ {
			out[o+col] = p[o]*c[col] + p[o+1]*c[4+col] + p[o+2]*c[8+col]
		}
		out[o+3] = p[o]*c[3] + p[o+1]*c[7] + p[o+2]*c[11] + p[o+3]
	}
	return out
}

// transformPoint applies m to v.
func (m affine) transformPoint(v math32.Vector3) math32.Vector3 {
	return math32.Vec3(
		m[0]*v.X+m[1]*v.Y+m[2]*v.Z+m[3],
		m[4]*v.X+m[5]*v.Y+m[6]*v.Z+m[7],
		m[8]*v.X+m[9]*v.Y+m[10]*v.Z+m[11],
	)
}

// worldTransform composes the local transforms from the root down to n.
func worldTransform(n *Node) affine {
	if n == nil {
		return identityTransform
	}
	return multiplyAffine(worldTransform(n.Parent), computeLocalTransform(n))
}

// WorldPosition returns the node's origin in world space.
func (n *Node) WorldPosition() math32.Vector3 {
	return worldTransform(n).transformPoint(math32.Vector3{})
}

// LocalToWorld converts a point from the node's local space to world space.
func (n *Node) LocalToWorld(v math32.Vector3) math32.Vector3 {
	return worldTransform(n).transformPoint(v)
}

// SetTransform replaces position, scale and rotation in one call.
func (n *Node) SetTransform(t Transform) {
	n.Position = t.Position
	n.Scale = t.Scale
	n.Rotation = t.Rotation
}

// Transform bundles the three local transform vectors.
type Transform struct {
	Position math32.Vector3
	Scale    math32.Vector3
	Rotation math32.Vector3
}

// lookAtRotation returns XYZ Euler angles that turn the -Z axis of a node at
// from toward to.
func lookAtRotation(from, to math32.Vector3) math32.Vector3 {
	d := to.Sub(from)
	l := d.Length()
	if l == 0 {
		return math32.Vector3{}
	}
	d = d.MulScalar(1 / l)
	yaw := math32.Asin(math32.Clamp(-d.X, -1, 1))
	pitch := math32.Atan2(d.Y, -d.Z)
	return math32.Vec3(pitch, yaw, 0)
}
