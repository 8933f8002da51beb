package tessera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a decomposed local transform: translation, rotation and
// scale, composed as T * R * S.
//
// A zero Rotation is read as identity. A zero Scale is read as (1, 1, 1)
// only while Rotation is zero as well, so a literal such as
// Transform{Translation: v} is a plain translation, while a scale set or
// animated to zero still collapses the node.
type Transform struct {
	Translation mgl64.Vec3
	Rotation    mgl64.Quat
	Scale       mgl64.Vec3
}

// IdentityTransform returns the transform that leaves points unchanged.
func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

// Translate returns an identity transform moved by (x, y, z).
func Translate(x, y, z float64) Transform {
	t := IdentityTransform()
	t.Translation = mgl64.Vec3{x, y, z}
	return t
}

// rotation returns the rotation, treating the zero quaternion as identity.
func (t Transform) rotation() mgl64.Quat {
	if t.Rotation.W == 0 && t.Rotation.V == (mgl64.Vec3{}) {
		return mgl64.QuatIdent()
	}
	return t.Rotation
}

// resolved replaces unset rotation and scale with identity.
func (t Transform) resolved() Transform {
	if t.Rotation.W == 0 && t.Rotation.V == (mgl64.Vec3{}) {
		if t.Scale == (mgl64.Vec3{}) {
			t.Scale = mgl64.Vec3{1, 1, 1}
		}
		t.Rotation = mgl64.QuatIdent()
	}
	return t
}

// Matrix composes the transform into a 4x4 matrix (T * R * S).
func (t Transform) Matrix() mgl64.Mat4 {
	t = t.resolved()
	s := t.Scale
	m := t.Rotation.Normalize().Mat4()
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			m[col*4+row] *= s[col]
		}
	}
	m[12], m[13], m[14] = t.Translation[0], t.Translation[1], t.Translation[2]
	return m
}

// DecomposeMatrix splits an affine matrix into translation, rotation and
// scale. Shear is discarded. A negative determinant flips the X scale.
func DecomposeMatrix(m mgl64.Mat4) Transform {
	tr := mgl64.Vec3{m[12], m[13], m[14]}
	cols := [3]mgl64.Vec3{
		{m[0], m[1], m[2]},
		{m[4], m[5], m[6]},
		{m[8], m[9], m[10]},
	}
	scale := mgl64.Vec3{cols[0].Len(), cols[1].Len(), cols[2].Len()}
	if cols[0].Dot(cols[1].Cross(cols[2])) < 0 {
		scale[0] = -scale[0]
	}

	rot := mgl64.Ident4()
	for c := 0; c < 3; c++ {
		if scale[c] == 0 {
			return Transform{Translation: tr, Rotation: mgl64.QuatIdent(), Scale: scale}
		}
		axis := cols[c].Mul(1 / scale[c])
		rot[c*4], rot[c*4+1], rot[c*4+2] = axis[0], axis[1], axis[2]
	}
	return Transform{
		Translation: tr,
		Rotation:    mgl64.Mat4ToQuat(rot).Normalize(),
		Scale:       scale,
	}
}

// Lerp interpolates the decomposed components: translation and scale
// linearly, rotation along the shortest arc. Interpolating raw matrix
// entries would produce non-rigid intermediates.
func (t Transform) Lerp(to Transform, f float64) Transform {
	t, to = t.resolved(), to.resolved()
	return Transform{
		Translation: lerpVec3(t.Translation, to.Translation, f),
		Rotation:    slerp(t.rotation(), to.rotation(), f),
		Scale:       lerpVec3(t.Scale, to.Scale, f),
	}
}

// ApproxEqual compares two transforms with an absolute tolerance.
func (t Transform) ApproxEqual(o Transform, eps float64) bool {
	return t.Matrix().ApproxEqualThreshold(o.Matrix(), eps)
}

func lerpFloat(a, b, f float64) float64 {
	return a + (b-a)*f
}

func lerpVec3(a, b mgl64.Vec3, f float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(f))
}

// slerp is mgl64.QuatSlerp taking the shortest path.
func slerp(a, b mgl64.Quat, f float64) mgl64.Quat {
	a, b = a.Normalize(), b.Normalize()
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, f).Normalize()
}

// transformPoint applies m to the point (x, y, z).
func transformPoint(m mgl64.Mat4, p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.TransformCoordinate(p, m)
}

// nearlyEqual compares floats with an absolute tolerance.
func nearlyEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}
