// Package graph holds the scene: a flat, append-only arena of transform
// nodes mutated through a deferred command queue. Producers on any goroutine
// enqueue Commands; once per frame the owning thread drains the queue,
// applies the mutations and recomputes world transforms in a single forward
// pass.
package graph

import "github.com/go-gl/mathgl/mgl32"

// Transform is a decomposed translation/rotation/scale triple. The matrix
// form applies scale first, then rotation, then translation. Use the
// constructors below; the zero value has zero scale and is not a usable
// transform.
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// FromTranslation returns a transform that only translates by v.
func FromTranslation(v mgl32.Vec3) Transform {
	t := Identity()
	t.Translation = v
	return t
}

// FromRotation returns a transform that only rotates by q.
func FromRotation(q mgl32.Quat) Transform {
	t := Identity()
	t.Rotation = q
	return t
}

// FromScale returns a transform that only scales by s.
func FromScale(s mgl32.Vec3) Transform {
	t := Identity()
	t.Scale = s
	return t
}

// compose combines two transforms with outer acting on inner's result:
// outer's rotation and scale act on inner's translation, then outer's
// translation is added; outer's rotation precedes inner's in the composed
// rotation; scales multiply component-wise. This is the standard decomposed
// composition and matches the matrix product outer * inner for transforms
// without shear.
func compose(outer, inner Transform) Transform {
	scaled := mgl32.Vec3{
		outer.Scale[0] * inner.Translation[0],
		outer.Scale[1] * inner.Translation[1],
		outer.Scale[2] * inner.Translation[2],
	}
	return Transform{
		Translation: outer.Translation.Add(outer.Rotation.Rotate(scaled)),
		Rotation:    outer.Rotation.Mul(inner.Rotation).Normalize(),
		Scale: mgl32.Vec3{
			outer.Scale[0] * inner.Scale[0],
			outer.Scale[1] * inner.Scale[1],
			outer.Scale[2] * inner.Scale[2],
		},
	}
}

// PreConcat returns m concatenated in front of t: m's rotation and scale act
// on t's translation, then m's translation is added, and m's rotation
// precedes t's in the composed rotation. Equivalent to the matrix product
// m * t.
func (t Transform) PreConcat(m Transform) Transform {
	return compose(m, t)
}

// PostConcat returns m concatenated after t, the mirror of PreConcat with
// the roles swapped: t's frame comes first, then m. Equivalent to the matrix
// product t * m, and to m.PreConcat(t).
func (t Transform) PostConcat(m Transform) Transform {
	return compose(t, m)
}

// Mat4 returns the transform as a column-major matrix, scale applied first,
// then rotation, then translation.
func (t Transform) Mat4() mgl32.Mat4 {
	m := t.Rotation.Mat4()
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			m[col*4+row] *= t.Scale[col]
		}
	}
	m[12] = t.Translation[0]
	m[13] = t.Translation[1]
	m[14] = t.Translation[2]
	return m
}
