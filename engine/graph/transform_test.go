package graph

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

const eps = 1e-4

func approxVec3(a, b mgl32.Vec3) bool {
	return a.Sub(b).Len() < eps
}

func approxQuat(a, b mgl32.Quat) bool {
	// q and -q encode the same rotation; compare their action instead.
	for _, v := range []mgl32.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}} {
		if !approxVec3(a.Rotate(v), b.Rotate(v)) {
			return false
		}
	}
	return true
}

func approxTransform(a, b Transform) bool {
	return approxVec3(a.Translation, b.Translation) &&
		approxQuat(a.Rotation, b.Rotation) &&
		approxVec3(a.Scale, b.Scale)
}

func approxMat4(a, b mgl32.Mat4) bool {
	for i := range a {
		if float32(math.Abs(float64(a[i]-b[i]))) > eps {
			return false
		}
	}
	return true
}

func randomTransform(rng *rand.Rand) Transform {
	axis := mgl32.Vec3{
		rng.Float32()*2 - 1,
		rng.Float32()*2 - 1,
		rng.Float32()*2 - 1,
	}
	if axis.Len() < 0.1 {
		axis = mgl32.Vec3{0, 1, 0}
	}
	return Transform{
		Translation: mgl32.Vec3{
			rng.Float32()*20 - 10,
			rng.Float32()*20 - 10,
			rng.Float32()*20 - 10,
		},
		Rotation: mgl32.QuatRotate(rng.Float32()*2*math.Pi, axis.Normalize()),
		Scale: mgl32.Vec3{
			rng.Float32()*2 + 0.1,
			rng.Float32()*2 + 0.1,
			rng.Float32()*2 + 0.1,
		},
	}
}

func TestConcatMirrorLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		a := randomTransform(rng)
		b := randomTransform(rng)
		post := a.PostConcat(b)
		pre := b.PreConcat(a)
		if !approxTransform(post, pre) {
			t.Fatalf("iteration %d:\nPostConcat(a, b) = %+v\nPreConcat(b, a)  = %+v", i, post, pre)
		}
	}
}

func TestPreAndPostConcatDiffer(t *testing.T) {
	// A node yawed 90 degrees, then translated 5 along Z. Pre acts in the
	// parent frame and moves it along the world Z axis; Post acts in the
	// node's own frame, which the yaw has turned to point along world X.
	yawed := FromRotation(mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 1, 0}))
	delta := FromTranslation(mgl32.Vec3{0, 0, 5})

	pre := yawed.PreConcat(delta)
	if !approxVec3(pre.Translation, mgl32.Vec3{0, 0, 5}) {
		t.Errorf("PreConcat translation = %v, want (0,0,5)", pre.Translation)
	}

	post := yawed.PostConcat(delta)
	if !approxVec3(post.Translation, mgl32.Vec3{5, 0, 0}) {
		t.Errorf("PostConcat translation = %v, want (5,0,0)", post.Translation)
	}
}

func TestPreConcatRotationOrbitsTranslation(t *testing.T) {
	// Pre-concatenating a rotation swings the node's offset around the
	// parent origin, the motion an orbiting camera is built from.
	node := FromTranslation(mgl32.Vec3{0, 0, 5})
	swung := node.PreConcat(FromRotation(mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 1, 0})))

	if !approxVec3(swung.Translation, mgl32.Vec3{5, 0, 0}) {
		t.Errorf("orbited translation = %v, want (5,0,0)", swung.Translation)
	}
}

func TestComposeMatchesMatrixProduct(t *testing.T) {
	// With uniform scales the decomposed composition is exact, so it must
	// agree with the matrix product.
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		a := randomTransform(rng)
		b := randomTransform(rng)
		s := rng.Float32()*2 + 0.1
		a.Scale = mgl32.Vec3{s, s, s}
		s = rng.Float32()*2 + 0.1
		b.Scale = mgl32.Vec3{s, s, s}

		got := a.PostConcat(b).Mat4()
		want := a.Mat4().Mul4(b.Mat4())
		if !approxMat4(got, want) {
			t.Fatalf("iteration %d:\ncomposed = %v\nproduct  = %v", i, got, want)
		}
	}
}

func TestMat4Layout(t *testing.T) {
	tr := Transform{
		Translation: mgl32.Vec3{1, 2, 3},
		Rotation:    mgl32.QuatIdent(),
		Scale:       mgl32.Vec3{2, 4, 8},
	}
	m := tr.Mat4()

	want := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(2, 4, 8))
	if !approxMat4(m, want) {
		t.Errorf("Mat4():\nhave %v\nwant %v", m, want)
	}
}

func TestIdentityTransform(t *testing.T) {
	if !approxMat4(Identity().Mat4(), mgl32.Ident4()) {
		t.Error("Identity().Mat4() is not the identity matrix")
	}
	if got := Identity().PostConcat(Identity()); !approxTransform(got, Identity()) {
		t.Errorf("Identity composed with itself = %+v, want identity", got)
	}
}
