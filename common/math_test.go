package common

import (
	"math"
	"testing"
)

func TestMul4Identity(t *testing.T) {
	var id, m, out [16]float32
	Identity(id[:])
	for i := range m {
		m[i] = float32(i) * 0.5
	}

	Mul4(out[:], id[:], m[:])
	if out != m {
		t.Fatalf("Mul4(I, m):\nhave %v\nwant %v", out, m)
	}

	Mul4(out[:], m[:], id[:])
	if out != m {
		t.Fatalf("Mul4(m, I):\nhave %v\nwant %v", out, m)
	}
}

func TestMul4Aliasing(t *testing.T) {
	var a, b, want [16]float32
	Identity(a[:])
	a[12] = 3 // translation x
	Identity(b[:])
	b[13] = -2 // translation y
	Mul4(want[:], a[:], b[:])

	// Output aliasing the left operand must still be correct.
	got := a
	Mul4(got[:], got[:], b[:])
	if got != want {
		t.Fatalf("aliased Mul4:\nhave %v\nwant %v", got, want)
	}
}

func TestTranspose4(t *testing.T) {
	var m, out [16]float32
	for i := range m {
		m[i] = float32(i)
	}
	Transpose4(out[:], m[:])
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			if out[c*4+r] != m[r*4+c] {
				t.Fatalf("Transpose4 element (%d,%d): have %v want %v", r, c, out[c*4+r], m[r*4+c])
			}
		}
	}
	// Transposing twice restores the original.
	Transpose4(out[:], out[:])
	if out != m {
		t.Fatalf("double transpose:\nhave %v\nwant %v", out, m)
	}
}

func TestInvert4(t *testing.T) {
	// Translation + non-uniform scale is invertible.
	var m [16]float32
	Identity(m[:])
	m[0] = 2
	m[5] = 4
	m[10] = 0.5
	m[12] = 1
	m[13] = -3
	m[14] = 7

	var inv, prod [16]float32
	if !Invert4(inv[:], m[:]) {
		t.Fatal("Invert4 reported singular for an invertible matrix")
	}
	Mul4(prod[:], m[:], inv[:])

	var id [16]float32
	Identity(id[:])
	for i := range prod {
		if diff := math.Abs(float64(prod[i] - id[i])); diff > 1e-5 {
			t.Fatalf("m * inv(m) element %d: have %v want %v", i, prod[i], id[i])
		}
	}
}

func TestInvert4Singular(t *testing.T) {
	var m, out [16]float32 // all zeros, det == 0
	out[3] = 42
	if Invert4(out[:], m[:]) {
		t.Fatal("Invert4 inverted a singular matrix")
	}
	if out[3] != 42 {
		t.Fatalf("Invert4 modified output on singular input: have %v want 42", out[3])
	}
}

func TestNextPow2(t *testing.T) {
	cases := []struct {
		in, want uint64
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{31, 32},
		{32, 32},
		{33, 64},
		{32 << 20, 32 << 20},
		{32<<20 + 1, 64 << 20},
	}
	for _, c := range cases {
		if got := NextPow2(c.in); got != c.want {
			t.Fatalf("NextPow2(%d): have %d want %d", c.in, got, c.want)
		}
	}
}

func TestAlignUp(t *testing.T) {
	cases := []struct {
		v, align, want uint64
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{255, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
	}
	for _, c := range cases {
		if got := AlignUp(c.v, c.align); got != c.want {
			t.Fatalf("AlignUp(%d, %d): have %d want %d", c.v, c.align, got, c.want)
		}
	}
}

func TestFrustumContainsSphere(t *testing.T) {
	// Symmetric ortho volume [-10, 10]^3 looking down -Z from the origin.
	var proj [16]float32
	Ortho(proj[:], -10, 10, -10, 10, -10, 10)
	var view [16]float32
	Identity(view[:])
	var vp [16]float32
	Mul4(vp[:], proj[:], view[:])

	f := ExtractFrustumFromMatrix(vp[:])

	if !f.ContainsSphere([3]float32{0, 0, -5}, 1) {
		t.Fatal("sphere at the volume center rejected")
	}
	if f.ContainsSphere([3]float32{50, 0, -5}, 1) {
		t.Fatal("sphere far outside the right plane accepted")
	}
	// Straddling the left plane: center outside, radius reaches in.
	if !f.ContainsSphere([3]float32{-11, 0, -5}, 2) {
		t.Fatal("sphere straddling the left plane rejected")
	}
}

func TestSliceToBytesRoundTrip(t *testing.T) {
	vals := []float32{1.5, -2.25, 3.75}
	b := SliceToBytes(vals)
	if len(b) != 12 {
		t.Fatalf("SliceToBytes length: have %d want 12", len(b))
	}
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	if math.Float32frombits(bits) != 1.5 {
		t.Fatalf("first element bytes: have %v want 1.5", math.Float32frombits(bits))
	}
	if SliceToBytes([]float32(nil)) != nil {
		t.Fatal("SliceToBytes(nil) should return nil")
	}
}
