package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/kestrelgfx/kestrel-go/engine/graph"
)

func absF32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func TestProjectionVariants(t *testing.T) {
	var persp, ortho [16]float32
	Perspective{FovY: 1.0}.matrix(persp[:], 1.0, 0.1, 100)
	Orthographic{Extent: 10}.matrix(ortho[:], 1.0, 0.1, 100)

	// Perspective matrices carry the -1 in the w row; orthographic ones are
	// affine.
	if persp[11] != -1 {
		t.Fatalf("perspective m[11]:\nhave %v\nwant %v", persp[11], -1.0)
	}
	if ortho[11] != 0 || ortho[15] != 1 {
		t.Fatalf("orthographic (m[11], m[15]):\nhave (%v, %v)\nwant (0, 1)", ortho[11], ortho[15])
	}
}

func TestCameraViewFromNode(t *testing.T) {
	g := graph.NewGraph()
	mount := g.Spawn(graph.Root, graph.WithTransform(
		graph.FromTranslation(mgl32.Vec3{0, 0, 5}),
	))
	g.UpdateWorld()

	c := NewCamera(g, mount)
	if have, want := c.Position(), ([3]float32{0, 0, 5}); have != want {
		t.Fatalf("Position:\nhave %v\nwant %v", have, want)
	}

	// The view matrix must map the camera's own position to the view-space
	// origin.
	v := c.ViewMatrix()
	x := v[0]*0 + v[4]*0 + v[8]*5 + v[12]
	y := v[1]*0 + v[5]*0 + v[9]*5 + v[13]
	z := v[2]*0 + v[6]*0 + v[10]*5 + v[14]
	if absF32(x) > 1e-5 || absF32(y) > 1e-5 || absF32(z) > 1e-5 {
		t.Fatalf("view(camera position):\nhave (%v, %v, %v)\nwant (0, 0, 0)", x, y, z)
	}
}

func TestCameraTracksNodeMovement(t *testing.T) {
	g := graph.NewGraph()
	mount := g.Spawn(graph.Root)
	g.UpdateWorld()

	c := NewCamera(g, mount)
	g.Enqueue(graph.Translate{Entity: mount, Delta: mgl32.Vec3{3, 0, 0}, Mode: graph.Post})
	g.ProcessCommands()
	g.UpdateWorld()
	c.Update()

	if have, want := c.Position(), ([3]float32{3, 0, 0}); have != want {
		t.Fatalf("Position after move:\nhave %v\nwant %v", have, want)
	}
}

func TestCameraSetAspectIgnoresDegenerateSizes(t *testing.T) {
	g := graph.NewGraph()
	c := NewCamera(g, graph.Root, WithAspect(2.0))

	c.SetAspect(0, 600)
	if have := c.Aspect(); have != 2.0 {
		t.Fatalf("Aspect after zero width:\nhave %v\nwant %v", have, 2.0)
	}
	c.SetAspect(800, 600)
	if have, want := c.Aspect(), float32(800)/float32(600); have != want {
		t.Fatalf("Aspect:\nhave %v\nwant %v", have, want)
	}
}

func TestRegistryMainFallback(t *testing.T) {
	g := graph.NewGraph()
	r := NewRegistry()

	if r.Main() != nil {
		t.Fatalf("Main on empty registry:\nhave %v\nwant nil", r.Main())
	}

	a := NewCamera(g, graph.Root)
	b := NewCamera(g, graph.Root)
	r.Add("a", a)
	r.Add("b", b)

	if r.Main() != a {
		t.Fatalf("Main:\nhave %p\nwant %p (first registered)", r.Main(), a)
	}

	r.SetMain("b")
	if r.Main() != b {
		t.Fatalf("Main after SetMain:\nhave %p\nwant %p", r.Main(), b)
	}

	// Removing the main camera falls back to the first registered one.
	r.Remove("b")
	if r.Main() != a {
		t.Fatalf("Main after removing main:\nhave %p\nwant %p", r.Main(), a)
	}

	r.SetMain("missing")
	if r.Main() != a {
		t.Fatalf("Main after SetMain(missing):\nhave %p\nwant %p", r.Main(), a)
	}
}

func TestUniformSnapshot(t *testing.T) {
	g := graph.NewGraph()
	mount := g.Spawn(graph.Root, graph.WithTransform(
		graph.FromTranslation(mgl32.Vec3{1, 2, 3}),
	))
	g.UpdateWorld()

	c := NewCamera(g, mount)
	u := Uniform(c)
	if u.Size() != 80 {
		t.Fatalf("uniform size:\nhave %d\nwant %d", u.Size(), 80)
	}
	if len(u.Marshal()) != 80 {
		t.Fatalf("marshaled size:\nhave %d\nwant %d", len(u.Marshal()), 80)
	}
	if have, want := u.CameraPosition, ([3]float32{1, 2, 3}); have != want {
		t.Fatalf("CameraPosition:\nhave %v\nwant %v", have, want)
	}
}
