package graph

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/kestrelgfx/kestrel-go/engine/asset"
)

func TestSpawnKeepsParentBeforeChild(t *testing.T) {
	g := NewGraph()
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 200; i++ {
		parent := Entity(rng.Intn(g.Len()))
		g.Spawn(parent)
	}

	for e := Entity(1); int(e) < g.Len(); e++ {
		parent, ok := g.Parent(e)
		if !ok {
			t.Fatalf("Parent(%d) not found", e)
		}
		if parent >= e {
			t.Fatalf("node %d has parent %d, want parent < child", e, parent)
		}
	}
	if _, ok := g.Parent(Root); ok {
		t.Error("Parent(root) = ok, want none")
	}
}

func TestSpawnInvalidParentPanics(t *testing.T) {
	g := NewGraph()

	defer func() {
		if recover() == nil {
			t.Fatal("Spawn with out-of-range parent did not panic")
		}
	}()
	g.Spawn(Entity(5))
}

func TestTranslateCommandMovesChild(t *testing.T) {
	g := NewGraph()
	a := g.Spawn(Root)

	g.Enqueue(Translate{Entity: a, Delta: mgl32.Vec3{1, 0, 0}, Mode: Post})
	if n := g.ProcessCommands(); n != 1 {
		t.Fatalf("ProcessCommands() = %d, want 1", n)
	}
	g.UpdateWorld()

	w, ok := g.WorldTransform(a)
	if !ok {
		t.Fatal("WorldTransform(a) not found")
	}
	if !approxVec3(w.Translation, mgl32.Vec3{1, 0, 0}) {
		t.Errorf("world translation = %v, want (1,0,0)", w.Translation)
	}
}

func TestCommandsApplyInOrder(t *testing.T) {
	g := NewGraph()
	a := g.Spawn(Root)

	// The replace must win over the earlier translate, and the later
	// translate must build on the replace.
	g.Enqueue(
		Translate{Entity: a, Delta: mgl32.Vec3{9, 9, 9}, Mode: Post},
		SetTransform{Entity: a, Transform: FromTranslation(mgl32.Vec3{1, 0, 0})},
		Translate{Entity: a, Delta: mgl32.Vec3{0, 1, 0}, Mode: Post},
	)
	g.ProcessCommands()

	local, _ := g.LocalTransform(a)
	if !approxVec3(local.Translation, mgl32.Vec3{1, 1, 0}) {
		t.Errorf("local translation = %v, want (1,1,0)", local.Translation)
	}
}

func TestWorldTransformComposesDownTree(t *testing.T) {
	g := NewGraph()
	a := g.Spawn(Root, WithTransform(Transform{
		Translation: mgl32.Vec3{1, 0, 0},
		Rotation:    mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1}),
		Scale:       mgl32.Vec3{1, 1, 1},
	}))
	b := g.Spawn(a, WithTransform(FromTranslation(mgl32.Vec3{1, 0, 0})))
	g.UpdateWorld()

	// A rotates 90 degrees about Z, so B's local +X offset points along
	// world +Y from A's position.
	w, _ := g.WorldTransform(b)
	if !approxVec3(w.Translation, mgl32.Vec3{1, 1, 0}) {
		t.Errorf("world translation of b = %v, want (1,1,0)", w.Translation)
	}

	inv, ok := g.InverseWorldTransform(b)
	if !ok {
		t.Fatal("InverseWorldTransform(b) not found")
	}
	// Inverse world maps B's world position back to the local origin.
	p := mgl32.TransformCoordinate(w.Translation, inv)
	if !approxVec3(p, mgl32.Vec3{0, 0, 0}) {
		t.Errorf("inverse world applied to own position = %v, want origin", p)
	}
}

func TestWorldTransformWithoutUpdateWalksParents(t *testing.T) {
	g := NewGraph()
	a := g.Spawn(Root)
	b := g.Spawn(a)

	// No UpdateWorld between the mutation and the read; the stale cache
	// must not leak through.
	g.Enqueue(Translate{Entity: a, Delta: mgl32.Vec3{0, 3, 0}, Mode: Post})
	g.ProcessCommands()

	w, _ := g.WorldTransform(b)
	if !approxVec3(w.Translation, mgl32.Vec3{0, 3, 0}) {
		t.Errorf("world translation of b = %v, want (0,3,0)", w.Translation)
	}
}

func TestCameraOrbitUsesCurrentLocalAxes(t *testing.T) {
	g := NewGraph()
	// Yawed 90 degrees, so the node's local X axis points along world -Z.
	cam := g.Spawn(Root, WithTransform(Transform{
		Translation: mgl32.Vec3{5, 0, 0},
		Rotation:    mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 1, 0}),
		Scale:       mgl32.Vec3{1, 1, 1},
	}))

	g.Enqueue(CameraOrbit{Entity: cam, RotationX: math.Pi / 2})
	g.ProcessCommands()

	// Pitching about the node's own X axis (world -Z) swings the offset
	// from +X down to -Y. Pitching about the global X axis would leave the
	// offset unchanged.
	local, _ := g.LocalTransform(cam)
	if !approxVec3(local.Translation, mgl32.Vec3{0, -5, 0}) {
		t.Errorf("orbited translation = %v, want (0,-5,0)", local.Translation)
	}
}

func TestCommandsForUnknownEntitySkipped(t *testing.T) {
	g := NewGraph()
	a := g.Spawn(Root)

	g.Enqueue(
		Translate{Entity: Entity(99), Delta: mgl32.Vec3{1, 0, 0}, Mode: Post},
		Translate{Entity: a, Delta: mgl32.Vec3{0, 2, 0}, Mode: Post},
	)
	if n := g.ProcessCommands(); n != 2 {
		t.Fatalf("ProcessCommands() = %d, want 2", n)
	}

	local, _ := g.LocalTransform(a)
	if !approxVec3(local.Translation, mgl32.Vec3{0, 2, 0}) {
		t.Errorf("valid command after skipped one not applied, translation = %v", local.Translation)
	}
}

func TestRootIsImmutable(t *testing.T) {
	g := NewGraph()
	g.Enqueue(Translate{Entity: Root, Delta: mgl32.Vec3{1, 1, 1}, Mode: Post})
	g.ProcessCommands()

	w, _ := g.WorldTransform(Root)
	if !approxVec3(w.Translation, mgl32.Vec3{0, 0, 0}) {
		t.Errorf("root translation = %v, want unchanged origin", w.Translation)
	}
}

func TestRenderablesFiltersAtCollection(t *testing.T) {
	g := NewGraph()
	mesh := asset.MeshHandle{}

	drawn := g.Spawn(Root, WithMesh(mesh))
	inactive := g.Spawn(Root, WithMesh(mesh))
	hidden := g.Spawn(Root, WithMesh(mesh))
	g.Spawn(Root) // no mesh
	noShadow := g.Spawn(Root, WithMesh(mesh), WithShadowCasting(false))

	g.Enqueue(
		SetActive{Entity: inactive, Active: false},
		SetVisible{Entity: hidden, Visible: false},
	)
	g.ProcessCommands()
	g.UpdateWorld()

	list := g.Renderables(nil)
	if len(list) != 2 {
		t.Fatalf("Renderables() returned %d entries, want 2", len(list))
	}
	if list[0].Entity != drawn || !list[0].CastsShadow {
		t.Errorf("first renderable = %+v, want shadow-casting entity %d", list[0], drawn)
	}
	if list[1].Entity != noShadow || list[1].CastsShadow {
		t.Errorf("second renderable = %+v, want non-casting entity %d", list[1], noShadow)
	}
}

func TestRenderablesCarriesMaterialOverride(t *testing.T) {
	g := NewGraph()
	e := g.Spawn(Root, WithMesh(asset.MeshHandle{}))

	g.Enqueue(SetMaterial{Entity: e, Material: asset.MaterialHandle{}})
	g.ProcessCommands()
	list := g.Renderables(nil)
	if len(list) != 1 || !list[0].HasOverride {
		t.Fatalf("renderable missing material override: %+v", list)
	}

	g.Enqueue(ClearMaterialOverride{Entity: e})
	g.ProcessCommands()
	list = g.Renderables(list[:0])
	if len(list) != 1 || list[0].HasOverride {
		t.Fatalf("material override not cleared: %+v", list)
	}
}

func TestConcurrentEnqueue(t *testing.T) {
	g := NewGraph()
	a := g.Spawn(Root)

	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				g.Enqueue(Translate{Entity: a, Delta: mgl32.Vec3{1, 0, 0}, Mode: Post})
			}
		}()
	}
	wg.Wait()

	if n := g.ProcessCommands(); n != producers*perProducer {
		t.Fatalf("ProcessCommands() = %d, want %d", n, producers*perProducer)
	}
	local, _ := g.LocalTransform(a)
	if !approxVec3(local.Translation, mgl32.Vec3{producers * perProducer, 0, 0}) {
		t.Errorf("translation = %v, want (%d,0,0)", local.Translation, producers*perProducer)
	}
}
