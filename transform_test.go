package stagehand

import (
	"testing"

	"cogentcore.org/core/math32"
)

const epsilon = 1e-4

func assertNear(t *testing.T, name string, got, want float32) {
	t.Helper()
	if math32.Abs(got-want) > epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func assertVec(t *testing.T, name string, got, want math32.Vector3) {
	t.Helper()
	if got.DistanceTo(want) > epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

// --- computeLocalTransform ---

func TestLocalTransformIdentity(t *testing.T) {
	n := NewObject3D("test")
	got := computeLocalTransform(n)
	for i := range got {
		if math32.Abs(got[i]-identityTransform[i]) > epsilon {
			t.Fatalf("local = %v, want identity", got)
		}
	}
}

func TestLocalTransformTranslationScale(t *testing.T) {
	n := NewObject3D("test")
	n.Position = Vec3(10, 20, 30)
	n.Scale = Vec3(2, 3, 4)
	got := computeLocalTransform(n).transformPoint(Vec3(1, 1, 1))
	assertVec(t, "point", got, Vec3(12, 23, 34))
}

func TestLocalTransformRotationY(t *testing.T) {
	n := NewObject3D("test")
	n.Rotation = Vec3(0, math32.Pi/2, 0)
	got := computeLocalTransform(n).transformPoint(Vec3(1, 0, 0))
	assertVec(t, "rotated", got, Vec3(0, 0, -1))
}

// --- world transforms ---

func TestWorldPositionComposes(t *testing.T) {
	root := NewObject3D("root")
	root.Position = Vec3(5, 0, 0)
	root.Scale = Vec3(2, 2, 2)
	child := NewObject3D("child")
	child.Position = Vec3(1, 1, 0)
	root.AddChild(child)

	assertVec(t, "world", child.WorldPosition(), Vec3(7, 2, 0))
	assertVec(t, "local→world", child.LocalToWorld(Vec3(0, 0, 1)), Vec3(7, 2, 2))
}

func TestSetTransform(t *testing.T) {
	n := NewObject3D("n")
	n.SetTransform(Transform{Position: Vec3(1, 2, 3), Scale: Vec3(1, 1, 1), Rotation: Vec3(0, 1, 0)})
	if n.Position != Vec3(1, 2, 3) || n.Rotation != Vec3(0, 1, 0) {
		t.Errorf("transform = %v %v", n.Position, n.Rotation)
	}
}

// --- LookAt ---

func TestLookAtFacesTarget(t *testing.T) {
	tests := []struct {
		name     string
		from, to math32.Vector3
	}{
		{"forward", Vec3(0, 0, 5), Vec3(0, 0, 0)},
		{"right", Vec3(0, 0, 0), Vec3(3, 0, 0)},
		{"above", Vec3(0, 4, 4), Vec3(0, 0, 0)},
		{"diagonal", Vec3(1, 2, 3), Vec3(-2, 0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewObject3D("eye")
			n.Position = tt.from
			n.LookAt(tt.to)
			forward := n.LocalToWorld(Vec3(0, 0, -1)).Sub(n.WorldPosition())
			want := tt.to.Sub(tt.from).Normal()
			assertVec(t, "forward", forward, want)
		})
	}
}

func TestLookAtSamePointIsIdentity(t *testing.T) {
	n := NewObject3D("eye")
	n.Rotation = Vec3(1, 1, 1)
	n.LookAt(n.Position)
	if n.Rotation != (math32.Vector3{}) {
		t.Errorf("Rotation = %v, want zero", n.Rotation)
	}
}
