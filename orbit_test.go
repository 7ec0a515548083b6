package stagehand

import (
	"errors"
	"math"
	"testing"

	"cogentcore.org/core/math32"
)

func attachOrbit(t *testing.T, w *World, n *Node, cfg ControllerConfig) *OrbitController {
	t.Helper()
	c, err := w.Registry().Attach(n, "orbit", "orbit", cfg, nil, nil)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return c.(*OrbitController)
}

func orbitEye(pos math32.Vector3) *Node {
	n := NewObject3D("eye")
	n.Position = pos
	return n
}

func post(t *testing.T, o *OrbitController, msg string, data map[string]any) {
	t.Helper()
	if err := o.PostMessage(Message{Message: msg, Data: data}, nil); err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

func TestOrbitConfigureLooksAtTarget(t *testing.T) {
	w := newTestWorld(t)
	eye := orbitEye(Vec3(0, 0, 10))
	o := attachOrbit(t, w, eye, ControllerConfig{"target": []any{0, 0, 0}})

	assertVec(t, "position", eye.Position, Vec3(0, 0, 10))
	forward := eye.LocalToWorld(Vec3(0, 0, -1)).Sub(eye.WorldPosition())
	assertVec(t, "forward", forward, Vec3(0, 0, -1))
	if o.DampingFactor != 0.05 || !o.EnableRotate || o.EnableDamping {
		t.Errorf("defaults = damping %v rotate %v enableDamping %v", o.DampingFactor, o.EnableRotate, o.EnableDamping)
	}
}

func TestOrbitConfigureRejectsInvertedLimits(t *testing.T) {
	w := newTestWorld(t)
	for _, cfg := range []ControllerConfig{
		{"minDistance": 10, "maxDistance": 5},
		{"minPolarAngle": 2, "maxPolarAngle": 1},
	} {
		_, err := w.Registry().Attach(orbitEye(Vec3(0, 0, 10)), "orbit", "o", cfg, nil, nil)
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("Attach(%v) err = %v, want ErrConfiguration", cfg, err)
		}
	}
}

func TestOrbitRotate(t *testing.T) {
	w := newTestWorld(t)
	eye := orbitEye(Vec3(0, 0, 10))
	o := attachOrbit(t, w, eye, nil)

	post(t, o, MessageRotate, map[string]any{"dx": math.Pi / 2})
	o.Update(1.0 / 60)

	assertVec(t, "position", eye.Position, Vec3(-10, 0, 0))
	o.Update(1.0 / 60)
	assertVec(t, "position after input consumed", eye.Position, Vec3(-10, 0, 0))
}

func TestOrbitRotateDamped(t *testing.T) {
	w := newTestWorld(t)
	eye := orbitEye(Vec3(0, 0, 10))
	o := attachOrbit(t, w, eye, ControllerConfig{"enableDamping": true, "dampingFactor": 0.5})

	post(t, o, MessageRotate, map[string]any{"dx": -1.0})
	o.Update(1.0 / 60)
	first := math32.Atan2(eye.Position.X, eye.Position.Z)
	assertNear(t, "first step", first, 0.5)

	o.Update(1.0 / 60)
	second := math32.Atan2(eye.Position.X, eye.Position.Z)
	assertNear(t, "second step", second, 0.75)
}

func TestOrbitPolarClamp(t *testing.T) {
	w := newTestWorld(t)
	eye := orbitEye(Vec3(0, 0, 10))
	attachOrbit(t, w, eye, ControllerConfig{"maxPolarAngle": math.Pi / 4})

	want := float32(10 * math.Cos(math.Pi/4))
	assertNear(t, "y", eye.Position.Y, want)
	assertNear(t, "radius", eye.Position.Length(), 10)
}

func TestOrbitDolly(t *testing.T) {
	w := newTestWorld(t)
	eye := orbitEye(Vec3(0, 0, 10))
	o := attachOrbit(t, w, eye, ControllerConfig{"maxDistance": 15})

	post(t, o, MessageDolly, map[string]any{"scale": 0.5})
	o.Update(0)
	assertVec(t, "dolly in", eye.Position, Vec3(0, 0, 5))

	post(t, o, MessageDolly, map[string]any{"scale": 4})
	o.Update(0)
	assertVec(t, "clamped", eye.Position, Vec3(0, 0, 15))

	if err := o.PostMessage(Message{Message: MessageDolly, Data: map[string]any{"scale": 0}}, nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestOrbitDollyOrthographicZooms(t *testing.T) {
	w := newTestWorld(t)
	cam, err := newCamera(&CameraSpec{Type: "orthographic", Left: -1, Right: 1, Top: 1, Bottom: -1, Position: ptr(Vec3(0, 0, 10))}, 1)
	if err != nil {
		t.Fatalf("newCamera: %v", err)
	}
	o := attachOrbit(t, w, cam, nil)

	post(t, o, MessageDolly, map[string]any{"scale": 2})
	o.Update(0)
	if cam.Camera.Zoom != 0.5 {
		t.Errorf("Zoom = %v, want 0.5", cam.Camera.Zoom)
	}
	assertVec(t, "position", cam.Position, Vec3(0, 0, 10))
}

func TestOrbitPan(t *testing.T) {
	w := newTestWorld(t)
	eye := orbitEye(Vec3(0, 0, 10))
	o := attachOrbit(t, w, eye, nil)

	post(t, o, MessagePan, map[string]any{"dx": 0.1})
	o.Update(0)
	assertVec(t, "target", o.Target, Vec3(-1, 0, 0))
	assertVec(t, "position", eye.Position, Vec3(-1, 0, 10))
}

func TestOrbitPanTargetRadius(t *testing.T) {
	w := newTestWorld(t)
	eye := orbitEye(Vec3(0, 0, 10))
	o := attachOrbit(t, w, eye, ControllerConfig{"maxTargetRadius": 0.5})

	post(t, o, MessagePan, map[string]any{"dx": 0.1})
	o.Update(0)
	assertVec(t, "target", o.Target, Vec3(-0.5, 0, 0))
}

func TestOrbitFocus(t *testing.T) {
	w := newTestWorld(t)
	eye := orbitEye(Vec3(0, 0, 10))
	o := attachOrbit(t, w, eye, nil)

	post(t, o, MessageFocus, map[string]any{"target": []any{4, 0, 0}, "duration": 1})
	o.Update(0.5)
	if o.Target.X <= 0 || o.Target.X >= 4 {
		t.Errorf("mid-glide target = %v", o.Target)
	}
	o.Update(0.6)
	assertVec(t, "target", o.Target, Vec3(4, 0, 0))

	post(t, o, MessageFocus, map[string]any{"target": 1})
	assertVec(t, "instant target", o.Target, Vec3(1, 1, 1))

	if err := o.PostMessage(Message{Message: MessageFocus}, nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestOrbitDisabledInput(t *testing.T) {
	w := newTestWorld(t)
	eye := orbitEye(Vec3(0, 0, 10))
	o := attachOrbit(t, w, eye, ControllerConfig{"enableRotate": false, "enableZoom": false, "enablePan": false})

	post(t, o, MessageRotate, map[string]any{"dx": 1})
	post(t, o, MessageDolly, map[string]any{"scale": 3})
	post(t, o, MessagePan, map[string]any{"dx": 1})
	o.Update(0)
	assertVec(t, "position", eye.Position, Vec3(0, 0, 10))
}

func TestOrbitAutoRotate(t *testing.T) {
	w := newTestWorld(t)
	eye := orbitEye(Vec3(0, 0, 10))
	o := attachOrbit(t, w, eye, ControllerConfig{"autoRotate": true, "autoRotateSpeed": 1})

	o.Update(1)
	got := math32.Atan2(eye.Position.X, eye.Position.Z)
	assertNear(t, "theta", got, -2*math32.Pi/60)
}

func TestOrbitMessages(t *testing.T) {
	w := newTestWorld(t)
	o := attachOrbit(t, w, orbitEye(Vec3(0, 0, 10)), nil)
	acted := 0
	cb := &Callbacks{OnActed: func(MessageEvent) { acted++ }}

	if err := o.PostMessage(Message{Message: MessageRotate}, cb); err != nil {
		t.Fatalf("ROTATE: %v", err)
	}
	if acted != 1 {
		t.Errorf("acted = %d, want 1", acted)
	}
	if err := o.PostMessage(Message{Message: "SPIN"}, cb); !errors.Is(err, ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
	if err := o.PostMessage(Message{Message: MessageRotate, Data: map[string]any{"dx": "left"}}, cb); !errors.Is(err, ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func ptr[T any](v T) *T { return &v }
