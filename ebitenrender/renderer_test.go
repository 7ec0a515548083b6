package ebitenrender

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phanxgames/stagehand"
)

func perspectiveCamera(fov float64, pos stagehand.Node) *stagehand.Node {
	n := stagehand.NewNode("camera", stagehand.NodeTypePerspectiveCamera)
	n.Camera = &stagehand.Camera{Projection: stagehand.ProjectionPerspective, Fov: fov, Near: 0.1, Far: 100, Zoom: 1}
	n.Position = pos.Position
	n.LookAt(stagehand.Vec3(0, 0, 0))
	return n
}

func orthoCamera() *stagehand.Node {
	n := stagehand.NewNode("camera", stagehand.NodeTypeOrthographicCamera)
	n.Camera = &stagehand.Camera{
		Projection: stagehand.ProjectionOrthographic,
		Left:       -2, Right: 2, Top: 1, Bottom: -1,
		Near: 0.1, Far: 100, Zoom: 1,
	}
	n.Position = stagehand.Vec3(0, 0, 5)
	n.LookAt(stagehand.Vec3(0, 0, 0))
	return n
}

func mesh(t *testing.T, name, kind string, color uint32) *stagehand.Node {
	t.Helper()
	g, err := stagehand.NewGeometry(&stagehand.NodeSpec{Geometry: kind, Width: 2, Height: 2, Depth: 2})
	require.NoError(t, err)
	m := stagehand.NewMaterial(stagehand.MaterialBasic)
	m.Params["color"] = stagehand.ColorHex(color)
	return stagehand.NewMesh(name, g, m)
}

func at(x, y, z float32) stagehand.Node {
	return stagehand.Node{Position: stagehand.Vec3(x, y, z)}
}

func TestProjectBoxCentered(t *testing.T) {
	scene := stagehand.NewNode("scene", stagehand.NodeTypeScene)
	scene.AddChild(mesh(t, "Box", "box", 0xff0000))
	scene.AddChild(stagehand.NewNode("sun", stagehand.NodeTypeDirectionalLight))
	cam := perspectiveCamera(90, at(0, 0, 5))

	segs, st := Project(scene, cam, 800, 400, nil)
	require.Len(t, segs, 12)
	assert.Equal(t, 1, st.Meshes)
	assert.Equal(t, 1, st.Lights)
	assert.Equal(t, 3, st.Nodes)

	var cx, cy float32
	for _, s := range segs {
		cx += s.X0 + s.X1
		cy += s.Y0 + s.Y1
		assert.Equal(t, uint8(0xff), s.Color.R)
		assert.Zero(t, s.Color.G)
	}
	assert.InDelta(t, 400, cx/24, 0.01)
	assert.InDelta(t, 200, cy/24, 0.01)
}

func TestProjectPerspectiveScale(t *testing.T) {
	scene := stagehand.NewNode("scene", stagehand.NodeTypeScene)
	scene.AddChild(mesh(t, "Plane", "plane", 0xffffff))
	// fov 90 gives a focal length of 1; the plane sits 5 units away.
	cam := perspectiveCamera(90, at(0, 0, 5))

	segs, _ := Project(scene, cam, 400, 400, nil)
	require.Len(t, segs, 4)
	// (-1, 1, 0) lands at ndc (-0.2, 0.2).
	assert.InDelta(t, 160, segs[0].X0, 0.01)
	assert.InDelta(t, 160, segs[0].Y0, 0.01)
	assert.InDelta(t, 240, segs[0].X1, 0.01)
}

func TestProjectOrthographic(t *testing.T) {
	scene := stagehand.NewNode("scene", stagehand.NodeTypeScene)
	scene.AddChild(mesh(t, "Plane", "plane", 0xffffff))

	segs, _ := Project(scene, orthoCamera(), 800, 400, nil)
	require.Len(t, segs, 4)
	top := segs[0]
	assert.InDelta(t, 200, top.X0, 0.01)
	assert.InDelta(t, 0, top.Y0, 0.01)
	assert.InDelta(t, 600, top.X1, 0.01)
	assert.InDelta(t, 0, top.Y1, 0.01)

	cam := orthoCamera()
	cam.Camera.Zoom = 2
	segs, _ = Project(scene, cam, 800, 400, nil)
	assert.InDelta(t, 0, segs[0].X0, 0.01)
	assert.InDelta(t, 800, segs[0].X1, 0.01)
}

func TestProjectSkipsHiddenAndBehind(t *testing.T) {
	scene := stagehand.NewNode("scene", stagehand.NodeTypeScene)
	hidden := stagehand.NewGroup("Hidden")
	hidden.Visible = false
	hidden.AddChild(mesh(t, "Inner", "box", 0xffffff))
	scene.AddChild(hidden)

	behind := mesh(t, "Behind", "box", 0xffffff)
	behind.Position = stagehand.Vec3(0, 0, 20)
	scene.AddChild(behind)

	segs, st := Project(scene, perspectiveCamera(60, at(0, 0, 5)), 800, 600, nil)
	assert.Empty(t, segs)
	assert.Equal(t, 1, st.Meshes, "hidden subtree is not counted")
}

func TestProjectWithoutCamera(t *testing.T) {
	scene := stagehand.NewNode("scene", stagehand.NodeTypeScene)
	segs, st := Project(scene, stagehand.NewObject3D("notACamera"), 800, 600, nil)
	assert.Empty(t, segs)
	assert.Zero(t, st.Nodes)
}

func TestRendererConfigure(t *testing.T) {
	r := New()
	assert.False(t, r.IsSupported(), "unsupported until a Game runs")

	err := r.Configure(stagehand.RendererSpec{
		Width:        320,
		Height:       240,
		EnableShadow: true,
		Options: map[string]any{
			"antialias":   true,
			"strokeWidth": 2.5,
			"background":  "#ff8800",
		},
	})
	require.NoError(t, err)
	w, h := r.Size()
	assert.Equal(t, 320, w)
	assert.Equal(t, 240, h)
	assert.True(t, r.Antialias)
	assert.True(t, r.EnableShadow)
	assert.Equal(t, float32(2.5), r.StrokeWidth)
	assert.Equal(t, uint8(0xff), r.Background.R)
	assert.Equal(t, uint8(0x88), r.Background.G)

	err = r.Configure(stagehand.RendererSpec{Options: map[string]any{"background": "not a color"}})
	assert.Error(t, err)
}

func TestRendererRenderHeadless(t *testing.T) {
	r := New()
	scene := stagehand.NewNode("scene", stagehand.NodeTypeScene)
	box := mesh(t, "Box", "box", 0x00ff00)
	box.CastShadow = true
	scene.AddChild(box)
	cam := perspectiveCamera(50, at(0, 0, 8))

	require.NoError(t, r.Render(scene, cam))
	assert.Len(t, r.Segments(), 12)
	assert.Equal(t, 1, r.Stats().Frame)
	assert.Zero(t, r.Stats().Shadowed, "shadows disabled")

	r.EnableShadow = true
	require.NoError(t, r.Render(scene, cam))
	assert.Equal(t, 2, r.Stats().Frame)
	assert.Equal(t, 1, r.Stats().Shadowed)

	r.Dispose()
	assert.ErrorIs(t, r.Render(scene, cam), errDisposed)

	// The factory hands the same renderer back, ready for a new setup.
	assert.Same(t, stagehand.Renderer(r), r.Factory()())
	assert.NoError(t, r.Render(scene, cam))
}

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "unlabeled"},
		{"   ", "unlabeled"},
		{"f12", "f12"},
		{"walk cycle/02", "walk_cycle_02"},
		{"v1.2-final", "v1.2-final"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeLabel(tt.in), "input %q", tt.in)
	}
}

func TestFPSText(t *testing.T) {
	assert.Equal(t, "FPS: 60.0\nTPS: 59.5\nMeshes: 3\nEdges: 36", fpsText(60, 59.5, 3, 36))
}

func TestToNRGBA(t *testing.T) {
	img := toNRGBA([]byte{64, 32, 0, 128, 10, 20, 30, 255}, 2, 1)
	assert.Equal(t, []uint8{127, 63, 0, 128, 10, 20, 30, 255}, img.Pix)
}

func TestDragTracker(t *testing.T) {
	d := dragTracker{deadZone: 4}

	_, _, active := d.step(10, 10, buttonRotate)
	assert.Equal(t, buttonNone, active, "press does not move")

	_, _, active = d.step(12, 11, buttonRotate)
	assert.Equal(t, buttonNone, active, "inside the dead zone")

	dx, dy, active := d.step(20, 10, buttonPan)
	assert.Equal(t, buttonRotate, active, "button is kept from the press")
	assert.Equal(t, 8.0, dx)
	assert.Equal(t, -1.0, dy)

	dx, _, active = d.step(25, 10, buttonRotate)
	assert.Equal(t, buttonRotate, active)
	assert.Equal(t, 5.0, dx)

	_, _, active = d.step(25, 10, buttonNone)
	assert.Equal(t, buttonNone, active, "release ends the drag")
	assert.False(t, d.down)
}

func TestOrbitInputMessages(t *testing.T) {
	in := newOrbitInput()
	assert.Empty(t, in.messages(0, 0, buttonNone, 0, 400))

	in.messages(100, 100, buttonRotate, 0, 400)
	msgs := in.messages(200, 100, buttonRotate, 0, 400)
	require.Len(t, msgs, 1)
	assert.Equal(t, stagehand.MessageRotate, msgs[0].Message)
	assert.InDelta(t, math.Pi/2, msgs[0].Data["dx"], 1e-9)

	msgs = in.messages(200, 100, buttonNone, 2, 400)
	require.Len(t, msgs, 1)
	assert.Equal(t, stagehand.MessageDolly, msgs[0].Message)
	assert.InDelta(t, 0.9025, msgs[0].Data["scale"], 1e-9)

	in.messages(0, 0, buttonPan, 0, 400)
	msgs = in.messages(0, 40, buttonPan, 0, 400)
	require.Len(t, msgs, 1)
	assert.Equal(t, stagehand.MessagePan, msgs[0].Message)
	assert.InDelta(t, 0.1, msgs[0].Data["dy"], 1e-9)
}

func TestOrbitInputDrivesController(t *testing.T) {
	w, err := stagehand.NewWorld()
	require.NoError(t, err)
	defer w.Dispose()
	pos := stagehand.Vec3(0, 0, 10)
	require.NoError(t, w.Setup(nil, &stagehand.CameraSpec{Type: "perspective", Position: &pos}, nil))

	in := newOrbitInput()
	scroll := in.messages(0, 0, buttonNone, -3, 400)
	require.Len(t, scroll, 1)
	assert.ErrorIs(t, w.PostMessage(in.where, scroll[0], nil), stagehand.ErrConfiguration,
		"no orbit controller yet")

	require.NoError(t, w.Control([]stagehand.ControllerSpec{
		{Where: stagehand.Path("#camera"), Name: "orbit", Type: "orbit"},
	}, nil))
	require.NoError(t, w.PostMessage(in.where, scroll[0], nil))
	require.NoError(t, w.Update(0))
	assert.Greater(t, w.Camera().Position.Length(), float32(10), "scrolling down dollies out")
}
