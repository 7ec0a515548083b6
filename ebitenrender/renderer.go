// Package ebitenrender draws a stagehand scene as a wireframe with ebiten.
//
// The Renderer is registered with a World under the "ebiten" type and
// reports support only while a Game is driving the ebiten loop, so a setup
// command listing [ebiten, headless] falls back cleanly when no window can
// be opened.
package ebitenrender

import (
	"errors"
	"image/color"
	"math"

	"cogentcore.org/core/math32"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/phanxgames/stagehand"
)

// Type is the renderer type name used in setup commands.
const Type = "ebiten"

// DefaultBackground is the clear color when the setup payload names none.
var DefaultBackground = color.RGBA{0x20, 0x22, 0x28, 0xff}

var errDisposed = errors.New("ebitenrender: render on disposed renderer")

// Segment is one projected wireframe edge in screen pixels.
type Segment struct {
	X0, Y0, X1, Y1 float32
	Color          color.RGBA
}

// Renderer implements stagehand.Renderer on top of ebiten. Render projects
// every visible mesh into Segments and strokes them into an offscreen frame
// that the Game copies to the screen.
type Renderer struct {
	Width, Height int
	PixelRatio    float64
	EnableShadow  bool
	Antialias     bool
	Background    color.RGBA
	StrokeWidth   float32

	running  bool
	frame    *ebiten.Image
	segments []Segment
	stats    stagehand.FrameStats
	frames   int
	disposed bool
}

// New returns an unconfigured 800×600 renderer.
func New() *Renderer {
	return &Renderer{
		Width:       800,
		Height:      600,
		PixelRatio:  1,
		Background:  DefaultBackground,
		StrokeWidth: 1,
	}
}

// IsSupported reports whether a Game is running the ebiten loop.
func (r *Renderer) IsSupported() bool { return r.running }

// Configure applies the size, shadow and the "antialias", "background" and
// "strokeWidth" options.
func (r *Renderer) Configure(spec stagehand.RendererSpec) error {
	if spec.Width > 0 {
		r.Width = spec.Width
	}
	if spec.Height > 0 {
		r.Height = spec.Height
	}
	if spec.PixelRatio > 0 {
		r.PixelRatio = spec.PixelRatio
	}
	r.EnableShadow = spec.EnableShadow
	if v, ok := spec.Options["antialias"].(bool); ok {
		r.Antialias = v
	}
	if v, ok := spec.Options["strokeWidth"].(float64); ok && v > 0 {
		r.StrokeWidth = float32(v)
	}
	if v, ok := spec.Options["background"].(string); ok {
		c, err := stagehand.ParseColor(v)
		if err != nil {
			return err
		}
		r.Background = c.RGBA()
	}
	return nil
}

// Render projects the scene from camera and draws it into the offscreen
// frame.
func (r *Renderer) Render(scene, camera *stagehand.Node) error {
	if r.disposed {
		return errDisposed
	}
	r.frames++
	r.segments, r.stats = Project(scene, camera, r.Width, r.Height, r.segments[:0])
	r.stats.Frame = r.frames
	if !r.EnableShadow {
		r.stats.Shadowed = 0
	}
	if !r.running {
		return nil
	}
	r.ensureFrame()
	r.frame.Fill(r.Background)
	for _, s := range r.segments {
		vector.StrokeLine(r.frame, s.X0, s.Y0, s.X1, s.Y1, r.StrokeWidth, s.Color, r.Antialias)
	}
	return nil
}

func (r *Renderer) ensureFrame() {
	if r.frame != nil {
		b := r.frame.Bounds()
		if b.Dx() == r.Width && b.Dy() == r.Height {
			return
		}
		r.frame.Deallocate()
	}
	r.frame = ebiten.NewImage(max(r.Width, 1), max(r.Height, 1))
}

// Resize records the new size; the frame is reallocated on the next Render.
func (r *Renderer) Resize(w, h int) {
	r.Width, r.Height = w, h
}

// Size returns the current size.
func (r *Renderer) Size() (int, int) { return r.Width, r.Height }

// Segments returns the edges projected by the last Render.
func (r *Renderer) Segments() []Segment { return r.segments }

// Stats returns the counts of the last frame.
func (r *Renderer) Stats() stagehand.FrameStats { return r.stats }

// Dispose releases the offscreen frame.
func (r *Renderer) Dispose() {
	if r.frame != nil {
		r.frame.Deallocate()
		r.frame = nil
	}
	r.disposed = true
}

// present copies the last frame onto screen.
func (r *Renderer) present(screen *ebiten.Image) {
	if r.frame == nil {
		screen.Fill(r.Background)
		return
	}
	screen.DrawImage(r.frame, nil)
}

// view maps world points to screen pixels for one camera.
type view struct {
	eye, right, up, forward math32.Vector3

	cam    *stagehand.Camera
	width  float32
	height float32
	focal  float32
}

func newView(camera *stagehand.Node, width, height int) view {
	eye := camera.WorldPosition()
	v := view{
		eye:     eye,
		right:   camera.LocalToWorld(math32.Vec3(1, 0, 0)).Sub(eye).Normal(),
		up:      camera.LocalToWorld(math32.Vec3(0, 1, 0)).Sub(eye).Normal(),
		forward: camera.LocalToWorld(math32.Vec3(0, 0, -1)).Sub(eye).Normal(),
		cam:     camera.Camera,
		width:   float32(width),
		height:  float32(height),
	}
	if v.cam != nil && v.cam.Projection == stagehand.ProjectionPerspective {
		v.focal = float32(1 / math.Tan(v.cam.Fov*math.Pi/360))
	}
	return v
}

// project returns the screen position of p and whether it lies in front of
// the near plane.
func (v view) project(p math32.Vector3) (x, y float32, ok bool) {
	d := p.Sub(v.eye)
	cx, cy, depth := d.Dot(v.right), d.Dot(v.up), d.Dot(v.forward)
	cam := v.cam
	if cam == nil {
		return 0, 0, false
	}
	if depth < float32(cam.Near) || (cam.Far > 0 && depth > float32(cam.Far)) {
		return 0, 0, false
	}

	var nx, ny float32
	if cam.Projection == stagehand.ProjectionOrthographic {
		zoom := float32(cam.Zoom)
		if zoom <= 0 {
			zoom = 1
		}
		l, r := float32(cam.Left)/zoom, float32(cam.Right)/zoom
		t, b := float32(cam.Top)/zoom, float32(cam.Bottom)/zoom
		if r == l || t == b {
			return 0, 0, false
		}
		nx = 2*(cx-l)/(r-l) - 1
		ny = 2*(cy-b)/(t-b) - 1
	} else {
		aspect := float32(1)
		if v.height > 0 {
			aspect = v.width / v.height
		}
		nx = cx * v.focal / (aspect * depth)
		ny = cy * v.focal / depth
	}
	return (nx + 1) / 2 * v.width, (1 - ny) / 2 * v.height, true
}

// Project walks the visible tree under scene and returns the wireframe
// edges of every mesh seen from camera, appended to dst. Edges with an end
// behind the near plane are dropped. Invisible subtrees are skipped.
func Project(scene, camera *stagehand.Node, width, height int, dst []Segment) ([]Segment, stagehand.FrameStats) {
	var st stagehand.FrameStats
	if scene == nil || camera == nil || camera.Camera == nil {
		return dst, st
	}
	v := newView(camera, width, height)
	scene.Walk(func(n *stagehand.Node) bool {
		if !n.Visible {
			return false
		}
		st.Nodes++
		switch {
		case n.Type.IsLight():
			st.Lights++
		case n.Type.IsMesh() && n.Geometry != nil:
			st.Meshes++
			if n.CastShadow {
				st.Shadowed++
			}
			dst = appendEdges(dst, v, n)
		}
		return true
	})
	return dst, st
}

func appendEdges(dst []Segment, v view, n *stagehand.Node) []Segment {
	clr := color.RGBA{0xff, 0xff, 0xff, 0xff}
	if n.Material != nil {
		clr = n.Material.Color().RGBA()
	}
	verts := n.Geometry.Vertices()
	world := make([]math32.Vector3, len(verts))
	for i, p := range verts {
		world[i] = n.LocalToWorld(math32.Vec3(float32(p[0]), float32(p[1]), float32(p[2])))
	}
	for _, e := range n.Geometry.Edges() {
		x0, y0, ok0 := v.project(world[e[0]])
		x1, y1, ok1 := v.project(world[e[1]])
		if !ok0 || !ok1 {
			continue
		}
		dst = append(dst, Segment{X0: x0, Y0: y0, X1: x1, Y1: y1, Color: clr})
	}
	return dst
}
