package stagehand

// Renderer draws the scene from the camera. Implementations live outside
// the core; HeadlessRenderer is the built-in one.
type Renderer interface {
	// IsSupported reports whether the backend can run here. setup tries
	// candidates in order and keeps the first supported one.
	IsSupported() bool
	// Configure is called once after selection with the setup payload.
	Configure(spec RendererSpec) error
	Render(scene, camera *Node) error
	Resize(width, height int)
	Size() (width, height int)
	Dispose()
}

// RendererFactory creates an unconfigured renderer.
type RendererFactory func() Renderer

// FrameStats summarizes one rendered frame.
type FrameStats struct {
	Frame    int
	Nodes    int
	Meshes   int
	Lights   int
	Shadowed int
}

// HeadlessRenderer walks the visible tree and counts what it would draw.
// It is the default renderer for the CLI and for tests.
type HeadlessRenderer struct {
	Width, Height int
	PixelRatio    float64
	EnableShadow  bool
	Options       map[string]any

	last     FrameStats
	frames   int
	disposed bool
}

// NewHeadlessRenderer returns a 640×480 headless renderer.
func NewHeadlessRenderer() *HeadlessRenderer {
	return &HeadlessRenderer{Width: 640, Height: 480, PixelRatio: 1}
}

// IsSupported always reports true.
func (r *HeadlessRenderer) IsSupported() bool { return true }

// Configure applies the size and shadow settings present in spec.
func (r *HeadlessRenderer) Configure(spec RendererSpec) error {
	setIf(&r.Width, spec.Width)
	setIf(&r.Height, spec.Height)
	setIf(&r.PixelRatio, spec.PixelRatio)
	r.EnableShadow = spec.EnableShadow
	r.Options = spec.Options
	if r.Width < 0 || r.Height < 0 {
		return configErrorf("renderer size %dx%d", r.Width, r.Height)
	}
	return nil
}

// Render counts the visible nodes under scene. Invisible subtrees are
// skipped entirely.
func (r *HeadlessRenderer) Render(scene, camera *Node) error {
	if r.disposed {
		return configErrorf("render on disposed renderer")
	}
	r.frames++
	st := FrameStats{Frame: r.frames}
	if scene != nil {
		scene.Walk(func(n *Node) bool {
			if !n.Visible {
				return false
			}
			st.Nodes++
			switch {
			case n.Type.IsMesh():
				st.Meshes++
				if r.EnableShadow && n.CastShadow {
					st.Shadowed++
				}
			case n.Type.IsLight():
				st.Lights++
			}
			return true
		})
	}
	r.last = st
	return nil
}

// Resize records the new size.
func (r *HeadlessRenderer) Resize(w, h int) {
	r.Width, r.Height = w, h
}

// Size returns the current size.
func (r *HeadlessRenderer) Size() (int, int) {
	return r.Width, r.Height
}

// Stats returns the counts of the last frame.
func (r *HeadlessRenderer) Stats() FrameStats {
	return r.last
}

// Dispose marks the renderer unusable.
func (r *HeadlessRenderer) Dispose() {
	r.disposed = true
}
