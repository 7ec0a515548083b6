package stagehand

// GeometryKind names a built-in primitive.
type GeometryKind string

const (
	GeometryPlane GeometryKind = "plane"
	GeometryBox   GeometryKind = "box"
)

// Geometry describes a primitive mesh shape. Renderers derive vertices from
// it; the core only keeps the parameters.
type Geometry struct {
	Kind           GeometryKind
	Width          float64
	Height         float64
	Depth          float64
	WidthSegments  int
	HeightSegments int
	DepthSegments  int

	disposed bool
}

// NewGeometry builds a plane or box from spec. Missing sizes default to 1.
func NewGeometry(spec *NodeSpec) (*Geometry, error) {
	g := &Geometry{
		Kind:           GeometryKind(spec.Geometry),
		Width:          orDefault(spec.Width, 1),
		Height:         orDefault(spec.Height, 1),
		WidthSegments:  orDefault(spec.WidthSegments, 1),
		HeightSegments: orDefault(spec.HeightSegments, 1),
	}
	switch g.Kind {
	case GeometryPlane:
	case GeometryBox:
		g.Depth = orDefault(spec.Depth, 1)
		g.DepthSegments = orDefault(spec.DepthSegments, 1)
	default:
		return nil, configErrorf("unknown geometry type %q", spec.Geometry)
	}
	return g, nil
}

// Vertices returns the corner positions of the primitive in local space,
// ignoring segments.
func (g *Geometry) Vertices() [][3]float64 {
	w, h, d := g.Width/2, g.Height/2, g.Depth/2
	if g.Kind == GeometryPlane {
		return [][3]float64{{-w, h, 0}, {w, h, 0}, {w, -h, 0}, {-w, -h, 0}}
	}
	return [][3]float64{
		{-w, -h, -d}, {w, -h, -d}, {w, h, -d}, {-w, h, -d},
		{-w, -h, d}, {w, -h, d}, {w, h, d}, {-w, h, d},
	}
}

// Edges returns index pairs into Vertices describing the wireframe.
func (g *Geometry) Edges() [][2]int {
	if g.Kind == GeometryPlane {
		return [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}}
	}
	return [][2]int{
		{0, 1}, {1, 2}, {2, 3}, {3, 0},
		{4, 5}, {5, 6}, {6, 7}, {7, 4},
		{0, 4}, {1, 5}, {2, 6}, {3, 7},
	}
}

// Dispose releases the geometry. Safe to call more than once.
func (g *Geometry) Dispose() {
	g.disposed = true
}

// IsDisposed reports whether Dispose has been called.
func (g *Geometry) IsDisposed() bool {
	return g.disposed
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
