package stagehand

import (
	"fmt"
	"image/color"

	"cogentcore.org/core/math32"
	"github.com/lucasb-eyer/go-colorful"
)

// Color represents an RGB color with components in [0, 1].
type Color struct {
	R, G, B float64
}

// ColorWhite is the default light and material color.
var ColorWhite = Color{1, 1, 1}

// ColorHex builds a Color from a packed 0xRRGGBB value.
func ColorHex(v uint32) Color {
	return Color{
		R: float64((v>>16)&0xff) / 255,
		G: float64((v>>8)&0xff) / 255,
		B: float64(v&0xff) / 255,
	}
}

// ParseColor parses "#rgb", "#rrggbb", and "0xrrggbb" strings.
func ParseColor(s string) (Color, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = "#" + s[2:]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("%w: color %q: %v", ErrConfiguration, s, err)
	}
	return Color{R: c.R, G: c.G, B: c.B}, nil
}

// Hex returns the packed 0xRRGGBB form of c.
func (c Color) Hex() uint32 {
	r, g, b := colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped().RGB255()
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// RGBA converts c to an opaque color.RGBA for renderers.
func (c Color) RGBA() color.RGBA {
	r, g, b := colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// String formats c as "#rrggbb".
func (c Color) String() string {
	return colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped().Hex()
}

// Vec3 is a shorthand for math32.Vec3.
func Vec3(x, y, z float32) math32.Vector3 {
	return math32.Vec3(x, y, z)
}

// NodeType distinguishes the payload a Node carries.
type NodeType uint8

const (
	NodeTypeObject3D         NodeType = iota // plain transform group
	NodeTypeScene                            // the world root
	NodeTypeGroup                            // root of a loaded asset
	NodeTypeMesh                             // geometry plus material
	NodeTypeSkinnedMesh                      // mesh bound to a skeleton
	NodeTypeBone                             // skeleton joint
	NodeTypeAmbientLight                     // uniform light
	NodeTypeHemisphereLight                  // sky/ground gradient light
	NodeTypeDirectionalLight                 // parallel light with optional shadows
	NodeTypePerspectiveCamera                // frustum camera
	NodeTypeOrthographicCamera               // box camera
)

var nodeTypeNames = [...]string{
	NodeTypeObject3D:           "Object3D",
	NodeTypeScene:              "Scene",
	NodeTypeGroup:              "Group",
	NodeTypeMesh:               "Mesh",
	NodeTypeSkinnedMesh:        "SkinnedMesh",
	NodeTypeBone:               "Bone",
	NodeTypeAmbientLight:       "AmbientLight",
	NodeTypeHemisphereLight:    "HemisphereLight",
	NodeTypeDirectionalLight:   "DirectionalLight",
	NodeTypePerspectiveCamera:  "PerspectiveCamera",
	NodeTypeOrthographicCamera: "OrthographicCamera",
}

// String returns the type name matched by byType selectors.
func (t NodeType) String() string {
	if int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return fmt.Sprintf("NodeType(%d)", t)
}

// IsMesh reports whether nodes of this type carry geometry and material.
func (t NodeType) IsMesh() bool {
	return t == NodeTypeMesh || t == NodeTypeSkinnedMesh
}

// IsLight reports whether nodes of this type carry a Light payload.
func (t NodeType) IsLight() bool {
	return t == NodeTypeAmbientLight || t == NodeTypeHemisphereLight || t == NodeTypeDirectionalLight
}

// Message is a controller message such as ACT or STOP. Fields beyond
// message, clip and timeScale are kept in Data for controllers that need
// them.
type Message struct {
	Message   string         `mapstructure:"message" json:"message"`
	Clip      string         `mapstructure:"clip" json:"clip,omitempty"`
	TimeScale float64        `mapstructure:"timeScale" json:"timeScale,omitempty"`
	Index     int            `mapstructure:"-" json:"index"`
	Data      map[string]any `mapstructure:",remain" json:"data,omitempty"`
}
