package stagehand

import "cogentcore.org/core/math32"

// Light is the payload of light nodes.
type Light struct {
	Color       Color
	GroundColor Color // hemisphere lights only
	Intensity   float64
	Target      math32.Vector3 // directional lights only
	Shadow      *Shadow
}

// Shadow holds directional shadow camera parameters.
type Shadow struct {
	Top, Bottom, Left, Right float64
	Near, Far                float64
	Bias                     float64
	MapWidth, MapHeight      int
}

// defaultShadow returns the shadow parameters used when a directional light
// casts shadows without overriding them.
func defaultShadow() Shadow {
	return Shadow{
		Top: 2, Bottom: -2, Left: -2, Right: 2,
		Near: 0.01, Far: 10,
		Bias:     0.001,
		MapWidth: 1024, MapHeight: 1024,
	}
}

// ShadowSpec overrides shadow parameters. Zero fields keep the default.
type ShadowSpec struct {
	Top       float64 `mapstructure:"top"`
	Bottom    float64 `mapstructure:"bottom"`
	Left      float64 `mapstructure:"left"`
	Right     float64 `mapstructure:"right"`
	Near      float64 `mapstructure:"near"`
	Far       float64 `mapstructure:"far"`
	Bias      float64 `mapstructure:"bias"`
	MapWidth  int     `mapstructure:"mapWidth"`
	MapHeight int     `mapstructure:"mapHeight"`
}

func (s ShadowSpec) apply(d *Shadow) {
	setIf(&d.Top, s.Top)
	setIf(&d.Bottom, s.Bottom)
	setIf(&d.Left, s.Left)
	setIf(&d.Right, s.Right)
	setIf(&d.Near, s.Near)
	setIf(&d.Far, s.Far)
	setIf(&d.Bias, s.Bias)
	setIf(&d.MapWidth, s.MapWidth)
	setIf(&d.MapHeight, s.MapHeight)
}

func setIf[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

// newLight builds the node for one of the light types.
func newLight(spec *NodeSpec, typ NodeType) *Node {
	n := NewNode(spec.Name, typ)
	l := &Light{Color: ColorWhite, Intensity: 1}
	if spec.Intensity != nil {
		l.Intensity = *spec.Intensity
	}
	switch typ {
	case NodeTypeAmbientLight:
		if spec.Color != nil {
			l.Color = *spec.Color
		}
	case NodeTypeHemisphereLight:
		if spec.SkyColor != nil {
			l.Color = *spec.SkyColor
		}
		if spec.GroundColor != nil {
			l.GroundColor = *spec.GroundColor
		}
	case NodeTypeDirectionalLight:
		if spec.Color != nil {
			l.Color = *spec.Color
		}
		if spec.Target != nil {
			l.Target = *spec.Target
		}
		if spec.CastShadow {
			n.CastShadow = true
			sh := defaultShadow()
			if spec.Shadow != nil {
				spec.Shadow.apply(&sh)
			}
			l.Shadow = &sh
		}
	}
	n.Light = l
	return n
}
