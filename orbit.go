package stagehand

import (
	"cogentcore.org/core/math32"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Orbit controller messages.
const (
	MessageRotate = "ROTATE"
	MessageDolly  = "DOLLY"
	MessagePan    = "PAN"
	MessageFocus  = "FOCUS"
)

const polarEpsilon = 1e-6

// orbitConfig is the control payload. Only present keys override the
// defaults.
type orbitConfig struct {
	Target *math32.Vector3 `mapstructure:"target"`
	Cursor *math32.Vector3 `mapstructure:"cursor"`

	MinDistance     *float32 `mapstructure:"minDistance"`
	MaxDistance     *float32 `mapstructure:"maxDistance"`
	MinZoom         *float32 `mapstructure:"minZoom"`
	MaxZoom         *float32 `mapstructure:"maxZoom"`
	MinTargetRadius *float32 `mapstructure:"minTargetRadius"`
	MaxTargetRadius *float32 `mapstructure:"maxTargetRadius"`
	MinPolarAngle   *float32 `mapstructure:"minPolarAngle"`
	MaxPolarAngle   *float32 `mapstructure:"maxPolarAngle"`
	MinAzimuthAngle *float32 `mapstructure:"minAzimuthAngle"`
	MaxAzimuthAngle *float32 `mapstructure:"maxAzimuthAngle"`

	EnableDamping      *bool    `mapstructure:"enableDamping"`
	DampingFactor      *float32 `mapstructure:"dampingFactor"`
	EnableZoom         *bool    `mapstructure:"enableZoom"`
	ZoomSpeed          *float32 `mapstructure:"zoomSpeed"`
	EnableRotate       *bool    `mapstructure:"enableRotate"`
	RotateSpeed        *float32 `mapstructure:"rotateSpeed"`
	EnablePan          *bool    `mapstructure:"enablePan"`
	PanSpeed           *float32 `mapstructure:"panSpeed"`
	ScreenSpacePanning *bool    `mapstructure:"screenSpacePanning"`
	KeyPanSpeed        *float32 `mapstructure:"keyPanSpeed"`
	ZoomToCursor       *bool    `mapstructure:"zoomToCursor"`
	AutoRotate         *bool    `mapstructure:"autoRotate"`
	AutoRotateSpeed    *float32 `mapstructure:"autoRotateSpeed"`
}

// OrbitController keeps its node on a sphere around Target. Input arrives
// as ROTATE, DOLLY, PAN and FOCUS messages; Update applies it.
type OrbitController struct {
	ControllerBase

	Target math32.Vector3
	Cursor math32.Vector3

	MinDistance, MaxDistance         float32
	MinZoom, MaxZoom                 float32
	MinTargetRadius, MaxTargetRadius float32
	MinPolarAngle, MaxPolarAngle     float32
	MinAzimuthAngle, MaxAzimuthAngle float32

	EnableDamping      bool
	DampingFactor      float32
	EnableZoom         bool
	ZoomSpeed          float32
	EnableRotate       bool
	RotateSpeed        float32
	EnablePan          bool
	PanSpeed           float32
	ScreenSpacePanning bool
	KeyPanSpeed        float32
	ZoomToCursor       bool
	AutoRotate         bool
	AutoRotateSpeed    float32

	dTheta, dPhi float32
	scale        float32
	pan          math32.Vector3

	focus *focusAnim
}

type focusAnim struct {
	x, y, z *gween.Tween
}

func newOrbitController() *OrbitController {
	inf := math32.Inf(1)
	return &OrbitController{
		MaxDistance:     inf,
		MaxZoom:         inf,
		MaxTargetRadius: inf,
		MaxPolarAngle:   math32.Pi,
		MinAzimuthAngle: -inf,
		MaxAzimuthAngle: inf,
		DampingFactor:   0.05,
		EnableZoom:      true,
		ZoomSpeed:       1,
		EnableRotate:    true,
		RotateSpeed:     1,
		EnablePan:       true,
		PanSpeed:        1,
		KeyPanSpeed:     7,
		AutoRotateSpeed: 2,
		scale:           1,
	}
}

// Configure applies the present keys of cfg.
func (o *OrbitController) Configure(cfg ControllerConfig, cb *Callbacks) error {
	var c orbitConfig
	if err := cfg.Decode(&c); err != nil {
		return err
	}
	setPtr(&o.Target, c.Target)
	setPtr(&o.Cursor, c.Cursor)
	setPtr(&o.MinDistance, c.MinDistance)
	setPtr(&o.MaxDistance, c.MaxDistance)
	setPtr(&o.MinZoom, c.MinZoom)
	setPtr(&o.MaxZoom, c.MaxZoom)
	setPtr(&o.MinTargetRadius, c.MinTargetRadius)
	setPtr(&o.MaxTargetRadius, c.MaxTargetRadius)
	setPtr(&o.MinPolarAngle, c.MinPolarAngle)
	setPtr(&o.MaxPolarAngle, c.MaxPolarAngle)
	setPtr(&o.MinAzimuthAngle, c.MinAzimuthAngle)
	setPtr(&o.MaxAzimuthAngle, c.MaxAzimuthAngle)
	setPtr(&o.EnableDamping, c.EnableDamping)
	setPtr(&o.DampingFactor, c.DampingFactor)
	setPtr(&o.EnableZoom, c.EnableZoom)
	setPtr(&o.ZoomSpeed, c.ZoomSpeed)
	setPtr(&o.EnableRotate, c.EnableRotate)
	setPtr(&o.RotateSpeed, c.RotateSpeed)
	setPtr(&o.EnablePan, c.EnablePan)
	setPtr(&o.PanSpeed, c.PanSpeed)
	setPtr(&o.ScreenSpacePanning, c.ScreenSpacePanning)
	setPtr(&o.KeyPanSpeed, c.KeyPanSpeed)
	setPtr(&o.ZoomToCursor, c.ZoomToCursor)
	setPtr(&o.AutoRotate, c.AutoRotate)
	setPtr(&o.AutoRotateSpeed, c.AutoRotateSpeed)

	if o.MinDistance > o.MaxDistance {
		return configErrorf("orbit: minDistance %v exceeds maxDistance %v", o.MinDistance, o.MaxDistance)
	}
	if o.MinPolarAngle > o.MaxPolarAngle {
		return configErrorf("orbit: minPolarAngle %v exceeds maxPolarAngle %v", o.MinPolarAngle, o.MaxPolarAngle)
	}
	o.Update(0)
	return nil
}

func setPtr[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

type orbitDelta struct {
	DX       float32         `mapstructure:"dx"`
	DY       float32         `mapstructure:"dy"`
	Scale    float32         `mapstructure:"scale"`
	Target   *math32.Vector3 `mapstructure:"target"`
	Duration float32         `mapstructure:"duration"`
}

// PostMessage handles the input messages:
//
//	ROTATE {dx, dy}          radians around the target
//	DOLLY  {scale}           >1 moves out, <1 moves in
//	PAN    {dx, dy}          fractions of the target distance
//	FOCUS  {target, duration} glides the target
func (o *OrbitController) PostMessage(msg Message, cb *Callbacks) error {
	var d orbitDelta
	if err := ControllerConfig(msg.Data).Decode(&d); err != nil {
		return err
	}
	switch msg.Message {
	case MessageRotate:
		if o.EnableRotate {
			o.dTheta -= d.DX * o.RotateSpeed
			o.dPhi -= d.DY * o.RotateSpeed
		}
	case MessageDolly:
		if d.Scale <= 0 {
			return configErrorf("orbit: dolly scale must be positive, got %v", d.Scale)
		}
		if o.EnableZoom {
			o.scale *= math32.Pow(d.Scale, o.ZoomSpeed)
		}
	case MessagePan:
		if o.EnablePan {
			o.panBy(d.DX*o.PanSpeed, d.DY*o.PanSpeed)
		}
	case MessageFocus:
		if d.Target == nil {
			return configErrorf("orbit: focus needs a target")
		}
		o.focusOn(*d.Target, d.Duration)
	default:
		return configErrorf("unknown orbit message %q", msg.Message)
	}
	cb.acted(MessageEvent{Message: msg})
	return nil
}

// panBy moves the target along the camera's right and up (or forward)
// vectors.
func (o *OrbitController) panBy(dx, dy float32) {
	n := o.Node()
	if n == nil {
		return
	}
	offset := n.Position.Sub(o.Target)
	dist := offset.Length()
	forward := offset.MulScalar(-1).Normal()
	up := math32.Vec3(0, 1, 0)
	right := forward.Cross(up).Normal()
	if right.Length() == 0 {
		right = math32.Vec3(1, 0, 0)
	}
	var move math32.Vector3
	if o.ScreenSpacePanning {
		move = right.Cross(forward).Normal()
	} else {
		move = up.Cross(right).Normal()
	}
	if dist == 0 {
		dist = 1
	}
	o.pan = o.pan.Add(right.MulScalar(-dx * dist)).Add(move.MulScalar(dy * dist))
}

func (o *OrbitController) focusOn(t math32.Vector3, d float32) {
	if d <= 0 {
		o.Target = t
		o.focus = nil
		return
	}
	o.focus = &focusAnim{
		x: gween.New(o.Target.X, t.X, d, ease.InOutQuad),
		y: gween.New(o.Target.Y, t.Y, d, ease.InOutQuad),
		z: gween.New(o.Target.Z, t.Z, d, ease.InOutQuad),
	}
}

// Update integrates pending input, damping, auto-rotation and the focus
// glide, then places the node and points it at the target.
func (o *OrbitController) Update(dt float32) {
	n := o.Node()
	if n == nil {
		return
	}

	if o.focus != nil {
		x, doneX := o.focus.x.Update(dt)
		y, _ := o.focus.y.Update(dt)
		z, _ := o.focus.z.Update(dt)
		o.Target = math32.Vec3(x, y, z)
		if doneX {
			o.focus = nil
		}
	}

	if o.AutoRotate && o.EnableRotate {
		o.dTheta -= 2 * math32.Pi / 60 * o.AutoRotateSpeed * dt
	}

	offset := n.Position.Sub(o.Target)
	radius := offset.Length()
	var theta, phi float32
	if radius > 0 {
		theta = math32.Atan2(offset.X, offset.Z)
		phi = math32.Acos(math32.Clamp(offset.Y/radius, -1, 1))
	}

	f := float32(1)
	if o.EnableDamping {
		f = o.DampingFactor
	}
	theta += o.dTheta * f
	phi += o.dPhi * f

	if !math32.IsInf(o.MinAzimuthAngle, 0) && !math32.IsInf(o.MaxAzimuthAngle, 0) {
		theta = math32.Clamp(theta, o.MinAzimuthAngle, o.MaxAzimuthAngle)
	}
	phi = math32.Clamp(phi, o.MinPolarAngle, o.MaxPolarAngle)
	phi = math32.Clamp(phi, polarEpsilon, math32.Pi-polarEpsilon)

	if cam := n.Camera; cam != nil && cam.Projection == ProjectionOrthographic {
		cam.Zoom = float64(math32.Clamp(float32(cam.Zoom)/o.scale, o.MinZoom, o.MaxZoom))
	} else {
		radius = math32.Clamp(radius*o.scale, o.MinDistance, o.MaxDistance)
	}

	o.Target = o.Target.Add(o.pan.MulScalar(f))
	if o.MaxTargetRadius < math32.Inf(1) || o.MinTargetRadius > 0 {
		off := o.Target.Sub(o.Cursor)
		if l := off.Length(); l > 0 {
			c := math32.Clamp(l, o.MinTargetRadius, o.MaxTargetRadius)
			o.Target = o.Cursor.Add(off.MulScalar(c / l))
		}
	}

	sinPhi, cosPhi := math32.Sincos(phi)
	sinTheta, cosTheta := math32.Sincos(theta)
	n.Position = o.Target.Add(math32.Vec3(radius*sinPhi*sinTheta, radius*cosPhi, radius*sinPhi*cosTheta))
	n.LookAt(o.Target)

	if o.EnableDamping {
		o.dTheta *= 1 - o.DampingFactor
		o.dPhi *= 1 - o.DampingFactor
		o.pan = o.pan.MulScalar(1 - o.DampingFactor)
	} else {
		o.dTheta, o.dPhi = 0, 0
		o.pan = math32.Vector3{}
	}
	o.scale = 1
}

// Dispose drops pending input.
func (o *OrbitController) Dispose() {
	o.focus = nil
	o.dTheta, o.dPhi = 0, 0
	o.pan = math32.Vector3{}
}
