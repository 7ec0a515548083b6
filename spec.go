package stagehand

import (
	"fmt"
	"reflect"

	"cogentcore.org/core/math32"
	"github.com/mitchellh/mapstructure"
)

// Command kinds.
const (
	CommandSetup   = "setup"
	CommandLoad    = "load"
	CommandUnload  = "unload"
	CommandControl = "control"
	CommandAdd     = "add"
	CommandAnimate = "animate"
)

// Command is one record of a command stream. Which payload fields are read
// depends on Kind.
type Command struct {
	Kind    string `mapstructure:"command"`
	Enabled *bool  `mapstructure:"enabled"`

	// load
	Where Query      `mapstructure:"where"`
	Await bool       `mapstructure:"await"`
	Nodes []NodeSpec `mapstructure:"nodes"`

	// control
	Controllers []ControllerSpec `mapstructure:"controllers"`

	// add, animate
	What *AssetSpec `mapstructure:"what"`

	// setup
	Renderer []RendererSpec `mapstructure:"renderer"`
	Camera   *CameraSpec    `mapstructure:"camera"`
}

// IsEnabled reports false only when enabled was given and false.
func (c *Command) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// NodeSpec describes one node of a load payload, or one target of an unload
// payload (Where only).
type NodeSpec struct {
	Type    string `mapstructure:"type"`
	Name    string `mapstructure:"name"`
	Tag     string `mapstructure:"tag"`
	Visible *bool  `mapstructure:"visible"`

	Position *math32.Vector3 `mapstructure:"position"`
	Scale    *math32.Vector3 `mapstructure:"scale"`
	Rotation *math32.Vector3 `mapstructure:"rotation"`

	CastShadow    bool `mapstructure:"castShadow"`
	ReceiveShadow bool `mapstructure:"receiveShadow"`

	// lights
	Color       *Color          `mapstructure:"color"`
	SkyColor    *Color          `mapstructure:"skyColor"`
	GroundColor *Color          `mapstructure:"groundColor"`
	Intensity   *float64        `mapstructure:"intensity"`
	Target      *math32.Vector3 `mapstructure:"target"`
	Shadow      *ShadowSpec     `mapstructure:"shadow"`

	// geometry
	Geometry       string         `mapstructure:"geometry"`
	Width          float64        `mapstructure:"width"`
	Height         float64        `mapstructure:"height"`
	Depth          float64        `mapstructure:"depth"`
	WidthSegments  int            `mapstructure:"widthSegments"`
	HeightSegments int            `mapstructure:"heightSegments"`
	DepthSegments  int            `mapstructure:"depthSegments"`
	Material       map[string]any `mapstructure:"material"`

	// model
	Src    string `mapstructure:"src"`
	Format string `mapstructure:"format"`

	// scene documents: bone names resolved inside the built subtree
	Skeleton []string `mapstructure:"skeleton"`

	Children []NodeSpec `mapstructure:"children"`

	// unload
	Where Query `mapstructure:"where"`
}

// Transform returns the node transform with defaults: position 0,
// scale 1, rotation 0.
func (s *NodeSpec) Transform() Transform {
	t := Transform{Scale: math32.Vec3(1, 1, 1)}
	if s.Position != nil {
		t.Position = *s.Position
	}
	if s.Scale != nil {
		t.Scale = *s.Scale
	}
	if s.Rotation != nil {
		t.Rotation = *s.Rotation
	}
	return t
}

// IsVisible defaults to true.
func (s *NodeSpec) IsVisible() bool {
	return s.Visible == nil || *s.Visible
}

// ControllerSpec describes one controller of a control payload. Every other
// key is kept in Config for the controller to decode.
type ControllerSpec struct {
	Where  Query            `mapstructure:"where"`
	Name   string           `mapstructure:"name"`
	Type   string           `mapstructure:"type"`
	Config ControllerConfig `mapstructure:",remain"`
}

// AssetSpec is the "what" payload of add and animate.
type AssetSpec struct {
	Src           string         `mapstructure:"src"`
	Format        string         `mapstructure:"format"`
	Where         Query          `mapstructure:"where"`
	Tag           string         `mapstructure:"tag"`
	CastShadow    bool           `mapstructure:"castShadow"`
	ReceiveShadow bool           `mapstructure:"receiveShadow"`
	Material      map[string]any `mapstructure:"material"`
}

// RendererSpec is one renderer candidate of a setup payload.
type RendererSpec struct {
	Type         string         `mapstructure:"type"`
	Width        int            `mapstructure:"width"`
	Height       int            `mapstructure:"height"`
	PixelRatio   float64        `mapstructure:"pixelRatio"`
	EnableShadow bool           `mapstructure:"enableShadow"`
	Options      map[string]any `mapstructure:",remain"`
}

// CameraSpec is the camera of a setup payload. Aspect is accepted as a
// synonym for Fov for older scripts.
type CameraSpec struct {
	Type     string          `mapstructure:"type"`
	Fov      float64         `mapstructure:"fov"`
	Aspect   float64         `mapstructure:"aspect"`
	Near     float64         `mapstructure:"near"`
	Far      float64         `mapstructure:"far"`
	Left     float64         `mapstructure:"left"`
	Right    float64         `mapstructure:"right"`
	Top      float64         `mapstructure:"top"`
	Bottom   float64         `mapstructure:"bottom"`
	Position *math32.Vector3 `mapstructure:"position"`
	Target   *math32.Vector3 `mapstructure:"target"`
}

// DecodeCommand decodes one raw command record.
func DecodeCommand(raw any) (Command, error) {
	var c Command
	if err := decodeInto(raw, &c); err != nil {
		return Command{}, configErrorf("decode command: %v", err)
	}
	return c, nil
}

// DecodeCommands decodes a list of raw command records.
func DecodeCommands(raw []any) ([]Command, error) {
	cmds := make([]Command, 0, len(raw))
	for i, r := range raw {
		c, err := DecodeCommand(r)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		cmds = append(cmds, c)
	}
	return cmds, nil
}

// DecodeMessage decodes a raw controller message.
func DecodeMessage(raw any) (Message, error) {
	var m Message
	if err := decodeInto(raw, &m); err != nil {
		return Message{}, configErrorf("decode message: %v", err)
	}
	return m, nil
}

// decodeInto runs mapstructure with the package decode hooks.
func decodeInto(raw any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			normalizeMapHook,
			vector3Hook,
			colorHook,
			queryHook,
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

var (
	vector3Type = reflect.TypeOf(math32.Vector3{})
	colorType   = reflect.TypeOf(Color{})
	queryType   = reflect.TypeOf(Query{})
)

// normalizeMapHook turns map[any]any, which some YAML decoders produce, into
// map[string]any.
func normalizeMapHook(from, to reflect.Type, data any) (any, error) {
	m, ok := data.(map[any]any)
	if !ok {
		return data, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[fmt.Sprint(k)] = v
	}
	return out, nil
}

// vector3Hook splats a number to all three components and reads a list as
// [x, y, z].
func vector3Hook(from, to reflect.Type, data any) (any, error) {
	if to != vector3Type {
		return data, nil
	}
	if f, ok := asFloat(data); ok {
		return math32.Vec3(f, f, f), nil
	}
	if list, ok := data.([]any); ok {
		var v [3]float32
		for i := 0; i < len(list) && i < 3; i++ {
			f, ok := asFloat(list[i])
			if !ok {
				return nil, fmt.Errorf("vector component %d: %T is not a number", i, list[i])
			}
			v[i] = f
		}
		return math32.Vec3(v[0], v[1], v[2]), nil
	}
	return data, nil
}

func colorHook(from, to reflect.Type, data any) (any, error) {
	if to != colorType {
		return data, nil
	}
	if _, ok := data.(map[string]any); ok {
		return data, nil
	}
	return decodeColor(data)
}

// decodeColor accepts 0xRRGGBB numbers and "#rrggbb" strings.
func decodeColor(data any) (Color, error) {
	switch v := data.(type) {
	case Color:
		return v, nil
	case string:
		return ParseColor(v)
	}
	if n, ok := asInt(data); ok {
		return ColorHex(uint32(n)), nil
	}
	if f, ok := data.(float64); ok {
		return ColorHex(uint32(f)), nil
	}
	return Color{}, fmt.Errorf("color of type %T", data)
}

func queryHook(from, to reflect.Type, data any) (any, error) {
	if to != queryType {
		return data, nil
	}
	return ParseQuery(data)
}

func asFloat(v any) (float32, bool) {
	switch n := v.(type) {
	case float64:
		return float32(n), true
	case float32:
		return n, true
	case int:
		return float32(n), true
	case int64:
		return float32(n), true
	case uint64:
		return float32(n), true
	}
	return 0, false
}
