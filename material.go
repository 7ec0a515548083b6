package stagehand

import (
	"cogentcore.org/core/math32"
	"github.com/mitchellh/mapstructure"
)

// MaterialType names a shading model.
type MaterialType string

const (
	MaterialBasic    MaterialType = "basic"
	MaterialStandard MaterialType = "standard"
	MaterialLambert  MaterialType = "lambert"
	MaterialPhong    MaterialType = "phong"
	MaterialPhysical MaterialType = "physical"
	MaterialToon     MaterialType = "toon"
	MaterialShadow   MaterialType = "shadow"
	MaterialShader   MaterialType = "shader"
	MaterialJSON     MaterialType = "json"
)

// paramKind classifies a material parameter key.
type paramKind uint8

const (
	paramUnknown paramKind = iota
	paramPlain
	paramVector2
	paramTexture
)

var plainParams = setOf(
	"alphaHash", "alphaTest", "alphaToCoverage", "aoMapIntensity",
	"attenuationColor", "attenuationDistance", "blendAlpha", "blendColor",
	"blendDst", "blendDstAlpha", "blendEquation", "blendEquationAlpha",
	"blending", "blendSrc", "blendSrcAlpha", "bumpScale", "clearcoat",
	"clearcoatRoughness", "clipIntersection", "clippingPlanes", "clipShadows",
	"color", "colorWrite", "combine", "dashSize", "depthFunc", "depthTest",
	"depthWrite", "dithering", "displacementScale", "displacementBias",
	"emissive", "emissiveIntensity", "envMapIntensity", "flatShading", "fog",
	"forceSinglePass", "gapSize", "ior", "iridescence", "iridescenceIOR",
	"iridescenceThicknessRange", "lightMapIntensity", "linecap", "linejoin",
	"linewidth", "metalness", "needsUpdate", "normalMapType", "opacity",
	"polygonOffset", "polygonOffsetFactor", "polygonOffsetUnits", "precision",
	"premultipliedAlpha", "refractionRatio", "reflectivity", "roughness",
	"scale", "shadowSide", "sheen", "sheenColor", "sheenRoughness",
	"shininess", "side", "specular", "specularColor", "specularIntensity",
	"stencilWrite", "stencilWriteMask", "stencilFunc", "stencilRef",
	"stencilFuncMask", "stencilFail", "stencilZFail", "stencilZPass",
	"thickness", "toneMapped", "transmission", "transparent", "visible",
	"wireframe", "wireframeLinecap", "wireframeLinejoin", "wireframeLinewidth",
)

var vector2Params = setOf("clearcoatNormalScale", "normalScale")

var textureParams = setOf(
	"texture", "alphaMap", "aoMap", "bumpMap", "clearcoatMap",
	"clearcoatNormalMap", "clearcoatRoughnessMap", "displacementMap",
	"emissiveMap", "envMap", "gradientMap", "iridescenceMap",
	"iridescenceThicknessMap", "lightMap", "metalnessMap", "normalMap",
	"roughnessMap", "sheenColorMap", "sheenRoughnessMap", "specularColorMap",
	"specularIntensityMap", "specularMap", "thicknessMap", "transmissionMap",
)

var colorParams = setOf("color", "emissive", "specular", "attenuationColor", "sheenColor", "specularColor")

func setOf(keys ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

func classifyParam(key string) paramKind {
	if _, ok := plainParams[key]; ok {
		return paramPlain
	}
	if _, ok := vector2Params[key]; ok {
		return paramVector2
	}
	if _, ok := textureParams[key]; ok {
		return paramTexture
	}
	return paramUnknown
}

// Material holds shading parameters. Plain values are kept as decoded;
// color keys are normalized to Color.
type Material struct {
	Name     string
	Type     MaterialType
	Params   map[string]any
	Vectors  map[string]math32.Vector2
	Textures map[string]*Texture

	disposed bool
}

// NewMaterial creates an empty material of the given type.
func NewMaterial(typ MaterialType) *Material {
	return &Material{
		Type:     typ,
		Params:   make(map[string]any),
		Vectors:  make(map[string]math32.Vector2),
		Textures: make(map[string]*Texture),
	}
}

// Param returns the value stored under key in any of the three tables.
func (m *Material) Param(key string) (any, bool) {
	if v, ok := m.Params[key]; ok {
		return v, true
	}
	if v, ok := m.Vectors[key]; ok {
		return v, true
	}
	if v, ok := m.Textures[key]; ok {
		return v, true
	}
	return nil, false
}

// Color returns the base color, white when unset.
func (m *Material) Color() Color {
	if c, ok := m.Params["color"].(Color); ok {
		return c
	}
	return ColorWhite
}

// Dispose releases the material. Textures are shared and left alone.
func (m *Material) Dispose() {
	m.disposed = true
}

// IsDisposed reports whether Dispose has been called.
func (m *Material) IsDisposed() bool {
	return m.disposed
}

// applyParams copies every recognized key of data into m. Unknown keys and
// malformed values are ignored. The key "texture" is stored as "map".
func (m *Material) applyParams(data map[string]any, textures *TextureLoader) {
	for key, raw := range data {
		switch classifyParam(key) {
		case paramPlain:
			if _, ok := colorParams[key]; ok {
				if c, err := decodeColor(raw); err == nil {
					m.Params[key] = c
					continue
				}
			}
			m.Params[key] = raw
		case paramVector2:
			if v, ok := decodeVector2(raw); ok {
				m.Vectors[key] = v
			}
		case paramTexture:
			tex := textures.Load(raw)
			if tex == nil {
				continue
			}
			if key == "texture" {
				key = "map"
			}
			m.Textures[key] = tex
		}
	}
}

func decodeVector2(raw any) (math32.Vector2, bool) {
	var xy []float32
	if err := mapstructure.Decode(raw, &xy); err != nil || len(xy) < 2 {
		return math32.Vector2{}, false
	}
	return math32.Vec2(xy[0], xy[1]), true
}

// materialDocument is the shape accepted by the json material loader.
type materialDocument struct {
	Type   MaterialType   `mapstructure:"type"`
	Name   string         `mapstructure:"name"`
	Params map[string]any `mapstructure:",remain"`
}

// MaterialLoader parses serialized materials (the "json" material type).
type MaterialLoader struct {
	textures *TextureLoader
}

// Parse builds a material from a serialized document. The document's own
// type defaults to standard.
func (l *MaterialLoader) Parse(data any) (*Material, error) {
	var doc materialDocument
	if err := decodeInto(data, &doc); err != nil {
		return nil, configErrorf("material document: %v", err)
	}
	if doc.Type == "" || doc.Type == MaterialJSON {
		doc.Type = MaterialStandard
	}
	if !knownMaterialType(doc.Type) {
		return nil, configErrorf("unknown material type %q", doc.Type)
	}
	m := NewMaterial(doc.Type)
	m.Name = doc.Name
	m.applyParams(doc.Params, l.textures)
	return m, nil
}

func knownMaterialType(t MaterialType) bool {
	switch t {
	case MaterialBasic, MaterialStandard, MaterialLambert, MaterialPhong,
		MaterialPhysical, MaterialToon, MaterialShadow, MaterialShader:
		return true
	}
	return false
}

// buildMaterial creates the material for a geometry node. A nil or empty data
// map yields a basic material.
func buildMaterial(data map[string]any, loaders *LoaderCache) (*Material, error) {
	typ := MaterialBasic
	if t, ok := data["type"].(string); ok && t != "" {
		typ = MaterialType(t)
	}
	name, _ := data["name"].(string)
	if typ == MaterialJSON {
		m, err := loaders.Materials().Parse(data["data"])
		if err != nil {
			return nil, err
		}
		m.Name = name
		return m, nil
	}
	if !knownMaterialType(typ) {
		return nil, configErrorf("unknown material type %q", typ)
	}
	m := NewMaterial(typ)
	m.Name = name
	m.applyParams(data, loaders.Textures())
	return m, nil
}
