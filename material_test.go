package stagehand

import (
	"errors"
	"testing"

	"cogentcore.org/core/math32"
)

func TestBuildMaterialDefaultsToBasic(t *testing.T) {
	m, err := buildMaterial(nil, nil)
	if err != nil {
		t.Fatalf("buildMaterial: %v", err)
	}
	if m.Type != MaterialBasic || m.Color() != ColorWhite {
		t.Errorf("material = %+v", m)
	}
}

func TestBuildMaterialParams(t *testing.T) {
	m, err := buildMaterial(map[string]any{
		"type":        "physical",
		"name":        "Paint",
		"color":       "#102030",
		"emissive":    0xff0000,
		"roughness":   0.3,
		"transparent": true,
		"normalScale": []any{0.5, 2},
		"texture":     "paint.png",
		"normalMap":   map[string]any{"src": "paint_n.png", "wrapS": ClampToEdgeWrapping, "colorSpace": LinearSRGBColorSpace},
		"bogus":       42,
		"sheenColor":  "not a color",
	}, nil)
	if err != nil {
		t.Fatalf("buildMaterial: %v", err)
	}
	if m.Type != MaterialPhysical || m.Name != "Paint" {
		t.Errorf("type/name = %s/%s", m.Type, m.Name)
	}
	if m.Color().Hex() != 0x102030 {
		t.Errorf("color = %v", m.Color())
	}
	if c, ok := m.Params["emissive"].(Color); !ok || c.Hex() != 0xff0000 {
		t.Errorf("emissive = %v", m.Params["emissive"])
	}
	if m.Params["roughness"] != 0.3 || m.Params["transparent"] != true {
		t.Errorf("plain params = %v", m.Params)
	}
	if _, ok := m.Param("bogus"); ok {
		t.Error("unknown keys should be dropped")
	}
	if m.Params["sheenColor"] != "not a color" {
		t.Errorf("undecodable color should be kept raw, got %v", m.Params["sheenColor"])
	}
	if m.Vectors["normalScale"] != math32.Vec2(0.5, 2) {
		t.Errorf("normalScale = %v", m.Vectors["normalScale"])
	}

	tex := m.Textures["map"]
	if tex == nil || tex.Source != "paint.png" || tex.WrapS != RepeatWrapping || tex.ColorSpace != SRGBColorSpace {
		t.Errorf("map = %+v", tex)
	}
	if _, ok := m.Textures["texture"]; ok {
		t.Error("texture key should be stored as map")
	}
	n := m.Textures["normalMap"]
	if n == nil || n.WrapS != ClampToEdgeWrapping || n.WrapT != RepeatWrapping || n.ColorSpace != LinearSRGBColorSpace {
		t.Errorf("normalMap = %+v", n)
	}
}

func TestBuildMaterialJSON(t *testing.T) {
	m, err := buildMaterial(map[string]any{
		"type": "json",
		"name": "Outer",
		"data": map[string]any{"type": "toon", "name": "Inner", "color": "#00ff00", "opacity": 0.5},
	}, nil)
	if err != nil {
		t.Fatalf("buildMaterial: %v", err)
	}
	if m.Type != MaterialToon || m.Name != "Outer" {
		t.Errorf("type/name = %s/%s", m.Type, m.Name)
	}
	if m.Color().Hex() != 0x00ff00 || m.Params["opacity"] != 0.5 {
		t.Errorf("params = %v", m.Params)
	}

	m, err = buildMaterial(map[string]any{"type": "json", "data": map[string]any{}}, nil)
	if err != nil || m.Type != MaterialStandard {
		t.Errorf("json without type = %v, %v; want standard", m, err)
	}
}

func TestBuildMaterialErrors(t *testing.T) {
	for name, data := range map[string]map[string]any{
		"unknown type":      {"type": "chrome"},
		"json unknown type": {"type": "json", "data": map[string]any{"type": "chrome"}},
		"json not a map":    {"type": "json", "data": "nope"},
	} {
		if _, err := buildMaterial(data, nil); !errors.Is(err, ErrConfiguration) {
			t.Errorf("%s: err = %v, want ErrConfiguration", name, err)
		}
	}
}

func TestMaterialQuerySegments(t *testing.T) {
	w := newTestWorld(t)
	err := w.Load(testContext(t), Path("#scene"), []NodeSpec{
		{Type: "geometry", Name: "Box", Geometry: "box", Material: map[string]any{"type": "standard", "metalness": 0.7}},
	}, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := w.QueryTarget(Path("#scene.Box.material.metalness"), nil); got != 0.7 {
		t.Errorf("metalness = %v, want 0.7", got)
	}
	if got := w.QueryTarget(Path("#scene.Box.material.roughness"), nil); got != nil {
		t.Errorf("unset param = %v, want nil", got)
	}
}
