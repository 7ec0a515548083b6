package stagehand

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"cogentcore.org/core/math32"
	"github.com/qmuntal/gltf"
)

type gltfLoader struct {
	fetcher Fetcher
}

func newGLTFLoader(f Fetcher) Loader {
	return &gltfLoader{fetcher: f}
}

// Load reads a .gltf or .glb asset. Local files are opened in place so
// external buffers resolve; remote ones must be self-contained.
func (l *gltfLoader) Load(ctx context.Context, ref string) (*Asset, error) {
	var doc *gltf.Document
	if r, ok := l.fetcher.(LocalResolver); ok {
		if p, ok := r.LocalPath(ref); ok {
			d, err := gltf.Open(p)
			if err != nil {
				return nil, err
			}
			doc = d
		}
	}
	if doc == nil {
		data, err := l.fetcher.Fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
		doc = new(gltf.Document)
		if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
			return nil, fmt.Errorf("decode gltf: %w", err)
		}
	}
	return buildGLTFAsset(doc)
}

func buildGLTFAsset(doc *gltf.Document) (*Asset, error) {
	b := &gltfBuilder{doc: doc, nodes: make([]*Node, len(doc.Nodes))}

	sceneIdx := 0
	if doc.Scene != nil {
		sceneIdx = *doc.Scene
	}
	root := NewGroup("Scene")
	if sceneIdx < len(doc.Scenes) {
		sc := doc.Scenes[sceneIdx]
		if sc.Name != "" {
			root.Name = sc.Name
		}
		for _, idx := range sc.Nodes {
			n, err := b.node(idx)
			if err != nil {
				return nil, err
			}
			root.AddChild(n)
		}
	}
	b.bindSkins()

	clips := make([]*Clip, 0, len(doc.Animations))
	for i, anim := range doc.Animations {
		c, err := b.clip(i, anim)
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}

	return &Asset{
		Root:  root,
		Clips: clips,
		Metadata: map[string]any{
			"generator": doc.Asset.Generator,
			"version":   doc.Asset.Version,
		},
	}, nil
}

type gltfBuilder struct {
	doc   *gltf.Document
	nodes []*Node
}

func (b *gltfBuilder) node(idx int) (*Node, error) {
	if idx < 0 || idx >= len(b.doc.Nodes) {
		return nil, fmt.Errorf("gltf node index %d out of range", idx)
	}
	if b.nodes[idx] != nil {
		return nil, fmt.Errorf("gltf node %d referenced twice", idx)
	}
	src := b.doc.Nodes[idx]
	name := src.Name
	if name == "" {
		name = "node_" + strconv.Itoa(idx)
	}

	var n *Node
	switch {
	case src.Mesh != nil && src.Skin != nil:
		n = NewNode(name, NodeTypeSkinnedMesh)
	case src.Mesh != nil:
		n = NewNode(name, NodeTypeMesh)
	default:
		n = NewObject3D(name)
	}
	if src.Mesh != nil {
		n.Material = b.material(*src.Mesh)
	}
	t := src.TranslationOrDefault()
	s := src.ScaleOrDefault()
	n.Position = math32.Vec3(float32(t[0]), float32(t[1]), float32(t[2]))
	n.Scale = math32.Vec3(float32(s[0]), float32(s[1]), float32(s[2]))
	n.Rotation = quatToEuler(src.RotationOrDefault())
	b.nodes[idx] = n

	for _, c := range src.Children {
		child, err := b.node(c)
		if err != nil {
			return nil, err
		}
		n.AddChild(child)
	}
	return n, nil
}

func (b *gltfBuilder) material(meshIdx int) *Material {
	m := NewMaterial(MaterialStandard)
	if meshIdx >= len(b.doc.Meshes) {
		return m
	}
	mesh := b.doc.Meshes[meshIdx]
	if len(mesh.Primitives) == 0 || mesh.Primitives[0].Material == nil {
		return m
	}
	if mi := *mesh.Primitives[0].Material; mi < len(b.doc.Materials) {
		m.Name = b.doc.Materials[mi].Name
	}
	return m
}

func (b *gltfBuilder) bindSkins() {
	for i, src := range b.doc.Nodes {
		n := b.nodes[i]
		if n == nil || src.Skin == nil || *src.Skin >= len(b.doc.Skins) {
			continue
		}
		sk := &Skeleton{}
		for _, j := range b.doc.Skins[*src.Skin].Joints {
			if j < len(b.nodes) && b.nodes[j] != nil {
				bone := b.nodes[j]
				if bone.Type == NodeTypeObject3D {
					bone.Type = NodeTypeBone
				}
				sk.Bones = append(sk.Bones, bone)
			}
		}
		n.Skeleton = sk
	}
}

func (b *gltfBuilder) clip(i int, anim *gltf.Animation) (*Clip, error) {
	c := &Clip{Name: anim.Name}
	if c.Name == "" {
		c.Name = "Animation_" + strconv.Itoa(i)
	}
	for _, ch := range anim.Channels {
		if ch.Target.Node == nil || ch.Sampler >= len(anim.Samplers) {
			continue
		}
		target := b.nodes[*ch.Target.Node]
		if target == nil {
			continue
		}
		var prop TrackProperty
		switch ch.Target.Path {
		case gltf.TRSTranslation:
			prop = TrackPosition
		case gltf.TRSRotation:
			prop = TrackRotation
		case gltf.TRSScale:
			prop = TrackScale
		default:
			continue
		}
		sampler := anim.Samplers[ch.Sampler]
		times, err := b.floats(sampler.Input, 1)
		if err != nil {
			return nil, fmt.Errorf("clip %s: %w", c.Name, err)
		}
		width := 3
		if prop == TrackRotation {
			width = 4
		}
		values, err := b.floats(sampler.Output, width)
		if err != nil {
			return nil, fmt.Errorf("clip %s: %w", c.Name, err)
		}
		tr := Track{Node: target.Name, Property: prop}
		for k := range times {
			if (k+1)*width > len(values) {
				break
			}
			v := values[k*width : (k+1)*width]
			tr.Times = append(tr.Times, times[k])
			if prop == TrackRotation {
				tr.Values = append(tr.Values, quatToEuler([4]float64{float64(v[0]), float64(v[1]), float64(v[2]), float64(v[3])}))
			} else {
				tr.Values = append(tr.Values, math32.Vec3(v[0], v[1], v[2]))
			}
		}
		if n := len(tr.Times); n > 0 && tr.Times[n-1] > c.Duration {
			c.Duration = tr.Times[n-1]
		}
		c.Tracks = append(c.Tracks, tr)
	}
	return c, nil
}

// floats reads a float accessor as a flat slice of count*width values.
func (b *gltfBuilder) floats(accessorIdx, width int) ([]float32, error) {
	if accessorIdx < 0 || accessorIdx >= len(b.doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", accessorIdx)
	}
	acr := b.doc.Accessors[accessorIdx]
	if acr.ComponentType != gltf.ComponentFloat {
		return nil, fmt.Errorf("accessor %d: only float components are supported", accessorIdx)
	}
	if acr.BufferView == nil {
		return make([]float32, acr.Count*width), nil
	}
	view := b.doc.BufferViews[*acr.BufferView]
	if view.Buffer >= len(b.doc.Buffers) {
		return nil, fmt.Errorf("buffer %d out of range", view.Buffer)
	}
	data := b.doc.Buffers[view.Buffer].Data
	stride := view.ByteStride
	if stride == 0 {
		stride = 4 * width
	}
	start := view.ByteOffset + acr.ByteOffset
	out := make([]float32, 0, acr.Count*width)
	for k := 0; k < acr.Count; k++ {
		off := start + k*stride
		if off+4*width > len(data) {
			return nil, fmt.Errorf("accessor %d overruns its buffer", accessorIdx)
		}
		for c := 0; c < width; c++ {
			bits := binary.LittleEndian.Uint32(data[off+4*c:])
			out = append(out, math.Float32frombits(bits))
		}
	}
	return out, nil
}

// quatToEuler converts an (x, y, z, w) quaternion to XYZ Euler angles.
func quatToEuler(q [4]float64) math32.Vector3 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	m11 := 1 - 2*(y*y+z*z)
	m12 := 2 * (x*y - z*w)
	m13 := 2 * (x*z + y*w)
	m22 := 1 - 2*(x*x+z*z)
	m23 := 2 * (y*z - x*w)
	m32 := 2 * (y*z + x*w)
	m33 := 1 - 2*(x*x+y*y)

	ey := math.Asin(math.Max(-1, math.Min(1, m13)))
	var ex, ez float64
	if math.Abs(m13) < 0.9999999 {
		ex = math.Atan2(-m23, m33)
		ez = math.Atan2(-m12, m11)
	} else {
		ex = math.Atan2(m32, m22)
	}
	return math32.Vec3(float32(ex), float32(ey), float32(ez))
}
