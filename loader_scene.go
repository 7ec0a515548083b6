package stagehand

import (
	"context"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// sceneDocument is the JSON/YAML asset format: a node tree plus clips.
//
//	name: Avatar
//	nodes:
//	  - {type: bone, name: Hips}
//	  - {type: geometry, geometry: box, skeleton: [Hips]}
//	clips:
//	  - name: Idle
//	    tracks: [{node: Hips, property: position, times: [0, 1], values: [[0,0,0],[0,1,0]]}]
type sceneDocument struct {
	Name     string         `mapstructure:"name"`
	Nodes    []NodeSpec     `mapstructure:"nodes"`
	Clips    []*Clip        `mapstructure:"clips"`
	Metadata map[string]any `mapstructure:"metadata"`
}

type sceneLoader struct {
	fetcher Fetcher
}

func newSceneLoader(f Fetcher) Loader {
	return &sceneLoader{fetcher: f}
}

// Load parses a scene document. The returned Root is detached; textures in
// material parameters are left unsized.
func (l *sceneLoader) Load(ctx context.Context, ref string) (*Asset, error) {
	data, err := l.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return ParseSceneDocument(data)
}

// ParseSceneDocument builds an Asset from JSON or YAML bytes.
func ParseSceneDocument(data []byte) (*Asset, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse scene document: %w", err)
	}
	var doc sceneDocument
	if err := decodeInto(raw, &doc); err != nil {
		return nil, configErrorf("scene document: %v", err)
	}

	asset := &Asset{Metadata: doc.Metadata}
	if len(doc.Nodes) > 0 {
		root := NewGroup(doc.Name)
		for i := range doc.Nodes {
			n, err := buildStatic(&doc.Nodes[i], i, nil)
			if err != nil {
				return nil, err
			}
			root.AddChild(n)
		}
		bindSkeletons(root, doc.Nodes, root.children)
		asset.Root = root
	}
	for _, c := range doc.Clips {
		if c.Duration == 0 {
			c.Duration = clipLength(c)
		}
		asset.Clips = append(asset.Clips, c)
	}
	return asset, nil
}

// buildStatic constructs a synchronous node type and its children without
// firing callbacks. Used for scene documents.
func buildStatic(spec *NodeSpec, index int, loaders *LoaderCache) (*Node, error) {
	n, err := newStaticNode(spec, index, loaders)
	if err != nil {
		return nil, err
	}
	for i := range spec.Children {
		child, err := buildStatic(&spec.Children[i], i, loaders)
		if err != nil {
			return nil, err
		}
		n.AddChild(child)
	}
	return n, nil
}

// newStaticNode constructs and configures one synchronous node type.
func newStaticNode(spec *NodeSpec, index int, loaders *LoaderCache) (*Node, error) {
	var n *Node
	switch spec.Type {
	case "object3d":
		n = NewObject3D(spec.Name)
	case "group":
		n = NewGroup(spec.Name)
	case "bone":
		n = NewNode(spec.Name, NodeTypeBone)
	case "ambient_light":
		n = newLight(spec, NodeTypeAmbientLight)
	case "hemi_light":
		n = newLight(spec, NodeTypeHemisphereLight)
	case "directional_light":
		n = newLight(spec, NodeTypeDirectionalLight)
	case "geometry":
		geom, err := NewGeometry(spec)
		if err != nil {
			return nil, err
		}
		mat, err := buildMaterial(spec.Material, loaders)
		if err != nil {
			return nil, err
		}
		n = NewMesh(spec.Name, geom, mat)
		if len(spec.Skeleton) > 0 {
			n.Type = NodeTypeSkinnedMesh
		}
		n.CastShadow = spec.CastShadow
		n.ReceiveShadow = spec.ReceiveShadow
	default:
		return nil, configErrorf("unknown node type %q", spec.Type)
	}
	if n.Name == "" {
		n.Name = strconv.Itoa(index)
	}
	configureNode(n, spec)
	return n, nil
}

// configureNode applies transform, visibility and tag.
func configureNode(n *Node, spec *NodeSpec) {
	n.SetTransform(spec.Transform())
	n.Visible = spec.IsVisible()
	if spec.Tag != "" {
		n.Tag = spec.Tag
	}
}

// bindSkeletons resolves skeleton bone names against the subtree under root.
func bindSkeletons(root *Node, specs []NodeSpec, nodes []*Node) {
	for i := range specs {
		if i >= len(nodes) {
			return
		}
		if names := specs[i].Skeleton; len(names) > 0 {
			sk := &Skeleton{}
			for _, name := range names {
				if b := root.FindByName(name); b != nil {
					sk.Bones = append(sk.Bones, b)
				}
			}
			nodes[i].Skeleton = sk
		}
		bindSkeletons(root, specs[i].Children, nodes[i].children)
	}
}

func clipLength(c *Clip) float32 {
	var d float32
	for _, tr := range c.Tracks {
		if n := len(tr.Times); n > 0 && tr.Times[n-1] > d {
			d = tr.Times[n-1]
		}
	}
	return d
}
