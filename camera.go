package stagehand

import "cogentcore.org/core/math32"

// Projection selects the camera model.
type Projection uint8

const (
	ProjectionPerspective Projection = iota
	ProjectionOrthographic
)

// Camera is the payload of camera nodes. Target is the world-space point the
// camera looks at; renderers build the view from the node's world position
// and Target.
type Camera struct {
	Projection Projection

	// perspective
	Fov    float64 // vertical, degrees
	Aspect float64

	// orthographic
	Left, Right, Top, Bottom float64

	Near, Far float64
	Zoom      float64

	Target math32.Vector3
}

// newCamera builds the #camera node from a setup payload. aspect is the
// renderer's width/height, or 1 without a renderer.
func newCamera(spec *CameraSpec, aspect float64) (*Node, error) {
	var n *Node
	cam := &Camera{Near: orDefault(spec.Near, 0.1), Far: orDefault(spec.Far, 2000), Zoom: 1}
	switch spec.Type {
	case "perspective":
		n = NewNode("camera", NodeTypePerspectiveCamera)
		cam.Projection = ProjectionPerspective
		cam.Fov = orDefault(spec.Fov, orDefault(spec.Aspect, 50))
		cam.Aspect = aspect
	case "orthographic":
		n = NewNode("camera", NodeTypeOrthographicCamera)
		cam.Projection = ProjectionOrthographic
		cam.Left, cam.Right = spec.Left, spec.Right
		cam.Top, cam.Bottom = spec.Top, spec.Bottom
	default:
		return nil, configErrorf("unknown camera type %q", spec.Type)
	}
	n.Camera = cam
	if spec.Position != nil {
		n.Position = *spec.Position
	}
	if spec.Target != nil {
		cam.Target = *spec.Target
	}
	n.LookAt(cam.Target)
	return n, nil
}

// LookAt turns the node's -Z axis toward a world-space point. For camera
// nodes the point is also stored as Camera.Target.
func (n *Node) LookAt(target math32.Vector3) {
	n.Rotation = lookAtRotation(n.WorldPosition(), target)
	if n.Camera != nil {
		n.Camera.Target = target
	}
}
