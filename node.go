package stagehand

import (
	"sync/atomic"

	"cogentcore.org/core/math32"
	"github.com/google/uuid"
)

// nodeIDCounter is atomic because loaders build detached subtrees on their
// own goroutines.
var nodeIDCounter atomic.Uint32

func nextNodeID() uint32 {
	return nodeIDCounter.Add(1)
}

// Node is the scene graph element. A single flat struct is used for all node
// types; the optional payload pointers say what the node carries.
type Node struct {
	// Identity
	ID   uint32
	UUID string
	Name string
	Type NodeType
	Tag  string

	// Hierarchy
	Parent   *Node
	children []*Node

	// Transform (local). Rotation is Euler XYZ in radians.
	Position math32.Vector3
	Scale    math32.Vector3
	Rotation math32.Vector3

	// Flags
	Visible       bool
	CastShadow    bool
	ReceiveShadow bool

	// Payloads
	Light    *Light
	Geometry *Geometry
	Material *Material
	Camera   *Camera
	Skeleton *Skeleton
	Template *Template

	// Metadata
	UserData any

	controllers map[string]Controller
	disposed    bool
}

// nodeDefaults sets the common default field values shared by all constructors.
func nodeDefaults(n *Node) {
	n.ID = nextNodeID()
	n.UUID = uuid.NewString()
	n.Scale = math32.Vec3(1, 1, 1)
	n.Visible = true
}

// NewNode creates a node of the given type with default transform.
func NewNode(name string, typ NodeType) *Node {
	n := &Node{Name: name, Type: typ}
	nodeDefaults(n)
	return n
}

// NewObject3D creates a plain transform group.
func NewObject3D(name string) *Node {
	return NewNode(name, NodeTypeObject3D)
}

// NewGroup creates the root node of a loaded asset.
func NewGroup(name string) *Node {
	return NewNode(name, NodeTypeGroup)
}

// NewMesh creates a mesh node.
func NewMesh(name string, geom *Geometry, mat *Material) *Node {
	n := NewNode(name, NodeTypeMesh)
	n.Geometry = geom
	n.Material = mat
	return n
}

// --- Tree manipulation ---

// AddChild appends child to this node's children.
// If child already has a parent, it is removed from that parent first.
// Panics if child is nil or child is an ancestor of this node (cycle).
func (n *Node) AddChild(child *Node) {
	if child == nil {
		panic("stagehand: cannot add nil child")
	}
	if globalDebug {
		debugCheckDisposed(n, "AddChild (parent)")
		debugCheckDisposed(child, "AddChild (child)")
	}
	if isAncestor(child, n) {
		panic("stagehand: adding child would create a cycle")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	child.Parent = n
	n.children = append(n.children, child)
	if globalDebug {
		debugCheckTreeDepth(child)
		debugCheckChildCount(n)
	}
}

// AddChildAt inserts child at the given index.
// Same reparenting and cycle-check behavior as AddChild.
func (n *Node) AddChildAt(child *Node, index int) {
	if child == nil {
		panic("stagehand: cannot add nil child")
	}
	if isAncestor(child, n) {
		panic("stagehand: adding child would create a cycle")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	if index < 0 || index > len(n.children) {
		panic("stagehand: child index out of range")
	}
	child.Parent = n
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
}

// RemoveChild detaches child from this node.
// Panics if child.Parent != n.
func (n *Node) RemoveChild(child *Node) {
	if globalDebug {
		debugCheckDisposed(n, "RemoveChild (parent)")
	}
	if child.Parent != n {
		panic("stagehand: child's parent is not this node")
	}
	n.removeChildByPtr(child)
	child.Parent = nil
}

// RemoveFromParent detaches this node from its parent.
// No-op if this node has no parent.
func (n *Node) RemoveFromParent() {
	if n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
}

// Children returns the child list. The returned slice MUST NOT be mutated by the caller.
func (n *Node) Children() []*Node {
	return n.children
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// ChildAt returns the child at index, or nil when index is out of range.
func (n *Node) ChildAt(index int) *Node {
	if index < 0 || index >= len(n.children) {
		return nil
	}
	return n.children[index]
}

// ChildByName returns the first direct child named name.
func (n *Node) ChildByName(name string) *Node {
	for _, c := range n.children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// FindByName searches the subtree depth-first, including n itself.
func (n *Node) FindByName(name string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if c.Name == name {
			found = c
			return false
		}
		return true
	})
	return found
}

// FindInChildren returns the first strict descendant, in depth-first
// pre-order, for which match reports true.
func (n *Node) FindInChildren(match func(*Node) bool) *Node {
	for _, c := range n.children {
		if match(c) {
			return c
		}
		if found := c.FindInChildren(match); found != nil {
			return found
		}
	}
	return nil
}

// --- Controllers ---

// Controller returns the controller of the given type bound to n.
func (n *Node) Controller(typ string) Controller {
	return n.controllers[typ]
}

// Controllers returns the type→controller map. The returned map MUST NOT be
// mutated by the caller.
func (n *Node) Controllers() map[string]Controller {
	return n.controllers
}

func (n *Node) setController(typ string, c Controller) {
	if n.controllers == nil {
		n.controllers = make(map[string]Controller)
	}
	n.controllers[typ] = c
}

func (n *Node) clearController(typ string, c Controller) {
	if n.controllers[typ] == c {
		delete(n.controllers, typ)
	}
}

// --- Disposal ---

// Dispose removes this node from its parent, marks it as disposed,
// and recursively disposes all descendants. Controllers still bound to the
// subtree are disposed too; nodes owned by a World should be released with
// World.Unload so the registry is updated.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	n.RemoveFromParent()
	n.dispose()
}

func (n *Node) dispose() {
	n.disposed = true
	for _, child := range n.children {
		child.Parent = nil
		child.dispose()
	}
	for typ, c := range n.controllers {
		delete(n.controllers, typ)
		c.Dispose()
	}
	n.releasePayloads()
	n.children = nil
	n.Parent = nil
	n.UserData = nil
}

// releasePayloads drops GPU-side resources held by the node.
func (n *Node) releasePayloads() {
	if n.Material != nil {
		n.Material.Dispose()
		n.Material = nil
	}
	if n.Geometry != nil {
		n.Geometry.Dispose()
		n.Geometry = nil
	}
	n.Skeleton = nil
	n.Light = nil
	n.Camera = nil
}

// IsDisposed returns true if this node has been disposed.
func (n *Node) IsDisposed() bool {
	return n.disposed
}

// --- Helpers ---

// isAncestor reports whether candidate is an ancestor of node.
func isAncestor(candidate, node *Node) bool {
	for p := node; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// removeChildByPtr removes child from n.children without clearing child.Parent.
// Uses copy+nil to avoid retaining a dangling pointer in the backing array.
func (n *Node) removeChildByPtr(child *Node) {
	for i, c := range n.children {
		if c == child {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			return
		}
	}
}

// subtree returns n and its descendants in pre-order.
func (n *Node) subtree() []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		out = append(out, c)
		return true
	})
	return out
}
