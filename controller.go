package stagehand

import (
	"fmt"
	"sort"
)

// Controller is a behavior attached to a node and updated every frame.
// Implementations embed ControllerBase, which supplies Bind, the accessors,
// and no-op Update/Dispose.
type Controller interface {
	AsControllerBase() *ControllerBase
	Name() string
	Type() string
	Node() *Node
	Bind(n *Node)
	Configure(cfg ControllerConfig, cb *Callbacks) error
	Update(dt float32)
	PostMessage(msg Message, cb *Callbacks) error
	Dispose()
}

// ControllerFactory constructs an unbound controller.
type ControllerFactory func() Controller

// ControllerConfig is the raw configuration record of a controller.
type ControllerConfig map[string]any

// Decode decodes the record into out using the package decode hooks.
func (c ControllerConfig) Decode(out any) error {
	if c == nil {
		return nil
	}
	if err := decodeInto(map[string]any(c), out); err != nil {
		return configErrorf("controller config: %v", err)
	}
	return nil
}

// ControllerBase holds the fields every controller shares. The node pointer
// is non-owning.
type ControllerBase struct {
	name  string
	typ   string
	node  *Node
	world *World

	registered bool
}

// AsControllerBase returns b.
func (b *ControllerBase) AsControllerBase() *ControllerBase { return b }

// Name returns the controller's name from its control spec.
func (b *ControllerBase) Name() string { return b.name }

// Type returns the registered type name.
func (b *ControllerBase) Type() string { return b.typ }

// Node returns the bound node, or nil once unbound.
func (b *ControllerBase) Node() *Node { return b.node }

// World returns the owning World.
func (b *ControllerBase) World() *World { return b.world }

// Bind sets the node the controller drives. Bind(nil) unbinds.
func (b *ControllerBase) Bind(n *Node) { b.node = n }

// Update does nothing.
func (b *ControllerBase) Update(dt float32) {}

// PostMessage rejects every message.
func (b *ControllerBase) PostMessage(msg Message, cb *Callbacks) error {
	return configErrorf("controller %q does not accept message %q", b.typ, msg.Message)
}

// Dispose does nothing.
func (b *ControllerBase) Dispose() {}

// ControllerRegistry maps type names to factories and keeps the ordered list
// of live controllers.
type ControllerRegistry struct {
	world     *World
	factories map[string]ControllerFactory
	live      []Controller
	scratch   []Controller
	metrics   *Metrics
}

func newControllerRegistry(w *World, m *Metrics) *ControllerRegistry {
	r := &ControllerRegistry{
		world:     w,
		factories: make(map[string]ControllerFactory),
		metrics:   m,
	}
	r.Register("animation", func() Controller { return &AnimationController{} })
	r.Register("orbit", func() Controller { return newOrbitController() })
	return r
}

// Register installs a factory for typ, replacing any previous one.
func (r *ControllerRegistry) Register(typ string, f ControllerFactory) {
	r.factories[typ] = f
}

// Types returns the registered type names, sorted.
func (r *ControllerRegistry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Attach creates a controller of type typ on node, replacing the node's
// existing controller of that type. When the new controller fails to
// configure, the existing one is left in place.
func (r *ControllerRegistry) Attach(node *Node, typ, name string, cfg ControllerConfig, spec *ControllerSpec, cb *Callbacks) (Controller, error) {
	if node == nil {
		return nil, configErrorf("attach %q controller: nil node", typ)
	}
	factory, ok := r.factories[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrConfiguration, ErrUnknownControllerType, typ)
	}

	c := factory()
	base := c.AsControllerBase()
	base.name = name
	base.typ = typ
	base.world = r.world
	c.Bind(node)

	// The node keeps its current controller until the new one configures.
	if err := c.Configure(cfg, cb); err != nil {
		c.Bind(nil)
		c.Dispose()
		return nil, err
	}

	if old := node.Controller(typ); old != nil {
		r.release(old, cb)
	}
	node.setController(typ, c)
	base.registered = true
	r.live = append(r.live, c)
	r.metrics.setControllers(len(r.live))
	cb.controllerApplied(ControllerEvent{Node: node, Controller: c, Spec: spec})
	return c, nil
}

// Detach removes c from the live list by identity. It reports false when c
// is not registered.
func (r *ControllerRegistry) Detach(c Controller) bool {
	for i, l := range r.live {
		if l == c {
			copy(r.live[i:], r.live[i+1:])
			r.live[len(r.live)-1] = nil
			r.live = r.live[:len(r.live)-1]
			c.AsControllerBase().registered = false
			r.metrics.setControllers(len(r.live))
			return true
		}
	}
	return false
}

// release detaches, unbinds and disposes c, then reports the removal.
func (r *ControllerRegistry) release(c Controller, cb *Callbacks) {
	node := c.Node()
	r.Detach(c)
	if node != nil {
		node.clearController(c.Type(), c)
	}
	c.Bind(nil)
	c.Dispose()
	cb.controllerRemoved(ControllerEvent{Node: node, Controller: c})
}

// UpdateAll updates a snapshot of the live list. Controllers detached during
// the pass are skipped.
func (r *ControllerRegistry) UpdateAll(dt float32) {
	r.scratch = append(r.scratch[:0], r.live...)
	for _, c := range r.scratch {
		if !c.AsControllerBase().registered {
			continue
		}
		c.Update(dt)
	}
	clear(r.scratch)
}

// Len returns the number of live controllers.
func (r *ControllerRegistry) Len() int {
	return len(r.live)
}

// Controllers returns a copy of the live list in attach order.
func (r *ControllerRegistry) Controllers() []Controller {
	return append([]Controller(nil), r.live...)
}

// Find returns the first live controller named name.
func (r *ControllerRegistry) Find(name string) Controller {
	for _, c := range r.live {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// Contains reports whether c is live.
func (r *ControllerRegistry) Contains(c Controller) bool {
	return c != nil && c.AsControllerBase().registered
}
