package stagehand

import (
	"context"
	"fmt"
	"log/slog"
)

// Execute runs cmds in order. Disabled commands are skipped. The first
// failing command stops the run; its error names the command index and
// kind.
//
// ctx bounds only the waits of load (with await), add and animate; loads
// already dispatched keep running on the World.
func (w *World) Execute(ctx context.Context, cmds []Command, cb *Callbacks) error {
	for i := range cmds {
		c := &cmds[i]
		if !c.IsEnabled() {
			w.log.Debug("command skipped", slog.Int("index", i), slog.String("command", c.Kind))
			continue
		}
		err := w.execute(ctx, c, cb)
		w.metrics.recordCommand(c.Kind, err)
		if err != nil {
			return fmt.Errorf("command %d (%s): %w", i, c.Kind, err)
		}
	}
	return nil
}

func (w *World) execute(ctx context.Context, c *Command, cb *Callbacks) error {
	switch c.Kind {
	case CommandSetup:
		return w.setup(c, cb)
	case CommandLoad:
		return w.load(ctx, c, cb)
	case CommandUnload:
		return w.unloadCommand(c, cb)
	case CommandControl:
		return w.control(c, cb)
	case CommandAdd:
		return w.addCommand(ctx, c, cb)
	case CommandAnimate:
		return w.animateCommand(ctx, c, cb)
	}
	return configErrorf("unknown command %q", c.Kind)
}

// ExecuteScript parses a script and executes it.
func (w *World) ExecuteScript(ctx context.Context, data []byte, cb *Callbacks) error {
	cmds, err := ParseScript(data)
	if err != nil {
		return err
	}
	return w.Execute(ctx, cmds, cb)
}

// Setup runs a single setup command.
func (w *World) Setup(renderers []RendererSpec, camera *CameraSpec, cb *Callbacks) error {
	return w.setup(&Command{Kind: CommandSetup, Renderer: renderers, Camera: camera}, cb)
}

// Load runs a single load command.
func (w *World) Load(ctx context.Context, where Query, nodes []NodeSpec, await bool, cb *Callbacks) error {
	return w.load(ctx, &Command{Kind: CommandLoad, Where: where, Nodes: nodes, Await: await}, cb)
}

// Unload runs a single unload command.
func (w *World) Unload(nodes []NodeSpec, cb *Callbacks) error {
	return w.unloadCommand(&Command{Kind: CommandUnload, Nodes: nodes}, cb)
}

// Control runs a single control command.
func (w *World) Control(controllers []ControllerSpec, cb *Callbacks) error {
	return w.control(&Command{Kind: CommandControl, Controllers: controllers}, cb)
}

// Add runs a single add command.
func (w *World) Add(ctx context.Context, where Query, what *AssetSpec, cb *Callbacks) error {
	return w.addCommand(ctx, &Command{Kind: CommandAdd, Where: where, What: what}, cb)
}

// Animate runs a single animate command.
func (w *World) Animate(ctx context.Context, where Query, what *AssetSpec, cb *Callbacks) error {
	return w.animateCommand(ctx, &Command{Kind: CommandAnimate, Where: where, What: what}, cb)
}

// setup replaces the renderer and/or camera singletons. The first renderer
// candidate that reports support wins.
func (w *World) setup(c *Command, cb *Callbacks) error {
	if len(c.Renderer) > 0 {
		r, spec, err := w.pickRenderer(c.Renderer)
		if err != nil {
			return err
		}
		if err := r.Configure(spec); err != nil {
			r.Dispose()
			return err
		}
		if w.renderer != nil {
			w.renderer.Dispose()
		}
		w.renderer = r
		w.log.Info("renderer selected", slog.String("type", spec.Type))
	}
	if c.Camera != nil {
		aspect := 1.0
		if w.renderer != nil {
			if rw, rh := w.renderer.Size(); rh > 0 {
				aspect = float64(rw) / float64(rh)
			}
		}
		cam, err := newCamera(c.Camera, aspect)
		if err != nil {
			return err
		}
		if old := w.camera; old != nil {
			w.unloadNode(old, cb)
		}
		w.camera = cam
	}
	cb.worldSetup(WorldSetupEvent{Renderer: w.renderer, Camera: w.camera, Scene: w.scene})
	return nil
}

func (w *World) pickRenderer(specs []RendererSpec) (Renderer, RendererSpec, error) {
	for _, spec := range specs {
		factory, ok := w.renderers[spec.Type]
		if !ok {
			return nil, RendererSpec{}, configErrorf("unknown renderer type %q", spec.Type)
		}
		r := factory()
		if r.IsSupported() {
			return r, spec, nil
		}
		w.log.Debug("renderer not supported", slog.String("type", spec.Type))
		r.Dispose()
	}
	return nil, RendererSpec{}, ErrNoSupportedRenderer
}

func (w *World) load(ctx context.Context, c *Command, cb *Callbacks) error {
	if c.Nodes == nil {
		return configErrorf("load: no nodes")
	}
	anchor := w.Query(c.Where, nil)
	if anchor == nil {
		return configErrorf("load: invalid node %s", c.Where)
	}
	return w.loadTo(ctx, anchor, c.Nodes, c.Await, cb)
}

func (w *World) unloadCommand(c *Command, cb *Callbacks) error {
	if c.Nodes == nil {
		return configErrorf("unload: no nodes")
	}
	return w.unload(c.Nodes, cb)
}

func (w *World) control(c *Command, cb *Callbacks) error {
	if c.Controllers == nil {
		return configErrorf("control: no controllers")
	}
	for i := range c.Controllers {
		spec := &c.Controllers[i]
		node := w.Query(spec.Where, nil)
		if node == nil {
			return configErrorf("control: invalid node %s", spec.Where)
		}
		name := spec.Name
		if name == "" {
			name = fmt.Sprint(i)
		}
		if _, err := w.registry.Attach(node, spec.Type, name, spec.Config, spec, cb); err != nil {
			return err
		}
	}
	return nil
}

func (w *World) addCommand(ctx context.Context, c *Command, cb *Callbacks) error {
	if c.What == nil {
		return configErrorf("add: no what")
	}
	dest := w.Query(c.Where, nil)
	if dest == nil {
		return configErrorf("add: invalid node %s", c.Where)
	}
	return w.add(ctx, dest, c.What, cb)
}

func (w *World) animateCommand(ctx context.Context, c *Command, cb *Callbacks) error {
	if c.What == nil {
		return configErrorf("animate: no what")
	}
	dest := w.Query(c.Where, nil)
	if dest == nil {
		return configErrorf("animate: invalid node %s", c.Where)
	}
	return w.animate(ctx, dest, c.What, cb)
}
