package stagehand

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/jinzhu/copier"
)

var errAnchorUnloaded = errors.New("stagehand: anchor node was unloaded before the load completed")

// LoadTask is the handle of one asynchronous asset load. It is settled on
// the orchestration goroutine once the asset was attached or the load
// failed.
type LoadTask struct {
	Source string
	Format Format

	node    *Node
	err     error
	settled bool
	seq     uint64
	await   bool
}

// Settled reports whether the task finished.
func (t *LoadTask) Settled() bool { return t.settled }

// Node returns the attached node of a successful model load.
func (t *LoadTask) Node() *Node { return t.node }

// Err returns the failure of a settled task.
func (t *LoadTask) Err() error { return t.err }

func (w *World) settle(t *LoadTask, n *Node, err error) {
	w.settleSeq++
	t.node = n
	t.err = err
	t.seq = w.settleSeq
	t.settled = true
}

// dispatch starts loading ref with the loader for format and hands the
// result to done on the orchestration goroutine.
func (w *World) dispatch(ref string, format Format, await bool, done func(*LoadTask, *Asset, error)) (*LoadTask, error) {
	l, err := w.loaders.Loader(format)
	if err != nil {
		return nil, err
	}
	task := &LoadTask{Source: ref, Format: format, await: await}
	ctx := w.ctx
	start := time.Now()
	w.async(func() func() {
		asset, err := l.Load(ctx, ref)
		return func() {
			w.metrics.recordLoad(format, time.Since(start), err)
			if err != nil {
				err = &LoadError{Source: ref, Format: format, Err: err}
				w.log.Warn("load failed", slog.String("src", ref), slog.Any("error", err))
			}
			done(task, asset, err)
		}
	})
	return task, nil
}

// join pumps the inbox until every task settled and returns the failure
// that settled first.
func (w *World) join(ctx context.Context, tasks []*LoadTask) error {
	for _, t := range tasks {
		for !t.settled {
			if err := w.pump(ctx); err != nil {
				return err
			}
		}
	}
	var first *LoadTask
	for _, t := range tasks {
		if t.err != nil && (first == nil || t.seq < first.seq) {
			first = t
		}
	}
	if first != nil {
		return first.err
	}
	return nil
}

// loadTo attaches the nodes of specs under parent in order. Synchronous
// types are built in place; model nodes are dispatched, and with await the
// call waits for them.
func (w *World) loadTo(ctx context.Context, parent *Node, specs []NodeSpec, await bool, cb *Callbacks) error {
	var joined []*LoadTask
	for i := range specs {
		spec := &specs[i]
		if spec.Type != "model" {
			if err := w.loadStatic(ctx, parent, spec, i, await, cb); err != nil {
				return err
			}
			continue
		}
		task, err := w.loadModel(parent, spec, i, await, cb)
		if err != nil {
			return err
		}
		if await {
			joined = append(joined, task)
		}
	}
	return w.join(ctx, joined)
}

func (w *World) loadStatic(ctx context.Context, parent *Node, spec *NodeSpec, index int, await bool, cb *Callbacks) error {
	n, err := newStaticNode(spec, index, w.loaders)
	if err != nil {
		return err
	}
	parent.AddChild(n)
	if len(spec.Children) > 0 {
		if err := w.loadTo(ctx, n, spec.Children, await, cb); err != nil {
			return err
		}
	}
	if n.Geometry != nil {
		cb.materialLoaded(MaterialEvent{Node: n, Material: n.Material, Data: spec.Material, Index: index})
	}
	cb.nodeLoaded(NodeEvent{Parent: parent, Node: n, Spec: spec, Index: index})
	return nil
}

func (w *World) loadModel(parent *Node, spec *NodeSpec, index int, await bool, cb *Callbacks) (*LoadTask, error) {
	format, err := DetectFormat(spec.Src, spec.Format)
	if err != nil {
		return nil, err
	}
	task, err := w.dispatch(spec.Src, format, await, func(task *LoadTask, asset *Asset, err error) {
		w.completeModel(task, parent, spec, index, asset, err, cb)
	})
	if err != nil {
		return nil, err
	}
	cb.nodePending(PendingEvent{Task: task, Parent: parent, Spec: spec, Index: index})
	return task, nil
}

func (w *World) completeModel(task *LoadTask, parent *Node, spec *NodeSpec, index int, asset *Asset, err error, cb *Callbacks) {
	if err == nil && parent.IsDisposed() {
		err = &LoadError{Source: task.Source, Format: task.Format, Err: errAnchorUnloaded}
	}
	if err != nil {
		cb.nodeError(ErrorEvent{Err: err, Parent: parent, NodeSpec: spec, Index: index})
		w.settle(task, nil, err)
		return
	}

	n := asset.Root
	if n == nil {
		n = NewGroup("")
	}
	n.Template = &Template{Source: task.Source, Format: task.Format, Clips: asset.Clips, Metadata: asset.Metadata}
	n.Name = spec.Name
	if n.Name == "" {
		n.Name = strconv.Itoa(index)
	}
	configureNode(n, spec)
	parent.AddChild(n)
	n.CastShadow = spec.CastShadow
	n.ReceiveShadow = spec.ReceiveShadow
	w.applyMeshParams(n, spec.CastShadow, spec.ReceiveShadow, spec.Material)

	if len(spec.Children) > 0 {
		if err := w.loadTo(w.ctx, n, spec.Children, task.await, cb); err != nil {
			cb.nodeError(ErrorEvent{Err: err, Parent: parent, NodeSpec: spec, Index: index})
			w.settle(task, n, err)
			return
		}
	}
	cb.nodeLoaded(NodeEvent{Parent: parent, Node: n, Spec: spec, Index: index})
	w.settle(task, n, nil)
}

// applyMeshParams sets shadow flags on every mesh under root and, when
// material is given, merges its parameters into the mesh materials.
func (w *World) applyMeshParams(root *Node, cast, receive bool, material map[string]any) {
	root.Walk(func(n *Node) bool {
		if n.Type.IsMesh() && n.Material != nil {
			n.CastShadow = cast
			n.ReceiveShadow = receive
			if material != nil {
				n.Material.applyParams(material, w.loaders.Textures())
			}
		}
		return true
	})
}

// unload detaches and disposes the targets of specs, which carry only a
// where query each.
func (w *World) unload(specs []NodeSpec, cb *Callbacks) error {
	for i := range specs {
		spec := &specs[i]
		switch t := w.QueryTarget(spec.Where, nil).(type) {
		case *Node:
			if t == w.scene || t == w.camera {
				return configErrorf("cannot unload root %s", spec.Where)
			}
			parent := t.Parent
			w.unloadNode(t, cb)
			cb.nodeUnloaded(NodeEvent{Parent: parent, Node: t, Spec: spec, Index: i})
		case Controller:
			if !w.registry.Contains(t) {
				return configErrorf("controller at %s is not registered", spec.Where)
			}
			w.registry.release(t, cb)
		case nil:
			return configErrorf("invalid node %s", spec.Where)
		default:
			return configErrorf("cannot unload %T at %s", t, spec.Where)
		}
	}
	return nil
}

// unloadNode detaches the whole subtree before disposing any of it.
func (w *World) unloadNode(n *Node, cb *Callbacks) {
	nodes := n.subtree()
	for _, s := range nodes {
		s.RemoveFromParent()
	}
	for _, s := range nodes {
		for _, ctrl := range s.Controllers() {
			w.registry.release(ctrl, cb)
		}
		s.releasePayloads()
		s.disposed = true
		s.UserData = nil
	}
}

// add loads spec.Src and splices the node at spec.Where inside it into
// dest.
func (w *World) add(ctx context.Context, dest *Node, spec *AssetSpec, cb *Callbacks) error {
	format, err := DetectFormat(spec.Src, spec.Format)
	if err != nil {
		return err
	}
	task, err := w.dispatch(spec.Src, format, true, func(task *LoadTask, asset *Asset, err error) {
		if err == nil && dest.IsDisposed() {
			err = &LoadError{Source: task.Source, Format: task.Format, Err: errAnchorUnloaded}
		}
		if err != nil {
			cb.nodeError(ErrorEvent{Err: err, Parent: dest, AssetSpec: spec})
			w.settle(task, nil, err)
			return
		}
		sub := asset.Root
		if sub != nil && !spec.Where.IsZero() {
			sub, _ = Resolve(spec.Where, asset.Root, nil).(*Node)
		}
		if sub == nil {
			err := &LoadError{Source: task.Source, Format: task.Format, Err: configErrorf("no node at %s", spec.Where)}
			cb.nodeError(ErrorEvent{Err: err, Parent: dest, AssetSpec: spec})
			w.settle(task, nil, err)
			return
		}
		if spec.Tag != "" {
			sub.Tag = spec.Tag
		}
		dest.AddChild(sub)
		if sub.Skeleton != nil {
			if sk := dest.FindInChildren(func(n *Node) bool { return n.Skeleton != nil && !isAncestor(sub, n) }); sk != nil {
				sub.Skeleton.Bones = append([]*Node(nil), sk.Skeleton.Bones...)
			}
		}
		if sub.Type.IsMesh() && sub.Material != nil {
			sub.CastShadow = spec.CastShadow
			sub.ReceiveShadow = spec.ReceiveShadow
			if spec.Material != nil {
				sub.Material.applyParams(spec.Material, w.loaders.Textures())
			}
		}
		cb.nodeAdded(AddedEvent{Node: dest, Sub: sub, Spec: spec})
		w.settle(task, sub, nil)
	})
	if err != nil {
		return err
	}
	return w.joinSilently(ctx, task)
}

// animate loads spec.Src and appends deep copies of its clips to dest's
// template.
func (w *World) animate(ctx context.Context, dest *Node, spec *AssetSpec, cb *Callbacks) error {
	format, err := DetectFormat(spec.Src, spec.Format)
	if err != nil {
		return err
	}
	task, err := w.dispatch(spec.Src, format, true, func(task *LoadTask, asset *Asset, err error) {
		if err != nil {
			cb.nodeError(ErrorEvent{Err: err, Parent: dest, AssetSpec: spec})
			w.settle(task, nil, err)
			return
		}
		clips := assetClips(asset)
		if dest.Template == nil {
			dest.Template = &Template{}
		}
		for _, c := range clips {
			var dup Clip
			if err := copier.CopyWithOption(&dup, c, copier.Option{DeepCopy: true}); err != nil {
				err = &LoadError{Source: task.Source, Format: task.Format, Err: err}
				cb.nodeError(ErrorEvent{Err: err, Parent: dest, AssetSpec: spec})
				w.settle(task, nil, err)
				return
			}
			for dest.Template.Clip(dup.Name) != nil {
				dup.Name += "_Copy"
			}
			dest.Template.Clips = append(dest.Template.Clips, &dup)
		}
		cb.nodeAnimationAdded(AnimationAddedEvent{Node: dest, Clips: dest.Template.Clips, Spec: spec})
		w.settle(task, dest, nil)
	})
	if err != nil {
		return err
	}
	return w.joinSilently(ctx, task)
}

// assetClips returns the asset's own clips, or those of the first child of
// its root whose template carries any.
func assetClips(a *Asset) []*Clip {
	if len(a.Clips) > 0 || a.Root == nil {
		return a.Clips
	}
	for _, c := range a.Root.children {
		if c.Template != nil && len(c.Template.Clips) > 0 {
			return c.Template.Clips
		}
	}
	return nil
}

// joinSilently waits for t; its failure was already reported through
// OnNodeError. Only a cancelled wait is returned.
func (w *World) joinSilently(ctx context.Context, t *LoadTask) error {
	for !t.settled {
		if err := w.pump(ctx); err != nil {
			return err
		}
	}
	return nil
}
