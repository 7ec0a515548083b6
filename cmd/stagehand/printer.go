package main

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"

	"github.com/phanxgames/stagehand"
)

// Event colors.
const (
	colorSetup  = "#818cf8"
	colorLoad   = "#34d399"
	colorUnload = "#fbbf24"
	colorCtrl   = "#c084fc"
	colorAnim   = "#f472b6"
	colorError  = "#f87171"
	colorMuted  = "#9ca3af"
)

// printer writes one colored line per World callback.
type printer struct {
	out *termenv.Output
}

func newPrinter(w io.Writer, opts ...termenv.OutputOption) *printer {
	return &printer{out: termenv.NewOutput(w, opts...)}
}

func (p *printer) line(color, kind, format string, args ...any) {
	label := p.out.String(fmt.Sprintf("%-16s", kind)).Foreground(p.out.Color(color))
	fmt.Fprintf(p.out, "%s %s\n", label, fmt.Sprintf(format, args...))
}

func name(n *stagehand.Node) string {
	if n == nil {
		return "-"
	}
	return n.Name
}

// callbacks returns World callbacks printing through p.
func (p *printer) callbacks() *stagehand.Callbacks {
	return &stagehand.Callbacks{
		OnWorldSetup: func(e stagehand.WorldSetupEvent) {
			w, h := 0, 0
			if e.Renderer != nil {
				w, h = e.Renderer.Size()
			}
			p.line(colorSetup, "setup", "camera=%s renderer=%dx%d", name(e.Camera), w, h)
		},
		OnNodePending: func(e stagehand.PendingEvent) {
			p.line(colorMuted, "pending", "%s (%s) under %s", e.Spec.Name, e.Spec.Src, name(e.Parent))
		},
		OnNodeLoaded: func(e stagehand.NodeEvent) {
			p.line(colorLoad, "loaded", "%s %s under %s", e.Node.Type, name(e.Node), name(e.Parent))
		},
		OnNodeUnloaded: func(e stagehand.NodeEvent) {
			p.line(colorUnload, "unloaded", "%s", name(e.Node))
		},
		OnNodeAdded: func(e stagehand.AddedEvent) {
			p.line(colorLoad, "added", "%s into %s", name(e.Sub), name(e.Node))
		},
		OnNodeAnimationAdded: func(e stagehand.AnimationAddedEvent) {
			p.line(colorAnim, "animations", "%s now has %d clips", name(e.Node), len(e.Clips))
		},
		OnNodeError: func(e stagehand.ErrorEvent) {
			p.line(colorError, "error", "%v", e.Err)
		},
		OnControllerApplied: func(e stagehand.ControllerEvent) {
			p.line(colorCtrl, "controller", "%s %q on %s", e.Controller.Type(), e.Controller.Name(), name(e.Node))
		},
		OnControllerRemoved: func(e stagehand.ControllerEvent) {
			p.line(colorUnload, "released", "%s %q", e.Controller.Type(), e.Controller.Name())
		},
		OnAnimationStarted: func(e stagehand.AnimationEvent) {
			p.line(colorAnim, "started", "%s on %s", e.Clip, name(e.Controller.Node()))
		},
		OnAnimationFinished: func(e stagehand.AnimationEvent) {
			p.line(colorAnim, "finished", "%s on %s", e.Clip, name(e.Controller.Node()))
		},
	}
}

// summary prints the final scene counts.
func (p *printer) summary(w *stagehand.World) {
	nodes := 0
	w.Scene().Walk(func(*stagehand.Node) bool {
		nodes++
		return true
	})
	p.line(colorMuted, "scene", "%d nodes, %d controllers", nodes-1, w.Registry().Len())
	if r, ok := w.Renderer().(interface{ Stats() stagehand.FrameStats }); ok {
		st := r.Stats()
		p.line(colorMuted, "frames", "%d rendered, last: %d meshes, %d lights", st.Frame, st.Meshes, st.Lights)
	}
}
