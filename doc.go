// Package stagehand builds and mutates a live 3D scene graph from a
// declarative command stream.
//
// A [World] owns the scene tree, the camera and renderer singletons, the
// controller registry and the asset loaders. Scripts are lists of commands
// (setup, load, unload, control, add, animate) written in JSON or YAML and
// run with [World.Execute].
//
// # Quick start
//
//	w, err := stagehand.NewWorld(stagehand.WithAssetRoot("assets"))
//	if err != nil {
//		return err
//	}
//	defer w.Dispose()
//
//	cmds, err := stagehand.ParseScript(script)
//	if err != nil {
//		return err
//	}
//	cb := &stagehand.Callbacks{
//		OnNodeError: func(e stagehand.ErrorEvent) { log.Println(e.Err) },
//	}
//	if err := w.Execute(ctx, cmds, cb); err != nil {
//		return err
//	}
//	for range frames {
//		w.Update(1.0 / 60)
//	}
//
// # Threading
//
// A World is driven by one goroutine, the orchestration goroutine: the one
// calling Execute, Update, Run and Settle. Asset loads run on background
// goroutines and never touch the tree; their results are applied on the
// orchestration goroutine the next time it drains the World inbox. Other
// goroutines reach the World with [World.Do].
//
// # Addressing
//
// Commands name nodes with a [Query]: a dotted path such as
// "#scene.Avatar.controllers.animation", a list of steps, or a selector
// like {byTag: enemy}. See [Resolve].
//
// # Controllers
//
// Controllers are behaviors bound to a node and updated every frame. The
// built-in types are "animation" ([AnimationController]) and "orbit"
// ([OrbitController]); more can be added with [World.RegisterController].
// Messages reach them through [World.PostMessage].
//
// Crossfades and the orbit focus glide use [gween].
//
// [gween]: https://github.com/tanema/gween
package stagehand
