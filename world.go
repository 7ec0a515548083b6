package stagehand

import (
	"context"
	"log/slog"
	"time"

	"github.com/phanxgames/stagehand/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultInboxSize = 64

// Option configures a World.
type Option func(*World)

// WithLogger sets the World logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(w *World) {
		if l != nil {
			w.log = l
		}
	}
}

// WithLoader registers the loader factory for format.
func WithLoader(format Format, f LoaderFactory) Option {
	return func(w *World) {
		w.loaderFactories[format] = f
	}
}

// WithFetcher replaces the default file/http fetcher.
func WithFetcher(f Fetcher) Option {
	return func(w *World) {
		w.fetcher = f
	}
}

// WithAssetRoot sets the directory relative asset references resolve
// against. Ignored when WithFetcher is given.
func WithAssetRoot(root string) Option {
	return func(w *World) {
		w.assetRoot = root
	}
}

// WithCrossfadeDuration sets the ACT blend time in seconds.
func WithCrossfadeDuration(d float32) Option {
	return func(w *World) {
		w.crossfade = d
	}
}

// WithMetrics registers the World's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(w *World) {
		w.metricsReg = reg
	}
}

// WithInboxSize sets the completion inbox capacity.
func WithInboxSize(n int) Option {
	return func(w *World) {
		w.inboxSize = n
	}
}

// WithRenderer registers a renderer factory under name.
func WithRenderer(name string, f RendererFactory) Option {
	return func(w *World) {
		w.renderers[name] = f
	}
}

// World owns the scene tree, the camera and renderer singletons, the
// controller registry and the loader cache.
//
// A World is not safe for concurrent use. Execute, Update, Run and the
// accessors must be called from one goroutine, the orchestration goroutine;
// other goroutines reach the World through Do.
type World struct {
	scene     *Node
	camera    *Node
	renderer  Renderer
	renderers map[string]RendererFactory

	registry *ControllerRegistry
	loaders  *LoaderCache
	fetcher  Fetcher
	metrics  *Metrics
	log      *slog.Logger

	crossfade float32

	inbox     chan func()
	ctx       context.Context
	cancel    context.CancelFunc
	pending   int
	settleSeq uint64
	debug     bool
	disposed  bool

	// construction-only
	assetRoot       string
	inboxSize       int
	metricsReg      prometheus.Registerer
	loaderFactories map[Format]LoaderFactory
}

// NewWorld creates a World with an empty scene and no camera or renderer.
func NewWorld(opts ...Option) (*World, error) {
	w := &World{
		renderers: map[string]RendererFactory{
			"headless": func() Renderer { return NewHeadlessRenderer() },
			"default":  func() Renderer { return NewHeadlessRenderer() },
		},
		log:             logging.NewNop(),
		crossfade:       DefaultCrossfadeDuration,
		inboxSize:       defaultInboxSize,
		loaderFactories: make(map[Format]LoaderFactory),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.metricsReg != nil {
		m, err := NewMetrics(w.metricsReg)
		if err != nil {
			return nil, err
		}
		w.metrics = m
	}
	if w.fetcher == nil {
		w.fetcher = NewFileFetcher(w.assetRoot)
	}
	if w.inboxSize <= 0 {
		w.inboxSize = defaultInboxSize
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.inbox = make(chan func(), w.inboxSize)
	w.scene = NewNode("scene", NodeTypeScene)
	w.registry = newControllerRegistry(w, w.metrics)
	w.loaders = newLoaderCache(w.fetcher, newTextureLoader(w.ctx, w.fetcher, w.async))
	for f, factory := range w.loaderFactories {
		w.loaders.Register(f, factory)
	}
	w.loaderFactories = nil
	return w, nil
}

// Scene returns the scene root.
func (w *World) Scene() *Node { return w.scene }

// Camera returns the camera node, or nil before setup.
func (w *World) Camera() *Node { return w.camera }

// Renderer returns the active renderer, or nil before setup.
func (w *World) Renderer() Renderer { return w.renderer }

// Registry returns the controller registry.
func (w *World) Registry() *ControllerRegistry { return w.registry }

// Loaders returns the loader cache.
func (w *World) Loaders() *LoaderCache { return w.loaders }

// Logger returns the World logger.
func (w *World) Logger() *slog.Logger { return w.log }

// Pending returns the number of background tasks not yet applied.
func (w *World) Pending() int { return w.pending }

// RegisterController installs a controller factory for typ.
func (w *World) RegisterController(typ string, f ControllerFactory) {
	w.registry.Register(typ, f)
}

// RegisterRenderer installs a renderer factory for name.
func (w *World) RegisterRenderer(name string, f RendererFactory) {
	w.renderers[name] = f
}

// RegisterLoader installs a loader factory for format.
func (w *World) RegisterLoader(format Format, f LoaderFactory) {
	w.loaders.Register(format, f)
}

// Get returns the root object called name: "#scene", "#camera" or
// "#renderer". Anything else is nil.
func (w *World) Get(name string) Target {
	switch name {
	case RootScene:
		return nodeTarget(w.scene)
	case RootCamera:
		return nodeTarget(w.camera)
	case RootRenderer:
		if w.renderer != nil {
			return w.renderer
		}
	}
	return nil
}

// Find returns the first scene node called name, or else the first live
// controller called name.
func (w *World) Find(name string) Target {
	if n := w.scene.FindByName(name); n != nil {
		return n
	}
	if c := w.registry.Find(name); c != nil {
		return c
	}
	return nil
}

// QueryTarget resolves q from start, or from the World roots when start is
// nil.
func (w *World) QueryTarget(q Query, start *Node) Target {
	return Resolve(q, start, w.Get)
}

// Query resolves q and returns the result only when it is a node.
func (w *World) Query(q Query, start *Node) *Node {
	n, _ := w.QueryTarget(q, start).(*Node)
	return n
}

// PostMessage delivers msg to the controller at where.
func (w *World) PostMessage(where Query, msg Message, cb *Callbacks) error {
	c, err := w.controllerAt(where)
	if err != nil {
		return err
	}
	msg.Index = 0
	return c.PostMessage(msg, cb)
}

// PostMessages delivers msgs in order to the controller at where, numbering
// them by position. It stops at the first error.
func (w *World) PostMessages(where Query, msgs []Message, cb *Callbacks) error {
	c, err := w.controllerAt(where)
	if err != nil {
		return err
	}
	for i := range msgs {
		msgs[i].Index = i
		if err := c.PostMessage(msgs[i], cb); err != nil {
			return err
		}
	}
	return nil
}

func (w *World) controllerAt(where Query) (Controller, error) {
	c, ok := w.QueryTarget(where, nil).(Controller)
	if !ok || c == nil {
		return nil, configErrorf("no controller at %s", where)
	}
	return c, nil
}

// Resize forwards the new size to the renderer and updates the aspect of a
// perspective camera.
func (w *World) Resize(width, height int) {
	if w.renderer != nil {
		w.renderer.Resize(width, height)
	}
	if w.camera != nil && w.camera.Camera != nil && height > 0 {
		w.camera.Camera.Aspect = float64(width) / float64(height)
	}
}

// Update applies completed background work, advances every controller by
// dt seconds and renders one frame.
func (w *World) Update(dt float32) error {
	if w.disposed {
		return nil
	}
	start := time.Now()
	n := w.drain()
	drained := time.Now()
	w.registry.UpdateAll(dt)
	updated := time.Now()
	var err error
	if w.renderer != nil && w.camera != nil {
		err = w.renderer.Render(w.scene, w.camera)
	}
	if w.debug {
		w.debugFrame(frameStats{
			drainTime:   drained.Sub(start),
			updateTime:  updated.Sub(drained),
			renderTime:  time.Since(updated),
			messages:    n,
			controllers: w.registry.Len(),
		})
	}
	return err
}

// Run calls Update every tick until ctx is done, applying background work
// and Do requests as they arrive.
func (w *World) Run(ctx context.Context, tick time.Duration) error {
	t := time.NewTicker(tick)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.ctx.Done():
			return nil
		case fn := <-w.inbox:
			fn()
		case now := <-t.C:
			dt := float32(now.Sub(last).Seconds())
			last = now
			if err := w.Update(dt); err != nil {
				w.log.Error("frame failed", slog.Any("error", err))
			}
		}
	}
}

// Do runs fn on the orchestration goroutine and waits for its result. The
// World must be driven by Run (or Update, Settle) on another goroutine;
// calling Do from the orchestration goroutine deadlocks.
func (w *World) Do(ctx context.Context, fn func(*World) error) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	select {
	case w.inbox <- func() { done <- fn(w) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.ctx.Done():
		return w.ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-w.ctx.Done():
		return w.ctx.Err()
	}
}

// Settle applies background work until none is pending.
func (w *World) Settle(ctx context.Context) error {
	for w.pending > 0 {
		if err := w.pump(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Dispose releases every controller, the scene, the camera and the
// renderer. In-flight loads are abandoned.
func (w *World) Dispose() {
	if w.disposed {
		return
	}
	w.disposed = true
	w.cancel()
	for _, c := range w.registry.Controllers() {
		w.registry.release(c, nil)
	}
	w.scene.Dispose()
	if w.camera != nil {
		w.camera.Dispose()
		w.camera = nil
	}
	if w.renderer != nil {
		w.renderer.Dispose()
		w.renderer = nil
	}
}

// IsDisposed reports whether Dispose was called.
func (w *World) IsDisposed() bool { return w.disposed }

// post hands fn to the orchestration goroutine. It gives up once the World
// is disposed.
func (w *World) post(fn func()) {
	select {
	case w.inbox <- fn:
	case <-w.ctx.Done():
	}
}

// async runs work on a new goroutine and applies the closure it returns on
// the orchestration goroutine. The World counts it as pending until then.
func (w *World) async(work func() func()) {
	w.pending++
	go func() {
		apply := work()
		w.post(func() {
			w.pending--
			if apply != nil {
				apply()
			}
		})
	}()
}

// pump blocks until one closure arrives and runs it.
func (w *World) pump(ctx context.Context) error {
	select {
	case fn := <-w.inbox:
		fn()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.ctx.Done():
		return w.ctx.Err()
	}
}

// drain runs every closure already queued and returns how many ran.
func (w *World) drain() int {
	n := 0
	for {
		select {
		case fn := <-w.inbox:
			fn()
			n++
		default:
			return n
		}
	}
}
