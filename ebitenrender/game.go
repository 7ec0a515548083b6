package ebitenrender

import (
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/phanxgames/stagehand"
	"github.com/phanxgames/stagehand/internal/logging"
)

// Game drives a World from the ebiten loop. Update advances the World by
// one tick; Draw presents the Renderer's last frame.
//
// F3 toggles the FPS overlay and F12 queues a screenshot. With OrbitInput
// set, mouse drags and the wheel drive the camera's orbit controller.
type Game struct {
	World    *stagehand.World
	Renderer *Renderer

	// Startup runs on the first Update, once the Renderer reports support.
	// Returning an error stops the loop.
	Startup func(w *stagehand.World) error

	ShowFPS       bool
	OrbitInput    bool
	ScreenshotDir string

	log     *slog.Logger
	input   *orbitInput
	started bool
	fps     fpsOverlay
	shots   []string
	outW    int
	outH    int
}

// NewGame returns a Game for w. Register r with the World before running
// so setup commands can select it:
//
//	r := ebitenrender.New()
//	w, _ := stagehand.NewWorld(stagehand.WithRenderer(ebitenrender.Type, r.Factory()))
//	g := ebitenrender.NewGame(w, r)
func NewGame(w *stagehand.World, r *Renderer) *Game {
	log := logging.NewNop()
	if w != nil {
		log = w.Logger()
	}
	return &Game{
		World:         w,
		Renderer:      r,
		OrbitInput:    true,
		ScreenshotDir: "screenshots",
		log:           log,
		input:         newOrbitInput(),
	}
}

// Factory returns a RendererFactory that always hands out r, so the Game
// presents whatever the World renders.
func (r *Renderer) Factory() stagehand.RendererFactory {
	return func() stagehand.Renderer {
		r.disposed = false
		return r
	}
}

// Screenshot queues a labeled screenshot to be captured at the end of the
// next Draw. The PNG is written to ScreenshotDir with a timestamped name.
func (g *Game) Screenshot(label string) {
	g.shots = append(g.shots, label)
}

// Update implements ebiten.Game.
func (g *Game) Update() error {
	g.Renderer.running = true
	if !g.started {
		g.started = true
		if g.Startup != nil {
			if err := g.Startup(g.World); err != nil {
				return err
			}
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF3) {
		g.ShowFPS = !g.ShowFPS
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		g.Screenshot("f12")
	}
	if g.OrbitInput {
		g.input.update(g)
	}

	dt := float32(1) / float32(ebiten.TPS())
	if g.ShowFPS {
		g.fps.update(dt, g.Renderer)
	}
	if err := g.World.Update(dt); err != nil {
		g.log.Error("frame failed", slog.Any("error", err))
	}
	return nil
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	g.Renderer.present(screen)
	if g.ShowFPS {
		g.fps.draw(screen)
	}
	g.flushScreenshots(screen)
}

// Layout implements ebiten.Game. A window resize is forwarded to the World
// so the renderer and the camera aspect follow it.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != g.outW || outsideHeight != g.outH {
		g.outW, g.outH = outsideWidth, outsideHeight
		g.World.Resize(outsideWidth, outsideHeight)
		g.Renderer.Resize(outsideWidth, outsideHeight)
	}
	return outsideWidth, outsideHeight
}

// WindowOptions configures Run.
type WindowOptions struct {
	Title         string
	Width, Height int
	TPS           int
}

// Run opens a resizable window and blocks until it is closed or the Game
// returns an error.
func Run(g *Game, opts WindowOptions) error {
	if opts.Width > 0 && opts.Height > 0 {
		ebiten.SetWindowSize(opts.Width, opts.Height)
		g.Renderer.Resize(opts.Width, opts.Height)
	}
	if opts.Title != "" {
		ebiten.SetWindowTitle(opts.Title)
	}
	if opts.TPS > 0 {
		ebiten.SetTPS(opts.TPS)
	}
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(g)
}
