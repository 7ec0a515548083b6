package ebitenrender

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// fpsOverlay shows FPS, TPS and the last frame counts in the top-left
// corner. The text is redrawn every ~0.5 seconds.
type fpsOverlay struct {
	img   *ebiten.Image
	since float32
	text  string
}

// fpsText formats the overlay contents.
func fpsText(fps, tps float64, meshes, segments int) string {
	return fmt.Sprintf("FPS: %.1f\nTPS: %.1f\nMeshes: %d\nEdges: %d", fps, tps, meshes, segments)
}

func (o *fpsOverlay) update(dt float32, r *Renderer) {
	o.since += dt
	if o.since < 0.5 && o.text != "" {
		return
	}
	o.since = 0
	o.text = fpsText(ebiten.ActualFPS(), ebiten.ActualTPS(), r.stats.Meshes, len(r.segments))
}

func (o *fpsOverlay) draw(screen *ebiten.Image) {
	if o.img == nil {
		// 120x64 fits four lines of debug text.
		o.img = ebiten.NewImage(120, 64)
	}
	o.img.Clear()
	// Semi-transparent background for readability
	o.img.Fill(color.RGBA{0, 0, 0, 128})
	ebitenutil.DebugPrint(o.img, o.text)
	screen.DrawImage(o.img, nil)
}
