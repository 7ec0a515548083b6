package ebitenrender

import (
	"errors"
	"math"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/stagehand"
)

// DefaultOrbitTarget is where mouse input is posted as orbit messages.
const DefaultOrbitTarget = "#camera.controllers.orbit"

const defaultDragDeadZone = 4.0 // pixels

// dragButton is the button held for the current drag.
type dragButton uint8

const (
	buttonNone dragButton = iota
	buttonRotate
	buttonPan
)

// dragTracker runs the press/move/release state machine for the mouse.
// A drag starts once the cursor leaves the dead zone around the press
// point; deltas are reported from then on.
type dragTracker struct {
	deadZone float64

	down     bool
	dragging bool
	button   dragButton
	startX   float64
	startY   float64
	lastX    float64
	lastY    float64
}

// step feeds one tick of cursor state and returns the movement since the
// last tick when a drag is in progress.
func (d *dragTracker) step(x, y float64, button dragButton) (dx, dy float64, active dragButton) {
	pressed := button != buttonNone
	switch {
	case pressed && !d.down:
		// Just pressed: keep the button for the whole interaction.
		d.down = true
		d.dragging = false
		d.button = button
		d.startX, d.startY = x, y
		d.lastX, d.lastY = x, y
		return 0, 0, buttonNone
	case !pressed && d.down:
		d.down = false
		d.dragging = false
		return 0, 0, buttonNone
	case pressed && d.down:
		defer func() { d.lastX, d.lastY = x, y }()
		if !d.dragging {
			if math.Hypot(x-d.startX, y-d.startY) <= d.deadZone {
				return 0, 0, buttonNone
			}
			d.dragging = true
		}
		return x - d.lastX, y - d.lastY, d.button
	}
	return 0, 0, buttonNone
}

// orbitInput turns mouse drags and the wheel into orbit messages: left
// drag rotates, right drag pans and the wheel dollies.
type orbitInput struct {
	where   stagehand.Query
	drag    dragTracker
	missing bool
}

func newOrbitInput() *orbitInput {
	return &orbitInput{
		where: stagehand.Path(DefaultOrbitTarget),
		drag:  dragTracker{deadZone: defaultDragDeadZone},
	}
}

// messages converts one tick of input into orbit messages for a view of
// the given height.
func (in *orbitInput) messages(x, y float64, button dragButton, wheel float64, height int) []stagehand.Message {
	var msgs []stagehand.Message
	dx, dy, active := in.drag.step(x, y, button)
	h := float64(max(height, 1))
	switch active {
	case buttonRotate:
		msgs = append(msgs, stagehand.Message{Message: stagehand.MessageRotate, Data: map[string]any{
			"dx": 2 * math.Pi * dx / h,
			"dy": 2 * math.Pi * dy / h,
		}})
	case buttonPan:
		msgs = append(msgs, stagehand.Message{Message: stagehand.MessagePan, Data: map[string]any{
			"dx": -dx / h,
			"dy": dy / h,
		}})
	}
	if wheel != 0 {
		msgs = append(msgs, stagehand.Message{Message: stagehand.MessageDolly, Data: map[string]any{
			"scale": math.Pow(0.95, wheel),
		}})
	}
	return msgs
}

// update reads the ebiten mouse state and posts the resulting messages.
// Input is dropped while no orbit controller is attached.
func (in *orbitInput) update(g *Game) {
	mx, my := ebiten.CursorPosition()
	button := buttonNone
	switch {
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft):
		button = buttonRotate
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight):
		button = buttonPan
	}
	_, wheel := ebiten.Wheel()

	for _, msg := range in.messages(float64(mx), float64(my), button, wheel, g.Renderer.Height) {
		err := g.World.PostMessage(in.where, msg, nil)
		switch {
		case err == nil:
			in.missing = false
		case errors.Is(err, stagehand.ErrConfiguration):
			if !in.missing {
				g.log.Debug("orbit input dropped", "where", in.where.String(), "error", err)
				in.missing = true
			}
		default:
			g.log.Warn("orbit input failed", "error", err)
		}
	}
}
