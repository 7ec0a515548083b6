package stagehand

import (
	"log/slog"
	"maps"

	"cogentcore.org/core/math32"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Animation controller messages.
const (
	MessageGetActions = "GET_ACTIONS"
	MessageAct        = "ACT"
	MessageAdd        = "ADD"
	MessageStop       = "STOP"
)

// DefaultCrossfadeDuration is the blend time between two ACT clips.
const DefaultCrossfadeDuration float32 = 0.333

// LoopMode selects what an Action does at the end of its clip.
type LoopMode uint8

const (
	LoopOnce   LoopMode = iota // stop at the end and clamp to the last frame
	LoopRepeat                 // wrap around
)

// ActionState is the lifecycle state of an Action.
type ActionState uint8

const (
	ActionIdle     ActionState = iota // not contributing
	ActionPlaying                     // advancing
	ActionFinished                    // a once Action that reached its end, clamped
)

func (s ActionState) String() string {
	switch s {
	case ActionIdle:
		return "idle"
	case ActionPlaying:
		return "playing"
	case ActionFinished:
		return "finished"
	}
	return "unknown"
}

type actionEvent uint8

const (
	eventPlay actionEvent = iota
	eventFinish
	eventStop
)

// actionTransitions is the complete Action state machine. Events missing
// from a state's row are ignored.
var actionTransitions = map[ActionState]map[actionEvent]ActionState{
	ActionIdle: {
		eventPlay: ActionPlaying,
	},
	ActionPlaying: {
		eventPlay:   ActionPlaying,
		eventFinish: ActionFinished,
		eventStop:   ActionIdle,
	},
	ActionFinished: {
		eventPlay: ActionPlaying,
		eventStop: ActionIdle,
	},
}

// finishKind selects what happens when an Action finishes.
type finishKind uint8

const (
	finishNone finishKind = iota
	finishClearActive
	finishReturnTo
	finishLayered
)

// finishHandler is a one-shot reaction to an Action finishing.
type finishHandler struct {
	kind      finishKind
	prev      *Action
	timeScale float32
	cb        *Callbacks
}

// Action plays one clip on one AnimationController.
type Action struct {
	clip *Clip

	Loop              LoopMode
	ClampWhenFinished bool
	Weight            float32
	TimeScale         float32

	time       float32
	state      ActionState
	fadeWeight float32
	fade       *gween.Tween
	fadingOut  bool
	onFinish   finishHandler
}

func newAction(c *Clip) *Action {
	return &Action{
		clip:              c,
		Loop:              LoopOnce,
		ClampWhenFinished: true,
		Weight:            1,
		TimeScale:         1,
		fadeWeight:        1,
	}
}

// Clip returns the clip the Action plays.
func (a *Action) Clip() *Clip { return a.clip }

// Name returns the clip name.
func (a *Action) Name() string { return a.clip.Name }

// State returns the lifecycle state.
func (a *Action) State() ActionState { return a.state }

// Time returns the playhead in seconds.
func (a *Action) Time() float32 { return a.time }

// IsRunning reports whether the Action is advancing.
func (a *Action) IsRunning() bool { return a.state == ActionPlaying }

// EffectiveWeight is Weight scaled by the current fade, or 0 when the
// Action does not contribute.
func (a *Action) EffectiveWeight() float32 {
	switch a.state {
	case ActionPlaying:
	case ActionFinished:
		if !a.ClampWhenFinished {
			return 0
		}
	default:
		return 0
	}
	return a.Weight * a.fadeWeight
}

func (a *Action) fire(ev actionEvent) bool {
	next, ok := actionTransitions[a.state][ev]
	if !ok {
		return false
	}
	a.state = next
	return true
}

// play rewinds the Action and starts it at full fade weight.
func (a *Action) play(timeScale float32) {
	a.time = 0
	a.fade = nil
	a.fadingOut = false
	a.fadeWeight = 1
	if timeScale != 0 {
		a.TimeScale = timeScale
	}
	a.fire(eventPlay)
}

func (a *Action) stop() {
	a.fire(eventStop)
	a.fade = nil
	a.fadingOut = false
	a.fadeWeight = 1
	a.onFinish = finishHandler{}
}

func (a *Action) fadeIn(d float32) {
	a.fadingOut = false
	a.fadeWeight = 0
	a.fade = gween.New(0, 1, d, ease.Linear)
}

// fadeOut blends the Action to weight 0 and drops its finish handler; an
// Action on its way out never reports finishing.
func (a *Action) fadeOut(d float32) {
	a.onFinish = finishHandler{}
	a.fadingOut = true
	a.fade = gween.New(a.fadeWeight, 0, d, ease.Linear)
}

// step advances the Action by dt and reports whether it finished during
// this step.
func (a *Action) step(dt float32) bool {
	if a.fade != nil && a.state != ActionIdle {
		w, done := a.fade.Update(dt)
		a.fadeWeight = w
		if done {
			a.fade = nil
			if a.fadingOut {
				a.stop()
				return false
			}
		}
	}
	if a.state != ActionPlaying {
		return false
	}

	a.time += dt * a.TimeScale
	d := a.clip.Duration
	switch a.Loop {
	case LoopRepeat:
		if d > 0 {
			a.time = math32.Mod(a.time, d)
			if a.time < 0 {
				a.time += d
			}
		}
	default:
		if a.TimeScale >= 0 && a.time >= d {
			a.time = d
			return a.fire(eventFinish)
		}
		if a.TimeScale < 0 && a.time <= 0 {
			a.time = 0
			return a.fire(eventFinish)
		}
	}
	return false
}

// clipOverride configures loop mode and weight for one clip, or for every
// clip when Clip is "*".
type clipOverride struct {
	Clip   string  `mapstructure:"clip"`
	Loop   bool    `mapstructure:"loop"`
	Weight float32 `mapstructure:"weight"`
}

type animationConfig struct {
	Clips   []clipOverride `mapstructure:"clips"`
	Default *clipOverride  `mapstructure:"default"`
}

// AnimationController mixes the clips of its node's template. At most one
// Action is active, except while two crossfade.
type AnimationController struct {
	ControllerBase

	// Crossfade is the blend duration used by ACT.
	Crossfade float32

	actions map[string]*Action
	order   []*Action
	active  *Action

	rest     map[*Node]Transform
	finished []*Action
	accum    map[*Node]*blend
}

type blend struct {
	pos, rot, scale    math32.Vector3
	posW, rotW, scaleW float32
}

// Configure builds one Action per template clip and applies the overrides
// and the default clip.
func (c *AnimationController) Configure(cfg ControllerConfig, cb *Callbacks) error {
	var conf animationConfig
	if err := cfg.Decode(&conf); err != nil {
		return err
	}
	if c.Crossfade == 0 {
		c.Crossfade = DefaultCrossfadeDuration
		if w := c.World(); w != nil {
			c.Crossfade = w.crossfade
		}
	}

	c.actions = make(map[string]*Action)
	c.rest = make(map[*Node]Transform)
	c.accum = make(map[*Node]*blend)
	if t := c.Node().Template; t != nil {
		for _, clip := range t.Clips {
			if _, dup := c.actions[clip.Name]; dup {
				continue
			}
			a := newAction(clip)
			c.actions[clip.Name] = a
			c.order = append(c.order, a)
		}
	}

	for _, o := range conf.Clips {
		if o.Clip == "*" {
			for _, a := range c.order {
				a.applyOverride(o)
			}
		}
	}
	for _, o := range conf.Clips {
		if o.Clip == "*" {
			continue
		}
		a, ok := c.actions[o.Clip]
		if !ok {
			c.logger().Warn("animation clip not found", slog.String("clip", o.Clip), slog.String("node", c.Node().Name))
			continue
		}
		a.applyOverride(o)
	}

	def := clipOverride{Clip: "Idle", Weight: 1}
	if conf.Default != nil {
		def = *conf.Default
		if def.Clip == "" {
			def.Clip = "Idle"
		}
	}
	if a, ok := c.actions[def.Clip]; ok {
		a.applyOverride(def)
		a.play(0)
		c.active = a
	}
	return nil
}

func (a *Action) applyOverride(o clipOverride) {
	if o.Loop {
		a.Loop = LoopRepeat
		a.ClampWhenFinished = false
	} else {
		a.Loop = LoopOnce
		a.ClampWhenFinished = true
	}
	a.Weight = orDefault(o.Weight, 1)
}

func (c *AnimationController) logger() *slog.Logger {
	if w := c.World(); w != nil {
		return w.log
	}
	return debugLogger
}

// Action returns the Action for clip.
func (c *AnimationController) Action(clip string) *Action {
	return c.actions[clip]
}

// Actions returns a copy of the clip→Action table.
func (c *AnimationController) Actions() map[string]*Action {
	return maps.Clone(c.actions)
}

// Active returns the active Action, or nil.
func (c *AnimationController) Active() *Action {
	return c.active
}

// PostMessage handles GET_ACTIONS, ACT, ADD and STOP.
func (c *AnimationController) PostMessage(msg Message, cb *Callbacks) error {
	switch msg.Message {
	case MessageGetActions:
		cb.returned(MessageEvent{Message: msg, Actions: c.Actions()})
		return nil
	case MessageAct:
		return c.act(msg, cb)
	case MessageAdd:
		return c.add(msg, cb)
	case MessageStop:
		return c.stop(msg, cb)
	}
	return configErrorf("unknown animation message %q", msg.Message)
}

func (c *AnimationController) lookup(clip string) (*Action, error) {
	a, ok := c.actions[clip]
	if !ok {
		return nil, configErrorf("unknown animation clip %q", clip)
	}
	return a, nil
}

func (c *AnimationController) act(msg Message, cb *Callbacks) error {
	a, err := c.lookup(msg.Clip)
	if err != nil {
		return err
	}
	ts := float32(msg.TimeScale)
	if c.active != a {
		if prev := c.active; prev != nil {
			a.play(ts)
			prev.fadeOut(c.Crossfade)
			a.fadeIn(c.Crossfade)
			c.active = a
			c.animationStarted(a, cb)
			a.onFinish = finishHandler{kind: finishReturnTo, prev: prev, timeScale: ts, cb: cb}
		} else {
			a.play(ts)
			c.active = a
			c.animationStarted(a, cb)
			a.onFinish = finishHandler{kind: finishClearActive, cb: cb}
		}
	}
	cb.acted(MessageEvent{Message: msg, Clip: msg.Clip, Action: a})
	return nil
}

func (c *AnimationController) add(msg Message, cb *Callbacks) error {
	a, err := c.lookup(msg.Clip)
	if err != nil {
		return err
	}
	if c.active != nil {
		a.play(float32(msg.TimeScale))
		c.animationStarted(a, cb)
		a.onFinish = finishHandler{kind: finishLayered, cb: cb}
	}
	cb.acted(MessageEvent{Message: msg, Clip: msg.Clip, Action: a})
	return nil
}

func (c *AnimationController) stop(msg Message, cb *Callbacks) error {
	var a *Action
	if msg.Clip == "." {
		a = c.active
	} else {
		var err error
		if a, err = c.lookup(msg.Clip); err != nil {
			return err
		}
	}
	if a == nil || a.state == ActionIdle {
		return nil
	}
	a.stop()
	if c.active == a {
		c.active = nil
	}
	c.animationFinished(a, cb)
	cb.acted(MessageEvent{Message: msg, Clip: a.Name(), Action: a})
	return nil
}

func (c *AnimationController) animationStarted(a *Action, cb *Callbacks) {
	cb.animationStarted(AnimationEvent{Controller: c, Clip: a.Name(), Action: a})
}

func (c *AnimationController) animationFinished(a *Action, cb *Callbacks) {
	cb.animationFinished(AnimationEvent{Controller: c, Clip: a.Name(), Action: a})
}

// Update advances every Action, blends their tracks onto the node tree,
// and then runs the finish handlers of Actions that ended this frame.
func (c *AnimationController) Update(dt float32) {
	if c.Node() == nil {
		return
	}
	c.finished = c.finished[:0]
	for _, a := range c.order {
		if a.step(dt) {
			c.finished = append(c.finished, a)
		}
	}
	c.applyTracks()
	for _, a := range c.finished {
		c.runFinish(a)
	}
}

// runFinish removes the Action's handler before invoking it.
func (c *AnimationController) runFinish(a *Action) {
	h := a.onFinish
	a.onFinish = finishHandler{}
	switch h.kind {
	case finishClearActive:
		c.animationFinished(a, h.cb)
		if c.active == a {
			c.active = nil
		}
	case finishReturnTo:
		c.animationFinished(a, h.cb)
		if c.active != a || h.prev == nil {
			return
		}
		prev := h.prev
		prev.play(h.timeScale)
		a.fadeOut(c.Crossfade)
		prev.fadeIn(c.Crossfade)
		c.active = prev
		c.animationStarted(prev, h.cb)
		prev.onFinish = finishHandler{kind: finishClearActive, cb: h.cb}
	case finishLayered:
		c.animationFinished(a, h.cb)
	}
}

func (c *AnimationController) applyTracks() {
	clear(c.accum)
	for _, a := range c.order {
		w := a.EffectiveWeight()
		if w <= 0 {
			continue
		}
		for i := range a.clip.Tracks {
			tr := &a.clip.Tracks[i]
			n := c.trackTarget(tr.Node)
			if n == nil {
				continue
			}
			b := c.accum[n]
			if b == nil {
				b = &blend{}
				c.accum[n] = b
			}
			v := tr.Sample(a.time).MulScalar(w)
			switch tr.Property {
			case TrackPosition:
				b.pos = b.pos.Add(v)
				b.posW += w
			case TrackRotation:
				b.rot = b.rot.Add(v)
				b.rotW += w
			case TrackScale:
				b.scale = b.scale.Add(v)
				b.scaleW += w
			}
		}
	}
	for n, b := range c.accum {
		rest := c.rest[n]
		if b.posW > 0 {
			n.Position = mix(b.pos, b.posW, rest.Position)
		}
		if b.rotW > 0 {
			n.Rotation = mix(b.rot, b.rotW, rest.Rotation)
		}
		if b.scaleW > 0 {
			n.Scale = mix(b.scale, b.scaleW, rest.Scale)
		}
	}
}

// mix normalizes a weighted sum when the weights reach 1 and otherwise
// fills the remainder with the rest pose.
func mix(sum math32.Vector3, w float32, rest math32.Vector3) math32.Vector3 {
	if w >= 1 {
		return sum.MulScalar(1 / w)
	}
	return sum.Add(rest.MulScalar(1 - w))
}

// trackTarget finds the node a track drives and records its rest pose the
// first time it is seen.
func (c *AnimationController) trackTarget(name string) *Node {
	root := c.Node()
	var n *Node
	if name == "" || name == root.Name {
		n = root
	} else {
		n = root.FindByName(name)
	}
	if n == nil {
		return nil
	}
	if _, ok := c.rest[n]; !ok {
		c.rest[n] = Transform{Position: n.Position, Scale: n.Scale, Rotation: n.Rotation}
	}
	return n
}

// Dispose stops every Action and drops the tables.
func (c *AnimationController) Dispose() {
	for _, a := range c.order {
		a.stop()
	}
	c.active = nil
	c.order = nil
	c.actions = nil
	c.rest = nil
	c.accum = nil
}
