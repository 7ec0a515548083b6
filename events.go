package stagehand

// WorldSetupEvent is delivered after setup configured the singletons.
type WorldSetupEvent struct {
	Renderer Renderer
	Camera   *Node
	Scene    *Node
}

// PendingEvent is delivered when an asynchronous model load is dispatched.
type PendingEvent struct {
	Task   *LoadTask
	Parent *Node
	Spec   *NodeSpec
	Index  int
}

// NodeEvent is delivered when a node was loaded under Parent or unloaded.
type NodeEvent struct {
	Parent *Node
	Node   *Node
	Spec   *NodeSpec
	Index  int
}

// AddedEvent is delivered when add spliced Sub into Node.
type AddedEvent struct {
	Node *Node
	Sub  *Node
	Spec *AssetSpec
}

// AnimationAddedEvent is delivered when animate appended clips to Node's
// template. Clips is the full clip list after the append.
type AnimationAddedEvent struct {
	Node  *Node
	Clips []*Clip
	Spec  *AssetSpec
}

// ErrorEvent reports an isolated failure. Exactly one of NodeSpec and
// AssetSpec is set.
type ErrorEvent struct {
	Err       error
	Parent    *Node
	NodeSpec  *NodeSpec
	AssetSpec *AssetSpec
	Index     int
}

// MaterialEvent is delivered after a geometry node received its material.
type MaterialEvent struct {
	Node     *Node
	Material *Material
	Data     map[string]any
	Index    int
}

// ControllerEvent is delivered when a controller is applied or removed.
// Spec is nil for removals that did not come from a control command.
type ControllerEvent struct {
	Node       *Node
	Controller Controller
	Spec       *ControllerSpec
}

// AnimationEvent is delivered when an Action starts or finishes.
type AnimationEvent struct {
	Controller *AnimationController
	Clip       string
	Action     *Action
}

// MessageEvent acknowledges a controller message. Actions is only set by
// GET_ACTIONS replies.
type MessageEvent struct {
	Message Message
	Clip    string
	Action  *Action
	Actions map[string]*Action
}

// Callbacks receives notifications from commands and controllers. Every
// field is optional; all are called synchronously on the orchestration
// goroutine. A nil *Callbacks is valid.
type Callbacks struct {
	OnWorldSetup         func(WorldSetupEvent)
	OnNodePending        func(PendingEvent)
	OnNodeLoaded         func(NodeEvent)
	OnNodeUnloaded       func(NodeEvent)
	OnNodeAdded          func(AddedEvent)
	OnNodeAnimationAdded func(AnimationAddedEvent)
	OnNodeError          func(ErrorEvent)
	OnMaterialLoaded     func(MaterialEvent)
	OnControllerApplied  func(ControllerEvent)
	OnControllerRemoved  func(ControllerEvent)
	OnAnimationStarted   func(AnimationEvent)
	OnAnimationFinished  func(AnimationEvent)
	OnActed              func(MessageEvent)
	OnReturned           func(MessageEvent)
}

func (cb *Callbacks) worldSetup(e WorldSetupEvent) {
	if cb != nil && cb.OnWorldSetup != nil {
		cb.OnWorldSetup(e)
	}
}

func (cb *Callbacks) nodePending(e PendingEvent) {
	if cb != nil && cb.OnNodePending != nil {
		cb.OnNodePending(e)
	}
}

func (cb *Callbacks) nodeLoaded(e NodeEvent) {
	if cb != nil && cb.OnNodeLoaded != nil {
		cb.OnNodeLoaded(e)
	}
}

func (cb *Callbacks) nodeUnloaded(e NodeEvent) {
	if cb != nil && cb.OnNodeUnloaded != nil {
		cb.OnNodeUnloaded(e)
	}
}

func (cb *Callbacks) nodeAdded(e AddedEvent) {
	if cb != nil && cb.OnNodeAdded != nil {
		cb.OnNodeAdded(e)
	}
}

func (cb *Callbacks) nodeAnimationAdded(e AnimationAddedEvent) {
	if cb != nil && cb.OnNodeAnimationAdded != nil {
		cb.OnNodeAnimationAdded(e)
	}
}

func (cb *Callbacks) nodeError(e ErrorEvent) {
	if cb != nil && cb.OnNodeError != nil {
		cb.OnNodeError(e)
	}
}

func (cb *Callbacks) materialLoaded(e MaterialEvent) {
	if cb != nil && cb.OnMaterialLoaded != nil {
		cb.OnMaterialLoaded(e)
	}
}

func (cb *Callbacks) controllerApplied(e ControllerEvent) {
	if cb != nil && cb.OnControllerApplied != nil {
		cb.OnControllerApplied(e)
	}
}

func (cb *Callbacks) controllerRemoved(e ControllerEvent) {
	if cb != nil && cb.OnControllerRemoved != nil {
		cb.OnControllerRemoved(e)
	}
}

func (cb *Callbacks) animationStarted(e AnimationEvent) {
	if cb != nil && cb.OnAnimationStarted != nil {
		cb.OnAnimationStarted(e)
	}
}

func (cb *Callbacks) animationFinished(e AnimationEvent) {
	if cb != nil && cb.OnAnimationFinished != nil {
		cb.OnAnimationFinished(e)
	}
}

func (cb *Callbacks) acted(e MessageEvent) {
	if cb != nil && cb.OnActed != nil {
		cb.OnActed(e)
	}
}

func (cb *Callbacks) returned(e MessageEvent) {
	if cb != nil && cb.OnReturned != nil {
		cb.OnReturned(e)
	}
}

// Merge returns callbacks that invoke cb's handlers and then other's.
func (cb *Callbacks) Merge(other *Callbacks) *Callbacks {
	if cb == nil {
		return other
	}
	if other == nil {
		return cb
	}
	return &Callbacks{
		OnWorldSetup:         chain(cb.OnWorldSetup, other.OnWorldSetup),
		OnNodePending:        chain(cb.OnNodePending, other.OnNodePending),
		OnNodeLoaded:         chain(cb.OnNodeLoaded, other.OnNodeLoaded),
		OnNodeUnloaded:       chain(cb.OnNodeUnloaded, other.OnNodeUnloaded),
		OnNodeAdded:          chain(cb.OnNodeAdded, other.OnNodeAdded),
		OnNodeAnimationAdded: chain(cb.OnNodeAnimationAdded, other.OnNodeAnimationAdded),
		OnNodeError:          chain(cb.OnNodeError, other.OnNodeError),
		OnMaterialLoaded:     chain(cb.OnMaterialLoaded, other.OnMaterialLoaded),
		OnControllerApplied:  chain(cb.OnControllerApplied, other.OnControllerApplied),
		OnControllerRemoved:  chain(cb.OnControllerRemoved, other.OnControllerRemoved),
		OnAnimationStarted:   chain(cb.OnAnimationStarted, other.OnAnimationStarted),
		OnAnimationFinished:  chain(cb.OnAnimationFinished, other.OnAnimationFinished),
		OnActed:              chain(cb.OnActed, other.OnActed),
		OnReturned:           chain(cb.OnReturned, other.OnReturned),
	}
}

func chain[E any](a, b func(E)) func(E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(e E) {
		a(e)
		b(e)
	}
}
