package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phanxgames/stagehand"
	"github.com/phanxgames/stagehand/internal/logging"
)

// Event is the JSON form of a World callback streamed on /events.
type Event struct {
	Type    string    `json:"type"`
	Time    time.Time `json:"time"`
	Node    string    `json:"node,omitempty"`
	Parent  string    `json:"parent,omitempty"`
	Clip    string    `json:"clip,omitempty"`
	Message string    `json:"message,omitempty"`
	Index   int       `json:"index"`
	Error   string    `json:"error,omitempty"`
}

const (
	clientBuffer = 64
	writeWait    = 5 * time.Second
)

// Hub fans events out to websocket subscribers. A subscriber whose buffer
// is full misses events rather than stalling the World.
type Hub struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[chan []byte]struct{}
	dropped int
}

// NewHub returns an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = logging.NewNop()
	}
	return &Hub{log: log, clients: make(map[chan []byte]struct{})}
}

// Publish encodes e and queues it for every subscriber.
func (h *Hub) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		h.log.Error("encode event failed", "type", e.Type, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c <- data:
		default:
			h.dropped++
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) subscribe() chan []byte {
	c := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unsubscribe(c chan []byte) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the request and streams events until the client goes
// away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := h.subscribe()
	defer h.unsubscribe(c)

	// Reads only detect the close; clients send nothing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case data := <-c:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func nodeName(n *stagehand.Node) string {
	if n == nil {
		return ""
	}
	return n.Name
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Callbacks returns World callbacks that publish every notification to h.
func (h *Hub) Callbacks() *stagehand.Callbacks {
	return &stagehand.Callbacks{
		OnWorldSetup: func(e stagehand.WorldSetupEvent) {
			h.Publish(Event{Type: "worldSetup", Node: nodeName(e.Camera)})
		},
		OnNodePending: func(e stagehand.PendingEvent) {
			h.Publish(Event{Type: "nodePending", Node: e.Spec.Name, Parent: nodeName(e.Parent), Index: e.Index})
		},
		OnNodeLoaded: func(e stagehand.NodeEvent) {
			h.Publish(Event{Type: "nodeLoaded", Node: nodeName(e.Node), Parent: nodeName(e.Parent), Index: e.Index})
		},
		OnNodeUnloaded: func(e stagehand.NodeEvent) {
			h.Publish(Event{Type: "nodeUnloaded", Node: nodeName(e.Node), Parent: nodeName(e.Parent), Index: e.Index})
		},
		OnNodeAdded: func(e stagehand.AddedEvent) {
			h.Publish(Event{Type: "nodeAdded", Node: nodeName(e.Node)})
		},
		OnNodeAnimationAdded: func(e stagehand.AnimationAddedEvent) {
			h.Publish(Event{Type: "nodeAnimationAdded", Node: nodeName(e.Node), Index: len(e.Clips)})
		},
		OnNodeError: func(e stagehand.ErrorEvent) {
			h.Publish(Event{Type: "nodeError", Parent: nodeName(e.Parent), Index: e.Index, Error: errString(e.Err)})
		},
		OnMaterialLoaded: func(e stagehand.MaterialEvent) {
			h.Publish(Event{Type: "materialLoaded", Node: nodeName(e.Node), Index: e.Index})
		},
		OnControllerApplied: func(e stagehand.ControllerEvent) {
			h.Publish(Event{Type: "controllerApplied", Node: nodeName(e.Node), Message: e.Controller.Type()})
		},
		OnControllerRemoved: func(e stagehand.ControllerEvent) {
			h.Publish(Event{Type: "controllerRemoved", Node: nodeName(e.Node), Message: e.Controller.Type()})
		},
		OnAnimationStarted: func(e stagehand.AnimationEvent) {
			h.Publish(Event{Type: "animationStarted", Node: nodeName(e.Controller.Node()), Clip: e.Clip})
		},
		OnAnimationFinished: func(e stagehand.AnimationEvent) {
			h.Publish(Event{Type: "animationFinished", Node: nodeName(e.Controller.Node()), Clip: e.Clip})
		},
		OnActed: func(e stagehand.MessageEvent) {
			h.Publish(Event{Type: "acted", Message: e.Message.Message, Clip: e.Clip, Index: e.Message.Index})
		},
		OnReturned: func(e stagehand.MessageEvent) {
			h.Publish(Event{Type: "returned", Message: e.Message.Message, Clip: e.Clip, Index: e.Message.Index})
		},
	}
}
