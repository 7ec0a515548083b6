package stagehand

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/phanxgames/stagehand/internal/logging"
)

// globalDebug mirrors the most recently set World debug flag so that node
// operations (which lack a World pointer) can check it cheaply. Only valid
// with a single World; multiple Worlds with differing debug modes will
// reflect whichever called SetDebugMode last.
var globalDebug bool

// debugLogger receives tree warnings while debug mode is on.
var debugLogger = logging.NewNop()

// SetDebugMode enables or disables debug mode. When enabled, disposed-node
// access panics, tree depth and child count warnings are logged, and
// per-frame timing is logged at debug level.
func (w *World) SetDebugMode(enabled bool) {
	w.debug = enabled
	globalDebug = enabled
	if enabled {
		debugLogger = w.log
	}
}

// debugCheckDisposed panics with a descriptive message when a disposed node is
// used in a tree operation. In release mode callers skip this entirely.
func debugCheckDisposed(n *Node, op string) {
	if n.disposed {
		panic(fmt.Sprintf("stagehand debug: %s on disposed node %q (ID %d)", op, n.Name, n.ID))
	}
}

// debugCheckTreeDepth warns if tree depth exceeds the threshold.
const debugMaxTreeDepth = 64

func debugCheckTreeDepth(n *Node) {
	depth := 0
	for p := n; p != nil; p = p.Parent {
		depth++
	}
	if depth > debugMaxTreeDepth {
		debugLogger.Warn("tree depth exceeds threshold",
			slog.Int("depth", depth), slog.Int("threshold", debugMaxTreeDepth), slog.String("node", n.Name))
	}
}

// debugCheckChildCount warns if a node has more than 1000 children.
const debugMaxChildCount = 1000

func debugCheckChildCount(n *Node) {
	if len(n.children) > debugMaxChildCount {
		debugLogger.Warn("child count exceeds threshold",
			slog.String("node", n.Name), slog.Int("children", len(n.children)), slog.Int("threshold", debugMaxChildCount))
	}
}

// frameStats holds per-frame timing collected in debug mode.
type frameStats struct {
	drainTime   time.Duration
	updateTime  time.Duration
	renderTime  time.Duration
	messages    int
	controllers int
}

func (w *World) debugFrame(stats frameStats) {
	if !w.debug {
		return
	}
	w.log.Debug("frame",
		slog.Duration("drain", stats.drainTime),
		slog.Duration("update", stats.updateTime),
		slog.Duration("render", stats.renderTime),
		slog.Int("messages", stats.messages),
		slog.Int("controllers", stats.controllers))
}
