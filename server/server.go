// Package server exposes a running World over HTTP.
//
// Every handler reaches the World through World.Do, so the World must be
// driven by World.Run on its own goroutine while the server is up.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"

	"cogentcore.org/core/math32"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phanxgames/stagehand"
	"github.com/phanxgames/stagehand/internal/logging"
)

const maxBody = 4 << 20

var errNotFound = errors.New("no node matches")

// Server routes HTTP requests to a World.
type Server struct {
	world    *stagehand.World
	hub      *Hub
	log      *slog.Logger
	gatherer prometheus.Gatherer
	timeout  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and event logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithGatherer serves g on /metrics. Without it /metrics is not routed.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithTimeout bounds each request's wait on the World. Zero means no
// bound beyond the request context.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New returns a Server for w.
func New(w *stagehand.World, opts ...Option) *Server {
	s := &Server{world: w, log: logging.NewNop(), timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(s.log)
	return s
}

// Hub returns the event hub fed by commands run through this server.
func (s *Server) Hub() *Hub { return s.hub }

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/execute", s.handleExecute)
	r.Post("/messages", s.handleMessages)
	r.Get("/query", s.handleQuery)
	r.Get("/tree", s.handleTree)
	r.Get("/events", s.hub.ServeHTTP)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

// do runs fn on the World with the request's deadline.
func (s *Server) do(r *http.Request, fn func(ctx context.Context, w *stagehand.World) error) error {
	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.world.Do(ctx, func(w *stagehand.World) error { return fn(ctx, w) })
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps World errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, stagehand.ErrConfiguration):
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}

type executeResponse struct {
	Commands int `json:"commands"`
}

// handleExecute runs a JSON or YAML command script.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cmds, err := stagehand.ParseScript(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cb := s.hub.Callbacks()
	err = s.do(r, func(ctx context.Context, world *stagehand.World) error {
		return world.Execute(ctx, cmds, cb)
	})
	if err != nil {
		s.log.Warn("execute failed", "error", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, executeResponse{Commands: len(cmds)})
}

type messagesRequest struct {
	Where    any   `json:"where"`
	Messages []any `json:"messages"`
}

type messagesResponse struct {
	Acted  []reply `json:"acted"`
	Return []reply `json:"returned"`
}

type reply struct {
	Message string   `json:"message"`
	Index   int      `json:"index"`
	Clip    string   `json:"clip,omitempty"`
	Actions []string `json:"actions,omitempty"`
}

func toReply(e stagehand.MessageEvent) reply {
	return reply{
		Message: e.Message.Message,
		Index:   e.Message.Index,
		Clip:    e.Clip,
		Actions: slices.Sorted(maps.Keys(e.Actions)),
	}
}

// handleMessages posts controller messages and returns the synchronous
// acknowledgements.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	var req messagesRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	where, err := stagehand.ParseQuery(req.Where)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	msgs := make([]stagehand.Message, 0, len(req.Messages))
	for _, raw := range req.Messages {
		m, err := stagehand.DecodeMessage(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		msgs = append(msgs, m)
	}

	resp := messagesResponse{Acted: []reply{}, Return: []reply{}}
	cb := s.hub.Callbacks().Merge(&stagehand.Callbacks{
		OnActed:    func(e stagehand.MessageEvent) { resp.Acted = append(resp.Acted, toReply(e)) },
		OnReturned: func(e stagehand.MessageEvent) { resp.Return = append(resp.Return, toReply(e)) },
	})
	err = s.do(r, func(_ context.Context, world *stagehand.World) error {
		return world.PostMessages(where, msgs, cb)
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// NodeSummary is the JSON view of a node.
type NodeSummary struct {
	UUID        string         `json:"uuid"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Tag         string         `json:"tag,omitempty"`
	Position    [3]float32     `json:"position"`
	Rotation    [3]float32     `json:"rotation"`
	Scale       [3]float32     `json:"scale"`
	Visible     bool           `json:"visible"`
	Controllers []string       `json:"controllers,omitempty"`
	Children    []*NodeSummary `json:"children,omitempty"`
	NumChildren int            `json:"numChildren"`
}

func vec(v math32.Vector3) [3]float32 { return [3]float32{v.X, v.Y, v.Z} }

// Summarize describes n. With deep set the children are described too.
func Summarize(n *stagehand.Node, deep bool) *NodeSummary {
	s := &NodeSummary{
		UUID:        n.UUID,
		Name:        n.Name,
		Type:        n.Type.String(),
		Tag:         n.Tag,
		Position:    vec(n.Position),
		Rotation:    vec(n.Rotation),
		Scale:       vec(n.Scale),
		Visible:     n.Visible,
		NumChildren: n.NumChildren(),
	}
	if cs := n.Controllers(); len(cs) > 0 {
		s.Controllers = slices.Sorted(maps.Keys(cs))
	}
	if deep {
		for _, c := range n.Children() {
			s.Children = append(s.Children, Summarize(c, true))
		}
	}
	return s
}

// handleQuery resolves ?where= from the scene and summarizes the match.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("where")
	if raw == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing where parameter"))
		return
	}
	var q any = raw
	if raw[0] == '[' || raw[0] == '{' {
		// A JSON steps list or selector.
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode where: %w", err))
			return
		}
	}
	where, err := stagehand.ParseQuery(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	deep := r.URL.Query().Get("deep") == "true"

	var summary *NodeSummary
	err = s.do(r, func(_ context.Context, world *stagehand.World) error {
		n := world.Query(where, nil)
		if n == nil {
			return fmt.Errorf("%w: %s", errNotFound, where)
		}
		summary = Summarize(n, deep)
		return nil
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type treeResponse struct {
	Scene  *NodeSummary `json:"scene"`
	Camera *NodeSummary `json:"camera,omitempty"`
}

// handleTree dumps the scene and camera.
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	var resp treeResponse
	err := s.do(r, func(_ context.Context, world *stagehand.World) error {
		resp.Scene = Summarize(world.Scene(), true)
		if cam := world.Camera(); cam != nil {
			resp.Camera = Summarize(cam, false)
		}
		return nil
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
