// Package webhook serves the HTTP surface: health, client approval links,
// a read-only JSON API, a live event feed and metrics.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"

	"github.com/user/crewdesk/internal/state"
	"github.com/user/crewdesk/internal/types"
	"github.com/user/crewdesk/internal/workflow"
	"github.com/user/crewdesk/internal/workspace"
)

// Server is a lightweight HTTP handler over the workspace.
type Server struct {
	store   *workspace.Store
	board   *workflow.Board
	blobs   types.BlobStore
	metrics http.Handler
	mux     *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithBlobs serves stored media under /media/{id}.
func WithBlobs(b types.BlobStore) Option {
	return func(s *Server) { s.blobs = b }
}

// WithMetrics serves h under /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer creates a Server over the given store and board.
func NewServer(store *workspace.Store, board *workflow.Board, opts ...Option) *Server {
	s := &Server{
		store: store,
		board: board,
		mux:   http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /approve/{id}", s.handleApprove)
	s.mux.HandleFunc("GET /api/agents", s.handleAgents)
	s.mux.HandleFunc("GET /api/tasks", s.handleTasks)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTask)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/notifications", s.handleNotifications)
	s.mux.HandleFunc("POST /api/notifications/read", s.handleNotificationsRead)
	s.mux.HandleFunc("GET /api/media", s.handleMedia)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /media/{id}", s.handleBlob)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleApprove applies a client decision from an approval link. The reply
// is a small HTML page because the link is opened in a browser.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := types.TaskID(r.PathValue("id"))
	q := r.URL.Query()
	decision := q.Get("decision")
	if decision == "" {
		decision = "approve"
	}
	if decision != "approve" && decision != "reject" {
		writeError(w, http.StatusBadRequest, "decision must be approve or reject")
		return
	}

	task, err := s.board.DecideWithToken(id, q.Get("token"), decision)
	switch {
	case errors.Is(err, workspace.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task not found")
		return
	case errors.Is(err, workflow.ErrInvalidToken):
		writeError(w, http.StatusForbidden, "invalid or expired approval link")
		return
	case errors.Is(err, workflow.ErrNotReviewable):
		writeError(w, http.StatusConflict, "task is not awaiting review")
		return
	case err != nil:
		slog.Error("approval link failed", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	slog.Info("client decision recorded", "task_id", id, "decision", decision)
	verb := "approved"
	if decision == "reject" {
		verb = "sent back for adjustments"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body><h1>Thank you, %s</h1><p>&ldquo;%s&rdquo; was %s.</p></body></html>",
		html.EscapeString(task.ClientName), html.EscapeString(task.Title), verb)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.Agents())
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := workflow.Filter{
		Status:  types.TaskStatus(q.Get("status")),
		AgentID: types.AgentID(q.Get("agent")),
		Channel: types.SocialChannel(q.Get("channel")),
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status: "+string(f.Status))
		return
	}
	tasks := s.board.Filter(f)
	if tasks == nil {
		tasks = []types.Task{}
	}
	writeJSON(w, tasks)
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.store.Task(types.TaskID(r.PathValue("id")))
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	// Approval tokens only travel in links.
	task.ApprovalToken = ""
	writeJSON(w, task)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.board.Stats())
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"unread":        s.store.UnreadCount(),
		"notifications": nonNil(s.store.Notifications()),
	})
}

func (s *Server) handleNotificationsRead(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]int{"marked": s.store.MarkAllRead()})
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, nonNil(s.store.Media()))
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	if s.blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "media storage not configured")
		return
	}
	m, err := s.store.MediaByID(types.MediaID(r.PathValue("id")))
	if err != nil {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}
	if !strings.HasPrefix(m.URL, state.BlobScheme) {
		// Inline images are served by their data URI.
		writeError(w, http.StatusNotFound, "media has no stored payload")
		return
	}
	data, mime, err := s.blobs.Get(r.Context(), m.URL)
	if err != nil {
		slog.Error("read media blob failed", "media_id", m.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Write(data)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
