// Package web is the HTTP and WebSocket gateway onto a simulation session.
// REST endpoints carry user intents and state reads; WebSocket endpoints
// stream the activity log and per-character chats.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"aibook/internal/model"
	"aibook/internal/oplog"
	"aibook/internal/sim"
)

// Server serves one engine. It holds no state of its own.
type Server struct {
	eng      *sim.Engine
	upgrader websocket.Upgrader
}

// NewServer wraps an engine.
func NewServer(eng *sim.Engine) *Server {
	return &Server{
		eng: eng,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/analytics/activity", s.handleActivity)
	mux.HandleFunc("POST /api/sim/start", s.handleSimStart)
	mux.HandleFunc("POST /api/sim/stop", s.handleSimStop)
	mux.HandleFunc("POST /api/posts", s.handleCreatePost)
	mux.HandleFunc("POST /api/posts/{id}/comments", s.handleComment)
	mux.HandleFunc("POST /api/posts/{id}/reactions", s.handleReaction)
	mux.HandleFunc("POST /api/posts/{id}/translate", s.handleTranslate)
	mux.HandleFunc("POST /api/groups/{id}/join", s.handleJoinGroup)
	mux.HandleFunc("POST /api/notifications/{id}/resolve", s.handleResolveNotification)
	mux.HandleFunc("POST /api/provider/toggle", s.handleProviderToggle)
	mux.HandleFunc("GET /ws/logs", s.handleLogSocket)
	mux.HandleFunc("GET /ws/chat/{characterId}", s.handleChatSocket)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sim.ErrUnknownPost),
		errors.Is(err, sim.ErrUnknownGroup),
		errors.Is(err, sim.ErrUnknownNotification):
		status = http.StatusNotFound
	case errors.Is(err, sim.ErrAlreadyResolved),
		errors.Is(err, sim.ErrFallbackPinned):
		status = http.StatusConflict
	case errors.Is(err, sim.ErrInvalidReaction):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.State())
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	end := time.Now().UTC().Add(time.Hour)
	start := end.Add(-25 * time.Hour)
	buckets, err := s.eng.Activity(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"buckets": buckets})
}

func (s *Server) handleSimStart(w http.ResponseWriter, r *http.Request) {
	started := false
	_ = oplog.Run("sim_start", func() error {
		started = s.eng.Scheduler().Start()
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]bool{"running": s.eng.Scheduler().Running(), "started": started})
}

func (s *Server) handleSimStop(w http.ResponseWriter, r *http.Request) {
	_ = oplog.Run("sim_stop", func() error {
		s.eng.Scheduler().Stop()
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]bool{"running": s.eng.Scheduler().Running()})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decode(r, &req); err != nil || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content required"})
		return
	}
	var post model.Post
	err := oplog.Run("user_post", func() error {
		var err error
		post, err = s.eng.UserPost(r.Context(), req.Content)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content         string `json:"content"`
		ParentCommentID string `json:"parentCommentId"`
	}
	if err := decode(r, &req); err != nil || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content required"})
		return
	}
	var c model.Comment
	err := oplog.Run("user_comment", func() error {
		var err error
		c, err = s.eng.UserComment(r.Context(), r.PathValue("id"), req.Content, req.ParentCommentID)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleReaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind model.ReactionKind `json:"kind"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind required"})
		return
	}
	err := oplog.Run("user_react", func() error {
		return s.eng.UserReact(r.Context(), r.PathValue("id"), req.Kind)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decode(r, &req); err != nil || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text required"})
		return
	}
	var out string
	_ = oplog.Run("translate", func() error {
		out = s.eng.Translate(r.Context(), r.PathValue("id"), req.Text)
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]string{"translated": out})
}

func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	err := oplog.Run("user_join_group", func() error {
		return s.eng.UserJoinGroup(r.Context(), r.PathValue("id"))
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleResolveNotification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Approve bool `json:"approve"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "approve required"})
		return
	}
	err := oplog.Run("notification_resolve", func() error {
		return s.eng.ResolveNotification(r.Context(), r.PathValue("id"), req.Approve)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleProviderToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fallback bool `json:"fallback"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "fallback required"})
		return
	}
	err := oplog.Run("provider_toggle", func() error {
		return s.eng.ToggleFallback(req.Fallback)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider": s.eng.Provider().Name()})
}
