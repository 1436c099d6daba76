package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"TgFM/core/session"
	"TgFM/logger"
	"TgFM/storage"
)

// StatusServer exposes a read-only view of the bot: live session
// snapshots, per-user history, and a websocket feed of session events.
// It never mutates state, so it is safe to bind on an internal interface.
type StatusServer struct {
	srv      *http.Server
	sessions *session.Store
	store    *storage.Store
	hub      *session.Hub
	upgrader websocket.Upgrader
}

// NewStatusServer builds the server on addr.
func NewStatusServer(addr string, sessions *session.Store, store *storage.Store, hub *session.Hub) *StatusServer {
	s := &StatusServer{
		sessions: sessions,
		store:    store,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/sessions", s.handleSessions).Methods(http.MethodGet)
	router.HandleFunc("/api/history/{user}", s.handleHistory).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.handleEvents)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Run serves until Shutdown. http.ErrServerClosed is not an error.
func (s *StatusServer) Run() error {
	logger.Info("Status server listening", logger.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the server with a short grace period.
func (s *StatusServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		logger.Warn("Status server shutdown failed", logger.ErrorField(err))
	}
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *StatusServer) handleSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Snapshots())
}

func (s *StatusServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["user"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, s.store.History(userID, limit))
}

// handleEvents streams session events over a websocket until the client
// goes away. Each client gets its own hub subscription; slow clients drop
// events rather than back-pressure the sessions.
func (s *StatusServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	events, cancel := s.hub.Subscribe()
	defer cancel()

	// Drain reads so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to encode response", logger.ErrorField(err))
	}
}
