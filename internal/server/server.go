package server

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"questlog/internal/party"
)

// Server wraps the HTTP surface, the sqlite handle, and the party hub.
type Server struct {
	cfg             Config
	logger          *slog.Logger
	router          *mux.Router
	db              *sql.DB
	hub             *party.Hub
	allowedOrigins  []string
	allowAllOrigins bool
}

// New constructs a Server with storage, routes, and the realtime hub wired.
func New(cfg Config) (*Server, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))

	if err := ensureDir(cfg.UploadDir); err != nil {
		return nil, fmt.Errorf("ensure uploads directory: %w", err)
	}

	db, err := openDatabase(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		cfg:            cfg,
		logger:         logger,
		router:         mux.NewRouter(),
		db:             db,
		allowedOrigins: cfg.AllowedOrigins,
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			srv.allowAllOrigins = true
		}
	}

	// The server itself is the persistence gateway and token verifier; the
	// hub only sees the interfaces.
	srv.hub = party.NewHub(party.NewRoom(cfg.RoomName), srv, srv, logger)

	srv.routes()
	return srv, nil
}

// Router exposes the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.withCORS(s.loggingMiddleware(s.router))
}

// Hub exposes the realtime hub.
func (s *Server) Hub() *party.Hub {
	return s.hub
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := ":" + s.cfg.Port
	s.logger.Info("starting server", slog.String("addr", addr), slog.String("room", s.cfg.RoomName))
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)
	s.router.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.cfg.UploadDir))))

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)

	anyRole := party.RolePlayer
	api.Handle("/roster", s.requireAuth(anyRole, s.handleRoster)).Methods(http.MethodGet)

	api.Handle("/characters", s.requireAuth(anyRole, s.handleCharacterCreate)).Methods(http.MethodPost)
	api.Handle("/characters", s.requireAuth(anyRole, s.handleCharacterList)).Methods(http.MethodGet)
	api.Handle("/characters/{id}", s.requireAuth(anyRole, s.handleCharacterUpdate)).Methods(http.MethodPut)
	api.Handle("/characters/{id}", s.requireAuth(anyRole, s.handleCharacterDelete)).Methods(http.MethodDelete)

	api.Handle("/story", s.requireAuth(party.RoleDM, s.handleStoryCreate)).Methods(http.MethodPost)
	api.Handle("/story", s.requireAuth(anyRole, s.handleStoryList)).Methods(http.MethodGet)
	api.Handle("/story/{id}", s.requireAuth(party.RoleDM, s.handleStoryUpdate)).Methods(http.MethodPut)
	api.Handle("/story/{id}", s.requireAuth(party.RoleDM, s.handleStoryDelete)).Methods(http.MethodDelete)

	api.Handle("/sessions", s.requireAuth(party.RoleDM, s.handleSessionCreate)).Methods(http.MethodPost)
	api.Handle("/sessions", s.requireAuth(anyRole, s.handleSessionList)).Methods(http.MethodGet)

	api.Handle("/npcs", s.requireAuth(party.RoleDM, s.handleNPCCreate)).Methods(http.MethodPost)
	api.Handle("/npcs", s.requireAuth(anyRole, s.handleNPCList)).Methods(http.MethodGet)
	api.Handle("/npcs/{id}", s.requireAuth(party.RoleDM, s.handleNPCUpdate)).Methods(http.MethodPut)
	api.Handle("/npcs/{id}", s.requireAuth(party.RoleDM, s.handleNPCDelete)).Methods(http.MethodDelete)

	api.Handle("/locations", s.requireAuth(party.RoleDM, s.handleLocationCreate)).Methods(http.MethodPost)
	api.Handle("/locations", s.requireAuth(anyRole, s.handleLocationList)).Methods(http.MethodGet)
	api.Handle("/locations/{id}", s.requireAuth(party.RoleDM, s.handleLocationUpdate)).Methods(http.MethodPut)
	api.Handle("/locations/{id}", s.requireAuth(party.RoleDM, s.handleLocationDelete)).Methods(http.MethodDelete)

	api.Handle("/uploads", s.requireAuth(anyRole, s.handleUpload)).Methods(http.MethodPost)
	api.Handle("/uploads", s.requireAuth(anyRole, s.handleAssetList)).Methods(http.MethodGet)

	api.Handle("/rolls", s.requireAuth(anyRole, s.handleServerRoll)).Methods(http.MethodPost)

	api.Handle("/maps", s.requireAuth(party.RoleDM, s.handleMapCreate)).Methods(http.MethodPost)
	api.Handle("/maps", s.requireAuth(party.RoleDM, s.handleMapList)).Methods(http.MethodGet)
	api.Handle("/maps/{id}", s.requireAuth(party.RoleDM, s.handleMapGet)).Methods(http.MethodGet)
	api.Handle("/maps/{id}", s.requireAuth(party.RoleDM, s.handleMapUpdate)).Methods(http.MethodPut)
	api.Handle("/maps/{id}", s.requireAuth(party.RoleDM, s.handleMapDelete)).Methods(http.MethodDelete)
	api.Handle("/maps/{id}/elements", s.requireAuth(party.RoleDM, s.handleElementUpsert)).Methods(http.MethodPost)
	api.Handle("/maps/{id}/elements", s.requireAuth(party.RoleDM, s.handleElementList)).Methods(http.MethodGet)
	api.Handle("/maps/{id}/elements/{elementId}", s.requireAuth(party.RoleDM, s.handleElementDelete)).Methods(http.MethodDelete)
	api.Handle("/maps/{id}/fog", s.requireAuth(party.RoleDM, s.handleFogGet)).Methods(http.MethodGet)
	api.Handle("/maps/{id}/fog", s.requireAuth(party.RoleDM, s.handleFogPut)).Methods(http.MethodPut)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Room().Roster())
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.status),
			slog.Duration("duration", time.Since(start)))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// Hijack allows the websocket upgrade to reach the underlying connection
// through the wrapped writer.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijack not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
