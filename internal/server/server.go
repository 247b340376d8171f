package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Config holds server configuration
type Config struct {
	Addr         string   `yaml:"addr"`         // listen address (default: :8080)
	SnapshotPath string   `yaml:"snapshotPath"` // snapshot document to serve
	TraitsPath   string   `yaml:"traitsPath"`   // trait-frequency report to serve
	Origins      []string `yaml:"origins"`      // allowed CORS origins
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		SnapshotPath: "data/mkrs.json",
		TraitsPath:   "data/traits.json",
		Origins:      []string{"*"},
	}
}

// Server hosts the produced artifacts for the display pages and notifies
// connected clients over WebSocket when a sync run refreshes the snapshot.
type Server struct {
	config      Config
	logger      *zap.Logger
	broadcaster *Broadcaster
}

// New creates a new server
func New(config Config, logger *zap.Logger) *Server {
	log := logger.Named("server")
	return &Server{
		config:      config,
		logger:      log,
		broadcaster: NewBroadcaster(log),
	}
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.Origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/mkrs.json", s.handleFile(s.config.SnapshotPath))
	r.Get("/api/traits", s.handleFile(s.config.TraitsPath))
	r.Get("/api/health", s.handleHealth)
	r.Get("/ws", s.broadcaster.HandleUpgrade)
	return r
}

// Start runs the HTTP server until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.Addr,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	s.logger.Info("listening", zap.String("addr", s.config.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// NotifyRefresh tells connected display clients a new snapshot is available
func (s *Server) NotifyRefresh(runID string) {
	s.broadcaster.Broadcast(map[string]string{"event": "refresh", "runId": runID})
}

// handleFile serves a produced JSON artifact from disk
func (s *Server) handleFile(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				http.Error(w, "snapshot not yet produced", http.StatusNotFound)
				return
			}
			s.logger.Error("serve artifact", zap.String("path", path), zap.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

// handleHealth returns server status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info, err := os.Stat(s.config.SnapshotPath)
	response := map[string]interface{}{
		"status":  "ok",
		"clients": s.broadcaster.ClientCount(),
	}
	if err == nil {
		response["snapshotUpdated"] = info.ModTime().UTC()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
