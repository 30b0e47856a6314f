// Package server wires the media store, credential store and token service
// into the HTTP API consumed by the SPA and any other API client.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/cristidraghici/open-file-sharing/internal/config"
	"github.com/cristidraghici/open-file-sharing/internal/creds"
	"github.com/cristidraghici/open-file-sharing/internal/logging"
	"github.com/cristidraghici/open-file-sharing/internal/media"
	"github.com/cristidraghici/open-file-sharing/internal/token"
)

type Server struct {
	cfg    *config.Config
	log    logging.Logger
	media  *media.Store
	creds  *creds.Store
	tokens *token.Service
}

// New builds the server and its collaborators from config.
func New(cfg *config.Config, log logging.Logger) (*Server, error) {
	store, err := media.NewStore(cfg.UploadsDir())
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:    cfg,
		log:    log,
		media:  store,
		creds:  creds.NewStore(cfg.UsersCSVPath),
		tokens: token.NewService(cfg.Secret, cfg.TokenTTL),
	}, nil
}

// Router assembles the route table. The path layout is an external contract
// with the SPA and must not change.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests, s.cors)

	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet, http.MethodOptions)

	r.Handle("/api/media/uploads", s.requireAuth(http.HandlerFunc(s.handleUpload))).Methods(http.MethodPost, http.MethodOptions)
	r.Handle("/api/media", s.requireAuth(http.HandlerFunc(s.handleList))).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/media/{id}", s.handleGetByID).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/media/{id}/content", s.handleContent).Methods(http.MethodGet, http.MethodOptions)
	r.Handle("/api/media/{id}", s.requireAuth(s.requireAdmin(http.HandlerFunc(s.handleDelete)))).Methods(http.MethodDelete, http.MethodOptions)

	r.HandleFunc("/", s.handleHome).Methods(http.MethodGet, http.MethodOptions)
	r.NotFoundHandler = s.cors(http.HandlerFunc(s.handleNotFound))

	return r
}

// Run serves HTTP until the context is cancelled or an interrupt arrives,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.cfg.ServicePort,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "listening", "port", s.cfg.ServicePort, "uploads", s.media.Root())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigs:
	case <-ctx.Done():
	}

	s.log.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
