package web

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"focusnudge/internal/config"
	"focusnudge/internal/database"
	"focusnudge/internal/focus"
	"focusnudge/internal/signals"
)

type Server struct {
	config  *config.Config
	handler *Handler
	server  *http.Server
}

func NewServer(cfg *config.Config, svc *focus.Service, board *signals.Board, repo *database.Repository, rec focus.Recorder) *Server {
	handler := NewHandler(cfg, svc, board, repo, rec)
	mux := http.NewServeMux()
	handler.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	httpServer.RegisterOnShutdown(handler.Close)

	return &Server{
		config:  cfg,
		handler: handler,
		server:  httpServer,
	}
}

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	log.Printf("Starting web server on http://%s", ln.Addr())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return s.server.Addr
}
