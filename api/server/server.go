package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskchat/api"
	"taskchat/api/middleware"
	"taskchat/chat"
	"taskchat/config"
	"taskchat/logger"
	"taskchat/tasks/service"
)

// Server wraps http.Server with graceful shutdown capabilities
type Server struct {
	httpServer *http.Server
	config     *config.Config
	logger     *logger.Logger
}

// Dependencies contains everything the routes need.
type Dependencies struct {
	Service  service.Service
	Engine   api.TurnHandler
	Registry *chat.HandlerRegistry
	Config   *config.Config
	Logger   *logger.Logger
}

// New creates a new server with all HTTP configuration
func New(deps Dependencies) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              deps.Config.Address(),
			Handler:           NewRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			// chat turns may wait on the interpreter for most of the request timeout
			WriteTimeout: deps.Config.RequestTimeout + 5*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		config: deps.Config,
		logger: deps.Logger,
	}
}

// NewRouter registers every route and wraps the mux in middleware.
func NewRouter(deps Dependencies) http.Handler {
	mux := http.NewServeMux()
	owner := deps.Config.ChatOwner

	mux.HandleFunc("POST /tasks", api.NewCreateTaskHandler(deps.Service, owner, deps.Logger))
	mux.HandleFunc("GET /tasks", api.NewListTasksHandler(deps.Service, deps.Logger))
	mux.HandleFunc("GET /tasks/{id}", api.NewGetTaskHandler(deps.Service, deps.Logger))
	mux.HandleFunc("PATCH /tasks/{id}", api.NewUpdateTaskHandler(deps.Service, deps.Logger))
	mux.HandleFunc("PATCH /tasks/{id}/complete", api.NewCompleteTaskHandler(deps.Service, deps.Logger))
	mux.HandleFunc("DELETE /tasks/{id}", api.NewDeleteTaskHandler(deps.Service, deps.Logger))
	mux.HandleFunc("POST /chat", api.NewChatHandler(deps.Engine, owner, deps.Logger))
	mux.HandleFunc("GET /health", api.NewHealthHandler(deps.Config, deps.Registry, deps.Logger))

	return applyMiddleware(mux, deps.Config, deps.Logger)
}

// applyMiddleware wraps the handler; the last one applied runs first.
func applyMiddleware(handler http.Handler, cfg *config.Config, lg *logger.Logger) http.Handler {
	wrapped := handler
	wrapped = middleware.Timeout(cfg.RequestTimeout)(wrapped)
	wrapped = middleware.Recover(lg)(wrapped)
	wrapped = middleware.Logging(lg)(wrapped)
	return wrapped
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", map[string]any{
			"address": s.config.Address(),
		})
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logger.Error("Server failed to start", map[string]any{
				"error": err.Error(),
			})
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	return s.shutdown()
}

// shutdown gracefully shuts down the server
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server forced to shutdown", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	s.logger.Info("Server shutdown complete")
	return nil
}
