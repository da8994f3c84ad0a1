// Package api provides the HTTP REST API for the heat bridge.
//
// It exposes read access to polled device state, resolved schedules,
// hub-wide settings, and local temperature history, plus a command
// endpoint that dispatches through the same handler the MQTT surface
// uses.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-heatbridge/internal/command"
	"github.com/nerrad567/gray-logic-heatbridge/internal/history"
	"github.com/nerrad567/gray-logic-heatbridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-heatbridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-heatbridge/internal/state"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// commandTimeout bounds one dispatched command, hub round-trip included.
const commandTimeout = 15 * time.Second

// CommandService executes wire-form commands and reports stored profiles.
// Satisfied by *command.Handler.
type CommandService interface {
	Dispatch(ctx context.Context, req command.Request) (command.Result, error)
	ProfileDefinitions() []command.ProfileDefinition
	FriendlyProfiles() []command.FriendlyProfile
}

// HistoryStore serves recorded temperature samples. Satisfied by
// *history.Recorder. Optional - if nil, history endpoints return 404.
type HistoryStore interface {
	History(ctx context.Context, device string, since, until time.Time, limit int) ([]history.Sample, error)
	Devices(ctx context.Context) ([]string, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	Logger      *logging.Logger
	Coordinator *state.Coordinator
	Commands    CommandService
	History     HistoryStore // optional
	Version     string
}

// Server is the HTTP API server for the heat bridge.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	coord    *state.Coordinator
	commands CommandService
	history  HistoryStore
	version  string
	server   *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, coordinator, commands)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("state coordinator is required")
	}
	if deps.Commands == nil {
		return nil, fmt.Errorf("command service is required")
	}
	// History is optional; the endpoints return 404 when disabled.

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		coord:    deps.Coordinator,
		commands: deps.Commands,
		history:  deps.History,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
