// Package app wires the relay's components together and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"tutorrelay/internal/api"
	"tutorrelay/internal/audit"
	"tutorrelay/internal/config"
	"tutorrelay/internal/hub"
	"tutorrelay/internal/metrics"
	"tutorrelay/internal/registry"
	"tutorrelay/internal/relay"
	"tutorrelay/internal/sweeper"
	"tutorrelay/internal/websocket"
	"tutorrelay/pkg/interfaces"
)

// Application coordinates all system components.
type Application struct {
	config  *config.Config
	logger  *zap.Logger
	clock   func() time.Time
	metrics *metrics.Metrics

	registry   *registry.Registry
	directory  *websocket.Directory
	journal    *audit.Journal
	engine     *relay.Engine
	messageHub *hub.Hub
	sweeper    *sweeper.Sweeper
	apiServer  *api.Server
	httpServer *http.Server

	listener net.Listener
	errCh    chan error
}

// Option customises an Application.
type Option func(*Application)

// WithClock overrides the wall clock used for availability and sweeps.
func WithClock(clock func() time.Time) Option {
	return func(a *Application) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// NewApplication creates every component in dependency order:
// Metrics → Registry → Directory → Journal → Engine → Hub → WebSocket → Sweeper → API → HTTP
func NewApplication(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Application{
		config: cfg,
		logger: logger,
		clock:  time.Now,
		errCh:  make(chan error, 1),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.metrics = metrics.New()
	a.registry = registry.NewRegistry(registry.WithLogger(logger.Named("registry")))
	a.directory = websocket.NewDirectory(logger.Named("directory"))

	engineOpts := []relay.Option{
		relay.WithMetrics(a.metrics),
		relay.WithClock(a.clock),
		relay.WithLogger(logger.Named("relay")),
	}
	if cfg.Audit.Enabled {
		journal, err := audit.Open(context.Background(), cfg.Audit, a.metrics, logger.Named("audit"))
		if err != nil {
			return nil, fmt.Errorf("failed to open audit journal: %w", err)
		}
		a.journal = journal
		engineOpts = append(engineOpts, relay.WithJournal(journal))
	}
	a.engine = relay.NewEngine(a.registry, a.directory, engineOpts...)

	a.messageHub = hub.NewHub(a.engine, cfg.Hub.InboundBuffer, logger.Named("hub"))
	wsHandler := websocket.NewHandler(a.messageHub, cfg.WebSocket, logger.Named("websocket"))

	a.sweeper = sweeper.New(a.registry, cfg.Sweeper.Interval, a.metrics, logger.Named("sweeper"))
	a.sweeper.SetClock(a.clock)

	deps := api.Dependencies{
		Registry:       a.registry,
		Sessions:       a.engine,
		Directory:      a.directory,
		Metrics:        a.metrics,
		Logger:         logger.Named("http"),
		Sweep:          a.sweeper.RunOnce,
		WebSocket:      wsHandler.HandleWebSocket,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}
	if a.journal != nil {
		deps.Journal = a.journal
	}
	a.apiServer = api.NewServer(deps)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      a.apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return a, nil
}

// Start runs the hub and the sweeper, then begins serving HTTP. It returns
// once the listener is bound; later serve failures arrive on Errors.
func (a *Application) Start(ctx context.Context) error {
	if err := a.messageHub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start message hub: %w", err)
	}
	if err := a.sweeper.Start(ctx); err != nil {
		a.stopHub()
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	listener, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		a.stopSweeper()
		a.stopHub()
		return fmt.Errorf("failed to listen on %s: %w", a.httpServer.Addr, err)
	}
	a.listener = listener

	go func() {
		if err := a.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	a.logger.Info("Tutor relay started", zap.String("addr", listener.Addr().String()))
	return nil
}

// Stop shuts down in reverse order: HTTP → Sweeper → Hub → Journal.
func (a *Application) Stop(ctx context.Context) error {
	a.logger.Info("Shutting down tutor relay")

	var shutdownErr error
	if a.listener != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Error("HTTP server shutdown error", zap.Error(err))
			shutdownErr = err
		}
	}

	a.stopSweeper()
	a.stopHub()

	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Error("Audit journal shutdown error", zap.Error(err))
			if shutdownErr == nil {
				shutdownErr = err
			}
		}
	}

	a.logger.Info("Tutor relay shutdown complete")
	return shutdownErr
}

func (a *Application) stopSweeper() {
	if err := a.sweeper.Stop(); err != nil && !errors.Is(err, sweeper.ErrNotRunning) {
		a.logger.Warn("Sweeper shutdown error", zap.Error(err))
	}
}

func (a *Application) stopHub() {
	if err := a.messageHub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		a.logger.Warn("Message hub shutdown error", zap.Error(err))
	}
}

// Errors reports fatal serve errors after Start has returned.
func (a *Application) Errors() <-chan error {
	return a.errCh
}

// Addr returns the bound address once started, or the configured one.
func (a *Application) Addr() string {
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.httpServer.Addr
}

// Handler exposes the HTTP routes, including /ws, without a listener.
func (a *Application) Handler() http.Handler {
	return a.apiServer
}

// Journal returns the audit journal, or nil when it is disabled.
func (a *Application) Journal() interfaces.Journal {
	if a.journal == nil {
		return nil
	}
	return a.journal
}
