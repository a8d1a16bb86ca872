// Package app wires the components and owns the process lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"chatline/internal/api"
	"chatline/internal/auth"
	"chatline/internal/chat"
	"chatline/internal/config"
	"chatline/internal/metrics"
	"chatline/internal/presence"
	"chatline/internal/ratelimit"
	"chatline/internal/storage"
	"chatline/internal/ws"
)

// Application holds every component. Initialization order follows the
// dependency chain: storage, repositories, registries, limiter, transport,
// handlers, HTTP.
type Application struct {
	cfg        *config.Config
	store      *storage.Store
	limiter    *ratelimit.Limiter
	httpServer *http.Server
	log        zerolog.Logger
}

// New builds the application from configuration.
func New(cfg *config.Config, log zerolog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := storage.Open(cfg.DatabasePath, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	users := storage.NewUserRepo(store)
	messages := storage.NewMessageRepo(store)

	registry := presence.NewRegistry()
	limiter := ratelimit.New(cfg.RateLimitWindow, cfg.RateLimitMax, cfg.RateLimitSweep, log)
	rooms := ws.NewRooms(log)
	m := metrics.New()

	lifecycle := presence.NewLifecycle(registry, users, messages, rooms, log)
	pipeline := chat.NewPipeline(messages, limiter, rooms, cfg.MaxMessageLength, m, log)
	relay := chat.NewRelay(messages, rooms, log)
	authn := auth.New(cfg.JWTSecret, users)

	wsHandler := ws.NewHandler(authn, rooms, lifecycle, pipeline, relay, cfg.PingInterval, cfg.PongTimeout, m, log)

	apiServer := api.NewServer(api.Deps{
		Auth:        authn,
		Users:       users,
		Messages:    messages,
		Registry:    registry,
		Rooms:       rooms,
		Storage:     store,
		Metrics:     m.Handler(),
		WebSocket:   wsHandler.HandleWebSocket,
		CORSOrigins: cfg.CORSOrigins,
		PageSize:    cfg.DefaultPageSize,
		Log:         log,
	})

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Application{
		cfg:        cfg,
		store:      store,
		limiter:    limiter,
		httpServer: httpServer,
		log:        log.With().Str("component", "app").Logger(),
	}, nil
}

// Start launches the limiter sweep and the HTTP listener, and confirms the
// listener came up before returning.
func (a *Application) Start(ctx context.Context) error {
	a.log.Info().Str("addr", a.httpServer.Addr).Msg("starting chatline")

	a.limiter.Start()

	serverErr := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case err := <-serverErr:
		a.limiter.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		a.log.Info().Msg("chatline started")
		return nil
	case <-ctx.Done():
		a.limiter.Stop()
		return ctx.Err()
	}
}

// Stop shuts the service down in reverse dependency order: listener,
// limiter sweep, storage.
func (a *Application) Stop(ctx context.Context) error {
	a.log.Info().Msg("shutting down chatline")

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Error().Err(err).Msg("http shutdown error")
	}
	a.limiter.Stop()
	if err := a.store.Close(); err != nil {
		a.log.Error().Err(err).Msg("storage shutdown error")
	}

	a.log.Info().Msg("shutdown complete")
	return nil
}

// Addr returns the configured listen address.
func (a *Application) Addr() string {
	return a.httpServer.Addr
}
