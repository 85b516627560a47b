package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/amity-server/internal/auth"
	"github.com/vovakirdan/amity-server/internal/config"
	"github.com/vovakirdan/amity-server/internal/core"
	"github.com/vovakirdan/amity-server/internal/service/friends"
	"github.com/vovakirdan/amity-server/internal/store"
	"github.com/vovakirdan/amity-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/amity-server/internal/transport/http"
)

// App wires together the store, realtime core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// tokenVerifier adapts the auth service to the realtime core's verifier.
type tokenVerifier struct {
	auth *auth.Service
}

func (v tokenVerifier) Verify(token string) (core.Identity, error) {
	claims, err := v.auth.ValidateToken(token)
	if err != nil {
		return core.Identity{}, err
	}
	return core.Identity{ID: claims.UserID, Name: claims.Username}, nil
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)
	friendsService := friends.New(st)

	registry := core.NewSessionRegistry()
	chats := core.NewMembershipIndex(st, registry)
	typing := core.NewTypingTracker()
	presence := core.NewPresenceTracker(st, chats, registry, logger)
	router := core.NewMessageRouter(st, chats, typing, logger, cfg.MaxMessageBytes)
	handler := core.NewConnectionHandler(
		tokenVerifier{auth: authService},
		registry,
		chats,
		presence,
		router,
		typing,
		logger,
		cfg.AuthTimeout,
	)

	server := transporthttp.NewServer(handler, chats, authService, friendsService, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
