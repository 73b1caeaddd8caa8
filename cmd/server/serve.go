package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pitch-deck/internal/config"
	"pitch-deck/internal/credentials"
	"pitch-deck/internal/db"
	"pitch-deck/internal/events"
	"pitch-deck/internal/handlers"
	"pitch-deck/internal/llm"
	"pitch-deck/internal/pitch"
	"pitch-deck/internal/services"
	"pitch-deck/internal/session"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the deck server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Initialize database
	database, err := db.Open(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	catalog, err := services.LoadSlideCatalog(cfg.Catalog.File, logger)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	// Initialize services
	attempts := services.NewAttemptLog(database, logger)
	verifier := credentials.NewVerifier(credentials.Options{
		URL:          cfg.Credentials.URL,
		Timeout:      cfg.Credentials.FetchTimeout.Duration,
		MaxBodyBytes: cfg.Credentials.MaxBodyBytes,
	}, logger.Named("credentials"))
	requester := pitch.NewRequester(newGenerator(ctx, cfg, logger), catalog.PitchTags(), cfg.Pitch.Timeout.Duration, logger.Named("pitch"))

	ctrl := session.NewController(catalog, verifier, requester, session.Options{
		LogoutDelay: cfg.Session.LogoutDelay.Duration,
		Publisher:   publisher,
		Recorder:    attempts,
		Logger:      logger.Named("session"),
	})
	defer ctrl.Close()

	wsService := services.NewWebSocketService(cfg.Server.AllowedOrigins, logger.Named("ws"))
	wsService.SetDispatcher(ctrl)
	ctrl.AddObserver(wsService)

	// Initialize handlers
	router := handlers.SetupRoutes(
		handlers.NewWebSocketHandler(wsService, logger),
		handlers.NewSessionHandler(ctrl, logger),
		handlers.NewSlideHandler(catalog, logger),
		handlers.NewAuditHandler(attempts, logger),
		logger,
	)

	// Configure server
	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}
	if cfg.TLS.Enabled {
		server.TLSConfig = &tls.Config{
			MinVersion: getTLSVersion(cfg.TLS.MinVersion),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wsService.Run(gctx)
		return nil
	})
	g.Go(func() error {
		var err error
		if cfg.TLS.Enabled {
			logger.Info("Starting HTTPS server",
				zap.String("addr", server.Addr),
				zap.String("cert", cfg.TLS.CertFile),
				zap.String("min_tls", cfg.TLS.MinVersion))
			err = server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			logger.Info("Starting HTTP server", zap.String("addr", server.Addr))
			logger.Warn("HTTP mode is not recommended for production")
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout.Duration))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newPublisher(cfg *config.Config, logger *zap.Logger) (events.Publisher, error) {
	if cfg.Events.NATSURL == "" {
		return &events.NoopPublisher{}, nil
	}
	publisher, err := events.NewNATSPublisher(cfg.Events.NATSURL)
	if err != nil {
		return nil, err
	}
	logger.Info("Publishing session events", zap.String("nats", cfg.Events.NATSURL))
	return publisher, nil
}

// newGenerator never fails: without a usable key every pitch request gets the fallback text
func newGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger) llm.Generator {
	generator, err := llm.NewGeminiGenerator(ctx, cfg.Pitch.APIKey, cfg.Pitch.Model)
	if err != nil {
		logger.Warn("Pitch assistant unavailable", zap.Error(err))
		return llm.Unavailable{Err: err}
	}
	logger.Info("Pitch assistant ready", zap.String("model", generator.Model()))
	return generator
}

// getTLSVersion converts string version to tls.Version constant
func getTLSVersion(version string) uint16 {
	switch version {
	case "1.0":
		return tls.VersionTLS10
	case "1.1":
		return tls.VersionTLS11
	case "1.2":
		return tls.VersionTLS12
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
