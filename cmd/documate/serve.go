package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"documate/internal/auth"
	"documate/internal/config"
	"documate/internal/db"
	"documate/internal/document"
	"documate/internal/llmservice"
	"documate/internal/server"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func serveCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	dbInstance := db.NewDB(db.ConnectDB(cfg.Database.DSN, cfg.Database.Password), cfg.Database.Debug)
	defer dbInstance.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := dbInstance.PingContext(pingCtx); err != nil {
		log.Error().Err(err).Msg("Error connecting to database")
		return err
	}

	completer, err := llmservice.NewCompleter(ctx, &cfg.LLM)
	if err != nil {
		log.Error().Err(err).Msg("Error initializing LLM client")
		return err
	}

	templates := document.NewTemplateStore(cfg.Export.TemplatesDir)
	images := document.NewHTTPImageFetcher(nil, cfg.Export.ImageTimeout, cfg.Export.ImageMaxBytes, cfg.Export.ImageMaxPixels)

	srv := server.NewServer(
		db.NewStore(dbInstance, cfg.Database.RLS),
		llmservice.NewService(completer, &cfg.LLM),
		document.NewAssembler(images, templates),
		templates,
		auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Audience),
		&cfg.Server,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
