package main

import (
	"context"
	"errors"
	"time"

	"documate/internal/config"
	"documate/internal/db"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func migrateCmd(cfg *config.Config) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the projects, sections, feedback and refinements tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Database.DSN == "" {
				return errors.New("missing required config: database.dsn")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			dbInstance := db.NewDB(db.ConnectDB(cfg.Database.DSN, cfg.Database.Password), cfg.Database.Debug)
			defer dbInstance.Close()

			if reset {
				log.Warn().Msg("Dropping existing tables")
				if err := db.DropSchema(ctx, dbInstance); err != nil {
					return err
				}
			}
			if err := db.InitSchema(ctx, dbInstance); err != nil {
				return err
			}
			log.Info().Msg("Schema ready")
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "drop the tables first")
	return cmd
}
