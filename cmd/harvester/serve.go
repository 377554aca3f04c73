package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"fork-harvester/internal/api"
	"fork-harvester/internal/database"
	"fork-harvester/migrations"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored records over a read-only HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if a.cfg.DBURL == "" {
				return errors.New("DB_URL is a required configuration field")
			}

			dbpool, err := openDatabase(ctx, a, a.cfg.DBURL)
			if err != nil {
				return err
			}
			defer dbpool.Close()

			srv := &http.Server{
				Addr:              a.cfg.HTTPAddr,
				Handler:           api.NewRouter(database.New(dbpool), a.cfg.HealthyMinCommit, a.logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("API server listening", "addr", a.cfg.HTTPAddr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("api server: %w", err)
			case <-ctx.Done():
				a.logger.Info("Shutdown signal received. Exiting.")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().String("db-url", "", "Postgres database holding the records")
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().Int("healthy-min", 5, "threshold for the ?healthy=true filter")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the record sink schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.DBURL == "" {
				return errors.New("DB_URL is a required configuration field")
			}
			if err := migrations.Up(a.cfg.DBURL); err != nil {
				return fmt.Errorf("failed to run database migrations: %w", err)
			}
			a.logger.Info("Database migrations applied successfully")
			return nil
		},
	}

	cmd.Flags().String("db-url", "", "Postgres database to migrate")
	return cmd
}
