package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/abteilung-service/internal/persistence"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the department schema",
	}
	cmd.AddCommand(
		migrateAction("up", "Apply all pending migrations", func(ctx context.Context, m *persistence.Migrator) error {
			return m.Up(ctx)
		}),
		migrateAction("down", "Roll back the latest migration", func(ctx context.Context, m *persistence.Migrator) error {
			return m.Down(ctx)
		}),
		migrateAction("status", "Print the current schema version", func(ctx context.Context, m *persistence.Migrator) error {
			version, err := m.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("schema version %d\n", version)
			return nil
		}),
	)
	return cmd
}

func migrateAction(use, short string, action func(context.Context, *persistence.Migrator) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if cfg.Postgres.DSN == "" {
				return errors.New("POSTGRES_DSN is required for migrations")
			}
			pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pg.Close()

			m, err := persistence.NewMigrator(pg.PoolHandle(), logger)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := action(cmd.Context(), m); err != nil {
				logger.Error("migration failed", zap.String("command", use), zap.Error(err))
				return err
			}
			return nil
		},
	}
}
