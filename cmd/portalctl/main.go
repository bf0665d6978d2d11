// Command portalctl runs operational tasks against the portal database and queue.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-portal/backend/config"
	"github.com/aura-portal/backend/pkg/database"
	"github.com/aura-portal/backend/pkg/redis"
)

const databaseURLKey = "database_url"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "Client portal maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("database-url", "", "Postgres DSN (overrides DATABASE_URL and DB_* settings)")
	_ = viper.BindPFlag(databaseURLKey, root.PersistentFlags().Lookup("database-url"))
	_ = viper.BindEnv(databaseURLKey, "DATABASE_URL")

	root.AddCommand(
		newMigrateCommand(),
		newExportCommand(),
		newPackagesCommand(),
		newAdminCommand(),
		newJobsCommand(),
	)
	return root
}

// env is what every subcommand needs: config, logger and a pool.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dsn := viper.GetString(databaseURLKey); dsn != "" {
		cfg.Database.URL = dsn
	}
	logger := newLogger()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return &env{cfg: cfg, logger: logger, pool: pool}, nil
}

func (e *env) close() {
	e.pool.Close()
	_ = e.logger.Sync()
}

func (e *env) redis(ctx context.Context) (*redis.Client, error) {
	return redis.NewClient(ctx, e.cfg.Redis.Addr, e.cfg.Redis.Password, e.cfg.Redis.DB, e.logger)
}

// newLogger logs to stderr at warn level so command output stays clean.
func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()
			if err := database.Migrate(ctx, e.pool, e.logger); err != nil {
				return err
			}
			names, err := database.MigrationNames()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", len(names))
			return nil
		},
	}
}
