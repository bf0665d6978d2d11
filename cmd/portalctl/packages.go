package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/packages"
	"github.com/aura-portal/backend/internal/realtime"
	"github.com/aura-portal/backend/internal/worker"
)

func newPackagesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packages",
		Short: "Package cycle maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Zero package usage for every client and start a new cycle now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			// Without Redis the reset still happens; dashboards pick it up on their next load.
			var transport realtime.Transport
			if rdb, err := e.redis(ctx); err != nil {
				e.logger.Warn("redis unavailable, change feed not notified", zap.Error(err))
			} else {
				defer rdb.Close()
				transport = realtime.NewRedisPubSub(rdb.Client, e.logger)
			}
			feed := realtime.NewFeed(transport, e.logger)

			s, err := worker.NewScheduler(e.cfg.Worker.CycleResetCron,
				packages.NewRepository(e.pool, e.cfg.Portal.DefaultMaxRevisions), feed, e.logger)
			if err != nil {
				return err
			}
			n, err := s.ResetCycles(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %d packages\n", n)
			return nil
		},
	})
	return cmd
}
