package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-extras/cobraflags"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aura-portal/backend/internal/analytics"
	"github.com/aura-portal/backend/internal/billing"
	"github.com/aura-portal/backend/pkg/csvexport"
)

const (
	clientFlag = "client"
	outFlag    = "out"
)

func exportFlags() map[string]cobraflags.Flag {
	return map[string]cobraflags.Flag{
		clientFlag: &cobraflags.StringFlag{
			Name:  clientFlag,
			Value: "",
			Usage: "Client ID (required)",
		},
		outFlag: &cobraflags.StringFlag{
			Name:  outFlag,
			Value: "",
			Usage: "Output file (defaults to <prefix>_YYYY-MM-DD.csv in the current directory)",
		},
	}
}

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [analytics|payments]",
		Short: "Write client CSV exports",
	}
	cmd.AddCommand(newExportAnalyticsCommand(), newExportPaymentsCommand())
	return cmd
}

func parseClient(flags map[string]cobraflags.Flag) (uuid.UUID, error) {
	raw := flags[clientFlag].GetString()
	if raw == "" {
		return uuid.Nil, fmt.Errorf("--%s is required", clientFlag)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --%s: %w", clientFlag, err)
	}
	return id, nil
}

func writeExport(cmd *cobra.Command, flags map[string]cobraflags.Flag, prefix string, data []byte) error {
	path := flags[outFlag].GetString()
	if path == "" {
		path = csvexport.Filename(prefix, time.Now().UTC())
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(data))
	return nil
}

func newExportAnalyticsCommand() *cobra.Command {
	flags := exportFlags()
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Export a client's analytics report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			clientID, err := parseClient(flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			counts, err := analytics.NewRepository(e.pool).Counts(ctx, e.cfg.Portal.TenantID, clientID)
			if err != nil {
				return err
			}
			data, err := analytics.CSV(analytics.Build(counts))
			if err != nil {
				return err
			}
			return writeExport(cmd, flags, analytics.ReportPrefix, data)
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func newExportPaymentsCommand() *cobra.Command {
	flags := exportFlags()
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Export a client's payment history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			clientID, err := parseClient(flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			txns, err := billing.NewRepository(e.pool).Transactions(ctx, clientID)
			if err != nil {
				return err
			}
			data, err := billing.PaymentHistoryCSV(txns)
			if err != nil {
				return err
			}
			return writeExport(cmd, flags, billing.PaymentHistoryPrefix, data)
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}
