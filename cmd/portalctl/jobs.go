package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/aura-portal/backend/pkg/queue"
)

const limitFlag = "limit"

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the background job queue",
	}
	cmd.AddCommand(newJobsDLQCommand())
	return cmd
}

func newJobsDLQCommand() *cobra.Command {
	flags := map[string]cobraflags.Flag{
		limitFlag: &cobraflags.StringFlag{Name: limitFlag, Value: "20", Usage: "Maximum jobs to print"},
	}
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Print jobs that exhausted their retries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, err := strconv.ParseInt(flags[limitFlag].GetString(), 10, 64)
			if err != nil || limit < 1 {
				return fmt.Errorf("invalid --%s", limitFlag)
			}
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()
			rdb, err := e.redis(ctx)
			if err != nil {
				return err
			}
			defer rdb.Close()

			jobs, err := queue.NewQueue(rdb.Client, e.logger).DeadLetters(ctx, limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(jobs)
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}
