// -- cmd/runs.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/applypilot/internal/config"
	"github.com/xkilldash9x/applypilot/internal/ledger"
	"github.com/xkilldash9x/applypilot/internal/observability"
)

// newRunsCmd creates the `runs` command: list past application runs from the
// local ledger.
func newRunsCmd() *cobra.Command {
	var (
		limit int
		byURL string
	)

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List past application runs from the local ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			finalCfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			cfg = finalCfg

			runLedger, err := ledger.Open(cfg.Outputs, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := runLedger.Close(); err != nil {
					logger.Warn("Error closing run ledger", zap.Error(err))
				}
			}()

			records, err := runLedger.Recent(ctx, limit)
			if byURL != "" {
				records, err = runLedger.ByURL(ctx, normalizeURL(byURL))
			}
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No runs recorded yet.")
				return nil
			}

			fmt.Printf("%-10s %-19s %-12s %-11s %6s %6s  %s\n",
				"RUN", "STARTED", "STATE", "SUBMISSION", "FOUND", "BOUND", "URL")
			for _, rec := range records {
				url := rec.ResolvedURL
				if url == "" {
					url = rec.URL
				}
				fmt.Printf("%-10s %-19s %-12s %-11s %6d %6d  %s\n",
					rec.ID, rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
					rec.State, rec.Submission, rec.FieldsFound, rec.FieldsBound, url)
			}
			return nil
		},
	}

	runsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list.")
	runsCmd.Flags().StringVar(&byURL, "url", "", "List only runs against this posting URL.")
	return runsCmd
}
