// -- cmd/judge.go --
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/applypilot/internal/artifacts"
	"github.com/xkilldash9x/applypilot/internal/browser"
	"github.com/xkilldash9x/applypilot/internal/config"
	"github.com/xkilldash9x/applypilot/internal/judge"
	"github.com/xkilldash9x/applypilot/internal/observability"
)

// newJudgeCmd creates the `judge` command: resolve the application form
// behind a posting URL without filling anything.
func newJudgeCmd() *cobra.Command {
	judgeCmd := &cobra.Command{
		Use:   "judge [posting-url]",
		Short: "Resolve the real application form behind a posting URL",
		Long: `Judge navigates to the URL, classifies the ATS provider, chases apply
links and embedded iframes until it finds a fillable application form, and
reports where it landed. Nothing is filled or submitted.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			finalCfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			cfg = finalCfg

			url := normalizeURL(args[0])

			store, err := artifacts.New(cfg.Outputs, artifacts.NewRunID(), logger)
			if err != nil {
				return err
			}

			manager, err := browser.NewManager(ctx, cfg.Browser, logger)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := manager.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Error during browser shutdown", zap.Error(err))
				}
			}()

			session, err := manager.NewSession(ctx)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := session.Close(closeCtx); err != nil {
					logger.Warn("Error closing browser session", zap.Error(err))
				}
			}()

			sink := func(label string, png []byte) { store.SaveScreenshot(label, png) }
			result, err := judge.New(session, cfg.Judge, sink, logger).Resolve(ctx, url)
			if err != nil {
				return fmt.Errorf("form resolution failed: %w", err)
			}
			if err := store.WriteJudgeResult(result); err != nil {
				logger.Warn("Could not write judge result artifact", zap.Error(err))
			}

			fmt.Printf("\nStatus:   %s\nProvider: %s\nFinal URL: %s\nForm found: %t (in iframe: %t)\nHops: %d\nArtifacts: %s\n",
				result.Status, result.Provider, result.FinalURL, result.FormFound, result.FormInFrame, len(result.Steps), store.Dir())
			return nil
		},
	}

	judgeCmd.Flags().Bool("headless", false, "Run the browser headless. (Overrides config/env)")
	return judgeCmd
}
