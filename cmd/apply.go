// -- cmd/apply.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/artifacts"
	"github.com/xkilldash9x/applypilot/internal/ask"
	"github.com/xkilldash9x/applypilot/internal/browser"
	"github.com/xkilldash9x/applypilot/internal/config"
	"github.com/xkilldash9x/applypilot/internal/form"
	"github.com/xkilldash9x/applypilot/internal/jobpage"
	"github.com/xkilldash9x/applypilot/internal/judge"
	"github.com/xkilldash9x/applypilot/internal/ledger"
	"github.com/xkilldash9x/applypilot/internal/llm"
	"github.com/xkilldash9x/applypilot/internal/observability"
	"github.com/xkilldash9x/applypilot/internal/profile"
	"github.com/xkilldash9x/applypilot/internal/runner"
)

// newApplyCmd creates and configures the `apply` command.
func newApplyCmd() *cobra.Command {
	var noJudge bool

	applyCmd := &cobra.Command{
		Use:   "apply [posting-url]",
		Short: "Fill and submit one job application, gated by your approvals",
		Long: `Apply resolves the real application form behind a posting URL, drafts a
tailored cover letter, answers the form from your resume (asking you whatever
it cannot answer), and submits only after you confirm. Every run leaves a
full artifact trail under the outputs directory.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so they override the config file and environment.
			if err := viper.BindPFlag("profile.resume_path", cmd.Flags().Lookup("resume")); err != nil {
				return err
			}
			if err := viper.BindPFlag("profile.profile_path", cmd.Flags().Lookup("profile")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			return viper.BindPFlag("outputs.dir", cmd.Flags().Lookup("outputs"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-load so the just-bound flags apply with the right precedence.
			finalCfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			cfg = finalCfg

			url := normalizeURL(args[0])

			components, err := initializeApplyComponents(ctx, cfg, logger, noJudge)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return fmt.Errorf("failed to initialize pipeline components: %w", err)
			}
			defer components.Shutdown()

			rec, runErr := components.Runner.Run(ctx, url)
			if runErr != nil {
				if errors.Is(runErr, runner.ErrAborted) {
					logger.Warn("Run aborted at an approval gate.", zap.String("run_id", rec.ID))
					fmt.Printf("\nRun %s aborted. Artifacts: %s\n", rec.ID, rec.ArtifactsDir)
					return nil
				}
				return runErr
			}

			fmt.Printf("\nRun %s finished: %s (submission: %s)\nArtifacts: %s\n",
				rec.ID, rec.State, rec.Submission, rec.ArtifactsDir)
			return nil
		},
	}

	applyCmd.Flags().String("resume", "", "Path to the resume file (.pdf or .txt). (Overrides config/env)")
	applyCmd.Flags().String("profile", "", "Path to a previously parsed profile JSON. (Overrides config/env)")
	applyCmd.Flags().Bool("headless", false, "Run the browser headless. (Overrides config/env)")
	applyCmd.Flags().String("outputs", "", "Artifact output directory. (Overrides config/env)")
	applyCmd.Flags().BoolVar(&noJudge, "no-judge", false, "Treat the URL as the form page itself; skip apply-link resolution.")

	return applyCmd
}

// applyComponents holds the initialized services of one apply run.
type applyComponents struct {
	Manager *browser.Manager
	Session *browser.Session
	Ledger  *ledger.Ledger
	Client  schemas.LLMClient
	Runner  *runner.Runner

	logger *zap.Logger
}

// Shutdown closes everything in reverse dependency order.
func (c *applyComponents) Shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if c.Session != nil {
		if err := c.Session.Close(shutdownCtx); err != nil {
			c.logger.Warn("Error closing browser session", zap.Error(err))
		}
	}
	if c.Manager != nil {
		if err := c.Manager.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("Error during browser shutdown", zap.Error(err))
		}
	}
	if c.Client != nil {
		if err := c.Client.Close(); err != nil {
			c.logger.Warn("Error closing LLM client", zap.Error(err))
		}
	}
	if c.Ledger != nil {
		if err := c.Ledger.Close(); err != nil {
			c.logger.Warn("Error closing run ledger", zap.Error(err))
		}
	}
}

// initializeApplyComponents handles dependency injection for the apply
// pipeline.
func initializeApplyComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, noJudge bool) (*applyComponents, error) {
	components := &applyComponents{logger: logger}

	// 1. Artifact store and run ledger.
	store, err := artifacts.New(cfg.Outputs, artifacts.NewRunID(), logger)
	if err != nil {
		return components, err
	}
	runLedger, err := ledger.Open(cfg.Outputs, logger)
	if err != nil {
		return components, err
	}
	components.Ledger = runLedger

	// 2. Language model client and the candidate profile. The resume is
	// parsed before any browser time is spent.
	client, err := llm.NewClient(cfg.LLM, logger)
	if err != nil {
		return components, err
	}
	components.Client = client

	loader := profile.NewLoader(cfg.Profile, llm.NewInferrer(client, "", cfg.LLM.Temperature, logger), logger)
	prof, resumeText, err := loader.Load(ctx)
	if err != nil {
		return components, err
	}
	if err := store.WriteProfile(prof); err != nil {
		logger.Warn("Could not write profile artifact", zap.Error(err))
	}
	inferrer := llm.NewInferrer(client, resumeText, cfg.LLM.Temperature, logger)

	// 3. Browser.
	manager, err := browser.NewManager(ctx, cfg.Browser, logger)
	if err != nil {
		return components, err
	}
	components.Manager = manager
	session, err := manager.NewSession(ctx)
	if err != nil {
		return components, err
	}
	components.Session = session

	// 4. Pipeline stages.
	asker := ask.NewTerminalAsker(os.Stdin, os.Stdout)
	var pageJudge runner.PageJudge
	if !noJudge {
		sink := func(label string, png []byte) { store.SaveScreenshot(label, png) }
		pageJudge = judge.New(session, cfg.Judge, sink, logger)
	}

	harvester := form.NewHarvester(session, cfg.Form, logger)
	deps := runner.Deps{
		Page:      session,
		Judge:     pageJudge,
		Capturer:  jobpage.NewCapturer(logger),
		Drafter:   inferrer,
		Scanner:   form.NewScanner(session, cfg.Form, logger),
		Harvester: harvester,
		Planner:   form.NewPlanner(prof, inferrer, asker, cfg.Profile.ResumePath, "", logger),
		Binder:    form.NewBinder(session, harvester, cfg.Form, logger),
		Submitter: form.NewSubmitter(session, logger),
		Asker:     asker,
		Profile:   prof,
		Store:     store,
		Ledger:    runLedger,
	}

	run, err := runner.New(deps, logger)
	if err != nil {
		return components, err
	}
	components.Runner = run
	return components, nil
}

// normalizeURL defaults bare hostnames to https.
func normalizeURL(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}
