// -- cmd/parse.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/applypilot/internal/config"
	"github.com/xkilldash9x/applypilot/internal/llm"
	"github.com/xkilldash9x/applypilot/internal/observability"
	"github.com/xkilldash9x/applypilot/internal/profile"
)

// newParseResumeCmd creates the `parse-resume` command: extract a structured
// profile from the resume and cache it, without touching a browser.
func newParseResumeCmd() *cobra.Command {
	var outPath string

	parseCmd := &cobra.Command{
		Use:   "parse-resume",
		Short: "Parse the resume into a structured profile JSON",
		Long: `Parse-resume extracts the text of the configured resume, asks the language
model to structure it into a contact profile, and writes the profile JSON.
Later apply runs reuse the cached profile instead of re-parsing.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlag("profile.resume_path", cmd.Flags().Lookup("resume"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			finalCfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			cfg = finalCfg

			text, err := profile.ReadResumeText(cfg.Profile.ResumePath)
			if err != nil {
				return err
			}

			client, err := llm.NewClient(cfg.LLM, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := client.Close(); err != nil {
					logger.Warn("Error closing LLM client", zap.Error(err))
				}
			}()

			prof, err := llm.NewInferrer(client, "", cfg.LLM.Temperature, logger).ParseResume(ctx, text)
			if err != nil {
				return fmt.Errorf("resume parsing failed: %w", err)
			}

			dest := outPath
			if dest == "" {
				dest = cfg.Profile.ProfilePath
			}
			if dest == "" {
				dest = "parsed_resume.json"
			}
			if err := profile.WriteProfile(dest, prof); err != nil {
				return err
			}

			fmt.Printf("Parsed profile for %q written to %s\n", prof.FullName, dest)
			return nil
		},
	}

	parseCmd.Flags().String("resume", "", "Path to the resume file (.pdf or .txt). (Overrides config/env)")
	parseCmd.Flags().StringVarP(&outPath, "out", "o", "", "Where to write the profile JSON. (Default: profile.profile_path)")
	return parseCmd
}
