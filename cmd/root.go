// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/applypilot/internal/config"
	"github.com/xkilldash9x/applypilot/internal/observability"
)

var cfgFile string

// cfg holds the fully loaded configuration for the running command. It is
// populated by the root PersistentPreRunE; subcommands re-load it after
// binding their own flags.
var cfg *config.Config

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "applypilot",
	Short: "applypilot fills job application forms from your resume, with you approving every step.",
	// Version is dynamically set at build time. See cmd/version.go.
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Runs before any command, setting up config and logging.
		if err := initializeConfig(); err != nil {
			return err
		}

		loaded, err := config.Load(viper.GetViper())
		if err != nil {
			// Initialize a fallback logger so the failure is still readable.
			observability.InitializeLogger(config.LoggingConfig{Level: "info", Format: "console"})
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded

		observability.InitializeLogger(cfg.Logging)
		observability.GetLogger().Info("Starting applypilot", zap.String("version", Version))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. The run context ends on SIGINT/SIGTERM so the browser and
// the ledger shut down cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	observability.Sync()
	if err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newApplyCmd())
	rootCmd.AddCommand(newJudgeCmd())
	rootCmd.AddCommand(newParseResumeCmd())
	rootCmd.AddCommand(newRunsCmd())
}

// initializeConfig reads the .env file, the config file, and environment
// variables, in ascending precedence below flags.
func initializeConfig() error {
	// A .env in the working directory is the usual home of GEMINI_API_KEY.
	// Missing files are fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("APPLYPILOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.RegisterDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars.
	}

	// GEMINI_API_KEY is the name the provider documents; honor it when the
	// prefixed form is absent.
	if viper.GetString("llm.api_key") == "" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			viper.Set("llm.api_key", key)
		}
	}
	return nil
}
