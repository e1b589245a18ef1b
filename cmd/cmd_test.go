// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findCommand locates a registered subcommand by name.
func findCommand(t *testing.T, name string) *cobra.Command {
	t.Helper()
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name {
			return cmd
		}
	}
	t.Fatalf("command %q is not registered", name)
	return nil
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	for _, name := range []string{"apply", "judge", "parse-resume", "runs"} {
		cmd := findCommand(t, name)
		assert.NotEmpty(t, cmd.Short, name)
	}
}

func TestRootCmd_VersionFlag(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"--version"})
	// The parsed --version value persists on the shared rootCmd across
	// Execute calls; reset it so later tests see a clean command.
	t.Cleanup(func() {
		_ = rootCmd.Flags().Set("version", "false")
	})

	// The version flag short-circuits before config loading.
	err := rootCmd.ExecuteContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out.String())
}

func TestRootCmd_HelpListsCommands(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{})

	err := rootCmd.ExecuteContext(context.Background())
	require.NoError(t, err)

	help := out.String()
	assert.Contains(t, help, "applypilot fills job application forms")
	for _, name := range []string{"apply", "judge", "parse-resume", "runs"} {
		assert.Contains(t, help, name)
	}
}

func TestApplyCmd_RequiresPostingURL(t *testing.T) {
	applyCmd := findCommand(t, "apply")

	require.Error(t, applyCmd.Args(applyCmd, []string{}))
	require.Error(t, applyCmd.Args(applyCmd, []string{"a", "b"}))
	assert.NoError(t, applyCmd.Args(applyCmd, []string{"https://jobs.acme.dev/1"}))
}

func TestApplyCmd_Flags(t *testing.T) {
	applyCmd := findCommand(t, "apply")

	for _, name := range []string{"resume", "profile", "headless", "outputs", "no-judge"} {
		assert.NotNil(t, applyCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "false", applyCmd.Flags().Lookup("no-judge").DefValue)
}

func TestJudgeCmd_RequiresPostingURL(t *testing.T) {
	judgeCmd := findCommand(t, "judge")

	require.Error(t, judgeCmd.Args(judgeCmd, []string{}))
	assert.NoError(t, judgeCmd.Args(judgeCmd, []string{"boards.greenhouse.io/acme/jobs/1"}))
	assert.NotNil(t, judgeCmd.Flags().Lookup("headless"))
}

func TestParseResumeCmd_TakesNoArgs(t *testing.T) {
	parseCmd := findCommand(t, "parse-resume")

	assert.NoError(t, parseCmd.Args(parseCmd, []string{}))
	require.Error(t, parseCmd.Args(parseCmd, []string{"stray"}))

	assert.NotNil(t, parseCmd.Flags().Lookup("resume"))
	out := parseCmd.Flags().Lookup("out")
	require.NotNil(t, out)
	assert.Equal(t, "o", out.Shorthand)
}

func TestRunsCmd_Flags(t *testing.T) {
	runsCmd := findCommand(t, "runs")

	assert.NoError(t, runsCmd.Args(runsCmd, []string{}))
	require.Error(t, runsCmd.Args(runsCmd, []string{"stray"}))

	limit := runsCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "n", limit.Shorthand)
	assert.Equal(t, "20", limit.DefValue)
	assert.NotNil(t, runsCmd.Flags().Lookup("url"))
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"jobs.acme.dev/1", "https://jobs.acme.dev/1"},
		{"https://jobs.acme.dev/1", "https://jobs.acme.dev/1"},
		{"http://legacy.example.com", "http://legacy.example.com"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, normalizeURL(tc.in), tc.in)
	}
}
