// File: internal/config/config_test.go
package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Defaults Tests --

func TestDefaults(t *testing.T) {
	v := viper.New()
	RegisterDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err, "a bare default config must load and validate")

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 45*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.PowerfulModel)
	assert.Equal(t, 12, cfg.LLM.RequestsPerMinute)
	assert.Equal(t, []string{"*"}, cfg.Form.RequiredMarkers)
	assert.Equal(t, 4, cfg.Form.ScanAttempts)
	assert.Equal(t, 6, cfg.Judge.MaxHops)
	assert.Equal(t, "outputs", cfg.Outputs.Dir)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	valid := func(t *testing.T) *Config {
		t.Helper()
		v := viper.New()
		RegisterDefaults(v)
		cfg, err := Load(v)
		require.NoError(t, err)
		return cfg
	}

	t.Run("Valid Defaults", func(t *testing.T) {
		assert.NoError(t, valid(t).Validate())
	})

	t.Run("Unsupported Provider", func(t *testing.T) {
		cfg := valid(t)
		cfg.LLM.Provider = "openai"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported llm provider "openai"`)
	})

	t.Run("Invalid Harvest Attempts", func(t *testing.T) {
		cfg := valid(t)
		cfg.Form.HarvestAttempts = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "form.harvest_attempts must be at least 1")
	})

	t.Run("Invalid Scan Attempts", func(t *testing.T) {
		cfg := valid(t)
		cfg.Form.ScanAttempts = -1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "form.scan_attempts must be at least 1")
	})

	t.Run("Negative Judge Hops", func(t *testing.T) {
		cfg := valid(t)
		cfg.Judge.MaxHops = -1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "judge.max_hops must not be negative")
	})

	t.Run("Required Markers", func(t *testing.T) {
		cfg := valid(t)
		cfg.Form.RequiredMarkers = nil
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "form.required_markers must not be empty")

		cfg.Form.RequiredMarkers = []string{"*", "   "}
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must not be blank")
	})

	t.Run("Zero Hops Allowed", func(t *testing.T) {
		// max_hops 0 means "never walk apply links", which is a legal policy.
		cfg := valid(t)
		cfg.Judge.MaxHops = 0
		assert.NoError(t, cfg.Validate())
	})
}

// -- Struct and Mapping Tests --

func TestConfigStructureMapping(t *testing.T) {
	yamlInput := `
logging:
  level: debug
  file: /var/log/applypilot.log
browser:
  headless: true
  navigation_timeout: 20s
llm:
  fast_model: gemini-2.0-flash-lite
form:
  required_markers: ["*", "(required)"]
  typing_delay: 5ms
`
	v := viper.New()
	RegisterDefaults(v)
	v.SetConfigType("yaml")
	err := v.ReadConfig(bytes.NewBufferString(yamlInput))
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/var/log/applypilot.log", cfg.Logging.File)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 20*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, "gemini-2.0-flash-lite", cfg.LLM.FastModel)
	assert.Equal(t, []string{"*", "(required)"}, cfg.Form.RequiredMarkers)
	assert.Equal(t, 5*time.Millisecond, cfg.Form.TypingDelay)
	// Untouched keys keep their defaults.
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.PowerfulModel)
	assert.Equal(t, 3, cfg.Form.HarvestAttempts)
}

func TestLoadExpandsHomePaths(t *testing.T) {
	home, err := homedir.Dir()
	require.NoError(t, err)

	v := viper.New()
	RegisterDefaults(v)
	v.Set("profile.resume_path", "~/docs/resume.pdf")
	v.Set("outputs.dir", "~/applypilot-out")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "docs", "resume.pdf"), cfg.Profile.ResumePath)
	assert.Equal(t, filepath.Join(home, "applypilot-out"), cfg.Outputs.Dir)
	assert.Empty(t, cfg.Profile.ProfilePath, "unset paths stay empty")
}

func TestLoadRejectsInvalid(t *testing.T) {
	v := viper.New()
	RegisterDefaults(v)
	v.Set("llm.provider", "openai")

	cfg, err := Load(v)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}
