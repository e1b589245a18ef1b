// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the root configuration, populated from the config file,
// APPLYPILOT_* environment variables, and command-line flags.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Profile ProfileConfig `mapstructure:"profile" yaml:"profile"`
	Outputs OutputsConfig `mapstructure:"outputs" yaml:"outputs"`
	Form    FormConfig    `mapstructure:"form" yaml:"form"`
	Judge   JudgeConfig   `mapstructure:"judge" yaml:"judge"`
}

// LoggingConfig controls the zap console and file cores.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	AddCaller  bool   `mapstructure:"add_caller" yaml:"add_caller"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the Chrome session.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	DisableGPU        bool          `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	Args              []string      `mapstructure:"args" yaml:"args"`
}

// LLMConfig controls the Gemini transport and model routing.
type LLMConfig struct {
	Provider       string        `mapstructure:"provider" yaml:"provider"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint       string        `mapstructure:"endpoint" yaml:"endpoint"`
	FastModel      string        `mapstructure:"fast_model" yaml:"fast_model"`
	PowerfulModel  string        `mapstructure:"powerful_model" yaml:"powerful_model"`
	Temperature    float64       `mapstructure:"temperature" yaml:"temperature"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxRetryTime   time.Duration `mapstructure:"max_retry_time" yaml:"max_retry_time"`
	// RequestsPerMinute throttles outbound calls; free-tier Gemini keys are
	// aggressively rate limited.
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// ProfileConfig locates the candidate's inputs.
type ProfileConfig struct {
	ResumePath string `mapstructure:"resume_path" yaml:"resume_path"`
	// ProfilePath points at a previously parsed profile JSON; when empty the
	// résumé is parsed on demand and cached under the outputs tree.
	ProfilePath string `mapstructure:"profile_path" yaml:"profile_path"`
}

// OutputsConfig controls the artifact tree and the run ledger.
type OutputsConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	LedgerPath  string `mapstructure:"ledger_path" yaml:"ledger_path"`
	Screenshots bool   `mapstructure:"screenshots" yaml:"screenshots"`
}

// FormConfig carries the tunable policy knobs of the fill protocol.
type FormConfig struct {
	// RequiredMarkers are the label glyphs treated as "this field is
	// mandatory". The asterisk heuristic over-triggers on purpose; extend the
	// list for ATS platforms using other markers.
	RequiredMarkers []string      `mapstructure:"required_markers" yaml:"required_markers"`
	HarvestAttempts int           `mapstructure:"harvest_attempts" yaml:"harvest_attempts"`
	HarvestSettle   time.Duration `mapstructure:"harvest_settle" yaml:"harvest_settle"`
	ScanAttempts    int           `mapstructure:"scan_attempts" yaml:"scan_attempts"`
	ScanSettle      time.Duration `mapstructure:"scan_settle" yaml:"scan_settle"`
	TypingDelay     time.Duration `mapstructure:"typing_delay" yaml:"typing_delay"`
}

// JudgeConfig tunes application-page resolution.
type JudgeConfig struct {
	MaxHops         int `mapstructure:"max_hops" yaml:"max_hops"`
	MinFormControls int `mapstructure:"min_form_controls" yaml:"min_form_controls"`
}

// RegisterDefaults seeds viper with every default so a bare invocation works
// without any config file.
func RegisterDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.add_caller", false)
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("logging.compress", false)

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.disable_gpu", false)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.window_width", 1440)
	v.SetDefault("browser.window_height", 1000)
	v.SetDefault("browser.navigation_timeout", 45*time.Second)
	v.SetDefault("browser.post_load_wait", 1500*time.Millisecond)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.fast_model", "gemini-2.0-flash")
	v.SetDefault("llm.powerful_model", "gemini-2.5-pro")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.request_timeout", 90*time.Second)
	v.SetDefault("llm.max_retry_time", 2*time.Minute)
	v.SetDefault("llm.requests_per_minute", 12)

	v.SetDefault("outputs.dir", "outputs")
	v.SetDefault("outputs.screenshots", true)

	v.SetDefault("form.required_markers", []string{"*"})
	v.SetDefault("form.harvest_attempts", 3)
	v.SetDefault("form.harvest_settle", 350*time.Millisecond)
	v.SetDefault("form.scan_attempts", 4)
	v.SetDefault("form.scan_settle", 500*time.Millisecond)
	v.SetDefault("form.typing_delay", 25*time.Millisecond)

	v.SetDefault("judge.max_hops", 6)
	v.SetDefault("judge.min_form_controls", 2)
}

// Load unmarshals the viper state into a Config, expands user paths, and
// validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandPaths resolves ~ in every user-supplied file path.
func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.Profile.ResumePath,
		&c.Profile.ProfilePath,
		&c.Outputs.Dir,
		&c.Outputs.LedgerPath,
		&c.Logging.File,
	} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("could not expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate rejects configurations the pipeline cannot run with. The API key
// is checked lazily by the LLM client so offline subcommands still work.
func (c *Config) Validate() error {
	if c.LLM.Provider != "gemini" {
		return fmt.Errorf("unsupported llm provider %q, supported: [gemini]", c.LLM.Provider)
	}
	if c.Form.HarvestAttempts < 1 {
		return fmt.Errorf("form.harvest_attempts must be at least 1, got %d", c.Form.HarvestAttempts)
	}
	if c.Form.ScanAttempts < 1 {
		return fmt.Errorf("form.scan_attempts must be at least 1, got %d", c.Form.ScanAttempts)
	}
	if c.Judge.MaxHops < 0 {
		return fmt.Errorf("judge.max_hops must not be negative, got %d", c.Judge.MaxHops)
	}
	if len(c.Form.RequiredMarkers) == 0 {
		return fmt.Errorf("form.required_markers must not be empty")
	}
	for _, m := range c.Form.RequiredMarkers {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("form.required_markers entries must not be blank")
		}
	}
	return nil
}
