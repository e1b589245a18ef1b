// File: internal/profile/loader.go
package profile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Parser turns raw résumé text into a structured profile. *llm.Inferrer
// satisfies it.
type Parser interface {
	ParseResume(ctx context.Context, resumeText string) (*schemas.ContactProfile, error)
}

// Loader resolves the candidate profile for a run, preferring a previously
// parsed profile JSON over a fresh language-model parse.
type Loader struct {
	cfg    config.ProfileConfig
	parser Parser
	logger *zap.Logger
}

func NewLoader(cfg config.ProfileConfig, parser Parser, logger *zap.Logger) *Loader {
	return &Loader{cfg: cfg, parser: parser, logger: logger.Named("profile")}
}

// Load returns the contact profile and the raw résumé text. The text is kept
// even when the profile comes from cache, since field inference grounds its
// answers in it. Missing résumé text is tolerated only when a cached profile
// exists.
func (l *Loader) Load(ctx context.Context) (*schemas.ContactProfile, string, error) {
	var text string
	if l.cfg.ResumePath != "" {
		var err error
		text, err = ReadResumeText(l.cfg.ResumePath)
		if err != nil {
			l.logger.Warn("Could not read résumé text.",
				zap.String("path", l.cfg.ResumePath), zap.Error(err))
			text = ""
		}
	}

	if l.cfg.ProfilePath != "" {
		prof, err := ReadProfile(l.cfg.ProfilePath)
		switch {
		case err == nil:
			l.logger.Info("Loaded cached candidate profile.",
				zap.String("path", l.cfg.ProfilePath), zap.String("name", prof.Name()))
			return prof, text, nil
		case errors.Is(err, fs.ErrNotExist):
			l.logger.Info("No cached profile yet, parsing résumé.",
				zap.String("path", l.cfg.ProfilePath))
		default:
			l.logger.Warn("Cached profile is unreadable, parsing résumé instead.",
				zap.String("path", l.cfg.ProfilePath), zap.Error(err))
		}
	}

	if text == "" {
		return nil, "", fmt.Errorf("no cached profile and no readable résumé at %q", l.cfg.ResumePath)
	}
	if l.parser == nil {
		return nil, "", errors.New("no résumé parser available")
	}

	prof, err := l.parser.ParseResume(ctx, text)
	if err != nil {
		return nil, "", fmt.Errorf("parsing résumé: %w", err)
	}
	l.logger.Info("Parsed résumé into candidate profile.", zap.String("name", prof.Name()))

	if l.cfg.ProfilePath != "" {
		if err := WriteProfile(l.cfg.ProfilePath, prof); err != nil {
			l.logger.Warn("Could not cache parsed profile.",
				zap.String("path", l.cfg.ProfilePath), zap.Error(err))
		}
	}
	return prof, text, nil
}

// ReadProfile decodes a parsed-profile JSON file.
func ReadProfile(path string) (*schemas.ContactProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var prof schemas.ContactProfile
	if err := json.Unmarshal(raw, &prof); err != nil {
		return nil, fmt.Errorf("decoding profile %s: %w", path, err)
	}
	return &prof, nil
}

// WriteProfile serializes the profile to path, creating parent directories.
func WriteProfile(path string, prof *schemas.ContactProfile) error {
	raw, err := json.MarshalIndent(prof, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating profile directory: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	return nil
}
