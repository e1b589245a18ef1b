// File: internal/artifacts/store.go

// Package artifacts owns the per-run output tree. Every record the pipeline
// produces lands here so a run can be audited after the browser is gone:
//
//	outputs/<run-id>/
//	  data/         parsed_resume.json, planned_answers.json, ...
//	  documents/    job_page.md, job_summary.txt, cover_letter.txt
//	  screenshots/  labeled step and before/after-submit captures
//	  logs/         judge_result.json
//	  run.json
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	dirData        = "data"
	dirDocuments   = "documents"
	dirScreenshots = "screenshots"
	dirLogs        = "logs"
)

// Store writes run artifacts under a single run directory. Methods never
// abort the pipeline: an application run is worth more than its paperwork, so
// write failures are logged and folded into the error of Finalize.
type Store struct {
	runID       string
	root        string
	screenshots bool
	logger      *zap.Logger
}

// NewRunID returns a fresh identifier for one application run.
func NewRunID() string {
	return uuid.NewString()[:8]
}

// New creates the run directory tree under cfg.Dir.
func New(cfg config.OutputsConfig, runID string, logger *zap.Logger) (*Store, error) {
	base := cfg.Dir
	if base == "" {
		base = "outputs"
	}
	root := filepath.Join(base, runID)
	for _, sub := range []string{dirData, dirDocuments, dirScreenshots, dirLogs} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating artifact directory: %w", err)
		}
	}
	return &Store{
		runID:       runID,
		root:        root,
		screenshots: cfg.Screenshots,
		logger:      logger.Named("artifacts"),
	}, nil
}

// RunID returns the identifier the store was created with.
func (s *Store) RunID() string { return s.runID }

// Dir returns the run's root directory.
func (s *Store) Dir() string { return s.root }

// WriteProfile records the parsed candidate profile.
func (s *Store) WriteProfile(prof *schemas.ContactProfile) error {
	return s.writeJSON(dirData, "parsed_resume.json", prof)
}

// WriteJobPage records the captured posting as markdown.
func (s *Store) WriteJobPage(job *schemas.JobPosting) error {
	return s.writeText(dirDocuments, "job_page.md", job.Text())
}

// WriteJobSummary records the generated role summary.
func (s *Store) WriteJobSummary(text string) error {
	return s.writeText(dirDocuments, "job_summary.txt", text)
}

// WriteCoverLetter records the approved letter.
func (s *Store) WriteCoverLetter(text string) error {
	return s.writeText(dirDocuments, "cover_letter.txt", text)
}

// WriteJudgeResult records the application-page resolution trace.
func (s *Store) WriteJudgeResult(res *schemas.JudgeResult) error {
	return s.writeJSON(dirLogs, "judge_result.json", res)
}

// SaveScreenshot stores a labeled page capture and returns its path. Disabled
// stores and empty captures return "" without error.
func (s *Store) SaveScreenshot(label string, png []byte) string {
	if !s.screenshots || len(png) == 0 {
		return ""
	}
	name := uuid.NewString() + ".png"
	if slug := slugify(label); slug != "" {
		name = slug + "_" + name
	}
	path := filepath.Join(s.root, dirScreenshots, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		s.logger.Warn("Failed to save screenshot.", zap.String("label", label), zap.Error(err))
		return ""
	}
	s.logger.Debug("Screenshot saved.", zap.String("path", path))
	return path
}

// Finalize flushes the end-of-run records in parallel and returns the first
// write error after all writes were attempted.
func (s *Store) Finalize(rec *schemas.RunRecord, doc *schemas.AnswersDocument, unresolved []schemas.UnresolvedField) error {
	var g errgroup.Group
	g.Go(func() error { return s.writeJSON("", "run.json", rec) })
	if doc != nil {
		g.Go(func() error { return s.writeJSON(dirData, "planned_answers.json", doc) })
		if len(doc.Skipped) > 0 {
			skipped := doc.Skipped
			g.Go(func() error { return s.writeJSON(dirData, "skipped_fields.json", skipped) })
		}
	}
	if len(unresolved) > 0 {
		g.Go(func() error { return s.writeJSON(dirData, "unresolved_fields.json", unresolved) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("finalizing run artifacts: %w", err)
	}
	s.logger.Info("Run artifacts written.", zap.String("dir", s.root))
	return nil
}

func (s *Store) writeJSON(subdir, name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return s.write(subdir, name, raw)
}

func (s *Store) writeText(subdir, name, text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return s.write(subdir, name, []byte(text))
}

func (s *Store) write(subdir, name string, raw []byte) error {
	path := filepath.Join(s.root, subdir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		s.logger.Warn("Artifact write failed.", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// slugify reduces a free-form label to a filesystem-safe prefix.
func slugify(label string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '/':
			sb.WriteByte('_')
		}
	}
	return strings.Trim(sb.String(), "_")
}
