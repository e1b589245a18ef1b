// File: internal/profile/loader_test.go
package profile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/config"
)

type stubParser struct {
	profile *schemas.ContactProfile
	err     error
	calls   int
}

func (s *stubParser) ParseResume(_ context.Context, _ string) (*schemas.ContactProfile, error) {
	s.calls++
	return s.profile, s.err
}

func janeProfile() *schemas.ContactProfile {
	return &schemas.ContactProfile{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@doe.dev",
	}
}

func writeResume(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "resume.txt")
	require.NoError(t, os.WriteFile(path, []byte("Jane Doe\nGo engineer, eight years.\n"), 0o644))
	return path
}

func TestLoader_PrefersCachedProfile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	profPath := filepath.Join(dir, "profile.json")
	require.NoError(t, WriteProfile(profPath, janeProfile()))

	parser := &stubParser{}
	loader := NewLoader(config.ProfileConfig{
		ResumePath:  writeResume(t, dir),
		ProfilePath: profPath,
	}, parser, zaptest.NewLogger(t))

	prof, text, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", prof.Name())
	assert.Contains(t, text, "Go engineer", "résumé text is read even on a cache hit")
	assert.Zero(t, parser.calls, "the cache hit must skip the parse")
}

func TestLoader_ParsesAndCaches(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	profPath := filepath.Join(dir, "nested", "profile.json")

	parser := &stubParser{profile: janeProfile()}
	loader := NewLoader(config.ProfileConfig{
		ResumePath:  writeResume(t, dir),
		ProfilePath: profPath,
	}, parser, zaptest.NewLogger(t))

	prof, text, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jane@doe.dev", prof.Email)
	assert.NotEmpty(t, text)
	assert.Equal(t, 1, parser.calls)

	cached, err := ReadProfile(profPath)
	require.NoError(t, err, "the parse result is cached for the next run")
	assert.Equal(t, prof.Email, cached.Email)
}

func TestLoader_CorruptCacheFallsBackToParse(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	profPath := filepath.Join(dir, "profile.json")
	require.NoError(t, os.WriteFile(profPath, []byte("{not json"), 0o644))

	parser := &stubParser{profile: janeProfile()}
	loader := NewLoader(config.ProfileConfig{
		ResumePath:  writeResume(t, dir),
		ProfilePath: profPath,
	}, parser, zaptest.NewLogger(t))

	prof, _, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, parser.calls)
	assert.Equal(t, "Jane", prof.FirstName)
}

func TestLoader_NothingToLoadFails(t *testing.T) {
	t.Parallel()

	loader := NewLoader(config.ProfileConfig{
		ResumePath:  filepath.Join(t.TempDir(), "missing.txt"),
		ProfilePath: filepath.Join(t.TempDir(), "missing.json"),
	}, &stubParser{profile: janeProfile()}, zaptest.NewLogger(t))

	_, _, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cached profile and no readable résumé")
}

func TestLoader_NoParserFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	loader := NewLoader(config.ProfileConfig{
		ResumePath: writeResume(t, dir),
	}, nil, zaptest.NewLogger(t))

	_, _, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no résumé parser available")
}

func TestLoader_ParserErrorPropagates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	parser := &stubParser{err: errors.New("model unavailable")}
	loader := NewLoader(config.ProfileConfig{
		ResumePath: writeResume(t, dir),
	}, parser, zaptest.NewLogger(t))

	_, _, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing résumé")
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestLoader_CacheWriteFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// A directory at the profile path makes the cache write fail.
	profPath := filepath.Join(dir, "profile.json")
	require.NoError(t, os.MkdirAll(profPath, 0o755))

	parser := &stubParser{profile: janeProfile()}
	loader := NewLoader(config.ProfileConfig{
		ResumePath:  writeResume(t, dir),
		ProfilePath: profPath,
	}, parser, zaptest.NewLogger(t))

	prof, _, err := loader.Load(context.Background())
	require.NoError(t, err, "a failed cache write must not fail the run")
	assert.Equal(t, "Jane", prof.FirstName)
}

func TestReadProfile_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := ReadProfile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
