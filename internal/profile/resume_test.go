// File: internal/profile/resume_test.go
package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadResumeText_PlainText(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "resume.md")
	require.NoError(t, os.WriteFile(path, []byte("\n# Jane Doe\nGo engineer.\n\n"), 0o644))

	text, err := ReadResumeText(path)
	require.NoError(t, err)
	assert.Equal(t, "# Jane Doe\nGo engineer.", text)
}

func TestReadResumeText_Errors(t *testing.T) {
	t.Parallel()

	t.Run("no path", func(t *testing.T) {
		t.Parallel()
		_, err := ReadResumeText("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no résumé path configured")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := ReadResumeText(filepath.Join(t.TempDir(), "gone.txt"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading résumé")
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "blank.txt")
		require.NoError(t, os.WriteFile(path, []byte("  \n "), 0o644))
		_, err := ReadResumeText(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is empty")
	})

	t.Run("missing pdf", func(t *testing.T) {
		t.Parallel()
		_, err := ReadResumeText(filepath.Join(t.TempDir(), "gone.PDF"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "opening résumé", "the extension check is case insensitive")
	})

	t.Run("garbage pdf", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "broken.pdf")
		require.NoError(t, os.WriteFile(path, []byte("not a pdf at all"), 0o644))
		_, err := ReadResumeText(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading PDF")
	})
}

func TestDecodeContentStream(t *testing.T) {
	t.Parallel()

	stream := []byte(`BT
/F1 12 Tf
1 0 0 1 72 720 Tm
(Jane Doe) Tj
0 -14 Td
(Go engineer) Tj
T*
[(Eight ) (years)] TJ
(of experience)'
ET`)

	got := decodeContentStream(stream)
	assert.Equal(t, "Jane Doe Go engineer Eight years of experience", got)
}

func TestDecodeContentStream_IgnoresNonTextOperators(t *testing.T) {
	t.Parallel()

	stream := []byte("q\n0.5 w\n(ignored) re\nQ\n")
	assert.Equal(t, "", decodeContentStream(stream))
}

func TestDecodePDFString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Jane Doe", "Jane Doe"},
		{"newline and tab", `a\nb\tc`, "a\nb\tc"},
		{"escaped delimiters", `\(x\) and \\`, `(x) and \`},
		{"octal paren", `\050hi\051`, "(hi)"},
		{"short octal", `a\12b`, "a\nb"},
		{"unknown escape passes through", `a\qb`, "aqb"},
		{"trailing backslash kept", `abc\`, `abc\`},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, decodePDFString([]byte(tc.in)))
		})
	}
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b c", cleanText("  a\t\n b   c "))
	assert.Equal(t, "ab", cleanText("a\x00\x01b"))
	assert.Equal(t, "", cleanText(" \n\t"))
}
