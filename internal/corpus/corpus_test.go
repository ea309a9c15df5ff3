package corpus

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuichiro/combogen/internal/model"
	"github.com/kuichiro/combogen/internal/testutil"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestCorpus(t *testing.T) (*Corpus, string, string) {
	t.Helper()
	rawDir := t.TempDir()
	deliveredDir := t.TempDir()
	return New(rawDir, deliveredDir, testutil.MakeNoopLogger()), rawDir, deliveredDir
}

func TestCorpus_CandidatesRecencyOrder(t *testing.T) {
	c, rawDir, deliveredDir := newTestCorpus(t)

	older := writeFile(t, rawDir, "older.txt", "a\n")
	newer := writeFile(t, deliveredDir, "newer.txt", "b\n")
	ignored := writeFile(t, rawDir, "notes.md", "c\n")

	base := time.Now()
	require.NoError(t, os.Chtimes(older, base.Add(-2*time.Hour), base.Add(-2*time.Hour)))
	require.NoError(t, os.Chtimes(newer, base, base))

	got := c.Candidates()
	require.Equal(t, []string{newer, older}, got)
	assert.NotContains(t, got, ignored)
}

func TestCorpus_CandidatesWalksSubdirs(t *testing.T) {
	c, rawDir, _ := newTestCorpus(t)

	nested := writeFile(t, rawDir, filepath.Join("2024", "dump.txt"), "x\n")

	assert.Contains(t, c.Candidates(), nested)
}

func TestCorpus_CandidatesMissingRoots(t *testing.T) {
	c := New("/nonexistent/raw", "/nonexistent/delivered", testutil.MakeNoopLogger())

	assert.Empty(t, c.Candidates())
	assert.Empty(t, c.LoadDelivered())
}

func TestCorpus_LoadDeliveredTrims(t *testing.T) {
	c, _, deliveredDir := newTestCorpus(t)

	writeFile(t, deliveredDir, "first.txt", "  a@b.com:pw1  \nuser_name:pw2\n")
	writeFile(t, deliveredDir, "second.txt", "a@b.com:pw1\nc@d.com:pw3")

	got := c.LoadDelivered()
	assert.Contains(t, got, "a@b.com:pw1")
	assert.Contains(t, got, "user_name:pw2")
	assert.Contains(t, got, "c@d.com:pw3")
}

func TestCorpus_WriteDelivered(t *testing.T) {
	c, _, deliveredDir := newTestCorpus(t)

	path, err := c.WriteDelivered("Results.txt", []model.AccountRecord{"a@b.com:pw1", "user_name:pw2"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(deliveredDir, "Results.txt"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com:pw1\nuser_name:pw2", string(content))

	// No temp leftovers.
	entries, err := os.ReadDir(deliveredDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCorpus_WriteDeliveredStripsPath(t *testing.T) {
	c, _, deliveredDir := newTestCorpus(t)

	path, err := c.WriteDelivered("../../escape.txt", []model.AccountRecord{"a@b.com:pw"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(deliveredDir, "escape.txt"), path)
}

func TestCorpus_ReadDeliveredLines(t *testing.T) {
	c, _, deliveredDir := newTestCorpus(t)

	writeFile(t, deliveredDir, "out.txt", "a@b.com:pw\n\nuser_name:pw2\n")

	lines, err := c.ReadDeliveredLines("out.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@b.com:pw", "user_name:pw2"}, lines)

	_, err = c.ReadDeliveredLines("missing.txt")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCorpus_CountKeyword(t *testing.T) {
	c, rawDir, deliveredDir := newTestCorpus(t)

	writeFile(t, rawDir, "dump.txt", "https://garena.com a@b.com:pw\nother line\nGARENA.com again\n")
	writeFile(t, deliveredDir, "out.txt", "delivered garena.com line\n")

	raw, delivered := c.CountKeyword("Garena.com")
	assert.Equal(t, 2, raw)
	assert.Equal(t, 1, delivered)
}
