package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-llama/semtools/pkg/types"
)

// openTestWorkspace redirects HOME to a temp dir so workspace roots are
// isolated per test.
func openTestWorkspace(t *testing.T, name string) *Workspace {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	ws, err := Open(name, "test-model", 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// putEntry embeds a tiny fixture: one window per line, one-hot rows.
func putEntry(t *testing.T, ws *Workspace, path string, content string) *types.FileEmbedding {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	dim := 4
	fe := &types.FileEmbedding{
		Path:        path,
		Fingerprint: types.FingerprintBytes([]byte(content)),
		Options:     types.OptionsFingerprint{7},
		Dim:         dim,
		Windows:     []types.Window{{StartLine: 1, EndLine: 1}},
		Vectors:     []float32{1, 0, 0, 0},
	}
	require.NoError(t, ws.RecordPut(fe))
	return fe
}

func TestActive(t *testing.T) {
	t.Setenv(EnvWorkspace, "")
	_, err := Active()
	assert.ErrorIs(t, err, types.ErrNoWorkspace)

	t.Setenv(EnvWorkspace, "docs")
	name, err := Active()
	require.NoError(t, err)
	assert.Equal(t, "docs", name)
}

func TestOpen_CreatesStructure(t *testing.T) {
	ws := openTestWorkspace(t, "fresh")

	assert.DirExists(t, filepath.Join(ws.Root, "entries"))
	assert.FileExists(t, filepath.Join(ws.Root, "header.json"))
	assert.Equal(t, HeaderSchemaVersion, ws.Header.SchemaVersion)
	assert.Equal(t, "test-model", ws.Header.ModelID)
	assert.Equal(t, 4, ws.Header.ModelDim)
	assert.True(t, ws.HasCatalog())
}

func TestOpen_HeaderCompletedLater(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	// First open without a model (workspace use before model install).
	ws, err := Open("late", "", 0)
	require.NoError(t, err)
	require.NoError(t, ws.Close())

	ws, err = Open("late", "real-model", 8)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	assert.Equal(t, "real-model", ws.Header.ModelID)
	assert.Equal(t, 8, ws.Header.ModelDim)
}

func TestStatus(t *testing.T) {
	ws := openTestWorkspace(t, "stats")
	dir := t.TempDir()

	putEntry(t, ws, filepath.Join(dir, "a.txt"), "aaa")
	putEntry(t, ws, filepath.Join(dir, "b.txt"), "bbb")

	status, err := ws.Status()
	require.NoError(t, err)
	assert.Equal(t, "stats", status.Name)
	assert.Equal(t, 2, status.Entries)
	assert.Positive(t, status.SizeBytes)
	assert.True(t, status.HasCatalog)
}

func TestPrune_RemovesMissingAndChanged(t *testing.T) {
	ws := openTestWorkspace(t, "prune")
	dir := t.TempDir()

	gone := filepath.Join(dir, "gone.txt")
	changed := filepath.Join(dir, "changed.txt")
	kept := filepath.Join(dir, "kept.txt")

	putEntry(t, ws, gone, "gone")
	putEntry(t, ws, changed, "before")
	putEntry(t, ws, kept, "kept")

	require.NoError(t, os.Remove(gone))
	require.NoError(t, os.WriteFile(changed, []byte("after"), 0644))

	out, err := ws.Prune()
	require.NoError(t, err)
	assert.Equal(t, 2, out.Removed)
	assert.Equal(t, 1, out.Remaining)
	assert.ElementsMatch(t, []string{gone, changed}, out.Paths)

	// Idempotent: a second prune removes nothing.
	out, err = ws.Prune()
	require.NoError(t, err)
	assert.Equal(t, 0, out.Removed)
	assert.Equal(t, 1, out.Remaining)
}

func TestEntries_RebuildsCatalogFromScan(t *testing.T) {
	ws := openTestWorkspace(t, "rebuild")
	dir := t.TempDir()

	putEntry(t, ws, filepath.Join(dir, "a.txt"), "aaa")

	// Wipe the catalog table behind the workspace's back.
	require.NoError(t, ws.catalog.Rebuild(nil))

	rows, err := ws.Entries()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, filepath.Join(dir, "a.txt"), rows[0].Path)

	// The catalog caught up.
	count, _, err := ws.catalog.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUse_PrintsActivation(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	ws, instruction, err := Use("docs", "", 0)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	assert.Equal(t, "export SEMTOOLS_WORKSPACE=docs", instruction)
	assert.DirExists(t, ws.Root)
}

func TestCatalog_CountAndDelete(t *testing.T) {
	ws := openTestWorkspace(t, "catalog")
	dir := t.TempDir()

	a := putEntry(t, ws, filepath.Join(dir, "a.txt"), "aaa")
	putEntry(t, ws, filepath.Join(dir, "b.txt"), "bbb")

	count, size, err := ws.catalog.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Positive(t, size)

	require.NoError(t, ws.RecordRemove(a.Path))

	count, _, err = ws.catalog.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
