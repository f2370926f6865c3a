package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-llama/semtools/internal/embedder"
	"github.com/run-llama/semtools/internal/window"
	"github.com/run-llama/semtools/internal/workspace"
)

// testModel builds an in-memory model over a small animal vocabulary.
func testModel(t *testing.T) *embedder.StaticModel {
	t.Helper()
	vocab := map[string]int{"cat": 0, "dog": 1, "fish": 2, "animal": 3}
	matrix := make([]float32, 4*4)
	for i := 0; i < 4; i++ {
		matrix[i*4+i] = 1
	}
	m, err := embedder.New("test-model", "1", 4, vocab, matrix)
	require.NoError(t, err)
	return m
}

func writeFiles(t *testing.T, contents map[string]string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(contents))
	for name, content := range contents {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		paths = append(paths, p)
	}
	return paths
}

func drain(ch <-chan Outcome) []Outcome {
	var out []Outcome
	for o := range ch {
		out = append(out, o)
	}
	return out
}

func TestRun_InMemory(t *testing.T) {
	paths := writeFiles(t, map[string]string{
		"a.txt": "cat\ndog",
		"b.txt": "fish",
	})
	sched := New(testModel(t), nil, window.DefaultOptions(), 2)

	outcomes := drain(sched.Run(context.Background(), paths))

	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		require.NoError(t, o.Err)
		require.NotNil(t, o.Embedding)
		assert.False(t, o.Cached)
		require.NoError(t, o.Embedding.Validate())
	}
	assert.Equal(t, int32(2), sched.Stats().Embedded)
}

func TestRun_SkipsBadFiles(t *testing.T) {
	paths := writeFiles(t, map[string]string{
		"good.txt":  "cat",
		"empty.txt": "",
	})
	paths = append(paths, filepath.Join(t.TempDir(), "missing.txt"))
	// Invalid UTF-8.
	bad := filepath.Join(t.TempDir(), "bad.bin")
	require.NoError(t, os.WriteFile(bad, []byte{0xff, 0xfe, 0x01}, 0644))
	paths = append(paths, bad)

	sched := New(testModel(t), nil, window.DefaultOptions(), 2)
	outcomes := drain(sched.Run(context.Background(), paths))

	require.Len(t, outcomes, 4)
	var ok, skipped int
	for _, o := range outcomes {
		if o.Err != nil {
			skipped++
		} else {
			ok++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 3, skipped)
	assert.Equal(t, int32(3), sched.Stats().Skipped)
}

func TestRun_WorkspaceHitOnSecondPass(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	model := testModel(t)

	ws, err := workspace.Open("ingest-test", model.ModelID(), model.Dim())
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	paths := writeFiles(t, map[string]string{"a.txt": "cat\ndog"})

	cold := New(model, ws, window.DefaultOptions(), 1)
	outcomes := drain(cold.Run(context.Background(), paths))
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	assert.False(t, outcomes[0].Cached)
	assert.Equal(t, int32(1), cold.Stats().Embedded)

	warm := New(model, ws, window.DefaultOptions(), 1)
	outcomes = drain(warm.Run(context.Background(), paths))
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	assert.True(t, outcomes[0].Cached)
	assert.Equal(t, int32(1), warm.Stats().Hits)

	// Warm result equals a direct re-embed.
	fresh, err := warm.Embed(paths[0])
	require.NoError(t, err)
	assert.Equal(t, fresh.Vectors, outcomes[0].Embedding.Vectors)
}

func TestRun_ReembedsOnContentChange(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	model := testModel(t)

	ws, err := workspace.Open("ingest-stale", model.ModelID(), model.Dim())
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	paths := writeFiles(t, map[string]string{"a.txt": "cat"})
	sched := New(model, ws, window.DefaultOptions(), 1)
	drain(sched.Run(context.Background(), paths))

	require.NoError(t, os.WriteFile(paths[0], []byte("dog\nfish"), 0644))

	sched2 := New(model, ws, window.DefaultOptions(), 1)
	outcomes := drain(sched2.Run(context.Background(), paths))
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	assert.False(t, outcomes[0].Cached)
	assert.Len(t, outcomes[0].Embedding.Windows, 2)
}

func TestRun_OptionsChangeIsMiss(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	model := testModel(t)

	ws, err := workspace.Open("ingest-opts", model.ModelID(), model.Dim())
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	paths := writeFiles(t, map[string]string{"a.txt": "Cat\nDog"})

	drain(New(model, ws, window.DefaultOptions(), 1).Run(context.Background(), paths))

	folded := New(model, ws, window.Options{WindowLines: 1, StrideLines: 1, CaseFold: true}, 1)
	outcomes := drain(folded.Run(context.Background(), paths))
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Cached)
	assert.Equal(t, int32(1), folded.Stats().Embedded)
}

func TestEmbedLines_Stdin(t *testing.T) {
	sched := New(testModel(t), nil, window.DefaultOptions(), 1)

	fe, err := sched.EmbedLines("<stdin>", []string{"cat", "dog"})
	require.NoError(t, err)
	assert.Equal(t, "<stdin>", fe.Path)
	assert.Len(t, fe.Windows, 2)

	_, err = sched.EmbedLines("<stdin>", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestRun_Cancellation(t *testing.T) {
	paths := writeFiles(t, map[string]string{"a.txt": "cat"})
	sched := New(testModel(t), nil, window.DefaultOptions(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := drain(sched.Run(ctx, paths))
	// Either nothing was produced or the file completed before the
	// cancellation was observed; both are safe.
	assert.LessOrEqual(t, len(outcomes), 1)
}
