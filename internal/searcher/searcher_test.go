package searcher

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-llama/semtools/internal/embedder"
	"github.com/run-llama/semtools/internal/workspace"
	"github.com/run-llama/semtools/pkg/types"
)

// testModel builds an in-memory model whose geometry makes the spec
// scenarios decidable: animal words share an axis with "animal",
// household words do not, and capitalized variants differ from their
// lowercase forms.
func testModel(t *testing.T) *embedder.StaticModel {
	t.Helper()

	rows := map[string][]float32{
		"animal": {1, 0, 0, 0},
		"cat":    {9, 1, 0, 0},
		"dog":    {9, 0, 1, 0},
		"fish":   {8, 0, 0, 1},
		"car":    {0, 5, 1, 0},
		"house":  {0, 1, 5, 0},
		"tree":   {0, 0, 1, 5},
		"hello":  {1, 0, 0, 0},
		"world":  {0, 0, 1, 0},
		"Hello":  {1, 1, 0, 0},
		"World":  {0, 0, 1, 1},
	}

	vocab := make(map[string]int, len(rows))
	matrix := make([]float32, 0, len(rows)*4)
	i := 0
	for tok, vec := range rows {
		vocab[tok] = i
		matrix = append(matrix, vec...)
		i++
	}

	m, err := embedder.New("test-model", "1", 4, vocab, matrix)
	require.NoError(t, err)
	return m
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestResolveFiles_FlatDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "hello")
	writeFile(t, dir, "b.md", "world")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	writeFile(t, filepath.Join(dir, "sub"), "c.txt", "nested")

	files, err := ResolveFiles([]string{dir}, false)
	require.NoError(t, err)
	require.Len(t, files, 2, "non-recursive expansion must not descend")

	files, err = ResolveFiles([]string{dir}, true)
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestResolveFiles_DedupesAndSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "hello")

	files, err := ResolveFiles([]string{a, a, filepath.Join(dir, "missing.txt")}, false)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestResolveFiles_FiltersBinary(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "text")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blob"), []byte{0x7f, 'E', 'L', 'F', 0x00, 0x01}, 0644))

	files, err := ResolveFiles([]string{dir}, false)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.txt", filepath.Base(files[0]))
}

func TestSearch_TopKAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "cat\ndog\nfish")
	b := writeFile(t, dir, "b.txt", "car\nhouse\ntree")
	s := New(testModel(t), nil)

	results, err := s.Search(context.Background(), Request{
		Query: "animal",
		Paths: []string{a, b},
		TopK:  2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Every surviving window must come from the animal file.
	for _, r := range results {
		assert.Equal(t, canonicalize(a), r.Path)
	}
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
}

func TestSearch_CaseSensitivity(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "a.txt", "Hello World")
	s := New(testModel(t), nil)

	exact, err := s.Search(context.Background(), Request{
		Query: "hello world",
		Paths: []string{f},
		TopK:  1,
	})
	require.NoError(t, err)
	require.Len(t, exact, 1)

	folded, err := s.Search(context.Background(), Request{
		Query:      "hello world",
		Paths:      []string{f},
		TopK:       1,
		IgnoreCase: true,
	})
	require.NoError(t, err)
	require.Len(t, folded, 1)

	assert.LessOrEqual(t, folded[0].Distance, exact[0].Distance)
}

func TestSearch_ContextClipping(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "x.txt", "cat\nl2\nl3\nl4\nl5")
	s := New(testModel(t), nil)

	results, err := s.Search(context.Background(), Request{
		Query:  "cat",
		Paths:  []string{f},
		TopK:   1,
		NLines: 3,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, 1, r.StartLine)
	assert.Equal(t, 1, r.ContextStart, "context must clip at line 1")
	assert.Equal(t, 4, r.ContextEnd)
	assert.Equal(t, []string{"cat", "l2", "l3", "l4"}, r.Lines)
}

func TestSearch_ThresholdEmpty(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "a.txt", "cat\ndog")
	s := New(testModel(t), nil)

	tau := 0.0
	results, err := s.Search(context.Background(), Request{
		Query:       "tree",
		Paths:       []string{f},
		MaxDistance: &tau,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_ThresholdWinsOverTopK(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "a.txt", "cat\ndog\nfish")
	s := New(testModel(t), nil)

	tau := 1.5
	results, err := s.Search(context.Background(), Request{
		Query:       "animal",
		Paths:       []string{f},
		TopK:        1, // ignored: threshold admits all three
		MaxDistance: &tau,
	})
	require.NoError(t, err)
	assert.Len(t, results, 3)

	for _, r := range results {
		assert.LessOrEqual(t, r.Distance, tau)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	s := New(testModel(t), nil)
	_, err := s.Search(context.Background(), Request{Query: "   "})
	assert.ErrorIs(t, err, types.ErrEmptyQuery)
}

func TestSearch_Deterministic(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "cat\ndog\nfish")
	b := writeFile(t, dir, "b.txt", "car\nhouse")
	s := New(testModel(t), nil)

	req := Request{Query: "animal", Paths: []string{a, b}, TopK: 4}

	first, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	second, err := s.Search(context.Background(), req)
	require.NoError(t, err)

	var bufA, bufB bytes.Buffer
	require.NoError(t, WriteHuman(&bufA, first))
	require.NoError(t, WriteHuman(&bufB, second))
	assert.Equal(t, bufA.String(), bufB.String())
}

func TestSearch_CacheTransparency(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	model := testModel(t)

	ws, err := workspace.Open("search-cache", model.ModelID(), model.Dim())
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	dir := t.TempDir()
	f := writeFile(t, dir, "a.txt", "cat\ndog\nfish")
	s := New(model, ws)
	req := Request{Query: "animal", Paths: []string{f}, TopK: 2}

	cold, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	warm, err := s.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, cold, warm)
}

func TestSearch_CacheInvalidationOnRewrite(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	model := testModel(t)

	ws, err := workspace.Open("search-stale", model.ModelID(), model.Dim())
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	dir := t.TempDir()
	f := writeFile(t, dir, "f.txt", "cat")
	s := New(model, ws)
	req := Request{Query: "animal", Paths: []string{f}, TopK: 1}

	before, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, []string{"cat"}, before[0].Lines)

	require.NoError(t, os.WriteFile(f, []byte("tree\ndog"), 0644))

	after, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, after, 1)
	// The new content ranks "dog" (line 2) above "tree".
	assert.Equal(t, 2, after[0].StartLine)
}

func TestSearchLines_Stdin(t *testing.T) {
	s := New(testModel(t), nil)

	results, err := s.SearchLines(context.Background(), Request{
		Query:  "animal",
		TopK:   1,
		NLines: 0,
	}, []string{"cat", "house"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StdinName, results[0].Path)
	assert.Equal(t, []string{"cat"}, results[0].Lines)
}

func TestWriteHuman_Format(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHuman(&buf, []types.SearchResult{{
		Path:         "/tmp/a.txt",
		StartLine:    2,
		EndLine:      2,
		ContextStart: 1,
		ContextEnd:   3,
		Distance:     0.25,
		Lines:        []string{"one", "two", "three"},
	}})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/a.txt:1::3 (0.2500)\none\ntwo\nthree\n\n", buf.String())
}

func TestWriteJSON_Fields(t *testing.T) {
	var buf bytes.Buffer
	err := WriteJSON(&buf, []types.SearchResult{{
		Path:         "/tmp/a.txt",
		StartLine:    2,
		EndLine:      2,
		ContextStart: 1,
		ContextEnd:   3,
		Distance:     0.25,
		Lines:        []string{"one", "two"},
	}})
	require.NoError(t, err)

	var out types.SearchOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Results, 1)

	r := out.Results[0]
	assert.Equal(t, "/tmp/a.txt", r.Path)
	assert.Equal(t, 2, r.StartLine)
	assert.Equal(t, 1, r.ContextStart)
	assert.Equal(t, 3, r.ContextEnd)
	assert.Equal(t, "one\ntwo", r.Text)
}
