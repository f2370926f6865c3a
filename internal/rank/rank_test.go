package rank

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-llama/semtools/pkg/types"
)

func TestDot(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5}
	b := []float32{5, 4, 3, 2, 1}
	assert.InDelta(t, 35.0, Dot(a, b), 1e-9)

	// Lengths below the unroll width.
	assert.InDelta(t, 2.0, Dot([]float32{1, 1}, []float32{1, 1}), 1e-9)
}

func TestDistance_UnitVectors(t *testing.T) {
	q := []float32{1, 0, 0, 0}
	same := []float32{1, 0, 0, 0}
	orth := []float32{0, 1, 0, 0}
	opp := []float32{-1, 0, 0, 0}

	assert.InDelta(t, 0.0, Distance(q, same), 1e-9)
	assert.InDelta(t, 1.0, Distance(q, orth), 1e-9)
	assert.InDelta(t, 2.0, Distance(q, opp), 1e-9)
}

// fe builds a FileEmbedding with one window per row.
func fe(t *testing.T, rows [][]float32) *types.FileEmbedding {
	t.Helper()
	require.NotEmpty(t, rows)
	dim := len(rows[0])

	out := &types.FileEmbedding{Path: "/f", Dim: dim}
	for i, r := range rows {
		require.Len(t, r, dim)
		out.Windows = append(out.Windows, types.Window{StartLine: i + 1, EndLine: i + 1})
		out.Vectors = append(out.Vectors, r...)
	}
	return out
}

func TestTopK_AcrossFiles(t *testing.T) {
	q := []float32{1, 0}
	a := fe(t, [][]float32{{1, 0}, {0, 1}})                            // distances 0, 1
	b := fe(t, [][]float32{{0.8, 0.6}, {0.6, 0.8}})                    // distances 0.2, 0.4
	sel := NewTopK(2)

	sel.RankFile(q, a, 0)
	sel.RankFile(q, b, 1)

	results := sel.Results()
	require.Len(t, results, 2)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
	assert.Equal(t, 0, results[0].FileOrder)
	assert.InDelta(t, 0.2, results[1].Distance, 1e-6)
	assert.Equal(t, 1, results[1].FileOrder)
}

func TestTopK_DefaultsOnNonPositive(t *testing.T) {
	sel := NewTopK(0)
	assert.Equal(t, DefaultTopK, sel.topK)
}

func TestThreshold_KeepsEverythingUnderTau(t *testing.T) {
	q := []float32{1, 0}
	doc := fe(t, [][]float32{{1, 0}, {0.8, 0.6}, {0, 1}}) // 0, 0.2, 1
	sel := NewThreshold(0.5)

	sel.RankFile(q, doc, 0)

	results := sel.Results()
	require.Len(t, results, 2)
	for _, r := range results {
		assert.LessOrEqual(t, r.Distance, 0.5)
	}
}

func TestThreshold_MonotoneInTau(t *testing.T) {
	q := []float32{1, 0}
	doc := fe(t, [][]float32{{1, 0}, {0.8, 0.6}, {0.6, 0.8}, {0, 1}})

	wide := NewThreshold(0.9)
	wide.RankFile(q, doc, 0)
	narrow := NewThreshold(0.3)
	narrow.RankFile(q, doc, 0)

	wideRes := wide.Results()
	narrowRes := narrow.Results()

	assert.LessOrEqual(t, len(narrowRes), len(wideRes))
	// The narrow list is a prefix of the wide list restricted to tau.
	for i, r := range narrowRes {
		assert.Equal(t, wideRes[i], r)
	}
}

func TestThreshold_Empty(t *testing.T) {
	q := []float32{1, 0}
	doc := fe(t, [][]float32{{0, 1}})
	sel := NewThreshold(0.0)

	sel.RankFile(q, doc, 0)
	assert.Empty(t, sel.Results())
}

func TestRankFile_SkipsZeroRows(t *testing.T) {
	q := []float32{1, 0}
	doc := fe(t, [][]float32{{0, 0}, {1, 0}})
	sel := NewTopK(5)

	sel.RankFile(q, doc, 0)

	results := sel.Results()
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].StartLine)
}

func TestResults_DeterministicTieBreaks(t *testing.T) {
	q := []float32{1, 0}
	// Identical vectors in two files: ties broken by file order, then line.
	a := fe(t, [][]float32{{0.6, 0.8}, {0.6, 0.8}})
	b := fe(t, [][]float32{{0.6, 0.8}})
	sel := NewTopK(3)

	sel.RankFile(q, b, 1)
	sel.RankFile(q, a, 0)

	results := sel.Results()
	require.Len(t, results, 3)
	assert.Equal(t, []int{0, 0, 1}, []int{results[0].FileOrder, results[1].FileOrder, results[2].FileOrder})
	assert.Equal(t, 1, results[0].StartLine)
	assert.Equal(t, 2, results[1].StartLine)
}

func TestTopK_EvictsWorstOnTies(t *testing.T) {
	sel := NewTopK(1)

	sel.Add(Candidate{FileOrder: 1, StartLine: 5, Distance: 0.2})
	sel.Add(Candidate{FileOrder: 0, StartLine: 9, Distance: 0.2})

	results := sel.Results()
	require.Len(t, results, 1)
	// Same distance: the earlier file wins.
	assert.Equal(t, 0, results[0].FileOrder)
}

func TestDistance_Symmetry(t *testing.T) {
	a := []float32{0.6, 0.8, 0, 0}
	b := []float32{0, 0.8, 0.6, 0}
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-12)
	assert.False(t, math.IsNaN(Distance(a, b)))
}
