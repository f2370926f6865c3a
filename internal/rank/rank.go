package rank

import (
	"container/heap"
	"sort"

	"github.com/run-llama/semtools/pkg/types"
)

// DefaultTopK is the number of results returned when neither top-K nor a
// distance threshold is requested.
const DefaultTopK = 3

// Candidate is one scored window.
type Candidate struct {
	FileOrder int // position of the file in the request, for tie-breaks
	Window    int // window index within the file
	StartLine int
	EndLine   int
	Distance  float64
}

// less orders candidates ascending by (distance, file order, start line).
func (c Candidate) less(o Candidate) bool {
	if c.Distance != o.Distance {
		return c.Distance < o.Distance
	}
	if c.FileOrder != o.FileOrder {
		return c.FileOrder < o.FileOrder
	}
	return c.StartLine < o.StartLine
}

// Dot computes the dot product of two equal-length vectors with a 4-way
// unrolled loop.
func Dot(a, b []float32) float64 {
	var s0, s1, s2, s3 float64
	n := len(a)
	i := 0
	for ; i+4 <= n; i += 4 {
		s0 += float64(a[i]) * float64(b[i])
		s1 += float64(a[i+1]) * float64(b[i+1])
		s2 += float64(a[i+2]) * float64(b[i+2])
		s3 += float64(a[i+3]) * float64(b[i+3])
	}
	for ; i < n; i++ {
		s0 += float64(a[i]) * float64(b[i])
	}
	return s0 + s1 + s2 + s3
}

// Distance computes cosine distance between unit vectors: 1 - dot.
func Distance(q, c []float32) float64 {
	return 1 - Dot(q, c)
}

// isZero reports whether v is the zero vector. Non-zero rows return
// false at the first non-zero element.
func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Selector accumulates candidates across files and keeps the survivors
// for the active selection mode. Not safe for concurrent use; the query
// executor feeds it from a single goroutine.
type Selector struct {
	topK      int
	threshold float64
	useThresh bool

	worst candidateHeap // top-K mode: worst kept candidate at the root
	all   []Candidate   // threshold mode: everything under tau
}

// NewTopK creates a selector keeping the k smallest-distance candidates.
// Non-positive k falls back to DefaultTopK.
func NewTopK(k int) *Selector {
	if k <= 0 {
		k = DefaultTopK
	}
	return &Selector{topK: k}
}

// NewThreshold creates a selector keeping every candidate with distance
// at most tau. Threshold mode ignores top-K entirely.
func NewThreshold(tau float64) *Selector {
	return &Selector{threshold: tau, useThresh: true}
}

// Add offers one candidate to the selector.
func (s *Selector) Add(c Candidate) {
	if s.useThresh {
		if c.Distance <= s.threshold {
			s.all = append(s.all, c)
		}
		return
	}

	if s.worst.Len() < s.topK {
		heap.Push(&s.worst, c)
		return
	}
	if c.less(s.worst[0]) {
		s.worst[0] = c
		heap.Fix(&s.worst, 0)
	}
}

// RankFile scores every window of fe against the query vector and offers
// the candidates in natural start-line order. Zero-norm rows (windows
// whose text had no known tokens) are skipped.
func (s *Selector) RankFile(q []float32, fe *types.FileEmbedding, fileOrder int) {
	for i := range fe.Windows {
		v := fe.Vector(i)
		if isZero(v) {
			continue
		}
		s.Add(Candidate{
			FileOrder: fileOrder,
			Window:    i,
			StartLine: fe.Windows[i].StartLine,
			EndLine:   fe.Windows[i].EndLine,
			Distance:  Distance(q, v),
		})
	}
}

// Results returns the surviving candidates ascending by
// (distance, file order, start line).
func (s *Selector) Results() []Candidate {
	var out []Candidate
	if s.useThresh {
		out = append(out, s.all...)
	} else {
		out = append(out, s.worst...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

// candidateHeap is a max-heap on the candidate ordering, so the worst
// kept candidate sits at the root and is evicted first.
type candidateHeap []Candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return h[j].less(h[i]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(Candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
