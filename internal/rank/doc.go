// Package rank computes cosine distances between a query vector and
// candidate window vectors, and selects the surviving candidates.
//
// All vectors are unit-normalized by the embedder, so cosine distance
// reduces to 1 - dot(q, c). The dot product is a 4-way unrolled tiled
// loop that compilers map onto wide registers.
//
// Two mutually exclusive selection modes:
//
//	sel := rank.NewTopK(3)              // K smallest distances overall
//	sel := rank.NewThreshold(0.35)      // everything with distance <= tau
//
// Candidates are fed per file in natural window order; Results returns
// them ascending by (distance, file order, start line), which makes the
// final emission deterministic.
package rank
