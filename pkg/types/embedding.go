package types

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
)

// FingerprintSize is the byte length of a content fingerprint (SHA-256).
const FingerprintSize = 32

// OptionsFingerprintSize is the byte length of a tokenizer-options
// fingerprint (truncated SHA-256).
const OptionsFingerprintSize = 16

// Fingerprint identifies file content.
type Fingerprint [FingerprintSize]byte

// OptionsFingerprint identifies the tokenizer options an embedding set
// was built with (window size, stride, case folding, model id/version).
type OptionsFingerprint [OptionsFingerprintSize]byte

// FingerprintBytes computes the content fingerprint of raw file bytes.
func FingerprintBytes(data []byte) Fingerprint {
	return sha256.Sum256(data)
}

// FileEmbedding is the persisted per-file artifact: the window table and
// the contiguous N x Dim float32 vector matrix, keyed by the source path
// and its content fingerprint.
type FileEmbedding struct {
	Path        string // absolute, canonical
	Fingerprint Fingerprint
	Options     OptionsFingerprint
	Dim         int
	Windows     []Window
	Vectors     []float32 // len(Windows) * Dim, row-major, unit rows
}

// Vector returns the i-th window's vector as a subslice of the matrix.
func (fe *FileEmbedding) Vector(i int) []float32 {
	return fe.Vectors[i*fe.Dim : (i+1)*fe.Dim]
}

// Validate checks structural invariants: a positive dimension, a matrix
// sized to the window table, valid window spans, and unit (or zero) row
// norms.
func (fe *FileEmbedding) Validate() error {
	if fe.Path == "" {
		return errors.New("path cannot be empty")
	}
	if fe.Dim <= 0 {
		return fmt.Errorf("invalid dimension %d", fe.Dim)
	}
	if len(fe.Vectors) != len(fe.Windows)*fe.Dim {
		return fmt.Errorf("vector matrix size %d does not match %d windows of dim %d",
			len(fe.Vectors), len(fe.Windows), fe.Dim)
	}
	for i := range fe.Windows {
		if err := fe.Windows[i].Validate(); err != nil {
			return fmt.Errorf("window %d: %w", i, err)
		}
	}
	for i := range fe.Windows {
		var sum float64
		for _, v := range fe.Vector(i) {
			sum += float64(v) * float64(v)
		}
		norm := math.Sqrt(sum)
		if norm != 0 && math.Abs(norm-1) > 1e-4 {
			return fmt.Errorf("window %d vector norm %f is not unit", i, norm)
		}
	}
	return nil
}
