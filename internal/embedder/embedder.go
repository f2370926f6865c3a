package embedder

import (
	"crypto/sha256"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrModelNotFound = errors.New("embedding model not found")
	ErrCorruptModel  = errors.New("embedding model is corrupt")
)

const (
	// DefaultModelName is the bundled multilingual static model.
	DefaultModelName = "potion-multilingual-128M"

	// EnvModelPath overrides the model directory.
	EnvModelPath = "SEMTOOLS_MODEL_PATH"

	// batchSize bounds how many strings are encoded per internal pass.
	batchSize = 256

	// cacheSize bounds the per-process embedding cache.
	cacheSize = 16384
)

// Embedder generates unit-normalized embeddings for batches of strings.
// Implementations are safe for concurrent use after construction.
type Embedder interface {
	// Embed encodes texts into vectors of length Dim. It returns one
	// row per input, in order. Texts with no known tokens yield the
	// zero vector; there are no per-string errors.
	Embed(texts []string) ([][]float32, error)

	// Dim returns the embedding dimension.
	Dim() int

	// ModelID returns the model identifier.
	ModelID() string

	// ModelVersion returns the model version string.
	ModelVersion() string
}

// Cache provides in-memory LRU caching of vectors by content hash.
type Cache struct {
	cache *lru.Cache[[32]byte, []float32]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = cacheSize
	}
	c, err := lru.New[[32]byte, []float32](maxLen)
	if err != nil {
		// Only reachable with a non-positive size, which is guarded above.
		c, _ = lru.New[[32]byte, []float32](cacheSize)
	}
	return &Cache{cache: c}
}

// Get retrieves a copy of a cached vector. The copy prevents caller
// mutations from reaching the cached value.
func (c *Cache) Get(hash [32]byte) ([]float32, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a vector; LRU eviction is automatic at capacity.
func (c *Cache) Set(hash [32]byte, v []float32) {
	c.cache.Add(hash, v)
}

// Len returns the current cache size.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// HashText computes the cache key for an input string.
func HashText(text string) [32]byte {
	return sha256.Sum256([]byte(text))
}

// Normalize scales v to unit L2 norm in place. The zero vector is left
// unchanged.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// DefaultModelDir resolves the model directory from the environment,
// falling back to the per-user model location.
func DefaultModelDir() string {
	if dir := os.Getenv(EnvModelPath); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultModelName
	}
	return filepath.Join(home, ".semtools", "models", DefaultModelName)
}

var (
	defaultOnce  sync.Once
	defaultModel *StaticModel
	defaultErr   error
)

// Default loads the process-wide shared model exactly once. Every caller
// after the first gets the same instance (immutable after load).
func Default() (*StaticModel, error) {
	defaultOnce.Do(func() {
		defaultModel, defaultErr = Load(DefaultModelDir())
	})
	return defaultModel, defaultErr
}
