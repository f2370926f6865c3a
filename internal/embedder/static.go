package embedder

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// modelConfig mirrors config.json in a model directory.
type modelConfig struct {
	ModelID      string `json:"model_id"`
	ModelVersion string `json:"model_version"`
	Dim          int    `json:"dim"`
	Normalized   bool   `json:"normalized"`
}

// StaticModel is a token-average embedding model: a vocabulary mapped to
// rows of a V x dim float32 matrix. Encoding a string averages the rows
// of its known tokens and normalizes the result. The model is immutable
// after Load and safe for concurrent use.
type StaticModel struct {
	config modelConfig
	vocab  map[string]int
	matrix []float32 // V * dim, row-major
	cache  *Cache
}

// Load reads a model from a directory containing config.json, vocab.txt
// and vectors.f32.
func Load(dir string) (*StaticModel, error) {
	cfgBytes, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, dir)
		}
		return nil, fmt.Errorf("failed to read model config: %w", err)
	}

	var cfg modelConfig
	if err := json.Unmarshal(cfgBytes, &cfg); err != nil {
		return nil, fmt.Errorf("%w: bad config.json: %v", ErrCorruptModel, err)
	}
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("%w: non-positive dimension %d", ErrCorruptModel, cfg.Dim)
	}
	if cfg.ModelID == "" {
		cfg.ModelID = filepath.Base(dir)
	}

	vocab, err := loadVocab(filepath.Join(dir, "vocab.txt"))
	if err != nil {
		return nil, err
	}

	matrix, err := loadMatrix(filepath.Join(dir, "vectors.f32"))
	if err != nil {
		return nil, err
	}
	if len(matrix) != len(vocab)*cfg.Dim {
		return nil, fmt.Errorf("%w: matrix holds %d floats, want %d tokens x %d dim",
			ErrCorruptModel, len(matrix), len(vocab), cfg.Dim)
	}

	return &StaticModel{
		config: cfg,
		vocab:  vocab,
		matrix: matrix,
		cache:  NewCache(cacheSize),
	}, nil
}

// New constructs a model from in-memory components. Used by tests and by
// tooling that materializes model directories.
func New(modelID, modelVersion string, dim int, vocab map[string]int, matrix []float32) (*StaticModel, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: non-positive dimension %d", ErrCorruptModel, dim)
	}
	if len(matrix) != len(vocab)*dim {
		return nil, fmt.Errorf("%w: matrix holds %d floats, want %d tokens x %d dim",
			ErrCorruptModel, len(matrix), len(vocab), dim)
	}
	return &StaticModel{
		config: modelConfig{ModelID: modelID, ModelVersion: modelVersion, Dim: dim, Normalized: true},
		vocab:  vocab,
		matrix: matrix,
		cache:  NewCache(cacheSize),
	}, nil
}

func loadVocab(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: missing vocab.txt", ErrModelNotFound)
		}
		return nil, fmt.Errorf("failed to read vocab: %w", err)
	}
	defer func() { _ = f.Close() }()

	vocab := make(map[string]int)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	row := 0
	for scanner.Scan() {
		token := scanner.Text()
		if token == "" {
			row++
			continue
		}
		vocab[token] = row
		row++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: vocab read failed: %v", ErrCorruptModel, err)
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("%w: empty vocabulary", ErrCorruptModel)
	}
	return vocab, nil
}

func loadMatrix(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: missing vectors.f32", ErrModelNotFound)
		}
		return nil, fmt.Errorf("failed to read token matrix: %w", err)
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: token matrix size %d is not float32-aligned", ErrCorruptModel, len(data))
	}
	matrix := make([]float32, len(data)/4)
	for i := range matrix {
		matrix[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return matrix, nil
}

// Dim returns the embedding dimension.
func (m *StaticModel) Dim() int { return m.config.Dim }

// ModelID returns the model identifier.
func (m *StaticModel) ModelID() string { return m.config.ModelID }

// ModelVersion returns the model version string.
func (m *StaticModel) ModelVersion() string { return m.config.ModelVersion }

// Embed encodes texts in fixed-size batches. Rows come back unit-norm,
// except for texts with no known tokens which embed to the zero vector.
func (m *StaticModel) Embed(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		for i := start; i < end; i++ {
			out[i] = m.encodeOne(texts[i])
		}
	}
	return out, nil
}

// EmbedSingle encodes one string.
func (m *StaticModel) EmbedSingle(text string) []float32 {
	return m.encodeOne(text)
}

func (m *StaticModel) encodeOne(text string) []float32 {
	hash := HashText(text)
	if v, ok := m.cache.Get(hash); ok {
		return v
	}

	vec := make([]float32, m.config.Dim)
	count := 0
	for _, token := range tokenize(text) {
		row, ok := m.vocab[token]
		if !ok {
			continue
		}
		base := row * m.config.Dim
		for j := 0; j < m.config.Dim; j++ {
			vec[j] += m.matrix[base+j]
		}
		count++
	}
	if count > 0 {
		inv := 1 / float32(count)
		for j := range vec {
			vec[j] *= inv
		}
		Normalize(vec)
	}

	m.cache.Set(hash, vec)
	return vec
}

// tokenize splits text into runs of letters and digits. Lookup is
// case-sensitive; case-insensitive search folds the text before it
// reaches the embedder.
func tokenize(text string) []string {
	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
