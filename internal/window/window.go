package window

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/run-llama/semtools/pkg/types"
)

// Options controls how a file is split into retrieval windows.
type Options struct {
	WindowLines int  // lines per window
	StrideLines int  // lines stepped between windows
	CaseFold    bool // lowercase window text before embedding
}

// DefaultOptions returns the baseline configuration: every source line
// is its own window.
func DefaultOptions() Options {
	return Options{WindowLines: 1, StrideLines: 1}
}

// normalized clamps non-positive fields to the defaults.
func (o Options) normalized() Options {
	if o.WindowLines <= 0 {
		o.WindowLines = 1
	}
	if o.StrideLines <= 0 {
		o.StrideLines = 1
	}
	return o
}

// Fingerprint derives the tokenizer-options fingerprint that keys cache
// entries: window geometry, case folding, and the model identity all
// participate, so changing any of them rebuilds the entry.
func (o Options) Fingerprint(modelID, modelVersion string, dim int) types.OptionsFingerprint {
	o = o.normalized()
	canonical := fmt.Sprintf("w=%d|s=%d|fold=%t|model=%s|ver=%s|dim=%d",
		o.WindowLines, o.StrideLines, o.CaseFold, modelID, modelVersion, dim)
	sum := sha256.Sum256([]byte(canonical))

	var fp types.OptionsFingerprint
	copy(fp[:], sum[:types.OptionsFingerprintSize])
	return fp
}

// SplitLines splits file text on newlines preserving empty lines. A
// trailing newline does not produce a phantom final line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	// Tolerate CRLF input.
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// Windowize converts file text into its window sequence. An empty file
// yields no windows.
func Windowize(text string, opts Options) []types.Window {
	return FromLines(SplitLines(text), opts)
}

// FromLines builds windows over an already-split line slice.
func FromLines(lines []string, opts Options) []types.Window {
	opts = opts.normalized()
	if len(lines) == 0 {
		return nil
	}

	windows := make([]types.Window, 0, (len(lines)+opts.StrideLines-1)/opts.StrideLines)
	for start := 0; start < len(lines); start += opts.StrideLines {
		end := min(start+opts.WindowLines, len(lines))

		text := strings.Join(lines[start:end], "\n")
		if opts.CaseFold {
			text = strings.ToLower(text)
		}

		windows = append(windows, types.Window{
			StartLine: start + 1,
			EndLine:   end,
			Text:      text,
		})

		if end == len(lines) {
			break
		}
	}
	return windows
}
