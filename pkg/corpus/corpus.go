package corpus

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmptyCorpus is returned when a corpus contains no non-empty lines.
var ErrEmptyCorpus = errors.New("corpus contains no non-empty lines")

//go:embed harvard.txt
var harvard string

// Format identifies how a corpus source is encoded.
type Format int

const (
	FormatText Format = iota
	FormatMarkdown
	FormatHTML
)

func (f Format) String() string {
	switch f {
	case FormatMarkdown:
		return "markdown"
	case FormatHTML:
		return "html"
	default:
		return "text"
	}
}

// FormatFromPath picks a Format from the file extension. Anything that isn't
// recognised as Markdown or HTML is read as plain text.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".html", ".htm":
		return FormatHTML
	default:
		return FormatText
	}
}

// Lines splits blob on line breaks and returns the non-empty lines in order.
// A trailing carriage return is dropped, and whitespace-only lines count as
// empty. It returns ErrEmptyCorpus when nothing is left.
func Lines(blob string) ([]string, error) {
	var lines []string
	for _, line := range strings.Split(blob, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCorpus
	}
	return lines, nil
}

// Load reads a corpus from r in the given format.
func Load(r io.Reader, format Format) ([]string, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	switch format {
	case FormatMarkdown:
		return nonEmpty(markdownLines(src))
	case FormatHTML:
		lines, err := htmlLines(src)
		if err != nil {
			return nil, err
		}
		return nonEmpty(lines)
	default:
		return Lines(string(src))
	}
}

// LoadFile opens path and loads it with the format implied by its extension.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	lines, err := Load(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lines, nil
}

// Default returns the built-in Harvard sentences corpus.
func Default() []string {
	lines, _ := Lines(harvard)
	return lines
}

func nonEmpty(lines []string) ([]string, error) {
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyCorpus
	}
	return out, nil
}
