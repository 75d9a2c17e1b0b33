package markov

import (
	"bufio"
	"io"
	"strings"
)

// LineTokenizer treats every input line as one chain. Tokens are the
// whitespace separated words of a line, punctuation included, and each
// non-empty line is terminated by an End-Of-Chain token. Generated output is
// therefore the space-joined token sequence with nothing appended.
type LineTokenizer struct {
	separator  string
	maxLineLen int
}

// LineOption configures a LineTokenizer.
type LineOption func(*LineTokenizer)

// WithLineSeparator sets the string used to join tokens during generation.
// Default: " "
func WithLineSeparator(sep string) LineOption {
	return func(t *LineTokenizer) {
		t.separator = sep
	}
}

// WithMaxLineBytes sets the longest line the scanner accepts. Longer lines
// make the stream fail with bufio.ErrTooLong.
// Default: 1MiB
func WithMaxLineBytes(n int) LineOption {
	return func(t *LineTokenizer) {
		if n > 0 {
			t.maxLineLen = n
		}
	}
}

// NewLineTokenizer creates a LineTokenizer with default settings, which can be
// overridden by providing one or more LineOption functions.
func NewLineTokenizer(opts ...LineOption) *LineTokenizer {
	t := &LineTokenizer{
		separator:  " ",
		maxLineLen: 1024 * 1024,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Separator returns the configured separator regardless of the tokens.
func (t *LineTokenizer) Separator(_, _ string) string {
	return t.separator
}

// EOC returns an empty string: line endings carry no text of their own.
func (t *LineTokenizer) EOC(_ string) string {
	return ""
}

// NewStream returns the stream processor.
func (t *LineTokenizer) NewStream(r io.Reader) StreamTokenizer {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), t.maxLineLen)
	return &LineStreamTokenizer{scanner: scanner}
}

// LineStreamTokenizer is the StreamTokenizer returned by LineTokenizer.
type LineStreamTokenizer struct {
	scanner *bufio.Scanner
	buffer  []string
	pending bool // an EOC is owed for the line currently in buffer
}

// Next returns the next word of the current line, an EOC token once the
// line is exhausted, or io.EOF when the input is consumed. Blank lines yield
// nothing.
func (s *LineStreamTokenizer) Next() (*Token, error) {
	for len(s.buffer) == 0 {
		if s.pending {
			s.pending = false
			return &Token{EOC: true}, nil
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		s.buffer = strings.Fields(s.scanner.Text())
		s.pending = len(s.buffer) > 0
	}

	word := s.buffer[0]
	s.buffer = s.buffer[1:]
	return &Token{Text: word}, nil
}
