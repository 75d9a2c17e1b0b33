package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLines(t *testing.T) {
	testCases := []struct {
		name    string
		blob    string
		want    []string
		wantErr error
	}{
		{
			name: "Two sentences",
			blob: "The cat sat.\nThe dog ran.",
			want: []string{"The cat sat.", "The dog ran."},
		},
		{
			name: "Blank lines dropped",
			blob: "\n\nfirst\n   \n\tsecond\n\n",
			want: []string{"first", "\tsecond"},
		},
		{
			name: "CRLF",
			blob: "a b\r\nc d\r\n",
			want: []string{"a b", "c d"},
		},
		{
			name:    "Empty",
			blob:    "",
			wantErr: ErrEmptyCorpus,
		},
		{
			name:    "Whitespace only",
			blob:    " \n\t\n\r\n",
			wantErr: ErrEmptyCorpus,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Lines(tc.blob)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Lines() error = %v, want %v", err, tc.wantErr)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Lines() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLoadMarkdown(t *testing.T) {
	src := "# A Heading\n\nFirst paragraph line\nsecond *emphasised* line.\n\n" +
		"```go\nfunc skipped() {}\n```\n\n" +
		"- item one\n- item [two](http://example.com)\n\n> quoted text\n"

	got, err := Load(strings.NewReader(src), FormatMarkdown)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	want := []string{
		"A Heading",
		"First paragraph line",
		"second emphasised line.",
		"item one",
		"item two",
		"quoted text",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load(markdown) = %q, want %q", got, want)
	}
}

func TestLoadHTML(t *testing.T) {
	src := `<html><head><title>ignored</title><style>p{}</style></head><body>
<nav><p>menu entry</p></nav>
<h1>Big   Title</h1>
<p>Some <b>bold</b>
 text.</p>
<ul><li>one</li><li>two</li></ul>
<script>var x = 1;</script>
<footer><p>copyright</p></footer>
</body></html>`

	got, err := Load(strings.NewReader(src), FormatHTML)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	want := []string{"Big Title", "Some bold text.", "one", "two"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load(html) = %q, want %q", got, want)
	}
}

func TestLoadEmptyFormats(t *testing.T) {
	for _, format := range []Format{FormatText, FormatMarkdown, FormatHTML} {
		t.Run(format.String(), func(t *testing.T) {
			if _, err := Load(strings.NewReader("\n\n"), format); !errors.Is(err, ErrEmptyCorpus) {
				t.Errorf("expected ErrEmptyCorpus, got %v", err)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	cases := map[string]Format{
		"corpus.txt":     FormatText,
		"corpus":         FormatText,
		"README.md":      FormatMarkdown,
		"notes.Markdown": FormatMarkdown,
		"page.HTML":      FormatHTML,
		"page.htm":       FormatHTML,
	}
	for path, want := range cases {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.md")
	if err := os.WriteFile(path, []byte("## Hello there\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if len(got) != 1 || got[0] != "Hello there" {
		t.Errorf("LoadFile() = %q", got)
	}

	if _, err = LoadFile(filepath.Join(dir, "missing.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist for a missing file, got %v", err)
	}
}

func TestDefault(t *testing.T) {
	lines := Default()
	if len(lines) < 50 {
		t.Fatalf("expected the built-in corpus to have at least 50 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if strings.TrimSpace(line) != line || line == "" {
			t.Errorf("built-in corpus line %q is not trimmed", line)
		}
	}
}
