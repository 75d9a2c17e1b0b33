package site

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/CTAG07/Darlingtonia/pkg/markov"
	_ "modernc.org/sqlite"
)

// scriptedChain returns its utterances in order, wrapping around.
type scriptedChain struct {
	utterances []string
	calls      int
	failAt     int // 1-based call that fails, 0 for never
	err        error
}

func (c *scriptedChain) Utterance(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.calls++
	if c.failAt > 0 && c.calls >= c.failAt {
		return "", c.err
	}
	return c.utterances[(c.calls-1)%len(c.utterances)], nil
}

// recordingRenderer renders a compact text form of PageData.
type recordingRenderer struct {
	names []string
	err   error
}

func (r *recordingRenderer) Execute(w io.Writer, name string, data any) error {
	if r.err != nil {
		return r.err
	}
	r.names = append(r.names, name)
	d, ok := data.(PageData)
	if !ok {
		return fmt.Errorf("unexpected data type %T", data)
	}
	_, err := fmt.Fprintf(w, "%s|%d|%s", d.Title, len(d.Paragraphs), linkList(d.Links))
	return err
}

func linkList(links []Link) string {
	parts := make([]string, len(links))
	for i, l := range links {
		parts[i] = l.Title + "=" + l.Address
	}
	return strings.Join(parts, ",")
}

// setupGenerator opens a fresh SQLite chain database.
func setupGenerator(tb testing.TB) *markov.Generator {
	tb.Helper()
	db, err := sql.Open("sqlite", filepath.Join(tb.TempDir(), "chain.db"))
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = db.Close() })

	if err = markov.SetupSchema(db); err != nil {
		tb.Fatalf("failed to set up schema: %v", err)
	}
	gen, err := markov.NewGenerator(db, markov.NewLineTokenizer())
	if err != nil {
		tb.Fatalf("NewGenerator() error = %v", err)
	}
	tb.Cleanup(gen.Close)
	return gen
}

// listFiles returns every regular file under root as a sorted slash path.
func listFiles(tb testing.TB, root string) []string {
	tb.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		tb.Fatalf("walking %s: %v", root, err)
	}
	sort.Strings(files)
	return files
}

func readFile(tb testing.TB, path string) string {
	tb.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}
