package markov

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "modernc.org/sqlite"
)

// setupTestDB creates a new file-backed SQLite database and a Generator for testing.
// It uses t.Cleanup to ensure resources are released.
func setupTestDB(t *testing.T) (*sql.DB, *Generator) {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbFile)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	g, err := NewGenerator(db, NewLineTokenizer())
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	t.Cleanup(g.Close)

	return db, g
}

// trainModel inserts a model with the given order and trains it on data.
func trainModel(t *testing.T, g *Generator, name string, order int, data string) ModelInfo {
	t.Helper()
	ctx := context.Background()
	if err := g.InsertModel(ctx, ModelInfo{Name: name, Order: order}); err != nil {
		t.Fatalf("setup: InsertModel() failed: %v", err)
	}
	modelInfo, err := g.GetModelInfo(ctx, name)
	if err != nil {
		t.Fatalf("setup: GetModelInfo() failed: %v", err)
	}
	if err := g.Train(ctx, modelInfo, strings.NewReader(data)); err != nil {
		t.Fatalf("setup: Train() failed: %v", err)
	}
	return modelInfo
}

// setupTestDBWithTraining is a convenience helper that also trains a default model.
func setupTestDBWithTraining(t *testing.T) (context.Context, *Generator, ModelInfo) {
	_, g := setupTestDB(t)
	modelInfo := trainModel(t, g, "test_model", 2, "one fish two fish\nred fish blue fish\n")
	return context.Background(), g, modelInfo
}

// setupTestDBBench creates a database for benchmarking.
func setupTestDBBench(b *testing.B) (*sql.DB, *Generator) {
	dbFile := filepath.Join(b.TempDir(), "bench.db")
	db, err := sql.Open("sqlite", dbFile+"?_pragma=journal_mode(WAL)&_pragma=synchronous(OFF)")
	if err != nil {
		b.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	b.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		b.Fatalf("failed to set up schema: %v", err)
	}

	g, err := NewGenerator(db, NewLineTokenizer())
	if err != nil {
		b.Fatalf("NewGenerator() error = %v", err)
	}
	b.Cleanup(g.Close)

	return db, g
}

var (
	benchmarkCorpus string
	corpusOnce      sync.Once
)

// createBenchmarkCorpus builds a few thousand pseudo sentences from a small
// word list so benchmarks don't depend on files outside the module.
func createBenchmarkCorpus() string {
	corpusOnce.Do(func() {
		words := strings.Fields("the quick brown fox jumps over a lazy dog while seven wizards hex bold jackdaws near the old mill")
		var sb strings.Builder
		for i := 0; i < 5000; i++ {
			n := 4 + i%9
			for j := 0; j < n; j++ {
				if j > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(words[(i*7+j*3)%len(words)])
			}
			fmt.Fprintf(&sb, " %d.\n", i%13)
		}
		benchmarkCorpus = sb.String()
	})
	return benchmarkCorpus
}
