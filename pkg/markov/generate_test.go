package markov

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	ctx, g, modelInfo := setupTestDBWithTraining(t)

	// With temperature 0 the output is deterministic. Both starting tokens
	// are tied, so the lowest token id ("one") wins.
	output, err := g.Generate(ctx, modelInfo, WithMaxLength(10), WithTemperature(0))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if output != "one fish two fish" {
		t.Errorf("Generate() got = %q, want %q", output, "one fish two fish")
	}
}

func TestGenerateOnlyTrainedLines(t *testing.T) {
	ctx, g, modelInfo := setupTestDBWithTraining(t)
	rng := rand.New(rand.NewPCG(7, 11))

	valid := map[string]bool{"one fish two fish": true, "red fish blue fish": true}
	for i := 0; i < 25; i++ {
		output, err := g.Generate(ctx, modelInfo, WithStrict(true), WithMaxLength(50), WithRand(rng))
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if !valid[output] {
			t.Errorf("order 2 model produced %q, which is not a training line", output)
		}
	}
}

func TestGenerateWithRandIsReproducible(t *testing.T) {
	_, g := setupTestDB(t)
	ctx := context.Background()
	modelInfo := trainModel(t, g, "repro", 1, createBenchmarkCorpus())

	run := func() []string {
		rng := rand.New(rand.NewPCG(42, 42))
		var out []string
		for i := 0; i < 10; i++ {
			s, err := g.Generate(ctx, modelInfo, WithMaxLength(200), WithRand(rng))
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			out = append(out, s)
		}
		return out
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("sample %d differs between identically seeded runs: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestGenerateStrictMaxLength(t *testing.T) {
	_, g := setupTestDB(t)
	ctx := context.Background()
	// a -> a twice as often as a -> EOC, so the deterministic walk never ends.
	modelInfo := trainModel(t, g, "loop", 1, "a a a\n")

	_, err := g.Generate(ctx, modelInfo, WithStrict(true), WithMaxLength(5), WithTemperature(0))
	if !errors.Is(err, ErrMaxLength) {
		t.Fatalf("expected ErrMaxLength, got %v", err)
	}

	output, err := g.Generate(ctx, modelInfo, WithMaxLength(5), WithTemperature(0))
	if err != nil {
		t.Fatalf("non-strict Generate failed: %v", err)
	}
	if output != "a a a a a" {
		t.Errorf("non-strict Generate got %q, want truncated output", output)
	}
}

func TestGenerateStrictDeadEnd(t *testing.T) {
	db, g := setupTestDB(t)
	ctx := context.Background()
	if err := g.InsertModel(ctx, ModelInfo{Name: "dead", Order: 1}); err != nil {
		t.Fatal(err)
	}
	modelInfo, _ := g.GetModelInfo(ctx, "dead")

	// SOC -> x, with nothing recorded after x.
	var prefixID, tokenID int
	if err := db.QueryRowContext(ctx, `INSERT INTO markov_prefixes (prefix_text) VALUES ('0') RETURNING prefix_id`).Scan(&prefixID); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRowContext(ctx, `INSERT INTO markov_vocabulary (token_text) VALUES ('x') RETURNING token_id`).Scan(&tokenID); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO markov_chains (model_id, prefix_id, next_token_id, frequency) VALUES (?, ?, ?, 1)`, modelInfo.Id, prefixID, tokenID); err != nil {
		t.Fatal(err)
	}

	_, err := g.Generate(ctx, modelInfo, WithStrict(true))
	if !errors.Is(err, ErrDeadEnd) {
		t.Fatalf("expected ErrDeadEnd, got %v", err)
	}

	output, err := g.Generate(ctx, modelInfo)
	if err != nil {
		t.Fatalf("non-strict Generate failed: %v", err)
	}
	if output != "x" {
		t.Errorf("non-strict Generate got %q, want %q", output, "x")
	}
}

func TestGenerateUntrainedModel(t *testing.T) {
	_, g := setupTestDB(t)
	ctx := context.Background()
	_ = g.InsertModel(ctx, ModelInfo{Name: "empty", Order: 1})
	modelInfo, _ := g.GetModelInfo(ctx, "empty")

	if _, err := g.Generate(ctx, modelInfo, WithStrict(true)); !errors.Is(err, ErrDeadEnd) {
		t.Errorf("expected ErrDeadEnd from an untrained model, got %v", err)
	}
}

func TestGenerateCanceledContext(t *testing.T) {
	ctx, g, modelInfo := setupTestDBWithTraining(t)
	ctx, cancel := context.WithCancel(ctx)
	cancel()

	if _, err := g.Generate(ctx, modelInfo); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestChooseNextToken(t *testing.T) {
	choices := []ChainToken{{Id: 2, Freq: 1}, {Id: 3, Freq: 5}, {Id: 4, Freq: 2}}

	opts := defaultGenerateOptions()
	opts.temperature = 0
	if got := chooseNextToken(append([]ChainToken(nil), choices...), 8, opts); got != 3 {
		t.Errorf("deterministic choice = %d, want 3", got)
	}

	opts = defaultGenerateOptions()
	opts.topK = 1
	opts.rng = rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20; i++ {
		if got := chooseNextToken(append([]ChainToken(nil), choices...), 8, opts); got != 3 {
			t.Fatalf("top-1 choice = %d, want 3", got)
		}
	}

	opts = defaultGenerateOptions()
	opts.temperature = 0.5
	opts.rng = rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 20; i++ {
		got := chooseNextToken(append([]ChainToken(nil), choices...), 8, opts)
		if got != 2 && got != 3 && got != 4 {
			t.Fatalf("temperature choice = %d, not one of the candidates", got)
		}
	}
}

func BenchmarkGenerate(b *testing.B) {
	corpus := createBenchmarkCorpus()
	ctx := context.Background()
	_, g := setupTestDBBench(b)

	model := ModelInfo{Name: "bench_generate", Order: 1}
	if err := g.InsertModel(ctx, model); err != nil {
		b.Fatal(err)
	}
	model, _ = g.GetModelInfo(ctx, "bench_generate")
	if err := g.Train(ctx, model, strings.NewReader(corpus)); err != nil {
		b.Fatalf("Train() setup for benchmark failed: %v", err)
	}

	genOpts := map[string][]GenerateOption{
		"Simple":          {WithMaxLength(50), WithEarlyTermination(false)},
		"WithTemp":        {WithMaxLength(50), WithTemperature(0.7), WithEarlyTermination(false)},
		"WithTopK":        {WithMaxLength(50), WithTopK(10), WithEarlyTermination(false)},
		"WithTempAndTopK": {WithMaxLength(50), WithTemperature(0.7), WithTopK(10), WithEarlyTermination(false)},
	}

	for name, opts := range genOpts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				s, err := g.Generate(ctx, model, opts...)
				b.SetBytes(int64(len(s)))
				if err != nil {
					b.Fatalf("Generate() failed: %v", err)
				}
			}
		})
	}
}
