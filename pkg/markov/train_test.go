package markov

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestTrain(t *testing.T) {
	db, g := setupTestDB(t)
	ctx := context.Background()
	modelInfo := trainModel(t, g, "train_test", 2, "a b c\na b d\n")

	// Verify that chains were created
	var chainCount int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM markov_chains WHERE model_id = ?", modelInfo.Id).Scan(&chainCount)
	if err != nil {
		t.Fatal(err)
	}
	// SOC SOC->a, SOC a->b, a b->c, a b->d, b c->EOC, b d->EOC
	if chainCount != 6 {
		t.Errorf("expected 6 chains to be created, but got %d", chainCount)
	}

	// Verify that a specific chain has the correct frequency
	aID, _ := g.VocabStr(ctx, "a")
	bID, _ := g.VocabStr(ctx, "b")
	tokens, totalFreq, err := g.GetNextTokens(ctx, modelInfo, []int{aID, bID})
	if err != nil {
		t.Fatalf("GetNextTokens failed: %v", err)
	}
	if totalFreq != 2 {
		t.Errorf("expected prefix 'a b' to have total frequency of 2, got %d", totalFreq)
	}
	if len(tokens) != 2 {
		t.Errorf("expected prefix 'a b' to lead to 2 unique next tokens, got %d", len(tokens))
	}
}

func TestTrainEndsEveryLine(t *testing.T) {
	_, g := setupTestDB(t)
	ctx := context.Background()
	modelInfo := trainModel(t, g, "ends", 1, "The cat sat.\n\nThe dog ran.\n")

	for _, last := range []string{"sat.", "ran."} {
		id, err := g.VocabStr(ctx, last)
		if err != nil {
			t.Fatalf("VocabStr(%q) failed: %v", last, err)
		}
		tokens, _, err := g.GetNextTokens(ctx, modelInfo, []int{id})
		if err != nil {
			t.Fatalf("GetNextTokens failed: %v", err)
		}
		if len(tokens) != 1 || tokens[0].Id != EOCTokenID {
			t.Errorf("expected %q to lead only to EOC, got %+v", last, tokens)
		}
	}

	// "The" starts both lines.
	theID, _ := g.VocabStr(ctx, "The")
	tokens, totalFreq, err := g.GetNextTokens(ctx, modelInfo, []int{SOCTokenID})
	if err != nil {
		t.Fatalf("GetNextTokens failed: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Id != theID || totalFreq != 2 {
		t.Errorf("expected SOC -> The with frequency 2, got %+v (total %d)", tokens, totalFreq)
	}
}

func TestTrainLongLineStaysOneChain(t *testing.T) {
	_, g := setupTestDB(t)
	ctx := context.Background()

	words := make([]string, 5000)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	line := strings.Join(words, " ")
	modelInfo := trainModel(t, g, "long", 1, line+"\n")

	tokens, _, err := g.GetNextTokens(ctx, modelInfo, []int{SOCTokenID})
	if err != nil {
		t.Fatalf("GetNextTokens failed: %v", err)
	}
	if len(tokens) != 1 {
		t.Errorf("expected a single starting token, got %+v", tokens)
	}

	for i := 0; i < 3; i++ {
		got, err := g.Generate(ctx, modelInfo, WithStrict(true), WithMaxLength(len(words)+1))
		if err != nil {
			t.Fatalf("Generate() failed: %v", err)
		}
		if got != line {
			t.Fatalf("Generate() returned %d words, want the trained %d word line", len(strings.Fields(got)), len(words))
		}
	}
}

func TestTrainInvalidOrder(t *testing.T) {
	_, g := setupTestDB(t)
	err := g.Train(context.Background(), ModelInfo{Name: "bad", Order: 0}, strings.NewReader("a b\n"))
	if err == nil {
		t.Fatal("expected an error for a zero-order model")
	}
}

func TestTrainCanceledContext(t *testing.T) {
	_, g := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := g.Train(ctx, ModelInfo{Id: 1, Name: "canceled", Order: 1}, strings.NewReader("a b\n")); err == nil {
		t.Fatal("expected an error when training with a canceled context")
	}
}

func BenchmarkTrain(b *testing.B) {
	corpus := createBenchmarkCorpus()
	ctx := context.Background()

	for _, order := range []int{1, 2, 3} {
		b.Run(fmt.Sprintf("Order%d", order), func(b *testing.B) {
			_, g := setupTestDBBench(b)
			model := ModelInfo{Name: "bench_train", Order: order}
			if err := g.InsertModel(ctx, model); err != nil {
				b.Fatalf("InsertModel failed: %v", err)
			}
			model, _ = g.GetModelInfo(ctx, model.Name)

			b.SetBytes(int64(len(corpus)))
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				err := g.Train(ctx, model, strings.NewReader(corpus))
				if err != nil {
					b.Fatalf("Train() failed: %v", err)
				}
			}
		})
	}
}
