package markov

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
)

// chainLink Is a struct used for batching chain inserts.
type chainLink struct {
	prefixID    int
	nextTokenID int
}

// Train processes a stream of text from an io.Reader, tokenizes it, and uses
// it to train the specified Markov model. Every chain the tokenizer emits
// (a line, for LineTokenizer) contributes its own transitions from the start
// boundary through to the end boundary. The entire operation is performed
// within a single database transaction.
func (g *Generator) Train(ctx context.Context, model ModelInfo, data io.Reader) error {
	// chainBatchSize determines how many chain links are buffered in memory before being written to the database in a single batch.
	const chainBatchSize = 1000

	if model.Order <= 0 {
		return fmt.Errorf("model %q has invalid order %d", model.Name, model.Order)
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// All transaction-specific statements will also be closed with this or the .Commit()
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	prefixCache := make(map[string]int)
	chainBatch := make([]chainLink, 0, chainBatchSize)

	var sentenceCount int64

	stmtInsertVocab := tx.StmtContext(ctx, g.stmtInsertVocab)
	stmtGetOrInsertPrefix := tx.StmtContext(ctx, g.stmtGetOrInsertPrefix)
	stmtInsertChainBatch, err := tx.PrepareContext(ctx, `INSERT INTO markov_chains (model_id, prefix_id, next_token_id, frequency) VALUES (?, ?, ?, 1) ON CONFLICT(model_id, prefix_id, next_token_id) DO UPDATE SET frequency = frequency + 1;`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch chain insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsertChainBatch)

	commitChainBatch := func(batch *[]chainLink) error {
		for _, link := range *batch {
			if _, err := stmtInsertChainBatch.ExecContext(ctx, model.Id, link.prefixID, link.nextTokenID); err != nil {
				return fmt.Errorf("failed during batch insert of chain link (%d -> %d): %w", link.prefixID, link.nextTokenID, err)
			}
		}
		*batch = (*batch)[:0]
		return nil
	}

	// vocabCache avoids a round trip for every repeated word in the corpus.
	vocabCache := make(map[string]int)
	stream := g.tokenizer.NewStream(data)
	var currentSentence []int

	flushSentence := func() error {
		if len(currentSentence) == 0 {
			return nil
		}
		if err := processSentence(ctx, model, currentSentence, prefixCache, &chainBatch, stmtGetOrInsertPrefix); err != nil {
			return fmt.Errorf("sentence processing error: %w", err)
		}
		sentenceCount++
		currentSentence = currentSentence[:0]
		if len(chainBatch) >= chainBatchSize {
			return commitChainBatch(&chainBatch)
		}
		return nil
	}

	for {
		token, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("tokenizer error: %w", err)
		}

		if token.EOC {
			if err = flushSentence(); err != nil {
				return err
			}
			continue
		}

		tokenID, ok := vocabCache[token.Text]
		if !ok {
			if err = stmtInsertVocab.QueryRowContext(ctx, token.Text).Scan(&tokenID); err != nil {
				return fmt.Errorf("sql insert vocabulary error for token '%s': %w", token.Text, err)
			}
			vocabCache[token.Text] = tokenID
		}
		currentSentence = append(currentSentence, tokenID)
	}

	if err = flushSentence(); err != nil {
		return fmt.Errorf("final %w", err)
	}

	if err = commitChainBatch(&chainBatch); err != nil {
		return err
	}

	g.logger.InfoContext(ctx, "Training completed",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int64("sentences_processed", sentenceCount),
		slog.Int("vocab_items_seen", len(vocabCache)),
	)

	return tx.Commit()
}

// processSentence turns one tokenized chain into prefix -> next links,
// padding the front with SOC tokens and terminating with EOC.
func processSentence(ctx context.Context, model ModelInfo, sentence []int, prefixCache map[string]int, chainBatch *[]chainLink, stmtGetOrInsertPrefix *sql.Stmt) error {
	if len(sentence) == 0 {
		return nil
	}

	fullSlice := make([]int, len(sentence)+model.Order+1)
	copy(fullSlice[model.Order:len(fullSlice)-1], sentence)
	fullSlice[len(fullSlice)-1] = EOCTokenID

	var keyBuf []byte
	for i := 0; i < len(sentence)+1; i++ { // Iterate len+1 to include the final EOC token.
		keyBuf = appendPrefixKey(keyBuf[:0], fullSlice[i:i+model.Order])
		prefixKey := string(keyBuf)

		prefixID, ok := prefixCache[prefixKey]
		if !ok {
			if err := stmtGetOrInsertPrefix.QueryRowContext(ctx, prefixKey).Scan(&prefixID); err != nil {
				return fmt.Errorf("failed to get or insert prefix '%s': %w", prefixKey, err)
			}
			prefixCache[prefixKey] = prefixID
		}

		*chainBatch = append(*chainBatch, chainLink{prefixID: prefixID, nextTokenID: fullSlice[i+model.Order]})
	}
	return nil
}

// appendPrefixKey encodes token ids as the space separated key stored in
// markov_prefixes.
func appendPrefixKey(dst []byte, prefix []int) []byte {
	for j, tokenID := range prefix {
		if j > 0 {
			dst = append(dst, ' ')
		}
		dst = strconv.AppendInt(dst, int64(tokenID), 10)
	}
	return dst
}
