package markov

import (
	"context"
	"fmt"
	"io"
)

// Token is one unit produced by a StreamTokenizer. EOC marks the end of a
// chain; its Text is ignored.
type Token struct {
	Text string
	EOC  bool
}

// Tokenizer splits training text into tokens and decides how generated tokens
// are joined back into a string.
type Tokenizer interface {
	NewStream(io.Reader) StreamTokenizer
	// Separator is written between two consecutive generated tokens.
	Separator(prev, current string) string
	// EOC is written when a chain ends after last.
	EOC(last string) string
}

// StreamTokenizer yields tokens one at a time. Next returns io.EOF once the
// input is consumed.
type StreamTokenizer interface {
	Next() (*Token, error)
}

// GetNextTokens returns every token the model has seen after prefix, ordered
// by token id, with the sum of their frequencies. The prefix must hold exactly
// model.Order ids; SOCTokenID fills positions before the start of a chain. An
// unseen prefix yields no tokens and no error.
func (g *Generator) GetNextTokens(ctx context.Context, model ModelInfo, prefix []int) ([]ChainToken, int, error) {
	if len(prefix) != model.Order {
		return nil, 0, fmt.Errorf("model %q: prefix has %d tokens, want %d", model.Name, len(prefix), model.Order)
	}
	key := string(appendPrefixKey(nil, prefix))

	rows, err := g.stmtGetChain.QueryContext(ctx, model.Id, key)
	if err != nil {
		return nil, 0, fmt.Errorf("could not query chain for prefix '%s': %w", key, err)
	}
	defer rows.Close()

	var (
		tokens    []ChainToken
		totalFreq int
	)
	for rows.Next() {
		var ct ChainToken
		if err = rows.Scan(&ct.Id, &ct.Freq); err != nil {
			return nil, 0, err
		}
		tokens = append(tokens, ct)
		totalFreq += ct.Freq
	}
	return tokens, totalFreq, rows.Err()
}

// VocabStr returns the id of a vocabulary token. It returns sql.ErrNoRows for
// text that was never trained.
func (g *Generator) VocabStr(ctx context.Context, token string) (id int, err error) {
	err = g.stmtGetTokenID.QueryRowContext(ctx, token).Scan(&id)
	return id, err
}

// VocabInt returns the text of a vocabulary token id. It returns sql.ErrNoRows
// for an unknown id.
func (g *Generator) VocabInt(ctx context.Context, id int) (text string, err error) {
	err = g.stmtGetTokenText.QueryRowContext(ctx, id).Scan(&text)
	return text, err
}
