package markov

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// ModelInfo holds the essential metadata for a Markov model, including its
// unique ID, name, and the order of the chain (the number of preceding tokens
// used to predict the next one).
type ModelInfo struct {
	Id    int
	Name  string
	Order int
}

// ExportedModel is the serializable representation of a trained model.
type ExportedModel struct {
	Name       string          `json:"name"`
	Order      int             `json:"order"`
	Vocabulary map[string]int  `json:"vocabulary"` // token_text -> token_id
	Prefixes   map[string]int  `json:"prefixes"`   // prefix_text -> prefix_id
	Chains     []ExportedChain `json:"chains"`
}

// ExportedChain is the serializable representation of a single link
// in a Markov chain, used within an ExportedModel.
type ExportedChain struct {
	PrefixID    int `json:"prefix_id"`
	NextTokenID int `json:"next_token_id"`
	Frequency   int `json:"frequency"`
}

// GetModelInfos retrieves metadata for all models currently in the database,
// returning them in a map keyed by model name.
func (g *Generator) GetModelInfos(ctx context.Context) (map[string]ModelInfo, error) {
	rows, err := g.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	models := make(map[string]ModelInfo)
	for rows.Next() {
		var model ModelInfo
		if err = rows.Scan(&model.Id, &model.Name, &model.Order); err != nil {
			return nil, err
		}
		models[model.Name] = model
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// GetModelInfo retrieves the metadata for a single model specified by name.
// It returns sql.ErrNoRows if no such model exists.
func (g *Generator) GetModelInfo(ctx context.Context, modelName string) (ModelInfo, error) {
	var modelId, modelOrder int
	err := g.stmtGetModelInfo.QueryRowContext(ctx, modelName).Scan(&modelId, &modelOrder)
	if err != nil {
		return ModelInfo{}, err
	}
	return ModelInfo{
		Id:    modelId,
		Name:  modelName,
		Order: modelOrder,
	}, nil
}

// InsertModel creates a new model entry in the database.
func (g *Generator) InsertModel(ctx context.Context, model ModelInfo) error {
	if model.Order <= 0 {
		return fmt.Errorf("model %q: order must be positive, got %d", model.Name, model.Order)
	}
	_, err := g.stmtAddModel.ExecContext(ctx, model.Name, model.Order)
	return err
}

// RemoveModel deletes a model and all of its associated chain data from the
// database. The operation is performed within a transaction.
func (g *Generator) RemoveModel(ctx context.Context, model ModelInfo) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_chains WHERE model_id = ?", model.Id); err != nil {
		return fmt.Errorf("failed to remove chains for model %d: %w", model.Id, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_models WHERE model_id = ?", model.Id); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", model.Id, err)
	}

	g.logger.InfoContext(ctx, "Model removed successfully",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
	)

	return tx.Commit()
}

// ExportModel serializes a given model into a JSON format and writes it to the
// provided io.Writer. Only the vocabulary and prefixes referenced by the
// model's chains are included.
func (g *Generator) ExportModel(ctx context.Context, modelInfo ModelInfo, w io.Writer) error {
	rows, err := g.db.QueryContext(ctx,
		"SELECT prefix_id, next_token_id, frequency FROM markov_chains WHERE model_id = ? ORDER BY prefix_id, next_token_id",
		modelInfo.Id)
	if err != nil {
		return fmt.Errorf("could not query chains for export: %w", err)
	}

	var chains []ExportedChain
	prefixIDs := make(map[int]struct{})
	tokenIDs := make(map[int]struct{})
	for rows.Next() {
		var chain ExportedChain
		if err = rows.Scan(&chain.PrefixID, &chain.NextTokenID, &chain.Frequency); err != nil {
			_ = rows.Close()
			return err
		}
		chains = append(chains, chain)
		prefixIDs[chain.PrefixID] = struct{}{}
		tokenIDs[chain.NextTokenID] = struct{}{}
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return err
	}

	prefixes, err := g.lookupTexts(ctx, "markov_prefixes", "prefix_id", "prefix_text", prefixIDs)
	if err != nil {
		return fmt.Errorf("could not load prefixes for export: %w", err)
	}
	// Prefix texts are space separated token ids that also need vocabulary entries.
	for text := range prefixes {
		for _, idStr := range strings.Fields(text) {
			if id, convErr := strconv.Atoi(idStr); convErr == nil {
				tokenIDs[id] = struct{}{}
			}
		}
	}

	vocabulary, err := g.lookupTexts(ctx, "markov_vocabulary", "token_id", "token_text", tokenIDs)
	if err != nil {
		return fmt.Errorf("could not load vocabulary for export: %w", err)
	}

	exported := ExportedModel{
		Name:       modelInfo.Name,
		Order:      modelInfo.Order,
		Vocabulary: vocabulary,
		Prefixes:   prefixes,
		Chains:     chains,
	}

	g.logger.InfoContext(ctx, "Model exported",
		slog.String("model_name", modelInfo.Name),
		slog.Int("model_id", modelInfo.Id),
		slog.Int("vocab_items_exported", len(vocabulary)),
		slog.Int("prefixes_exported", len(prefixes)),
		slog.Int("chains_exported", len(chains)),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// lookupTexts loads text -> id pairs for the given ids from one of the lookup
// tables. Ids are queried in batches to stay under SQLite's variable limit.
func (g *Generator) lookupTexts(ctx context.Context, table, idColumn, textColumn string, ids map[int]struct{}) (map[string]int, error) {
	const batchSize = 500

	result := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	sorted := make([]int, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Ints(sorted)

	for start := 0; start < len(sorted); start += batchSize {
		end := min(start+batchSize, len(sorted))
		batch := sorted[start:end]

		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IN (?%s)",
			idColumn, textColumn, table, idColumn, strings.Repeat(",?", len(batch)-1))

		rows, err := g.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id int
			var text string
			if err = rows.Scan(&id, &text); err != nil {
				_ = rows.Close()
				return nil, err
			}
			result[text] = id
		}
		_ = rows.Close()
		if err = rows.Err(); err != nil {
			return nil, err
		}
	}
	return result, nil
}
