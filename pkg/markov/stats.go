package markov

import (
	"context"
	"database/sql"
	"errors"
	"sort"
)

// DBStats holds aggregated statistics for the entire database, including a
// list of all models and their individual stats.
type DBStats struct {
	Models     []ModelInfo        // Models in the database, sorted by name
	Stats      map[int]ModelStats // A mapping of model ids to their stats
	VocabSize  int                // The number of unique tokens in all models' vocabularies, SOC and EOC included
	PrefixSize int                // The number of unique prefixes in all models' chains
}

// ModelStats holds aggregated statistics for a single Markov model.
type ModelStats struct {
	TotalChains    int // The number of unique prefix->next_token links.
	TotalFrequency int // The sum of frequencies of all links; the total number of trained transitions.
	StartingTokens int // The number of unique tokens that can start a chain.
}

// GetStats returns a snapshot of statistics for the entire database,
// including global counts and per-model stats.
func (g *Generator) GetStats(ctx context.Context) (*DBStats, error) {
	modelInfos, err := g.GetModelInfos(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DBStats{
		Models: make([]ModelInfo, 0, len(modelInfos)),
		Stats:  make(map[int]ModelStats, len(modelInfos)),
	}
	if err = g.stmtGetVocabLen.QueryRowContext(ctx).Scan(&stats.VocabSize); err != nil {
		return nil, err
	}
	if err = g.stmtGetPrefixLen.QueryRowContext(ctx).Scan(&stats.PrefixSize); err != nil {
		return nil, err
	}

	for _, v := range modelInfos {
		stats.Models = append(stats.Models, v)
	}
	sort.Slice(stats.Models, func(i, j int) bool {
		return stats.Models[i].Name < stats.Models[j].Name
	})

	for _, v := range stats.Models {
		ms, err := g.modelStats(ctx, v)
		if err != nil {
			return nil, err
		}
		stats.Stats[v.Id] = ms
	}
	return stats, nil
}

func (g *Generator) modelStats(ctx context.Context, model ModelInfo) (ModelStats, error) {
	var ms ModelStats
	if err := g.stmtModelChains.QueryRowContext(ctx, model.Id).Scan(&ms.TotalChains); err != nil {
		return ms, err
	}
	if err := g.stmtModelFreq.QueryRowContext(ctx, model.Id).Scan(&ms.TotalFrequency); err != nil {
		return ms, err
	}

	// The all-SOC prefix is where every chain starts.
	startKey := string(appendPrefixKey(nil, make([]int, model.Order)))
	var socID int
	err := g.stmtGetPrefixID.QueryRowContext(ctx, startKey).Scan(&socID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ms, nil
	case err != nil:
		return ms, err
	}
	if err = g.stmtModelStarters.QueryRowContext(ctx, model.Id, socID).Scan(&ms.StartingTokens); err != nil {
		return ms, err
	}
	return ms, nil
}
