package site

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/CTAG07/Darlingtonia/pkg/corpus"
	"github.com/CTAG07/Darlingtonia/pkg/markov"
	"github.com/google/uuid"
)

const (
	// ChainOrder is the number of preceding tokens the site model conditions on.
	ChainOrder = 1
	// ModelName is the name of the model a build trains and samples.
	ModelName = "site"

	DefaultPageCount             = 11
	DefaultParagraphsPerPage     = 6
	DefaultSentencesPerParagraph = 5
	DefaultTitleWords            = 5
	DefaultMaxUtteranceTokens    = 1000
	DefaultPageTemplate          = "page.tmpl.html"

	// utteranceCapFactor scales the longest corpus line into the smallest
	// step cap a build will use.
	utteranceCapFactor = 4
)

// Config holds the settings of a single site build.
type Config struct {
	// OutputDir is the parent of every build's output root.
	OutputDir string `json:"output_dir" yaml:"output_dir"`
	// BuildID names the subdirectory of OutputDir that this build replaces.
	BuildID int `json:"build_id" yaml:"build_id"`

	PageCount             int `json:"page_count" yaml:"page_count"`
	ParagraphsPerPage     int `json:"paragraphs_per_page" yaml:"paragraphs_per_page"`
	SentencesPerParagraph int `json:"sentences_per_paragraph" yaml:"sentences_per_paragraph"`
	TitleWords            int `json:"title_words" yaml:"title_words"`

	// MaxUtteranceTokens is the floor of the cap on a single walk of the
	// chain. The cap grows to fit the longest corpus line, so only walks that
	// loop far past anything in the corpus hit it, and those fail the build
	// instead of producing a truncated sentence.
	MaxUtteranceTokens int `json:"max_utterance_tokens" yaml:"max_utterance_tokens"`

	// Temperature reshapes the transition weights. 1 samples by observed
	// frequency and 0 always takes the most frequent continuation.
	Temperature float64 `json:"temperature" yaml:"temperature"`
	// TopK limits every step to the k most frequent continuations. 0 keeps
	// them all.
	TopK int `json:"top_k" yaml:"top_k"`

	PageTemplate string `json:"page_template" yaml:"page_template"`

	// DisambiguateCollisions renames pages whose address is already taken
	// instead of letting the later page overwrite the earlier one.
	DisambiguateCollisions bool `json:"disambiguate_collisions" yaml:"disambiguate_collisions"`

	// Seed makes the build reproducible when non-zero.
	Seed int64 `json:"seed" yaml:"seed"`
}

// DefaultConfig returns a Config with the default settings.
func DefaultConfig() Config {
	return Config{
		OutputDir:              "./ai-honeypots",
		BuildID:                1,
		PageCount:              DefaultPageCount,
		ParagraphsPerPage:      DefaultParagraphsPerPage,
		SentencesPerParagraph:  DefaultSentencesPerParagraph,
		TitleWords:             DefaultTitleWords,
		MaxUtteranceTokens:     DefaultMaxUtteranceTokens,
		Temperature:            1.0,
		TopK:                   0,
		PageTemplate:           DefaultPageTemplate,
		DisambiguateCollisions: false,
		Seed:                   0,
	}
}

// Validate reports the first invalid setting as a config error.
func (c Config) Validate() error {
	var err error
	switch {
	case c.OutputDir == "":
		err = errors.New("output_dir must be set")
	case c.BuildID < 0:
		err = fmt.Errorf("build_id must not be negative, got %d", c.BuildID)
	case c.PageCount <= 0:
		err = fmt.Errorf("page_count must be positive, got %d", c.PageCount)
	case c.ParagraphsPerPage <= 0:
		err = fmt.Errorf("paragraphs_per_page must be positive, got %d", c.ParagraphsPerPage)
	case c.SentencesPerParagraph <= 0:
		err = fmt.Errorf("sentences_per_paragraph must be positive, got %d", c.SentencesPerParagraph)
	case c.TitleWords <= 0:
		err = fmt.Errorf("title_words must be positive, got %d", c.TitleWords)
	case c.MaxUtteranceTokens <= 0:
		err = fmt.Errorf("max_utterance_tokens must be positive, got %d", c.MaxUtteranceTokens)
	case c.Temperature < 0:
		err = fmt.Errorf("temperature must not be negative, got %g", c.Temperature)
	case c.TopK < 0:
		err = fmt.Errorf("top_k must not be negative, got %d", c.TopK)
	case c.PageTemplate == "":
		err = errors.New("page_template must be set")
	}
	if err != nil {
		return configError("validate config", err)
	}
	return nil
}

// OutputRoot is the directory this build owns: OutputDir/BuildID.
func (c Config) OutputRoot() string {
	return filepath.Join(c.OutputDir, strconv.Itoa(c.BuildID))
}

// UtteranceCap returns the step cap for a build over lines: the configured
// floor, or a multiple of the longest line's token count if that is larger.
func (c Config) UtteranceCap(lines []string) int {
	longest := 0
	for _, line := range lines {
		longest = max(longest, len(strings.Fields(line)))
	}
	return max(c.MaxUtteranceTokens, utteranceCapFactor*longest+1)
}

// TrainModel replaces the site model in gen's database with one trained on
// lines, each line being one chain.
func TrainModel(ctx context.Context, gen *markov.Generator, lines []string) (markov.ModelInfo, error) {
	existing, err := gen.GetModelInfo(ctx, ModelName)
	switch {
	case err == nil:
		if err = gen.RemoveModel(ctx, existing); err != nil {
			return markov.ModelInfo{}, generationError("remove previous model", err)
		}
	case !errors.Is(err, sql.ErrNoRows):
		return markov.ModelInfo{}, generationError("look up model", err)
	}

	if err = gen.InsertModel(ctx, markov.ModelInfo{Name: ModelName, Order: ChainOrder}); err != nil {
		return markov.ModelInfo{}, generationError("insert model", err)
	}
	model, err := gen.GetModelInfo(ctx, ModelName)
	if err != nil {
		return markov.ModelInfo{}, generationError("look up model", err)
	}
	if err = gen.Train(ctx, model, strings.NewReader(strings.Join(lines, "\n"))); err != nil {
		return markov.ModelInfo{}, generationError("train model", err)
	}
	return model, nil
}

// Report summarizes a finished build.
type Report struct {
	RunID      string
	OutputRoot string
	Pages      int
	// Files counts the page files left on disk, after any overwrites.
	Files      int
	Collisions int
	Duration   time.Duration
}

// Builder runs site builds against one chain database and renderer.
type Builder struct {
	config   Config
	gen      *markov.Generator
	renderer Renderer
	logger   *slog.Logger
}

// NewBuilder returns a Builder. A nil logger discards all output.
func NewBuilder(config Config, gen *markov.Generator, renderer Renderer, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Builder{
		config:   config,
		gen:      gen,
		renderer: renderer,
		logger:   logger,
	}
}

// Build trains the model on lines, generates the pages and writes them, with
// assets, into the configured output root. Nothing on disk is touched until
// the configuration and corpus have been checked and the pages generated.
func (b *Builder) Build(ctx context.Context, lines []string, assets ...Asset) (*Report, error) {
	start := time.Now()
	cfg := b.config

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lines, err := corpus.Lines(strings.Join(lines, "\n"))
	if err != nil {
		return nil, configError("load corpus", err)
	}
	if checker, ok := b.renderer.(interface{ HasTemplate(string) bool }); ok && !checker.HasTemplate(cfg.PageTemplate) {
		return nil, configError("find template", fmt.Errorf("page template %q is not loaded", cfg.PageTemplate))
	}

	report := &Report{
		RunID:      uuid.NewString(),
		OutputRoot: cfg.OutputRoot(),
	}
	logger := b.logger.With(slog.String("run_id", report.RunID))
	logger.InfoContext(ctx, "Build started",
		slog.String("output_root", report.OutputRoot),
		slog.Int("corpus_lines", len(lines)),
	)

	model, err := TrainModel(ctx, b.gen, lines)
	if err != nil {
		return nil, err
	}
	b.logModelStats(ctx, logger, model)

	opts := []markov.GenerateOption{
		markov.WithStrict(true),
		markov.WithMaxLength(cfg.UtteranceCap(lines)),
		markov.WithTemperature(cfg.Temperature),
		markov.WithTopK(cfg.TopK),
	}
	if cfg.Seed != 0 {
		opts = append(opts, markov.WithRand(rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)))))
	}
	textGen := NewTextGenerator(NewMarkovChain(b.gen, model, opts...), cfg.SentencesPerParagraph, cfg.TitleWords)

	pages, links, err := BuildPages(ctx, textGen, cfg.PageCount, cfg.ParagraphsPerPage)
	if err != nil {
		return nil, err
	}

	if collisions := Collisions(pages); len(collisions) > 0 {
		report.Collisions = overwrites(collisions)
		for _, c := range collisions {
			logger.WarnContext(ctx, "Pages share an address",
				slog.String("address", c.Address),
				slog.Any("pages", c.Pages),
				slog.Bool("disambiguated", cfg.DisambiguateCollisions),
			)
		}
		if cfg.DisambiguateCollisions {
			if links, err = Disambiguate(pages); err != nil {
				return nil, err
			}
		}
	}

	if err = WriteSite(ctx, report.OutputRoot, pages, links, b.renderer, cfg.PageTemplate, assets...); err != nil {
		return nil, err
	}

	report.Pages = len(pages)
	report.Files = len(pages) - overwrites(Collisions(pages))
	report.Duration = time.Since(start)
	logger.InfoContext(ctx, "Build completed",
		slog.Int("page_count", report.Pages),
		slog.Int("page_files", report.Files),
		slog.Int("address_collisions", report.Collisions),
		slog.Int("asset_count", len(assets)),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

func (b *Builder) logModelStats(ctx context.Context, logger *slog.Logger, model markov.ModelInfo) {
	stats, err := b.gen.GetStats(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Could not read model statistics", slog.Any("error", err))
		return
	}
	ms := stats.Stats[model.Id]
	logger.InfoContext(ctx, "Model trained",
		slog.String("model_name", model.Name),
		slog.Int("vocab_size", stats.VocabSize),
		slog.Int("total_chains", ms.TotalChains),
		slog.Int("starting_tokens", ms.StartingTokens),
	)
}
