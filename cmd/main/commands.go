package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/CTAG07/Darlingtonia/pkg/corpus"
	"github.com/CTAG07/Darlingtonia/pkg/markov"
	"github.com/CTAG07/Darlingtonia/pkg/site"
	"github.com/CTAG07/Darlingtonia/pkg/templating"
	"github.com/natefinch/atomic"
)

// BuildCmd generates one site.
type BuildCmd struct {
	ID     int    `name:"id" help:"Build id, used as the output subdirectory (overrides build_id)" default:"-1"`
	Output string `short:"o" help:"Parent directory of the output root (overrides output_dir)" type:"path"`
	Corpus string `help:"Corpus file (overrides corpus_path)" type:"path"`
	Seed   int64  `help:"Seed for a reproducible build; 0 keeps the configured seed"`
}

// InitCmd writes a default configuration.
type InitCmd struct {
	Force     bool   `help:"Overwrite an existing configuration file"`
	Templates string `help:"Also copy the built-in templates into this directory and point template_dir at it" type:"path"`
}

// ModelCmd groups the chain model commands.
type ModelCmd struct {
	Export ModelExportCmd `cmd:"" help:"Write the trained chain as JSON"`
	Stats  ModelStatsCmd  `cmd:"" help:"Print chain model statistics"`
}

// ModelExportCmd exports the site model.
type ModelExportCmd struct {
	Output string `short:"o" help:"Output file, stdout when empty" type:"path"`
}

// ModelStatsCmd prints statistics for every model in the database.
type ModelStatsCmd struct{}

// app is the state shared by commands that touch the chain database.
type app struct {
	config *Config
	logger *slog.Logger
	db     *sql.DB
	gen    *markov.Generator
}

// openApp loads the configuration, applies the environment and opens the chain database.
func openApp(g *Globals) (*app, error) {
	config, err := LoadConfig(g.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err = config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	logger := newLogger(config.App.LogLevel, g.Verbose)
	g.Logger = logger

	db, err := initDB(config.App.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = markov.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set up markov schema: %w", err)
	}
	gen, err := markov.NewGenerator(db, markov.NewLineTokenizer())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error creating markov generator: %w", err)
	}
	gen.SetLogger(logger)

	return &app{config: config, logger: logger, db: db, gen: gen}, nil
}

func (a *app) Close() {
	a.gen.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database", "error", err)
	}
}

// loadCorpus reads the configured corpus, or the built-in one.
func (a *app) loadCorpus() ([]string, error) {
	path := a.config.App.CorpusPath
	if path == "" {
		a.logger.Debug("Using built-in corpus")
		return corpus.Default(), nil
	}
	a.logger.Debug("Loading corpus", "path", path, "format", corpus.FormatFromPath(path).String())
	lines, err := corpus.LoadFile(path)
	switch {
	case errors.Is(err, corpus.ErrEmptyCorpus):
		return nil, &site.Error{Kind: site.KindConfig, Op: "load corpus", Err: err}
	case err != nil:
		return nil, &site.Error{Kind: site.KindIO, Op: "load corpus", Err: err}
	}
	return lines, nil
}

// siteModel returns the trained site model, training it from the corpus if
// the database doesn't have one yet.
func (a *app) siteModel(ctx context.Context) (markov.ModelInfo, error) {
	model, err := a.gen.GetModelInfo(ctx, site.ModelName)
	if err == nil {
		return model, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return markov.ModelInfo{}, err
	}
	lines, err := a.loadCorpus()
	if err != nil {
		return markov.ModelInfo{}, err
	}
	return site.TrainModel(ctx, a.gen, lines)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func (c *BuildCmd) Run(g *Globals) error {
	a, err := openApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := *a.config.Build
	if c.ID >= 0 {
		cfg.BuildID = c.ID
	}
	if c.Output != "" {
		cfg.OutputDir = c.Output
	}
	if c.Seed != 0 {
		cfg.Seed = c.Seed
	}
	if c.Corpus != "" {
		a.config.App.CorpusPath = c.Corpus
	}

	lines, err := a.loadCorpus()
	if err != nil {
		return err
	}

	robots := site.RobotsAsset(nil)
	if path := a.config.App.RobotsPath; path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return &site.Error{Kind: site.KindIO, Op: "read robots.txt", Err: err}
		}
		robots = site.RobotsAsset(content)
	}

	tm, err := templating.NewTemplateManager(a.logger, a.config.Templates)
	if err != nil {
		return fmt.Errorf("failed to create template manager: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	report, err := site.NewBuilder(cfg, a.gen, tm, a.logger).Build(ctx, lines, robots)
	if err != nil {
		return err
	}

	if path := a.config.App.MetricsTextfile; path != "" {
		if err = writeMetrics(path, cfg.BuildID, report); err != nil {
			// The site is already written, so metrics failures only warn.
			a.logger.Warn("Failed to write metrics", "path", path, "error", err)
		}
	}
	a.logger.Info("Site written", "run_id", report.RunID, "output_root", report.OutputRoot)
	return nil
}

func (c *InitCmd) Run(g *Globals) error {
	if _, err := os.Stat(g.ConfigPath); err == nil && !c.Force {
		return fmt.Errorf("%s already exists, use --force to overwrite it", g.ConfigPath)
	}

	config := DefaultConfig()
	if c.Templates != "" {
		if err := copyTemplates(c.Templates); err != nil {
			return err
		}
		config.Templates.TemplateDir = c.Templates
	}
	if err := WriteConfig(g.ConfigPath, config); err != nil {
		return err
	}
	g.Logger.Info("Configuration written", "path", g.ConfigPath, "template_dir", config.Templates.TemplateDir)
	return nil
}

// copyTemplates writes the embedded templates into dir, overwriting files of the same name.
func copyTemplates(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create template dir: %w", err)
	}
	src := templating.DefaultTemplates()
	return fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(src, path)
		if err != nil {
			return err
		}
		if err = atomic.WriteFile(filepath.Join(dir, path), bytes.NewReader(data)); err != nil {
			return fmt.Errorf("failed to write template %s: %w", path, err)
		}
		return nil
	})
}

func (c *ModelExportCmd) Run(g *Globals) error {
	a, err := openApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	model, err := a.siteModel(ctx)
	if err != nil {
		return err
	}

	if c.Output == "" {
		return a.gen.ExportModel(ctx, model, os.Stdout)
	}
	var buf bytes.Buffer
	if err = a.gen.ExportModel(ctx, model, &buf); err != nil {
		return err
	}
	if err = atomic.WriteFile(c.Output, &buf); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	a.logger.Info("Model exported", "model_name", model.Name, "path", c.Output)
	return nil
}

func (c *ModelStatsCmd) Run(g *Globals) error {
	a, err := openApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	if _, err = a.siteModel(ctx); err != nil {
		return err
	}
	stats, err := a.gen.GetStats(ctx)
	if err != nil {
		return err
	}
	return printStats(os.Stdout, stats)
}

func printStats(w io.Writer, stats *markov.DBStats) error {
	if _, err := fmt.Fprintf(w, "vocabulary: %d\nprefixes: %d\n", stats.VocabSize, stats.PrefixSize); err != nil {
		return err
	}
	for _, m := range stats.Models {
		s := stats.Stats[m.Id]
		if _, err := fmt.Fprintf(w, "model %s (order %d): %d links, %d transitions, %d starting tokens\n",
			m.Name, m.Order, s.TotalChains, s.TotalFrequency, s.StartingTokens); err != nil {
			return err
		}
	}
	return nil
}
