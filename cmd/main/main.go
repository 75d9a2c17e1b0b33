package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// CLI is the command line of darlingtonia. Running it without a command builds the site.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (.json, .yaml or .yml)" default:"config.json" type:"path"`
	Verbose bool             `short:"v" help:"Enable debug logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build BuildCmd `cmd:"" default:"withargs" help:"Generate the static honeypot site"`
	Init  InitCmd  `cmd:"" help:"Write a default configuration file"`
	Model ModelCmd `cmd:"" help:"Inspect the chain model trained from the corpus"`
}

// Globals is handed to every command's Run method.
type Globals struct {
	ConfigPath string
	Verbose    bool
	Logger     *slog.Logger
}

func main() {
	// A missing .env is fine, the file is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("darlingtonia"),
		kong.Description("Builds a static site of Markov-generated pages for crawlers that ignore robots.txt."),
		kong.Vars{"version": Version + " (" + Commit + ", " + BuildDate + ")"},
		kong.UsageOnError(),
	)

	globals := &Globals{
		ConfigPath: cli.Config,
		Verbose:    cli.Verbose,
		Logger:     newLogger("info", cli.Verbose),
	}
	if err := ctx.Run(globals); err != nil {
		globals.Logger.Error("Command failed", "command", ctx.Command(), "error", err)
		os.Exit(1)
	}
}

func newLogger(level string, verbose bool) *slog.Logger {
	logLevel := parseLogLevel(level)
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}
