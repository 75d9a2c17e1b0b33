package markov

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
)

const (
	// SOCTokenID is the reserved ID for the Start-Of-Chain token.
	SOCTokenID = 0
	// EOCTokenID is the reserved ID for the End-Of-Chain token.
	EOCTokenID = 1
	// SOCTokenText is the reserved text for the Start-Of-Chain token.
	SOCTokenText = "<SOC>"
	// EOCTokenText is the reserved text for the End-Of-Chain token.
	EOCTokenText = "<EOC>"
)

// SetupSchema initializes the necessary tables and special vocabulary entries
// in the provided database. This function should be called once on a new
// database before any other operations are performed. It is idempotent and
// safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaVocab = `
CREATE TABLE IF NOT EXISTS markov_vocabulary (
    token_id INTEGER PRIMARY KEY,
    token_text TEXT NOT NULL UNIQUE
);
`
		schemaPrefixes = `
CREATE TABLE IF NOT EXISTS markov_prefixes (
	prefix_id INTEGER PRIMARY KEY,
	prefix_text TEXT NOT NULL UNIQUE
);
`
		schemaModels = `
CREATE TABLE IF NOT EXISTS markov_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    model_order INTEGER NOT NULL
);
`
		schemaChains = `
CREATE TABLE IF NOT EXISTS markov_chains (
    model_id INTEGER NOT NULL,
    prefix_id INTEGER NOT NULL,
    next_token_id INTEGER NOT NULL,
    frequency  INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (model_id, prefix_id, next_token_id)
);
`
	)

	startToken := fmt.Sprintf("INSERT OR IGNORE INTO markov_vocabulary (token_id, token_text) VALUES (%d, '%s');", SOCTokenID, SOCTokenText)
	endToken := fmt.Sprintf("INSERT OR IGNORE INTO markov_vocabulary (token_id, token_text) VALUES (%d, '%s');", EOCTokenID, EOCTokenText)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// Commit runs first on success, making this rollback a no-op.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, stmt := range []string{schemaVocab, schemaPrefixes, schemaModels, schemaChains} {
		if _, err = tx.Exec(stmt); err != nil {
			return fmt.Errorf("could not create schema: %w", err)
		}
	}

	if _, err = tx.Exec(startToken); err != nil {
		return fmt.Errorf("could not insert special tokens: %w", err)
	}

	if _, err = tx.Exec(endToken); err != nil {
		return fmt.Errorf("could not insert special tokens: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// Generator is the main entry point for interacting with the Markov chain library.
// It holds the database connection, a tokenizer, and prepared SQL statements
// for efficient database interaction.
type Generator struct {
	db                    *sql.DB
	tokenizer             Tokenizer
	stmtGetModelInfo      *sql.Stmt
	stmtGetModels         *sql.Stmt
	stmtAddModel          *sql.Stmt
	stmtModelChains       *sql.Stmt
	stmtModelStarters     *sql.Stmt
	stmtModelFreq         *sql.Stmt
	stmtGetTokenID        *sql.Stmt
	stmtGetPrefixID       *sql.Stmt
	stmtGetTokenText      *sql.Stmt
	stmtGetChain          *sql.Stmt
	stmtGetVocabLen       *sql.Stmt
	stmtGetPrefixLen      *sql.Stmt
	stmtInsertVocab       *sql.Stmt
	stmtGetOrInsertPrefix *sql.Stmt
	logger                *slog.Logger
}

// NewGenerator creates and returns a new Generator. It takes a database connection
// and a Tokenizer implementation. It pre-compiles all necessary SQL statements,
// returning an error if any preparation fails.
func NewGenerator(db *sql.DB, tokenizer Tokenizer) (*Generator, error) {
	g := &Generator{
		db:        db,
		tokenizer: tokenizer,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	statements := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&g.stmtGetModelInfo, `SELECT model_id, model_order FROM markov_models WHERE model_name = ?;`},
		{&g.stmtGetModels, `SELECT model_id, model_name, model_order FROM markov_models;`},
		{&g.stmtAddModel, `INSERT INTO markov_models (model_name, model_order) VALUES (?, ?);`},
		{&g.stmtModelChains, `SELECT COUNT(*) FROM markov_chains WHERE model_id = ?;`},
		{&g.stmtModelStarters, `SELECT COUNT(*) FROM markov_chains WHERE model_id = ? AND prefix_id = ?;`},
		{&g.stmtModelFreq, `SELECT coalesce(SUM(frequency), 0) FROM markov_chains WHERE model_id = ?;`},
		{&g.stmtGetTokenID, `SELECT token_id FROM markov_vocabulary WHERE token_text = ?;`},
		{&g.stmtGetPrefixID, `SELECT prefix_id FROM markov_prefixes WHERE prefix_text = ?;`},
		{&g.stmtGetTokenText, `SELECT token_text FROM markov_vocabulary WHERE token_id = ?;`},
		// Ordered so that seeded generation is reproducible across runs.
		{&g.stmtGetChain, `SELECT c.next_token_id, c.frequency FROM markov_chains c
JOIN markov_prefixes p ON p.prefix_id = c.prefix_id
WHERE c.model_id = ? AND p.prefix_text = ?
ORDER BY c.next_token_id;`},
		{&g.stmtGetVocabLen, `SELECT COUNT(*) FROM markov_vocabulary;`},
		{&g.stmtGetPrefixLen, `SELECT COUNT(*) FROM markov_prefixes;`},
		{&g.stmtInsertVocab, `INSERT INTO markov_vocabulary (token_text) VALUES (?) ON CONFLICT(token_text) DO UPDATE SET token_text=excluded.token_text RETURNING token_id;`},
		{&g.stmtGetOrInsertPrefix, `INSERT INTO markov_prefixes (prefix_text) VALUES (?) ON CONFLICT(prefix_text) DO UPDATE SET prefix_text=excluded.prefix_text RETURNING prefix_id;`},
	}

	for _, s := range statements {
		stmt, err := db.Prepare(s.query)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("could not prepare statement %q: %w", s.query, err)
		}
		*s.dst = stmt
	}

	return g, nil
}

// Close releases all prepared SQL statements held by the Generator. It should be
// called when the Generator is no longer needed to free up database resources.
func (g *Generator) Close() {
	for _, stmt := range []*sql.Stmt{
		g.stmtGetModelInfo,
		g.stmtGetModels,
		g.stmtAddModel,
		g.stmtModelChains,
		g.stmtModelStarters,
		g.stmtModelFreq,
		g.stmtGetTokenID,
		g.stmtGetPrefixID,
		g.stmtGetTokenText,
		g.stmtGetChain,
		g.stmtGetVocabLen,
		g.stmtGetPrefixLen,
		g.stmtInsertVocab,
		g.stmtGetOrInsertPrefix,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// SetLogger sets the logger for the Generator. By default, all logs are discarded.
// Providing a `log/slog.Logger` will enable logging for training, generation,
// and other operations.
func (g *Generator) SetLogger(logger *slog.Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// SetTokenizer replaces the tokenizer used for training and for joining
// generated tokens.
func (g *Generator) SetTokenizer(tokenizer Tokenizer) {
	if tokenizer != nil {
		g.tokenizer = tokenizer
	}
}
