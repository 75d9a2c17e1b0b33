package templating

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

//go:embed templates/*.html
var defaultTemplates embed.FS

// TemplateManager is the central controller for the templating engine.
// It owns the parsed template set, its configuration and the function map,
// and executes templates in a concurrent-safe manner.
// All methods are concurrent-safe.
type TemplateManager struct {
	logger        *slog.Logger
	config        *TemplateConfig
	templates     *template.Template
	templateNames []string
	funcMap       template.FuncMap
	mu            sync.RWMutex
}

// NewTemplateManager creates, initializes, and returns a new TemplateManager.
// A nil logger discards all output and a nil config uses DefaultConfig. It
// performs an initial Refresh to load all templates.
func NewTemplateManager(logger *slog.Logger, config *TemplateConfig) (*TemplateManager, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config == nil {
		config = DefaultConfig()
	}

	tm := &TemplateManager{
		logger: logger,
		config: config,
	}
	tm.funcMap = tm.makeFuncMap()

	if err := tm.Refresh(); err != nil {
		return nil, err
	}

	logger.Debug("Template manager initialized", "template_dir", config.TemplateDir)
	return tm, nil
}

// Refresh reparses the embedded defaults and, if configured, the template
// directory. On failure the previously loaded set stays in place.
func (tm *TemplateManager) Refresh() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	parsed, err := template.New("").Funcs(tm.funcMap).ParseFS(defaultTemplates, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse embedded templates: %w", err)
	}

	if dir := tm.config.TemplateDir; dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("template dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("template dir %s is not a directory", dir)
		}

		for _, pattern := range []string{"*.tmpl.html", "*.part.html"} {
			filePattern := filepath.Join(dir, pattern)
			tm.logger.Debug("Loading template files...", "pattern", filePattern)
			matches, err := filepath.Glob(filePattern)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				continue
			}
			if parsed, err = parsed.ParseFiles(matches...); err != nil {
				tm.logger.Error("failed to parse template files", "pattern", filePattern, "error", err)
				return err
			}
		}
	}

	var names []string
	for _, t := range parsed.Templates() {
		// The unnamed root template and partials are not meant to be executed directly.
		if strings.HasSuffix(t.Name(), ".tmpl.html") {
			names = append(names, t.Name())
		}
	}
	sort.Strings(names)

	tm.templates = parsed
	tm.templateNames = names
	tm.logger.Debug("Loaded template and partial files", "count", len(parsed.Templates())-1) // Subtract one for the root template
	return nil
}

// Execute renders a specific template by name, writing the output to the provided io.Writer.
// The `data` argument is passed to the template as dot.
func (tm *TemplateManager) Execute(w io.Writer, name string, data any) error {
	if name == "" {
		return errors.New("templating: empty template name")
	}
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.templates.ExecuteTemplate(w, name, data)
}

// HasTemplate reports whether a full page template with the given name is loaded.
func (tm *TemplateManager) HasTemplate(name string) bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	i := sort.SearchStrings(tm.templateNames, name)
	return i < len(tm.templateNames) && tm.templateNames[i] == name
}

// GetConfig returns a copy of the current configuration.
func (tm *TemplateManager) GetConfig() TemplateConfig {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return *tm.config
}

// GetTemplateNames returns the names of every loaded template, partials
// included, in sorted order.
func (tm *TemplateManager) GetTemplateNames() []string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	var names []string
	for _, t := range tm.templates.Templates() {
		// By default, there is a root template with no name. We don't want to return this in the list
		if strings.HasSuffix(t.Name(), ".html") {
			names = append(names, t.Name())
		}
	}
	sort.Strings(names)
	return names
}

// DefaultTemplates exposes the embedded template files, for writing them out
// as a starting point for a custom template directory.
func DefaultTemplates() fs.FS {
	sub, _ := fs.Sub(defaultTemplates, "templates")
	return sub
}
