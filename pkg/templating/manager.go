package templating

import (
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// TemplateManager is the central controller for the templating engine.
// It manages the template set, configuration, and function map, and is
// responsible for loading, parsing, and executing the site templates.
// All methods are concurrent-safe.
type TemplateManager struct {
	logger         *slog.Logger
	config         *TemplateConfig
	templates      *template.Template
	cleanTemplates *template.Template
	templateNames  []string
	funcMap        template.FuncMap
	templateDir    string
	watcher        *fsnotify.Watcher
	mu             sync.RWMutex
}

// NewTemplateManager creates, initializes, and returns a new TemplateManager.
// It requires a logger, a configuration, and the path to the data directory,
// which must contain a "templates" subdirectory. It performs an initial
// Refresh to load all templates.
func NewTemplateManager(logger *slog.Logger, config *TemplateConfig, dataDir string) (*TemplateManager, error) {
	if config == nil {
		config = DefaultConfig()
	}

	tm := &TemplateManager{
		logger:      logger,
		config:      config,
		templateDir: filepath.Join(dataDir, "templates"),
	}
	tm.funcMap = tm.makeFuncMap()

	if err := tm.Refresh(); err != nil {
		return nil, err
	}

	logger.Info("Template manager initialized")
	return tm, nil
}

func (tm *TemplateManager) makeFuncMap() template.FuncMap {
	return template.FuncMap{
		// Document rendering (from funcs_content.go)
		"renderDocument": tm.renderDocument,
		"plainText":      plainText,
		"excerpt":        tm.excerpt,

		// Text helpers (from funcs_text.go)
		"slugify":    slugify,
		"truncate":   truncate,
		"titleCase":  titleCase,
		"joinComma":  joinComma,
		"formatDate": formatDate,

		// Logic & Control (from funcs_logic.go)
		"repeat": tm.repeat,
		"list":   list,
		"dict":   dict,
		"seq":    tm.seq,

		// Simple (from funcs_simple.go)
		"add":   add,
		"sub":   sub,
		"div":   div,
		"mult":  mult,
		"max":   max,
		"min":   min,
		"mod":   mod,
		"pct":   pct,
		"inc":   inc,
		"dec":   dec,
		"and":   and,
		"or":    or,
		"not":   not,
		"isSet": isSet,
	}
}

// SetConfig applies a new configuration to the TemplateManager. This allows
// rendering limits to be changed without restarting the application.
func (tm *TemplateManager) SetConfig(config *TemplateConfig) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.config = config
}

// Refresh reloads all templates from the filesystem. This function allows for
// updates to templates without restarting the application.
func (tm *TemplateManager) Refresh() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	filePattern := filepath.Join(tm.templateDir, "*.tmpl.html")
	tm.logger.Info("Loading template files...")

	parsedFiles, err := template.New("").Funcs(tm.funcMap).ParseGlob(filePattern)
	var names []string
	if err != nil {
		if !strings.Contains(err.Error(), "pattern matches no files") {
			tm.logger.Error("failed to parse template files", "error", err)
			return err
		} else {
			// No template files, so we have to create the object without any
			parsedFiles = template.New("").Funcs(tm.funcMap)
			names = []string{}
		}
	} else {
		for _, t := range parsedFiles.Templates() {
			// By default, there is a root template with no name. We don't want to execute this
			if strings.Contains(t.Name(), ".tmpl.html") {
				names = append(names, t.Name())
			}
		}
	}

	filePattern = filepath.Join(tm.templateDir, "*.part.html")
	tm.logger.Info("Loading partial files...")

	newParsedFiles, err := parsedFiles.ParseGlob(filePattern)
	if err != nil {
		if !strings.Contains(err.Error(), "pattern matches no files") {
			tm.logger.Error("failed to parse partial files", "error", err)
			return err
		} else {
			newParsedFiles = parsedFiles
		}
	}
	// We skip the for loop here because templateNames is only for full templates

	if len(names) == 0 {
		tm.logger.Warn("No template files found matching pattern", "pattern", filePattern)
	}

	tm.templates = newParsedFiles
	tm.templateNames = names
	tm.logger.Info("Loaded template and partial files", "count", len(newParsedFiles.Templates())-1) // Subtract one for the root template

	// Create a clean clone for string executions after all parsing is complete.
	tm.cleanTemplates, err = tm.templates.Clone()
	if err != nil {
		tm.logger.Error("failed to create a clean clone of templates", "error", err)
		return err
	}

	return nil
}

// Execute renders a specific template by name, writing the output to the provided io.Writer.
// The `data` argument is passed to the template and can be used to provide context or
// dynamic values.
func (tm *TemplateManager) Execute(w io.Writer, name string, data interface{}) error {
	if name == "" {
		return nil
	}
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.templates.ExecuteTemplate(w, name, data)
}

// GetConfig returns a copy of the current configuration.
// This mainly exists for concurrency-safety reasons.
func (tm *TemplateManager) GetConfig() TemplateConfig {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return *tm.config
}

// GetTemplateNames returns a slice of the loaded template names.
// This mainly exists for concurrency-safety reasons, and because
// it returns the names of partial templates as well.
func (tm *TemplateManager) GetTemplateNames() []string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	var names []string
	for _, t := range tm.templates.Templates() {
		// By default, there is a root template with no name. We don't want to return this in the list
		if strings.Contains(t.Name(), ".html") {
			names = append(names, t.Name())
		}
	}
	return names
}

// GetTemplateDir returns the template dir that the TemplateManager uses.
// This mainly exists for concurrency-safety reasons as well.
func (tm *TemplateManager) GetTemplateDir() string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.templateDir
}

// ExecuteTemplateString parses and executes a raw template string using the manager's function map.
// This is ideal for testing or previewing templates without saving them to disk.
func (tm *TemplateManager) ExecuteTemplateString(w io.Writer, content string, data interface{}) error {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	// Clone the clean, unexecuted template set to avoid race conditions and execution state issues.
	tempSet, err := tm.cleanTemplates.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone clean templates for string execution: %w", err)
	}

	// Parse the user-provided content string into this fresh clone.
	t, err := tempSet.Parse(content)
	if err != nil {
		return fmt.Errorf("failed to parse string template: %w", err)
	}

	// Execute the temporary template.
	return t.Execute(w, data)
}
