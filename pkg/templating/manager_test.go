package templating

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setupTestManager creates a TemplateManager for a single test's scope,
// backed by a temp data directory holding one known template.
func setupTestManager(tb testing.TB) *TemplateManager {
	tb.Helper()

	dataDir := tb.TempDir()
	templatesPath := filepath.Join(dataDir, "templates")
	if err := os.Mkdir(templatesPath, 0755); err != nil {
		tb.Fatalf("failed to create templates dir: %v", err)
	}

	dummyTmplPath := filepath.Join(templatesPath, "dummy.tmpl.html")
	if err := os.WriteFile(dummyTmplPath, []byte(`{{define "dummy.tmpl.html"}}Hello{{end}}`), 0644); err != nil {
		tb.Fatalf("failed to write dummy template: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tm, err := NewTemplateManager(logger, DefaultConfig(), dataDir)
	if err != nil {
		tb.Fatalf("NewTemplateManager failed: %v", err)
	}
	return tm
}

func TestNewTemplateManager(t *testing.T) {
	tm := setupTestManager(t)
	if tm == nil {
		t.Fatal("NewTemplateManager returned nil manager")
	}
	if len(tm.templateNames) == 0 {
		t.Error("manager should have loaded at least one template on init")
	}
}

func TestNewTemplateManagerEmptyDir(t *testing.T) {
	dataDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dataDir, "templates"), 0755); err != nil {
		t.Fatalf("failed to create templates dir: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tm, err := NewTemplateManager(logger, DefaultConfig(), dataDir)
	if err != nil {
		t.Fatalf("NewTemplateManager should tolerate an empty template dir: %v", err)
	}
	if len(tm.templateNames) != 0 {
		t.Errorf("expected no templates, got %d", len(tm.templateNames))
	}
}

func TestManager_Refresh(t *testing.T) {
	tm := setupTestManager(t)
	initialCount := len(tm.templateNames)

	newTmplPath := filepath.Join(tm.templateDir, "new.tmpl.html")
	if err := os.WriteFile(newTmplPath, []byte(`New Content`), 0644); err != nil {
		t.Fatalf("failed to write new template: %v", err)
	}

	if err := tm.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if len(tm.templateNames) != initialCount+1 {
		t.Errorf("expected %d templates after refresh, got %d", initialCount+1, len(tm.templateNames))
	}
}

func TestManager_Execute(t *testing.T) {
	tm := setupTestManager(t)
	var buf bytes.Buffer
	err := tm.Execute(&buf, "dummy.tmpl.html", nil)
	if err != nil {
		t.Fatalf("Execute failed for valid template: %v", err)
	}
	if buf.String() != "Hello" {
		t.Errorf("expected output 'Hello', got '%s'", buf.String())
	}

	err = tm.Execute(&buf, "nonexistent.tmpl.html", nil)
	if err == nil {
		t.Fatal("expected an error for non-existent template, but got nil")
	}
	// html/template returns a specific error message format
	expectedErrString := `html/template: "nonexistent.tmpl.html" is undefined`
	if !strings.Contains(err.Error(), expectedErrString) {
		t.Errorf("error message mismatch: got '%v', expected to contain '%s'", err, expectedErrString)
	}
}

func TestManager_Partials(t *testing.T) {
	tm := setupTestManager(t)

	partPath := filepath.Join(tm.templateDir, "footer.part.html")
	if err := os.WriteFile(partPath, []byte(`{{define "footer"}}the footer{{end}}`), 0644); err != nil {
		t.Fatalf("failed to write partial: %v", err)
	}
	pagePath := filepath.Join(tm.templateDir, "page.tmpl.html")
	if err := os.WriteFile(pagePath, []byte(`{{define "page.tmpl.html"}}body + {{template "footer"}}{{end}}`), 0644); err != nil {
		t.Fatalf("failed to write page template: %v", err)
	}
	if err := tm.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	var buf bytes.Buffer
	if err := tm.Execute(&buf, "page.tmpl.html", nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if buf.String() != "body + the footer" {
		t.Errorf("unexpected output: %q", buf.String())
	}

	// Partials should show up in the full name list but not as executable pages.
	names := tm.GetTemplateNames()
	var foundPart bool
	for _, name := range names {
		if name == "footer.part.html" {
			foundPart = true
		}
	}
	if !foundPart {
		t.Error("GetTemplateNames should include partial files")
	}
	for _, name := range tm.templateNames {
		if name == "footer.part.html" {
			t.Error("templateNames should only contain full templates")
		}
	}
}

func TestManager_ExecuteTemplateString(t *testing.T) {
	tm := setupTestManager(t)

	var buf bytes.Buffer
	err := tm.ExecuteTemplateString(&buf, `{{slugify "Getting Started"}}`, nil)
	if err != nil {
		t.Fatalf("ExecuteTemplateString failed: %v", err)
	}
	if buf.String() != "getting-started" {
		t.Errorf("expected 'getting-started', got '%s'", buf.String())
	}

	err = tm.ExecuteTemplateString(io.Discard, `{{slugify`, nil)
	if err == nil {
		t.Fatal("expected a parse error for a malformed template, got nil")
	}

	// String executions must not pollute the loaded template set.
	var out bytes.Buffer
	if err = tm.Execute(&out, "dummy.tmpl.html", nil); err != nil {
		t.Fatalf("Execute after string execution failed: %v", err)
	}
	if out.String() != "Hello" {
		t.Errorf("loaded templates changed after string execution: %q", out.String())
	}
}

func TestManager_SetConfig(t *testing.T) {
	tm := setupTestManager(t)
	newConfig := DefaultConfig()
	newConfig.MaxRepeatCount = 3
	tm.SetConfig(newConfig)

	if got := tm.GetConfig().MaxRepeatCount; got != 3 {
		t.Errorf("SetConfig failed to update MaxRepeatCount: expected 3, got %d", got)
	}
	if got := len(tm.repeat(99)); got != 3 {
		t.Errorf("repeat did not respect updated MaxRepeatCount, got %d elements", got)
	}
}

func TestManager_Watcher(t *testing.T) {
	tm := setupTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tm.StartWatcher(ctx); err != nil {
		t.Fatalf("StartWatcher failed: %v", err)
	}
	defer tm.StopWatcher()

	if err := tm.StartWatcher(ctx); err == nil {
		t.Error("second StartWatcher should fail while one is running")
	}

	newTmplPath := filepath.Join(tm.templateDir, "watched.tmpl.html")
	if err := os.WriteFile(newTmplPath, []byte(`Watched`), 0644); err != nil {
		t.Fatalf("failed to write watched template: %v", err)
	}

	// The watcher debounces, so give it time to pick the file up.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var found bool
		for _, name := range tm.GetTemplateNames() {
			if name == "watched.tmpl.html" {
				found = true
			}
		}
		if found {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("watcher did not reload templates within the deadline")
}

// setupBenchmarkTemplate is a helper to create and load a specific template for a benchmark.
func setupBenchmarkTemplate(b *testing.B, tm *TemplateManager, name, content string) {
	b.Helper()
	templatePath := filepath.Join(tm.templateDir, name)
	if err := os.WriteFile(templatePath, []byte(content), 0644); err != nil {
		b.Fatalf("failed to write benchmark template %s: %v", name, err)
	}
	if err := tm.Refresh(); err != nil {
		b.Fatalf("failed to refresh after writing template %s: %v", name, err)
	}
}

// BenchmarkExecute_RenderDocument measures the cost of rendering a stored
// document into HTML, the hot path of every page view.
func BenchmarkExecute_RenderDocument(b *testing.B) {
	tm := setupTestManager(b)
	content := `{{renderDocument .}} <p>{{excerpt . 120}}</p>`
	setupBenchmarkTemplate(b, tm, "render.tmpl.html", content)

	doc := map[string]any{
		"type": "doc",
		"content": []any{
			map[string]any{
				"type":    "heading",
				"attrs":   map[string]any{"level": 2},
				"content": []any{map[string]any{"type": "text", "text": "Exporting invoices"}},
			},
			map[string]any{
				"type": "paragraph",
				"content": []any{
					map[string]any{"type": "text", "text": "Click "},
					map[string]any{"type": "text", "text": "Export", "marks": []any{map[string]any{"type": "bold"}}},
					map[string]any{"type": "text", "text": " to download the current view as CSV."},
				},
			},
			map[string]any{
				"type": "bulletList",
				"content": []any{
					map[string]any{"type": "listItem", "content": []any{
						map[string]any{"type": "paragraph", "content": []any{
							map[string]any{"type": "text", "text": "Filters apply to the export."},
						}},
					}},
					map[string]any{"type": "listItem", "content": []any{
						map[string]any{"type": "paragraph", "content": []any{
							map[string]any{"type": "text", "text": "Large exports run in the background."},
						}},
					}},
				},
			},
		},
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tm.Execute(io.Discard, "render.tmpl.html", doc)
	}
}

// BenchmarkExecute_TextFuncs measures the cost of the common text helpers.
func BenchmarkExecute_TextFuncs(b *testing.B) {
	tm := setupTestManager(b)
	content := `<h1 id="{{slugify .Title}}">{{titleCase .Title}}</h1><p>{{truncate .Body 80}}</p>`
	setupBenchmarkTemplate(b, tm, "text_funcs.tmpl.html", content)

	data := map[string]string{
		"Title": "billing and invoice management",
		"Body":  strings.Repeat("invoice exports include every visible column. ", 8),
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tm.Execute(io.Discard, "text_funcs.tmpl.html", data)
	}
}
