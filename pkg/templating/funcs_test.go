package templating

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// decodeDoc builds a document the same way the API does, so attrs come back
// as float64 like they would from stored JSON.
func decodeDoc(t *testing.T, raw string) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("failed to decode test document: %v", err)
	}
	return doc
}

// TestTemplateFunctions validates the behavior of each category of template functions.
func TestTemplateFunctions(t *testing.T) {
	tm := setupTestManager(t)

	t.Run("RenderDocument", func(t *testing.T) {
		doc := decodeDoc(t, `{
			"type": "doc",
			"content": [
				{"type": "heading", "attrs": {"level": 2}, "content": [{"type": "text", "text": "Getting Started"}]},
				{"type": "paragraph", "content": [
					{"type": "text", "text": "Use "},
					{"type": "text", "text": "bold", "marks": [{"type": "bold"}]},
					{"type": "text", "text": " and "},
					{"type": "text", "text": "docs", "marks": [{"type": "link", "attrs": {"href": "https://example.com/docs"}}]}
				]},
				{"type": "bulletList", "content": [
					{"type": "listItem", "content": [{"type": "paragraph", "content": [{"type": "text", "text": "item one"}]}]}
				]},
				{"type": "codeBlock", "attrs": {"language": "go"}, "content": [{"type": "text", "text": "a < b"}]}
			]
		}`)

		html := string(tm.renderDocument(doc))
		for _, want := range []string{
			`<h2 id="getting-started">Getting Started</h2>`,
			`<strong>bold</strong>`,
			`<a href="https://example.com/docs" rel="noopener">docs</a>`,
			`<ul><li><p>item one</p></li></ul>`,
			`<pre><code class="language-go">a &lt; b</code></pre>`,
		} {
			if !strings.Contains(html, want) {
				t.Errorf("rendered HTML missing %q:\n%s", want, html)
			}
		}
	})

	t.Run("RenderDocumentEscapesText", func(t *testing.T) {
		doc := decodeDoc(t, `{
			"type": "doc",
			"content": [
				{"type": "paragraph", "content": [
					{"type": "text", "text": "<script>alert(1)</script>", "marks": [{"type": "link", "attrs": {"href": "javascript:alert(1)"}}]}
				]}
			]
		}`)

		html := string(tm.renderDocument(doc))
		if strings.Contains(html, "<script>") {
			t.Errorf("text content was not escaped:\n%s", html)
		}
		if !strings.Contains(html, `href="#"`) {
			t.Errorf("javascript: href should collapse to #:\n%s", html)
		}
	})

	t.Run("RenderDocumentLimits", func(t *testing.T) {
		config := DefaultConfig()
		config.MaxDocumentNodes = 3
		tm.SetConfig(config)

		doc := decodeDoc(t, `{
			"type": "doc",
			"content": [
				{"type": "paragraph", "content": [{"type": "text", "text": "one"}]},
				{"type": "paragraph", "content": [{"type": "text", "text": "two"}]},
				{"type": "paragraph", "content": [{"type": "text", "text": "three"}]}
			]
		}`)

		html := string(tm.renderDocument(doc))
		if strings.Count(html, "<p>") != 2 {
			t.Errorf("expected rendering to stop after the node budget, got:\n%s", html)
		}
		if strings.Count(html, "</p>") != strings.Count(html, "<p>") {
			t.Errorf("truncated output should still be balanced:\n%s", html)
		}

		config = DefaultConfig()
		config.MaxHeadingLevel = 4
		tm.SetConfig(config)

		doc = decodeDoc(t, `{
			"type": "doc",
			"content": [{"type": "heading", "attrs": {"level": 6}, "content": [{"type": "text", "text": "deep"}]}]
		}`)
		html = string(tm.renderDocument(doc))
		if !strings.Contains(html, "<h4") || strings.Contains(html, "<h6") {
			t.Errorf("heading level was not clamped: %s", html)
		}

		tm.SetConfig(DefaultConfig())
	})

	t.Run("RenderDocumentTable", func(t *testing.T) {
		config := DefaultConfig()
		config.MaxTableRows = 2
		config.MaxTableCols = 1
		tm.SetConfig(config)

		doc := decodeDoc(t, `{
			"type": "doc",
			"content": [{"type": "table", "content": [
				{"type": "tableRow", "content": [
					{"type": "tableHeader", "content": [{"type": "paragraph", "content": [{"type": "text", "text": "name"}]}]},
					{"type": "tableHeader", "content": [{"type": "paragraph", "content": [{"type": "text", "text": "extra"}]}]}
				]},
				{"type": "tableRow", "content": [
					{"type": "tableCell", "content": [{"type": "paragraph", "content": [{"type": "text", "text": "export"}]}]}
				]},
				{"type": "tableRow", "content": [
					{"type": "tableCell", "content": [{"type": "paragraph", "content": [{"type": "text", "text": "dropped"}]}]}
				]}
			]}]
		}`)

		html := string(tm.renderDocument(doc))
		if strings.Count(html, "<tr>") != 2 {
			t.Errorf("MaxTableRows not enforced:\n%s", html)
		}
		if strings.Contains(html, "extra") {
			t.Errorf("MaxTableCols not enforced:\n%s", html)
		}
		if !strings.Contains(html, "<th><p>name</p></th>") || !strings.Contains(html, "<td><p>export</p></td>") {
			t.Errorf("table cells rendered incorrectly:\n%s", html)
		}

		tm.SetConfig(DefaultConfig())
	})

	t.Run("ExcerptFuncs", func(t *testing.T) {
		doc := decodeDoc(t, `{
			"type": "doc",
			"content": [
				{"type": "paragraph", "content": [{"type": "text", "text": "first part"}]},
				{"type": "paragraph", "content": [{"type": "text", "text": "second part"}]}
			]
		}`)

		if got := plainText(doc); got != "first part\nsecond part" {
			t.Errorf("plainText returned %q", got)
		}
		if got := tm.excerpt(doc, 13); got != "first part se..." {
			t.Errorf("excerpt returned %q", got)
		}
		if got := tm.excerpt(doc, 100); got != "first part second part" {
			t.Errorf("excerpt should not cut short text, got %q", got)
		}
	})

	t.Run("TextFuncs", func(t *testing.T) {
		slugCases := map[string]string{
			"Getting Started":    "getting-started",
			"  API -- Reference": "api-reference",
			"Üser Pörtal":        "üser-pörtal",
			"!!!":                "",
		}
		for in, want := range slugCases {
			if got := slugify(in); got != want {
				t.Errorf("slugify(%q) = %q, want %q", in, got, want)
			}
		}

		if got := truncate("hello world", 5); got != "hello" {
			t.Errorf("truncate returned %q", got)
		}
		if got := truncate("hi", 5); got != "hi" {
			t.Errorf("truncate should not pad, got %q", got)
		}
		if got := titleCase("billing and invoices"); got != "Billing And Invoices" {
			t.Errorf("titleCase returned %q", got)
		}
		if got := titleCase("HTTP api"); got != "HTTP Api" {
			t.Errorf("titleCase should leave acronyms alone, got %q", got)
		}
		if got := joinComma([]string{"a", "b", "c"}); got != "a, b, c" {
			t.Errorf("joinComma returned %q", got)
		}
		ts := time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC)
		if got := formatDate("2006-01-02", ts); got != "2025-03-09" {
			t.Errorf("formatDate returned %q", got)
		}
		if got := formatDate("2006-01-02", time.Time{}); got != "" {
			t.Errorf("formatDate should render the zero time as empty, got %q", got)
		}
	})

	t.Run("LogicFuncs", func(t *testing.T) {
		if len(tm.repeat(5)) != 5 {
			t.Error("repeat failed")
		}
		if got := len(tm.repeat(tm.config.MaxRepeatCount + 50)); got != tm.config.MaxRepeatCount {
			t.Errorf("repeat did not respect MaxRepeatCount, got %d", got)
		}
		if len(list("a", 1, true)) != 3 {
			t.Error("list failed")
		}

		m, err := dict("key", "value", "n", 2)
		if err != nil {
			t.Fatalf("dict failed: %v", err)
		}
		if m["key"] != "value" || m["n"] != 2 {
			t.Errorf("dict returned wrong map: %v", m)
		}
		if _, err = dict("odd"); err == nil {
			t.Error("dict should reject an odd number of arguments")
		}
		if _, err = dict(1, "value"); err == nil {
			t.Error("dict should reject non-string keys")
		}

		s := tm.seq(3, 6)
		if len(s) != 4 || s[0] != 3 || s[3] != 6 {
			t.Errorf("seq returned %v", s)
		}
		if len(tm.seq(6, 3)) != 0 {
			t.Error("seq with end < start should be empty")
		}
	})

	t.Run("SimpleFuncs", func(t *testing.T) {
		if add(2, 3) != 5 {
			t.Error("add failed")
		}
		if min(2, 3) != 2 {
			t.Error("min failed")
		}
		if mod(10, 3) != 1 {
			t.Error("mod failed")
		}
		if pct(3, 4) != 75 {
			t.Error("pct failed")
		}
		if pct(1, 0) != 0 {
			t.Error("pct with zero total should be 0")
		}
	})
}
