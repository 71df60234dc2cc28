package templating

import (
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/CTAG07/Herbarium/pkg/studio"
)

// renderState tracks the node budget across a single renderDocument call.
type renderState struct {
	nodes    int
	maxNodes int
	maxDepth int
}

// renderDocument converts a document object into safe HTML for the site
// templates. Unknown node types contribute their children, so content is
// not lost when the editor adds a type the renderer does not know about.
// The depth and node limits from the configuration are enforced; anything
// beyond them is dropped.
func (tm *TemplateManager) renderDocument(doc map[string]any) template.HTML {
	if doc == nil {
		return ""
	}
	st := &renderState{
		maxNodes: tm.config.MaxDocumentNodes,
		maxDepth: tm.config.MaxDocumentDepth,
	}
	var b strings.Builder
	tm.renderChildren(&b, doc, 0, st)
	return template.HTML(b.String())
}

// excerpt flattens a document to a single line of text and cuts it to the
// requested rune count, capped by MaxExcerptRunes. A trailing ellipsis marks
// cut text.
func (tm *TemplateManager) excerpt(doc map[string]any, limit int) string {
	text := strings.Join(strings.Fields(studio.PlainText(doc)), " ")
	if limit <= 0 || limit > tm.config.MaxExcerptRunes {
		limit = tm.config.MaxExcerptRunes
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimRight(string(runes[:limit]), " ") + "..."
}

// plainText flattens a document to its text content, one line per top-level block.
func plainText(doc map[string]any) string {
	return studio.PlainText(doc)
}

func (tm *TemplateManager) renderNode(b *strings.Builder, node map[string]any, depth int, st *renderState) {
	if st.nodes >= st.maxNodes || depth > st.maxDepth {
		return
	}
	st.nodes++

	switch node["type"] {
	case "paragraph":
		b.WriteString("<p>")
		tm.renderChildren(b, node, depth, st)
		b.WriteString("</p>")
	case "heading":
		level := headingLevel(node, tm.config.MaxHeadingLevel)
		b.WriteString("<h")
		b.WriteString(strconv.Itoa(level))
		if id := slugify(nodeText(node)); id != "" {
			b.WriteString(` id="`)
			b.WriteString(id)
			b.WriteByte('"')
		}
		b.WriteByte('>')
		tm.renderChildren(b, node, depth, st)
		b.WriteString("</h")
		b.WriteString(strconv.Itoa(level))
		b.WriteByte('>')
	case "bulletList":
		b.WriteString("<ul>")
		tm.renderChildren(b, node, depth, st)
		b.WriteString("</ul>")
	case "orderedList":
		b.WriteString("<ol>")
		tm.renderChildren(b, node, depth, st)
		b.WriteString("</ol>")
	case "listItem":
		b.WriteString("<li>")
		tm.renderChildren(b, node, depth, st)
		b.WriteString("</li>")
	case "blockquote":
		b.WriteString("<blockquote>")
		tm.renderChildren(b, node, depth, st)
		b.WriteString("</blockquote>")
	case "codeBlock":
		b.WriteString("<pre><code")
		if lang := codeLanguage(node); lang != "" {
			b.WriteString(` class="language-`)
			b.WriteString(lang)
			b.WriteByte('"')
		}
		b.WriteByte('>')
		b.WriteString(template.HTMLEscapeString(nodeText(node)))
		b.WriteString("</code></pre>")
	case "table":
		b.WriteString("<table>")
		tm.renderLimitedChildren(b, node, depth, st, tm.config.MaxTableRows)
		b.WriteString("</table>")
	case "tableRow":
		b.WriteString("<tr>")
		tm.renderLimitedChildren(b, node, depth, st, tm.config.MaxTableCols)
		b.WriteString("</tr>")
	case "tableHeader":
		b.WriteString("<th>")
		tm.renderChildren(b, node, depth, st)
		b.WriteString("</th>")
	case "tableCell":
		b.WriteString("<td>")
		tm.renderChildren(b, node, depth, st)
		b.WriteString("</td>")
	case "horizontalRule":
		b.WriteString("<hr>")
	case "hardBreak":
		b.WriteString("<br>")
	case "text":
		renderText(b, node)
	default:
		tm.renderChildren(b, node, depth, st)
	}
}

func (tm *TemplateManager) renderChildren(b *strings.Builder, node map[string]any, depth int, st *renderState) {
	children, ok := node["content"].([]any)
	if !ok {
		return
	}
	for _, child := range children {
		if m, ok := child.(map[string]any); ok {
			tm.renderNode(b, m, depth+1, st)
		}
	}
}

func (tm *TemplateManager) renderLimitedChildren(b *strings.Builder, node map[string]any, depth int, st *renderState, limit int) {
	children, ok := node["content"].([]any)
	if !ok {
		return
	}
	for i, child := range children {
		if i >= limit {
			break
		}
		if m, ok := child.(map[string]any); ok {
			tm.renderNode(b, m, depth+1, st)
		}
	}
}

// renderText writes one text leaf, wrapping it in the tags its marks call for.
// Closing tags are written in reverse so nesting stays balanced.
func renderText(b *strings.Builder, node map[string]any) {
	text, _ := node["text"].(string)
	if text == "" {
		return
	}
	marks, _ := node["marks"].([]any)
	var closers []string
	for _, m := range marks {
		mark, ok := m.(map[string]any)
		if !ok {
			continue
		}
		switch mark["type"] {
		case "bold":
			b.WriteString("<strong>")
			closers = append(closers, "</strong>")
		case "italic":
			b.WriteString("<em>")
			closers = append(closers, "</em>")
		case "code":
			b.WriteString("<code>")
			closers = append(closers, "</code>")
		case "strike":
			b.WriteString("<del>")
			closers = append(closers, "</del>")
		case "link":
			href := "#"
			if attrs, ok := mark["attrs"].(map[string]any); ok {
				if raw, ok := attrs["href"].(string); ok {
					href = safeHref(raw)
				}
			}
			b.WriteString(`<a href="`)
			b.WriteString(template.HTMLEscapeString(href))
			b.WriteString(`" rel="noopener">`)
			closers = append(closers, "</a>")
		}
	}
	b.WriteString(template.HTMLEscapeString(text))
	for i := len(closers) - 1; i >= 0; i-- {
		b.WriteString(closers[i])
	}
}

// safeHref allows http, https, mailto and relative targets. Anything else,
// including unparsable URLs, collapses to "#".
func safeHref(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "#"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "#"
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return raw
	}
	return "#"
}

func headingLevel(node map[string]any, maxLevel int) int {
	level := 1
	if attrs, ok := node["attrs"].(map[string]any); ok {
		switch v := attrs["level"].(type) {
		case float64:
			level = int(v)
		case int:
			level = v
		}
	}
	if maxLevel <= 0 || maxLevel > 6 {
		maxLevel = 6
	}
	if level < 1 {
		level = 1
	}
	if level > maxLevel {
		level = maxLevel
	}
	return level
}

func codeLanguage(node map[string]any) string {
	attrs, ok := node["attrs"].(map[string]any)
	if !ok {
		return ""
	}
	lang, _ := attrs["language"].(string)
	return slugify(lang)
}

// nodeText collects the raw text under a node, used for heading anchors and
// code blocks.
func nodeText(node map[string]any) string {
	var b strings.Builder
	collectNodeText(node, &b)
	return b.String()
}

func collectNodeText(node map[string]any, b *strings.Builder) {
	if text, ok := node["text"].(string); ok {
		b.WriteString(text)
	}
	if node["type"] == "hardBreak" {
		b.WriteByte('\n')
	}
	children, ok := node["content"].([]any)
	if !ok {
		return
	}
	for _, child := range children {
		if m, ok := child.(map[string]any); ok {
			collectNodeText(m, b)
		}
	}
}
