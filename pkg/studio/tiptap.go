package studio

import "strings"

// TipTap block nodes that carry a content array. Editors drop the array
// when a node is empty; normalization puts it back so patch paths into
// content always resolve.
var tiptapContentNodes = map[string]struct{}{
	"doc":           {},
	"paragraph":     {},
	"heading":       {},
	"bulletList":    {},
	"orderedList":   {},
	"listItem":      {},
	"blockquote":    {},
	"codeBlock":     {},
	"codeBlockLeaf": {},
}

// NormalizeContent returns a deep copy of a TipTap document in which every
// block node that should carry a content array has one. Empty paragraphs
// and headings get a single empty text child so the cursor has somewhere to
// land. The input is never modified.
func NormalizeContent(doc map[string]any) map[string]any {
	if doc == nil {
		return map[string]any{}
	}
	normalized, _ := normalizeValue(doc).(map[string]any)
	return normalized
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v)+1)
		for key, child := range v {
			out[key] = normalizeValue(child)
		}
		nodeType, _ := v["type"].(string)
		if _, wants := tiptapContentNodes[nodeType]; wants {
			if _, ok := out["content"]; !ok {
				if nodeType == "paragraph" || nodeType == "heading" {
					out["content"] = []any{map[string]any{"type": "text", "text": ""}}
				} else {
					out["content"] = []any{}
				}
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = normalizeValue(child)
		}
		return out
	default:
		return value
	}
}

// PlainText flattens a TipTap document to the text of its leaves, one line
// per top-level block. Inline leaves concatenate without separators, the
// way the editor splits runs on marks.
func PlainText(doc map[string]any) string {
	content, ok := doc["content"].([]any)
	if !ok {
		var parts []string
		collectText(doc, &parts)
		return strings.Join(parts, "")
	}

	lines := make([]string, 0, len(content))
	for _, block := range content {
		var parts []string
		collectText(block, &parts)
		if line := strings.Join(parts, ""); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func collectText(value any, out *[]string) {
	switch v := value.(type) {
	case map[string]any:
		if text, ok := v["text"].(string); ok && text != "" {
			*out = append(*out, text)
		}
		if content, ok := v["content"].([]any); ok {
			for _, child := range content {
				collectText(child, out)
			}
		}
	case []any:
		for _, child := range v {
			collectText(child, out)
		}
	}
}
