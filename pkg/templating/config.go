package templating

// TemplateConfig holds all configuration options for the templating engine.
type TemplateConfig struct {
	// MaxDocumentDepth sets a hard upper limit on how deeply nested a rendered
	// document tree may be. Content below this depth is silently dropped.
	MaxDocumentDepth int

	// MaxDocumentNodes caps the total number of nodes renderDocument will emit
	// for a single document, so a pathological document cannot stall a render.
	MaxDocumentNodes int

	// MaxHeadingLevel is the largest heading level renderDocument will emit.
	// Deeper headings are clamped to this level. Values above 6 are treated as 6.
	MaxHeadingLevel int

	// MaxExcerptRunes caps the length of text returned by the excerpt function,
	// regardless of the limit requested by the template.
	MaxExcerptRunes int

	// MaxTableRows sets the maximum number of rows rendered for a table node.
	MaxTableRows int

	// MaxTableCols sets the maximum number of cells rendered per table row.
	MaxTableCols int

	// MaxRepeatCount caps the slice lengths produced by the repeat and seq
	// functions. This prevents templates from requesting unbounded iteration.
	MaxRepeatCount int
}

// DefaultConfig returns a TemplateConfig with safe default values.
func DefaultConfig() *TemplateConfig {
	return &TemplateConfig{
		MaxDocumentDepth: 20,
		MaxDocumentNodes: 10000,
		MaxHeadingLevel:  6,
		MaxExcerptRunes:  280,
		MaxTableRows:     200,
		MaxTableCols:     20,
		MaxRepeatCount:   1000,
	}
}
