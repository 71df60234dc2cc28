package main

import (
	"log/slog"

	"github.com/CTAG07/Herbarium/pkg/studio"
)

// StageConfig defines the parameters for a single readiness stage.
type StageConfig struct {
	Enabled   bool `json:"enabled"`
	Threshold int  `json:"threshold"`
}

// CoverageStages holds the configuration for the 5 discrete readiness stages.
type CoverageStages struct {
	Stage0 StageConfig `json:"stage_1"`
	Stage1 StageConfig `json:"stage_2"`
	Stage2 StageConfig `json:"stage_3"`
	Stage3 StageConfig `json:"stage_4"`
	Stage4 StageConfig `json:"stage_5"`
}

// CoverageConfig holds all parameters for turning a project's coverage
// metrics into a single readiness score. The weights let teams decide what
// "done" means for them: some care most about filled-in documents, others
// about descriptions or a complete glossary.
type CoverageConfig struct {
	// BaseScore is the starting score for any project.
	BaseScore int `json:"base_score"`

	// DescriptionWeight is the number of points awarded when every active
	// node carries a description. Partial coverage earns a prorated share.
	DescriptionWeight float64 `json:"description_weight"`

	// DocumentWeight is the number of points awarded when every function
	// node has non-empty document content.
	DocumentWeight float64 `json:"document_weight"`

	// TermWeight is the number of points awarded for glossary density, the
	// ratio of defined terms to pages and functions, capped at one term per
	// node.
	TermWeight float64 `json:"term_weight"`

	// MaxScore is the absolute ceiling for the readiness score.
	MaxScore int `json:"max_score"`

	// FallbackLevel is the readiness level (0-4) reported when a score does
	// not meet any enabled stage threshold.
	FallbackLevel int `json:"fallback_level"`

	// Stages defines the score thresholds for each of the 5 readiness levels.
	Stages CoverageStages `json:"stages"`
}

// readinessLabels names the five readiness levels for report output.
var readinessLabels = [5]string{"empty", "outline", "draft", "review", "ready"}

// DefaultCoverageConfig returns a CoverageConfig where every stage is
// enabled, so reports work out of the box.
func DefaultCoverageConfig() *CoverageConfig {
	return &CoverageConfig{
		BaseScore:         0,
		DescriptionWeight: 40.0,
		DocumentWeight:    40.0,
		TermWeight:        20.0,
		MaxScore:          100,
		FallbackLevel:     0,
		Stages: CoverageStages{
			Stage0: StageConfig{Enabled: true, Threshold: 0},
			Stage1: StageConfig{Enabled: true, Threshold: 25},
			Stage2: StageConfig{Enabled: true, Threshold: 50},
			Stage3: StageConfig{Enabled: true, Threshold: 75},
			Stage4: StageConfig{Enabled: true, Threshold: 100},
		},
	}
}

// CoverageCalculator turns project coverage metrics into a quantifiable
// readiness score and level.
type CoverageCalculator struct {
	config *CoverageConfig
	logger *slog.Logger
}

// NewCoverageCalculator creates a new calculator with the given configuration.
func NewCoverageCalculator(config *CoverageConfig, logger *slog.Logger) *CoverageCalculator {
	return &CoverageCalculator{
		config: config,
		logger: logger,
	}
}

// GetScore calculates a readiness score from the provided coverage metrics
// using the configured weights.
func (c *CoverageCalculator) GetScore(metrics *studio.CoverageMetrics) int {
	score := float64(c.config.BaseScore)

	if metrics.TotalNodes > 0 {
		described := float64(metrics.DescribedNodes) / float64(metrics.TotalNodes)
		score += described * c.config.DescriptionWeight
	}

	if metrics.Functions > 0 {
		documented := float64(metrics.DocumentedFunctions) / float64(metrics.Functions)
		score += documented * c.config.DocumentWeight
	}

	if denom := metrics.Pages + metrics.Functions; denom > 0 {
		density := float64(metrics.Terms) / float64(denom)
		if density > 1.0 {
			density = 1.0
		}
		score += density * c.config.TermWeight
	}

	finalScore := int(score)
	if finalScore > c.config.MaxScore {
		finalScore = c.config.MaxScore
	} else if finalScore < 0 {
		finalScore = 0
	}

	c.logger.Debug("Calculated readiness",
		"project_id", metrics.ProjectID,
		"raw_score", score,
		"final_score", finalScore,
	)

	return finalScore
}

// GetLevel maps a readiness score to a discrete level from 0-4.
// It iterates from the highest stage (4) to the lowest, respecting the
// Enabled flag for each stage. If no enabled stage threshold is met, it
// returns the configured FallbackLevel.
func (c *CoverageCalculator) GetLevel(score int) int {
	// Create a temporary slice for easy iteration from highest to lowest level.
	stages := []StageConfig{
		c.config.Stages.Stage4, // Level 4
		c.config.Stages.Stage3, // Level 3
		c.config.Stages.Stage2, // Level 2
		c.config.Stages.Stage1, // Level 1
		c.config.Stages.Stage0, // Level 0
	}

	// Check from the most demanding stage downwards.
	for i, stage := range stages {
		level := 4 - i // Calculate the corresponding level (4, 3, 2, 1, 0)
		if stage.Enabled && score >= stage.Threshold {
			return level // Return the highest applicable level.
		}
	}

	// If no enabled stages were matched, return the fallback.
	// We clamp the value to ensure it's always within the valid 0-4 range.
	return max(0, min(c.config.FallbackLevel, 4))
}

// readinessLabel returns the display name for a readiness level.
func readinessLabel(level int) string {
	if level < 0 || level >= len(readinessLabels) {
		return "unknown"
	}
	return readinessLabels[level]
}
