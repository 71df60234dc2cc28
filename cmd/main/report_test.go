package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/CTAG07/Herbarium/pkg/studio"
)

func newTestCalculator(config *CoverageConfig) *CoverageCalculator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCoverageCalculator(config, logger)
}

func TestGetScoreFullCoverage(t *testing.T) {
	c := newTestCalculator(DefaultCoverageConfig())

	// Every node described, every function documented, one term per
	// page/function. All three weights pay out in full.
	metrics := &studio.CoverageMetrics{
		ProjectID:           1,
		Applications:        1,
		Pages:               1,
		Functions:           2,
		TotalNodes:          4,
		DescribedNodes:      4,
		DocumentedFunctions: 2,
		Terms:               3,
	}
	if score := c.GetScore(metrics); score != 100 {
		t.Errorf("expected full coverage to score 100, got %d", score)
	}
}

func TestGetScoreEmptyProject(t *testing.T) {
	c := newTestCalculator(DefaultCoverageConfig())

	// No nodes at all. Every ratio has a zero denominator and must be
	// skipped rather than divide by zero.
	metrics := &studio.CoverageMetrics{ProjectID: 1}
	if score := c.GetScore(metrics); score != 0 {
		t.Errorf("expected empty project to score 0, got %d", score)
	}
}

func TestGetScorePartialCoverage(t *testing.T) {
	c := newTestCalculator(DefaultCoverageConfig())

	// Half the nodes described (20 of 40), half the functions documented
	// (20 of 40), and term density well past the cap (full 20).
	metrics := &studio.CoverageMetrics{
		ProjectID:           1,
		Applications:        1,
		Pages:               1,
		Functions:           2,
		TotalNodes:          4,
		DescribedNodes:      2,
		DocumentedFunctions: 1,
		Terms:               10,
	}
	if score := c.GetScore(metrics); score != 60 {
		t.Errorf("expected partial coverage to score 60, got %d", score)
	}
}

func TestGetScoreClamping(t *testing.T) {
	config := DefaultCoverageConfig()
	config.BaseScore = 150
	c := newTestCalculator(config)

	metrics := &studio.CoverageMetrics{ProjectID: 1}
	if score := c.GetScore(metrics); score != config.MaxScore {
		t.Errorf("expected score to clamp to max %d, got %d", config.MaxScore, score)
	}

	config = DefaultCoverageConfig()
	config.BaseScore = -50
	c = newTestCalculator(config)
	if score := c.GetScore(metrics); score != 0 {
		t.Errorf("expected negative score to clamp to 0, got %d", score)
	}
}

func TestGetLevelThresholds(t *testing.T) {
	c := newTestCalculator(DefaultCoverageConfig())

	cases := []struct {
		score int
		want  int
	}{
		{0, 0},
		{24, 0},
		{25, 1},
		{49, 1},
		{50, 2},
		{74, 2},
		{75, 3},
		{99, 3},
		{100, 4},
	}
	for _, tc := range cases {
		if got := c.GetLevel(tc.score); got != tc.want {
			t.Errorf("GetLevel(%d) = %d, want %d", tc.score, got, tc.want)
		}
	}
}

func TestGetLevelDisabledStage(t *testing.T) {
	config := DefaultCoverageConfig()
	config.Stages.Stage4.Enabled = false
	c := newTestCalculator(config)

	// With the top stage disabled, a perfect score only reaches level 3.
	if got := c.GetLevel(100); got != 3 {
		t.Errorf("expected level 3 with stage 4 disabled, got %d", got)
	}
}

func TestGetLevelFallback(t *testing.T) {
	config := DefaultCoverageConfig()
	config.Stages = CoverageStages{} // all stages disabled
	config.FallbackLevel = 2
	c := newTestCalculator(config)

	if got := c.GetLevel(100); got != 2 {
		t.Errorf("expected fallback level 2, got %d", got)
	}

	// Fallback is clamped into the valid range.
	config.FallbackLevel = 9
	c = newTestCalculator(config)
	if got := c.GetLevel(100); got != 4 {
		t.Errorf("expected fallback to clamp to 4, got %d", got)
	}
}

func TestReadinessLabel(t *testing.T) {
	if got := readinessLabel(0); got != "empty" {
		t.Errorf("expected 'empty' for level 0, got %q", got)
	}
	if got := readinessLabel(4); got != "ready" {
		t.Errorf("expected 'ready' for level 4, got %q", got)
	}
	if got := readinessLabel(7); got != "unknown" {
		t.Errorf("expected 'unknown' for out-of-range level, got %q", got)
	}
	if got := readinessLabel(-1); got != "unknown" {
		t.Errorf("expected 'unknown' for negative level, got %q", got)
	}
}
