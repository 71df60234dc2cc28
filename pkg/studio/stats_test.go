package studio

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func TestGetStats(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}
	if stats.Projects != 1 || stats.Applications != 1 || stats.Pages != 1 || stats.Functions != 1 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.Terms != 0 || stats.Documents != 0 {
		t.Errorf("expected empty glossary and documents: %+v", stats)
	}

	term := &Term{ProjectID: tree.project.ID, Term: "sku", Definition: "unit"}
	if err = s.CreateTerm(ctx, term); err != nil {
		t.Fatalf("CreateTerm() failed: %v", err)
	}
	if err = s.SetContent(ctx, tree.function.DocumentID, map[string]any{"type": "doc"}); err != nil {
		t.Fatalf("SetContent() failed: %v", err)
	}

	stats, err = s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}
	if stats.Terms != 1 {
		t.Errorf("terms = %d, want 1", stats.Terms)
	}
	if stats.Documents != 1 {
		t.Errorf("documents = %d, want 1", stats.Documents)
	}

	// Writing an empty object back does not count as documentation.
	if err = s.SetContent(ctx, tree.function.DocumentID, map[string]any{}); err != nil {
		t.Fatalf("SetContent() failed: %v", err)
	}
	stats, err = s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}
	if stats.Documents != 0 {
		t.Errorf("documents = %d after blanking content, want 0", stats.Documents)
	}

	// Soft-deleted nodes drop out of the node counts.
	if _, err = s.DeleteNode(ctx, tree.app.ID, Actor{}); err != nil {
		t.Fatalf("DeleteNode() failed: %v", err)
	}
	stats, err = s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}
	if stats.Applications != 0 || stats.Pages != 0 || stats.Functions != 0 {
		t.Errorf("deleted nodes still counted: %+v", stats)
	}
}

func TestGetCoverageMetrics(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	metrics, err := s.GetCoverageMetrics(ctx, tree.project.ID)
	if err != nil {
		t.Fatalf("GetCoverageMetrics() failed: %v", err)
	}
	if metrics.Applications != 1 || metrics.Pages != 1 || metrics.Functions != 1 {
		t.Errorf("unexpected type counts: %+v", metrics)
	}
	if metrics.TotalNodes != 3 {
		t.Errorf("total nodes = %d, want 3", metrics.TotalNodes)
	}
	// The tree helper gives every node a description.
	if metrics.DescribedNodes != 3 {
		t.Errorf("described nodes = %d, want 3", metrics.DescribedNodes)
	}
	if metrics.DocumentedFunctions != 0 {
		t.Errorf("documented functions = %d, want 0", metrics.DocumentedFunctions)
	}

	bare := &Node{ProjectID: tree.project.ID, ParentID: tree.page.ID, Type: NodeTypeFunction, Name: "undocumented"}
	if err = s.CreateNode(ctx, bare); err != nil {
		t.Fatalf("CreateNode() failed: %v", err)
	}
	if err = s.SetContent(ctx, tree.function.DocumentID, map[string]any{"type": "doc"}); err != nil {
		t.Fatalf("SetContent() failed: %v", err)
	}
	term := &Term{ProjectID: tree.project.ID, Term: "sku", Definition: "unit"}
	if err = s.CreateTerm(ctx, term); err != nil {
		t.Fatalf("CreateTerm() failed: %v", err)
	}

	metrics, err = s.GetCoverageMetrics(ctx, tree.project.ID)
	if err != nil {
		t.Fatalf("GetCoverageMetrics() failed: %v", err)
	}
	if metrics.TotalNodes != 4 {
		t.Errorf("total nodes = %d, want 4", metrics.TotalNodes)
	}
	if metrics.DescribedNodes != 3 {
		t.Errorf("described nodes = %d, want 3 (new node has no description)", metrics.DescribedNodes)
	}
	if metrics.Functions != 2 {
		t.Errorf("functions = %d, want 2", metrics.Functions)
	}
	if metrics.DocumentedFunctions != 1 {
		t.Errorf("documented functions = %d, want 1", metrics.DocumentedFunctions)
	}
	if metrics.Terms != 1 {
		t.Errorf("terms = %d, want 1", metrics.Terms)
	}
}

func TestGetCoverageMetricsMissingProject(t *testing.T) {
	_, s := setupTestStore(t)

	_, err := s.GetCoverageMetrics(context.Background(), 404)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}
