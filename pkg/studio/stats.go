package studio

import (
	"context"
	"database/sql"
	"fmt"
)

// Stats summarizes the whole store.
type Stats struct {
	Projects     int `json:"projects"`
	Applications int `json:"applications"`
	Pages        int `json:"pages"`
	Functions    int `json:"functions"`
	Terms        int `json:"terms"`
	Documents    int `json:"documents"`
}

// GetStats counts projects, active nodes by type, glossary entries and
// documents holding non-empty content.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	if err := s.stmtCountProjects.QueryRowContext(ctx).Scan(&stats.Projects); err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	if err := s.stmtCountNodesByType.QueryRowContext(ctx, NodeTypeApplication).Scan(&stats.Applications); err != nil {
		return nil, fmt.Errorf("failed to count applications: %w", err)
	}
	if err := s.stmtCountNodesByType.QueryRowContext(ctx, NodeTypePage).Scan(&stats.Pages); err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	if err := s.stmtCountNodesByType.QueryRowContext(ctx, NodeTypeFunction).Scan(&stats.Functions); err != nil {
		return nil, fmt.Errorf("failed to count functions: %w", err)
	}
	if err := s.stmtCountTerms.QueryRowContext(ctx).Scan(&stats.Terms); err != nil {
		return nil, fmt.Errorf("failed to count terms: %w", err)
	}
	if err := s.stmtCountContents.QueryRowContext(ctx).Scan(&stats.Documents); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	return stats, nil
}

// CoverageMetrics holds the per-project counts that feed a coverage report.
type CoverageMetrics struct {
	ProjectID           int64 `json:"project_id"`
	Applications        int   `json:"applications"`
	Pages               int   `json:"pages"`
	Functions           int   `json:"functions"`
	TotalNodes          int   `json:"total_nodes"`
	DescribedNodes      int   `json:"described_nodes"`
	DocumentedFunctions int   `json:"documented_functions"`
	Terms               int   `json:"terms"`
}

// GetCoverageMetrics gathers documentation coverage counts for one project:
// active nodes by type, nodes carrying a description, glossary size, and
// function nodes whose document has non-empty content. Returns
// sql.ErrNoRows for an unknown project.
func (s *Store) GetCoverageMetrics(ctx context.Context, projectID int64) (*CoverageMetrics, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	metrics := &CoverageMetrics{ProjectID: projectID}

	rows, err := s.db.QueryContext(ctx,
		`SELECT node_type, COUNT(*) FROM nodes WHERE project_id = ? AND status = 1 GROUP BY node_type`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to count nodes: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)
	for rows.Next() {
		var nodeType string
		var count int
		if err = rows.Scan(&nodeType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan node count: %w", err)
		}
		switch nodeType {
		case NodeTypeApplication:
			metrics.Applications = count
		case NodeTypePage:
			metrics.Pages = count
		case NodeTypeFunction:
			metrics.Functions = count
		}
		metrics.TotalNodes += count
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM nodes WHERE project_id = ? AND status = 1 AND description <> ''`, projectID,
	).Scan(&metrics.DescribedNodes); err != nil {
		return nil, fmt.Errorf("failed to count described nodes: %w", err)
	}

	if err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM nodes n
		JOIN document_content dc ON dc.document_id = n.document_id
		WHERE n.project_id = ? AND n.node_type = ? AND n.status = 1 AND dc.content <> '{}'`,
		projectID, NodeTypeFunction,
	).Scan(&metrics.DocumentedFunctions); err != nil {
		return nil, fmt.Errorf("failed to count documented functions: %w", err)
	}

	if err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dictionary WHERE project_id = ?`, projectID,
	).Scan(&metrics.Terms); err != nil {
		return nil, fmt.Errorf("failed to count terms: %w", err)
	}

	return metrics, nil
}
