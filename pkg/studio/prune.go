package studio

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// pruneBatchSize bounds the IN clause of prune deletes to keep statements
// well under SQLite's bound parameter limit.
const pruneBatchSize = 500

// PruneResult reports what a prune removed.
type PruneResult struct {
	Nodes     int64 `json:"nodes"`
	Documents int64 `json:"documents"`
	Contents  int64 `json:"contents"`
	Blocks    int64 `json:"blocks"`
}

// Prune permanently removes a project's soft-deleted nodes, then sweeps
// documents, document content and blocks left without an owner. The sweep
// runs in one transaction. Returns sql.ErrNoRows for an unknown project.
func (s *Store) Prune(ctx context.Context, projectID int64) (*PruneResult, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin prune transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	result := &PruneResult{}

	nodeRows, err := tx.QueryContext(ctx, `SELECT id FROM nodes WHERE project_id = ? AND status = 0`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to find deleted nodes: %w", err)
	}
	nodeIDs, err := collectIDs[string](nodeRows)
	if err != nil {
		return nil, err
	}
	if result.Nodes, err = batchDelete(ctx, tx, "nodes", "id", nodeIDs); err != nil {
		return nil, err
	}

	docRows, err := tx.QueryContext(ctx, `
		SELECT d.id FROM documents d
		LEFT JOIN nodes n ON n.id = d.function_node_id
		WHERE n.id IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphaned documents: %w", err)
	}
	docIDs, err := collectIDs[int64](docRows)
	if err != nil {
		return nil, err
	}
	if result.Documents, err = batchDelete(ctx, tx, "documents", "id", docIDs); err != nil {
		return nil, err
	}

	contentRows, err := tx.QueryContext(ctx, `
		SELECT dc.document_id FROM document_content dc
		LEFT JOIN documents d ON d.id = dc.document_id
		WHERE d.id IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphaned content: %w", err)
	}
	contentIDs, err := collectIDs[int64](contentRows)
	if err != nil {
		return nil, err
	}
	if result.Contents, err = batchDelete(ctx, tx, "document_content", "document_id", contentIDs); err != nil {
		return nil, err
	}

	blockRows, err := tx.QueryContext(ctx, `
		SELECT db.id FROM document_blocks db
		LEFT JOIN documents d ON d.id = db.document_id
		WHERE d.id IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphaned blocks: %w", err)
	}
	blockIDs, err := collectIDs[int64](blockRows)
	if err != nil {
		return nil, err
	}
	if result.Blocks, err = batchDelete(ctx, tx, "document_blocks", "id", blockIDs); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit prune: %w", err)
	}

	s.logger.Info("project pruned", "project_id", projectID,
		"nodes", result.Nodes, "documents", result.Documents,
		"contents", result.Contents, "blocks", result.Blocks)
	return result, nil
}

func collectIDs[T any](rows *sql.Rows) ([]T, error) {
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	ids := make([]T, 0)
	for rows.Next() {
		var id T
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func sliceToInterface[T any](s []T) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// batchDelete removes rows by id in fixed-size batches and returns the
// total number of rows deleted. table and column are trusted constants.
func batchDelete[T any](ctx context.Context, tx *sql.Tx, table, column string, ids []T) (int64, error) {
	var total int64
	for i := 0; i < len(ids); i += pruneBatchSize {
		end := min(i+pruneBatchSize, len(ids))
		batch := ids[i:end]

		placeholders := strings.Repeat("?,", len(batch))
		placeholders = placeholders[:len(placeholders)-1]
		query := fmt.Sprintf(`DELETE FROM %s WHERE %s IN (%s)`, table, column, placeholders)

		res, err := tx.ExecContext(ctx, query, sliceToInterface(batch)...)
		if err != nil {
			return total, fmt.Errorf("failed to delete from %s: %w", table, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += affected
	}
	return total, nil
}
