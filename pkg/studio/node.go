package studio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type nodeScanner interface {
	Scan(dest ...any) error
}

func scanNode(row nodeScanner) (*Node, error) {
	node := &Node{}
	var parentID sql.NullString
	var documentID sql.NullInt64
	err := row.Scan(
		&node.ID, &node.ProjectID, &parentID, &node.Type, &node.Name, &node.Description,
		&node.Path, &node.Sort, &node.Status, &documentID,
		&node.CreatorID, &node.CreatorName, &node.CreatedAt,
		&node.EditorID, &node.EditorName, &node.EditedAt,
	)
	if err != nil {
		return nil, err
	}
	node.ParentID = parentID.String
	node.DocumentID = documentID.Int64
	return node, nil
}

func getNodeTx(ctx context.Context, tx *sql.Tx, id string) (*Node, error) {
	return scanNode(tx.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id))
}

// parent_allow holds a comma separated list of acceptable parent type codes.
func allowedParent(parentAllow, parentType string) bool {
	for _, code := range strings.Split(parentAllow, ",") {
		if strings.TrimSpace(code) == parentType {
			return true
		}
	}
	return false
}

// CreateNode inserts a node under the parent its type requires: application
// nodes at the root, page nodes under an application, function nodes under
// a page. Function nodes get an empty document created alongside. On
// success the node's ID, path, sort, status and timestamps are filled in.
func (s *Store) CreateNode(ctx context.Context, node *Node) error {
	if err := node.Validate(); err != nil {
		return err
	}
	if node.EditorID == "" && node.EditorName == "" {
		node.EditorID = node.CreatorID
		node.EditorName = node.CreatorName
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin node transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var parentAllow sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT parent_allow FROM node_types WHERE code = ?`, node.Type).Scan(&parentAllow)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: unknown node type %q", ErrInvalid, node.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to look up node type: %w", err)
	}

	var projectExists int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, node.ProjectID).Scan(&projectExists); err != nil {
		return fmt.Errorf("failed to check project: %w", err)
	}
	if projectExists == 0 {
		return fmt.Errorf("%w: project %d does not exist", ErrInvalid, node.ProjectID)
	}

	node.ID = s.idgen()
	if node.ParentID == "" {
		if parentAllow.Valid {
			return fmt.Errorf("%w: %s nodes require a %s parent", ErrInvalid, node.Type, parentAllow.String)
		}
		node.Path = "/" + node.ID
	} else {
		if !parentAllow.Valid {
			return fmt.Errorf("%w: %s nodes cannot have a parent", ErrInvalid, node.Type)
		}
		parent, perr := getNodeTx(ctx, tx, node.ParentID)
		if errors.Is(perr, sql.ErrNoRows) {
			return fmt.Errorf("%w: parent node %s does not exist", ErrInvalid, node.ParentID)
		}
		if perr != nil {
			return fmt.Errorf("failed to load parent node: %w", perr)
		}
		if !allowedParent(parentAllow.String, parent.Type) {
			return fmt.Errorf("%w: %s nodes require a %s parent, got %s", ErrInvalid, node.Type, parentAllow.String, parent.Type)
		}
		if parent.Status != StatusActive {
			return fmt.Errorf("%w: parent node %s is deleted", ErrInvalid, node.ParentID)
		}
		if parent.ProjectID != node.ProjectID {
			return fmt.Errorf("%w: parent node belongs to a different project", ErrInvalid)
		}
		node.Path = parent.Path + "/" + node.ID
	}

	if err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort) + 1, 0) FROM nodes WHERE project_id = ? AND parent_id IS ? AND status = 1`,
		node.ProjectID, nullString(node.ParentID),
	).Scan(&node.Sort); err != nil {
		return fmt.Errorf("failed to compute node sort: %w", err)
	}

	now := s.clock().UTC()
	node.Status = StatusActive
	node.CreatedAt = now
	node.EditedAt = now

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO nodes (id, project_id, parent_id, node_type, name, description, path, sort, status, document_id,
		                   creator_id, creator_name, created_at, editor_id, editor_name, edited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, ?, ?)`,
		node.ID, node.ProjectID, nullString(node.ParentID), node.Type, node.Name, node.Description,
		node.Path, node.Sort, node.Status,
		node.CreatorID, node.CreatorName, node.CreatedAt,
		node.EditorID, node.EditorName, node.EditedAt,
	); err != nil {
		return fmt.Errorf("failed to insert node: %w", err)
	}

	if node.Type == NodeTypeFunction {
		if err = tx.QueryRowContext(ctx,
			`INSERT INTO documents (function_node_id, created_at, updated_at) VALUES (?, ?, ?) RETURNING id`,
			node.ID, now, now,
		).Scan(&node.DocumentID); err != nil {
			return fmt.Errorf("failed to create node document: %w", err)
		}
		if _, err = tx.ExecContext(ctx, `UPDATE nodes SET document_id = ? WHERE id = ?`, node.DocumentID, node.ID); err != nil {
			return fmt.Errorf("failed to link node document: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit node: %w", err)
	}

	s.logger.Info("node created", "node_id", node.ID, "node_type", node.Type, "project_id", node.ProjectID)
	return nil
}

// GetNode returns the node with the given id regardless of status, or
// sql.ErrNoRows when no such node exists.
func (s *Store) GetNode(ctx context.Context, id string) (*Node, error) {
	return scanNode(s.stmtGetNode.QueryRowContext(ctx, id))
}

// ListChildren returns the active children of a node ordered by sort, then
// name.
func (s *Store) ListChildren(ctx context.Context, parentID string) ([]Node, error) {
	rows, err := s.stmtListChildren.QueryContext(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	return rowsToNodes(rows)
}

// ListProjectNodes returns every active node of a project ordered by path,
// which puts parents before their children.
func (s *Store) ListProjectNodes(ctx context.Context, projectID int64) ([]Node, error) {
	rows, err := s.stmtListProjectNodes.QueryContext(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query project nodes: %w", err)
	}
	return rowsToNodes(rows)
}

func rowsToNodes(rows *sql.Rows) ([]Node, error) {
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	nodes := make([]Node, 0)
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, *node)
	}
	return nodes, rows.Err()
}

// UpdateNode writes the node's name, description, sort and editor fields
// and refreshes the edited_at timestamp. Reparenting and deletion have
// their own operations. Returns sql.ErrNoRows when the node does not exist.
func (s *Store) UpdateNode(ctx context.Context, node *Node) error {
	if err := node.Validate(); err != nil {
		return err
	}
	node.EditedAt = s.clock().UTC()

	res, err := s.stmtUpdateNode.ExecContext(ctx,
		node.Name, node.Description, node.Sort,
		node.EditorID, node.EditorName, node.EditedAt,
		node.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MoveNode reparents a node and rewrites the stored paths of its whole
// subtree. The new parent must satisfy the node type's parent constraint,
// belong to the same project, and must not sit inside the moved subtree.
// The node is appended at the end of its new siblings.
func (s *Store) MoveNode(ctx context.Context, nodeID, newParentID string, editor Actor) error {
	if newParentID == "" {
		return fmt.Errorf("%w: move requires a parent node", ErrInvalid)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin move transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	node, err := getNodeTx(ctx, tx, nodeID)
	if err != nil {
		return err
	}
	if node.Status != StatusActive {
		return fmt.Errorf("%w: node %s is deleted", ErrInvalid, nodeID)
	}

	var parentAllow sql.NullString
	if err = tx.QueryRowContext(ctx, `SELECT parent_allow FROM node_types WHERE code = ?`, node.Type).Scan(&parentAllow); err != nil {
		return fmt.Errorf("failed to look up node type: %w", err)
	}
	if !parentAllow.Valid {
		return fmt.Errorf("%w: %s nodes cannot be moved under a parent", ErrInvalid, node.Type)
	}

	parent, err := getNodeTx(ctx, tx, newParentID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: parent node %s does not exist", ErrInvalid, newParentID)
	}
	if err != nil {
		return fmt.Errorf("failed to load parent node: %w", err)
	}
	if !allowedParent(parentAllow.String, parent.Type) {
		return fmt.Errorf("%w: %s nodes require a %s parent, got %s", ErrInvalid, node.Type, parentAllow.String, parent.Type)
	}
	if parent.Status != StatusActive {
		return fmt.Errorf("%w: parent node %s is deleted", ErrInvalid, newParentID)
	}
	if parent.ProjectID != node.ProjectID {
		return fmt.Errorf("%w: parent node belongs to a different project", ErrInvalid)
	}
	if parent.Path == node.Path || strings.HasPrefix(parent.Path, node.Path+"/") {
		return fmt.Errorf("%w: cannot move a node into its own subtree", ErrInvalid)
	}

	var sort int
	if err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort) + 1, 0) FROM nodes WHERE project_id = ? AND parent_id IS ? AND status = 1`,
		node.ProjectID, nullString(newParentID),
	).Scan(&sort); err != nil {
		return fmt.Errorf("failed to compute node sort: %w", err)
	}

	now := s.clock().UTC()
	if _, err = tx.ExecContext(ctx, `
		UPDATE nodes
		SET parent_id = ?, sort = ?, editor_id = ?, editor_name = ?, edited_at = ?
		WHERE id = ?`,
		newParentID, sort, editor.ID, editor.Name, now, nodeID,
	); err != nil {
		return fmt.Errorf("failed to reparent node: %w", err)
	}

	// substr is 1-based, so the remainder of the old prefix starts at len+1.
	oldPath := node.Path
	newPath := parent.Path + "/" + node.ID
	if _, err = tx.ExecContext(ctx, `
		UPDATE nodes
		SET path = ? || substr(path, ?)
		WHERE project_id = ? AND (path = ? OR path LIKE ? || '/%')`,
		newPath, len(oldPath)+1, node.ProjectID, oldPath, oldPath,
	); err != nil {
		return fmt.Errorf("failed to rewrite subtree paths: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit move: %w", err)
	}

	s.logger.Info("node moved", "node_id", nodeID, "new_parent_id", newParentID)
	return nil
}

// DeleteNode soft-deletes a node and every node underneath it. The rows
// stay behind with StatusDeleted until Prune sweeps them out. It returns
// the number of nodes marked, which is zero when the node was already
// deleted.
func (s *Store) DeleteNode(ctx context.Context, nodeID string, editor Actor) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	node, err := getNodeTx(ctx, tx, nodeID)
	if err != nil {
		return 0, err
	}
	if node.Status != StatusActive {
		return 0, nil
	}

	now := s.clock().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE nodes
		SET status = 0, editor_id = ?, editor_name = ?, edited_at = ?
		WHERE project_id = ? AND status = 1 AND (path = ? OR path LIKE ? || '/%')`,
		editor.ID, editor.Name, now, node.ProjectID, node.Path, node.Path,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete subtree: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}

	s.logger.Info("node deleted", "node_id", nodeID, "nodes_affected", affected)
	return affected, nil
}
