package studio

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateProject inserts a new project and fills in its ID and timestamps.
// The editor defaults to the creator. Project names are unique, a clash
// surfaces as a UNIQUE constraint error from the driver.
func (s *Store) CreateProject(ctx context.Context, project *Project) error {
	if err := project.Validate(); err != nil {
		return err
	}
	if project.EditorID == "" && project.EditorName == "" {
		project.EditorID = project.CreatorID
		project.EditorName = project.CreatorName
	}
	now := s.clock().UTC()
	project.CreatedAt = now
	project.EditedAt = now

	err := s.stmtInsertProject.QueryRowContext(ctx,
		project.Name, project.Description,
		project.CreatorID, project.CreatorName, project.CreatedAt,
		project.EditorID, project.EditorName, project.EditedAt,
	).Scan(&project.ID)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}

	s.logger.Info("project created", "project_id", project.ID, "name", project.Name)
	return nil
}

// GetProject returns the project with the given id, or sql.ErrNoRows.
func (s *Store) GetProject(ctx context.Context, id int64) (*Project, error) {
	project := &Project{}
	err := s.stmtGetProject.QueryRowContext(ctx, id).Scan(
		&project.ID, &project.Name, &project.Description,
		&project.CreatorID, &project.CreatorName, &project.CreatedAt,
		&project.EditorID, &project.EditorName, &project.EditedAt,
	)
	if err != nil {
		return nil, err
	}
	return project, nil
}

// GetProjectByName returns the project with the given name, or sql.ErrNoRows.
func (s *Store) GetProjectByName(ctx context.Context, name string) (*Project, error) {
	project := &Project{}
	err := s.stmtGetProjectByName.QueryRowContext(ctx, name).Scan(
		&project.ID, &project.Name, &project.Description,
		&project.CreatorID, &project.CreatorName, &project.CreatedAt,
		&project.EditorID, &project.EditorName, &project.EditedAt,
	)
	if err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjects returns all projects ordered by name.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.stmtListProjects.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	projects := make([]Project, 0)
	for rows.Next() {
		var p Project
		if err = rows.Scan(
			&p.ID, &p.Name, &p.Description,
			&p.CreatorID, &p.CreatorName, &p.CreatedAt,
			&p.EditorID, &p.EditorName, &p.EditedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject writes the project's name, description and editor fields
// and refreshes the edited_at timestamp. Returns sql.ErrNoRows when the
// project does not exist.
func (s *Store) UpdateProject(ctx context.Context, project *Project) error {
	if err := project.Validate(); err != nil {
		return err
	}
	project.EditedAt = s.clock().UTC()

	res, err := s.stmtUpdateProject.ExecContext(ctx,
		project.Name, project.Description,
		project.EditorID, project.EditorName, project.EditedAt,
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
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

// DeleteProject removes a project and everything it owns: nodes, glossary
// entries, documents, document content and blocks. The delete runs in one
// transaction, a failure leaves the project untouched.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var exists int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check project: %w", err)
	}
	if exists == 0 {
		return sql.ErrNoRows
	}

	const projectDocuments = `SELECT d.id FROM documents d JOIN nodes n ON n.id = d.function_node_id WHERE n.project_id = ?`
	if _, err = tx.ExecContext(ctx, `DELETE FROM document_blocks WHERE document_id IN (`+projectDocuments+`)`, id); err != nil {
		return fmt.Errorf("failed to delete project blocks: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM document_content WHERE document_id IN (`+projectDocuments+`)`, id); err != nil {
		return fmt.Errorf("failed to delete project content: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE function_node_id IN (SELECT id FROM nodes WHERE project_id = ?)`, id); err != nil {
		return fmt.Errorf("failed to delete project documents: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM nodes WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project nodes: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM dictionary WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project dictionary: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project delete: %w", err)
	}

	s.logger.Info("project deleted", "project_id", id)
	return nil
}
