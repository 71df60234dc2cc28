package studio

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateTerm inserts a glossary entry and fills in its ID and timestamps.
// Terms are unique per project, a duplicate surfaces as a UNIQUE constraint
// error from the driver.
func (s *Store) CreateTerm(ctx context.Context, term *Term) error {
	if err := term.Validate(); err != nil {
		return err
	}
	if term.EditorID == "" && term.EditorName == "" {
		term.EditorID = term.CreatorID
		term.EditorName = term.CreatorName
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, term.ProjectID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check project: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: project %d does not exist", ErrInvalid, term.ProjectID)
	}

	now := s.clock().UTC()
	term.CreatedAt = now
	term.EditedAt = now

	err := s.stmtInsertTerm.QueryRowContext(ctx,
		term.ProjectID, term.Term, term.Definition,
		term.CreatorID, term.CreatorName, term.CreatedAt,
		term.EditorID, term.EditorName, term.EditedAt,
	).Scan(&term.ID)
	if err != nil {
		return fmt.Errorf("failed to insert term: %w", err)
	}
	return nil
}

// GetTerm returns the glossary entry with the given id, or sql.ErrNoRows.
func (s *Store) GetTerm(ctx context.Context, id int64) (*Term, error) {
	term := &Term{}
	err := s.stmtGetTerm.QueryRowContext(ctx, id).Scan(
		&term.ID, &term.ProjectID, &term.Term, &term.Definition,
		&term.CreatorID, &term.CreatorName, &term.CreatedAt,
		&term.EditorID, &term.EditorName, &term.EditedAt,
	)
	if err != nil {
		return nil, err
	}
	return term, nil
}

// ListTerms returns a project's glossary ordered by term, case-insensitive.
func (s *Store) ListTerms(ctx context.Context, projectID int64) ([]Term, error) {
	rows, err := s.stmtListTerms.QueryContext(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query terms: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	terms := make([]Term, 0)
	for rows.Next() {
		var t Term
		if err = rows.Scan(
			&t.ID, &t.ProjectID, &t.Term, &t.Definition,
			&t.CreatorID, &t.CreatorName, &t.CreatedAt,
			&t.EditorID, &t.EditorName, &t.EditedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// UpdateTerm writes the entry's term, definition and editor fields and
// refreshes the edited_at timestamp. Returns sql.ErrNoRows when the entry
// does not exist.
func (s *Store) UpdateTerm(ctx context.Context, term *Term) error {
	if err := term.Validate(); err != nil {
		return err
	}
	term.EditedAt = s.clock().UTC()

	res, err := s.stmtUpdateTerm.ExecContext(ctx,
		term.Term, term.Definition,
		term.EditorID, term.EditorName, term.EditedAt,
		term.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update term: %w", err)
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

// DeleteTerm removes a glossary entry. Returns sql.ErrNoRows when the entry
// does not exist.
func (s *Store) DeleteTerm(ctx context.Context, id int64) error {
	res, err := s.stmtDeleteTerm.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete term: %w", err)
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
