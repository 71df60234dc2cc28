package studio

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// GetDocument returns the document with the given id, or sql.ErrNoRows.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	doc := &Document{}
	err := s.stmtGetDocument.QueryRowContext(ctx, id).Scan(&doc.ID, &doc.FunctionNodeID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocumentByNode returns the document owned by a function node, or
// sql.ErrNoRows.
func (s *Store) GetDocumentByNode(ctx context.Context, nodeID string) (*Document, error) {
	doc := &Document{}
	err := s.stmtGetDocumentByNode.QueryRowContext(ctx, nodeID).Scan(&doc.ID, &doc.FunctionNodeID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetContent returns a document's content object. A document that has never
// been written returns an empty object, not an error.
func (s *Store) GetContent(ctx context.Context, documentID int64) (map[string]any, error) {
	var raw []byte
	err := s.stmtGetContent.QueryRowContext(ctx, documentID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query content: %w", err)
	}

	content := make(map[string]any)
	if err = json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}
	return content, nil
}

// SetContent replaces a document's content object. The document must exist;
// a nil content is stored as an empty object.
func (s *Store) SetContent(ctx context.Context, documentID int64, content map[string]any) error {
	if content == nil {
		content = map[string]any{}
	}
	if _, err := s.GetDocument(ctx, documentID); err != nil {
		return err
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to encode content: %w", err)
	}
	if _, err = s.stmtSetContent.ExecContext(ctx, documentID, string(raw), s.clock().UTC()); err != nil {
		return fmt.Errorf("failed to store content: %w", err)
	}
	return nil
}

// PatchContent applies an RFC 6902 JSON patch to a document's content. The
// stored object is normalized with NormalizeContent before the patch runs,
// so content arrays the editor omits exist as patch targets. The patched
// result must still be a JSON object; it is stored and returned.
func (s *Store) PatchContent(ctx context.Context, documentID int64, patch []byte) (map[string]any, error) {
	if _, err := s.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}

	decoded, err := jsonpatch.DecodePatch(patch)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decode patch: %v", ErrInvalid, err)
	}

	current, err := s.GetContent(ctx, documentID)
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(NormalizeContent(current))
	if err != nil {
		return nil, fmt.Errorf("failed to encode content: %w", err)
	}

	patched, err := decoded.Apply(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: patch does not apply: %v", ErrInvalid, err)
	}

	next := make(map[string]any)
	if err = json.Unmarshal(patched, &next); err != nil {
		return nil, fmt.Errorf("%w: patch result must be a JSON object", ErrInvalid)
	}

	if err = s.SetContent(ctx, documentID, next); err != nil {
		return nil, err
	}
	return next, nil
}

// DeleteContent drops a document's stored content. Deleting content that
// was never written is not an error.
func (s *Store) DeleteContent(ctx context.Context, documentID int64) error {
	if _, err := s.stmtDeleteContent.ExecContext(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

// ListBlocks returns a document's blocks in display order.
func (s *Store) ListBlocks(ctx context.Context, documentID int64) ([]Block, error) {
	rows, err := s.stmtListBlocks.QueryContext(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	blocks := make([]Block, 0)
	for rows.Next() {
		var b Block
		var raw []byte
		if err = rows.Scan(&b.ID, &b.DocumentID, &b.Type, &raw, &b.Position, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		if err = json.Unmarshal(raw, &b.Content); err != nil {
			return nil, fmt.Errorf("failed to decode block content: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// ReplaceBlocks swaps a document's block list for the given one, assigning
// positions from slice order. The swap is transactional.
func (s *Store) ReplaceBlocks(ctx context.Context, documentID int64, blocks []Block) error {
	for i := range blocks {
		if !validBlockType(blocks[i].Type) {
			return fmt.Errorf("%w: unknown block type %q", ErrInvalid, blocks[i].Type)
		}
	}
	if _, err := s.GetDocument(ctx, documentID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin blocks transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.ExecContext(ctx, `DELETE FROM document_blocks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("failed to clear blocks: %w", err)
	}

	insert := tx.StmtContext(ctx, s.stmtInsertBlock)
	now := s.clock().UTC()
	for i, b := range blocks {
		content := b.Content
		if content == nil {
			content = map[string]any{}
		}
		raw, merr := json.Marshal(content)
		if merr != nil {
			return fmt.Errorf("failed to encode block content: %w", merr)
		}
		if _, err = insert.ExecContext(ctx, documentID, b.Type, string(raw), i, now); err != nil {
			return fmt.Errorf("failed to insert block: %w", err)
		}
	}

	return tx.Commit()
}
