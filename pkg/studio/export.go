package studio

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// exportVersion marks the export file layout.
const exportVersion = 1

// ProjectExport is the file layout produced by ExportProject.
type ProjectExport struct {
	Version     int                        `json:"version"`
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Terms       []ExportTerm               `json:"terms"`
	Nodes       []ExportNode               `json:"nodes"`
	Contents    map[string]json.RawMessage `json:"contents"`
}

// ExportTerm is one glossary entry in an export file.
type ExportTerm struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// ExportNode is one tree node in an export file. Parents always appear
// before their children. IDs are only meaningful within the file, import
// assigns fresh ones.
type ExportNode struct {
	ID          string `json:"id"`
	ParentID    string `json:"parent_id,omitempty"`
	Type        string `json:"node_type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Sort        int    `json:"sort"`
}

// ExportProject writes a project's glossary, active node tree and document
// contents to w as indented JSON. Soft-deleted nodes are not exported.
func (s *Store) ExportProject(ctx context.Context, projectID int64, w io.Writer) error {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return err
	}

	terms, err := s.ListTerms(ctx, projectID)
	if err != nil {
		return err
	}
	nodes, err := s.ListProjectNodes(ctx, projectID)
	if err != nil {
		return err
	}

	export := ProjectExport{
		Version:     exportVersion,
		Name:        project.Name,
		Description: project.Description,
		Terms:       make([]ExportTerm, 0, len(terms)),
		Nodes:       make([]ExportNode, 0, len(nodes)),
		Contents:    make(map[string]json.RawMessage),
	}
	for _, t := range terms {
		export.Terms = append(export.Terms, ExportTerm{Term: t.Term, Definition: t.Definition})
	}
	for _, n := range nodes {
		export.Nodes = append(export.Nodes, ExportNode{
			ID:          n.ID,
			ParentID:    n.ParentID,
			Type:        n.Type,
			Name:        n.Name,
			Description: n.Description,
			Sort:        n.Sort,
		})
		if n.DocumentID == 0 {
			continue
		}
		content, cerr := s.GetContent(ctx, n.DocumentID)
		if cerr != nil {
			return cerr
		}
		if len(content) == 0 {
			continue
		}
		raw, merr := json.Marshal(content)
		if merr != nil {
			return fmt.Errorf("failed to encode content for node %s: %w", n.ID, merr)
		}
		export.Contents[n.ID] = raw
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err = encoder.Encode(export); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}

	s.logger.Info("project exported", "project_id", projectID, "nodes", len(export.Nodes), "terms", len(export.Terms))
	return nil
}

// ImportProject reads an export file and loads it under the project named
// in the file, creating the project when it does not exist yet. Imported
// nodes get fresh IDs. Glossary entries merge by term, with the imported
// definition winning; node trees are appended. The whole import runs in one
// transaction and returns the project id.
func (s *Store) ImportProject(ctx context.Context, r io.Reader, actor Actor) (int64, error) {
	var export ProjectExport
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return 0, fmt.Errorf("%w: cannot decode export: %v", ErrInvalid, err)
	}
	if export.Version != exportVersion {
		return 0, fmt.Errorf("%w: unsupported export version %d", ErrInvalid, export.Version)
	}
	if err := (&Project{Name: export.Name, Description: export.Description}).Validate(); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	now := s.clock().UTC()

	var projectID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM projects WHERE name = ?`, export.Name).Scan(&projectID)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO projects (name, description, creator_id, creator_name, created_at, editor_id, editor_name, edited_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`,
			export.Name, export.Description, actor.ID, actor.Name, now, actor.ID, actor.Name, now,
		).Scan(&projectID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve import project: %w", err)
	}

	for _, t := range export.Terms {
		if t.Term == "" {
			return 0, fmt.Errorf("%w: export contains an empty term", ErrInvalid)
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO dictionary (project_id, term, definition, creator_id, creator_name, created_at, editor_id, editor_name, edited_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(project_id, term) DO UPDATE SET definition   = excluded.definition,
			                                            editor_id   = excluded.editor_id,
			                                            editor_name = excluded.editor_name,
			                                            edited_at   = excluded.edited_at`,
			projectID, t.Term, t.Definition, actor.ID, actor.Name, now, actor.ID, actor.Name, now,
		); err != nil {
			return 0, fmt.Errorf("failed to import term %q: %w", t.Term, err)
		}
	}

	parentAllowByType := make(map[string]sql.NullString)
	typeRows, err := tx.QueryContext(ctx, `SELECT code, parent_allow FROM node_types`)
	if err != nil {
		return 0, fmt.Errorf("failed to load node types: %w", err)
	}
	for typeRows.Next() {
		var code string
		var allow sql.NullString
		if err = typeRows.Scan(&code, &allow); err != nil {
			_ = typeRows.Close()
			return 0, fmt.Errorf("failed to scan node type: %w", err)
		}
		parentAllowByType[code] = allow
	}
	if err = typeRows.Err(); err != nil {
		_ = typeRows.Close()
		return 0, err
	}
	_ = typeRows.Close()

	// Old export IDs never enter the database; every node gets a fresh one
	// and children resolve their parent through this map.
	idMap := make(map[string]string, len(export.Nodes))
	pathByOld := make(map[string]string, len(export.Nodes))
	typeByOld := make(map[string]string, len(export.Nodes))

	for _, n := range export.Nodes {
		if n.Name == "" {
			return 0, fmt.Errorf("%w: export contains an unnamed node", ErrInvalid)
		}
		allow, ok := parentAllowByType[n.Type]
		if !ok {
			return 0, fmt.Errorf("%w: unknown node type %q in export", ErrInvalid, n.Type)
		}

		newID := s.idgen()
		var path string
		if n.ParentID == "" {
			if allow.Valid {
				return 0, fmt.Errorf("%w: %s node %q has no parent in export", ErrInvalid, n.Type, n.Name)
			}
			path = "/" + newID
		} else {
			if _, mapped := idMap[n.ParentID]; !mapped {
				return 0, fmt.Errorf("%w: node %q references parent %s before it is defined", ErrInvalid, n.Name, n.ParentID)
			}
			if !allow.Valid || !allowedParent(allow.String, typeByOld[n.ParentID]) {
				return 0, fmt.Errorf("%w: %s node %q cannot sit under a %s node", ErrInvalid, n.Type, n.Name, typeByOld[n.ParentID])
			}
			path = pathByOld[n.ParentID] + "/" + newID
		}
		idMap[n.ID] = newID
		pathByOld[n.ID] = path
		typeByOld[n.ID] = n.Type

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO nodes (id, project_id, parent_id, node_type, name, description, path, sort, status, document_id,
			                   creator_id, creator_name, created_at, editor_id, editor_name, edited_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, NULL, ?, ?, ?, ?, ?, ?)`,
			newID, projectID, nullString(idMap[n.ParentID]), n.Type, n.Name, n.Description, path, n.Sort,
			actor.ID, actor.Name, now, actor.ID, actor.Name, now,
		); err != nil {
			return 0, fmt.Errorf("failed to import node %q: %w", n.Name, err)
		}

		if n.Type != NodeTypeFunction {
			continue
		}
		var documentID int64
		if err = tx.QueryRowContext(ctx,
			`INSERT INTO documents (function_node_id, created_at, updated_at) VALUES (?, ?, ?) RETURNING id`,
			newID, now, now,
		).Scan(&documentID); err != nil {
			return 0, fmt.Errorf("failed to create document for node %q: %w", n.Name, err)
		}
		if _, err = tx.ExecContext(ctx, `UPDATE nodes SET document_id = ? WHERE id = ?`, documentID, newID); err != nil {
			return 0, fmt.Errorf("failed to link document for node %q: %w", n.Name, err)
		}

		raw, hasContent := export.Contents[n.ID]
		if !hasContent {
			continue
		}
		content := make(map[string]any)
		if err = json.Unmarshal(raw, &content); err != nil {
			return 0, fmt.Errorf("%w: content for node %q is not a JSON object", ErrInvalid, n.Name)
		}
		if len(content) == 0 {
			continue
		}
		stored, merr := json.Marshal(content)
		if merr != nil {
			return 0, fmt.Errorf("failed to encode content for node %q: %w", n.Name, merr)
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO document_content (document_id, content, updated_at) VALUES (?, ?, ?)`,
			documentID, string(stored), now,
		); err != nil {
			return 0, fmt.Errorf("failed to import content for node %q: %w", n.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}

	s.logger.Info("project imported", "project_id", projectID, "nodes", len(export.Nodes), "terms", len(export.Terms))
	return projectID, nil
}
