package studio

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	createProjectsTable = `
	CREATE TABLE IF NOT EXISTS projects
	(
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		name         TEXT      NOT NULL UNIQUE,
		description  TEXT      NOT NULL DEFAULT '',
		creator_id   TEXT      NOT NULL DEFAULT '',
		creator_name TEXT      NOT NULL DEFAULT '',
		created_at   TIMESTAMP NOT NULL,
		editor_id    TEXT      NOT NULL DEFAULT '',
		editor_name  TEXT      NOT NULL DEFAULT '',
		edited_at    TIMESTAMP NOT NULL
	);`

	createNodeTypesTable = `
	CREATE TABLE IF NOT EXISTS node_types
	(
		code         TEXT PRIMARY KEY,
		label        TEXT NOT NULL,
		parent_allow TEXT
	);`

	createNodesTable = `
	CREATE TABLE IF NOT EXISTS nodes
	(
		id           TEXT PRIMARY KEY,
		project_id   INTEGER   NOT NULL REFERENCES projects (id),
		parent_id    TEXT REFERENCES nodes (id),
		node_type    TEXT      NOT NULL REFERENCES node_types (code),
		name         TEXT      NOT NULL,
		description  TEXT      NOT NULL DEFAULT '',
		path         TEXT      NOT NULL,
		sort         INTEGER   NOT NULL DEFAULT 0,
		status       INTEGER   NOT NULL DEFAULT 1,
		document_id  INTEGER REFERENCES documents (id),
		creator_id   TEXT      NOT NULL DEFAULT '',
		creator_name TEXT      NOT NULL DEFAULT '',
		created_at   TIMESTAMP NOT NULL,
		editor_id    TEXT      NOT NULL DEFAULT '',
		editor_name  TEXT      NOT NULL DEFAULT '',
		edited_at    TIMESTAMP NOT NULL
	);`

	createNodesProjectIndex = `CREATE INDEX IF NOT EXISTS idx_nodes_project ON nodes (project_id, status);`
	createNodesParentIndex  = `CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes (parent_id, status);`
	createNodesPathIndex    = `CREATE INDEX IF NOT EXISTS idx_nodes_path ON nodes (project_id, path);`

	createDictionaryTable = `
	CREATE TABLE IF NOT EXISTS dictionary
	(
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id   INTEGER   NOT NULL REFERENCES projects (id),
		term         TEXT      NOT NULL,
		definition   TEXT      NOT NULL,
		creator_id   TEXT      NOT NULL DEFAULT '',
		creator_name TEXT      NOT NULL DEFAULT '',
		created_at   TIMESTAMP NOT NULL,
		editor_id    TEXT      NOT NULL DEFAULT '',
		editor_name  TEXT      NOT NULL DEFAULT '',
		edited_at    TIMESTAMP NOT NULL,
		UNIQUE (project_id, term)
	);`

	createDocumentsTable = `
	CREATE TABLE IF NOT EXISTS documents
	(
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		function_node_id TEXT      NOT NULL UNIQUE REFERENCES nodes (id),
		created_at       TIMESTAMP NOT NULL,
		updated_at       TIMESTAMP NOT NULL
	);`

	createDocumentContentTable = `
	CREATE TABLE IF NOT EXISTS document_content
	(
		document_id INTEGER PRIMARY KEY REFERENCES documents (id),
		content     TEXT      NOT NULL DEFAULT '{}',
		updated_at  TIMESTAMP NOT NULL
	);`

	createDocumentBlocksTable = `
	CREATE TABLE IF NOT EXISTS document_blocks
	(
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id INTEGER   NOT NULL REFERENCES documents (id),
		block_type  TEXT      NOT NULL,
		content     TEXT      NOT NULL DEFAULT '{}',
		position    INTEGER   NOT NULL DEFAULT 0,
		updated_at  TIMESTAMP NOT NULL
	);`

	createBlocksDocumentIndex = `CREATE INDEX IF NOT EXISTS idx_blocks_document ON document_blocks (document_id, position);`

	seedNodeTypes = `
	INSERT OR IGNORE INTO node_types (code, label, parent_allow)
	VALUES ('application', 'Application', NULL),
	       ('page', 'Page', 'application'),
	       ('function', 'Function', 'page');`
)

// SetupSchema creates all tables and indexes used by the studio package and
// seeds the built-in node types. It is safe to call on every startup.
func SetupSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(createProjectsTable); err != nil {
		return fmt.Errorf("failed to create projects table: %w", err)
	}
	if _, err = tx.Exec(createNodeTypesTable); err != nil {
		return fmt.Errorf("failed to create node_types table: %w", err)
	}
	if _, err = tx.Exec(createNodesTable); err != nil {
		return fmt.Errorf("failed to create nodes table: %w", err)
	}
	if _, err = tx.Exec(createNodesProjectIndex); err != nil {
		return fmt.Errorf("failed to create nodes project index: %w", err)
	}
	if _, err = tx.Exec(createNodesParentIndex); err != nil {
		return fmt.Errorf("failed to create nodes parent index: %w", err)
	}
	if _, err = tx.Exec(createNodesPathIndex); err != nil {
		return fmt.Errorf("failed to create nodes path index: %w", err)
	}
	if _, err = tx.Exec(createDictionaryTable); err != nil {
		return fmt.Errorf("failed to create dictionary table: %w", err)
	}
	if _, err = tx.Exec(createDocumentsTable); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	if _, err = tx.Exec(createDocumentContentTable); err != nil {
		return fmt.Errorf("failed to create document_content table: %w", err)
	}
	if _, err = tx.Exec(createDocumentBlocksTable); err != nil {
		return fmt.Errorf("failed to create document_blocks table: %w", err)
	}
	if _, err = tx.Exec(createBlocksDocumentIndex); err != nil {
		return fmt.Errorf("failed to create blocks document index: %w", err)
	}
	if _, err = tx.Exec(seedNodeTypes); err != nil {
		return fmt.Errorf("failed to seed node types: %w", err)
	}

	return tx.Commit()
}

const (
	projectColumns = `id, name, description, creator_id, creator_name, created_at, editor_id, editor_name, edited_at`
	nodeColumns    = `id, project_id, parent_id, node_type, name, description, path, sort, status, document_id, creator_id, creator_name, created_at, editor_id, editor_name, edited_at`
	termColumns    = `id, project_id, term, definition, creator_id, creator_name, created_at, editor_id, editor_name, edited_at`
)

// Store provides access to projects, node trees, glossaries and documents.
// It keeps its frequently used statements prepared; call Close when done
// with the store (the database handle itself stays open).
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	idgen func() string
	clock func() time.Time

	stmtGetProject       *sql.Stmt
	stmtGetProjectByName *sql.Stmt
	stmtListProjects     *sql.Stmt
	stmtInsertProject    *sql.Stmt
	stmtUpdateProject    *sql.Stmt

	stmtGetNode          *sql.Stmt
	stmtListChildren     *sql.Stmt
	stmtListProjectNodes *sql.Stmt
	stmtUpdateNode       *sql.Stmt

	stmtGetTerm    *sql.Stmt
	stmtListTerms  *sql.Stmt
	stmtInsertTerm *sql.Stmt
	stmtUpdateTerm *sql.Stmt
	stmtDeleteTerm *sql.Stmt

	stmtGetDocument       *sql.Stmt
	stmtGetDocumentByNode *sql.Stmt
	stmtGetContent        *sql.Stmt
	stmtSetContent        *sql.Stmt
	stmtDeleteContent     *sql.Stmt
	stmtListBlocks        *sql.Stmt
	stmtInsertBlock       *sql.Stmt

	stmtCountProjects    *sql.Stmt
	stmtCountNodesByType *sql.Stmt
	stmtCountTerms       *sql.Stmt
	stmtCountContents    *sql.Stmt
}

// Option configures a Store during construction.
type Option func(*Store)

// WithIDGenerator overrides the generator used for new node IDs. The
// default produces random UUID strings.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		s.idgen = gen
	}
}

// WithClock overrides the time source used for audit timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// NewStore prepares a Store on top of db. SetupSchema must have run first.
func NewStore(db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		idgen:  uuid.NewString,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.stmtGetProject, err = db.Prepare(`SELECT ` + projectColumns + ` FROM projects WHERE id = ?`); err != nil {
		return nil, fmt.Errorf("failed to prepare get project: %w", err)
	}
	if s.stmtGetProjectByName, err = db.Prepare(`SELECT ` + projectColumns + ` FROM projects WHERE name = ?`); err != nil {
		return nil, fmt.Errorf("failed to prepare get project by name: %w", err)
	}
	if s.stmtListProjects, err = db.Prepare(`SELECT ` + projectColumns + ` FROM projects ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to prepare list projects: %w", err)
	}
	if s.stmtInsertProject, err = db.Prepare(`
		INSERT INTO projects (name, description, creator_id, creator_name, created_at, editor_id, editor_name, edited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`); err != nil {
		return nil, fmt.Errorf("failed to prepare insert project: %w", err)
	}
	if s.stmtUpdateProject, err = db.Prepare(`
		UPDATE projects
		SET name = ?, description = ?, editor_id = ?, editor_name = ?, edited_at = ?
		WHERE id = ?`); err != nil {
		return nil, fmt.Errorf("failed to prepare update project: %w", err)
	}

	if s.stmtGetNode, err = db.Prepare(`SELECT ` + nodeColumns + ` FROM nodes WHERE id = ?`); err != nil {
		return nil, fmt.Errorf("failed to prepare get node: %w", err)
	}
	if s.stmtListChildren, err = db.Prepare(`
		SELECT ` + nodeColumns + ` FROM nodes
		WHERE parent_id = ? AND status = 1
		ORDER BY sort, name`); err != nil {
		return nil, fmt.Errorf("failed to prepare list children: %w", err)
	}
	if s.stmtListProjectNodes, err = db.Prepare(`
		SELECT ` + nodeColumns + ` FROM nodes
		WHERE project_id = ? AND status = 1
		ORDER BY path`); err != nil {
		return nil, fmt.Errorf("failed to prepare list project nodes: %w", err)
	}
	if s.stmtUpdateNode, err = db.Prepare(`
		UPDATE nodes
		SET name = ?, description = ?, sort = ?, editor_id = ?, editor_name = ?, edited_at = ?
		WHERE id = ?`); err != nil {
		return nil, fmt.Errorf("failed to prepare update node: %w", err)
	}

	if s.stmtGetTerm, err = db.Prepare(`SELECT ` + termColumns + ` FROM dictionary WHERE id = ?`); err != nil {
		return nil, fmt.Errorf("failed to prepare get term: %w", err)
	}
	if s.stmtListTerms, err = db.Prepare(`
		SELECT ` + termColumns + ` FROM dictionary
		WHERE project_id = ?
		ORDER BY term COLLATE NOCASE`); err != nil {
		return nil, fmt.Errorf("failed to prepare list terms: %w", err)
	}
	if s.stmtInsertTerm, err = db.Prepare(`
		INSERT INTO dictionary (project_id, term, definition, creator_id, creator_name, created_at, editor_id, editor_name, edited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`); err != nil {
		return nil, fmt.Errorf("failed to prepare insert term: %w", err)
	}
	if s.stmtUpdateTerm, err = db.Prepare(`
		UPDATE dictionary
		SET term = ?, definition = ?, editor_id = ?, editor_name = ?, edited_at = ?
		WHERE id = ?`); err != nil {
		return nil, fmt.Errorf("failed to prepare update term: %w", err)
	}
	if s.stmtDeleteTerm, err = db.Prepare(`DELETE FROM dictionary WHERE id = ?`); err != nil {
		return nil, fmt.Errorf("failed to prepare delete term: %w", err)
	}

	if s.stmtGetDocument, err = db.Prepare(`SELECT id, function_node_id, created_at, updated_at FROM documents WHERE id = ?`); err != nil {
		return nil, fmt.Errorf("failed to prepare get document: %w", err)
	}
	if s.stmtGetDocumentByNode, err = db.Prepare(`SELECT id, function_node_id, created_at, updated_at FROM documents WHERE function_node_id = ?`); err != nil {
		return nil, fmt.Errorf("failed to prepare get document by node: %w", err)
	}
	if s.stmtGetContent, err = db.Prepare(`SELECT content FROM document_content WHERE document_id = ?`); err != nil {
		return nil, fmt.Errorf("failed to prepare get content: %w", err)
	}
	if s.stmtSetContent, err = db.Prepare(`
		INSERT INTO document_content (document_id, content, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`); err != nil {
		return nil, fmt.Errorf("failed to prepare set content: %w", err)
	}
	if s.stmtDeleteContent, err = db.Prepare(`DELETE FROM document_content WHERE document_id = ?`); err != nil {
		return nil, fmt.Errorf("failed to prepare delete content: %w", err)
	}
	if s.stmtListBlocks, err = db.Prepare(`
		SELECT id, document_id, block_type, content, position, updated_at FROM document_blocks
		WHERE document_id = ?
		ORDER BY position, id`); err != nil {
		return nil, fmt.Errorf("failed to prepare list blocks: %w", err)
	}
	if s.stmtInsertBlock, err = db.Prepare(`
		INSERT INTO document_blocks (document_id, block_type, content, position, updated_at)
		VALUES (?, ?, ?, ?, ?)`); err != nil {
		return nil, fmt.Errorf("failed to prepare insert block: %w", err)
	}

	if s.stmtCountProjects, err = db.Prepare(`SELECT COUNT(*) FROM projects`); err != nil {
		return nil, fmt.Errorf("failed to prepare count projects: %w", err)
	}
	if s.stmtCountNodesByType, err = db.Prepare(`SELECT COUNT(*) FROM nodes WHERE node_type = ? AND status = 1`); err != nil {
		return nil, fmt.Errorf("failed to prepare count nodes: %w", err)
	}
	if s.stmtCountTerms, err = db.Prepare(`SELECT COUNT(*) FROM dictionary`); err != nil {
		return nil, fmt.Errorf("failed to prepare count terms: %w", err)
	}
	if s.stmtCountContents, err = db.Prepare(`SELECT COUNT(*) FROM document_content WHERE content <> '{}'`); err != nil {
		return nil, fmt.Errorf("failed to prepare count contents: %w", err)
	}

	return s, nil
}

// SetLogger sets the logger for the Store. By default, all logs are
// discarded. Providing a `log/slog.Logger` enables logging for mutations,
// imports and prunes.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Close releases the store's prepared statements. The database handle
// itself stays open; the caller owns it.
func (s *Store) Close() {
	_ = s.stmtGetProject.Close()
	_ = s.stmtGetProjectByName.Close()
	_ = s.stmtListProjects.Close()
	_ = s.stmtInsertProject.Close()
	_ = s.stmtUpdateProject.Close()
	_ = s.stmtGetNode.Close()
	_ = s.stmtListChildren.Close()
	_ = s.stmtListProjectNodes.Close()
	_ = s.stmtUpdateNode.Close()
	_ = s.stmtGetTerm.Close()
	_ = s.stmtListTerms.Close()
	_ = s.stmtInsertTerm.Close()
	_ = s.stmtUpdateTerm.Close()
	_ = s.stmtDeleteTerm.Close()
	_ = s.stmtGetDocument.Close()
	_ = s.stmtGetDocumentByNode.Close()
	_ = s.stmtGetContent.Close()
	_ = s.stmtSetContent.Close()
	_ = s.stmtDeleteContent.Close()
	_ = s.stmtListBlocks.Close()
	_ = s.stmtInsertBlock.Close()
	_ = s.stmtCountProjects.Close()
	_ = s.stmtCountNodesByType.Close()
	_ = s.stmtCountTerms.Close()
	_ = s.stmtCountContents.Close()
}

// nullString maps an empty string to NULL for nullable text columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullInt64 maps a zero id to NULL for nullable reference columns.
func nullInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
