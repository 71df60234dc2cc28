package studio

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestStore creates a file-backed SQLite database and a Store for
// testing. It uses t.Cleanup to ensure resources are released.
func setupTestStore(t *testing.T) (*sql.DB, *Store) {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-4000")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(s.Close)

	return db, s
}

// setupTestProject is a convenience helper that also creates a project.
func setupTestProject(t *testing.T) (context.Context, *Store, *Project) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	project := &Project{
		Name:        "billing",
		Description: "billing system docs",
		CreatorID:   "u1",
		CreatorName: "ada",
	}
	if err := s.CreateProject(ctx, project); err != nil {
		t.Fatalf("setup: CreateProject() failed: %v", err)
	}
	return ctx, s, project
}

type testTree struct {
	project  *Project
	app      *Node
	page     *Node
	function *Node
}

// setupTestTree builds a minimal application/page/function tree.
func setupTestTree(t *testing.T) (context.Context, *Store, testTree) {
	ctx, s, project := setupTestProject(t)

	app := &Node{ProjectID: project.ID, Type: NodeTypeApplication, Name: "console", Description: "admin console"}
	if err := s.CreateNode(ctx, app); err != nil {
		t.Fatalf("setup: create application failed: %v", err)
	}
	page := &Node{ProjectID: project.ID, ParentID: app.ID, Type: NodeTypePage, Name: "invoices", Description: "invoice list"}
	if err := s.CreateNode(ctx, page); err != nil {
		t.Fatalf("setup: create page failed: %v", err)
	}
	function := &Node{ProjectID: project.ID, ParentID: page.ID, Type: NodeTypeFunction, Name: "export csv", Description: "download invoices"}
	if err := s.CreateNode(ctx, function); err != nil {
		t.Fatalf("setup: create function failed: %v", err)
	}

	return ctx, s, testTree{project: project, app: app, page: page, function: function}
}

// setupTestStoreBench creates a database for benchmarking.
func setupTestStoreBench(b *testing.B) (*sql.DB, *Store) {
	dbFile := filepath.Join(b.TempDir(), "bench.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=OFF&_cache_size=-16000&_mmap_size=268435456")
	if err != nil {
		b.Fatalf("failed to open database: %v", err)
	}
	b.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		b.Fatalf("failed to set up schema: %v", err)
	}

	s, err := NewStore(db)
	if err != nil {
		b.Fatalf("NewStore() error = %v", err)
	}
	b.Cleanup(s.Close)

	return db, s
}
