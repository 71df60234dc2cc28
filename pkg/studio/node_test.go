package studio

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
)

func TestCreateNodeTree(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	if tree.app.Path != "/"+tree.app.ID {
		t.Errorf("application path = %q, want %q", tree.app.Path, "/"+tree.app.ID)
	}
	wantPagePath := tree.app.Path + "/" + tree.page.ID
	if tree.page.Path != wantPagePath {
		t.Errorf("page path = %q, want %q", tree.page.Path, wantPagePath)
	}
	wantFunctionPath := tree.page.Path + "/" + tree.function.ID
	if tree.function.Path != wantFunctionPath {
		t.Errorf("function path = %q, want %q", tree.function.Path, wantFunctionPath)
	}

	if tree.function.DocumentID == 0 {
		t.Fatal("expected function node to receive a document")
	}
	doc, err := s.GetDocumentByNode(ctx, tree.function.ID)
	if err != nil {
		t.Fatalf("GetDocumentByNode() failed: %v", err)
	}
	if doc.ID != tree.function.DocumentID {
		t.Errorf("document id = %d, want %d", doc.ID, tree.function.DocumentID)
	}

	if tree.app.DocumentID != 0 || tree.page.DocumentID != 0 {
		t.Error("only function nodes should carry documents")
	}
}

func TestCreateNodeParentConstraints(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	cases := []struct {
		name string
		node Node
	}{
		{"application with parent", Node{ProjectID: tree.project.ID, ParentID: tree.app.ID, Type: NodeTypeApplication, Name: "nested app"}},
		{"page without parent", Node{ProjectID: tree.project.ID, Type: NodeTypePage, Name: "orphan page"}},
		{"page under page", Node{ProjectID: tree.project.ID, ParentID: tree.page.ID, Type: NodeTypePage, Name: "nested page"}},
		{"function under application", Node{ProjectID: tree.project.ID, ParentID: tree.app.ID, Type: NodeTypeFunction, Name: "misplaced"}},
		{"function without parent", Node{ProjectID: tree.project.ID, Type: NodeTypeFunction, Name: "orphan"}},
		{"unknown type", Node{ProjectID: tree.project.ID, Type: "widget", Name: "what"}},
		{"missing parent", Node{ProjectID: tree.project.ID, ParentID: "nope", Type: NodeTypePage, Name: "lost"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.CreateNode(ctx, &tc.node)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestCreateNodeCrossProject(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	other := &Project{Name: "other"}
	if err := s.CreateProject(ctx, other); err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}

	page := &Node{ProjectID: other.ID, ParentID: tree.app.ID, Type: NodeTypePage, Name: "stray"}
	if err := s.CreateNode(ctx, page); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for cross-project parent, got %v", err)
	}
}

func TestCreateNodeSortSequence(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	second := &Node{ProjectID: tree.project.ID, ParentID: tree.app.ID, Type: NodeTypePage, Name: "reports"}
	if err := s.CreateNode(ctx, second); err != nil {
		t.Fatalf("CreateNode() failed: %v", err)
	}
	third := &Node{ProjectID: tree.project.ID, ParentID: tree.app.ID, Type: NodeTypePage, Name: "settings"}
	if err := s.CreateNode(ctx, third); err != nil {
		t.Fatalf("CreateNode() failed: %v", err)
	}

	if tree.page.Sort != 0 || second.Sort != 1 || third.Sort != 2 {
		t.Errorf("expected sorts 0,1,2 got %d,%d,%d", tree.page.Sort, second.Sort, third.Sort)
	}

	children, err := s.ListChildren(ctx, tree.app.ID)
	if err != nil {
		t.Fatalf("ListChildren() failed: %v", err)
	}
	if len(children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(children))
	}
	for i, name := range []string{"invoices", "reports", "settings"} {
		if children[i].Name != name {
			t.Errorf("children[%d] = %q, want %q", i, children[i].Name, name)
		}
	}
}

func TestUpdateNode(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	tree.page.Name = "invoices v2"
	tree.page.Description = "the new list"
	tree.page.EditorID = "u2"
	tree.page.EditorName = "grace"
	if err := s.UpdateNode(ctx, tree.page); err != nil {
		t.Fatalf("UpdateNode() failed: %v", err)
	}

	got, err := s.GetNode(ctx, tree.page.ID)
	if err != nil {
		t.Fatalf("GetNode() failed: %v", err)
	}
	if got.Name != "invoices v2" || got.Description != "the new list" {
		t.Errorf("node not updated: %+v", got)
	}
	if got.EditorName != "grace" {
		t.Errorf("editor not updated: %q", got.EditorName)
	}

	err = s.UpdateNode(ctx, &Node{ID: "missing", ProjectID: tree.project.ID, Name: "x"})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows for missing node, got %v", err)
	}
}

func TestMoveNodeRewritesSubtreePaths(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	target := &Node{ProjectID: tree.project.ID, ParentID: tree.app.ID, Type: NodeTypePage, Name: "reports"}
	if err := s.CreateNode(ctx, target); err != nil {
		t.Fatalf("CreateNode() failed: %v", err)
	}

	if err := s.MoveNode(ctx, tree.function.ID, target.ID, Actor{ID: "u2", Name: "grace"}); err != nil {
		t.Fatalf("MoveNode() failed: %v", err)
	}

	moved, err := s.GetNode(ctx, tree.function.ID)
	if err != nil {
		t.Fatalf("GetNode() failed: %v", err)
	}
	if moved.ParentID != target.ID {
		t.Errorf("parent = %q, want %q", moved.ParentID, target.ID)
	}
	wantPath := target.Path + "/" + tree.function.ID
	if moved.Path != wantPath {
		t.Errorf("path = %q, want %q", moved.Path, wantPath)
	}
	if moved.EditorName != "grace" {
		t.Errorf("editor = %q, want grace", moved.EditorName)
	}

	oldChildren, err := s.ListChildren(ctx, tree.page.ID)
	if err != nil {
		t.Fatalf("ListChildren() failed: %v", err)
	}
	if len(oldChildren) != 0 {
		t.Errorf("expected old parent to have no children, got %d", len(oldChildren))
	}
}

func TestMoveNodeWholeSubtree(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	// Second application to move the page under.
	otherApp := &Node{ProjectID: tree.project.ID, Type: NodeTypeApplication, Name: "portal"}
	if err := s.CreateNode(ctx, otherApp); err != nil {
		t.Fatalf("CreateNode() failed: %v", err)
	}

	if err := s.MoveNode(ctx, tree.page.ID, otherApp.ID, Actor{}); err != nil {
		t.Fatalf("MoveNode() failed: %v", err)
	}

	movedPage, err := s.GetNode(ctx, tree.page.ID)
	if err != nil {
		t.Fatalf("GetNode() failed: %v", err)
	}
	movedFunction, err := s.GetNode(ctx, tree.function.ID)
	if err != nil {
		t.Fatalf("GetNode() failed: %v", err)
	}

	wantPagePath := otherApp.Path + "/" + tree.page.ID
	if movedPage.Path != wantPagePath {
		t.Errorf("page path = %q, want %q", movedPage.Path, wantPagePath)
	}
	wantFunctionPath := wantPagePath + "/" + tree.function.ID
	if movedFunction.Path != wantFunctionPath {
		t.Errorf("function path = %q, want %q", movedFunction.Path, wantFunctionPath)
	}
	// The function keeps its parent, only its path prefix changes.
	if movedFunction.ParentID != tree.page.ID {
		t.Errorf("function parent = %q, want %q", movedFunction.ParentID, tree.page.ID)
	}
}

func TestMoveNodeRejectsOwnSubtree(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	err := s.MoveNode(ctx, tree.app.ID, tree.page.ID, Actor{})
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for move into own subtree, got %v", err)
	}

	err = s.MoveNode(ctx, tree.page.ID, tree.function.ID, Actor{})
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for move under wrong parent type, got %v", err)
	}
}

func TestDeleteNodeSoftDeletesSubtree(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	affected, err := s.DeleteNode(ctx, tree.app.ID, Actor{ID: "u2", Name: "grace"})
	if err != nil {
		t.Fatalf("DeleteNode() failed: %v", err)
	}
	if affected != 3 {
		t.Errorf("expected 3 nodes deleted, got %d", affected)
	}

	// The rows stay behind, flagged deleted.
	for _, id := range []string{tree.app.ID, tree.page.ID, tree.function.ID} {
		node, gerr := s.GetNode(ctx, id)
		if gerr != nil {
			t.Fatalf("GetNode(%s) failed: %v", id, gerr)
		}
		if node.Status != StatusDeleted {
			t.Errorf("node %s status = %d, want %d", id, node.Status, StatusDeleted)
		}
	}

	// Listings no longer see them.
	nodes, err := s.ListProjectNodes(ctx, tree.project.ID)
	if err != nil {
		t.Fatalf("ListProjectNodes() failed: %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("expected no active nodes, got %d", len(nodes))
	}

	// Deleting again is a no-op.
	affected, err = s.DeleteNode(ctx, tree.app.ID, Actor{})
	if err != nil {
		t.Fatalf("second DeleteNode() failed: %v", err)
	}
	if affected != 0 {
		t.Errorf("expected 0 nodes on repeat delete, got %d", affected)
	}
}

func TestDeleteNodeLeavesSiblings(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	sibling := &Node{ProjectID: tree.project.ID, ParentID: tree.app.ID, Type: NodeTypePage, Name: "reports"}
	if err := s.CreateNode(ctx, sibling); err != nil {
		t.Fatalf("CreateNode() failed: %v", err)
	}

	affected, err := s.DeleteNode(ctx, tree.page.ID, Actor{})
	if err != nil {
		t.Fatalf("DeleteNode() failed: %v", err)
	}
	if affected != 2 {
		t.Errorf("expected 2 nodes deleted (page and function), got %d", affected)
	}

	got, err := s.GetNode(ctx, sibling.ID)
	if err != nil {
		t.Fatalf("GetNode() failed: %v", err)
	}
	if got.Status != StatusActive {
		t.Error("sibling should stay active")
	}
}

func TestCreateNodeUnderDeletedParent(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	if _, err := s.DeleteNode(ctx, tree.page.ID, Actor{}); err != nil {
		t.Fatalf("DeleteNode() failed: %v", err)
	}

	node := &Node{ProjectID: tree.project.ID, ParentID: tree.page.ID, Type: NodeTypeFunction, Name: "late arrival"}
	if err := s.CreateNode(ctx, node); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid under deleted parent, got %v", err)
	}
}

func TestNodeNameValidation(t *testing.T) {
	ctx, s, project := setupTestProject(t)

	node := &Node{ProjectID: project.ID, Type: NodeTypeApplication, Name: strings.Repeat("n", 256)}
	if err := s.CreateNode(ctx, node); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for long name, got %v", err)
	}
}

func TestGetNodeMissing(t *testing.T) {
	_, s := setupTestStore(t)

	_, err := s.GetNode(context.Background(), "does-not-exist")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}
