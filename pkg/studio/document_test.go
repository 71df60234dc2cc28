package studio

import (
	"database/sql"
	"errors"
	"reflect"
	"testing"
)

func TestGetContentDefaultsToEmptyObject(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	content, err := s.GetContent(ctx, tree.function.DocumentID)
	if err != nil {
		t.Fatalf("GetContent() failed: %v", err)
	}
	if content == nil {
		t.Fatal("expected an empty object, not nil")
	}
	if len(content) != 0 {
		t.Errorf("expected empty content, got %v", content)
	}
}

func TestSetAndGetContent(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	doc := map[string]any{
		"type": "doc",
		"content": []any{
			map[string]any{
				"type":    "paragraph",
				"content": []any{map[string]any{"type": "text", "text": "hello"}},
			},
		},
	}
	if err := s.SetContent(ctx, tree.function.DocumentID, doc); err != nil {
		t.Fatalf("SetContent() failed: %v", err)
	}

	got, err := s.GetContent(ctx, tree.function.DocumentID)
	if err != nil {
		t.Fatalf("GetContent() failed: %v", err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("content roundtrip mismatch:\ngot  %v\nwant %v", got, doc)
	}

	// Overwrite wins.
	if err = s.SetContent(ctx, tree.function.DocumentID, map[string]any{"type": "doc"}); err != nil {
		t.Fatalf("SetContent() overwrite failed: %v", err)
	}
	got, err = s.GetContent(ctx, tree.function.DocumentID)
	if err != nil {
		t.Fatalf("GetContent() failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected overwritten content, got %v", got)
	}
}

func TestSetContentMissingDocument(t *testing.T) {
	ctx, s, _ := setupTestTree(t)

	err := s.SetContent(ctx, 777, map[string]any{"type": "doc"})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestPatchContentOnNormalizedDocument(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	// The stored paragraph has no content array; normalization must create
	// one before the patch path can resolve.
	stored := map[string]any{
		"type":    "doc",
		"content": []any{map[string]any{"type": "paragraph"}},
	}
	if err := s.SetContent(ctx, tree.function.DocumentID, stored); err != nil {
		t.Fatalf("SetContent() failed: %v", err)
	}

	patch := []byte(`[{"op": "replace", "path": "/content/0/content/0/text", "value": "hello"}]`)
	result, err := s.PatchContent(ctx, tree.function.DocumentID, patch)
	if err != nil {
		t.Fatalf("PatchContent() failed: %v", err)
	}

	paragraph := result["content"].([]any)[0].(map[string]any)
	text := paragraph["content"].([]any)[0].(map[string]any)
	if text["text"] != "hello" {
		t.Errorf("patched text = %v, want hello", text["text"])
	}

	// The patched result is persisted.
	got, err := s.GetContent(ctx, tree.function.DocumentID)
	if err != nil {
		t.Fatalf("GetContent() failed: %v", err)
	}
	if !reflect.DeepEqual(got, result) {
		t.Errorf("persisted content differs from patch result:\ngot  %v\nwant %v", got, result)
	}
}

func TestPatchContentRejectsNonObjectResult(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	if err := s.SetContent(ctx, tree.function.DocumentID, map[string]any{"a": "b"}); err != nil {
		t.Fatalf("SetContent() failed: %v", err)
	}

	patch := []byte(`[{"op": "replace", "path": "", "value": ["not", "an", "object"]}]`)
	_, err := s.PatchContent(ctx, tree.function.DocumentID, patch)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for non-object result, got %v", err)
	}

	// The stored content is untouched.
	got, gerr := s.GetContent(ctx, tree.function.DocumentID)
	if gerr != nil {
		t.Fatalf("GetContent() failed: %v", gerr)
	}
	if got["a"] != "b" {
		t.Errorf("content changed after failed patch: %v", got)
	}
}

func TestPatchContentBadPatch(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	if _, err := s.PatchContent(ctx, tree.function.DocumentID, []byte(`not json`)); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for malformed patch, got %v", err)
	}

	removeMissing := []byte(`[{"op": "remove", "path": "/missing"}]`)
	if _, err := s.PatchContent(ctx, tree.function.DocumentID, removeMissing); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for inapplicable patch, got %v", err)
	}
}

func TestPatchContentMissingDocument(t *testing.T) {
	ctx, s, _ := setupTestTree(t)

	patch := []byte(`[{"op": "add", "path": "/a", "value": 1}]`)
	if _, err := s.PatchContent(ctx, 777, patch); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestDeleteContent(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	if err := s.SetContent(ctx, tree.function.DocumentID, map[string]any{"type": "doc"}); err != nil {
		t.Fatalf("SetContent() failed: %v", err)
	}
	if err := s.DeleteContent(ctx, tree.function.DocumentID); err != nil {
		t.Fatalf("DeleteContent() failed: %v", err)
	}

	got, err := s.GetContent(ctx, tree.function.DocumentID)
	if err != nil {
		t.Fatalf("GetContent() failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty content after delete, got %v", got)
	}

	// Deleting again is not an error.
	if err = s.DeleteContent(ctx, tree.function.DocumentID); err != nil {
		t.Errorf("repeat DeleteContent() failed: %v", err)
	}
}

func TestReplaceAndListBlocks(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	blocks := []Block{
		{Type: BlockTypeText, Content: map[string]any{"text": "intro"}},
		{Type: BlockTypeList, Content: map[string]any{"items": []any{"a", "b"}}},
		{Type: BlockTypeTable, Content: map[string]any{"rows": []any{}}},
	}
	if err := s.ReplaceBlocks(ctx, tree.function.DocumentID, blocks); err != nil {
		t.Fatalf("ReplaceBlocks() failed: %v", err)
	}

	got, err := s.ListBlocks(ctx, tree.function.DocumentID)
	if err != nil {
		t.Fatalf("ListBlocks() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(got))
	}
	for i, want := range []string{BlockTypeText, BlockTypeList, BlockTypeTable} {
		if got[i].Type != want {
			t.Errorf("blocks[%d].Type = %q, want %q", i, got[i].Type, want)
		}
		if got[i].Position != i {
			t.Errorf("blocks[%d].Position = %d, want %d", i, got[i].Position, i)
		}
	}
	if got[0].Content["text"] != "intro" {
		t.Errorf("block content mismatch: %v", got[0].Content)
	}

	// Replacing swaps the whole list.
	if err = s.ReplaceBlocks(ctx, tree.function.DocumentID, blocks[:1]); err != nil {
		t.Fatalf("ReplaceBlocks() failed: %v", err)
	}
	got, err = s.ListBlocks(ctx, tree.function.DocumentID)
	if err != nil {
		t.Fatalf("ListBlocks() failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 block after replace, got %d", len(got))
	}
}

func TestReplaceBlocksValidation(t *testing.T) {
	ctx, s, tree := setupTestTree(t)

	bad := []Block{{Type: "unknown", Content: map[string]any{}}}
	if err := s.ReplaceBlocks(ctx, tree.function.DocumentID, bad); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for unknown block type, got %v", err)
	}

	ok := []Block{{Type: BlockTypePlugin}}
	if err := s.ReplaceBlocks(ctx, 777, ok); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows for missing document, got %v", err)
	}
}
