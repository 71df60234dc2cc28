package studio

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// ErrInvalid marks errors caused by bad input rather than store failures.
// Callers can test for it with errors.Is and map it to a client error.
var ErrInvalid = errors.New("invalid input")

// Node type codes as seeded into the node_types table.
const (
	NodeTypeApplication = "application"
	NodeTypePage        = "page"
	NodeTypeFunction    = "function"
)

// Node status values. Deletions are soft: the row stays behind with
// StatusDeleted until a prune sweeps it out.
const (
	StatusDeleted = 0
	StatusActive  = 1
)

const (
	maxProjectNameRunes = 128
	maxProjectDescRunes = 400
	maxNodeNameRunes    = 255
	maxTermRunes        = 255
)

// Actor identifies who performed a mutation, for the audit columns.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Project is a top-level workspace owning a node tree and a glossary.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatorID   string    `json:"creator_id"`
	CreatorName string    `json:"creator_name"`
	CreatedAt   time.Time `json:"created_at"`
	EditorID    string    `json:"editor_id"`
	EditorName  string    `json:"editor_name"`
	EditedAt    time.Time `json:"edited_at"`
}

// Validate checks the writable fields against the project limits.
func (p *Project) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: project name is required", ErrInvalid)
	}
	if utf8.RuneCountInString(p.Name) > maxProjectNameRunes {
		return fmt.Errorf("%w: project name exceeds %d characters", ErrInvalid, maxProjectNameRunes)
	}
	if utf8.RuneCountInString(p.Description) > maxProjectDescRunes {
		return fmt.Errorf("%w: project description exceeds %d characters", ErrInvalid, maxProjectDescRunes)
	}
	return nil
}

// Node is one entry in a project tree. Application nodes sit at the root,
// page nodes under applications, function nodes under pages. Function
// nodes carry a document.
type Node struct {
	ID          string    `json:"id"`
	ProjectID   int64     `json:"project_id"`
	ParentID    string    `json:"parent_id,omitempty"`
	Type        string    `json:"node_type"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Path        string    `json:"path"`
	Sort        int       `json:"sort"`
	Status      int       `json:"status"`
	DocumentID  int64     `json:"document_id,omitempty"`
	CreatorID   string    `json:"creator_id"`
	CreatorName string    `json:"creator_name"`
	CreatedAt   time.Time `json:"created_at"`
	EditorID    string    `json:"editor_id"`
	EditorName  string    `json:"editor_name"`
	EditedAt    time.Time `json:"edited_at"`
}

// Validate checks the writable fields against the node limits.
func (n *Node) Validate() error {
	if n.Name == "" {
		return fmt.Errorf("%w: node name is required", ErrInvalid)
	}
	if utf8.RuneCountInString(n.Name) > maxNodeNameRunes {
		return fmt.Errorf("%w: node name exceeds %d characters", ErrInvalid, maxNodeNameRunes)
	}
	if n.ProjectID <= 0 {
		return fmt.Errorf("%w: node requires a project id", ErrInvalid)
	}
	return nil
}

// Term is a glossary entry. Terms are unique per project.
type Term struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Term        string    `json:"term"`
	Definition  string    `json:"definition"`
	CreatorID   string    `json:"creator_id"`
	CreatorName string    `json:"creator_name"`
	CreatedAt   time.Time `json:"created_at"`
	EditorID    string    `json:"editor_id"`
	EditorName  string    `json:"editor_name"`
	EditedAt    time.Time `json:"edited_at"`
}

// Validate checks the writable fields against the glossary limits.
func (t *Term) Validate() error {
	if t.Term == "" {
		return fmt.Errorf("%w: term is required", ErrInvalid)
	}
	if utf8.RuneCountInString(t.Term) > maxTermRunes {
		return fmt.Errorf("%w: term exceeds %d characters", ErrInvalid, maxTermRunes)
	}
	if t.Definition == "" {
		return fmt.Errorf("%w: term definition is required", ErrInvalid)
	}
	if t.ProjectID <= 0 {
		return fmt.Errorf("%w: term requires a project id", ErrInvalid)
	}
	return nil
}

// Document links a function node to its editable content. Each function
// node owns at most one document.
type Document struct {
	ID             int64     `json:"id"`
	FunctionNodeID string    `json:"function_node_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Block is one structured fragment of a document, kept in display order.
type Block struct {
	ID         int64          `json:"id"`
	DocumentID int64          `json:"document_id"`
	Type       string         `json:"block_type"`
	Content    map[string]any `json:"content"`
	Position   int            `json:"position"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Block types accepted by ReplaceBlocks.
const (
	BlockTypeText   = "text"
	BlockTypeList   = "list"
	BlockTypeTable  = "table"
	BlockTypePlugin = "plugin"
)

func validBlockType(t string) bool {
	switch t {
	case BlockTypeText, BlockTypeList, BlockTypeTable, BlockTypePlugin:
		return true
	}
	return false
}

// TemplateContext is the exchange format handed to the site templates and
// returned by the context export endpoints.
type TemplateContext struct {
	Application ContextApplication `json:"application"`
}

// ContextApplication is the root object of a template context.
type ContextApplication struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Terms       []ContextTerm `json:"terms"`
	Pages       []ContextPage `json:"pages"`
}

// ContextTerm is a glossary entry as exposed to templates. The defination
// key is long-established in stored documents and downstream templates, so
// it stays spelled that way on the wire.
type ContextTerm struct {
	Term       string `json:"term"`
	Defination string `json:"defination"`
}

// ContextPage is a page node with its function nodes.
type ContextPage struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Features    []ContextFeature `json:"features"`
}

// ContextFeature is a function node with its document content.
type ContextFeature struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Document    map[string]any `json:"document"`
}
