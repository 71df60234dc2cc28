package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/CTAG07/Herbarium/pkg/studio"
)

// NodeAPI holds the dependencies for the node tree API handlers.
type NodeAPI struct {
	store  *studio.Store
	logger *slog.Logger
}

// NewNodeAPI creates a new instance of the NodeAPI.
func NewNodeAPI(store *studio.Store, logger *slog.Logger) *NodeAPI {
	return &NodeAPI{
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/nodes endpoints.
func (n *NodeAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/nodes", n.handleCreateNode)
	mux.HandleFunc("/api/nodes/", n.handleNodeByID)
}

// CreateNodeRequest is the expected JSON body for creating a node.
type CreateNodeRequest struct {
	ProjectID   int64  `json:"project_id"`
	ParentID    string `json:"parent_id"`
	Type        string `json:"node_type"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateNodeRequest is the expected JSON body for updating a node.
type UpdateNodeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Sort        int    `json:"sort"`
}

// MoveNodeRequest is the expected JSON body for reparenting a node.
type MoveNodeRequest struct {
	NewParentID string `json:"new_parent_id"`
}

// handleCreateNode handles POST for creating a node in a project tree.
func (n *NodeAPI) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "studio:write") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:write' scope")
		return
	}

	var req CreateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	actor := actorFromRequest(r)
	node := &studio.Node{
		ProjectID:   req.ProjectID,
		ParentID:    req.ParentID,
		Type:        req.Type,
		Name:        req.Name,
		Description: req.Description,
		CreatorID:   actor.ID,
		CreatorName: actor.Name,
	}
	if err := n.store.CreateNode(r.Context(), node); err != nil {
		respondStoreError(w, n.logger, err, "Node")
		return
	}
	respondWithJSON(w, http.StatusCreated, node)
}

// handleNodeByID routes actions for a specific node, e.g., children, move, context.
func (n *NodeAPI) handleNodeByID(w http.ResponseWriter, r *http.Request) {

	path := strings.TrimPrefix(r.URL.Path, "/api/nodes/")
	parts := strings.Split(path, "/")
	nodeID := parts[0]

	if nodeID == "" {
		respondWithError(w, http.StatusBadRequest, "Node ID not specified")
		return
	}

	node, err := n.store.GetNode(r.Context(), nodeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Node not found")
			return
		}
		n.logger.Error("Failed to get node by id", "id", nodeID, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}

	if len(parts) == 1 { // Path is just /api/nodes/{id}
		switch r.Method {
		case http.MethodGet:
			if !hasScope(r, "studio:read") {
				respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:read' scope")
				return
			}
			respondWithJSON(w, http.StatusOK, node)

		case http.MethodPut:
			if !hasScope(r, "studio:write") {
				respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:write' scope")
				return
			}
			var req UpdateNodeRequest
			if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
				return
			}
			actor := actorFromRequest(r)
			node.Name = req.Name
			node.Description = req.Description
			node.Sort = req.Sort
			node.EditorID = actor.ID
			node.EditorName = actor.Name
			if err = n.store.UpdateNode(r.Context(), node); err != nil {
				respondStoreError(w, n.logger, err, "Node")
				return
			}
			respondWithJSON(w, http.StatusOK, node)

		case http.MethodDelete:
			if !hasScope(r, "studio:write") {
				respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:write' scope")
				return
			}
			affected, derr := n.store.DeleteNode(r.Context(), nodeID, actorFromRequest(r))
			if derr != nil {
				respondStoreError(w, n.logger, derr, "Node")
				return
			}
			respondWithJSON(w, http.StatusOK, map[string]int64{"nodes_deleted": affected})

		default:
			w.Header().Set("Allow", "GET, PUT, DELETE")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	action := parts[1]
	switch action {
	case "children":
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if !hasScope(r, "studio:read") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:read' scope")
			return
		}
		children, err := n.store.ListChildren(r.Context(), nodeID)
		if err != nil {
			n.logger.Error("Failed to list children", "id", nodeID, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve children: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, children)

	case "move":
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if !hasScope(r, "studio:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:write' scope")
			return
		}
		var req MoveNodeRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		if err = n.store.MoveNode(r.Context(), nodeID, req.NewParentID, actorFromRequest(r)); err != nil {
			respondStoreError(w, n.logger, err, "Node")
			return
		}
		moved, err := n.store.GetNode(r.Context(), nodeID)
		if err != nil {
			n.logger.Error("Failed to reload moved node", "id", nodeID, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to reload node: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, moved)

	case "context":
		// /context renders the export for an application node,
		// /context/validate checks a posted payload against the same shape.
		if len(parts) >= 3 && parts[2] == "validate" {
			if r.Method != http.MethodPost {
				w.Header().Set("Allow", "POST")
				respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			if !hasScope(r, "studio:read") {
				respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:read' scope")
				return
			}
			body, rerr := io.ReadAll(r.Body)
			if rerr != nil {
				respondWithError(w, http.StatusBadRequest, "Failed to read request body")
				return
			}
			if verr := studio.ValidateContext(body); verr != nil {
				respondWithJSON(w, http.StatusOK, map[string]any{"valid": false, "error": verr.Error()})
				return
			}
			respondWithJSON(w, http.StatusOK, map[string]any{"valid": true})
			return
		}

		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if !hasScope(r, "studio:read") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:read' scope")
			return
		}
		tc, err := n.store.BuildContext(r.Context(), nodeID)
		if err != nil {
			respondStoreError(w, n.logger, err, "Context")
			return
		}
		respondWithJSON(w, http.StatusOK, tc)

	default:
		respondWithError(w, http.StatusNotFound, "Action not found")
	}
}
