package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/CTAG07/Herbarium/pkg/studio"
)

// DocumentAPI holds the dependencies for the document API handlers.
type DocumentAPI struct {
	store  *studio.Store
	logger *slog.Logger
}

// NewDocumentAPI creates a new instance of the DocumentAPI.
func NewDocumentAPI(store *studio.Store, logger *slog.Logger) *DocumentAPI {
	return &DocumentAPI{
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/documents endpoints.
func (d *DocumentAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/documents/", d.handleDocumentByID)
}

// handleDocumentByID routes the content and blocks subresources of a document.
func (d *DocumentAPI) handleDocumentByID(w http.ResponseWriter, r *http.Request) {

	path := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	parts := strings.Split(path, "/")

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid document ID format in URL")
		return
	}

	doc, err := d.store.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Document not found")
			return
		}
		d.logger.Error("Failed to get document by id", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}

	if len(parts) == 1 { // Path is just /api/documents/{id}
		if r.Method == http.MethodGet {
			if !hasScope(r, "studio:read") {
				respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:read' scope")
				return
			}
			respondWithJSON(w, http.StatusOK, doc)
		} else {
			w.Header().Set("Allow", "GET")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	switch parts[1] {
	case "content":
		d.handleContent(w, r, id)
	case "blocks":
		d.handleBlocks(w, r, id)
	default:
		respondWithError(w, http.StatusNotFound, "Action not found")
	}
}

// handleContent handles GET, PUT, PATCH and DELETE for a document's content
// object. PATCH applies an RFC 6902 JSON patch and returns the result.
func (d *DocumentAPI) handleContent(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		if !hasScope(r, "studio:read") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:read' scope")
			return
		}
		content, err := d.store.GetContent(r.Context(), id)
		if err != nil {
			d.logger.Error("Failed to get content", "document_id", id, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve content: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, content)

	case http.MethodPut:
		if !hasScope(r, "studio:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:write' scope")
			return
		}
		var content map[string]any
		if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
			respondWithError(w, http.StatusBadRequest, "Content must be a JSON object")
			return
		}
		if err := d.store.SetContent(r.Context(), id, content); err != nil {
			respondStoreError(w, d.logger, err, "Document")
			return
		}
		respondWithJSON(w, http.StatusOK, content)

	case http.MethodPatch:
		if !hasScope(r, "studio:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:write' scope")
			return
		}
		patch, err := io.ReadAll(r.Body)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Failed to read request body")
			return
		}
		patched, err := d.store.PatchContent(r.Context(), id, patch)
		if err != nil {
			respondStoreError(w, d.logger, err, "Document")
			return
		}
		respondWithJSON(w, http.StatusOK, patched)

	case http.MethodDelete:
		if !hasScope(r, "studio:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:write' scope")
			return
		}
		if err := d.store.DeleteContent(r.Context(), id); err != nil {
			d.logger.Error("Failed to delete content", "document_id", id, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete content: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, PUT, PATCH, DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleBlocks handles GET and PUT for a document's block list. PUT replaces
// the whole list and returns it with assigned ids and positions.
func (d *DocumentAPI) handleBlocks(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		if !hasScope(r, "studio:read") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:read' scope")
			return
		}
		blocks, err := d.store.ListBlocks(r.Context(), id)
		if err != nil {
			d.logger.Error("Failed to list blocks", "document_id", id, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve blocks: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, blocks)

	case http.MethodPut:
		if !hasScope(r, "studio:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:write' scope")
			return
		}
		var blocks []studio.Block
		if err := json.NewDecoder(r.Body).Decode(&blocks); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		if err := d.store.ReplaceBlocks(r.Context(), id, blocks); err != nil {
			respondStoreError(w, d.logger, err, "Document")
			return
		}
		stored, err := d.store.ListBlocks(r.Context(), id)
		if err != nil {
			d.logger.Error("Failed to reload blocks", "document_id", id, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to reload blocks: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, stored)

	default:
		w.Header().Set("Allow", "GET, PUT")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
