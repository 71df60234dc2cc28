package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/CTAG07/Herbarium/pkg/studio"
)

// DictionaryAPI holds the dependencies for the glossary API handlers.
type DictionaryAPI struct {
	store  *studio.Store
	logger *slog.Logger
}

// NewDictionaryAPI creates a new instance of the DictionaryAPI.
func NewDictionaryAPI(store *studio.Store, logger *slog.Logger) *DictionaryAPI {
	return &DictionaryAPI{
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/dictionary endpoints.
func (d *DictionaryAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/dictionary", d.handleListAndCreateTerms)
	mux.HandleFunc("/api/dictionary/", d.handleTermByID)
}

// TermRequest is the expected JSON body for creating or updating a glossary entry.
type TermRequest struct {
	ProjectID  int64  `json:"project_id"`
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// handleListAndCreateTerms handles GET for listing a project's glossary and
// POST for creating entries.
func (d *DictionaryAPI) handleListAndCreateTerms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !hasScope(r, "studio:read") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:read' scope")
			return
		}
		projectID, err := strconv.ParseInt(r.URL.Query().Get("project"), 10, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "A numeric 'project' query parameter is required")
			return
		}
		terms, err := d.store.ListTerms(r.Context(), projectID)
		if err != nil {
			d.logger.Error("Failed to list terms", "project_id", projectID, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve terms: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, terms)

	case http.MethodPost:
		if !hasScope(r, "studio:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:write' scope")
			return
		}
		var req TermRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}

		actor := actorFromRequest(r)
		term := &studio.Term{
			ProjectID:   req.ProjectID,
			Term:        req.Term,
			Definition:  req.Definition,
			CreatorID:   actor.ID,
			CreatorName: actor.Name,
		}
		if err := d.store.CreateTerm(r.Context(), term); err != nil {
			respondStoreError(w, d.logger, err, "Term")
			return
		}
		respondWithJSON(w, http.StatusCreated, term)

	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleTermByID handles GET, PUT and DELETE for a single glossary entry.
func (d *DictionaryAPI) handleTermByID(w http.ResponseWriter, r *http.Request) {
	trimmedPath := strings.TrimPrefix(r.URL.Path, "/api/dictionary/")
	idStr := strings.TrimSuffix(trimmedPath, "/") // Handle optional trailing slash

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid term ID format in URL")
		return
	}

	term, err := d.store.GetTerm(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Term not found")
			return
		}
		d.logger.Error("Failed to get term by id", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !hasScope(r, "studio:read") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:read' scope")
			return
		}
		respondWithJSON(w, http.StatusOK, term)

	case http.MethodPut:
		if !hasScope(r, "studio:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:write' scope")
			return
		}
		var req TermRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		actor := actorFromRequest(r)
		term.Term = req.Term
		term.Definition = req.Definition
		term.EditorID = actor.ID
		term.EditorName = actor.Name
		if err = d.store.UpdateTerm(r.Context(), term); err != nil {
			respondStoreError(w, d.logger, err, "Term")
			return
		}
		respondWithJSON(w, http.StatusOK, term)

	case http.MethodDelete:
		if !hasScope(r, "studio:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:write' scope")
			return
		}
		if err = d.store.DeleteTerm(r.Context(), id); err != nil {
			respondStoreError(w, d.logger, err, "Term")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
