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

// ProjectAPI holds the dependencies for the project API handlers.
type ProjectAPI struct {
	store  *studio.Store
	calc   *CoverageCalculator
	logger *slog.Logger
}

// NewProjectAPI creates a new instance of the ProjectAPI.
func NewProjectAPI(store *studio.Store, calc *CoverageCalculator, logger *slog.Logger) *ProjectAPI {
	return &ProjectAPI{
		store:  store,
		calc:   calc,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/projects endpoints.
func (p *ProjectAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/projects", p.handleListAndCreateProjects)
	mux.HandleFunc("/api/projects/", p.handleProjectByID)
	mux.HandleFunc("/api/projects/import", p.handleImport)
}

// ProjectRequest is the expected JSON body for creating or updating a project.
type ProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProjectReport is the JSON response for a project coverage report.
type ProjectReport struct {
	ProjectID int64                   `json:"project_id"`
	Metrics   *studio.CoverageMetrics `json:"metrics"`
	Score     int                     `json:"score"`
	Level     int                     `json:"level"`
	Readiness string                  `json:"readiness"`
}

// handleListAndCreateProjects handles GET for listing and POST for creating projects.
func (p *ProjectAPI) handleListAndCreateProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !hasScope(r, "studio:read") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:read' scope")
			return
		}
		projects, err := p.store.ListProjects(r.Context())
		if err != nil {
			p.logger.Error("Failed to list projects", "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve projects: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, projects)

	case http.MethodPost:
		if !hasScope(r, "studio:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:write' scope")
			return
		}
		var req ProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}

		actor := actorFromRequest(r)
		project := &studio.Project{
			Name:        req.Name,
			Description: req.Description,
			CreatorID:   actor.ID,
			CreatorName: actor.Name,
		}
		if err := p.store.CreateProject(r.Context(), project); err != nil {
			respondStoreError(w, p.logger, err, "Project")
			return
		}
		respondWithJSON(w, http.StatusCreated, project)

	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleProjectByID routes actions for a specific project, e.g., tree, export, report, prune.
func (p *ProjectAPI) handleProjectByID(w http.ResponseWriter, r *http.Request) {

	path := strings.TrimPrefix(r.URL.Path, "/api/projects/")
	parts := strings.Split(path, "/")

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid project ID format in URL")
		return
	}

	project, err := p.store.GetProject(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Project not found")
			return
		}
		p.logger.Error("Failed to get project by id", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}

	if len(parts) == 1 { // Path is just /api/projects/{id}
		switch r.Method {
		case http.MethodGet:
			if !hasScope(r, "studio:read") {
				respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:read' scope")
				return
			}
			respondWithJSON(w, http.StatusOK, project)

		case http.MethodPut:
			if !hasScope(r, "studio:write") {
				respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:write' scope")
				return
			}
			var req ProjectRequest
			if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
				return
			}
			actor := actorFromRequest(r)
			project.Name = req.Name
			project.Description = req.Description
			project.EditorID = actor.ID
			project.EditorName = actor.Name
			if err = p.store.UpdateProject(r.Context(), project); err != nil {
				respondStoreError(w, p.logger, err, "Project")
				return
			}
			respondWithJSON(w, http.StatusOK, project)

		case http.MethodDelete:
			if !hasScope(r, "studio:write") {
				respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:write' scope")
				return
			}
			if err = p.store.DeleteProject(r.Context(), id); err != nil {
				respondStoreError(w, p.logger, err, "Project")
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			w.Header().Set("Allow", "GET, PUT, DELETE")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	action := parts[1]
	switch action {
	case "tree":
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if !hasScope(r, "studio:read") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:read' scope")
			return
		}
		nodes, err := p.store.ListProjectNodes(r.Context(), id)
		if err != nil {
			p.logger.Error("Failed to list project nodes", "id", id, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve nodes: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, nodes)

	case "export":
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if !hasScope(r, "studio:read") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:read' scope")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.json\"", project.Name))
		if err = p.store.ExportProject(r.Context(), id, w); err != nil {
			p.logger.Error("Failed to export project", "id", id, "error", err)
		}

	case "report":
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if !hasScope(r, "studio:read") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:read' scope")
			return
		}
		metrics, err := p.store.GetCoverageMetrics(r.Context(), id)
		if err != nil {
			p.logger.Error("Failed to get coverage metrics", "id", id, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to compute report: %v", err))
			return
		}
		score := p.calc.GetScore(metrics)
		level := p.calc.GetLevel(score)
		respondWithJSON(w, http.StatusOK, ProjectReport{
			ProjectID: id,
			Metrics:   metrics,
			Score:     score,
			Level:     level,
			Readiness: readinessLabel(level),
		})

	case "prune":
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if !hasScope(r, "studio:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:write' scope")
			return
		}
		result, err := p.store.Prune(r.Context(), id)
		if err != nil {
			p.logger.Error("Failed to prune project", "id", id, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Pruning failed: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, result)

	default:
		respondWithError(w, http.StatusNotFound, "Action not found")
	}
}

// handleImport imports a project from an uploaded JSON export.
func (p *ProjectAPI) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "studio:write") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'studio:write' scope")
		return
	}

	id, err := p.store.ImportProject(r.Context(), r.Body, actorFromRequest(r))
	if err != nil {
		if errors.Is(err, studio.ErrInvalid) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		p.logger.Error("Failed to import project", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Import failed: %v", err))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int64{"project_id": id})
}

// respondStoreError translates store errors into API responses. Invalid
// input is the caller's fault, missing rows map to 404, uniqueness clashes
// to 409. Everything else is logged and reported as a server error.
func respondStoreError(w http.ResponseWriter, logger *slog.Logger, err error, resource string) {
	switch {
	case errors.Is(err, studio.ErrInvalid):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sql.ErrNoRows):
		respondWithError(w, http.StatusNotFound, resource+" not found")
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		respondWithError(w, http.StatusConflict, resource+" already exists")
	default:
		logger.Error("Store operation failed", "resource", resource, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("%s operation failed: %v", resource, err))
	}
}
