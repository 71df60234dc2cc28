package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/CTAG07/Herbarium/pkg/studio"
)

// PublishAPI manages which application nodes the public site serves.
type PublishAPI struct {
	db     *sql.DB
	store  *studio.Store
	logger *slog.Logger
	cache  *PublishCache // A pointer to the in-memory cache
}

// setupPublishSchema creates the table for storing published application nodes.
func setupPublishSchema(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS published (
		id INTEGER PRIMARY KEY,
		node_id TEXT NOT NULL UNIQUE,
		published_at DATETIME NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// PublishCache keeps the published node set in memory so the site handlers
// never touch the database just to answer "is this live".
type PublishCache struct {
	mu  sync.RWMutex
	set map[string]struct{}
}

func NewPublishCache() *PublishCache {
	return &PublishCache{
		set: make(map[string]struct{}),
	}
}

// LoadFromDB reads all published node ids from the database into the cache.
func (c *PublishCache) LoadFromDB(db *sql.DB) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.set = make(map[string]struct{})

	rows, err := db.Query("SELECT node_id FROM published")
	if err != nil {
		return err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	for rows.Next() {
		var nodeID string
		if err = rows.Scan(&nodeID); err != nil {
			return err
		}
		c.set[nodeID] = struct{}{}
	}
	return rows.Err()
}

// Add safely adds a single node id to the cache.
func (c *PublishCache) Add(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set[nodeID] = struct{}{}
}

// Remove safely removes a single node id from the cache.
func (c *PublishCache) Remove(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.set, nodeID)
}

// IsPublished safely checks if a node id is in the cache.
func (c *PublishCache) IsPublished(nodeID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, found := c.set[nodeID]
	return found
}

// List returns the published node ids in a stable order.
func (c *PublishCache) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.set))
	for id := range c.set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PublishedEntry is one row of the published list.
type PublishedEntry struct {
	NodeID      string    `json:"node_id"`
	PublishedAt time.Time `json:"published_at"`
}

// NewPublishAPI creates a new instance of the PublishAPI.
func NewPublishAPI(db *sql.DB, store *studio.Store, logger *slog.Logger, cache *PublishCache) *PublishAPI {
	return &PublishAPI{
		db:     db,
		store:  store,
		logger: logger,
		cache:  cache,
	}
}

// RegisterRoutes sets up the routing for all /api/publish endpoints.
func (a *PublishAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/publish", a.handlePublish)
}

// handlePublish dispatches the published list operations.
func (a *PublishAPI) handlePublish(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.getList(w, r)
	case http.MethodPost:
		a.publish(w, r)
	case http.MethodDelete:
		a.unpublish(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// getList retrieves all published entries.
func (a *PublishAPI) getList(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "publish:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'publish:read' scope")
		return
	}

	rows, err := a.db.Query("SELECT node_id, published_at FROM published ORDER BY published_at")
	if err != nil {
		a.logger.Error("Failed to query published list", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve published list")
		return
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	entries := make([]PublishedEntry, 0)
	for rows.Next() {
		var entry PublishedEntry
		if err := rows.Scan(&entry.NodeID, &entry.PublishedAt); err != nil {
			a.logger.Error("Failed to scan published entry", "error", err)
			continue
		}
		entries = append(entries, entry)
	}

	respondWithJSON(w, http.StatusOK, entries)
}

// publish adds an application node to the published set.
func (a *PublishAPI) publish(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "publish:write") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'publish:write' scope")
		return
	}

	var payload struct {
		NodeID string `json:"node_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	nodeID := strings.TrimSpace(payload.NodeID)
	if nodeID == "" {
		respondWithError(w, http.StatusBadRequest, "Node ID cannot be empty")
		return
	}

	node, err := a.store.GetNode(r.Context(), nodeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Node not found")
			return
		}
		a.logger.Error("Failed to get node for publish", "node_id", nodeID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to look up node")
		return
	}
	if node.Type != studio.NodeTypeApplication {
		respondWithError(w, http.StatusBadRequest, "Only application nodes can be published")
		return
	}
	if node.Status != studio.StatusActive {
		respondWithError(w, http.StatusBadRequest, "Cannot publish a deleted node")
		return
	}

	_, err = a.db.Exec("INSERT INTO published (node_id, published_at) VALUES (?, ?)", nodeID, time.Now().UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			respondWithError(w, http.StatusConflict, "Node is already published")
		} else {
			a.logger.Error("Failed to insert published entry", "node_id", nodeID, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to publish node")
		}
		return
	}

	a.cache.Add(nodeID)
	a.logger.Info("Node published", "node_id", nodeID, "name", node.Name)
	respondWithJSON(w, http.StatusCreated, map[string]string{"message": "Node published"})
}

// unpublish removes an application node from the published set.
func (a *PublishAPI) unpublish(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "publish:write") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'publish:write' scope")
		return
	}

	var payload struct {
		NodeID string `json:"node_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	nodeID := strings.TrimSpace(payload.NodeID)
	if nodeID == "" {
		respondWithError(w, http.StatusBadRequest, "Node ID cannot be empty")
		return
	}

	res, err := a.db.Exec("DELETE FROM published WHERE node_id = ?", nodeID)
	if err != nil {
		a.logger.Error("Failed to delete published entry", "node_id", nodeID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to unpublish node")
		return
	}

	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		respondWithError(w, http.StatusNotFound, "Node is not published")
		return
	}

	a.cache.Remove(nodeID)
	a.logger.Info("Node unpublished", "node_id", nodeID)
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Node unpublished"})
}
