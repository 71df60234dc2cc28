package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/CTAG07/Herbarium/pkg/studio"
)

const statsSchema = `
CREATE TABLE IF NOT EXISTS stats_views (
    path          TEXT PRIMARY KEY,
    total_hits    INTEGER NOT NULL DEFAULT 1,
    first_seen    DATETIME NOT NULL,
    last_seen     DATETIME NOT NULL
);
`

// PageViewMetrics is the data structure returned for a single page view.
type PageViewMetrics struct {
	Path           string        `json:"path"`
	TotalHits      int           `json:"total_hits"`
	TimeSinceFirst time.Duration `json:"time_since_first_seen"`
}

// StatsSummary provides a high-level overview of studio content and site traffic.
type StatsSummary struct {
	Studio      *studio.Stats `json:"studio"`
	TotalViews  int64         `json:"total_views"`
	UniquePaths int64         `json:"unique_paths"`
}

// StatsAPI holds the dependencies for the statistics handlers.
type StatsAPI struct {
	db     *sql.DB
	store  *studio.Store
	logger *slog.Logger
}

func setupStatsSchema(db *sql.DB) error {
	_, err := db.Exec(statsSchema)
	return err
}

func NewStatsAPI(db *sql.DB, store *studio.Store, logger *slog.Logger) *StatsAPI {
	return &StatsAPI{
		db:     db,
		store:  store,
		logger: logger,
	}
}

func (s *StatsAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/stats/summary", s.handleSummary)
	mux.HandleFunc("/api/stats/top_pages", s.handleTopPages)
}

// LogView is the core function called by the site handlers. It logs the
// page view and returns up-to-date metrics for it in a single transaction.
func (s *StatsAPI) LogView(r *http.Request) (*PageViewMetrics, error) {
	path := r.URL.Path
	now := time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	_, err = tx.ExecContext(r.Context(), `
        INSERT INTO stats_views (path, first_seen, last_seen) VALUES (?, ?, ?)
        ON CONFLICT(path) DO UPDATE SET total_hits = total_hits + 1, last_seen = ?
    `, path, now, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert stats_views: %w", err)
	}

	metrics := &PageViewMetrics{Path: path}
	var firstSeen time.Time

	err = tx.QueryRowContext(r.Context(), "SELECT total_hits, first_seen FROM stats_views WHERE path = ?", path).Scan(&metrics.TotalHits, &firstSeen)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve updated stats_views: %w", err)
	}

	metrics.TimeSinceFirst = now.Sub(firstSeen)

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stats transaction: %w", err)
	}

	return metrics, nil
}

func (s *StatsAPI) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "stats:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden")
		return
	}

	studioStats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.logger.Error("Failed to get studio stats", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}

	summary := StatsSummary{Studio: studioStats}
	_ = s.db.QueryRowContext(r.Context(), "SELECT COALESCE(SUM(total_hits), 0) FROM stats_views").Scan(&summary.TotalViews)
	_ = s.db.QueryRowContext(r.Context(), "SELECT COUNT(*) FROM stats_views").Scan(&summary.UniquePaths)
	respondWithJSON(w, http.StatusOK, summary)
}

func (s *StatsAPI) handleTopPages(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "stats:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden")
		return
	}
	rows, err := s.db.QueryContext(r.Context(), "SELECT path, total_hits, first_seen, last_seen FROM stats_views ORDER BY total_hits DESC LIMIT 100")
	if err != nil {
		s.logger.Error("Failed to query top pages", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var results []map[string]any
	for rows.Next() {
		var path string
		var hits int
		var first, last time.Time
		err = rows.Scan(&path, &hits, &first, &last)
		if err != nil {
			s.logger.Error("Failed to scan top pages", "error", err)
		}
		results = append(results, map[string]any{
			"path":       path,
			"total_hits": hits,
			"first_seen": first,
			"last_seen":  last,
		})
	}
	respondWithJSON(w, http.StatusOK, results)
}
