package main

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/CTAG07/Herbarium/pkg/studio"
	"github.com/CTAG07/Herbarium/pkg/templating"
)

// IndexApp is one published application as shown on the landing page.
type IndexApp struct {
	ID          string
	Name        string
	Description string
}

// IndexInput is the data handed to the index template.
type IndexInput struct {
	Apps []IndexApp
}

type Server struct {
	cm            *ConfigManager
	db            *sql.DB
	logger        *slog.Logger
	store         *studio.Store
	tm            *templating.TemplateManager
	calc          *CoverageCalculator
	pc            *PublishCache
	authAPI       *AuthAPI
	projectAPI    *ProjectAPI
	nodeAPI       *NodeAPI
	dictionaryAPI *DictionaryAPI
	documentAPI   *DocumentAPI
	templateAPI   *TemplateAPI
	statsAPI      *StatsAPI
	publishAPI    *PublishAPI
	serverAPI     *ServerAPI
	siteMux       *http.ServeMux
	apiMux        *http.ServeMux
}

func NewServer(cm *ConfigManager, logger *slog.Logger, db *sql.DB, actionChan chan string) (*Server, error) {

	config := cm.Get()

	// studio initialization
	store, err := studio.NewStore(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create studio store: %w", err)
	}
	store.SetLogger(logger)

	calc := NewCoverageCalculator(config.Coverage, logger)

	tm, err := templating.NewTemplateManager(logger, config.Templates, config.Server.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create template manager: %w", err)
	}
	cm.SetTemplateManager(tm)

	pc := NewPublishCache()
	err = pc.LoadFromDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to load published set from db: %w", err)
	}

	// api initialization
	authAPI := NewAuthAPI(db, cm, logger)
	projectAPI := NewProjectAPI(store, calc, logger)
	nodeAPI := NewNodeAPI(store, logger)
	dictionaryAPI := NewDictionaryAPI(store, logger)
	documentAPI := NewDocumentAPI(store, logger)
	templateAPI := NewTemplateAPI(tm, store, logger)
	statsAPI := NewStatsAPI(db, store, logger)
	publishAPI := NewPublishAPI(db, store, logger, pc)
	serverAPI := NewServerAPI(cm, actionChan, logger)

	// create object, register routes to the mux, and return it
	server := &Server{
		cm:            cm,
		db:            db,
		logger:        logger,
		store:         store,
		tm:            tm,
		calc:          calc,
		pc:            pc,
		authAPI:       authAPI,
		projectAPI:    projectAPI,
		nodeAPI:       nodeAPI,
		dictionaryAPI: dictionaryAPI,
		documentAPI:   documentAPI,
		templateAPI:   templateAPI,
		statsAPI:      statsAPI,
		publishAPI:    publishAPI,
		serverAPI:     serverAPI,
		siteMux:       http.NewServeMux(),
		apiMux:        http.NewServeMux(),
	}

	apiMux := http.NewServeMux()

	server.authAPI.RegisterRoutes(apiMux)
	server.projectAPI.RegisterRoutes(apiMux)
	server.nodeAPI.RegisterRoutes(apiMux)
	server.dictionaryAPI.RegisterRoutes(apiMux)
	server.documentAPI.RegisterRoutes(apiMux)
	server.templateAPI.RegisterRoutes(apiMux)
	server.statsAPI.RegisterRoutes(apiMux)
	server.publishAPI.RegisterRoutes(apiMux)
	server.serverAPI.RegisterRoutes(apiMux)

	// Every API route passes through authentication. The health check stays
	// reachable without a key because it sits on the default public paths list.
	server.apiMux.Handle("/api/", server.authAPI.Authenticate(apiMux))

	staticFs := http.FileServer(http.Dir(config.Server.StaticPath))
	server.siteMux.Handle("/static/", http.StripPrefix("/static/", staticFs))
	server.siteMux.HandleFunc("/favicon.ico", handleFavicon)
	server.siteMux.HandleFunc("/app/", server.handleApp)
	server.siteMux.HandleFunc("/", server.handleIndex)

	return server, nil
}

// Close releases the server's prepared statements. The database handle
// itself is owned by main.
func (s *Server) Close() {
	s.store.Close()
}

// handleIndex renders the landing page with the published application list.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// Only the root path gets the index, everything else on the site mux
	// that lands here is an unknown path.
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if _, err := s.statsAPI.LogView(r); err != nil {
		s.logger.Warn("Failed to log page view", "path", r.URL.Path, "error", err)
	}

	apps := make([]IndexApp, 0)
	for _, nodeID := range s.pc.List() {
		node, err := s.store.GetNode(r.Context(), nodeID)
		if err != nil {
			s.logger.Warn("Published node missing, skipping", "node_id", nodeID, "error", err)
			continue
		}
		if node.Status != studio.StatusActive {
			continue
		}
		apps = append(apps, IndexApp{ID: node.ID, Name: node.Name, Description: node.Description})
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })

	config := s.cm.Get()
	var buf bytes.Buffer
	if err := s.tm.Execute(&buf, config.Server.IndexTemplate, IndexInput{Apps: apps}); err != nil {
		s.logger.Error("Failed to render index template", "template", config.Server.IndexTemplate, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.setSiteHeaders(w)
	_, _ = buf.WriteTo(w)
}

// handleApp renders one published application's documentation.
func (s *Server) handleApp(w http.ResponseWriter, r *http.Request) {
	nodeID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/app/"), "/")
	if nodeID == "" || strings.Contains(nodeID, "/") {
		http.NotFound(w, r)
		return
	}

	// Unpublished applications do not exist as far as the site is concerned.
	if !s.pc.IsPublished(nodeID) {
		http.NotFound(w, r)
		return
	}

	if _, err := s.statsAPI.LogView(r); err != nil {
		s.logger.Warn("Failed to log page view", "path", r.URL.Path, "error", err)
	}

	tc, err := s.store.BuildContext(r.Context(), nodeID)
	if err != nil {
		// A published id pointing at a deleted or missing node renders as a
		// plain 404, the publish list is only advisory here.
		if errors.Is(err, studio.ErrInvalid) || errors.Is(err, sql.ErrNoRows) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("Failed to build app context", "node_id", nodeID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	config := s.cm.Get()
	s.logger.Info(
		"Serving app page",
		"node_id", nodeID,
		"app", tc.Application.Name,
		"remote_addr", s.getClientIP(r))

	var buf bytes.Buffer
	if err = s.tm.Execute(&buf, config.Server.AppTemplate, tc); err != nil {
		s.logger.Error("Failed to execute app template", "template", config.Server.AppTemplate, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.setSiteHeaders(w)
	_, _ = buf.WriteTo(w)
}

func (s *Server) setSiteHeaders(w http.ResponseWriter) {

	w.Header().Set("Cache-Control", "no-store, no-cache")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline';")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
}

func (s *Server) getClientIP(r *http.Request) string {

	// Strip the port so the peer can be compared against the trusted list.
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// If splitting fails (e.g., no port), use the address as is.
		peer = r.RemoteAddr
	}

	// Forwarded headers are only believed when the direct peer is a proxy
	// we trust, otherwise any client could spoof its own address.
	if s.cm.IsTrusted(peer) {
		// The X-Real-Ip header contains the forwarded IP in some cases (like from nginx)
		realIP := r.Header.Get("X-Real-Ip")
		if realIP != "" {
			return realIP
		}

		// The X-Forwarded-For header can contain a comma-separated list of IPs.
		// The first IP in the list is the original client IP.
		forwardedFor := r.Header.Get("X-Forwarded-For")
		if forwardedFor != "" {
			ips := strings.Split(forwardedFor, ",")
			return strings.TrimSpace(ips[0])
		}
	}

	return peer
}

// handleFavicon returns no content for favicon requests so browser chrome
// doesn't double-count page views.
func handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
