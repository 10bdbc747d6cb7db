package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// server is the query-path HTTP API. It shares the Normalizer, Synonym
// Resolver and Reference Catalog with the bulk import path, so names
// resolve identically at request time and import time.
type server struct {
	db      *sql.DB
	store   *PostgresStore
	catalog *Catalog
	suggest *SuggestIndex
	cfg     Config
	log     *zap.SugaredLogger
}

func newServer(db *sql.DB, catalog *Catalog, cfg Config, log *zap.SugaredLogger) *server {
	var store *PostgresStore
	if db != nil {
		store = NewPostgresStore(db)
	}
	return &server{
		db:      db,
		store:   store,
		catalog: catalog,
		suggest: NewSuggestIndex(catalog),
		cfg:     cfg,
		log:     log,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/api/autocomplete", s.handleAutocomplete)
	r.Get("/api/search", s.handleSearch)
	r.Get("/api/interactions", s.handleInteractions)
	r.Get("/api/verify", s.handleVerify)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleAutocomplete serves prefix suggestions from the in-memory index.
// Query params: q, type (supplement|medication), limit.
func (s *server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	kind := parseKind(r.URL.Query().Get("type"))
	limit := clampLimit(r.URL.Query().Get("limit"), 10, 50)

	suggestions := s.suggest.Suggest(kind, q, limit)
	if suggestions == nil {
		suggestions = []Suggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"q":           q,
		"suggestions": suggestions,
	})
}

// handleSearch serves full-text substance search from Meilisearch.
func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	kind := parseKind(r.URL.Query().Get("type"))
	limit := clampLimit(r.URL.Query().Get("limit"), 20, 100)

	results, err := searchSubstances(s.cfg.MeiliURL, s.cfg.MeiliAPIKey, q, kind, limit)
	if err != nil {
		s.log.Errorw("search failed", "query", q, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "search backend unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"q":       q,
		"results": results,
		"total":   len(results),
	})
}

// InteractionDetail is one stored interaction row joined with the canonical
// display names.
type InteractionDetail struct {
	SupplementID   string   `json:"supplementId"`
	SupplementName string   `json:"supplementName"`
	MedicationID   string   `json:"medicationId"`
	MedicationName string   `json:"medicationName"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
}

// handleInteractions checks one supplement/medication pair. Both names go
// through the same normalize + synonym resolution as the import path.
func (s *server) handleInteractions(w http.ResponseWriter, r *http.Request) {
	suppName := r.URL.Query().Get("supplement")
	medName := r.URL.Query().Get("medication")
	if suppName == "" || medName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "supplement and medication are required"})
		return
	}
	if s.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "database not connected"})
		return
	}

	suppID, suppOK := s.catalog.LookupID(KindSupplement, suppName)
	medID, medOK := s.catalog.LookupID(KindMedication, medName)
	if !suppOK || !medOK {
		writeJSON(w, http.StatusOK, map[string]any{
			"found":             false,
			"interactions":      []InteractionDetail{},
			"unknownSupplement": !suppOK,
			"unknownMedication": !medOK,
		})
		return
	}

	interactions, err := s.queryInteractions(r.Context(), suppID, medID)
	if err != nil {
		s.log.Errorw("interaction lookup failed", "supplement", suppID, "medication", medID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "interaction lookup failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"found":        len(interactions) > 0,
		"interactions": interactions,
	})
}

func (s *server) queryInteractions(ctx context.Context, suppID, medID string) ([]InteractionDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT supplement_id, medication_id, severity, description, recommendation
		FROM interactions
		WHERE supplement_id = $1 AND medication_id = $2
	`, suppID, medID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	interactions := []InteractionDetail{}
	for rows.Next() {
		var d InteractionDetail
		var sev string
		if err := rows.Scan(&d.SupplementID, &d.MedicationID, &sev, &d.Description, &d.Recommendation); err != nil {
			return nil, err
		}
		d.Severity = Severity(sev)
		d.SupplementName = s.catalog.EntityName(KindSupplement, d.SupplementID)
		d.MedicationName = s.catalog.EntityName(KindMedication, d.MedicationID)
		interactions = append(interactions, d)
	}
	return interactions, rows.Err()
}

// handleVerify runs the read-only post-import checks on demand.
func (s *server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "database not connected"})
		return
	}
	report := NewVerifier(s.store, s.cfg.Thresholds).Verify(r.Context())
	status := http.StatusOK
	if !report.Pass {
		status = http.StatusConflict
	}
	writeJSON(w, status, report)
}

// listenAndServe wraps the router with CORS and h2c and blocks serving.
func (s *server) listenAndServe() error {
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	h2cHandler := h2c.NewHandler(corsHandler.Handler(s.routes()), &http2.Server{})

	addr := ":" + s.cfg.Port
	s.log.Infof("HTTP server listening on %s", addr)
	return http.ListenAndServe(addr, h2cHandler)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseKind(raw string) EntityKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "supplement":
		return KindSupplement
	case "medication", "medicine", "drug", "rx":
		return KindMedication
	}
	return ""
}

func clampLimit(raw string, fallback, max int) int {
	limit := fallback
	if raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}
