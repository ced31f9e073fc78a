package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/storage"
	"github.com/kaayjob-hq/kaay-emploi-harvester/pkg/sites"
)

// Server exposes harvested postings over a small read-only HTTP API.
type Server struct {
	router   *chi.Mux
	store    storage.Store
	sitesReg *sites.Registry
	pageSize int
}

// NewServer wires the API routes over a posting store and site registry.
func NewServer(store storage.Store, sitesReg *sites.Registry, pageSize int) *Server {
	if pageSize <= 0 {
		pageSize = 20
	}
	s := &Server{
		router:   chi.NewRouter(),
		store:    store,
		sitesReg: sitesReg,
		pageSize: pageSize,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/sites", s.handleListSites)
	s.router.Get("/sites/{siteID}/postings", s.handleListPostings)
	s.router.Get("/sites/{siteID}/postings/{postingID}", s.handleGetPosting)
}

// Router returns the configured HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
