package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/domain"
	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/storage"
)

type siteSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	BaseURL  string `json:"base_url"`
	Schedule string `json:"schedule,omitempty"`
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	all := s.sitesReg.All()
	items := make([]siteSummary, 0, len(all))
	for _, site := range all {
		items = append(items, siteSummary{
			ID:       site.ID,
			Name:     site.Name,
			Type:     site.Type,
			BaseURL:  site.BaseURL,
			Schedule: site.Schedule,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

func (s *Server) handleListPostings(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")
	if _, ok := s.sitesReg.ByID(siteID); !ok {
		respondError(w, http.StatusNotFound, "unknown site "+siteID)
		return
	}

	page := parsePage(r)
	offset := (page - 1) * s.pageSize

	postings, total, err := s.store.ListPostings(siteID, offset, s.pageSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch postings: "+err.Error())
		return
	}
	if postings == nil {
		postings = []domain.JobPosting{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":     postings,
		"page":      page,
		"page_size": s.pageSize,
		"total":     total,
	})
}

func (s *Server) handleGetPosting(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")
	postingID := chi.URLParam(r, "postingID")

	posting, err := s.store.GetPosting(siteID, postingID)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "posting not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch posting: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, posting)
}

func parsePage(r *http.Request) int {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			page = parsed
		}
	}
	return page
}
