package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/service"
)

type SearchHandler struct {
	svc    *service.SearchService
	logger *slog.Logger
}

func NewSearchHandler(svc *service.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{svc: svc, logger: logger}
}

type searchRequest struct {
	Term        string `json:"term"`
	Orientation string `json:"orientation"`
	Color       string `json:"color"`
	OrderBy     string `json:"orderBy"`
	Page        int    `json:"page"`
	PerPage     int    `json:"perPage"`
}

// HandleSearch runs an image search and records it in the user's history.
//
// HTTP: POST /api/search
// REQUEST BODY: {"term": "mountains", "orientation": "landscape", "page": 1}
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	result, err := h.svc.Search(r.Context(), user.ID, model.SearchQuery{
		Term: req.Term,
		Filters: model.SearchFilters{
			Orientation: req.Orientation,
			Color:       req.Color,
			OrderBy:     req.OrderBy,
		},
		Page:    req.Page,
		PerPage: req.PerPage,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleSuggestions returns previously searched terms starting with ?q=.
//
// HTTP: GET /api/search/suggestions?q=mou
func (h *SearchHandler) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	terms, err := h.svc.Suggest(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, terms)
}

// HandleHistory lists the user's searches, newest first.
//
// HTTP: GET /api/history?limit=20
func (h *SearchHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	entries, err := h.svc.History(r.Context(), user.ID, opts)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleTopSearches returns the five most searched terms across all users.
//
// HTTP: GET /api/top-searches?period=all|week
func (h *SearchHandler) HandleTopSearches(w http.ResponseWriter, r *http.Request) {
	terms, err := h.svc.TopSearches(r.Context(), service.Period(r.URL.Query().Get("period")))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, terms)
}
