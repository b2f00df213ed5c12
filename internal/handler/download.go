package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/service"
)

type DownloadHandler struct {
	svc    *service.DownloadService
	logger *slog.Logger
}

func NewDownloadHandler(svc *service.DownloadService, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{svc: svc, logger: logger}
}

type downloadRequest struct {
	imageRequest
	Quality model.Quality `json:"quality"`
}

// HandleCreate tracks a download with the image API, then records it.
//
// HTTP: POST /api/downloads → 201 with the record, including downloadUrl
func (h *DownloadHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var req downloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	d, err := h.svc.Record(r.Context(), user.ID, req.input(), req.Quality)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// HTTP: GET /api/downloads
func (h *DownloadHandler) HandleList(w http.ResponseWriter, r *http.Request) {
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

	ds, err := h.svc.List(r.Context(), user.ID, opts)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// HTTP: DELETE /api/downloads/{id}
func (h *DownloadHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	if err := h.svc.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Download record deleted"})
}
