package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/service"
)

type CollectionHandler struct {
	svc    *service.CollectionService
	logger *slog.Logger
}

func NewCollectionHandler(svc *service.CollectionService, logger *slog.Logger) *CollectionHandler {
	return &CollectionHandler{svc: svc, logger: logger}
}

// collectionRequest uses pointers so PUT can tell "absent" from "empty".
type collectionRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	IsPublic    *bool     `json:"isPublic"`
	Tags        *[]string `json:"tags"`
}

func (req collectionRequest) input() service.CollectionInput {
	in := service.CollectionInput{
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	}
	if req.Tags != nil {
		in.Tags = *req.Tags
		in.TagsSet = true
	}
	return in
}

// collectionSummary is a list entry: the collection plus its image count.
type collectionSummary struct {
	model.Collection
	ImageCount int `json:"imageCount"`
}

// HTTP: GET /api/collections
func (h *CollectionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	cs, err := h.svc.List(r.Context(), user.ID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	out := make([]collectionSummary, 0, len(cs))
	for _, c := range cs {
		out = append(out, collectionSummary{Collection: c, ImageCount: len(c.Images)})
	}
	writeJSON(w, http.StatusOK, out)
}

// HTTP: POST /api/collections → 201
func (h *CollectionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var req collectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	c, err := h.svc.Create(r.Context(), user.ID, req.input())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HTTP: GET /api/collections/{id}
func (h *CollectionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	c, err := h.svc.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HTTP: PUT /api/collections/{id}
func (h *CollectionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var req collectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	c, err := h.svc.Update(r.Context(), user.ID, chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HTTP: DELETE /api/collections/{id}
func (h *CollectionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	if err := h.svc.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Collection deleted"})
}

// HandleAddImage appends an image; 409 if the collection already has it.
//
// HTTP: POST /api/collections/{id}/images
func (h *CollectionHandler) HandleAddImage(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var req imageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	c, err := h.svc.AddImage(r.Context(), user.ID, chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleRemoveImage drops an image; a missing image returns the collection
// unchanged.
//
// HTTP: DELETE /api/collections/{id}/images/{imageId}
func (h *CollectionHandler) HandleRemoveImage(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	c, err := h.svc.RemoveImage(r.Context(), user.ID, chi.URLParam(r, "id"), chi.URLParam(r, "imageId"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
