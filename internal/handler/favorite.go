package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/service"
)

type FavoriteHandler struct {
	svc    *service.FavoriteService
	logger *slog.Logger
}

func NewFavoriteHandler(svc *service.FavoriteService, logger *slog.Logger) *FavoriteHandler {
	return &FavoriteHandler{svc: svc, logger: logger}
}

// imageRequest is the image metadata clients send with favorites,
// collection entries and downloads.
type imageRequest struct {
	ImageID         string `json:"imageId"`
	ImageURL        string `json:"imageUrl"`
	ThumbnailURL    string `json:"thumbnailUrl"`
	Photographer    string `json:"photographer"`
	PhotographerURL string `json:"photographerUrl"`
	Description     string `json:"description"`
}

func (req imageRequest) input() service.ImageInput {
	return service.ImageInput{
		ImageID:         req.ImageID,
		ImageURL:        req.ImageURL,
		ThumbnailURL:    req.ThumbnailURL,
		Photographer:    req.Photographer,
		PhotographerURL: req.PhotographerURL,
		Description:     req.Description,
	}
}

type favoriteRequest struct {
	imageRequest
	Tags []string `json:"tags"`
}

// HandleCreate adds an image to the user's favorites.
//
// HTTP: POST /api/favorites → 201, or 409 if already favorited
func (h *FavoriteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var req favoriteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	fav, err := h.svc.Add(r.Context(), user.ID, req.input(), req.Tags)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fav)
}

// HTTP: GET /api/favorites
func (h *FavoriteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
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

	favs, err := h.svc.List(r.Context(), user.ID, opts)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, favs)
}

type favoriteStatusResponse struct {
	IsFavorite bool            `json:"isFavorite"`
	Favorite   *model.Favorite `json:"favorite,omitempty"`
}

// HTTP: GET /api/favorites/{imageId}/status
func (h *FavoriteHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	fav, ok, err := h.svc.Status(r.Context(), user.ID, chi.URLParam(r, "imageId"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, favoriteStatusResponse{IsFavorite: ok, Favorite: fav})
}

// HandleDelete removes a favorite by its record id or by image id.
//
// HTTP: DELETE /api/favorites/{id}
func (h *FavoriteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	if err := h.svc.Remove(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Removed from favorites"})
}
