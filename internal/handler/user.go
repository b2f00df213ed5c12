package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/service"
)

type UserHandler struct {
	svc    *service.UserService
	logger *slog.Logger
}

func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

// HTTP: GET /api/user/profile
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	u, err := h.svc.Profile(r.Context(), user.ID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type profileRequest struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
	Preferences *struct {
		Theme *model.Theme `json:"theme"`
	} `json:"preferences"`
}

// HTTP: PUT /api/user/profile
// REQUEST BODY: {"displayName": "...", "bio": "...", "preferences": {"theme": "dark"}}
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	in := service.ProfileInput{DisplayName: req.DisplayName, Bio: req.Bio}
	if req.Preferences != nil {
		in.Theme = req.Preferences.Theme
	}

	u, err := h.svc.UpdateProfile(r.Context(), user.ID, in)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HTTP: GET /api/user/dashboard
func (h *UserHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	d, err := h.svc.Dashboard(r.Context(), user.ID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers GET / for load balancers and uptime checks.
type HealthHandler struct {
	db     Pinger
	logger *slog.Logger
}

func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Error("health check: database unreachable", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unavailable",
			"message": "database unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Image search API is running",
	})
}
