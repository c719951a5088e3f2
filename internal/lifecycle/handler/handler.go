// Package handler maps the donation lifecycle onto HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lifeline/internal/lifecycle/models"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/httputil"
	"lifeline/pkg/platform/middleware/request"
)

// Service is the lifecycle surface used by the HTTP layer.
type Service interface {
	Register(ctx context.Context, profile models.UserProfile) (*models.User, error)
	Login(ctx context.Context, phone string) (*models.User, error)
	ListDonors(ctx context.Context, pinCode, bloodType string) ([]*models.User, error)
	CreateRequest(ctx context.Context, draft models.RequestDraft) (*models.Request, error)
	ListRequests(ctx context.Context, pinCode string) ([]*models.Request, error)
	SyncAll(ctx context.Context) (*models.Snapshot, error)
	ListPendingUsers(ctx context.Context) ([]*models.User, error)
	SetUserStatus(ctx context.Context, userID, action string) (*models.User, error)
	ResolveRequest(ctx context.Context, requestID, action string) (*models.Request, error)
}

// Handler serves the /api routes.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Get("/donors", h.handleListDonors)
	r.Post("/request", h.handleCreateRequest)
	r.Get("/requests", h.handleListRequests)
	r.Get("/sync-storage", h.handleSync)
}

// RegisterAdmin mounts the admin routes. The caller wraps r with the admin
// secret middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/pending-users", h.handleListPendingUsers)
	r.Put("/users/{userId}/status", h.handleSetUserStatus)
	r.Put("/approve-user/{userId}", h.handleApproveUser)
	r.Put("/approve-request/{requestId}", h.handleResolveRequest)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	user, err := h.service.Register(ctx, req.Profile())
	if err != nil {
		h.fail(ctx, w, "register failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, UserResponse{User: user})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	user, err := h.service.Login(ctx, req.Phone)
	if err != nil {
		h.fail(ctx, w, "login failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, UserResponse{User: user})
}

func (h *Handler) handleListDonors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	donors, err := h.service.ListDonors(ctx, q.Get("pin"), q.Get("bloodType"))
	if err != nil {
		h.fail(ctx, w, "list donors failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DonorsResponse{Donors: nonNilUsers(donors)})
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateBloodRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	created, err := h.service.CreateRequest(ctx, req.Draft())
	if err != nil {
		h.fail(ctx, w, "create request failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, RequestResponse{Request: created})
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reqs, err := h.service.ListRequests(ctx, r.URL.Query().Get("pin"))
	if err != nil {
		h.fail(ctx, w, "list requests failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RequestsResponse{Requests: nonNilRequests(reqs)})
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.service.SyncAll(ctx)
	if err != nil {
		h.fail(ctx, w, "sync failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SyncResponse{
		Users:    nonNilUsers(snap.Users),
		Requests: nonNilRequests(snap.Requests),
	})
}

func (h *Handler) handleListPendingUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.service.ListPendingUsers(ctx)
	if err != nil {
		h.fail(ctx, w, "list pending users failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, UsersResponse{Users: nonNilUsers(users)})
}

func (h *Handler) handleSetUserStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ActionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	h.setUserStatus(w, r, req.Action)
}

// handleApproveUser keeps the body-less approve route used by existing
// admin clients.
func (h *Handler) handleApproveUser(w http.ResponseWriter, r *http.Request) {
	h.setUserStatus(w, r, string(models.ActionApprove))
}

func (h *Handler) setUserStatus(w http.ResponseWriter, r *http.Request, action string) {
	ctx := r.Context()

	user, err := h.service.SetUserStatus(ctx, chi.URLParam(r, "userId"), action)
	if err != nil {
		h.fail(ctx, w, "set user status failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, UserResponse{User: user})
}

func (h *Handler) handleResolveRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ActionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	resolved, err := h.service.ResolveRequest(ctx, chi.URLParam(r, "requestId"), req.Action)
	if err != nil {
		h.fail(ctx, w, "resolve request failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RequestResponse{Request: resolved})
}

// fail logs at ERROR for 5xx outcomes and WARN otherwise, then writes the
// mapped error response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	status := httputil.StatusFor(dErrors.CodeOf(err))
	attrs := []any{
		"request_id", request.GetRequestID(ctx),
		"status", status,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
