package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cbgift/api/internal/database"
	"github.com/cbgift/api/internal/middleware"
	"github.com/cbgift/api/internal/status"
)

// ManagerServicer defines the workflow methods needed by manager handlers.
// Satisfied by *service.DesignService.
type ManagerServicer interface {
	Assign(ctx context.Context, detailID, designerID uuid.UUID) (database.OrderDetail, error)
	HoldRequests(ctx context.Context) ([]database.TaskRow, error)
	ResolveHold(ctx context.Context, detailID uuid.UUID, target status.Code) (database.OrderDetail, error)
	ReviewDetail(ctx context.Context, role status.Role, detailID uuid.UUID, target status.Code, reason string) (database.OrderDetail, error)
}

// ManagerStore defines the database methods needed by manager handlers.
// Satisfied by *database.Queries.
type ManagerStore interface {
	ListUsersByRole(ctx context.Context, role string) ([]database.User, error)
}

// ManagerHandler handles the manager workflow endpoints.
type ManagerHandler struct {
	svc   ManagerServicer
	store ManagerStore
}

// NewManagerHandler creates a new ManagerHandler.
func NewManagerHandler(svc ManagerServicer, store ManagerStore) *ManagerHandler {
	return &ManagerHandler{svc: svc, store: store}
}

// RegisterRoutes registers manager endpoints on the given Chi router.
// Expected to be mounted under /manager with MANAGER role enforced.
func (h *ManagerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/designers", h.Designers)
	r.Get("/hold-requests", h.HoldRequests)
	r.Put("/order-details/{orderDetailId}/assign", h.Assign)
	r.Put("/order-details/{orderDetailId}/resolve-hold", h.ResolveHold)
	r.Put("/order-details/{orderDetailId}/design-status", h.UpdateDesignStatus)
}

// --- Request types ---

type assignRequest struct {
	DesignerID string `json:"designerId"`
}

type resolveHoldRequest struct {
	Status int32 `json:"productionStatus"`
}

// --- Handlers ---

// Designers handles GET /manager/designers, the assignment picker list.
func (h *ManagerHandler) Designers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsersByRole(r.Context(), string(status.RoleDesigner))
	if err != nil {
		log.Printf("ERROR: list designers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = userResponse{ID: u.ID, FullName: u.FullName, Email: u.Email, Role: u.Role}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Assign handles PUT /manager/order-details/{orderDetailId}/assign.
func (h *ManagerHandler) Assign(w http.ResponseWriter, r *http.Request) {
	detailID, err := uuid.Parse(chi.URLParam(r, "orderDetailId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order detail ID"})
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	designerID, err := uuid.Parse(req.DesignerID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid designer ID"})
		return
	}

	detail, err := h.svc.Assign(r.Context(), detailID, designerID)
	if err != nil {
		respondServiceError(w, err, "assign designer")
		return
	}

	writeJSON(w, http.StatusOK, detailToResponse(detail))
}

// HoldRequests handles GET /manager/hold-requests.
func (h *ManagerHandler) HoldRequests(w http.ResponseWriter, r *http.Request) {
	held, err := h.svc.HoldRequests(r.Context())
	if err != nil {
		log.Printf("ERROR: list hold requests: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]detailResponse, len(held))
	for i, t := range held {
		resp[i] = taskToResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResolveHold handles PUT /manager/order-details/{orderDetailId}/resolve-hold.
func (h *ManagerHandler) ResolveHold(w http.ResponseWriter, r *http.Request) {
	detailID, err := uuid.Parse(chi.URLParam(r, "orderDetailId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order detail ID"})
		return
	}

	var req resolveHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	detail, err := h.svc.ResolveHold(r.Context(), detailID, status.Code(req.Status))
	if err != nil {
		respondServiceError(w, err, "resolve hold")
		return
	}

	writeJSON(w, http.StatusOK, detailToResponse(detail))
}

// UpdateDesignStatus handles PUT /manager/order-details/{orderDetailId}/design-status.
// Managers can review uploaded designs the same way sellers do.
func (h *ManagerHandler) UpdateDesignStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	detailID, err := uuid.Parse(chi.URLParam(r, "orderDetailId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order detail ID"})
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	detail, err := h.svc.ReviewDetail(r.Context(), status.Role(claims.Role), detailID, status.Code(req.Status), req.Reason)
	if err != nil {
		respondServiceError(w, err, "review detail")
		return
	}

	writeJSON(w, http.StatusOK, detailToResponse(detail))
}
