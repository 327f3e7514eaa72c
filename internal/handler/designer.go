package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cbgift/api/internal/database"
	"github.com/cbgift/api/internal/middleware"
	"github.com/cbgift/api/internal/service"
	"github.com/cbgift/api/internal/status"
	"github.com/cbgift/api/internal/storage"
)

// maxDesignUploadBytes caps the multipart design upload size.
const maxDesignUploadBytes = 32 << 20 // 32 MB

// DesignServicer defines the workflow methods needed by designer handlers.
// Satisfied by *service.DesignService; narrow interface for testability.
type DesignServicer interface {
	Tasks(ctx context.Context, designerID uuid.UUID) ([]database.TaskRow, error)
	UpdateTaskStatus(ctx context.Context, designerID, detailID uuid.UUID, target status.Code) (database.OrderDetail, error)
	SubmitDesign(ctx context.Context, designerID, detailID uuid.UUID, fileURL, note string) (database.OrderDetail, error)
}

// DesignerHandler handles the designer task endpoints.
type DesignerHandler struct {
	svc     DesignServicer
	storage storage.FileStorage
}

// NewDesignerHandler creates a new DesignerHandler.
func NewDesignerHandler(svc DesignServicer, fs storage.FileStorage) *DesignerHandler {
	return &DesignerHandler{svc: svc, storage: fs}
}

// RegisterRoutes registers designer endpoints on the given Chi router.
// Expected to be mounted under /designer with DESIGNER role enforced.
func (h *DesignerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tasks", h.Tasks)
	r.Put("/tasks/status/{orderDetailId}", h.UpdateStatus)
	r.Post("/tasks/{orderDetailId}/upload", h.Upload)
}

// --- Request / Response types ---

type updateTaskStatusRequest struct {
	Status int32 `json:"productionStatus"`
}

// detailResponse is the wire shape of one order detail across designer,
// seller and manager endpoints.
type detailResponse struct {
	OrderDetailID  uuid.UUID  `json:"orderDetailId"`
	OrderID        uuid.UUID  `json:"orderId"`
	OrderCode      string     `json:"orderCode,omitempty"`
	ProductName    string     `json:"productName"`
	Quantity       int32      `json:"quantity"`
	Status         int32      `json:"productionStatus"`
	StatusName     string     `json:"statusName"`
	OrderStatus    *int32     `json:"orderStatus,omitempty"`
	DesignerID     *string    `json:"designerId,omitempty"`
	LinkFileDesign *string    `json:"linkFileDesign,omitempty"`
	LinkThankCard  *string    `json:"linkThankCard,omitempty"`
	LinkImg        *string    `json:"linkImg,omitempty"`
	Note           *string    `json:"note,omitempty"`
	Reason         *string    `json:"reason,omitempty"`
	AssignedAt     *time.Time `json:"assignedAt,omitempty"`
}

// --- Handlers ---

// Tasks handles GET /designer/tasks.
func (h *DesignerHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	tasks, err := h.svc.Tasks(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("ERROR: list tasks: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]detailResponse, len(tasks))
	for i, t := range tasks {
		resp[i] = taskToResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PUT /designer/tasks/status/{orderDetailId}.
func (h *DesignerHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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

	var req updateTaskStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	detail, err := h.svc.UpdateTaskStatus(r.Context(), claims.UserID, detailID, status.Code(req.Status))
	if err != nil {
		respondServiceError(w, err, "update task status")
		return
	}

	writeJSON(w, http.StatusOK, detailToResponse(detail))
}

// Upload handles POST /designer/tasks/{orderDetailId}/upload.
// The design artifact arrives either as a multipart file (DesignFile) or
// as an already-hosted URL (FileUrl); exactly one of the two must be set.
func (h *DesignerHandler) Upload(w http.ResponseWriter, r *http.Request) {
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

	if err := r.ParseMultipartForm(maxDesignUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	fileURL := r.FormValue("FileUrl")
	note := r.FormValue("Note")

	file, header, fileErr := r.FormFile("DesignFile")
	hasFile := fileErr == nil

	if hasFile == (fileURL != "") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "provide exactly one of DesignFile or FileUrl"})
		return
	}

	if hasFile {
		defer file.Close()
		uploaded, err := h.storage.Upload(r.Context(), header.Filename, file)
		if err != nil {
			log.Printf("ERROR: upload design file: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store design file"})
			return
		}
		fileURL = uploaded
	}

	detail, err := h.svc.SubmitDesign(r.Context(), claims.UserID, detailID, fileURL, note)
	if err != nil {
		respondServiceError(w, err, "submit design")
		return
	}

	writeJSON(w, http.StatusOK, detailToResponse(detail))
}

// --- Helpers ---

// respondServiceError maps design-service errors to HTTP statuses.
// Unknown errors are logged and reported as 500.
func respondServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrDetailNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrNotAssigned):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrNotDesigner):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrTransitionNotAllowed),
		errors.Is(err, service.ErrReviewNotReady),
		errors.Is(err, service.ErrStatusConflict),
		errors.Is(err, service.ErrAlreadyInDesign),
		errors.Is(err, service.ErrNothingToReview):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func detailToResponse(d database.OrderDetail) detailResponse {
	resp := detailResponse{
		OrderDetailID: d.ID,
		OrderID:       d.OrderID,
		ProductName:   d.ProductName,
		Quantity:      d.Quantity,
		Status:        d.ProductionStatus,
		StatusName:    status.Code(d.ProductionStatus).String(),
	}
	if d.DesignerID.Valid {
		s := uuid.UUID(d.DesignerID.Bytes).String()
		resp.DesignerID = &s
	}
	if d.LinkFileDesign.Valid {
		resp.LinkFileDesign = &d.LinkFileDesign.String
	}
	if d.LinkThankCard.Valid {
		resp.LinkThankCard = &d.LinkThankCard.String
	}
	if d.LinkImg.Valid {
		resp.LinkImg = &d.LinkImg.String
	}
	if d.Note.Valid {
		resp.Note = &d.Note.String
	}
	if d.Reason.Valid {
		resp.Reason = &d.Reason.String
	}
	if d.AssignedAt.Valid {
		resp.AssignedAt = &d.AssignedAt.Time
	}
	return resp
}

func taskToResponse(t database.TaskRow) detailResponse {
	resp := detailToResponse(t.OrderDetail)
	resp.OrderCode = t.OrderCode
	orderStatus := t.OrderStatus
	resp.OrderStatus = &orderStatus
	return resp
}
