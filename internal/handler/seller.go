package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/cbgift/api/internal/database"
	"github.com/cbgift/api/internal/middleware"
	"github.com/cbgift/api/internal/service"
	"github.com/cbgift/api/internal/status"
	"github.com/cbgift/api/internal/validation"
)

// OrderServicer defines the service methods needed to create orders.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
}

// ReviewServicer defines the workflow methods needed by seller handlers.
// Satisfied by *service.DesignService.
type ReviewServicer interface {
	ReviewDetail(ctx context.Context, role status.Role, detailID uuid.UUID, target status.Code, reason string) (database.OrderDetail, error)
	ReviewOrder(ctx context.Context, role status.Role, orderID uuid.UUID, target status.Code, reason string) ([]database.OrderDetail, error)
	RequestHold(ctx context.Context, detailID uuid.UUID, target status.Code, reason string) (database.OrderDetail, error)
}

// SellerStore defines the database methods needed by seller read handlers.
// Satisfied by *database.Queries.
type SellerStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	CountOrders(ctx context.Context, arg database.ListOrdersParams) (int64, error)
	ListOrderDetailsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderDetail, error)
}

// SellerHandler handles the seller order endpoints.
type SellerHandler struct {
	orderSvc OrderServicer
	reviews  ReviewServicer
	store    SellerStore
	validate *validatorv10.Validate
}

// NewSellerHandler creates a new SellerHandler.
func NewSellerHandler(orderSvc OrderServicer, reviews ReviewServicer, store SellerStore, v *validatorv10.Validate) *SellerHandler {
	return &SellerHandler{orderSvc: orderSvc, reviews: reviews, store: store, validate: v}
}

// RegisterRoutes registers seller endpoints on the given Chi router.
// Expected to be mounted under /seller with SELLER role enforced.
func (h *SellerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/orders", h.Create)
	r.Get("/orders/{orderId}", h.Get)
	r.Put("/orders/{orderId}/approve-or-reject-design", h.ApproveOrRejectDesign)
	r.Put("/order/order-details/{orderDetailId}/design-status", h.UpdateDesignStatus)
}

// --- Request / Response types ---

type createOrderRequest struct {
	CustomerName    string                     `json:"customerName" validate:"required"`
	ShippingAddress string                     `json:"shippingAddress"`
	Details         []createOrderDetailRequest `json:"details" validate:"required,min=1,dive"`
}

type createOrderDetailRequest struct {
	ProductName string `json:"productName" validate:"required"`
	Quantity    int32  `json:"quantity" validate:"required,gt=0"`
	UnitPrice   string `json:"unitPrice" validate:"required"`
	LinkImg     string `json:"linkImg"`
	Note        string `json:"note"`
}

type reviewRequest struct {
	Status int32  `json:"productionStatus"`
	Reason string `json:"reason"`
}

type orderResponse struct {
	OrderID         uuid.UUID        `json:"orderId"`
	OrderCode       string           `json:"orderCode"`
	CustomerName    *string          `json:"customerName,omitempty"`
	ShippingAddress *string          `json:"shippingAddress,omitempty"`
	Status          int32            `json:"status"`
	StatusName      string           `json:"statusName"`
	TotalAmount     string           `json:"totalAmount"`
	OrderDate       time.Time        `json:"orderDate"`
	Details         []detailResponse `json:"details,omitempty"`
}

// orderListResponse wraps a list of orders with the total matching the
// filters, so clients can page without a second request.
type orderListResponse struct {
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
	Orders   []orderResponse `json:"orders"`
}

// --- Handlers ---

// Create handles POST /seller/orders.
func (h *SellerHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := validation.BindAndValidate(w, r, &req, h.validate); err != nil {
		return
	}

	details := make([]service.CreateOrderDetailRequest, len(req.Details))
	for i, d := range req.Details {
		details[i] = service.CreateOrderDetailRequest{
			ProductName: d.ProductName,
			Quantity:    d.Quantity,
			UnitPrice:   d.UnitPrice,
			LinkImg:     d.LinkImg,
			Note:        d.Note,
		}
	}

	result, err := h.orderSvc.CreateOrder(r.Context(), service.CreateOrderRequest{
		SellerID:        claims.UserID,
		CustomerName:    req.CustomerName,
		ShippingAddress: req.ShippingAddress,
		Details:         details,
	})
	if err != nil {
		if isOrderValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: create order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := orderToResponse(result.Order)
	resp.Details = make([]detailResponse, len(result.Details))
	for i, d := range result.Details {
		resp.Details[i] = detailToResponse(d)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /seller.
// Search matches order code and customer name, case-insensitively. Date
// bounds are inclusive; a bare toDate covers its whole day.
func (h *SellerHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	q := r.URL.Query()

	page := 1
	if s := q.Get("page"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			page = v
		}
	}
	pageSize := 20
	if s := q.Get("pageSize"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			pageSize = v
		}
	}
	if pageSize > 100 {
		pageSize = 100
	}

	params := database.ListOrdersParams{
		SellerID:      pgtype.UUID{Bytes: claims.UserID, Valid: true},
		SearchTerm:    q.Get("searchTerm"),
		SortColumn:    q.Get("sortColumn"),
		SortDirection: q.Get("sortDirection"),
		Limit:         int32(pageSize),
		Offset:        int32((page - 1) * pageSize),
	}

	if s := q.Get("status"); s != "" && s != "all" {
		v, err := strconv.Atoi(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		params.Status = pgtype.Int4{Int32: int32(v), Valid: true}
	}

	if s := q.Get("fromDate"); s != "" {
		from, err := parseDateParam(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid fromDate filter"})
			return
		}
		params.FromDate = pgtype.Timestamptz{Time: from, Valid: true}
	}
	if s := q.Get("toDate"); s != "" {
		to, err := parseDateParam(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid toDate filter"})
			return
		}
		// A bare date means "through the end of that day".
		if len(s) == len("2006-01-02") {
			to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		params.ToDate = pgtype.Timestamptz{Time: to, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	total, err := h.store.CountOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: count orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = orderToResponse(o)
	}
	writeJSON(w, http.StatusOK, orderListResponse{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Orders:   resp,
	})
}

// Get handles GET /seller/orders/{orderId}.
func (h *SellerHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Sellers only see their own orders.
	if order.SellerID != claims.UserID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}

	details, err := h.store.ListOrderDetailsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order details: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := orderToResponse(order)
	resp.Details = make([]detailResponse, len(details))
	for i, d := range details {
		resp.Details[i] = detailToResponse(d)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ApproveOrRejectDesign handles PUT /seller/orders/{orderId}/approve-or-reject-design.
// One decision applied to every detail of the order awaiting design check.
func (h *SellerHandler) ApproveOrRejectDesign(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	updated, err := h.reviews.ReviewOrder(r.Context(), status.Role(claims.Role), orderID, status.Code(req.Status), req.Reason)
	if err != nil {
		respondServiceError(w, err, "review order")
		return
	}

	resp := make([]detailResponse, len(updated))
	for i, d := range updated {
		resp[i] = detailToResponse(d)
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateDesignStatus handles PUT /seller/order/order-details/{orderDetailId}/design-status.
// Covers both the per-line design review (approve/reject) and flagging a
// shipped item for refund or reprint.
func (h *SellerHandler) UpdateDesignStatus(w http.ResponseWriter, r *http.Request) {
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

	target := status.Code(req.Status)
	var detail database.OrderDetail
	if target == status.HoldRefund || target == status.HoldReprint {
		detail, err = h.reviews.RequestHold(r.Context(), detailID, target, req.Reason)
	} else {
		detail, err = h.reviews.ReviewDetail(r.Context(), status.Role(claims.Role), detailID, target, req.Reason)
	}
	if err != nil {
		respondServiceError(w, err, "update design status")
		return
	}

	writeJSON(w, http.StatusOK, detailToResponse(detail))
}

// --- Helpers ---

// parseDateParam accepts RFC 3339 timestamps or bare dates.
func parseDateParam(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func isOrderValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyDetails) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidUnitPrice) ||
		errors.Is(err, service.ErrMissingProduct)
}

func orderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		OrderID:     o.ID,
		OrderCode:   o.OrderCode,
		Status:      o.Status,
		StatusName:  status.Code(o.Status).String(),
		TotalAmount: numericToString(o.TotalAmount),
		OrderDate:   o.OrderDate,
	}
	if o.CustomerName.Valid {
		resp.CustomerName = &o.CustomerName.String
	}
	if o.ShippingAddress.Valid {
		resp.ShippingAddress = &o.ShippingAddress.String
	}
	return resp
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
