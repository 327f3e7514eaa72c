package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cbgift/api/internal/database"
	"github.com/cbgift/api/internal/status"
	"github.com/cbgift/api/internal/ws"
)

// Errors returned by the design service. Handlers map these to HTTP
// statuses with errors.Is.
var (
	ErrDetailNotFound       = errors.New("order detail not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrNotAssigned          = errors.New("task is not assigned to this designer")
	ErrInvalidStatus        = errors.New("invalid status code")
	ErrTransitionNotAllowed = errors.New("status transition not allowed for this role")
	ErrReviewNotReady       = errors.New("order is not flagged for design review")
	ErrStatusConflict       = errors.New("status changed concurrently, re-fetch and retry")
	ErrNotDesigner          = errors.New("assignee is not a designer")
	ErrAlreadyInDesign      = errors.New("detail is already past the design queue")
	ErrNothingToReview      = errors.New("order has no details awaiting design check")
)

// DesignStore defines the DB methods needed by the design workflow.
// Satisfied by *database.Queries; narrow interface for testability.
type DesignStore interface {
	GetTask(ctx context.Context, id uuid.UUID) (database.TaskRow, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	ListTasksByDesigner(ctx context.Context, designerID uuid.UUID) ([]database.TaskRow, error)
	ListOrderDetailsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderDetail, error)
	ListHoldDetails(ctx context.Context, statuses []int32) ([]database.TaskRow, error)
	UpdateProductionStatus(ctx context.Context, arg database.UpdateProductionStatusParams) (database.OrderDetail, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	AssignDesigner(ctx context.Context, arg database.AssignDesignerParams) (database.OrderDetail, error)
	SetDesignLink(ctx context.Context, arg database.SetDesignLinkParams) (database.OrderDetail, error)
}

// Notifier pushes workflow events to connected users. Satisfied by *ws.Hub.
type Notifier interface {
	NotifyUser(userID uuid.UUID, eventType string, payload any)
}

// StatusChangedPayload is pushed on the status_changed event.
type StatusChangedPayload struct {
	OrderDetailID uuid.UUID `json:"orderDetailId"`
	OrderID       uuid.UUID `json:"orderId"`
	OrderCode     string    `json:"orderCode"`
	ProductName   string    `json:"productName"`
	Status        int32     `json:"productionStatus"`
	StatusName    string    `json:"statusName"`
}

// TaskAssignedPayload is pushed to a designer on the task_assigned event.
type TaskAssignedPayload struct {
	OrderDetailID uuid.UUID `json:"orderDetailId"`
	OrderCode     string    `json:"orderCode"`
	ProductName   string    `json:"productName"`
}

// DesignService owns the design/production status workflow: role-gated
// transitions, compare-and-swap writes, order-level status derivation and
// notifications.
type DesignService struct {
	store    DesignStore
	notifier Notifier
}

// NewDesignService creates a new DesignService.
func NewDesignService(store DesignStore, notifier Notifier) *DesignService {
	return &DesignService{store: store, notifier: notifier}
}

// Tasks returns the details assigned to one designer, most recently
// assigned first.
func (s *DesignService) Tasks(ctx context.Context, designerID uuid.UUID) ([]database.TaskRow, error) {
	return s.store.ListTasksByDesigner(ctx, designerID)
}

// UpdateTaskStatus moves one of the designer's tasks to target. The
// transition is checked against the designer table, then applied as a
// compare-and-swap on the status the designer last saw.
func (s *DesignService) UpdateTaskStatus(ctx context.Context, designerID, detailID uuid.UUID, target status.Code) (database.OrderDetail, error) {
	if !status.IsValid(target) {
		return database.OrderDetail{}, ErrInvalidStatus
	}

	task, err := s.store.GetTask(ctx, detailID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderDetail{}, ErrDetailNotFound
		}
		return database.OrderDetail{}, fmt.Errorf("get task: %w", err)
	}
	if !task.DesignerID.Valid || uuid.UUID(task.DesignerID.Bytes) != designerID {
		return database.OrderDetail{}, ErrNotAssigned
	}

	current := status.Code(task.ProductionStatus)
	if !status.CanTransition(current, target, status.RoleDesigner) {
		return database.OrderDetail{}, fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, current, target)
	}

	detail, err := s.casUpdate(ctx, detailID, current, target, "")
	if err != nil {
		return database.OrderDetail{}, err
	}

	if err := s.recomputeOrderStatus(ctx, task.OrderID); err != nil {
		return database.OrderDetail{}, err
	}

	s.notifySeller(ctx, task, detail)
	return detail, nil
}

// SubmitDesign records a design artifact URL on the task and moves it to
// CheckDesign. Allowed while the task is Designing or DesignRedo.
func (s *DesignService) SubmitDesign(ctx context.Context, designerID, detailID uuid.UUID, fileURL, note string) (database.OrderDetail, error) {
	task, err := s.store.GetTask(ctx, detailID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderDetail{}, ErrDetailNotFound
		}
		return database.OrderDetail{}, fmt.Errorf("get task: %w", err)
	}
	if !task.DesignerID.Valid || uuid.UUID(task.DesignerID.Bytes) != designerID {
		return database.OrderDetail{}, ErrNotAssigned
	}

	current := status.Code(task.ProductionStatus)
	if !status.CanTransition(current, status.CheckDesign, status.RoleDesigner) {
		return database.OrderDetail{}, fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, current, status.CheckDesign)
	}

	noteText := pgtype.Text{}
	if note != "" {
		noteText = pgtype.Text{String: note, Valid: true}
	}
	if _, err := s.store.SetDesignLink(ctx, database.SetDesignLinkParams{
		ID:             detailID,
		LinkFileDesign: pgtype.Text{String: fileURL, Valid: true},
		Note:           noteText,
	}); err != nil {
		return database.OrderDetail{}, fmt.Errorf("set design link: %w", err)
	}

	detail, err := s.casUpdate(ctx, detailID, current, status.CheckDesign, "")
	if err != nil {
		return database.OrderDetail{}, err
	}

	if err := s.recomputeOrderStatus(ctx, task.OrderID); err != nil {
		return database.OrderDetail{}, err
	}

	s.notifySeller(ctx, task, detail)
	return detail, nil
}

// ReviewDetail approves or rejects one uploaded design. target must be
// ReadyProd (approve) or DesignRedo (reject); rejections carry a reason.
// The cross-entity gate requires the order itself to be flagged for
// design review before any line item can be judged.
func (s *DesignService) ReviewDetail(ctx context.Context, role status.Role, detailID uuid.UUID, target status.Code, reason string) (database.OrderDetail, error) {
	if !status.IsValid(target) {
		return database.OrderDetail{}, ErrInvalidStatus
	}

	task, err := s.store.GetTask(ctx, detailID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderDetail{}, ErrDetailNotFound
		}
		return database.OrderDetail{}, fmt.Errorf("get task: %w", err)
	}

	current := status.Code(task.ProductionStatus)
	if !status.CanTransition(current, target, role) {
		return database.OrderDetail{}, fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, current, target)
	}
	if !status.CanApproveOrReject(status.Code(task.OrderStatus), current) {
		return database.OrderDetail{}, ErrReviewNotReady
	}

	detail, err := s.casUpdate(ctx, detailID, current, target, reason)
	if err != nil {
		return database.OrderDetail{}, err
	}

	if err := s.recomputeOrderStatus(ctx, task.OrderID); err != nil {
		return database.OrderDetail{}, err
	}

	// On rejection the assigned designer gets the redo back in their queue.
	if target == status.DesignRedo && task.DesignerID.Valid {
		s.notifier.NotifyUser(uuid.UUID(task.DesignerID.Bytes), ws.EventStatusChanged, StatusChangedPayload{
			OrderDetailID: detail.ID,
			OrderID:       detail.OrderID,
			OrderCode:     task.OrderCode,
			ProductName:   detail.ProductName,
			Status:        detail.ProductionStatus,
			StatusName:    status.Code(detail.ProductionStatus).String(),
		})
	}
	return detail, nil
}

// ReviewOrder applies one review decision to every detail of the order
// currently awaiting design check. Used by the seller's whole-order
// approve-or-reject action.
func (s *DesignService) ReviewOrder(ctx context.Context, role status.Role, orderID uuid.UUID, target status.Code, reason string) ([]database.OrderDetail, error) {
	if target != status.ReadyProd && target != status.DesignRedo {
		return nil, ErrInvalidStatus
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !status.CanApproveOrReject(status.Code(order.Status), status.CheckDesign) {
		return nil, ErrReviewNotReady
	}

	details, err := s.store.ListOrderDetailsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order details: %w", err)
	}

	var updated []database.OrderDetail
	for _, d := range details {
		if status.Code(d.ProductionStatus) != status.CheckDesign {
			continue
		}
		detail, err := s.casUpdate(ctx, d.ID, status.CheckDesign, target, reason)
		if err != nil {
			return nil, err
		}
		updated = append(updated, detail)

		if target == status.DesignRedo && d.DesignerID.Valid {
			s.notifier.NotifyUser(uuid.UUID(d.DesignerID.Bytes), ws.EventStatusChanged, StatusChangedPayload{
				OrderDetailID: detail.ID,
				OrderID:       orderID,
				OrderCode:     order.OrderCode,
				ProductName:   detail.ProductName,
				Status:        detail.ProductionStatus,
				StatusName:    status.Code(detail.ProductionStatus).String(),
			})
		}
	}
	if len(updated) == 0 {
		return nil, ErrNothingToReview
	}

	if err := s.recomputeOrderStatus(ctx, orderID); err != nil {
		return nil, err
	}
	return updated, nil
}

// Assign attaches a designer to a detail and queues it as NeedDesign.
// Details already in or past the design flow cannot be reassigned here.
func (s *DesignService) Assign(ctx context.Context, detailID, designerID uuid.UUID) (database.OrderDetail, error) {
	user, err := s.store.GetUserByID(ctx, designerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderDetail{}, ErrNotDesigner
		}
		return database.OrderDetail{}, fmt.Errorf("get user: %w", err)
	}
	if status.Role(user.Role) != status.RoleDesigner {
		return database.OrderDetail{}, ErrNotDesigner
	}

	task, err := s.store.GetTask(ctx, detailID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderDetail{}, ErrDetailNotFound
		}
		return database.OrderDetail{}, fmt.Errorf("get task: %w", err)
	}

	switch status.Code(task.ProductionStatus) {
	case status.Draft, status.Created, status.NeedDesign:
	default:
		return database.OrderDetail{}, ErrAlreadyInDesign
	}

	detail, err := s.store.AssignDesigner(ctx, database.AssignDesignerParams{
		ID:         detailID,
		DesignerID: designerID,
		Status:     int32(status.NeedDesign),
	})
	if err != nil {
		return database.OrderDetail{}, fmt.Errorf("assign designer: %w", err)
	}

	if err := s.recomputeOrderStatus(ctx, task.OrderID); err != nil {
		return database.OrderDetail{}, err
	}

	s.notifier.NotifyUser(designerID, ws.EventTaskAssigned, TaskAssignedPayload{
		OrderDetailID: detail.ID,
		OrderCode:     task.OrderCode,
		ProductName:   detail.ProductName,
	})
	return detail, nil
}

// RequestHold lets a seller flag a shipped item for refund or reprint
// review. target must be HoldRefund or HoldReprint.
func (s *DesignService) RequestHold(ctx context.Context, detailID uuid.UUID, target status.Code, reason string) (database.OrderDetail, error) {
	if !status.IsValid(target) {
		return database.OrderDetail{}, ErrInvalidStatus
	}

	task, err := s.store.GetTask(ctx, detailID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderDetail{}, ErrDetailNotFound
		}
		return database.OrderDetail{}, fmt.Errorf("get task: %w", err)
	}

	current := status.Code(task.ProductionStatus)
	if !status.CanTransition(current, target, status.RoleSeller) {
		return database.OrderDetail{}, fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, current, target)
	}

	detail, err := s.casUpdate(ctx, detailID, current, target, reason)
	if err != nil {
		return database.OrderDetail{}, err
	}

	if err := s.recomputeOrderStatus(ctx, task.OrderID); err != nil {
		return database.OrderDetail{}, err
	}
	return detail, nil
}

// HoldRequests lists the details waiting for a manager's refund/reprint
// decision.
func (s *DesignService) HoldRequests(ctx context.Context) ([]database.TaskRow, error) {
	return s.store.ListHoldDetails(ctx, []int32{
		int32(status.HoldRefund),
		int32(status.HoldReprint),
	})
}

// ResolveHold is the manager's decision on a held item: HoldRefund goes to
// Refund, HoldReprint back to ReadyProd.
func (s *DesignService) ResolveHold(ctx context.Context, detailID uuid.UUID, target status.Code) (database.OrderDetail, error) {
	if !status.IsValid(target) {
		return database.OrderDetail{}, ErrInvalidStatus
	}

	task, err := s.store.GetTask(ctx, detailID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderDetail{}, ErrDetailNotFound
		}
		return database.OrderDetail{}, fmt.Errorf("get task: %w", err)
	}

	current := status.Code(task.ProductionStatus)
	if !status.CanTransition(current, target, status.RoleManager) {
		return database.OrderDetail{}, fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, current, target)
	}

	detail, err := s.casUpdate(ctx, detailID, current, target, "")
	if err != nil {
		return database.OrderDetail{}, err
	}

	if err := s.recomputeOrderStatus(ctx, task.OrderID); err != nil {
		return database.OrderDetail{}, err
	}

	s.notifySeller(ctx, task, detail)
	return detail, nil
}

// casUpdate applies a compare-and-swap status write and maps a lost race
// to ErrStatusConflict.
func (s *DesignService) casUpdate(ctx context.Context, detailID uuid.UUID, current, target status.Code, reason string) (database.OrderDetail, error) {
	reasonText := pgtype.Text{}
	if reason != "" {
		reasonText = pgtype.Text{String: reason, Valid: true}
	}
	detail, err := s.store.UpdateProductionStatus(ctx, database.UpdateProductionStatusParams{
		ID:            detailID,
		Status:        int32(target),
		CurrentStatus: int32(current),
		Reason:        reasonText,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderDetail{}, ErrStatusConflict
		}
		return database.OrderDetail{}, fmt.Errorf("update production status: %w", err)
	}
	return detail, nil
}

// recomputeOrderStatus derives the order-level status from its details:
// any detail awaiting design check flags the whole order for review
// (DesignRedo), otherwise the order sits at the least-advanced detail.
func (s *DesignService) recomputeOrderStatus(ctx context.Context, orderID uuid.UUID) error {
	details, err := s.store.ListOrderDetailsByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("list order details: %w", err)
	}
	if len(details) == 0 {
		return nil
	}

	derived := status.Code(details[0].ProductionStatus)
	flagged := false
	for _, d := range details {
		c := status.Code(d.ProductionStatus)
		if c == status.CheckDesign {
			flagged = true
		}
		if c < derived {
			derived = c
		}
	}
	if flagged {
		derived = status.DesignRedo
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if status.Code(order.Status) == derived {
		return nil
	}
	if _, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:     orderID,
		Status: int32(derived),
	}); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

// notifySeller pushes a status_changed event to the order's seller.
func (s *DesignService) notifySeller(ctx context.Context, task database.TaskRow, detail database.OrderDetail) {
	order, err := s.store.GetOrder(ctx, task.OrderID)
	if err != nil {
		return
	}
	s.notifier.NotifyUser(order.SellerID, ws.EventStatusChanged, StatusChangedPayload{
		OrderDetailID: detail.ID,
		OrderID:       detail.OrderID,
		OrderCode:     task.OrderCode,
		ProductName:   detail.ProductName,
		Status:        detail.ProductionStatus,
		StatusName:    status.Code(detail.ProductionStatus).String(),
	})
}
