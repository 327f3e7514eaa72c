package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const detailColumns = `id, order_id, product_name, quantity, unit_price, production_status, designer_id,
	link_file_design, link_thank_card, link_img, note, reason, assigned_at, created_at, updated_at`

func scanDetail(row interface{ Scan(...any) error }) (OrderDetail, error) {
	var d OrderDetail
	err := row.Scan(&d.ID, &d.OrderID, &d.ProductName, &d.Quantity, &d.UnitPrice,
		&d.ProductionStatus, &d.DesignerID, &d.LinkFileDesign, &d.LinkThankCard,
		&d.LinkImg, &d.Note, &d.Reason, &d.AssignedAt, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

const taskColumns = `d.id, d.order_id, d.product_name, d.quantity, d.unit_price, d.production_status, d.designer_id,
	d.link_file_design, d.link_thank_card, d.link_img, d.note, d.reason, d.assigned_at, d.created_at, d.updated_at,
	o.order_code, o.status`

func scanTaskRow(row interface{ Scan(...any) error }) (TaskRow, error) {
	var t TaskRow
	err := row.Scan(&t.ID, &t.OrderID, &t.ProductName, &t.Quantity, &t.UnitPrice,
		&t.ProductionStatus, &t.DesignerID, &t.LinkFileDesign, &t.LinkThankCard,
		&t.LinkImg, &t.Note, &t.Reason, &t.AssignedAt, &t.CreatedAt, &t.UpdatedAt,
		&t.OrderCode, &t.OrderStatus)
	return t, err
}

// CreateOrderDetailParams are the inputs for CreateOrderDetail.
type CreateOrderDetailParams struct {
	OrderID          uuid.UUID
	ProductName      string
	Quantity         int32
	UnitPrice        pgtype.Numeric
	ProductionStatus int32
	LinkImg          pgtype.Text
	Note             pgtype.Text
}

// CreateOrderDetail inserts a detail and returns the stored row.
func (q *Queries) CreateOrderDetail(ctx context.Context, arg CreateOrderDetailParams) (OrderDetail, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO order_details (order_id, product_name, quantity, unit_price, production_status, link_img, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+detailColumns,
		arg.OrderID, arg.ProductName, arg.Quantity, arg.UnitPrice, arg.ProductionStatus, arg.LinkImg, arg.Note)
	return scanDetail(row)
}

// GetOrderDetail fetches one detail by primary key.
func (q *Queries) GetOrderDetail(ctx context.Context, id uuid.UUID) (OrderDetail, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+detailColumns+` FROM order_details WHERE id = $1`, id)
	return scanDetail(row)
}

// GetTask fetches one detail joined with its order.
func (q *Queries) GetTask(ctx context.Context, id uuid.UUID) (TaskRow, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM order_details d JOIN orders o ON o.id = d.order_id
		WHERE d.id = $1`, id)
	return scanTaskRow(row)
}

// ListOrderDetailsByOrder returns all details of one order, oldest first.
func (q *Queries) ListOrderDetailsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderDetail, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+detailColumns+` FROM order_details WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []OrderDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// ListTasksByDesigner returns the details assigned to a designer, most
// recently assigned first.
func (q *Queries) ListTasksByDesigner(ctx context.Context, designerID uuid.UUID) ([]TaskRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM order_details d JOIN orders o ON o.id = d.order_id
		WHERE d.designer_id = $1
		ORDER BY d.assigned_at DESC`, designerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []TaskRow
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListHoldDetails returns details waiting for manager refund/reprint
// review (statuses passed by the caller).
func (q *Queries) ListHoldDetails(ctx context.Context, statuses []int32) ([]TaskRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM order_details d JOIN orders o ON o.id = d.order_id
		WHERE d.production_status = ANY($1)
		ORDER BY d.updated_at DESC`, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []TaskRow
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateProductionStatusParams are the inputs for UpdateProductionStatus.
// CurrentStatus is the status the caller read; the update only applies if
// the stored row still carries it.
type UpdateProductionStatusParams struct {
	ID            uuid.UUID
	Status        int32
	CurrentStatus int32
	Reason        pgtype.Text
}

// UpdateProductionStatus is a compare-and-swap on the detail status. When
// no row matches (status moved between the caller's read and this write)
// pgx.ErrNoRows is returned and the caller maps it to a conflict.
func (q *Queries) UpdateProductionStatus(ctx context.Context, arg UpdateProductionStatusParams) (OrderDetail, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE order_details
		SET production_status = $2, reason = COALESCE($4, reason), updated_at = now()
		WHERE id = $1 AND production_status = $3
		RETURNING `+detailColumns,
		arg.ID, arg.Status, arg.CurrentStatus, arg.Reason)
	return scanDetail(row)
}

// AssignDesignerParams are the inputs for AssignDesigner.
type AssignDesignerParams struct {
	ID         uuid.UUID
	DesignerID uuid.UUID
	Status     int32
}

// AssignDesigner attaches a designer to a detail, stamps assigned_at and
// moves it into the design queue.
func (q *Queries) AssignDesigner(ctx context.Context, arg AssignDesignerParams) (OrderDetail, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE order_details
		SET designer_id = $2, production_status = $3, assigned_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING `+detailColumns,
		arg.ID, arg.DesignerID, arg.Status)
	return scanDetail(row)
}

// SetDesignLinkParams are the inputs for SetDesignLink.
type SetDesignLinkParams struct {
	ID             uuid.UUID
	LinkFileDesign pgtype.Text
	Note           pgtype.Text
}

// SetDesignLink records an uploaded design artifact on the detail.
func (q *Queries) SetDesignLink(ctx context.Context, arg SetDesignLinkParams) (OrderDetail, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE order_details
		SET link_file_design = $2, note = COALESCE($3, note), updated_at = now()
		WHERE id = $1
		RETURNING `+detailColumns,
		arg.ID, arg.LinkFileDesign, arg.Note)
	return scanDetail(row)
}
