package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_code, seller_id, customer_name, shipping_address, status, total_amount, order_date, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderCode, &o.SellerID, &o.CustomerName, &o.ShippingAddress,
		&o.Status, &o.TotalAmount, &o.OrderDate, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// CreateOrderParams are the inputs for CreateOrder.
type CreateOrderParams struct {
	OrderCode       string
	SellerID        uuid.UUID
	CustomerName    pgtype.Text
	ShippingAddress pgtype.Text
	Status          int32
	TotalAmount     pgtype.Numeric
}

// CreateOrder inserts an order and returns the stored row.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (order_code, seller_id, customer_name, shipping_address, status, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+orderColumns,
		arg.OrderCode, arg.SellerID, arg.CustomerName, arg.ShippingAddress, arg.Status, arg.TotalAmount)
	return scanOrder(row)
}

// GetOrder fetches one order by primary key.
func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetNextOrderNumber returns the next order sequence number. The sequence
// is global: order codes share one CBG namespace across all sellers.
// Concurrent transactions can read the same MAX; the caller retries on the
// resulting unique-constraint violation.
func (q *Queries) GetNextOrderNumber(ctx context.Context) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(SUBSTRING(order_code FROM 5) AS INTEGER)), 0) + 1
		FROM orders`).Scan(&n)
	return n, err
}

// ListOrdersParams are the seller list filters. Zero values disable the
// corresponding axis. SortColumn is validated against a whitelist; anything
// else falls back to order_date.
type ListOrdersParams struct {
	SellerID      pgtype.UUID
	SearchTerm    string
	Status        pgtype.Int4
	FromDate      pgtype.Timestamptz
	ToDate        pgtype.Timestamptz
	SortColumn    string
	SortDirection string
	Limit         int32
	Offset        int32
}

// sortColumns whitelists ORDER BY targets; user input never reaches the SQL
// text directly.
var sortColumns = map[string]string{
	"orderCode":    "order_code",
	"customerName": "customer_name",
	"status":       "status",
	"totalAmount":  "total_amount",
	"orderDate":    "order_date",
}

func buildOrderFilter(arg ListOrdersParams) (string, []any) {
	var conds []string
	var args []any

	if arg.SellerID.Valid {
		args = append(args, arg.SellerID)
		conds = append(conds, fmt.Sprintf("seller_id = $%d", len(args)))
	}
	if arg.SearchTerm != "" {
		args = append(args, "%"+arg.SearchTerm+"%")
		conds = append(conds, fmt.Sprintf("(order_code ILIKE $%d OR customer_name ILIKE $%d)", len(args), len(args)))
	}
	if arg.Status.Valid {
		args = append(args, arg.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if arg.FromDate.Valid {
		args = append(args, arg.FromDate)
		conds = append(conds, fmt.Sprintf("order_date >= $%d", len(args)))
	}
	if arg.ToDate.Valid {
		args = append(args, arg.ToDate)
		conds = append(conds, fmt.Sprintf("order_date <= $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	return where, args
}

// ListOrders returns a filtered, sorted page of orders.
func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	where, args := buildOrderFilter(arg)

	col, ok := sortColumns[arg.SortColumn]
	if !ok {
		col = "order_date"
	}
	dir := "DESC"
	if strings.EqualFold(arg.SortDirection, "asc") {
		dir = "ASC"
	}

	args = append(args, arg.Limit)
	limitPos := len(args)
	args = append(args, arg.Offset)
	offsetPos := len(args)

	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		orderColumns, where, col, dir, limitPos, offsetPos)

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// CountOrders returns the total matching the same filters as ListOrders,
// for the list response envelope.
func (q *Queries) CountOrders(ctx context.Context, arg ListOrdersParams) (int64, error) {
	where, args := buildOrderFilter(arg)
	var total int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total)
	return total, err
}

// UpdateOrderStatusParams are the inputs for UpdateOrderStatus.
type UpdateOrderStatusParams struct {
	ID     uuid.UUID
	Status int32
}

// UpdateOrderStatus sets the order-level status. Order status is derived
// from detail statuses by the service; this write is not compare-and-swapped.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		arg.ID, arg.Status)
	return scanOrder(row)
}
