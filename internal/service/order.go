package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/cbgift/api/internal/database"
	"github.com/cbgift/api/internal/status"
)

const maxOrderCodeRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyDetails     = errors.New("details are required")
	ErrInvalidQuantity  = errors.New("quantity must be > 0")
	ErrInvalidUnitPrice = errors.New("invalid unit_price")
	ErrMissingProduct   = errors.New("product_name is required")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create orders.
// Satisfied by *database.Queries (pool- or tx-backed).
type OrderStore interface {
	GetNextOrderNumber(ctx context.Context) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderDetail(ctx context.Context, arg database.CreateOrderDetailParams) (database.OrderDetail, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx), so the
// service can run queries inside the transaction it opens.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	SellerID        uuid.UUID
	CustomerName    string
	ShippingAddress string
	Details         []CreateOrderDetailRequest
}

// CreateOrderDetailRequest is a single product line in the order.
type CreateOrderDetailRequest struct {
	ProductName string
	Quantity    int32
	UnitPrice   string
	LinkImg     string
	Note        string
}

// CreateOrderResult is the full created order with its details.
type CreateOrderResult struct {
	Order   database.Order
	Details []database.OrderDetail
}

// OrderService handles order creation.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// CreateOrder validates, totals, and creates an order with its details
// atomically. Every detail starts in Draft. Retries up to
// maxOrderCodeRetries times on order_code unique constraint violations
// (concurrent transactions can read the same MAX sequence).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Details) == 0 {
		return nil, ErrEmptyDetails
	}
	for i, d := range req.Details {
		if d.ProductName == "" {
			return nil, fmt.Errorf("details[%d]: %w", i, ErrMissingProduct)
		}
		if d.Quantity <= 0 {
			return nil, fmt.Errorf("details[%d]: %w", i, ErrInvalidQuantity)
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderCodeRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isOrderCodeConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderCodeConflict checks if the error is a unique constraint violation
// on the order code (pgconn error code 23505).
func isOrderCodeConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_code_key"
	}
	return false
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	nextNum, err := store.GetNextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	orderCode := fmt.Sprintf("CBG-%05d", nextNum)

	// Validate prices and compute the order total
	total := decimal.Zero
	prices := make([]decimal.Decimal, len(req.Details))
	for i, d := range req.Details {
		price, err := decimal.NewFromString(d.UnitPrice)
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("details[%d]: %w", i, ErrInvalidUnitPrice)
		}
		prices[i] = price
		total = total.Add(price.Mul(decimal.NewFromInt32(d.Quantity)))
	}

	customerName := pgtype.Text{}
	if req.CustomerName != "" {
		customerName = pgtype.Text{String: req.CustomerName, Valid: true}
	}
	shippingAddress := pgtype.Text{}
	if req.ShippingAddress != "" {
		shippingAddress = pgtype.Text{String: req.ShippingAddress, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderCode:       orderCode,
		SellerID:        req.SellerID,
		CustomerName:    customerName,
		ShippingAddress: shippingAddress,
		Status:          int32(status.Draft),
		TotalAmount:     decimalToNumeric(total),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	details := make([]database.OrderDetail, 0, len(req.Details))
	for i, d := range req.Details {
		linkImg := pgtype.Text{}
		if d.LinkImg != "" {
			linkImg = pgtype.Text{String: d.LinkImg, Valid: true}
		}
		note := pgtype.Text{}
		if d.Note != "" {
			note = pgtype.Text{String: d.Note, Valid: true}
		}

		detail, err := store.CreateOrderDetail(ctx, database.CreateOrderDetailParams{
			OrderID:          order.ID,
			ProductName:      d.ProductName,
			Quantity:         d.Quantity,
			UnitPrice:        decimalToNumeric(prices[i]),
			ProductionStatus: int32(status.Draft),
			LinkImg:          linkImg,
			Note:             note,
		})
		if err != nil {
			return nil, fmt.Errorf("create order detail: %w", err)
		}
		details = append(details, detail)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Details: details}, nil
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
