package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// User is an account in one of the workflow roles (SELLER, DESIGNER,
// MANAGER).
type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Order is a customer order owning one or more order details. Status is the
// order-level production status, recomputed from detail statuses after
// every detail mutation; it may lag individual details.
type Order struct {
	ID              uuid.UUID
	OrderCode       string
	SellerID        uuid.UUID
	CustomerName    pgtype.Text
	ShippingAddress pgtype.Text
	Status          int32
	TotalAmount     pgtype.Numeric
	OrderDate       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderDetail is one product line within an order. ProductionStatus holds a
// status wire code (0-16); it is only ever mutated through a
// compare-and-swap update.
type OrderDetail struct {
	ID               uuid.UUID
	OrderID          uuid.UUID
	ProductName      string
	Quantity         int32
	UnitPrice        pgtype.Numeric
	ProductionStatus int32
	DesignerID       pgtype.UUID
	LinkFileDesign   pgtype.Text
	LinkThankCard    pgtype.Text
	LinkImg          pgtype.Text
	Note             pgtype.Text
	Reason           pgtype.Text
	AssignedAt       pgtype.Timestamptz
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TaskRow is an order detail joined with its order, as served to designer
// task lists and manager hold queues.
type TaskRow struct {
	OrderDetail
	OrderCode   string
	OrderStatus int32
}
