package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Table struct {
	ID          uuid.UUID
	TableNumber int32
	Capacity    int32
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type KitchenSection struct {
	ID         uuid.UUID
	Name       string
	Categories []string
	CreatedAt  time.Time
}

type MenuItem struct {
	ID        uuid.UUID
	Name      string
	Category  string
	Price     pgtype.Numeric
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Bill struct {
	ID             uuid.UUID
	TableID        uuid.UUID
	Subtotal       pgtype.Numeric
	DiscountType   pgtype.Text
	DiscountValue  pgtype.Numeric
	DiscountAmount pgtype.Numeric
	FinalPrice     pgtype.Numeric
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Order struct {
	ID            uuid.UUID
	BillID        uuid.UUID
	StaffID       uuid.UUID
	TotalPrice    pgtype.Numeric
	HasBeenServed bool
	IsCanceled    bool
	CancelReason  pgtype.Text
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderItem struct {
	ID               uuid.UUID
	OrderID          uuid.UUID
	MenuItemID       uuid.UUID
	KitchenSectionID pgtype.UUID
	Quantity         int32
	LinePrice        pgtype.Numeric
	Notes            pgtype.Text
	Status           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
