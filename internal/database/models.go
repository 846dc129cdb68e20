package database

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type MenuItem struct {
	ID        uuid.UUID
	Name      string
	Price     pgtype.Numeric
	Category  string
	GroupCode pgtype.Text
	GroupName pgtype.Text
	Available bool
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

type Table struct {
	ID             uuid.UUID
	Name           string
	RowLabel       pgtype.Text
	Status         string
	CurrentOrderID pgtype.UUID
	CreatedAt      pgtype.Timestamptz
}

type Order struct {
	ID             uuid.UUID
	TableID        uuid.UUID
	OrderCode      string
	Status         string
	BillNote       pgtype.Text
	Discount       pgtype.Numeric
	ExtraFee       pgtype.Numeric
	Total          pgtype.Numeric
	PaymentMethod  pgtype.Text
	AmountReceived pgtype.Numeric
	CreatedBy      pgtype.UUID
	CreatedAt      pgtype.Timestamptz
	PaidAt         pgtype.Timestamptz
}

type OrderItem struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	Name          string
	Quantity      int32
	Note          pgtype.Text
	Status        string
	IsCustom      bool
	Price         pgtype.Numeric // frozen at order time for custom items; NULL means "use catalog"
	CreatedAt     pgtype.Timestamptz
	PrintQueuedAt pgtype.Timestamptz
	PrintedAt     pgtype.Timestamptz
}

type OrderHistory struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Action    string
	Detail    pgtype.Text
	ActorID   pgtype.UUID
	CreatedAt pgtype.Timestamptz
}

type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	IsActive       bool
	CreatedAt      pgtype.Timestamptz
}

type PrintJob struct {
	ID        uuid.UUID
	OrderID   pgtype.UUID
	Printer   string
	Kind      string
	Payload   []byte
	Status    string
	Attempts  int32
	LastError pgtype.Text
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

type ActivityLog struct {
	ID        uuid.UUID
	ActorID   pgtype.UUID
	ActorName pgtype.Text
	Action    string
	Detail    pgtype.Text
	CreatedAt pgtype.Timestamptz
}
