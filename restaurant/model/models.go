package model

import (
	"time"

	"github.com/uptrace/bun"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
)

// Cancellable reports whether a reservation in this status may still be
// cancelled. Completed and cancelled reservations are immutable.
func (s ReservationStatus) Cancellable() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

// Holding reports whether a reservation in this status occupies its table
// slot for availability purposes.
func (s ReservationStatus) Holding() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderPending   OrderStatus = "pending"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// Cancellable reports whether an order in this status may still be
// cancelled. Once ready or completed it cannot.
func (s OrderStatus) Cancellable() bool {
	return s == OrderOpen || s == OrderPending || s == OrderPreparing
}

type OrderType string

const (
	OrderTakeaway OrderType = "takeaway"
	OrderDelivery OrderType = "delivery"
)

func ValidOrderType(s string) bool {
	return OrderType(s) == OrderTakeaway || OrderType(s) == OrderDelivery
}

// Client is a shared reference entity, created on first contact and never
// deleted. Phone is the primary lookup key.
type Client struct {
	bun.BaseModel `bun:"table:clients,alias:c"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Phone     string    `bun:"phone,notnull,unique" json:"phone"`
	Email     string    `bun:"email,nullzero" json:"email,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Table is static-ish reference data; capacity and the active flag govern
// booking eligibility.
type Table struct {
	bun.BaseModel `bun:"table:tables,alias:t"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	TableNumber int    `bun:"table_number,notnull,unique" json:"table_number"`
	Capacity    int    `bun:"capacity,notnull" json:"capacity"`
	Location    string `bun:"location,nullzero" json:"location,omitempty"`
	Active      bool   `bun:"active,notnull" json:"active"`
}

type Reservation struct {
	bun.BaseModel `bun:"table:reservations,alias:r"`

	ID             int64             `bun:"id,pk,autoincrement" json:"id"`
	ClientID       int64             `bun:"client_id,notnull" json:"client_id"`
	TableID        int64             `bun:"table_id,notnull" json:"table_id"`
	Date           string            `bun:"date,notnull" json:"date"` // YYYY-MM-DD
	Time           string            `bun:"time,notnull" json:"time"` // HH:MM
	PartySize      int               `bun:"party_size,notnull" json:"party_size"`
	Status         ReservationStatus `bun:"status,notnull" json:"status"`
	SpecialRequest string            `bun:"special_request,nullzero" json:"special_request,omitempty"`
	CreatedAt      time.Time         `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time         `bun:"updated_at,notnull" json:"updated_at"`
}

// MenuItem is reference data mutated only by menu administration.
type MenuItem struct {
	bun.BaseModel `bun:"table:menu_items,alias:mi"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Category    string    `bun:"category,notnull" json:"category"`
	Description string    `bun:"description,nullzero" json:"description,omitempty"`
	Price       float64   `bun:"price,notnull" json:"price"`
	Available   bool      `bun:"available,notnull" json:"available"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID           int64       `bun:"id,pk,autoincrement" json:"id"`
	ClientID     int64       `bun:"client_id,notnull" json:"client_id"`
	Date         string      `bun:"date,notnull" json:"date"`
	Status       OrderStatus `bun:"status,notnull" json:"status"`
	Total        float64     `bun:"total,notnull" json:"total"`
	OrderType    OrderType   `bun:"order_type,notnull" json:"order_type"`
	Instructions string      `bun:"instructions,nullzero" json:"instructions,omitempty"`
	CreatedAt    time.Time   `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt    time.Time   `bun:"updated_at,notnull" json:"updated_at"`
}

// OrderItem captures unit price at add-time; it stays fixed even if the
// menu item's price later changes.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID         int64   `bun:"id,pk,autoincrement" json:"id"`
	OrderID    int64   `bun:"order_id,notnull" json:"order_id"`
	MenuItemID int64   `bun:"menu_item_id,notnull" json:"menu_item_id"`
	Quantity   int     `bun:"quantity,notnull" json:"quantity"`
	UnitPrice  float64 `bun:"unit_price,notnull" json:"unit_price"`
	Note       string  `bun:"note,nullzero" json:"note,omitempty"`
}

// Subtotal is the line contribution to the order total.
func (i OrderItem) Subtotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}
