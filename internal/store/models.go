package store

import (
	"time"

	"github.com/uptrace/bun"
)

// Order statuses accepted by UpdateOrderStatus.
const (
	StatusPending   = "pending"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusServed    = "served"
	StatusCancelled = "cancelled"
)

var validStatuses = map[string]bool{
	StatusPending:   true,
	StatusPreparing: true,
	StatusReady:     true,
	StatusServed:    true,
	StatusCancelled: true,
}

// Category groups menu items.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID        int64     `bun:",pk,autoincrement" json:"id"`
	Name      string    `bun:",notnull,unique" json:"name"`
	Position  int       `bun:",notnull" json:"position"`
	CreatedAt time.Time `bun:",notnull" json:"created_at"`
}

// MenuItem is a dish offered in a category.
type MenuItem struct {
	bun.BaseModel `bun:"table:menu_items,alias:m"`

	ID          int64     `bun:",pk,autoincrement" json:"id"`
	CategoryID  int64     `bun:",notnull" json:"category_id"`
	Name        string    `bun:",notnull" json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `bun:",notnull" json:"price_cents"`
	Available   bool      `bun:",notnull" json:"available"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `bun:",notnull" json:"created_at"`
	UpdatedAt   time.Time `bun:",notnull" json:"updated_at"`
}

// OrderLine is one menu item on an order.
type OrderLine struct {
	MenuItemID int64 `json:"menu_item_id"`
	Quantity   int   `json:"quantity"`
	PriceCents int64 `json:"price_cents"`
}

// Order is a customer order. Lines are stored as JSON.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID         int64       `bun:",pk,autoincrement" json:"id"`
	Customer   string      `bun:",notnull" json:"customer"`
	Lines      []OrderLine `bun:",type:json" json:"lines"`
	TotalCents int64       `bun:",notnull" json:"total_cents"`
	Status     string      `bun:",notnull" json:"status"`
	CreatedAt  time.Time   `bun:",notnull" json:"created_at"`
	UpdatedAt  time.Time   `bun:",notnull" json:"updated_at"`
}

// OrderPage is one page of orders plus the total order count.
type OrderPage struct {
	Orders []Order `json:"orders"`
	Total  int     `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}
