package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LowStockThreshold is the stock level at or below which a book is flagged
// in inventory summaries.
const LowStockThreshold = 5

// Message roles as stored in the session history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Book struct {
	ISBN   string          `json:"isbn"`
	Title  string          `json:"title"`
	Author string          `json:"author"`
	Stock  int             `json:"stock"`
	Price  decimal.Decimal `json:"price"`
}

type Customer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Order struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customerId"`
	OrderDate  time.Time `json:"orderDate"`
}

// OrderItem freezes the book price at order time so historical totals stay
// stable when prices change later.
type OrderItem struct {
	OrderID      int64           `json:"orderId"`
	ISBN         string          `json:"isbn"`
	Qty          int             `json:"qty"`
	PriceAtOrder decimal.Decimal `json:"priceAtOrder"`
}

// OrderLine is a requested line item when placing an order.
type OrderLine struct {
	ISBN string `json:"isbn"`
	Qty  int    `json:"qty"`
}

// StockChange reports the post-decrement stock of a book affected by an order.
type StockChange struct {
	ISBN     string `json:"isbn"`
	Title    string `json:"title"`
	NewStock int    `json:"new_stock"`
}

// OrderDetail is the joined view returned for an order status lookup.
type OrderDetail struct {
	OrderID      int64
	CustomerName string
	OrderDate    time.Time
	Items        []OrderDetailItem
	Total        decimal.Decimal
}

type OrderDetailItem struct {
	ISBN         string
	Title        string
	Qty          int
	PriceAtOrder decimal.Decimal
	Subtotal     decimal.Decimal
}

// Summary aggregates the whole inventory.
type Summary struct {
	TotalUniqueBooks  int
	TotalQuantity     int
	LowStockThreshold int
	LowStockTitles    []LowStockBook
}

type LowStockBook struct {
	Title string `json:"title"`
	Stock int    `json:"stock"`
}

type Message struct {
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatTurn is the role/content pair exchanged with clients and replayed to
// the model as prior context.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
