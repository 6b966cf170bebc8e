package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// GORM models used for persistence.
type BookModel struct {
	ISBN   string          `gorm:"primaryKey;column:isbn"`
	Title  string          `gorm:"not null"`
	Author string          `gorm:"not null;index"`
	Stock  int             `gorm:"not null"`
	Price  decimal.Decimal `gorm:"type:numeric(12,2);not null"`
}

func (BookModel) TableName() string { return "books" }

type CustomerModel struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"not null"`
}

func (CustomerModel) TableName() string { return "customers" }

type OrderModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	CustomerID int64     `gorm:"not null;index"`
	OrderDate  time.Time `gorm:"not null"`
}

func (OrderModel) TableName() string { return "orders" }

type OrderItemModel struct {
	ID           int64           `gorm:"primaryKey;autoIncrement"`
	OrderID      int64           `gorm:"not null;index"`
	ISBN         string          `gorm:"not null;column:isbn"`
	Qty          int             `gorm:"not null"`
	PriceAtOrder decimal.Decimal `gorm:"type:numeric(12,2);not null"`
}

func (OrderItemModel) TableName() string { return "order_items" }

type MessageModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	SessionID string    `gorm:"not null;index"`
	Role      string    `gorm:"not null"`
	Content   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (MessageModel) TableName() string { return "messages" }
