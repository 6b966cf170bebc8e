package store

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"librarydesk/pkg/domain"
)

// Validation outcomes callers are expected to branch on. Storage faults are
// returned as ordinary wrapped errors.
var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrBookNotFound     = errors.New("book not found")
	ErrOrderNotFound    = errors.New("order not found")
)

// InsufficientStockError reports the offending book when an order cannot be
// fully satisfied.
type InsufficientStockError struct {
	ISBN      string
	Title     string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (ISBN %s): requested %d, available %d",
		e.Title, e.ISBN, e.Requested, e.Available)
}

// Store defines persistence operations for inventory, orders, and session
// history. Every method is atomic with respect to the underlying database;
// CreateOrder spans the order row, all item rows, and all stock decrements
// in a single transaction.
type Store interface {
	// inventory
	FindBooks(query, field string) ([]domain.Book, error)
	Restock(isbn string, qty int) (domain.Book, error)
	UpdatePrice(isbn string, price decimal.Decimal) (domain.Book, error)
	InventorySummary() (domain.Summary, error)
	UpsertBook(domain.Book) error

	// customers and orders
	UpsertCustomer(domain.Customer) error
	CreateOrder(customerID int64, items []domain.OrderLine) (int64, []domain.StockChange, error)
	OrderStatus(orderID int64) (domain.OrderDetail, error)

	// session history
	LoadHistory(sessionID string) ([]domain.ChatTurn, error)
	SaveMessage(sessionID, role, content string) error
}
