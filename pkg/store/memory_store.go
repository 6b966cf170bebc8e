package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"librarydesk/pkg/domain"
)

// MemoryStore keeps everything in-process. It exists for tests and mirrors
// the transactional semantics of GormStore: CreateOrder either applies every
// write or none.
type MemoryStore struct {
	mu        sync.RWMutex
	books     map[string]domain.Book
	bookOrder []string
	customers map[int64]domain.Customer
	orders    map[int64]domain.Order
	items     map[int64][]domain.OrderItem
	messages  map[string][]domain.Message
	nextOrder int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:     make(map[string]domain.Book),
		customers: make(map[int64]domain.Customer),
		orders:    make(map[int64]domain.Order),
		items:     make(map[int64][]domain.OrderItem),
		messages:  make(map[string][]domain.Message),
		nextOrder: 1,
	}
}

// FindBooks matches the query as a case-sensitive substring, like SQL LIKE
// with default collation.
func (m *MemoryStore) FindBooks(query, field string) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byTitle := SearchColumn(field) == "title"
	res := make([]domain.Book, 0)
	for _, isbn := range m.bookOrder {
		b := m.books[isbn]
		haystack := b.Author
		if byTitle {
			haystack = b.Title
		}
		if strings.Contains(haystack, query) {
			res = append(res, b)
		}
	}
	return res, nil
}

func (m *MemoryStore) CreateOrder(customerID int64, items []domain.OrderLine) (int64, []domain.StockChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.customers[customerID]; !ok {
		return 0, nil, fmt.Errorf("customer %d: %w", customerID, ErrCustomerNotFound)
	}

	// Validate every line against a scratch copy first so a late failure
	// leaves no partial writes.
	scratch := make(map[string]domain.Book, len(items))
	for _, line := range items {
		if line.Qty <= 0 {
			return 0, nil, fmt.Errorf("qty for ISBN %s must be positive, got %d", line.ISBN, line.Qty)
		}
		book, ok := scratch[line.ISBN]
		if !ok {
			book, ok = m.books[line.ISBN]
			if !ok {
				return 0, nil, fmt.Errorf("book with ISBN %s: %w", line.ISBN, ErrBookNotFound)
			}
		}
		if book.Stock < line.Qty {
			return 0, nil, &InsufficientStockError{
				ISBN:      book.ISBN,
				Title:     book.Title,
				Requested: line.Qty,
				Available: book.Stock,
			}
		}
		book.Stock -= line.Qty
		scratch[line.ISBN] = book
	}

	orderID := m.nextOrder
	m.nextOrder++
	m.orders[orderID] = domain.Order{ID: orderID, CustomerID: customerID, OrderDate: time.Now().UTC()}

	changes := make([]domain.StockChange, 0, len(items))
	for _, line := range items {
		book := m.books[line.ISBN]
		m.items[orderID] = append(m.items[orderID], domain.OrderItem{
			OrderID:      orderID,
			ISBN:         line.ISBN,
			Qty:          line.Qty,
			PriceAtOrder: book.Price,
		})
		book.Stock -= line.Qty
		m.books[line.ISBN] = book
		changes = append(changes, domain.StockChange{ISBN: book.ISBN, Title: book.Title, NewStock: book.Stock})
	}
	return orderID, changes, nil
}

func (m *MemoryStore) Restock(isbn string, qty int) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[isbn]
	if !ok {
		return domain.Book{}, fmt.Errorf("book with ISBN %s: %w", isbn, ErrBookNotFound)
	}
	book.Stock += qty
	m.books[isbn] = book
	return book, nil
}

func (m *MemoryStore) UpdatePrice(isbn string, price decimal.Decimal) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[isbn]
	if !ok {
		return domain.Book{}, fmt.Errorf("book with ISBN %s: %w", isbn, ErrBookNotFound)
	}
	book.Price = price
	m.books[isbn] = book
	return book, nil
}

func (m *MemoryStore) OrderStatus(orderID int64) (domain.OrderDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[orderID]
	if !ok {
		return domain.OrderDetail{}, fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
	}
	detail := domain.OrderDetail{
		OrderID:      order.ID,
		CustomerName: m.customers[order.CustomerID].Name,
		OrderDate:    order.OrderDate,
		Items:        make([]domain.OrderDetailItem, 0, len(m.items[orderID])),
		Total:        decimal.Zero,
	}
	for _, item := range m.items[orderID] {
		subtotal := item.PriceAtOrder.Mul(decimal.NewFromInt(int64(item.Qty)))
		detail.Items = append(detail.Items, domain.OrderDetailItem{
			ISBN:         item.ISBN,
			Title:        m.books[item.ISBN].Title,
			Qty:          item.Qty,
			PriceAtOrder: item.PriceAtOrder,
			Subtotal:     subtotal,
		})
		detail.Total = detail.Total.Add(subtotal)
	}
	return detail, nil
}

func (m *MemoryStore) InventorySummary() (domain.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary := domain.Summary{
		LowStockThreshold: domain.LowStockThreshold,
		LowStockTitles:    make([]domain.LowStockBook, 0),
	}
	for _, isbn := range m.bookOrder {
		b := m.books[isbn]
		summary.TotalUniqueBooks++
		summary.TotalQuantity += b.Stock
		if b.Stock <= domain.LowStockThreshold {
			summary.LowStockTitles = append(summary.LowStockTitles, domain.LowStockBook{Title: b.Title, Stock: b.Stock})
		}
	}
	return summary, nil
}

// UpsertBook stores or replaces a book and tracks insertion order.
func (m *MemoryStore) UpsertBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.books[b.ISBN]; !exists {
		m.bookOrder = append(m.bookOrder, b.ISBN)
	}
	m.books[b.ISBN] = b
	return nil
}

func (m *MemoryStore) UpsertCustomer(c domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
	return nil
}

func (m *MemoryStore) LoadHistory(sessionID string) ([]domain.ChatTurn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[sessionID]
	turns := make([]domain.ChatTurn, 0, len(msgs))
	for _, msg := range msgs {
		turns = append(turns, domain.ChatTurn{Role: msg.Role, Content: msg.Content})
	}
	return turns, nil
}

func (m *MemoryStore) SaveMessage(sessionID, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[sessionID] = append(m.messages[sessionID], domain.Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}
