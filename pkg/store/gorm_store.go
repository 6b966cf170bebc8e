package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"librarydesk/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return newGormStore(db)
}

// NewGormStoreWithDB wraps an already-open GORM handle. Tests use this with
// an in-memory SQLite database.
func NewGormStoreWithDB(db *gorm.DB) (*GormStore, error) {
	return newGormStore(db)
}

func newGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&BookModel{}, &CustomerModel{}, &OrderModel{}, &OrderItemModel{}, &MessageModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// FindBooks returns books whose title or author contains query as a
// substring. An empty result is not an error.
func (s *GormStore) FindBooks(query, field string) ([]domain.Book, error) {
	column := SearchColumn(field)
	var models []BookModel
	if err := s.db.Where(column+" LIKE ?", "%"+query+"%").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// SearchColumn whitelists the searchable column. Blank input defaults to
// title; anything other than "title" searches by author.
func SearchColumn(field string) string {
	field = strings.TrimSpace(field)
	if field == "" || strings.EqualFold(field, "title") {
		return "title"
	}
	return "author"
}

// CreateOrder validates the customer and every line item, then writes the
// order row, its items, and the stock decrements in one transaction. Any
// validation failure rolls back everything.
func (s *GormStore) CreateOrder(customerID int64, items []domain.OrderLine) (int64, []domain.StockChange, error) {
	var orderID int64
	var changes []domain.StockChange
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var customer CustomerModel
		if err := tx.First(&customer, "id = ?", customerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("customer %d: %w", customerID, ErrCustomerNotFound)
			}
			return fmt.Errorf("load customer: %w", err)
		}
		order := OrderModel{CustomerID: customerID, OrderDate: time.Now().UTC()}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		for _, line := range items {
			if line.Qty <= 0 {
				return fmt.Errorf("qty for ISBN %s must be positive, got %d", line.ISBN, line.Qty)
			}
			var book BookModel
			if err := tx.First(&book, "isbn = ?", line.ISBN).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("book with ISBN %s: %w", line.ISBN, ErrBookNotFound)
				}
				return fmt.Errorf("load book: %w", err)
			}
			if book.Stock < line.Qty {
				return &InsufficientStockError{
					ISBN:      book.ISBN,
					Title:     book.Title,
					Requested: line.Qty,
					Available: book.Stock,
				}
			}
			item := OrderItemModel{
				OrderID:      order.ID,
				ISBN:         book.ISBN,
				Qty:          line.Qty,
				PriceAtOrder: book.Price,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			newStock := book.Stock - line.Qty
			if err := tx.Model(&BookModel{}).Where("isbn = ?", book.ISBN).Update("stock", newStock).Error; err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}
			changes = append(changes, domain.StockChange{ISBN: book.ISBN, Title: book.Title, NewStock: newStock})
		}
		orderID = order.ID
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return orderID, changes, nil
}

// Restock adds qty to the current stock. qty may be negative; the caller is
// trusted to know what it is doing. Zero rows affected means the ISBN does
// not exist.
func (s *GormStore) Restock(isbn string, qty int) (domain.Book, error) {
	res := s.db.Model(&BookModel{}).Where("isbn = ?", isbn).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return domain.Book{}, fmt.Errorf("restock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Book{}, fmt.Errorf("book with ISBN %s: %w", isbn, ErrBookNotFound)
	}
	return s.getBook(isbn)
}

// UpdatePrice overwrites the price of a book. Not-found semantics match
// Restock.
func (s *GormStore) UpdatePrice(isbn string, price decimal.Decimal) (domain.Book, error) {
	res := s.db.Model(&BookModel{}).Where("isbn = ?", isbn).Update("price", price)
	if res.Error != nil {
		return domain.Book{}, fmt.Errorf("update price: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Book{}, fmt.Errorf("book with ISBN %s: %w", isbn, ErrBookNotFound)
	}
	return s.getBook(isbn)
}

func (s *GormStore) getBook(isbn string) (domain.Book, error) {
	var model BookModel
	if err := s.db.First(&model, "isbn = ?", isbn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, fmt.Errorf("book with ISBN %s: %w", isbn, ErrBookNotFound)
		}
		return domain.Book{}, fmt.Errorf("load book: %w", err)
	}
	return bookFromModel(model), nil
}

// OrderStatus joins the order, its customer, and its line items. The total
// uses the price snapshot taken at order time, not the current book price.
func (s *GormStore) OrderStatus(orderID int64) (domain.OrderDetail, error) {
	var order OrderModel
	if err := s.db.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.OrderDetail{}, fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
		}
		return domain.OrderDetail{}, fmt.Errorf("load order: %w", err)
	}
	var customer CustomerModel
	if err := s.db.First(&customer, "id = ?", order.CustomerID).Error; err != nil {
		return domain.OrderDetail{}, fmt.Errorf("load customer: %w", err)
	}

	type itemRow struct {
		ISBN         string
		Title        string
		Qty          int
		PriceAtOrder decimal.Decimal
	}
	var rows []itemRow
	err := s.db.Table("order_items").
		Select("order_items.isbn, books.title, order_items.qty, order_items.price_at_order").
		Joins("JOIN books ON books.isbn = order_items.isbn").
		Where("order_items.order_id = ?", orderID).
		Order("order_items.id ASC").
		Scan(&rows).Error
	if err != nil {
		return domain.OrderDetail{}, fmt.Errorf("load order items: %w", err)
	}

	detail := domain.OrderDetail{
		OrderID:      order.ID,
		CustomerName: customer.Name,
		OrderDate:    order.OrderDate,
		Items:        make([]domain.OrderDetailItem, 0, len(rows)),
		Total:        decimal.Zero,
	}
	for _, r := range rows {
		subtotal := r.PriceAtOrder.Mul(decimal.NewFromInt(int64(r.Qty)))
		detail.Items = append(detail.Items, domain.OrderDetailItem{
			ISBN:         r.ISBN,
			Title:        r.Title,
			Qty:          r.Qty,
			PriceAtOrder: r.PriceAtOrder,
			Subtotal:     subtotal,
		})
		detail.Total = detail.Total.Add(subtotal)
	}
	return detail, nil
}

// InventorySummary aggregates the whole catalog. An empty store yields
// zeroes, not an error.
func (s *GormStore) InventorySummary() (domain.Summary, error) {
	type aggRow struct {
		UniqueBooks int
		TotalStock  int
	}
	var agg aggRow
	err := s.db.Table("books").
		Select("COUNT(isbn) AS unique_books, COALESCE(SUM(stock), 0) AS total_stock").
		Scan(&agg).Error
	if err != nil {
		return domain.Summary{}, fmt.Errorf("inventory summary: %w", err)
	}

	var low []BookModel
	if err := s.db.Where("stock <= ?", domain.LowStockThreshold).Find(&low).Error; err != nil {
		return domain.Summary{}, fmt.Errorf("low stock titles: %w", err)
	}
	summary := domain.Summary{
		TotalUniqueBooks:  agg.UniqueBooks,
		TotalQuantity:     agg.TotalStock,
		LowStockThreshold: domain.LowStockThreshold,
		LowStockTitles:    make([]domain.LowStockBook, 0, len(low)),
	}
	for _, m := range low {
		summary.LowStockTitles = append(summary.LowStockTitles, domain.LowStockBook{Title: m.Title, Stock: m.Stock})
	}
	return summary, nil
}

// UpsertBook stores or replaces a book record.
func (s *GormStore) UpsertBook(b domain.Book) error {
	model := bookToModel(b)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "isbn"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "author", "stock", "price"}),
	}).Create(&model).Error
}

// UpsertCustomer stores or replaces a customer record.
func (s *GormStore) UpsertCustomer(c domain.Customer) error {
	model := CustomerModel{ID: c.ID, Name: c.Name}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(&model).Error
}

// LoadHistory returns the session's turns in creation order. An unknown
// session yields an empty slice.
func (s *GormStore) LoadHistory(sessionID string) ([]domain.ChatTurn, error) {
	var models []MessageModel
	err := s.db.Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	turns := make([]domain.ChatTurn, 0, len(models))
	for _, m := range models {
		turns = append(turns, domain.ChatTurn{Role: m.Role, Content: m.Content})
	}
	return turns, nil
}

// SaveMessage appends one message to the session log.
func (s *GormStore) SaveMessage(sessionID, role, content string) error {
	model := MessageModel{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Create(&model).Error; err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ISBN:   m.ISBN,
		Title:  m.Title,
		Author: m.Author,
		Stock:  m.Stock,
		Price:  m.Price,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ISBN:   b.ISBN,
		Title:  b.Title,
		Author: b.Author,
		Stock:  b.Stock,
		Price:  b.Price,
	}
}
