package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"librarydesk/pkg/domain"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := NewGormStoreWithDB(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func seedTestData(t *testing.T, s Store) {
	t.Helper()
	if err := SeedDemoData(s); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestFindBooksByTitle(t *testing.T) {
	s := newTestStore(t)
	seedTestData(t, s)

	books, err := s.FindBooks("Pragmatic", "title")
	if err != nil {
		t.Fatalf("find books: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("expected 1 book, got %d", len(books))
	}
	if books[0].ISBN != "978-0134494166" {
		t.Fatalf("unexpected isbn: %s", books[0].ISBN)
	}
}

func TestFindBooksByAuthorNoMatch(t *testing.T) {
	s := newTestStore(t)
	seedTestData(t, s)

	books, err := s.FindBooks("Nonexistent", "author")
	if err != nil {
		t.Fatalf("find books: %v", err)
	}
	if len(books) != 0 {
		t.Fatalf("expected no books, got %d", len(books))
	}
}

func TestCreateOrderReducesStock(t *testing.T) {
	s := newTestStore(t)
	seedTestData(t, s)

	orderID, changes, err := s.CreateOrder(1, []domain.OrderLine{
		{ISBN: "978-0134494166", Qty: 3},
		{ISBN: "978-0132350884", Qty: 2},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if orderID == 0 {
		t.Fatal("expected non-zero order id")
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 stock changes, got %d", len(changes))
	}
	if changes[0].NewStock != 22 {
		t.Fatalf("expected new stock 22, got %d", changes[0].NewStock)
	}

	books, err := s.FindBooks("Pragmatic", "title")
	if err != nil {
		t.Fatalf("find books: %v", err)
	}
	if books[0].Stock != 22 {
		t.Fatalf("stock not persisted: got %d", books[0].Stock)
	}
}

func TestCreateOrderInsufficientStockRollsBack(t *testing.T) {
	s := newTestStore(t)
	seedTestData(t, s)

	// First line would succeed; the second exceeds stock. Nothing may stick.
	_, _, err := s.CreateOrder(1, []domain.OrderLine{
		{ISBN: "978-0134494166", Qty: 3},
		{ISBN: "978-0262033848", Qty: 100},
	})
	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Available != 4 || insufficient.Requested != 100 {
		t.Fatalf("unexpected error detail: %+v", insufficient)
	}

	books, err := s.FindBooks("Pragmatic", "title")
	if err != nil {
		t.Fatalf("find books: %v", err)
	}
	if books[0].Stock != 25 {
		t.Fatalf("expected rollback to restore stock 25, got %d", books[0].Stock)
	}
	if _, err := s.OrderStatus(1); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected no order rows after rollback, got %v", err)
	}
}

func TestCreateOrderUnknownCustomer(t *testing.T) {
	s := newTestStore(t)
	seedTestData(t, s)

	_, _, err := s.CreateOrder(999, []domain.OrderLine{{ISBN: "978-0134494166", Qty: 1}})
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestCreateOrderRejectsNonPositiveQty(t *testing.T) {
	s := newTestStore(t)
	seedTestData(t, s)

	_, _, err := s.CreateOrder(1, []domain.OrderLine{{ISBN: "978-0134494166", Qty: 0}})
	if err == nil {
		t.Fatal("expected error for zero qty")
	}
}

func TestRestockAdjustsStock(t *testing.T) {
	s := newTestStore(t)
	seedTestData(t, s)

	book, err := s.Restock("978-0134494166", 50)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if book.Stock != 75 {
		t.Fatalf("expected stock 75, got %d", book.Stock)
	}

	// Negative quantities are permitted and subtract.
	book, err = s.Restock("978-0134494166", -50)
	if err != nil {
		t.Fatalf("restock negative: %v", err)
	}
	if book.Stock != 25 {
		t.Fatalf("expected stock 25, got %d", book.Stock)
	}

	if _, err := s.Restock("no-such-isbn", 1); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}
}

func TestUpdatePrice(t *testing.T) {
	s := newTestStore(t)
	seedTestData(t, s)

	book, err := s.UpdatePrice("978-0134494166", decimal.NewFromFloat(59.95))
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if book.Price.StringFixed(2) != "59.95" {
		t.Fatalf("unexpected price: %s", book.Price.StringFixed(2))
	}

	// Applying the same price again changes nothing.
	again, err := s.UpdatePrice("978-0134494166", decimal.NewFromFloat(59.95))
	if err != nil {
		t.Fatalf("update price twice: %v", err)
	}
	if !again.Price.Equal(book.Price) {
		t.Fatalf("expected idempotent update, got %s then %s", book.Price, again.Price)
	}

	if _, err := s.UpdatePrice("no-such-isbn", decimal.NewFromInt(1)); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}
}

func TestOrderStatusUsesPriceSnapshot(t *testing.T) {
	s := newTestStore(t)
	seedTestData(t, s)

	orderID, _, err := s.CreateOrder(2, []domain.OrderLine{{ISBN: "978-0134494166", Qty: 2}})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// Later price changes must not alter the recorded order total.
	if _, err := s.UpdatePrice("978-0134494166", decimal.NewFromInt(999)); err != nil {
		t.Fatalf("update price: %v", err)
	}

	detail, err := s.OrderStatus(orderID)
	if err != nil {
		t.Fatalf("order status: %v", err)
	}
	if detail.CustomerName != "Bob Smith" {
		t.Fatalf("unexpected customer: %s", detail.CustomerName)
	}
	if len(detail.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(detail.Items))
	}
	if detail.Items[0].PriceAtOrder.StringFixed(2) != "49.99" {
		t.Fatalf("expected snapshot price 49.99, got %s", detail.Items[0].PriceAtOrder.StringFixed(2))
	}
	if detail.Total.StringFixed(2) != "99.98" {
		t.Fatalf("expected total 99.98, got %s", detail.Total.StringFixed(2))
	}

	if _, err := s.OrderStatus(424242); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestInventorySummary(t *testing.T) {
	s := newTestStore(t)
	seedTestData(t, s)

	summary, err := s.InventorySummary()
	if err != nil {
		t.Fatalf("inventory summary: %v", err)
	}
	if summary.TotalUniqueBooks != 4 {
		t.Fatalf("expected 4 unique books, got %d", summary.TotalUniqueBooks)
	}
	if summary.TotalQuantity != 59 {
		t.Fatalf("expected total quantity 59, got %d", summary.TotalQuantity)
	}
	if summary.LowStockThreshold != domain.LowStockThreshold {
		t.Fatalf("unexpected threshold: %d", summary.LowStockThreshold)
	}
	if len(summary.LowStockTitles) != 1 || summary.LowStockTitles[0].Title != "Introduction to Algorithms" {
		t.Fatalf("unexpected low stock titles: %+v", summary.LowStockTitles)
	}
}

func TestInventorySummaryEmptyStore(t *testing.T) {
	s := newTestStore(t)

	summary, err := s.InventorySummary()
	if err != nil {
		t.Fatalf("inventory summary: %v", err)
	}
	if summary.TotalUniqueBooks != 0 || summary.TotalQuantity != 0 {
		t.Fatalf("expected zeroes on empty store, got %+v", summary)
	}
	if len(summary.LowStockTitles) != 0 {
		t.Fatalf("expected no low stock titles, got %+v", summary.LowStockTitles)
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	s := newTestStore(t)

	turns, err := s.LoadHistory("session-1")
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(turns))
	}

	if err := s.SaveMessage("session-1", domain.RoleUser, "hello"); err != nil {
		t.Fatalf("save message: %v", err)
	}
	if err := s.SaveMessage("session-1", domain.RoleAssistant, "hi there"); err != nil {
		t.Fatalf("save message: %v", err)
	}
	if err := s.SaveMessage("session-2", domain.RoleUser, "other session"); err != nil {
		t.Fatalf("save message: %v", err)
	}

	turns, err = s.LoadHistory("session-1")
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != domain.RoleUser || turns[0].Content != "hello" {
		t.Fatalf("unexpected first turn: %+v", turns[0])
	}
	if turns[1].Role != domain.RoleAssistant || turns[1].Content != "hi there" {
		t.Fatalf("unexpected second turn: %+v", turns[1])
	}
}
