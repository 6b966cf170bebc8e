package store

import (
	"fmt"

	"github.com/shopspring/decimal"

	"librarydesk/pkg/domain"
)

// SeedDemoData upserts a small catalog and customer set for local
// development. Upserts keep it idempotent across restarts.
func SeedDemoData(s Store) error {
	books := []domain.Book{
		{ISBN: "978-0134494166", Title: "The Pragmatic Programmer", Author: "Andrew Hunt", Stock: 25, Price: decimal.NewFromFloat(49.99)},
		{ISBN: "978-0132350884", Title: "Clean Code", Author: "Robert C. Martin", Stock: 18, Price: decimal.NewFromFloat(39.99)},
		{ISBN: "978-0201633610", Title: "Design Patterns", Author: "Erich Gamma", Stock: 12, Price: decimal.NewFromFloat(54.99)},
		{ISBN: "978-0262033848", Title: "Introduction to Algorithms", Author: "Thomas H. Cormen", Stock: 4, Price: decimal.NewFromFloat(89.50)},
	}
	for _, b := range books {
		if err := s.UpsertBook(b); err != nil {
			return fmt.Errorf("seed book %s: %w", b.ISBN, err)
		}
	}
	customers := []domain.Customer{
		{ID: 1, Name: "Alice Johnson"},
		{ID: 2, Name: "Bob Smith"},
		{ID: 3, Name: "Carol Diaz"},
	}
	for _, c := range customers {
		if err := s.UpsertCustomer(c); err != nil {
			return fmt.Errorf("seed customer %d: %w", c.ID, err)
		}
	}
	return nil
}
