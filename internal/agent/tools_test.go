package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"librarydesk/pkg/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	st := store.NewMemoryStore()
	if err := store.SeedDemoData(st); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return NewRegistry(st)
}

func runTool(t *testing.T, r *Registry, name, args string) map[string]any {
	t.Helper()
	tool, ok := r.Get(name)
	if !ok {
		t.Fatalf("tool %s not registered", name)
	}
	out, err := tool.Run(context.Background(), json.RawMessage(args))
	if err != nil {
		t.Fatalf("run %s: %v", name, err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("tool %s output is not JSON: %v\n%s", name, err, out)
	}
	return payload
}

func TestFindBooksEnvelope(t *testing.T) {
	r := newTestRegistry(t)

	payload := runTool(t, r, "find_books", `{"q":"Pragmatic","by":"title"}`)
	if payload["status"] != "Success" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if payload["message"] != "Found 1 book(s)." {
		t.Fatalf("unexpected message: %v", payload["message"])
	}
	books := payload["books"].([]any)
	book := books[0].(map[string]any)
	if book["isbn"] != "978-0134494166" || book["price"] != "49.99" {
		t.Fatalf("unexpected book payload: %+v", book)
	}
}

func TestFindBooksNoMatchEnvelope(t *testing.T) {
	r := newTestRegistry(t)

	payload := runTool(t, r, "find_books", `{"q":"Unwritten","by":"author"}`)
	if payload["status"] != "Found" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if payload["message"] != "No books found matching 'Unwritten' by author." {
		t.Fatalf("unexpected message: %v", payload["message"])
	}
	if books := payload["books"].([]any); len(books) != 0 {
		t.Fatalf("expected empty books list, got %v", books)
	}
}

func TestCreateOrderEnvelope(t *testing.T) {
	r := newTestRegistry(t)

	payload := runTool(t, r, "create_order", `{"customer_id":1,"items":[{"isbn":"978-0132350884","qty":2}]}`)
	if payload["status"] != "Success" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if payload["summary"] != "Order 1 created for customer 1." {
		t.Fatalf("unexpected summary: %v", payload["summary"])
	}
	updated := payload["updated_stock"].([]any)
	change := updated[0].(map[string]any)
	if change["new_stock"] != float64(16) {
		t.Fatalf("unexpected stock change: %+v", change)
	}
}

func TestCreateOrderInsufficientStockEnvelope(t *testing.T) {
	r := newTestRegistry(t)

	payload := runTool(t, r, "create_order", `{"customer_id":1,"items":[{"isbn":"978-0262033848","qty":50}]}`)
	if payload["status"] != "Error" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	msg := payload["message"].(string)
	if !strings.Contains(msg, "insufficient stock") || !strings.Contains(msg, "Introduction to Algorithms") {
		t.Fatalf("unexpected message: %s", msg)
	}
}

func TestRestockEnvelope(t *testing.T) {
	r := newTestRegistry(t)

	payload := runTool(t, r, "restock_book", `{"isbn":"978-0134494166","qty":50}`)
	if payload["status"] != "Success" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if payload["new_stock"] != float64(75) {
		t.Fatalf("unexpected new stock: %v", payload["new_stock"])
	}
	if payload["title"] != "The Pragmatic Programmer" {
		t.Fatalf("unexpected title: %v", payload["title"])
	}
}

func TestUpdatePriceEnvelopeRoundsForDisplay(t *testing.T) {
	r := newTestRegistry(t)

	payload := runTool(t, r, "update_price", `{"isbn":"978-0134494166","price":60}`)
	if payload["status"] != "Success" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if payload["new_price"] != "60.00" {
		t.Fatalf("unexpected new price: %v", payload["new_price"])
	}
}

func TestOrderStatusEnvelope(t *testing.T) {
	r := newTestRegistry(t)

	runTool(t, r, "create_order", `{"customer_id":2,"items":[{"isbn":"978-0134494166","qty":2}]}`)
	payload := runTool(t, r, "order_status", `{"order_id":1}`)
	if payload["status"] != "Found" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if payload["customer_name"] != "Bob Smith" {
		t.Fatalf("unexpected customer: %v", payload["customer_name"])
	}
	if payload["total_price"] != "99.98" {
		t.Fatalf("unexpected total: %v", payload["total_price"])
	}
	items := payload["items"].([]any)
	item := items[0].(map[string]any)
	if item["subtotal"] != "99.98" || item["price_at_order"] != "49.99" {
		t.Fatalf("unexpected item: %+v", item)
	}
}

func TestOrderStatusNotFoundEnvelope(t *testing.T) {
	r := newTestRegistry(t)

	payload := runTool(t, r, "order_status", `{"order_id":77}`)
	if payload["status"] != "Error" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
}

func TestInventorySummaryEnvelope(t *testing.T) {
	r := newTestRegistry(t)

	payload := runTool(t, r, "inventory_summary", `{}`)
	if payload["status"] != "Success" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if payload["total_unique_books"] != float64(4) {
		t.Fatalf("unexpected unique books: %v", payload["total_unique_books"])
	}
	if payload["total_inventory_quantity"] != float64(59) {
		t.Fatalf("unexpected quantity: %v", payload["total_inventory_quantity"])
	}
	if payload["low_stock_threshold"] != float64(5) {
		t.Fatalf("unexpected threshold: %v", payload["low_stock_threshold"])
	}
	low := payload["low_stock_titles"].([]any)
	if len(low) != 1 {
		t.Fatalf("expected one low stock title, got %v", low)
	}
}

func TestToolRejectsMalformedArguments(t *testing.T) {
	r := newTestRegistry(t)

	tool, _ := r.Get("create_order")
	if _, err := tool.Run(context.Background(), json.RawMessage(`{"customer_id":"not-a-number"}`)); err == nil {
		t.Fatal("expected error for malformed arguments")
	}
}
