package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"librarydesk/pkg/ai"
	"librarydesk/pkg/domain"
	"librarydesk/pkg/store"
)

// Tool is one named operation the model may request. The description is
// part of the contract: it is the only documentation the model sees.
type Tool struct {
	Name        string
	Description string
	Parameters  *ai.Schema
	Run         func(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry is the closed catalog of tools backed by the inventory store.
// Adding a capability means adding both a schema and a store operation;
// there is no dynamic discovery.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds the six-tool catalog over the given store.
func NewRegistry(st store.Store) *Registry {
	c := &catalog{store: st}
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range []Tool{
		{
			Name:        "find_books",
			Description: "Finds books by title or author based on the search query (q). Searches are partial matches.",
			Parameters: &ai.Schema{
				Type: ai.TypeObject,
				Properties: map[string]*ai.Schema{
					"q":  {Type: ai.TypeString, Description: "Search query: title or author keywords."},
					"by": {Type: ai.TypeString, Description: "Field to search by.", Enum: []string{"title", "author"}},
				},
				Required: []string{"q"},
			},
			Run: c.findBooks,
		},
		{
			Name:        "create_order",
			Description: "Creates a new order, adds items (list of {isbn, qty}), and reduces stock. Requires customer_id (int) and a list of items to sell.",
			Parameters: &ai.Schema{
				Type: ai.TypeObject,
				Properties: map[string]*ai.Schema{
					"customer_id": {Type: ai.TypeInteger, Description: "ID of an existing customer."},
					"items": {
						Type: ai.TypeArray,
						Items: &ai.Schema{
							Type: ai.TypeObject,
							Properties: map[string]*ai.Schema{
								"isbn": {Type: ai.TypeString},
								"qty":  {Type: ai.TypeInteger},
							},
							Required: []string{"isbn", "qty"},
						},
					},
				},
				Required: []string{"customer_id", "items"},
			},
			Run: c.createOrder,
		},
		{
			Name:        "restock_book",
			Description: "Restocks a book by adding the given quantity (qty: int) and returns the new stock level.",
			Parameters: &ai.Schema{
				Type: ai.TypeObject,
				Properties: map[string]*ai.Schema{
					"isbn": {Type: ai.TypeString},
					"qty":  {Type: ai.TypeInteger},
				},
				Required: []string{"isbn", "qty"},
			},
			Run: c.restockBook,
		},
		{
			Name:        "update_price",
			Description: "Updates the price (price: float) of a book specified by ISBN.",
			Parameters: &ai.Schema{
				Type: ai.TypeObject,
				Properties: map[string]*ai.Schema{
					"isbn":  {Type: ai.TypeString},
					"price": {Type: ai.TypeNumber},
				},
				Required: []string{"isbn", "price"},
			},
			Run: c.updatePrice,
		},
		{
			Name:        "order_status",
			Description: "Retrieves the status, customer, and item details of an order specified by order_id (int).",
			Parameters: &ai.Schema{
				Type: ai.TypeObject,
				Properties: map[string]*ai.Schema{
					"order_id": {Type: ai.TypeInteger},
				},
				Required: []string{"order_id"},
			},
			Run: c.orderStatus,
		},
		{
			Name:        "inventory_summary",
			Description: "Provides a total summary of inventory quantity and lists any titles currently low in stock (stock <= 5).",
			Parameters:  &ai.Schema{Type: ai.TypeObject},
			Run:         c.inventorySummary,
		},
	} {
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Defs returns the declarations offered to the model, in registration order.
func (r *Registry) Defs() []ai.ToolDef {
	defs := make([]ai.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, ai.ToolDef{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	return defs
}

// catalog holds the store the tool handlers run against. Handlers convert
// every store outcome, including validation failures and storage faults,
// into a tagged JSON envelope so the model always receives readable text.
type catalog struct {
	store store.Store
}

type bookPayload struct {
	ISBN   string `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Stock  int    `json:"stock"`
	Price  string `json:"price"`
}

type findBooksParams struct {
	Query string `json:"q"`
	By    string `json:"by"`
}

func (c *catalog) findBooks(_ context.Context, args json.RawMessage) (string, error) {
	var p findBooksParams
	if err := json.Unmarshal(args, &p); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	column := store.SearchColumn(p.By)
	books, err := c.store.FindBooks(p.Query, column)
	if err != nil {
		return errorEnvelope(fmt.Sprintf("database error during find_books: %v", err))
	}
	payload := make([]bookPayload, 0, len(books))
	for _, b := range books {
		payload = append(payload, bookPayload{
			ISBN:   b.ISBN,
			Title:  b.Title,
			Author: b.Author,
			Stock:  b.Stock,
			Price:  b.Price.StringFixed(2),
		})
	}
	if len(payload) == 0 {
		return toJSON(struct {
			Status  string        `json:"status"`
			Message string        `json:"message"`
			Books   []bookPayload `json:"books"`
		}{"Found", fmt.Sprintf("No books found matching '%s' by %s.", p.Query, column), payload})
	}
	return toJSON(struct {
		Status  string        `json:"status"`
		Message string        `json:"message"`
		Books   []bookPayload `json:"books"`
	}{"Success", fmt.Sprintf("Found %d book(s).", len(payload)), payload})
}

type createOrderParams struct {
	CustomerID int64              `json:"customer_id"`
	Items      []domain.OrderLine `json:"items"`
}

func (c *catalog) createOrder(_ context.Context, args json.RawMessage) (string, error) {
	var p createOrderParams
	if err := json.Unmarshal(args, &p); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	orderID, changes, err := c.store.CreateOrder(p.CustomerID, p.Items)
	if err != nil {
		return errorEnvelope(err.Error())
	}
	return toJSON(struct {
		Status       string               `json:"status"`
		OrderID      int64                `json:"order_id"`
		Summary      string               `json:"summary"`
		UpdatedStock []domain.StockChange `json:"updated_stock"`
	}{"Success", orderID, fmt.Sprintf("Order %d created for customer %d.", orderID, p.CustomerID), changes})
}

type restockParams struct {
	ISBN string `json:"isbn"`
	Qty  int    `json:"qty"`
}

func (c *catalog) restockBook(_ context.Context, args json.RawMessage) (string, error) {
	var p restockParams
	if err := json.Unmarshal(args, &p); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	book, err := c.store.Restock(p.ISBN, p.Qty)
	if err != nil {
		return errorEnvelope(err.Error())
	}
	return toJSON(struct {
		Status   string `json:"status"`
		ISBN     string `json:"isbn"`
		Title    string `json:"title"`
		NewStock int    `json:"new_stock"`
	}{"Success", book.ISBN, book.Title, book.Stock})
}

type updatePriceParams struct {
	ISBN  string  `json:"isbn"`
	Price float64 `json:"price"`
}

func (c *catalog) updatePrice(_ context.Context, args json.RawMessage) (string, error) {
	var p updatePriceParams
	if err := json.Unmarshal(args, &p); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	book, err := c.store.UpdatePrice(p.ISBN, decimal.NewFromFloat(p.Price))
	if err != nil {
		return errorEnvelope(err.Error())
	}
	return toJSON(struct {
		Status   string `json:"status"`
		ISBN     string `json:"isbn"`
		Title    string `json:"title"`
		NewPrice string `json:"new_price"`
	}{"Success", book.ISBN, book.Title, book.Price.StringFixed(2)})
}

type orderStatusParams struct {
	OrderID int64 `json:"order_id"`
}

type orderItemPayload struct {
	ISBN         string `json:"isbn"`
	Title        string `json:"title"`
	Qty          int    `json:"qty"`
	PriceAtOrder string `json:"price_at_order"`
	Subtotal     string `json:"subtotal"`
}

func (c *catalog) orderStatus(_ context.Context, args json.RawMessage) (string, error) {
	var p orderStatusParams
	if err := json.Unmarshal(args, &p); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	detail, err := c.store.OrderStatus(p.OrderID)
	if err != nil {
		return errorEnvelope(err.Error())
	}
	items := make([]orderItemPayload, 0, len(detail.Items))
	for _, item := range detail.Items {
		items = append(items, orderItemPayload{
			ISBN:         item.ISBN,
			Title:        item.Title,
			Qty:          item.Qty,
			PriceAtOrder: item.PriceAtOrder.StringFixed(2),
			Subtotal:     item.Subtotal.StringFixed(2),
		})
	}
	return toJSON(struct {
		Status       string             `json:"status"`
		OrderID      int64              `json:"order_id"`
		CustomerName string             `json:"customer_name"`
		OrderDate    string             `json:"order_date"`
		Items        []orderItemPayload `json:"items"`
		TotalPrice   string             `json:"total_price"`
	}{"Found", detail.OrderID, detail.CustomerName, detail.OrderDate.Format(time.RFC3339), items, detail.Total.StringFixed(2)})
}

func (c *catalog) inventorySummary(_ context.Context, args json.RawMessage) (string, error) {
	summary, err := c.store.InventorySummary()
	if err != nil {
		return errorEnvelope(fmt.Sprintf("database error during inventory_summary: %v", err))
	}
	return toJSON(struct {
		Status            string                `json:"status"`
		TotalUniqueBooks  int                   `json:"total_unique_books"`
		TotalQuantity     int                   `json:"total_inventory_quantity"`
		LowStockThreshold int                   `json:"low_stock_threshold"`
		LowStockTitles    []domain.LowStockBook `json:"low_stock_titles"`
	}{"Success", summary.TotalUniqueBooks, summary.TotalQuantity, summary.LowStockThreshold, summary.LowStockTitles})
}

func errorEnvelope(msg string) (string, error) {
	return toJSON(struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}{"Error", msg})
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal tool result: %w", err)
	}
	return string(b), nil
}
