package pipeline

import (
	"context"

	"poflow/internal"
)

// OrderService is the document ingestion and order persistence service.
type OrderService interface {
	CreateOrder(ctx context.Context, doc internal.Document) (string, error)
	SaveItems(ctx context.Context, orderID string, items []internal.OrderItemInput) ([]internal.OrderItem, error)
	UpdateItems(ctx context.Context, orderID string, updates []internal.OrderItemUpdate) ([]internal.OrderItem, error)
	UpdateStatus(ctx context.Context, orderID string, status internal.OrderStatus) error
}

// Extractor turns a document into ordered raw field mappings.
type Extractor interface {
	Extract(ctx context.Context, doc internal.Document) ([]internal.RawRow, error)
}

// Matcher proposes catalog candidates for each query string.
type Matcher interface {
	MatchBatch(ctx context.Context, queries []string) (map[string][]internal.Match, error)
}

// Previewer derives a locally renderable handle for a selected document.
type Previewer interface {
	Preview(doc internal.Document) (internal.Preview, error)
}
