package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"poflow/internal"
	"poflow/internal/pipeline"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrItemNotFound  = errors.New("order item not found")
)

// Archiver receives order documents and exports. It returns a reference to
// the stored object.
type Archiver interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// OrderStore is the local order ingestion service. Documents and CSV exports
// are written under dir and, when an archiver is set, archived as well.
type OrderStore struct {
	db      *DB
	dir     string
	archive Archiver
	log     zerolog.Logger
	now     func() time.Time
}

func NewOrderStore(db *DB, dir string, archive Archiver, log zerolog.Logger) *OrderStore {
	return &OrderStore{
		db:      db,
		dir:     dir,
		archive: archive,
		log:     log.With().Str("component", "orders").Logger(),
		now:     time.Now,
	}
}

func (s *OrderStore) CreateOrder(ctx context.Context, doc internal.Document) (string, error) {
	id := uuid.NewString()
	name := filepath.Base(doc.Name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "request.pdf"
	}

	ref, err := s.store(ctx, id, "request/"+name, doc.Data, doc.ContentType)
	if err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}

	_, err = s.db.conn.ExecContext(ctx, `
INSERT INTO orders (id, date, status, requestFile) VALUES (?, ?, ?, ?)
`, id, s.now().UTC().Format("2006-01-02"), string(internal.StatusProcessing), ref)
	if err != nil {
		return "", err
	}

	s.log.Info().Str("order_id", id).Str("file", ref).Msg("order created")
	return id, nil
}

// SaveItems upserts items by description: an existing item with the same
// request item is updated in place and keeps its id.
func (s *OrderStore) SaveItems(ctx context.Context, orderID string, items []internal.OrderItemInput) ([]internal.OrderItem, error) {
	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]internal.OrderItem, 0, len(items))
	for _, in := range items {
		var itemID string
		err := tx.QueryRowContext(ctx, `SELECT itemId FROM order_items WHERE orderId = ? AND requestItem = ?`, orderID, in.RequestItem).Scan(&itemID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			itemID = uuid.NewString()
			_, err = tx.ExecContext(ctx, `
INSERT INTO order_items (orderId, itemId, requestItem, quantity, uom, pricePerUnit, amount)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, orderID, itemID, in.RequestItem, in.Quantity, in.UOM, in.PricePerUnit, in.Amount)
		case err == nil:
			_, err = tx.ExecContext(ctx, `
UPDATE order_items SET quantity = ?, uom = ?, pricePerUnit = ?, amount = ?, updatedAt = CURRENT_TIMESTAMP
WHERE itemId = ?
`, in.Quantity, in.UOM, in.PricePerUnit, in.Amount, itemID)
		}
		if err != nil {
			return nil, err
		}

		out = append(out, internal.OrderItem{
			OrderID:      orderID,
			ItemID:       itemID,
			RequestItem:  in.RequestItem,
			Quantity:     in.Quantity,
			UOM:          in.UOM,
			PricePerUnit: in.PricePerUnit,
			Amount:       in.Amount,
		})
	}

	if _, err := tx.ExecContext(ctx, `UPDATE orders SET updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, orderID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateItems writes every field of each update, storing the match as the
// item's matches. The order CSV is regenerated afterwards.
func (s *OrderStore) UpdateItems(ctx context.Context, orderID string, updates []internal.OrderItemUpdate) ([]internal.OrderItem, error) {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range updates {
		res, err := tx.ExecContext(ctx, `
UPDATE order_items
SET requestItem = ?, quantity = ?, uom = ?, pricePerUnit = ?, amount = ?, matches = ?, updatedAt = CURRENT_TIMESTAMP
WHERE orderId = ? AND itemId = ?
`, u.RequestItem, u.Quantity, u.UOM, u.PricePerUnit, u.Amount, u.Match, orderID, u.ItemID)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("%w: %s", ErrItemNotFound, u.ItemID)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	items, err := s.ListItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.exportCSV(ctx, orderID, items); err != nil {
		return nil, fmt.Errorf("export csv: %w", err)
	}

	byID := make(map[string]internal.OrderItem, len(items))
	for _, item := range items {
		byID[item.ItemID] = item
	}
	out := make([]internal.OrderItem, 0, len(updates))
	for _, u := range updates {
		out = append(out, byID[u.ItemID])
	}
	return out, nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, orderID string, status internal.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid order status %q", status)
	}
	res, err := s.db.conn.ExecContext(ctx, `UPDATE orders SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, string(status), orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	s.log.Info().Str("order_id", orderID).Str("status", string(status)).Msg("order status updated")
	return nil
}

func (s *OrderStore) GetOrder(ctx context.Context, orderID string) (internal.Order, error) {
	var o internal.Order
	var status string
	err := s.db.conn.QueryRowContext(ctx, `
SELECT id, date, status, requestFile, createdAt, updatedAt FROM orders WHERE id = ?
`, orderID).Scan(&o.ID, &o.Date, &status, &o.RequestFile, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return internal.Order{}, err
	}
	o.Status = internal.OrderStatus(status)
	return o, nil
}

func (s *OrderStore) ListOrders(ctx context.Context, limit int) ([]internal.Order, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
SELECT id, date, status, requestFile, createdAt, updatedAt FROM orders ORDER BY createdAt DESC, id LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Order
	for rows.Next() {
		var o internal.Order
		var status string
		if err := rows.Scan(&o.ID, &o.Date, &status, &o.RequestFile, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Status = internal.OrderStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListItems returns an order's items in the order they were first saved.
func (s *OrderStore) ListItems(ctx context.Context, orderID string) ([]internal.OrderItem, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
SELECT orderId, itemId, requestItem, quantity, uom, pricePerUnit, amount, matches
FROM order_items WHERE orderId = ? ORDER BY seq
`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.OrderItem
	for rows.Next() {
		var it internal.OrderItem
		if err := rows.Scan(&it.OrderID, &it.ItemID, &it.RequestItem, &it.Quantity, &it.UOM, &it.PricePerUnit, &it.Amount, &it.Matches); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ExportRef is where the latest CSV export of an order was stored, if any.
func (s *OrderStore) ExportRef(ctx context.Context, orderID string) (string, error) {
	var ref sql.NullString
	err := s.db.conn.QueryRowContext(ctx, `SELECT exportRef FROM orders WHERE id = ?`, orderID).Scan(&ref)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return "", err
	}
	return ref.String, nil
}

func (s *OrderStore) exportCSV(ctx context.Context, orderID string, items []internal.OrderItem) error {
	var buf bytes.Buffer
	if err := pipeline.WriteExportCSV(&buf, pipeline.ExportRowsFromOrderItems(items)); err != nil {
		return err
	}
	ref, err := s.store(ctx, orderID, "order_"+orderID+".csv", buf.Bytes(), "text/csv")
	if err != nil {
		return err
	}
	_, err = s.db.conn.ExecContext(ctx, `UPDATE orders SET exportRef = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, ref, orderID)
	return err
}

// store writes body under dir/orderID/name and archives it when an archiver
// is configured. The archive reference wins over the local path.
func (s *OrderStore) store(ctx context.Context, orderID, name string, body []byte, contentType string) (string, error) {
	path := filepath.Join(s.dir, orderID, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", err
	}
	if s.archive == nil {
		return path, nil
	}

	key := strings.Join([]string{"orders", orderID, name}, "/")
	ref, err := s.archive.Put(ctx, key, body, contentType)
	if err != nil {
		return "", err
	}
	return ref, nil
}
