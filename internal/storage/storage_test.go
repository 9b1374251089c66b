package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poflow/internal"
	"poflow/internal/pipeline"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type memArchive struct {
	objects map[string][]byte
	err     error
}

func (a *memArchive) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[key] = append([]byte(nil), body...)
	return "mem://" + key, nil
}

var _ pipeline.OrderService = (*OrderStore)(nil)

func TestOrderLifecycle(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	archive := &memArchive{}
	store := NewOrderStore(db, dir, archive, zerolog.Nop())
	ctx := context.Background()

	id, err := store.CreateOrder(ctx, internal.Document{Name: "po.pdf", ContentType: internal.MediaTypePDF, Data: []byte("%PDF-1.4")})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	order, err := store.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, internal.StatusProcessing, order.Status)
	assert.Equal(t, "mem://orders/"+id+"/request/po.pdf", order.RequestFile)
	assert.Equal(t, []byte("%PDF-1.4"), archive.objects["orders/"+id+"/request/po.pdf"])
	_, err = os.Stat(filepath.Join(dir, id, "request", "po.pdf"))
	require.NoError(t, err)

	saved, err := store.SaveItems(ctx, id, []internal.OrderItemInput{
		{RequestItem: "Steel Bolt", Quantity: 36, UOM: "ea", PricePerUnit: 11.48, Amount: 413.28},
		{RequestItem: "Hex Nut", Quantity: 10, UOM: "ea"},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	boltID := saved[0].ItemID

	again, err := store.SaveItems(ctx, id, []internal.OrderItemInput{
		{RequestItem: "Steel Bolt", Quantity: 40, UOM: "ea"},
		{RequestItem: "Washer", Quantity: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, boltID, again[0].ItemID)

	items, err := store.ListItems(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"Steel Bolt", "Hex Nut", "Washer"}, []string{items[0].RequestItem, items[1].RequestItem, items[2].RequestItem})
	assert.Equal(t, 40.0, items[0].Quantity)

	updated, err := store.UpdateItems(ctx, id, []internal.OrderItemUpdate{
		{ItemID: boltID, RequestItem: "Steel Bolt", Quantity: 40, UOM: "ea", PricePerUnit: 11.48, Amount: 459.2, Match: "SB-100"},
	})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "SB-100", updated[0].Matches)

	ref, err := store.ExportRef(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "mem://orders/"+id+"/order_"+id+".csv", ref)

	csv := archive.objects["orders/"+id+"/order_"+id+".csv"]
	rows, err := pipeline.ParseCSV(strings.NewReader(string(csv)))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "SB-100", rows[0].SelectedMatch)
	assert.Equal(t, "459.2", rows[0].Amount)

	require.NoError(t, store.UpdateStatus(ctx, id, internal.StatusFinalized))
	order, err = store.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, internal.StatusFinalized, order.Status)

	orders, err := store.ListOrders(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestSaveItemsCollapsesDuplicateDescriptions(t *testing.T) {
	store := NewOrderStore(openTestDB(t), t.TempDir(), nil, zerolog.Nop())
	ctx := context.Background()

	id, err := store.CreateOrder(ctx, internal.Document{Name: "po.pdf", Data: []byte("x")})
	require.NoError(t, err)

	saved, err := store.SaveItems(ctx, id, []internal.OrderItemInput{{RequestItem: "Bolt"}, {RequestItem: "Bolt", Quantity: 2}})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, saved[0].ItemID, saved[1].ItemID)

	items, err := store.ListItems(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2.0, items[0].Quantity)
}

func TestOrderStoreErrors(t *testing.T) {
	store := NewOrderStore(openTestDB(t), t.TempDir(), nil, zerolog.Nop())
	ctx := context.Background()

	_, err := store.SaveItems(ctx, "missing", []internal.OrderItemInput{{RequestItem: "Bolt"}})
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.ErrorIs(t, store.UpdateStatus(ctx, "missing", internal.StatusReview), ErrOrderNotFound)

	id, err := store.CreateOrder(ctx, internal.Document{Name: "po.pdf", Data: []byte("x")})
	require.NoError(t, err)
	assert.Error(t, store.UpdateStatus(ctx, id, "archived"))

	_, err = store.UpdateItems(ctx, id, []internal.OrderItemUpdate{{ItemID: "nope"}})
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestCreateOrderArchiveFailure(t *testing.T) {
	store := NewOrderStore(openTestDB(t), t.TempDir(), &memArchive{err: errors.New("bucket gone")}, zerolog.Nop())
	_, err := store.CreateOrder(context.Background(), internal.Document{Name: "po.pdf", Data: []byte("x")})
	assert.Error(t, err)
}

func TestProducts(t *testing.T) {
	db := openTestDB(t)
	unit := "ea"

	require.NoError(t, db.UpsertProducts([]internal.ProductRecord{
		{SKU: "SB-100", Header: "Steel Bolt", Unit: &unit, Codes: []string{"B-1"}},
		{SKU: "HN-8", Header: "Hex Nut"},
	}))
	require.NoError(t, db.UpsertProducts([]internal.ProductRecord{{SKU: "SB-100", Header: "Steel Bolt M8"}}))

	products, err := db.ListProducts()
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Steel Bolt M8", products[0].Header)
	assert.Nil(t, products[0].Unit)
	assert.Empty(t, products[0].Codes)
	assert.NotZero(t, products[1].ID)

	assert.Error(t, db.UpsertProducts([]internal.ProductRecord{{Header: "no sku"}}))
}

func TestEmailsAndRuns(t *testing.T) {
	db := openTestDB(t)

	email, err := db.UpsertEmail("imap", "<1@example.com>", "PO 7", "buyer@example.com", "2026-02-08T00:00:00Z", "hash", "/tmp/1.eml", "fetched")
	require.NoError(t, err)
	assert.Equal(t, "fetched", email.Status)

	pending, err := db.ListEmailsByStatus("fetched", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, db.UpdateEmailStatus(email.ID, "processed"))
	got, err := db.MustEmailByProviderMessageID("imap", "<1@example.com>")
	require.NoError(t, err)
	assert.Equal(t, "processed", got.Status)

	_, err = db.MustEmailByProviderMessageID("imap", "<2@example.com>")
	assert.ErrorIs(t, err, ErrEmailNotFound)
	assert.ErrorIs(t, db.UpdateEmailStatus(email.ID+100, "processed"), ErrEmailNotFound)

	refetched, err := db.UpsertEmail("imap", "<1@example.com>", "PO 7 (fwd)", "buyer@example.com", "2026-02-08T00:00:00Z", "hash", "/tmp/1.eml", "fetched")
	require.NoError(t, err)
	assert.Equal(t, email.ID, refetched.ID)
	assert.Equal(t, "processed", refetched.Status)
	assert.Equal(t, "PO 7 (fwd)", refetched.Subject)

	require.NoError(t, db.InsertRun("t1", email.ID, "order-1", map[string]float64{"totalMs": 3}, map[string]int{"items": 2}))
	require.NoError(t, db.InsertRun("t2", email.ID, "", map[string]float64{}, map[string]int{}))
	orders, err := db.OrdersForEmail(email.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"order-1"}, orders)

	require.NoError(t, db.SetMetadata("k", "v"))
	v, err := db.GetMetadata("k")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "v", *v)
	missing, err := db.GetMetadata("none")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
