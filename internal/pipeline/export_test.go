package pipeline

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"poflow/internal"
	"poflow/internal/session"
)

func exportFixture() []internal.LineItem {
	items := session.LineItemsFromRows([]internal.RawRow{
		{internal.KeyRequestItem: `Bolt, 3/8" "heavy"`, internal.KeyQuantity: "12", internal.KeyUnit: "EA", internal.KeyPrice: "1.50", internal.KeyTotal: "18.00"},
		{internal.KeyRequestItem: "Pipe\nschedule 40", internal.KeyQuantity: "2 lengths", internal.KeyUnit: "", internal.KeyUnitCost: "40", internal.KeyAmount: "80"},
		{internal.KeyRequestItem: ""},
	})
	items[0].SelectedMatch = "BLT-38"
	return items
}

func TestCSVRoundTrip(t *testing.T) {
	items := exportFixture()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, items))
	assert.True(t, strings.HasPrefix(buf.String(), "Item Number,Request Item,Quantity,UOM,Price/Unit,Amount,Selected Match\n"))

	rows, err := ParseCSV(&buf)
	require.NoError(t, err)
	require.Len(t, rows, len(items))
	assert.Equal(t, ExportRows(items), rows)

	assert.Equal(t, 2, rows[1].ItemNumber)
	assert.Equal(t, "40", rows[1].PricePerUnit)
	assert.Equal(t, "80", rows[1].Amount)
	assert.Equal(t, "BLT-38", rows[0].SelectedMatch)
}

func TestParseCSVRejectsForeignHeader(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("a,b,c,d,e,f,g\n1,2,3,4,5,6,7\n"))
	assert.Error(t, err)

	_, err = ParseCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestExportRowsFromOrderItems(t *testing.T) {
	rows := ExportRowsFromOrderItems([]internal.OrderItem{
		{RequestItem: "Bolt", Quantity: 12, UOM: "EA", PricePerUnit: 1.5, Amount: 18, Matches: "BLT-38"},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, ExportRow{ItemNumber: 1, RequestItem: "Bolt", Quantity: "12", UOM: "EA", PricePerUnit: "1.5", Amount: "18", SelectedMatch: "BLT-38"}, rows[0])
}

func TestExportXLSX(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "order.xlsx")
	require.NoError(t, ExportXLSX(ExportRows(exportFixture()), out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, ExportHeaders, rows[0])
	assert.Equal(t, "12", rows[1][2])
	assert.Equal(t, "2 lengths", rows[2][2])
}
