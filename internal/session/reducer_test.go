package session

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poflow/internal"
)

func pdfDoc() internal.Document {
	return internal.Document{Name: "po.pdf", ContentType: internal.MediaTypePDF, Data: []byte("%PDF-1.4")}
}

func twoItems() []internal.LineItem {
	return LineItemsFromRows([]internal.RawRow{
		{internal.KeyRequestItem: "Steel Bolt", internal.KeyQuantity: "36", internal.KeyUnit: "ea", internal.KeyPrice: "11.48", internal.KeyTotal: "413.28"},
		{internal.KeyRequestItem: "Brass Nut", internal.KeyQuantity: "10", internal.KeyUnit: "ea", internal.KeyUnitCost: "2.50", internal.KeyAmount: "25.00"},
	})
}

func seeded() State {
	s := Reduce(Initial(), SetFileSelected{Document: pdfDoc(), Preview: internal.Preview{URL: "file:///tmp/po.pdf", Pages: 1}})
	s = Reduce(s, SetOrderID{OrderID: "42"})
	return Reduce(s, SetLineItems{Items: twoItems()})
}

func TestReduceIsIdempotent(t *testing.T) {
	actions := []Action{
		SetFileSelected{Document: pdfDoc()},
		SetStageFlag{Stage: StageMatching, Value: true},
		SetLineItems{Items: twoItems()},
		SetOrderID{OrderID: "7"},
		SetActiveView{View: ViewMatch},
		EditLineItemField{Index: 1, Field: FieldQuantity, Value: "12"},
		EditLineItemField{Index: 0, Field: FieldSelectedMatch, Value: "SB-100"},
		SetPhase{Phase: PhaseFailed, Failure: &Failure{Stage: StageMatching, Message: "boom"}},
		Reset{},
	}

	for _, a := range actions {
		t.Run(reflect.TypeOf(a).Name(), func(t *testing.T) {
			once := Reduce(seeded(), a)
			twice := Reduce(once, a)
			assert.Equal(t, once, twice)
		})
	}
}

func TestEditLineItemFieldChangesOnlyTarget(t *testing.T) {
	before := seeded()
	after := Reduce(before, EditLineItemField{Index: 1, Field: FieldDescription, Value: "Brass Nut 1/2"})

	require.Len(t, after.LineItems, 2)
	assert.Equal(t, "Brass Nut 1/2", Description(after.LineItems[1]))
	assert.Equal(t, "Brass Nut", Description(before.LineItems[1]), "input state must not be written through")

	assert.Equal(t, before.LineItems[0], after.LineItems[0])
	assert.Equal(t, reflect.ValueOf(before.LineItems[0].Fields).Pointer(), reflect.ValueOf(after.LineItems[0].Fields).Pointer())

	assert.Equal(t, "2.50", UnitPrice(after.LineItems[1]))
	assert.Equal(t, before.LineItems[1].Fields[internal.KeyQuantity], after.LineItems[1].Fields[internal.KeyQuantity])
}

func TestEditLineItemFieldOutOfRangeIsNoop(t *testing.T) {
	before := seeded()
	for _, idx := range []int{-1, 2, 99} {
		after := Reduce(before, EditLineItemField{Index: idx, Field: FieldDescription, Value: "x"})
		assert.Equal(t, before, after)
	}
}

func TestPriceFallbackChain(t *testing.T) {
	s := seeded()
	assert.Equal(t, "2.50", UnitPrice(s.LineItems[1]))
	assert.Equal(t, "25.00", Amount(s.LineItems[1]))

	s = Reduce(s, EditLineItemField{Index: 1, Field: FieldUnitPrice, Value: "3.00"})
	assert.Equal(t, "3.00", UnitPrice(s.LineItems[1]))

	s = Reduce(s, EditLineItemField{Index: 1, Field: FieldUnitPrice, Value: ""})
	assert.Equal(t, "2.50", UnitPrice(s.LineItems[1]), "empty primary falls back to the alternate key")
}

func TestSetFileSelectedClearsDownstream(t *testing.T) {
	s := seeded()
	s = Reduce(s, SetPhase{Phase: PhaseFailed, Failure: &Failure{Stage: StageExtracting, Message: "x"}})

	doc := pdfDoc()
	doc.Name = "other.pdf"
	next := Reduce(s, SetFileSelected{Document: doc})

	require.NotNil(t, next.Source)
	assert.Equal(t, "other.pdf", next.Source.Document.Name)
	assert.Empty(t, next.OrderID)
	assert.Nil(t, next.LineItems)
	assert.Nil(t, next.Failure)
	assert.Equal(t, PhaseFileSelected, next.Phase)
}

func TestStageFlagsAreIndependent(t *testing.T) {
	s := Reduce(Initial(), SetStageFlag{Stage: StageUploading, Value: true})
	assert.True(t, s.Flags[StageUploading])
	assert.False(t, s.Flags[StageExtracting])

	prev := s
	s = Reduce(s, SetStageFlag{Stage: StageUploading, Value: false})
	assert.False(t, s.Flags[StageUploading])
	assert.True(t, prev.Flags[StageUploading])
}

func TestSetPhaseDropsFailureOutsideFailed(t *testing.T) {
	s := Reduce(Initial(), SetPhase{Phase: PhaseExtracted, Failure: &Failure{Message: "ignored"}})
	assert.Nil(t, s.Failure)
	assert.Equal(t, PhaseExtracted, s.Phase)
}

func TestResetReturnsInitial(t *testing.T) {
	assert.Equal(t, Initial(), Reduce(seeded(), Reset{}))
}

func TestStoreRowsSortMatchesOnRead(t *testing.T) {
	s := seeded()
	items := append([]internal.LineItem(nil), s.LineItems...)
	items[0].Matches = []internal.Match{{Match: "SB-090", Score: 40}, {Match: "SB-100", Score: 91.2}, {Match: "SB-110", Score: 65}}
	s = Reduce(s, SetLineItems{Items: items})

	rows := StoreOf(s).Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Number)
	assert.Equal(t, []string{"SB-100", "SB-110", "SB-090"}, []string{rows[0].Matches[0].Match, rows[0].Matches[1].Match, rows[0].Matches[2].Match})
	assert.Equal(t, "SB-090", s.LineItems[0].Matches[0].Match, "stored order is untouched")
	assert.Nil(t, rows[1].Matches)
	assert.Equal(t, "25.00", rows[1].Amount)
}

func TestStoreItemIsACopy(t *testing.T) {
	s := seeded()
	items := append([]internal.LineItem(nil), s.LineItems...)
	items[0].Matches = []internal.Match{{Match: "SB-100", Score: 91.2}}
	s = Reduce(s, SetLineItems{Items: items})

	item, ok := StoreOf(s).Item(0)
	require.True(t, ok)
	item.Fields[internal.KeyRequestItem] = "changed"
	item.Matches[0].Match = "changed"

	assert.Equal(t, "Steel Bolt", s.LineItems[0].Fields[internal.KeyRequestItem])
	assert.Equal(t, "SB-100", s.LineItems[0].Matches[0].Match)

	_, ok = StoreOf(s).Item(2)
	assert.False(t, ok)
}

func TestTracker(t *testing.T) {
	s := seeded()
	tr := TrackerOf(s)
	assert.False(t, tr.Busy())
	assert.True(t, tr.CanGenerateMapping())

	s = Reduce(s, SetStageFlag{Stage: StageExtracting, Value: true})
	tr = TrackerOf(s)
	assert.True(t, tr.Busy())
	assert.True(t, tr.Extracting())
	assert.False(t, tr.CanGenerateMapping())
	assert.False(t, tr.CanSaveOrder())
}

func TestSessionDispatchConcurrentEdits(t *testing.T) {
	sess := New()
	sess.Dispatch(SetLineItems{Items: twoItems()})

	var seen int
	var mu sync.Mutex
	sess.OnChange(func(Action, State) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess.Dispatch(EditLineItemField{Index: i % 2, Field: FieldQuantity, Value: "1"})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, seen)
	assert.Equal(t, 2, sess.Store().Len())
	assert.NotEmpty(t, sess.ID())
}
