package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poflow/internal"
	"poflow/internal/session"
)

type fakeOrders struct {
	mu sync.Mutex

	orderID   string
	createErr error
	saveErr   error
	updateErr error

	createCalls int
	saved       []internal.OrderItemInput
	updates     []internal.OrderItemUpdate
	statuses    []internal.OrderStatus
}

func (f *fakeOrders) CreateOrder(_ context.Context, _ internal.Document) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.orderID, nil
}

func (f *fakeOrders) SaveItems(_ context.Context, orderID string, items []internal.OrderItemInput) ([]internal.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.saved = append(f.saved, items...)
	out := make([]internal.OrderItem, 0, len(items))
	for i, in := range items {
		out = append(out, internal.OrderItem{
			OrderID:     orderID,
			ItemID:      fmt.Sprintf("item-%d", i+1),
			RequestItem: in.RequestItem,
			Quantity:    in.Quantity,
		})
	}
	return out, nil
}

func (f *fakeOrders) UpdateItems(_ context.Context, orderID string, updates []internal.OrderItemUpdate) ([]internal.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updates = append(f.updates, updates...)
	out := make([]internal.OrderItem, 0, len(updates))
	for _, u := range updates {
		out = append(out, internal.OrderItem{OrderID: orderID, ItemID: u.ItemID, RequestItem: u.RequestItem, Matches: u.Match})
	}
	return out, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, _ string, status internal.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

type fakeExtractor struct {
	rows  []internal.RawRow
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, _ internal.Document) ([]internal.RawRow, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeMatcher struct {
	results map[string][]internal.Match
	err     error
	calls   int
	queries []string
}

func (f *fakeMatcher) MatchBatch(_ context.Context, queries []string) (map[string][]internal.Match, error) {
	f.calls++
	f.queries = append(f.queries, queries...)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakePreviewer struct{ err error }

func (f fakePreviewer) Preview(doc internal.Document) (internal.Preview, error) {
	if f.err != nil {
		return internal.Preview{}, f.err
	}
	return internal.Preview{URL: "file:///tmp/" + doc.Name, Pages: 1}, nil
}

var samplePDF = internal.Document{Name: "po.pdf", Data: []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")}

func twoRows() []internal.RawRow {
	return []internal.RawRow{
		{internal.KeyRequestItem: "Steel Bolt M8", internal.KeyQuantity: "100", internal.KeyUnit: "EA", internal.KeyPrice: "0.25", internal.KeyTotal: "25.00"},
		{internal.KeyRequestItem: "Hex Nut M8", internal.KeyQuantity: "100", internal.KeyUnit: "EA", internal.KeyUnitCost: "0.10", internal.KeyAmount: "10.00"},
	}
}

type harness struct {
	orch      *Orchestrator
	sess      *session.Session
	orders    *fakeOrders
	extractor *fakeExtractor
	matcher   *fakeMatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sess:      session.New(),
		orders:    &fakeOrders{orderID: "42"},
		extractor: &fakeExtractor{rows: twoRows()},
		matcher: &fakeMatcher{results: map[string][]internal.Match{
			"Steel Bolt M8": {{Match: "SB-100", Score: 91.2}, {Match: "SB-200", Score: 64}},
			"Hex Nut M8":    {{Match: "HN-8", Score: 88}},
		}},
	}
	h.orch = NewOrchestrator(h.sess, Deps{
		Orders:    h.orders,
		Extractor: h.extractor,
		Matcher:   h.matcher,
		Previewer: fakePreviewer{},
	}, MergeOptions{}, zerolog.Nop())
	return h
}

func TestHappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var lengths []int
	var overlapping bool
	h.sess.OnChange(func(_ session.Action, s session.State) {
		lengths = append(lengths, len(s.LineItems))
		raised := 0
		for _, v := range s.Flags {
			if v {
				raised++
			}
		}
		if raised > 1 {
			overlapping = true
		}
	})

	require.True(t, h.orch.SelectFile(samplePDF))
	require.NoError(t, h.orch.ConfirmUpload(ctx))

	st := h.sess.Snapshot()
	assert.Equal(t, "42", st.OrderID)
	assert.Equal(t, session.ViewExtract, st.View)
	assert.Equal(t, session.PhaseExtracted, st.Phase)
	require.Len(t, st.LineItems, 2)

	require.NoError(t, h.orch.SaveAndGenerateMapping(ctx))

	st = h.sess.Snapshot()
	assert.Equal(t, session.ViewMatch, st.View)
	assert.Equal(t, session.PhaseMatched, st.Phase)
	require.Len(t, st.LineItems, 2)
	assert.Equal(t, []internal.Match{{Match: "SB-100", Score: 91.2}, {Match: "SB-200", Score: 64}}, st.LineItems[0].Matches)
	assert.Equal(t, []internal.Match{{Match: "HN-8", Score: 88}}, st.LineItems[1].Matches)
	assert.Equal(t, "item-1", st.LineItems[0].ItemID)
	assert.Equal(t, "item-2", st.LineItems[1].ItemID)
	assert.Empty(t, st.LineItems[0].SelectedMatch)
	assert.False(t, session.TrackerOf(st).Busy())

	seenTwo := false
	for _, n := range lengths {
		if n == 2 {
			seenTwo = true
			continue
		}
		assert.False(t, seenTwo, "line item count changed after extraction")
	}
	assert.False(t, overlapping, "two stage flags were raised at once")

	assert.ElementsMatch(t, []string{"Steel Bolt M8", "Hex Nut M8"}, h.matcher.queries)
	require.Len(t, h.orders.saved, 2)
	assert.Equal(t, 0.10, h.orders.saved[1].PricePerUnit)
	assert.Equal(t, 10.0, h.orders.saved[1].Amount)
}

func TestUploadFailureLeavesSessionUsable(t *testing.T) {
	h := newHarness(t)
	h.orders.createErr = errors.New("status 500")

	require.True(t, h.orch.SelectFile(samplePDF))
	err := h.orch.ConfirmUpload(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)

	st := h.sess.Snapshot()
	assert.False(t, st.Flags[session.StageUploading])
	assert.Empty(t, st.OrderID)
	assert.Equal(t, session.ViewUpload, st.View)
	assert.Empty(t, st.LineItems)
	assert.Equal(t, session.PhaseFailed, st.Phase)
	require.NotNil(t, st.Failure)
	assert.Equal(t, session.StageUploading, st.Failure.Stage)
	assert.Zero(t, h.extractor.calls)

	h.orders.createErr = nil
	require.NoError(t, h.orch.ConfirmUpload(context.Background()))
	assert.Equal(t, "42", h.sess.Snapshot().OrderID)
	assert.Nil(t, h.sess.Snapshot().Failure)
}

func TestSaveFailureSkipsMatching(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.True(t, h.orch.SelectFile(samplePDF))
	require.NoError(t, h.orch.ConfirmUpload(ctx))

	h.orders.saveErr = errors.New("status 502")
	before := h.sess.Snapshot().LineItems

	require.Error(t, h.orch.SaveAndGenerateMapping(ctx))
	assert.Zero(t, h.matcher.calls)

	st := h.sess.Snapshot()
	assert.False(t, st.Flags[session.StageMatching])
	assert.Equal(t, before, st.LineItems)
	assert.Equal(t, session.ViewExtract, st.View)
	assert.Equal(t, session.StageMatching, st.Failure.Stage)
}

func TestMatcherFailureDoesNotMerge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.True(t, h.orch.SelectFile(samplePDF))
	require.NoError(t, h.orch.ConfirmUpload(ctx))

	h.matcher.err = errors.New("timeout")
	require.Error(t, h.orch.SaveAndGenerateMapping(ctx))

	st := h.sess.Snapshot()
	for _, item := range st.LineItems {
		assert.Nil(t, item.Matches)
		assert.Empty(t, item.ItemID)
	}
	assert.False(t, st.Flags[session.StageMatching])
}

func TestPreconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.orch.ConfirmUpload(ctx), ErrNoDocument)
	assert.ErrorIs(t, h.orch.ExtractData(ctx), ErrNoDocument)
	assert.ErrorIs(t, h.orch.SaveAndGenerateMapping(ctx), ErrMissingOrderID)
	assert.ErrorIs(t, h.orch.SaveOrder(ctx), ErrMissingOrderID)
	assert.ErrorIs(t, h.orch.EditField(0, session.FieldDescription, "x"), ErrIndexOutOfRange)
	assert.Equal(t, session.Initial(), h.sess.Snapshot())

	h.sess.Dispatch(session.SetOrderID{OrderID: "42"})
	assert.ErrorIs(t, h.orch.SaveAndGenerateMapping(ctx), ErrNoLineItems)
	assert.ErrorIs(t, h.orch.SaveOrder(ctx), ErrNoLineItems)
	assert.Zero(t, h.orders.createCalls)
	assert.Empty(t, h.orders.saved)
}

func TestSelectFileRejectsOtherMediaTypes(t *testing.T) {
	h := newHarness(t)

	assert.False(t, h.orch.SelectFile(internal.Document{Name: "po.png", Data: []byte("\x89PNG\r\n\x1a\n0000")}))
	assert.False(t, h.orch.SelectFile(internal.Document{Name: "po.txt", ContentType: "text/plain", Data: []byte("hello")}))
	assert.Equal(t, session.Initial(), h.sess.Snapshot())

	assert.True(t, h.orch.SelectFile(internal.Document{Name: "po.pdf", ContentType: "application/pdf; charset=binary", Data: []byte("x")}))
	st := h.sess.Snapshot()
	assert.Equal(t, session.PhaseFileSelected, st.Phase)
	assert.Equal(t, 1, st.Source.Preview.Pages)
}

func TestSelectFileWithoutPreview(t *testing.T) {
	h := newHarness(t)
	h.orch.deps.Previewer = fakePreviewer{err: errors.New("bad pdf")}

	require.True(t, h.orch.SelectFile(samplePDF))
	st := h.sess.Snapshot()
	require.NotNil(t, st.Source)
	assert.Equal(t, internal.Preview{}, st.Source.Preview)
}

func TestSaveOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.True(t, h.orch.SelectFile(samplePDF))
	require.NoError(t, h.orch.ConfirmUpload(ctx))

	assert.ErrorIs(t, h.orch.SaveOrder(ctx), ErrItemsNotSaved)

	require.NoError(t, h.orch.SaveAndGenerateMapping(ctx))
	require.NoError(t, h.orch.EditField(0, session.FieldSelectedMatch, "SB-100"))
	require.NoError(t, h.orch.EditField(1, session.FieldQuantity, "120"))
	require.NoError(t, h.orch.SaveOrder(ctx))

	st := h.sess.Snapshot()
	assert.Equal(t, session.PhaseSaved, st.Phase)
	assert.False(t, st.Flags[session.StageSaving])

	require.Len(t, h.orders.updates, 2)
	assert.Equal(t, "item-1", h.orders.updates[0].ItemID)
	assert.Equal(t, "SB-100", h.orders.updates[0].Match)
	assert.Equal(t, 120.0, h.orders.updates[1].Quantity)
	assert.Equal(t, []internal.OrderStatus{internal.StatusFinalized}, h.orders.statuses)

	assert.ErrorIs(t, h.orch.SaveOrder(ctx), ErrOrderSaved)
	assert.ErrorIs(t, h.orch.SaveAndGenerateMapping(ctx), ErrOrderSaved)
	assert.ErrorIs(t, h.orch.ExtractData(ctx), ErrOrderSaved)
	st = h.sess.Snapshot()
	assert.Equal(t, session.PhaseSaved, st.Phase)
	assert.Nil(t, st.Failure)
	assert.Len(t, h.orders.updates, 2)
	assert.Equal(t, 1, h.extractor.calls)

	require.True(t, h.orch.SelectFile(samplePDF))
	require.NoError(t, h.orch.ExtractData(ctx))
	assert.Equal(t, 2, h.extractor.calls)
}

func TestExtractionFailureKeepsOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.extractor.err = errors.New("extraction service unavailable")

	require.True(t, h.orch.SelectFile(samplePDF))
	err := h.orch.ConfirmUpload(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)

	st := h.sess.Snapshot()
	assert.Equal(t, "42", st.OrderID)
	assert.Equal(t, session.ViewExtract, st.View)
	assert.False(t, st.Flags[session.StageExtracting])
	assert.False(t, st.Flags[session.StageUploading])
	assert.Empty(t, st.LineItems)
	assert.Equal(t, session.PhaseFailed, st.Phase)
	require.NotNil(t, st.Failure)
	assert.Equal(t, session.StageExtracting, st.Failure.Stage)
	assert.Equal(t, 1, h.orders.createCalls)

	h.extractor.err = nil
	require.NoError(t, h.orch.ExtractData(ctx))

	st = h.sess.Snapshot()
	assert.Equal(t, "42", st.OrderID)
	assert.Equal(t, session.PhaseExtracted, st.Phase)
	assert.Nil(t, st.Failure)
	assert.Len(t, st.LineItems, 2)
	assert.Equal(t, 1, h.orders.createCalls)
	assert.Equal(t, 2, h.extractor.calls)
}

func TestSaveOrderFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.True(t, h.orch.SelectFile(samplePDF))
	require.NoError(t, h.orch.ConfirmUpload(ctx))
	require.NoError(t, h.orch.SaveAndGenerateMapping(ctx))

	h.orders.updateErr = errors.New("status 503")
	require.Error(t, h.orch.SaveOrder(ctx))

	st := h.sess.Snapshot()
	assert.Equal(t, session.PhaseFailed, st.Phase)
	assert.Equal(t, session.StageSaving, st.Failure.Stage)
	assert.Empty(t, h.orders.statuses)
	assert.Len(t, st.LineItems, 2)
}

func TestAutoSelectDuringMapping(t *testing.T) {
	h := newHarness(t)
	h.orch.opts = MergeOptions{AutoSelect: true, AutoSelectMinScore: 90}
	ctx := context.Background()

	require.True(t, h.orch.SelectFile(samplePDF))
	require.NoError(t, h.orch.ConfirmUpload(ctx))
	require.NoError(t, h.orch.SaveAndGenerateMapping(ctx))

	st := h.sess.Snapshot()
	assert.Equal(t, "SB-100", st.LineItems[0].SelectedMatch)
	assert.Empty(t, st.LineItems[1].SelectedMatch)
}

func TestResetSession(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.orch.SelectFile(samplePDF))
	require.NoError(t, h.orch.ConfirmUpload(context.Background()))

	h.orch.ResetSession()
	assert.Equal(t, session.Initial(), h.sess.Snapshot())
}
