package session

import (
	"sort"

	"poflow/internal"
)

// Row is a display projection of one line item with fallback keys resolved.
type Row struct {
	Number        int
	Description   string
	Quantity      string
	Unit          string
	UnitPrice     string
	Amount        string
	SelectedMatch string
	Matches       []internal.Match
	ItemID        string
}

// Store is the read-only view of the line items in a state.
type Store struct {
	items []internal.LineItem
}

func StoreOf(s State) Store {
	return Store{items: s.LineItems}
}

func (st Store) Len() int { return len(st.items) }

func (st Store) Empty() bool { return len(st.items) == 0 }

// Item returns a copy of the item at index i.
func (st Store) Item(i int) (internal.LineItem, bool) {
	if i < 0 || i >= len(st.items) {
		return internal.LineItem{}, false
	}
	item := st.items[i]
	if item.Fields != nil {
		fields := make(map[string]string, len(item.Fields))
		for k, v := range item.Fields {
			fields[k] = v
		}
		item.Fields = fields
	}
	if item.Matches != nil {
		item.Matches = append([]internal.Match(nil), item.Matches...)
	}
	return item, true
}

func (st Store) Rows() []Row {
	out := make([]Row, 0, len(st.items))
	for i, item := range st.items {
		out = append(out, Row{
			Number:        i + 1,
			Description:   Description(item),
			Quantity:      Quantity(item),
			Unit:          Unit(item),
			UnitPrice:     UnitPrice(item),
			Amount:        Amount(item),
			SelectedMatch: item.SelectedMatch,
			Matches:       SortedMatches(item),
			ItemID:        item.ItemID,
		})
	}
	return out
}

// SortedMatches returns the item's candidates by descending score. Stored
// order is left untouched.
func SortedMatches(item internal.LineItem) []internal.Match {
	if item.Matches == nil {
		return nil
	}
	out := append([]internal.Match(nil), item.Matches...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Tracker is the read-only view of the per-stage loading flags.
type Tracker struct {
	flags map[Stage]bool
	state State
}

func TrackerOf(s State) Tracker {
	return Tracker{flags: s.Flags, state: s}
}

func (t Tracker) Active(stage Stage) bool {
	return t.flags[stage]
}

func (t Tracker) Uploading() bool  { return t.flags[StageUploading] }
func (t Tracker) Extracting() bool { return t.flags[StageExtracting] }
func (t Tracker) Matching() bool   { return t.flags[StageMatching] }
func (t Tracker) Saving() bool     { return t.flags[StageSaving] }

// Busy reports whether any stage is running.
func (t Tracker) Busy() bool {
	for _, v := range t.flags {
		if v {
			return true
		}
	}
	return false
}

// CanGenerateMapping mirrors when the mapping action is offered to the user.
func (t Tracker) CanGenerateMapping() bool {
	return !t.Extracting() && !t.Matching() && len(t.state.LineItems) > 0
}

func (t Tracker) CanSaveOrder() bool {
	return !t.Extracting() && !t.Matching() && !t.Saving() && len(t.state.LineItems) > 0
}
