package pipeline

import (
	"poflow/internal"
	"poflow/internal/session"
	"poflow/internal/util"
)

// ItemInputs builds the save-items payload. Numeric fields are read with
// leading-number semantics and default to zero.
func ItemInputs(items []internal.LineItem) []internal.OrderItemInput {
	out := make([]internal.OrderItemInput, 0, len(items))
	for _, item := range items {
		out = append(out, internal.OrderItemInput{
			RequestItem:  session.Description(item),
			Quantity:     util.NumberOrZero(session.Quantity(item)),
			UOM:          session.Unit(item),
			PricePerUnit: util.NumberOrZero(session.UnitPrice(item)),
			Amount:       util.NumberOrZero(session.Amount(item)),
		})
	}
	return out
}

// ItemUpdates builds the update-items payload carrying each selected match.
func ItemUpdates(items []internal.LineItem) []internal.OrderItemUpdate {
	out := make([]internal.OrderItemUpdate, 0, len(items))
	for _, item := range items {
		out = append(out, internal.OrderItemUpdate{
			ItemID:       item.ItemID,
			RequestItem:  session.Description(item),
			Quantity:     util.NumberOrZero(session.Quantity(item)),
			UOM:          session.Unit(item),
			PricePerUnit: util.NumberOrZero(session.UnitPrice(item)),
			Amount:       util.NumberOrZero(session.Amount(item)),
			Match:        item.SelectedMatch,
		})
	}
	return out
}

// AssignItemIDs copies server ids onto items. A response with one entry per
// request is joined by position; anything else is joined by description.
func AssignItemIDs(items []internal.LineItem, saved []internal.OrderItem) []internal.LineItem {
	out := append([]internal.LineItem(nil), items...)
	if len(saved) == len(items) {
		for i := range out {
			out[i].ItemID = saved[i].ItemID
		}
		return out
	}

	byDesc := make(map[string]string, len(saved))
	for _, s := range saved {
		if _, ok := byDesc[s.RequestItem]; !ok {
			byDesc[s.RequestItem] = s.ItemID
		}
	}
	for i := range out {
		if id, ok := byDesc[session.Description(out[i])]; ok {
			out[i].ItemID = id
		}
	}
	return out
}

func allSaved(items []internal.LineItem) bool {
	for _, item := range items {
		if item.ItemID == "" {
			return false
		}
	}
	return true
}
