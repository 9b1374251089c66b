package session

import (
	"poflow/internal"
)

// Editable field names. Price and total are edited under their primary key;
// reads fall back to the alternate key when the primary is empty.
const (
	FieldDescription   = internal.KeyRequestItem
	FieldQuantity      = internal.KeyQuantity
	FieldUnit          = internal.KeyUnit
	FieldUnitPrice     = internal.KeyPrice
	FieldAmount        = internal.KeyTotal
	FieldSelectedMatch = "selectedMatch"
)

// Field reads a raw key from an item, empty when absent.
func Field(item internal.LineItem, key string) string {
	if item.Fields == nil {
		return ""
	}
	return item.Fields[key]
}

// firstField walks a key fallback chain; the first non-empty value wins.
func firstField(item internal.LineItem, keys ...string) string {
	for _, k := range keys {
		if v := Field(item, k); v != "" {
			return v
		}
	}
	return ""
}

func Description(item internal.LineItem) string {
	return Field(item, internal.KeyRequestItem)
}

func Quantity(item internal.LineItem) string {
	return Field(item, internal.KeyQuantity)
}

func Unit(item internal.LineItem) string {
	return Field(item, internal.KeyUnit)
}

func UnitPrice(item internal.LineItem) string {
	return firstField(item, internal.KeyPrice, internal.KeyUnitCost)
}

func Amount(item internal.LineItem) string {
	return firstField(item, internal.KeyTotal, internal.KeyAmount)
}

// NewLineItem copies a raw extracted row into a line item with no matches.
func NewLineItem(row internal.RawRow) internal.LineItem {
	fields := make(map[string]string, len(row))
	for k, v := range row {
		fields[k] = v
	}
	return internal.LineItem{Fields: fields}
}

// LineItemsFromRows maps extractor output to line items, preserving order.
func LineItemsFromRows(rows []internal.RawRow) []internal.LineItem {
	out := make([]internal.LineItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewLineItem(row))
	}
	return out
}
