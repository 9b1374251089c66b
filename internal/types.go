package internal

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Raw extraction keys. The extraction service is not consistent across
// source documents, so price and total each have an alternate key.
const (
	KeyRequestItem = "REQUEST ITEM"
	KeyQuantity    = "QUANTITY COL"
	KeyUnit        = "UNIT COL"
	KeyPrice       = "PRICE"
	KeyUnitCost    = "UNIT COST"
	KeyTotal       = "TOTAL"
	KeyAmount      = "AMOUNT"
)

const MediaTypePDF = "application/pdf"

// Document is a purchase-order file selected for processing.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// Preview is a locally renderable handle for a selected document.
type Preview struct {
	URL   string
	Pages int
}

// RawRow is one row as returned by an extractor: field key to extracted text.
type RawRow map[string]string

type Match struct {
	Match string  `json:"match"`
	Score float64 `json:"score"`
}

// LineItem is one extracted row of the source document. Fields keeps the raw
// extraction keys so alternate keys survive user edits; read through the
// accessors in package session. Matches is nil until matching has run.
type LineItem struct {
	Fields        map[string]string
	Matches       []Match
	SelectedMatch string
	ItemID        string
}

type OrderStatus string

const (
	StatusProcessing OrderStatus = "processing"
	StatusReview     OrderStatus = "review"
	StatusFinalized  OrderStatus = "finalized"
	StatusFailed     OrderStatus = "failed"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusProcessing, StatusReview, StatusFinalized, StatusFailed:
		return true
	default:
		return false
	}
}

type Order struct {
	ID          string      `json:"id"`
	Date        string      `json:"date"`
	Status      OrderStatus `json:"status"`
	RequestFile string      `json:"request_file"`
	CreatedAt   string      `json:"created_at"`
	UpdatedAt   string      `json:"updated_at"`
}

// OrderItemInput is the save-items payload for a single line.
type OrderItemInput struct {
	RequestItem  string  `json:"request_item"`
	Quantity     float64 `json:"quantity"`
	UOM          string  `json:"uom"`
	PricePerUnit float64 `json:"price_per_unit"`
	Amount       float64 `json:"amount"`
}

// OrderItemUpdate is the update-items payload; Match is persisted as the
// item's chosen catalog match.
type OrderItemUpdate struct {
	ItemID       string  `json:"item_id"`
	RequestItem  string  `json:"request_item"`
	Quantity     float64 `json:"quantity"`
	UOM          string  `json:"uom"`
	PricePerUnit float64 `json:"price_per_unit"`
	Amount       float64 `json:"amount"`
	Match        string  `json:"match"`
}

// OrderItem is an item as stored by the ingestion service.
type OrderItem struct {
	OrderID      string  `json:"order_id"`
	ItemID       string  `json:"item_id"`
	RequestItem  string  `json:"request_item"`
	Quantity     float64 `json:"quantity"`
	UOM          string  `json:"uom"`
	PricePerUnit float64 `json:"price_per_unit"`
	Amount       float64 `json:"amount"`
	Matches      string  `json:"matches,omitempty"`
}

// UnmarshalJSON accepts the numeric fields as JSON numbers, numeric strings
// (decimal columns are serialised as strings) or null. Unparseable values
// decode as zero.
func (it *OrderItem) UnmarshalJSON(data []byte) error {
	type plain OrderItem
	aux := struct {
		*plain
		Quantity     looseNumber `json:"quantity"`
		PricePerUnit looseNumber `json:"price_per_unit"`
		Amount       looseNumber `json:"amount"`
	}{plain: (*plain)(it)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	it.Quantity = float64(aux.Quantity)
	it.PricePerUnit = float64(aux.PricePerUnit)
	it.Amount = float64(aux.Amount)
	return nil
}

type looseNumber float64

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = looseNumber(v)
	return nil
}

// ProductRecord is a local catalog entry used by the local matcher.
type ProductRecord struct {
	ID      int
	SKU     string
	Header  string
	Unit    *string
	Codes   []string
	RawJSON string
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
