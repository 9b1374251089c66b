package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"poflow/internal"
)

// OrdersClient talks to the order ingestion service.
//
//	POST  {base}/orders                     multipart request_file -> Order
//	POST  {base}/orders/{id}/items          []OrderItemInput -> []OrderItem
//	PATCH {base}/orders/{id}/items/matches  []OrderItemUpdate -> []OrderItem
//	GET   {base}/orders/{id}/items          -> []OrderItem
//	PATCH {base}/orders/{id}/status         {"status": ...}
type OrdersClient struct {
	baseURL string
	c       *client
}

func NewOrdersClient(baseURL string, opts Options) *OrdersClient {
	return &OrdersClient{baseURL: strings.TrimRight(baseURL, "/"), c: newClient("orders", opts)}
}

func (o *OrdersClient) CreateOrder(ctx context.Context, doc internal.Document) (string, error) {
	var order internal.Order
	req := request{method: http.MethodPost, url: o.baseURL + "/orders", once: true}
	if err := o.c.sendFile(ctx, req, "request_file", doc, &order); err != nil {
		return "", err
	}
	if order.ID == "" {
		return "", errors.New("orders: response has no id")
	}
	return order.ID, nil
}

func (o *OrdersClient) SaveItems(ctx context.Context, orderID string, items []internal.OrderItemInput) ([]internal.OrderItem, error) {
	var out []internal.OrderItem
	if err := o.c.doJSON(ctx, http.MethodPost, o.orderURL(orderID, "items"), items, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *OrdersClient) UpdateItems(ctx context.Context, orderID string, updates []internal.OrderItemUpdate) ([]internal.OrderItem, error) {
	var out []internal.OrderItem
	if err := o.c.doJSON(ctx, http.MethodPatch, o.orderURL(orderID, "items/matches"), updates, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *OrdersClient) ListItems(ctx context.Context, orderID string) ([]internal.OrderItem, error) {
	var out []internal.OrderItem
	if err := o.c.doJSON(ctx, http.MethodGet, o.orderURL(orderID, "items"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *OrdersClient) UpdateStatus(ctx context.Context, orderID string, status internal.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("orders: invalid status %q", status)
	}
	body := map[string]string{"status": string(status)}
	return o.c.doJSON(ctx, http.MethodPatch, o.orderURL(orderID, "status"), body, nil)
}

func (o *OrdersClient) orderURL(orderID, suffix string) string {
	return o.baseURL + "/orders/" + url.PathEscape(orderID) + "/" + suffix
}
