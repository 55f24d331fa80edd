package commerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

// CreateOrder submits an order. The key is sent as the Idempotency-Key header so the
// server can collapse retries before parsing the payload.
func (c *Client) CreateOrder(ctx context.Context, idempotencyKey string, req CreateOrderRequest) (*Order, error) {
	if strings.TrimSpace(idempotencyKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	var order Order
	if err := c.do(ctx, call{
		endpoint:       "create_order",
		method:         http.MethodPost,
		path:           "orders",
		body:           req,
		idempotencyKey: idempotencyKey,
	}, &order); err != nil {
		return nil, err
	}
	if strings.TrimSpace(order.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order service returned no order id")
	}
	return &order, nil
}

// InitiatePayment asks the gateway-initiation endpoint for a hosted payment redirect.
func (c *Client) InitiatePayment(ctx context.Context, orderID string, req InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	var resp InitiatePaymentResponse
	if err := c.do(ctx, call{
		endpoint: "initiate_payment",
		method:   http.MethodPost,
		path:     fmt.Sprintf("orders/%s/payments", url.PathEscape(orderID)),
		body:     req,
	}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PaymentStatus reads the current payment status of an order.
func (c *Client) PaymentStatus(ctx context.Context, orderID, trackingToken string) (*PaymentStatus, error) {
	path := fmt.Sprintf("orders/%s/payment-status", url.PathEscape(orderID))
	if token := strings.TrimSpace(trackingToken); token != "" {
		path += "?" + url.Values{"tracking_token": {token}}.Encode()
	}
	var status PaymentStatus
	if err := c.do(ctx, call{
		endpoint: "payment_status",
		method:   http.MethodGet,
		path:     path,
	}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
