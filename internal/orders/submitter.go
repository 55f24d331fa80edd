// Package orders turns a cart snapshot and customer form into exactly one order on the
// commerce API.
package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/idempotency"
	"github.com/angelmondragon/packfinderz-storefront/pkg/commerce"
	"github.com/angelmondragon/packfinderz-storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type Outcome string

const (
	OutcomeSubmitted Outcome = "submitted"
	// OutcomeAlreadySubmitted means the order most likely exists already. It is a success.
	OutcomeAlreadySubmitted Outcome = "already_submitted"
)

type orderCreator interface {
	CreateOrder(ctx context.Context, idempotencyKey string, req commerce.CreateOrderRequest) (*commerce.Order, error)
}

type keyManager interface {
	KeyFor(ctx context.Context, cart *models.CartRecord, customer idempotency.Customer) (string, error)
}

type cartMarker interface {
	MarkSubmitted(ctx context.Context, cartID uuid.UUID, orderID string) error
}

type metrics interface {
	IncSubmission(outcome string)
}

// CustomerForm carries the contact fields entered at checkout.
type CustomerForm struct {
	Name            string
	Phone           string
	Email           string
	DeliveryAddress string
}

// Result is the normalized outcome of a submission. OrderID may be empty for
// OutcomeAlreadySubmitted when the server did not echo it.
type Result struct {
	Outcome        Outcome
	OrderID        string
	Order          *commerce.Order
	IdempotencyKey string
}

// sharedCallTimeout bounds an upstream call that no single request owns.
const sharedCallTimeout = 30 * time.Second

// Submitter never retries on its own; the caller re-invokes Submit.
type Submitter struct {
	orders  orderCreator
	keys    keyManager
	carts   cartMarker
	source  string
	logg    *logger.Logger
	metrics metrics
	flight  singleflight.Group
}

func NewSubmitter(orders orderCreator, keys keyManager, carts cartMarker, source string, logg *logger.Logger, m metrics) (*Submitter, error) {
	if orders == nil {
		return nil, fmt.Errorf("order client required")
	}
	if keys == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart marker required")
	}
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("order source required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Submitter{orders: orders, keys: keys, carts: carts, source: source, logg: logg, metrics: m}, nil
}

// Submit validates the cart and form, then creates the order with the cart's idempotency
// key. Concurrent calls for the same cart share one upstream request.
func (s *Submitter) Submit(ctx context.Context, cart *models.CartRecord, form CustomerForm) (*Result, error) {
	if cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is required")
	}
	ctx = s.logg.WithCartID(ctx, cart.ID.String())

	if cart.IsSubmitted {
		s.record(string(OutcomeAlreadySubmitted))
		result := &Result{Outcome: OutcomeAlreadySubmitted}
		if cart.SubmittedOrderID != nil {
			result.OrderID = *cart.SubmittedOrderID
		}
		return result, nil
	}

	req, err := s.buildRequest(cart, form)
	if err != nil {
		s.record("invalid")
		return nil, err
	}

	key, err := s.keys.KeyFor(ctx, cart, idempotency.Customer{Name: form.Name, Phone: form.Phone, Email: form.Email})
	if err != nil {
		s.record("error")
		return nil, err
	}

	// the shared call outlives any one caller; each caller still stops waiting on its own
	// context
	ch := s.flight.DoChan(cart.ID.String(), func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		return s.orders.CreateOrder(callCtx, key, req)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		s.record("abandoned")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "order submission abandoned")
	}
	if res.Shared {
		s.logg.Debug(ctx, "order submission joined an in-flight request")
	}
	if res.Err != nil {
		return s.handleFailure(ctx, cart, key, res.Err)
	}

	order := res.Val.(*commerce.Order)
	ctx = s.logg.WithOrderID(ctx, order.ID)
	if markErr := s.carts.MarkSubmitted(ctx, cart.ID, order.ID); markErr != nil {
		s.logg.Error(ctx, "order created but cart could not be marked submitted", markErr)
	}
	s.logg.Info(ctx, "order submitted")
	s.record(string(OutcomeSubmitted))
	return &Result{Outcome: OutcomeSubmitted, OrderID: order.ID, Order: order, IdempotencyKey: key}, nil
}

func (s *Submitter) handleFailure(ctx context.Context, cart *models.CartRecord, key string, err error) (*Result, error) {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeCartSubmitted:
		result := &Result{Outcome: OutcomeAlreadySubmitted, IdempotencyKey: key}
		if typed := pkgerrors.As(err); typed != nil {
			result.OrderID = orderIDFromDetails(typed.Details())
		}
		if result.OrderID != "" {
			if markErr := s.carts.MarkSubmitted(ctx, cart.ID, result.OrderID); markErr != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", markErr.Error()), "cart could not be marked submitted")
			}
		}
		s.logg.Info(ctx, "cart already submitted; treating as success")
		s.record(string(OutcomeAlreadySubmitted))
		return result, nil
	case pkgerrors.CodeAuthRequired:
		s.record("auth_required")
		return nil, err
	}

	s.record("error")
	if pkgerrors.As(err) == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "submit order")
	}
	return nil, err
}

func (s *Submitter) buildRequest(cart *models.CartRecord, form CustomerForm) (commerce.CreateOrderRequest, error) {
	if len(cart.Lines) == 0 {
		return commerce.CreateOrderRequest{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	items := make([]commerce.OrderItem, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		unitID := strings.TrimSpace(line.UnitID)
		if unitID == "" {
			return commerce.CreateOrderRequest{}, pkgerrors.New(pkgerrors.CodeValidation, "cart line is missing its unit reference").
				WithDetails(map[string]any{"line_id": line.ID.String()})
		}
		if line.Quantity < 1 {
			return commerce.CreateOrderRequest{}, pkgerrors.New(pkgerrors.CodeValidation, "cart line quantity must be at least 1").
				WithDetails(map[string]any{"line_id": line.ID.String()})
		}
		items = append(items, commerce.OrderItem{InventoryUnitID: unitID, Quantity: line.Quantity})
	}

	missing := map[string]string{}
	if strings.TrimSpace(form.Name) == "" {
		missing["customer_name"] = "required"
	}
	if strings.TrimSpace(form.Phone) == "" {
		missing["customer_phone"] = "required"
	}
	if len(missing) > 0 {
		return commerce.CreateOrderRequest{}, pkgerrors.New(pkgerrors.CodeValidation, "customer name and phone are required").WithDetails(missing)
	}

	return commerce.CreateOrderRequest{
		OrderItems:      items,
		CustomerName:    strings.TrimSpace(form.Name),
		CustomerPhone:   strings.TrimSpace(form.Phone),
		CustomerEmail:   strings.TrimSpace(form.Email),
		DeliveryAddress: strings.TrimSpace(form.DeliveryAddress),
		OrderSource:     s.source,
	}, nil
}

func (s *Submitter) record(outcome string) {
	if s.metrics != nil {
		s.metrics.IncSubmission(outcome)
	}
}

func orderIDFromDetails(details any) string {
	fields, ok := details.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"order_id", "orderId", "id"} {
		if value, ok := fields[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
