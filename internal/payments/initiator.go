package payments

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/commerce"
	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"golang.org/x/sync/singleflight"
)

const (
	callbackPath     = "/checkout/payment/callback"
	cancellationPath = "/checkout/payment/cancelled"
)

type gatewayClient interface {
	InitiatePayment(ctx context.Context, orderID string, req commerce.InitiatePaymentRequest) (*commerce.InitiatePaymentResponse, error)
}

type initiationMetrics interface {
	IncInitiation(outcome string)
}

// Contact is the customer identity sent to the gateway, independent of method.
type Contact struct {
	Name        string
	Email       string
	Phone       string
	CountryCode string
}

type InitiateInput struct {
	OrderID string
	Method  enums.PaymentMethod
	Contact Contact
}

// Redirect is the one-way hand-off to the hosted payment page.
type Redirect struct {
	OrderID       string `json:"order_id"`
	URL           string `json:"redirect_url"`
	TrackingToken string `json:"tracking_token,omitempty"`
	Reused        bool   `json:"reused"`
}

type InitiatorConfig struct {
	PublicOrigin       string
	DefaultCountryCode string
	SessionTTL         time.Duration
}

// sharedCallTimeout bounds an initiation that no single request owns.
const sharedCallTimeout = 30 * time.Second

type Initiator struct {
	client   gatewayClient
	sessions sessions
	origin   string
	country  string
	logg     *logger.Logger
	metrics  initiationMetrics
	flight   singleflight.Group
	now      func() time.Time
}

func NewInitiator(client gatewayClient, store SessionStore, cfg InitiatorConfig, logg *logger.Logger, m initiationMetrics) (*Initiator, error) {
	if client == nil {
		return nil, fmt.Errorf("payment client required")
	}
	if store == nil {
		return nil, fmt.Errorf("payment session store required")
	}
	origin, err := normalizeOrigin(cfg.PublicOrigin)
	if err != nil {
		return nil, err
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("payment session ttl must be positive")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Initiator{
		client:   client,
		sessions: sessions{store: store, ttl: cfg.SessionTTL},
		origin:   origin,
		country:  cfg.DefaultCountryCode,
		logg:     logg,
		metrics:  m,
		now:      time.Now,
	}, nil
}

// CallbackURL is where the gateway returns the browser after payment.
func (i *Initiator) CallbackURL() string {
	return i.origin + callbackPath
}

// CancellationURL is where the gateway sends the browser when the buyer cancels.
func (i *Initiator) CancellationURL(orderID string) string {
	return i.origin + cancellationPath + "?" + url.Values{"order_id": {orderID}}.Encode()
}

// Initiate requests a hosted-payment redirect for an existing order. Any failure after
// validation is a GATEWAY_FAILURE carrying the order id, because the order already exists
// and payment can be retried without re-creating it. While a session is active the
// recorded redirect is returned instead of starting another one.
func (i *Initiator) Initiate(ctx context.Context, in InitiateInput) (*Redirect, error) {
	orderID := strings.TrimSpace(in.OrderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !in.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method").
			WithDetails(map[string]string{"payment_method": string(in.Method)})
	}
	req, err := i.buildRequest(orderID, in)
	if err != nil {
		i.record("invalid")
		return nil, err
	}
	ctx = i.logg.WithOrderID(ctx, orderID)

	ch := i.flight.DoChan(orderID, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		return i.initiate(callCtx, orderID, in.Method, req)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Redirect), nil
	case <-ctx.Done():
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "payment initiation abandoned")
	}
}

func (i *Initiator) initiate(ctx context.Context, orderID string, method enums.PaymentMethod, req commerce.InitiatePaymentRequest) (*Redirect, error) {
	existing, err := i.sessions.load(ctx, orderID)
	if err != nil {
		return nil, gatewayFailure(orderID, err, "payment session unavailable")
	}
	if reused := reuse(existing); reused != nil {
		i.record("reused")
		return reused, nil
	}

	pending := Session{OrderID: orderID, Method: method, Status: enums.PaymentStatusPending, StartedAt: i.now().UTC()}
	claimed, err := i.sessions.claim(ctx, pending)
	if err != nil {
		return nil, gatewayFailure(orderID, err, "payment session unavailable")
	}
	if !claimed {
		current, loadErr := i.sessions.load(ctx, orderID)
		if loadErr == nil {
			if reused := reuse(current); reused != nil {
				i.record("reused")
				return reused, nil
			}
		}
		i.record("in_progress")
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment is already being started for this order").
			WithDetails(map[string]string{"order_id": orderID})
	}

	resp, err := i.client.InitiatePayment(ctx, orderID, req)
	if err != nil {
		i.dropClaim(ctx, orderID)
		i.record("failed")
		i.logg.Error(ctx, "payment initiation failed", err)
		return nil, gatewayFailure(orderID, err, "")
	}
	if resp == nil || !resp.Success || strings.TrimSpace(resp.RedirectURL) == "" {
		i.dropClaim(ctx, orderID)
		i.record("no_redirect")
		message := ""
		if resp != nil {
			message = strings.TrimSpace(resp.Error)
		}
		i.logg.Warn(i.logg.WithField(ctx, "gateway_error", message), "payment initiation returned no redirect")
		return nil, gatewayFailure(orderID, nil, message)
	}

	pending.RedirectURL = strings.TrimSpace(resp.RedirectURL)
	pending.TrackingToken = strings.TrimSpace(resp.TrackingToken)
	if err := i.sessions.save(ctx, pending); err != nil {
		i.logg.Error(ctx, "payment session could not be saved", err)
	}
	i.record("redirect")
	return &Redirect{OrderID: orderID, URL: pending.RedirectURL, TrackingToken: pending.TrackingToken}, nil
}

// Release ends the order's active session once a terminal status is known.
func (i *Initiator) Release(ctx context.Context, orderID string) error {
	return i.sessions.release(ctx, orderID)
}

// Active returns the order's active session, or nil.
func (i *Initiator) Active(ctx context.Context, orderID string) (*Session, error) {
	return i.sessions.load(ctx, orderID)
}

func (i *Initiator) buildRequest(orderID string, in InitiateInput) (commerce.InitiatePaymentRequest, error) {
	phone := strings.TrimSpace(in.Contact.Phone)
	if in.Method.RequiresPhone() || phone != "" {
		country := in.Contact.CountryCode
		if strings.TrimSpace(country) == "" {
			country = i.country
		}
		normalized, err := NormalizePhone(phone, country)
		if err != nil {
			if in.Method.RequiresPhone() {
				return commerce.InitiatePaymentRequest{}, err
			}
			normalized = ""
		}
		phone = normalized
	}

	first, last := SplitName(in.Contact.Name)
	return commerce.InitiatePaymentRequest{
		PaymentMethod:   in.Method,
		CallbackURL:     i.CallbackURL(),
		CancellationURL: i.CancellationURL(orderID),
		Customer: commerce.PaymentCustomer{
			Email:       strings.TrimSpace(in.Contact.Email),
			PhoneNumber: phone,
			FirstName:   first,
			LastName:    last,
		},
	}, nil
}

func (i *Initiator) dropClaim(ctx context.Context, orderID string) {
	if err := i.sessions.release(ctx, orderID); err != nil {
		i.logg.Warn(i.logg.WithField(ctx, "error", err.Error()), "payment session claim could not be released")
	}
}

func (i *Initiator) record(outcome string) {
	if i.metrics != nil {
		i.metrics.IncInitiation(outcome)
	}
}

func reuse(session *Session) *Redirect {
	if session == nil || session.Status.IsTerminal() || session.RedirectURL == "" {
		return nil
	}
	return &Redirect{
		OrderID:       session.OrderID,
		URL:           session.RedirectURL,
		TrackingToken: session.TrackingToken,
		Reused:        true,
	}
}

func gatewayFailure(orderID string, cause error, message string) error {
	if message == "" {
		message = pkgerrors.MetadataFor(pkgerrors.CodeGateway).PublicMessage
	}
	return pkgerrors.Wrap(pkgerrors.CodeGateway, cause, message).
		WithDetails(map[string]string{"order_id": orderID})
}

func normalizeOrigin(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("public origin must be an absolute url, got %q", raw)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}
