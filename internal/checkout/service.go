// Package checkout drives a browsing session from the checkout button to the hosted
// payment page: the authentication gate, order submission and payment initiation.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/internal/customers"
	"github.com/angelmondragon/packfinderz-storefront/internal/gate"
	"github.com/angelmondragon/packfinderz-storefront/internal/orders"
	"github.com/angelmondragon/packfinderz-storefront/internal/payments"
	"github.com/angelmondragon/packfinderz-storefront/internal/prefs"
	"github.com/angelmondragon/packfinderz-storefront/pkg/db/models"
	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

// Stage tells the storefront which step of the purchase path to show.
type Stage string

const (
	StageCart                   Stage = "cart"
	StageAwaitingAuthChoice     Stage = "awaiting_auth_choice"
	StageAuthenticating         Stage = "authenticating"
	StagePaymentMethodSelection Stage = "payment_method_selection"
	StageQuoteSubmitted         Stage = "quote_submitted"
	StageRedirect               Stage = "redirect"
	StagePaymentRetry           Stage = "payment_retry"
)

const customerSyncTimeout = 5 * time.Second

// Actor identifies who is checking out. CustomerID is set for signed-in customers.
type Actor struct {
	SessionID  string
	CustomerID string
}

func (a Actor) Authenticated() bool {
	return strings.TrimSpace(a.CustomerID) != ""
}

// PayInput selects a payment method for a submitted order.
type PayInput struct {
	Method  enums.PaymentMethod `json:"method"`
	Name    string              `json:"name"`
	Email   string              `json:"email,omitempty"`
	Phone   string              `json:"phone,omitempty"`
	Country string              `json:"country_code,omitempty"`
}

// Response is returned by every checkout operation.
type Response struct {
	Stage            Stage         `json:"stage"`
	Gate             gate.Snapshot `json:"gate"`
	OrderID          string        `json:"order_id,omitempty"`
	OrderTotal       *int64        `json:"order_total,omitempty"`
	AlreadySubmitted bool          `json:"already_submitted,omitempty"`
	Quote            *cart.Quote   `json:"quote,omitempty"`
	RedirectURL      string        `json:"redirect_url,omitempty"`
	TrackingToken    string        `json:"tracking_token,omitempty"`
	Message          string        `json:"message,omitempty"`
}

type cartSource interface {
	GetOrCreate(ctx context.Context, sessionID string) (*models.CartRecord, error)
}

type orderSubmitter interface {
	Submit(ctx context.Context, cart *models.CartRecord, form orders.CustomerForm) (*orders.Result, error)
}

type paymentInitiator interface {
	Initiate(ctx context.Context, in payments.InitiateInput) (*payments.Redirect, error)
}

type customerRegistrar interface {
	EnsureCustomer(ctx context.Context, input customers.Input) (string, error)
}

// Service executes checkout orchestration.
type Service interface {
	Submit(ctx context.Context, actor Actor, in SubmitInput) (*Response, error)
	ChooseGuest(ctx context.Context, actor Actor) (*Response, error)
	BeginAuth(ctx context.Context, actor Actor, kind enums.AuthKind) (*Response, error)
	CompleteAuth(ctx context.Context, actor Actor) (*Response, error)
	AbandonAuth(ctx context.Context, actor Actor) (*Response, error)
	SwitchMode(ctx context.Context, actor Actor, mode enums.PaymentMode) (*Response, error)
	Pay(ctx context.Context, actor Actor, orderID string, in PayInput) (*Response, error)
	State(ctx context.Context, actor Actor) (*Response, error)
}

// ServiceParams bundles the dependencies of the checkout service. Registrar and Prefs
// are optional.
type ServiceParams struct {
	Carts      cartSource
	Submitter  orderSubmitter
	Initiator  paymentInitiator
	Sessions   SessionStore
	SessionTTL time.Duration
	Registrar  customerRegistrar
	Prefs      *prefs.Prefs
	Logger     *logger.Logger
}

type service struct {
	carts     cartSource
	submitter orderSubmitter
	initiator paymentInitiator
	sessions  sessions
	registrar customerRegistrar
	prefs     *prefs.Prefs
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Submitter == nil {
		return nil, fmt.Errorf("order submitter required")
	}
	if params.Initiator == nil {
		return nil, fmt.Errorf("payment initiator required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("checkout session store required")
	}
	if params.SessionTTL <= 0 {
		return nil, fmt.Errorf("checkout session ttl must be positive")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		carts:     params.Carts,
		submitter: params.Submitter,
		initiator: params.Initiator,
		sessions:  sessions{store: params.Sessions, ttl: params.SessionTTL},
		registrar: params.Registrar,
		prefs:     params.Prefs,
		logg:      logg,
	}, nil
}

// Submit runs the checkout through the gate. A pay-now checkout by an anonymous customer
// who has not chosen guest continuation is suspended until an authentication choice.
func (s *service) Submit(ctx context.Context, actor Actor, in SubmitInput) (*Response, error) {
	if !in.Mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment mode")
	}
	ctx, st, err := s.begin(ctx, actor)
	if err != nil {
		return nil, err
	}

	snapshot, action := gate.Transition(st.Gate, gate.Checkout(in.Mode, actor.Authenticated()))
	st.Gate = snapshot
	if action == gate.ActionPromptAuth {
		pending := in
		st.Pending = &pending
		if err := s.save(ctx, actor, st); err != nil {
			return nil, err
		}
		s.logg.Info(ctx, "checkout suspended for authentication choice")
		return s.respond(st), nil
	}
	st.Pending = nil
	return s.proceed(ctx, actor, st, in)
}

func (s *service) ChooseGuest(ctx context.Context, actor Actor) (*Response, error) {
	return s.apply(ctx, actor, gate.Simple(gate.EventChooseGuest))
}

func (s *service) BeginAuth(ctx context.Context, actor Actor, kind enums.AuthKind) (*Response, error) {
	switch kind {
	case enums.AuthKindSignIn:
		return s.apply(ctx, actor, gate.Simple(gate.EventChooseSignIn))
	case enums.AuthKindRegister:
		return s.apply(ctx, actor, gate.Simple(gate.EventChooseRegister))
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid auth kind")
}

// CompleteAuth records a successful sign-in or registration and resumes a suspended
// checkout.
func (s *service) CompleteAuth(ctx context.Context, actor Actor) (*Response, error) {
	if !actor.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return s.apply(ctx, actor, gate.Simple(gate.EventAuthSucceeded))
}

func (s *service) AbandonAuth(ctx context.Context, actor Actor) (*Response, error) {
	return s.apply(ctx, actor, gate.Simple(gate.EventAuthAbandoned))
}

// SwitchMode changes the payment mode. Changing mode resets the gate and drops any
// suspended checkout.
func (s *service) SwitchMode(ctx context.Context, actor Actor, mode enums.PaymentMode) (*Response, error) {
	if !mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment mode")
	}
	ctx, st, err := s.begin(ctx, actor)
	if err != nil {
		return nil, err
	}
	previous := st.Gate.Mode
	st.Gate, _ = gate.Transition(st.Gate, gate.SwitchMode(mode))
	if previous != st.Gate.Mode {
		st.Pending = nil
	}
	if err := s.save(ctx, actor, st); err != nil {
		return nil, err
	}
	return s.respond(st), nil
}

// Pay requests the hosted payment page for an order. A missing redirect keeps the order
// and moves to the retry stage with the order id.
func (s *service) Pay(ctx context.Context, actor Actor, orderID string, in PayInput) (*Response, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	ctx, st, err := s.begin(ctx, actor)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, orderID)

	phone := strings.TrimSpace(in.Phone)
	if phone == "" {
		phone = s.prefs.PhonePrefill(ctx, actor.SessionID)
	}
	redirect, err := s.initiator.Initiate(ctx, payments.InitiateInput{
		OrderID: orderID,
		Method:  in.Method,
		Contact: payments.Contact{Name: in.Name, Email: in.Email, Phone: phone, CountryCode: in.Country},
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeGateway {
			s.logg.Warn(ctx, "payment initiation produced no redirect; order kept for retry")
			resp := s.respond(st)
			resp.Stage = StagePaymentRetry
			resp.OrderID = orderID
			resp.Message = typed.Message()
			return resp, nil
		}
		return nil, err
	}

	if in.Phone != "" {
		s.prefs.RememberPhone(ctx, actor.SessionID, in.Phone)
	}
	resp := s.respond(st)
	resp.Stage = StageRedirect
	resp.OrderID = orderID
	resp.RedirectURL = redirect.URL
	resp.TrackingToken = redirect.TrackingToken
	return resp, nil
}

// State reports the session's current gate state without changing it.
func (s *service) State(ctx context.Context, actor Actor) (*Response, error) {
	_, st, err := s.begin(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.respond(st), nil
}

func (s *service) apply(ctx context.Context, actor Actor, event gate.Event) (*Response, error) {
	ctx, st, err := s.begin(ctx, actor)
	if err != nil {
		return nil, err
	}
	snapshot, action := gate.Transition(st.Gate, event)
	st.Gate = snapshot

	if action == gate.ActionResume && st.Pending != nil {
		pending := *st.Pending
		st.Pending = nil
		s.logg.Info(ctx, "resuming suspended checkout")
		return s.proceed(ctx, actor, st, pending)
	}
	if err := s.save(ctx, actor, st); err != nil {
		return nil, err
	}
	return s.respond(st), nil
}

// proceed submits the session's cart. An order rejected for lacking identity routes back
// into the gate with the checkout suspended again.
func (s *service) proceed(ctx context.Context, actor Actor, st *state, in SubmitInput) (*Response, error) {
	current, err := s.carts.GetOrCreate(ctx, actor.SessionID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithCartID(ctx, current.ID.String())

	result, err := s.submitter.Submit(ctx, current, orders.CustomerForm{
		Name:            in.Customer.Name,
		Phone:           in.Customer.Phone,
		Email:           in.Customer.Email,
		DeliveryAddress: in.Customer.DeliveryAddress,
	})
	if pkgerrors.Is(err, pkgerrors.CodeAuthRequired) {
		st.Gate, _ = gate.Transition(st.Gate, gate.Simple(gate.EventAuthRejected))
		if st.Gate.State == gate.StateAwaitingAuthChoice {
			pending := in
			st.Pending = &pending
		}
		if saveErr := s.save(ctx, actor, st); saveErr != nil {
			return nil, saveErr
		}
		s.logg.Info(ctx, "order service requires identity; returning to authentication choice")
		resp := s.respond(st)
		resp.Message = pkgerrors.MetadataFor(pkgerrors.CodeAuthRequired).PublicMessage
		return resp, nil
	}
	if err != nil {
		if saveErr := s.save(ctx, actor, st); saveErr != nil {
			s.logg.Error(ctx, "checkout state could not be saved", saveErr)
		}
		return nil, err
	}

	st.OrderID = result.OrderID
	if err := s.save(ctx, actor, st); err != nil {
		s.logg.Error(ctx, "checkout state could not be saved", err)
	}
	s.prefs.RememberPhone(ctx, actor.SessionID, in.Customer.Phone)
	if result.Outcome == orders.OutcomeSubmitted {
		s.syncCustomer(ctx, result.OrderID, in.Customer)
	}

	quote := cart.BuildQuote(current)
	resp := s.respond(st)
	resp.Stage = StagePaymentMethodSelection
	if in.Mode == enums.PaymentModeRequestQuote {
		resp.Stage = StageQuoteSubmitted
	}
	resp.OrderID = result.OrderID
	resp.AlreadySubmitted = result.Outcome == orders.OutcomeAlreadySubmitted
	resp.Quote = &quote
	if result.Order != nil {
		total := result.Order.Total
		resp.OrderTotal = &total
	}
	return resp, nil
}

// syncCustomer records the buyer in the customer directory. Failures are logged only.
func (s *service) syncCustomer(ctx context.Context, orderID string, customer Customer) {
	if s.registrar == nil {
		return
	}
	syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), customerSyncTimeout)
	defer cancel()
	if _, err := s.registrar.EnsureCustomer(syncCtx, customers.Input{
		OrderID: orderID,
		Name:    customer.Name,
		Email:   customer.Email,
		Phone:   customer.Phone,
	}); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "customer directory sync failed")
	}
}

func (s *service) begin(ctx context.Context, actor Actor) (context.Context, *state, error) {
	if strings.TrimSpace(actor.SessionID) == "" {
		return ctx, nil, pkgerrors.New(pkgerrors.CodeValidation, "session is required")
	}
	ctx = s.logg.WithSessionID(ctx, actor.SessionID)
	if actor.Authenticated() {
		ctx = s.logg.WithCustomerID(ctx, actor.CustomerID)
	}
	st, err := s.sessions.load(ctx, actor.SessionID)
	if err != nil {
		return ctx, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	st.Gate.Authenticated = actor.Authenticated()
	return ctx, st, nil
}

func (s *service) save(ctx context.Context, actor Actor, st *state) error {
	if err := s.sessions.save(ctx, actor.SessionID, st); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}
	return nil
}

func (s *service) respond(st *state) *Response {
	resp := &Response{Gate: st.Gate, OrderID: st.OrderID}
	switch st.Gate.State {
	case gate.StateAwaitingAuthChoice:
		resp.Stage = StageAwaitingAuthChoice
	case gate.StateAuthenticating:
		resp.Stage = StageAuthenticating
	default:
		resp.Stage = StageCart
	}
	return resp
}
