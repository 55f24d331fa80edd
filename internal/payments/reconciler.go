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
	"github.com/angelmondragon/packfinderz-storefront/pkg/schedule"
)

const (
	MessageConfirmed     = "Payment confirmed. Thank you for your order."
	MessageFailed        = "Payment was not completed. You can try again from your order."
	MessageUnverifiable  = "Unable to verify payment, check your order status."
	defaultPollInterval  = 3 * time.Second
	defaultRedirectDelay = 2 * time.Second
)

// State of one reconciliation.
type State string

const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ReturnParams is what the gateway echoes back on return-navigation.
type ReturnParams struct {
	TrackingToken     string `json:"tracking_token"`
	MerchantReference string `json:"merchant_reference"`
	OrderID           string `json:"order_id"`
}

// ParseReturn reads the tracking token and merchant reference from the return URL query.
// The merchant reference is the order id, optionally followed by ":<suffix>".
func ParseReturn(query url.Values) (ReturnParams, error) {
	params := ReturnParams{
		TrackingToken:     firstOf(query, "OrderTrackingId", "tracking_token"),
		MerchantReference: firstOf(query, "OrderMerchantReference", "merchant_reference"),
	}
	if params.TrackingToken == "" {
		return params, pkgerrors.New(pkgerrors.CodeValidation, "tracking token is required")
	}
	params.OrderID = params.MerchantReference
	if idx := strings.Index(params.OrderID, ":"); idx > 0 {
		params.OrderID = params.OrderID[:idx]
	}
	if params.OrderID == "" {
		params.OrderID = firstOf(query, "order_id")
	}
	if params.OrderID == "" {
		return params, pkgerrors.New(pkgerrors.CodeValidation, "merchant reference is required")
	}
	return params, nil
}

// Observation is the result of one status check.
type Observation struct {
	Status *commerce.PaymentStatus
	Err    error
}

// Update is emitted to the watching view on every state change.
type Update struct {
	State            State               `json:"state"`
	OrderID          string              `json:"order_id"`
	Status           enums.PaymentStatus `json:"status,omitempty"`
	Message          string              `json:"message,omitempty"`
	PaymentReference string              `json:"payment_reference,omitempty"`
	RedirectURL      string              `json:"redirect_url,omitempty"`
}

// Step is the single transition function of the reconciler. Terminal states absorb
// every observation.
func Step(current State, obs Observation) (State, Update) {
	if current.Terminal() {
		return current, Update{State: current}
	}
	if obs.Err != nil {
		return StateFailed, Update{State: StateFailed, Message: MessageUnverifiable}
	}
	if obs.Status == nil {
		return StatePolling, Update{State: StatePolling, Status: enums.PaymentStatusPending}
	}

	update := Update{Status: obs.Status.Status, PaymentReference: obs.Status.PaymentReference}
	switch obs.Status.Status {
	case enums.PaymentStatusCompleted:
		update.State = StateCompleted
		update.Message = MessageConfirmed
	case enums.PaymentStatusFailed, enums.PaymentStatusCancelled:
		update.State = StateFailed
		update.Message = strings.TrimSpace(obs.Status.Message)
		if update.Message == "" {
			update.Message = MessageFailed
		}
	default:
		update.State = StatePolling
		update.Message = strings.TrimSpace(obs.Status.Message)
	}
	return update.State, update
}

type statusClient interface {
	PaymentStatus(ctx context.Context, orderID, trackingToken string) (*commerce.PaymentStatus, error)
}

type sessionReleaser interface {
	Release(ctx context.Context, orderID string) error
}

type statusMetrics interface {
	IncStatusCheck(result string)
}

type ReconcilerConfig struct {
	PollInterval     time.Duration
	RedirectDelay    time.Duration
	ConfirmationPath string
}

type Reconciler struct {
	client   statusClient
	releaser sessionReleaser
	cfg      ReconcilerConfig
	logg     *logger.Logger
	metrics  statusMetrics
}

func NewReconciler(client statusClient, releaser sessionReleaser, cfg ReconcilerConfig, logg *logger.Logger, m statusMetrics) (*Reconciler, error) {
	if client == nil {
		return nil, fmt.Errorf("payment status client required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.RedirectDelay <= 0 {
		cfg.RedirectDelay = defaultRedirectDelay
	}
	if !strings.Contains(cfg.ConfirmationPath, "%s") {
		return nil, fmt.Errorf("confirmation path must contain %%s for the order id")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Reconciler{client: client, releaser: releaser, cfg: cfg, logg: logg, metrics: m}, nil
}

// ConfirmationURL is the in-app destination after a completed payment.
func (r *Reconciler) ConfirmationURL(orderID string) string {
	return fmt.Sprintf(r.cfg.ConfirmationPath, url.PathEscape(orderID))
}

// Watch checks the order's payment status immediately and then every poll interval until
// a terminal status is seen or ctx is cancelled. A completed payment is followed, after the
// redirect delay, by an update carrying the confirmation URL. emit is never called after
// Watch returns.
func (r *Reconciler) Watch(ctx context.Context, params ReturnParams, emit func(Update)) (State, error) {
	orderID := strings.TrimSpace(params.OrderID)
	if orderID == "" {
		return StateIdle, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	ctx = r.logg.WithOrderID(ctx, orderID)

	state := StatePolling
	emit(Update{State: state, OrderID: orderID, Status: enums.PaymentStatusPending})

	poll := schedule.Immediately(r.cfg.PollInterval, func(taskCtx context.Context) bool {
		status, err := r.client.PaymentStatus(taskCtx, orderID, params.TrackingToken)
		if taskCtx.Err() != nil {
			return false
		}
		if err != nil {
			r.logg.Error(taskCtx, "payment status check failed", err)
		}
		next, update := Step(state, Observation{Status: status, Err: err})
		r.record(next, err)
		changed := next != state || update.Status != enums.PaymentStatusPending
		state = next
		if changed || next.Terminal() {
			update.OrderID = orderID
			emit(update)
		}
		return !next.Terminal()
	})
	err := r.run(ctx, poll)
	if state.Terminal() {
		r.release(ctx, orderID)
	}
	if err != nil || state != StateCompleted {
		return state, err
	}

	confirmation := r.ConfirmationURL(orderID)
	navigate := schedule.After(r.cfg.RedirectDelay, func(context.Context) {
		emit(Update{State: StateCompleted, OrderID: orderID, Status: enums.PaymentStatusCompleted, RedirectURL: confirmation})
	})
	if err := r.run(ctx, navigate); err != nil {
		return state, err
	}
	return state, nil
}

// run owns task until it finishes or ctx is cancelled; either way it is stopped before run
// returns.
func (r *Reconciler) run(ctx context.Context, task *schedule.Task) error {
	if err := task.Start(ctx); err != nil {
		return err
	}
	defer task.Stop()
	select {
	case <-task.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reconciler) release(ctx context.Context, orderID string) {
	if r.releaser == nil {
		return
	}
	if err := r.releaser.Release(context.WithoutCancel(ctx), orderID); err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "payment session could not be released")
	}
}

func (r *Reconciler) record(state State, err error) {
	if r.metrics == nil {
		return
	}
	result := string(state)
	if err != nil {
		result = "error"
	}
	r.metrics.IncStatusCheck(result)
}

func firstOf(query url.Values, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(query.Get(key)); value != "" {
			return value
		}
	}
	return ""
}
