package controllers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/angelmondragon/packfinderz-storefront/api/responses"
	"github.com/angelmondragon/packfinderz-storefront/internal/payments"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

const (
	eventStatus = "status"
	eventEnd    = "end"
)

// PaymentWatcher follows a payment after the hosted page returns.
type PaymentWatcher interface {
	Watch(ctx context.Context, params payments.ReturnParams, emit func(payments.Update)) (payments.State, error)
}

var _ PaymentWatcher = (*payments.Reconciler)(nil)

// PaymentReturn is the landing endpoint after the hosted payment page. It streams
// reconciliation updates as server-sent events until the payment is terminal; closing
// the connection stops status checks.
func PaymentReturn(watcher PaymentWatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if watcher == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler unavailable"))
			return
		}
		params, err := payments.ParseReturn(r.URL.Query())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stream, err := responses.OpenEventStream(w)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		var mu sync.Mutex
		emit := func(update payments.Update) {
			mu.Lock()
			defer mu.Unlock()
			if sendErr := stream.Send(eventStatus, update); sendErr != nil && logg != nil {
				logg.Warn(logg.WithField(ctx, "error", sendErr.Error()), "payment_return.send_failed")
			}
		}

		state, err := watcher.Watch(ctx, params, emit)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			mu.Lock()
			_ = stream.SendError(err)
			mu.Unlock()
			return
		}
		mu.Lock()
		_ = stream.Send(eventEnd, map[string]any{"state": state, "order_id": params.OrderID})
		mu.Unlock()
	}
}
