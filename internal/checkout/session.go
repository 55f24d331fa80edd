package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/gate"
	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	"github.com/redis/go-redis/v9"
)

// SessionStore is the redis surface the checkout state is kept in.
type SessionStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CheckoutSessionKey(sessionID string) string
}

// Customer is the contact form entered at checkout.
type Customer struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Email           string `json:"email,omitempty"`
	DeliveryAddress string `json:"delivery_address,omitempty"`
}

// SubmitInput is one press of the checkout button.
type SubmitInput struct {
	Mode     enums.PaymentMode `json:"mode"`
	Customer Customer          `json:"customer"`
}

// state is persisted per browsing session. Pending holds the checkout suspended at the
// authentication gate.
type state struct {
	Gate    gate.Snapshot `json:"gate"`
	Pending *SubmitInput  `json:"pending,omitempty"`
	OrderID string        `json:"order_id,omitempty"`
}

type sessions struct {
	store SessionStore
	ttl   time.Duration
}

func (s sessions) load(ctx context.Context, sessionID string) (*state, error) {
	raw, err := s.store.Get(ctx, s.store.CheckoutSessionKey(sessionID))
	if errors.Is(err, redis.Nil) {
		return &state{Gate: gate.Initial()}, nil
	}
	if err != nil {
		return nil, err
	}
	var st state
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s sessions) save(ctx context.Context, sessionID string, st *state) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, s.store.CheckoutSessionKey(sessionID), string(payload), s.ttl)
}
