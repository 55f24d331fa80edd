package payments

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	"github.com/redis/go-redis/v9"
)

// Session is the single active payment attempt of an order.
type Session struct {
	OrderID       string              `json:"order_id"`
	Method        enums.PaymentMethod `json:"method"`
	RedirectURL   string              `json:"redirect_url,omitempty"`
	TrackingToken string              `json:"tracking_token,omitempty"`
	Status        enums.PaymentStatus `json:"status"`
	StartedAt     time.Time           `json:"started_at"`
}

// SessionStore is the redis surface backing payment sessions.
type SessionStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	PaymentSessionKey(orderID string) string
}

type sessions struct {
	store SessionStore
	ttl   time.Duration
}

func (s sessions) load(ctx context.Context, orderID string) (*Session, error) {
	raw, err := s.store.Get(ctx, s.store.PaymentSessionKey(orderID))
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// claim records a pending session only when none is active.
func (s sessions) claim(ctx context.Context, session Session) (bool, error) {
	payload, err := json.Marshal(session)
	if err != nil {
		return false, err
	}
	return s.store.SetNX(ctx, s.store.PaymentSessionKey(session.OrderID), string(payload), s.ttl)
}

func (s sessions) save(ctx context.Context, session Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, s.store.PaymentSessionKey(session.OrderID), string(payload), s.ttl)
}

func (s sessions) release(ctx context.Context, orderID string) error {
	return s.store.Del(ctx, s.store.PaymentSessionKey(orderID))
}
