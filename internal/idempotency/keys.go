// Package idempotency derives content-based order submission keys and records them per
// cart so every retry of the same logical submission carries the same key.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/angelmondragon/packfinderz-storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix marks keys minted by the storefront.
const KeyPrefix = "sf-"

// Item is one order-defining line: unit reference and quantity.
type Item struct {
	UnitID   string
	Quantity int
}

// Customer is the identity part of the submission content.
type Customer struct {
	Name  string
	Phone string
	Email string
}

// Content is everything that defines a logical submission. Nonce is the per-cart attempt
// discriminator, so a new cart never reuses a key even with identical lines.
type Content struct {
	Items    []Item
	Customer Customer
	Nonce    string
}

// Derive returns a deterministic key for content. Line order does not matter.
func Derive(content Content) string {
	sum := sha256.Sum256([]byte(canonical(content)))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

func canonical(content Content) string {
	entries := make([]string, 0, len(content.Items))
	for _, item := range content.Items {
		entries = append(entries, strings.TrimSpace(item.UnitID)+":"+strconv.Itoa(item.Quantity))
	}
	slices.Sort(entries)

	var b strings.Builder
	b.WriteString("items=")
	b.WriteString(strings.Join(entries, ","))
	b.WriteString("\nname=")
	b.WriteString(strings.ToLower(strings.Join(strings.Fields(content.Customer.Name), " ")))
	b.WriteString("\nphone=")
	b.WriteString(digits(content.Customer.Phone))
	b.WriteString("\nemail=")
	b.WriteString(strings.ToLower(strings.TrimSpace(content.Customer.Email)))
	b.WriteString("\nnonce=")
	b.WriteString(content.Nonce)
	return b.String()
}

func digits(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, value)
}

// ContentFor builds submission content from a cart snapshot.
func ContentFor(cart *models.CartRecord, customer Customer) Content {
	items := make([]Item, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		items = append(items, Item{UnitID: line.UnitID, Quantity: line.Quantity})
	}
	return Content{Items: items, Customer: customer, Nonce: cart.SubmissionNonce}
}

// Store is the redis surface used to record keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	OrderKeyKey(cartID string) string
}

// Manager records the key of each cart's current logical submission. Records live no
// longer than the cart.
type Manager struct {
	store Store
	logg  *logger.Logger
	now   func() time.Time
}

func NewManager(store Store, logg *logger.Logger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Manager{store: store, logg: logg, now: time.Now}, nil
}

// KeyFor derives the key for the cart's submission and records it until the cart expires.
// When the content changed since the last attempt the record is replaced.
func (m *Manager) KeyFor(ctx context.Context, cart *models.CartRecord, customer Customer) (string, error) {
	if cart == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "cart is required")
	}
	ttl := cart.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "cart expired")
	}

	key := Derive(ContentFor(cart, customer))
	recordKey := m.store.OrderKeyKey(cart.ID.String())

	set, err := m.store.SetNX(ctx, recordKey, key, ttl)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record idempotency key")
	}
	if set {
		return key, nil
	}

	existing, err := m.store.Get(ctx, recordKey)
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency key")
	}
	if existing == key {
		return key, nil
	}

	m.logg.Info(m.logg.WithCartID(ctx, cart.ID.String()), "submission content changed; recording new idempotency key")
	if err := m.store.Set(ctx, recordKey, key, ttl); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("record idempotency key for cart %s", cart.ID))
	}
	return key, nil
}

// Recorded returns the key last recorded for the cart, or "" when none is live.
func (m *Manager) Recorded(ctx context.Context, cartID string) (string, error) {
	value, err := m.store.Get(ctx, m.store.OrderKeyKey(cartID))
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}
