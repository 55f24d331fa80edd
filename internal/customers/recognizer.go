package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/packfinderz-storefront/internal/payments"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/square"
)

// ErrSuperseded is returned to a lookup replaced by a newer one from the same session
// before its debounce window elapsed.
var ErrSuperseded = errors.New("customer lookup superseded")

const (
	defaultDebounce   = 500 * time.Millisecond
	defaultRateLimit  = 30
	defaultRateWindow = time.Minute
)

// Profile is what the storefront prefills for a recognised customer.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type directory interface {
	SearchCustomer(ctx context.Context, params square.CustomerSearchParams) (*sq.Customer, error)
	EnsureCustomer(ctx context.Context, params square.CustomerCreateParams) (*sq.Customer, error)
}

var _ directory = (*square.Client)(nil)

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type RecognizerConfig struct {
	Debounce    time.Duration
	CountryCode string
	RateLimit   int64
	RateWindow  time.Duration
}

// Recognizer looks customers up by the phone number typed at checkout.
type Recognizer struct {
	dir     directory
	limiter rateLimiter
	cfg     RecognizerConfig
	logg    *logger.Logger

	seq    atomic.Uint64
	mu     sync.Mutex
	latest map[string]uint64
}

func NewRecognizer(dir directory, limiter rateLimiter, cfg RecognizerConfig, logg *logger.Logger) (*Recognizer, error) {
	if dir == nil {
		return nil, fmt.Errorf("customer directory required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaultRateWindow
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Recognizer{dir: dir, limiter: limiter, cfg: cfg, logg: logg, latest: map[string]uint64{}}, nil
}

// Lookup waits out the debounce window and searches for a customer with the phone number.
// A newer lookup from the same session supersedes this one. Partial numbers shorter than
// a full subscriber number return nil without searching.
func (r *Recognizer) Lookup(ctx context.Context, sessionID, partialPhone string) (*Profile, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session is required")
	}
	ticket := r.enter(sessionID)

	timer := time.NewTimer(r.cfg.Debounce)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.leave(sessionID, ticket)
		return nil, ctx.Err()
	case <-timer.C:
	}
	if !r.leave(sessionID, ticket) {
		return nil, ErrSuperseded
	}

	phone, err := payments.NormalizePhone(partialPhone, r.cfg.CountryCode)
	if err != nil {
		return nil, nil
	}

	ctx = r.logg.WithSessionID(ctx, sessionID)
	if r.limiter != nil {
		allowed, _, err := r.limiter.FixedWindowAllow(ctx, "customer_lookup:"+sessionID, r.cfg.RateLimit, r.cfg.RateWindow)
		switch {
		case err != nil:
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "customer lookup rate limit unavailable")
		case !allowed:
			return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many customer lookups")
		}
	}

	customer, err := r.dir.SearchCustomer(ctx, square.CustomerSearchParams{PhoneNumber: "+" + phone})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search customer")
	}
	if customer == nil {
		return nil, nil
	}
	return profileOf(customer), nil
}

func (r *Recognizer) enter(sessionID string) uint64 {
	ticket := r.seq.Add(1)
	r.mu.Lock()
	r.latest[sessionID] = ticket
	r.mu.Unlock()
	return ticket
}

// leave reports whether ticket is still the latest for the session and forgets it if so.
func (r *Recognizer) leave(sessionID string, ticket uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest[sessionID] != ticket {
		return false
	}
	delete(r.latest, sessionID)
	return true
}

func profileOf(customer *sq.Customer) *Profile {
	return &Profile{
		FirstName: deref(customer.GivenName),
		LastName:  deref(customer.FamilyName),
		Email:     deref(customer.EmailAddress),
		Phone:     deref(customer.PhoneNumber),
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
