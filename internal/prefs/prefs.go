package prefs

import (
	"context"
	"strings"

	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

const (
	phoneEntry          = "phone"
	recentlyViewedEntry = "recently_viewed"
	defaultRecentLimit  = 12
)

// Prefs holds conveniences remembered for a browsing session. Nothing here is
// authoritative, so store failures are logged and swallowed.
type Prefs struct {
	store       Store
	recentLimit int
	logg        *logger.Logger
}

func New(store Store, recentLimit int, logg *logger.Logger) *Prefs {
	if recentLimit <= 0 {
		recentLimit = defaultRecentLimit
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Prefs{store: store, recentLimit: recentLimit, logg: logg}
}

func (p *Prefs) RememberPhone(ctx context.Context, sessionID, phone string) {
	phone = strings.TrimSpace(phone)
	if p == nil || p.store == nil || sessionID == "" || phone == "" {
		return
	}
	if err := p.store.Set(ctx, sessionID, phoneEntry, phone); err != nil {
		p.warn(ctx, sessionID, "remember phone failed", err)
	}
}

// PhonePrefill returns the last phone entered in the session, or "".
func (p *Prefs) PhonePrefill(ctx context.Context, sessionID string) string {
	if p == nil || p.store == nil || sessionID == "" {
		return ""
	}
	phone, _, err := p.store.Get(ctx, sessionID, phoneEntry)
	if err != nil {
		p.warn(ctx, sessionID, "load phone prefill failed", err)
		return ""
	}
	return phone
}

func (p *Prefs) ViewProduct(ctx context.Context, sessionID, productID string) {
	productID = strings.TrimSpace(productID)
	if p == nil || p.store == nil || sessionID == "" || productID == "" {
		return
	}
	if err := p.store.PushBounded(ctx, sessionID, recentlyViewedEntry, productID, p.recentLimit); err != nil {
		p.warn(ctx, sessionID, "record product view failed", err)
	}
}

// RecentlyViewed lists product ids most recent first.
func (p *Prefs) RecentlyViewed(ctx context.Context, sessionID string) []string {
	if p == nil || p.store == nil || sessionID == "" {
		return []string{}
	}
	ids, err := p.store.List(ctx, sessionID, recentlyViewedEntry)
	if err != nil {
		p.warn(ctx, sessionID, "load recently viewed failed", err)
		return []string{}
	}
	if len(ids) > p.recentLimit {
		ids = ids[:p.recentLimit]
	}
	if ids == nil {
		ids = []string{}
	}
	return ids
}

func (p *Prefs) warn(ctx context.Context, sessionID, msg string, err error) {
	ctx = p.logg.WithSessionID(ctx, sessionID)
	p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), msg)
}
