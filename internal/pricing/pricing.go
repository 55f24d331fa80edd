// Package pricing resolves effective line prices and recomputes group and cart totals.
// Amounts are integer minor units. Totals are never stored; callers recompute them from
// the current lines.
package pricing

import (
	"slices"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/commerce"
	"github.com/angelmondragon/packfinderz-storefront/pkg/db/models"
	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// EffectiveUnitPrice returns the override price when the line carries one, else the
// catalog price. The result is never negative.
func EffectiveUnitPrice(line models.CartLine) int64 {
	price := line.CatalogPrice
	if line.UnitPrice != nil {
		price = *line.UnitPrice
	}
	if price < 0 {
		return 0
	}
	return price
}

// CompareAtPrice returns the catalog price to display struck through, or nil when the line
// is sold at its catalog price.
func CompareAtPrice(line models.CartLine) *int64 {
	if line.UnitPrice == nil || EffectiveUnitPrice(line) == line.CatalogPrice {
		return nil
	}
	price := line.CatalogPrice
	return &price
}

// LineTotal is the effective unit price times quantity.
func LineTotal(line models.CartLine) int64 {
	return EffectiveUnitPrice(line) * int64(line.Quantity)
}

// Active reports whether now falls within [StartsAt, EndsAt). A zero bound is open.
func Active(promo commerce.Promotion, now time.Time) bool {
	if !promo.StartsAt.IsZero() && now.Before(promo.StartsAt) {
		return false
	}
	if !promo.EndsAt.IsZero() && !now.Before(promo.EndsAt) {
		return false
	}
	return true
}

// InScope reports whether the promotion covers the unit, either through its explicit
// product list or through its product type.
func InScope(promo commerce.Promotion, unit commerce.Unit) bool {
	if len(promo.ProductIDs) > 0 {
		return slices.Contains(promo.ProductIDs, unit.ProductID)
	}
	scope := strings.TrimSpace(promo.ProductType)
	return scope != "" && strings.EqualFold(scope, unit.ProductType)
}

// ApplyPromotion discounts base when the promotion is active at now and covers the unit.
// Otherwise base is returned unchanged. The result always lies within [0, base].
func ApplyPromotion(base int64, promo commerce.Promotion, unit commerce.Unit, now time.Time) int64 {
	if base <= 0 || !Active(promo, now) || !InScope(promo, unit) {
		return max(base, 0)
	}

	var discounted int64
	switch promo.Kind {
	case enums.PromotionKindPercentage:
		if promo.Percentage.IsNegative() {
			return base
		}
		factor := hundred.Sub(promo.Percentage).Div(hundred)
		discounted = decimal.NewFromInt(base).Mul(factor).Round(0).IntPart()
	case enums.PromotionKindFixed:
		if promo.Amount < 0 {
			return base
		}
		discounted = base - promo.Amount
	default:
		return base
	}
	return clamp(discounted, 0, base)
}

// BestPromotion returns the promotion yielding the lowest price for the unit at now, and
// that price. ok is false when no promotion changes the price.
func BestPromotion(unit commerce.Unit, promos []commerce.Promotion, now time.Time) (promo commerce.Promotion, price int64, ok bool) {
	price = unit.Price
	for _, candidate := range promos {
		discounted := ApplyPromotion(unit.Price, candidate, unit, now)
		if discounted < price {
			promo, price, ok = candidate, discounted, true
		}
	}
	return promo, price, ok
}

func clamp(value, lo, hi int64) int64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
