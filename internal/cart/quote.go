package cart

import (
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/pricing"
	"github.com/angelmondragon/packfinderz-storefront/pkg/db/models"
	"github.com/google/uuid"
)

// Quote is the pre-submission estimate of a cart. It is recomputed on every read and is
// never authoritative once the cart has been submitted.
type Quote struct {
	CartID           uuid.UUID    `json:"cart_id"`
	IsSubmitted      bool         `json:"is_submitted"`
	SubmittedOrderID *string      `json:"submitted_order_id,omitempty"`
	ExpiresAt        time.Time    `json:"expires_at"`
	Groups           []QuoteGroup `json:"groups"`
	ItemCount        int          `json:"item_count"`
	Total            int64        `json:"total"`
}

type QuoteGroup struct {
	BundleGroupID string      `json:"bundle_group_id,omitempty"`
	Lines         []QuoteLine `json:"lines"`
	Total         int64       `json:"total"`
}

type QuoteLine struct {
	ID             uuid.UUID `json:"id"`
	UnitID         string    `json:"unit_id"`
	ProductID      string    `json:"product_id"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPrice      int64     `json:"unit_price"`
	CompareAtPrice *int64    `json:"compare_at_price,omitempty"`
	LineTotal      int64     `json:"line_total"`
	PromotionID    *string   `json:"promotion_id,omitempty"`
}

// BuildQuote groups the cart's lines for display and recomputes every total.
func BuildQuote(record *models.CartRecord) Quote {
	quote := Quote{
		CartID:           record.ID,
		IsSubmitted:      record.IsSubmitted,
		SubmittedOrderID: record.SubmittedOrderID,
		ExpiresAt:        record.ExpiresAt,
		Groups:           []QuoteGroup{},
		Total:            pricing.CartTotal(record.Lines),
	}
	for _, group := range pricing.GroupLines(record.Lines) {
		qg := QuoteGroup{
			BundleGroupID: group.BundleGroupID,
			Lines:         make([]QuoteLine, 0, len(group.Lines)),
			Total:         group.Total(),
		}
		for _, line := range group.Lines {
			qg.Lines = append(qg.Lines, QuoteLine{
				ID:             line.ID,
				UnitID:         line.UnitID,
				ProductID:      line.ProductID,
				Name:           line.Name,
				Quantity:       line.Quantity,
				UnitPrice:      pricing.EffectiveUnitPrice(line),
				CompareAtPrice: pricing.CompareAtPrice(line),
				LineTotal:      pricing.LineTotal(line),
				PromotionID:    line.PromotionID,
			})
			quote.ItemCount += line.Quantity
		}
		quote.Groups = append(quote.Groups, qg)
	}
	return quote
}
