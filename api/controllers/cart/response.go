package cart

import (
	"github.com/google/uuid"

	cartsvc "github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/pkg/db/models"
)

// BundleRemovalResponse reports a member-by-member bundle removal. Quote always reflects
// the persisted cart, including members whose removal failed.
type BundleRemovalResponse struct {
	Quote   cartsvc.Quote `json:"quote"`
	Removed []uuid.UUID   `json:"removed_line_ids"`
	Failed  []uuid.UUID   `json:"failed_line_ids,omitempty"`
}

func newQuote(record *models.CartRecord) cartsvc.Quote {
	return cartsvc.BuildQuote(record)
}

func newBundleRemoval(result *cartsvc.BundleRemoval) BundleRemovalResponse {
	removed := result.Removed
	if removed == nil {
		removed = []uuid.UUID{}
	}
	return BundleRemovalResponse{
		Quote:   newQuote(result.Cart),
		Removed: removed,
		Failed:  result.Failed,
	}
}
