package cart

import (
	"context"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	Create(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error)
	FindLatestBySession(ctx context.Context, sessionID string) (*models.CartRecord, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.CartRecord, error)
	AppendLines(ctx context.Context, cartID uuid.UUID, lines []models.CartLine) error
	UpdateLineQuantity(ctx context.Context, cartID, lineID uuid.UUID, quantity int) error
	DeleteLine(ctx context.Context, cartID, lineID uuid.UUID) error
	MarkSubmitted(ctx context.Context, cartID uuid.UUID, orderID string, at time.Time) error
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}
