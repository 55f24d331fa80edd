package cart

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotMutable is returned when a conditional write matched no open cart.
var ErrNotMutable = errors.New("cart is submitted or missing")

// Repository exposes persistence operations for carts and their lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) conn(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return r.db
	}
	return r.db.WithContext(ctx)
}

// Create inserts a new CartRecord, assigning ids when missing.
func (r *Repository) Create(ctx context.Context, record *models.CartRecord) (*models.CartRecord, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.SubmissionNonce == "" {
		record.SubmissionNonce = uuid.NewString()
	}
	for i := range record.Lines {
		prepareLine(record.ID, &record.Lines[i])
	}
	if err := r.conn(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// FindLatestBySession loads the session's most recent cart with its lines in position order.
func (r *Repository) FindLatestBySession(ctx context.Context, sessionID string) (*models.CartRecord, error) {
	var record models.CartRecord
	err := r.conn(ctx).
		Preload("Lines", orderedLines).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByID loads a cart with its lines in position order.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CartRecord, error) {
	var record models.CartRecord
	err := r.conn(ctx).
		Preload("Lines", orderedLines).
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// AppendLines inserts lines after the cart's current last position.
func (r *Repository) AppendLines(ctx context.Context, cartID uuid.UUID, lines []models.CartLine) error {
	if len(lines) == 0 {
		return nil
	}
	// touching the open cart row locks it against a concurrent MarkSubmitted until the
	// surrounding transaction ends
	res := r.conn(ctx).
		Model(&models.CartRecord{}).
		Where("id = ? AND is_submitted = ?", cartID, false).
		Update("updated_at", time.Now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotMutable
	}
	var last int
	if err := r.conn(ctx).
		Model(&models.CartLine{}).
		Where("cart_id = ?", cartID).
		Select("COALESCE(MAX(position), -1)").
		Row().
		Scan(&last); err != nil {
		return err
	}
	next := last + 1
	for i := range lines {
		prepareLine(cartID, &lines[i])
		lines[i].Position = next + i
	}
	return r.conn(ctx).Create(&lines).Error
}

// UpdateLineQuantity sets the quantity of a line on an open cart.
func (r *Repository) UpdateLineQuantity(ctx context.Context, cartID, lineID uuid.UUID, quantity int) error {
	res := r.conn(ctx).
		Model(&models.CartLine{}).
		Where("id = ? AND cart_id = ?", lineID, cartID).
		Where("cart_id IN (?)", openCart(r.conn(ctx), cartID)).
		Update("quantity", quantity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotMutable
	}
	return nil
}

// DeleteLine removes a single line from an open cart.
func (r *Repository) DeleteLine(ctx context.Context, cartID, lineID uuid.UUID) error {
	res := r.conn(ctx).
		Where("id = ? AND cart_id = ?", lineID, cartID).
		Where("cart_id IN (?)", openCart(r.conn(ctx), cartID)).
		Delete(&models.CartLine{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotMutable
	}
	return nil
}

// MarkSubmitted flips the submission flag exactly once.
func (r *Repository) MarkSubmitted(ctx context.Context, cartID uuid.UUID, orderID string, at time.Time) error {
	res := r.conn(ctx).
		Model(&models.CartRecord{}).
		Where("id = ? AND is_submitted = ?", cartID, false).
		Updates(map[string]any{
			"is_submitted":       true,
			"submitted_order_id": orderID,
			"submitted_at":       at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotMutable
	}
	return nil
}

// DeleteExpired removes up to limit expired, unsubmitted carts and their lines in one
// transaction. A cart submitted after selection is left untouched.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	var deleted int64
	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uuid.UUID
		query := tx.Model(&models.CartRecord{}).
			Where("is_submitted = ? AND expires_at <= ?", false, now).
			Order("expires_at ASC")
		if limit > 0 {
			query = query.Limit(limit)
		}
		if err := query.Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		// lock the rows that are still open, then delete exactly those
		if err := tx.Model(&models.CartRecord{}).
			Where("id IN ? AND is_submitted = ?", ids, false).
			Update("updated_at", now).Error; err != nil {
			return err
		}
		var open []uuid.UUID
		if err := tx.Model(&models.CartRecord{}).
			Where("id IN ? AND is_submitted = ?", ids, false).
			Pluck("id", &open).Error; err != nil {
			return err
		}
		if len(open) == 0 {
			return nil
		}
		if err := tx.Where("cart_id IN ?", open).Delete(&models.CartLine{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ? AND is_submitted = ?", open, false).Delete(&models.CartRecord{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func openCart(db *gorm.DB, cartID uuid.UUID) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Model(&models.CartRecord{}).
		Select("id").
		Where("id = ? AND is_submitted = ?", cartID, false)
}

func prepareLine(cartID uuid.UUID, line *models.CartLine) {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	line.CartID = cartID
}
