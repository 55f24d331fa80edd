package models

import (
	"time"

	"github.com/google/uuid"
)

// CartRecord is a session-owned cart. Once submitted it is inert and a new cart (with a new
// nonce) replaces it for further shopping.
type CartRecord struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	SessionID        string     `gorm:"column:session_id;not null"`
	SubmissionNonce  string     `gorm:"column:submission_nonce;not null"`
	IsSubmitted      bool       `gorm:"column:is_submitted;not null;default:false"`
	SubmittedOrderID *string    `gorm:"column:submitted_order_id"`
	SubmittedAt      *time.Time `gorm:"column:submitted_at"`
	ExpiresAt        time.Time  `gorm:"column:expires_at;not null"`
	Lines            []CartLine `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartRecord) TableName() string { return "carts" }

// Expired reports whether the cart's lifetime has elapsed at now.
func (c CartRecord) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
