package models

import (
	"time"

	"github.com/google/uuid"
)

// CartLine references one purchasable unit. UnitPrice is the override captured at add time
// from a promotion or bundle; CatalogPrice is kept as the compare-at price.
type CartLine struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID        uuid.UUID `gorm:"column:cart_id;type:uuid;not null"`
	Position      int       `gorm:"column:position;not null"`
	UnitID        string    `gorm:"column:unit_id;not null"`
	ProductID     string    `gorm:"column:product_id;not null"`
	ProductType   string    `gorm:"column:product_type;not null;default:''"`
	Name          string    `gorm:"column:name;not null;default:''"`
	Quantity      int       `gorm:"column:quantity;not null"`
	CatalogPrice  int64     `gorm:"column:catalog_price;not null"`
	UnitPrice     *int64    `gorm:"column:unit_price"`
	BundleGroupID *string   `gorm:"column:bundle_group_id"`
	PromotionID   *string   `gorm:"column:promotion_id"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartLine) TableName() string { return "cart_lines" }
