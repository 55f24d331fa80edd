package cart

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	carts := `
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  submission_nonce TEXT NOT NULL,
  is_submitted INTEGER NOT NULL DEFAULT 0,
  submitted_order_id TEXT,
  submitted_at DATETIME,
  expires_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	cartLines := `
CREATE TABLE IF NOT EXISTS cart_lines (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  position INTEGER NOT NULL,
  unit_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_type TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL DEFAULT '',
  quantity INTEGER NOT NULL CHECK (quantity >= 1),
  catalog_price INTEGER NOT NULL,
  unit_price INTEGER,
  bundle_group_id TEXT,
  promotion_id TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (cart_id, position)
);`
	require.NoError(t, db.Exec(carts).Error)
	require.NoError(t, db.Exec(cartLines).Error)
	return db
}
