// Package dbtest opens isolated in-memory sqlite databases carrying a sqlite
// rendition of the goose schema, for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE brands (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  created_at DATETIME
)`,
	`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  brand_id TEXT,
  title TEXT NOT NULL,
  list_price_cents INTEGER,
  base_price_cents INTEGER NOT NULL,
  stock_qty INTEGER NOT NULL DEFAULT 0 CHECK (stock_qty >= 0),
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE cart_items (
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  qty INTEGER NOT NULL CHECK (qty > 0),
  created_at DATETIME,
  updated_at DATETIME,
  PRIMARY KEY (cart_id, product_id)
)`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL,
  subtotal_cents INTEGER NOT NULL,
  tax_cents INTEGER NOT NULL,
  shipping_fee_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  payment_method TEXT NOT NULL,
  source TEXT NOT NULL,
  shipping_address TEXT,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  CHECK (total_cents = subtotal_cents + tax_cents + shipping_fee_cents)
)`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  title_snapshot TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  qty INTEGER NOT NULL CHECK (qty > 0),
  line_total_cents INTEGER NOT NULL,
  position INTEGER NOT NULL,
  created_at DATETIME,
  UNIQUE (order_id, position)
)`,
	`CREATE TABLE payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  intent_ref TEXT NOT NULL UNIQUE,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE pickup_requests (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  brand_id TEXT,
  brand_name TEXT,
  model_text TEXT NOT NULL,
  storage TEXT,
  condition TEXT NOT NULL,
  additional_info TEXT,
  notes TEXT,
  address TEXT,
  address_text TEXT,
  scheduled_at DATETIME,
  deposit_cents INTEGER NOT NULL DEFAULT 0,
  estimated_price_cents INTEGER,
  status TEXT NOT NULL,
  photos TEXT NOT NULL DEFAULT '[]',
  created_at DATETIME,
  updated_at DATETIME,
  CHECK ((brand_id IS NULL) <> (brand_name IS NULL))
)`,
	`CREATE TABLE evaluations (
  id TEXT PRIMARY KEY,
  pickup_id TEXT NOT NULL UNIQUE,
  evaluator_id TEXT NOT NULL,
  diagnostics TEXT,
  parts_replaced TEXT NOT NULL DEFAULT '[]',
  evaluation_cost_cents INTEGER NOT NULL DEFAULT 0,
  final_offer_cents INTEGER,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE ledger_events (
  id TEXT PRIMARY KEY,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  actor_user_id TEXT,
  type TEXT NOT NULL,
  amount_cents INTEGER NOT NULL DEFAULT 0,
  metadata TEXT,
  created_at DATETIME
)`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
)`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL UNIQUE,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
)`,
}

// Open returns a fresh database private to the calling test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=0", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// One connection keeps shared-cache table locks out of the way; code
	// running inside a transaction must only use the tx handle.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
