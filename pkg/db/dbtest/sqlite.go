// Package dbtest opens throwaway sqlite databases carrying the application
// schema so repositories and services can be exercised without Postgres.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		date DATETIME NOT NULL,
		duration TEXT,
		location TEXT,
		max_slots INTEGER NOT NULL CHECK (max_slots >= 1),
		is_free BOOLEAN NOT NULL DEFAULT 1,
		price_cents INTEGER NOT NULL DEFAULT 0 CHECK (price_cents >= 0),
		is_premium_event BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		full_name TEXT,
		membership_tier TEXT NOT NULL DEFAULT 'free',
		subscription_status TEXT,
		stripe_customer_id TEXT UNIQUE,
		stripe_subscription_id TEXT,
		membership_expires_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL DEFAULT 'not_required',
		stripe_payment_intent_id TEXT,
		amount_paid_cents INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_user_event ON bookings (user_id, event_id)`,
	`CREATE TABLE IF NOT EXISTS webhook_logs (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		status TEXT NOT NULL,
		details TEXT,
		processed_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS membership_plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tier TEXT NOT NULL,
		status TEXT NOT NULL,
		is_default BOOLEAN NOT NULL DEFAULT 0,
		stripe_price_id TEXT NOT NULL UNIQUE,
		stripe_product_id TEXT NOT NULL,
		interval_months INTEGER NOT NULL,
		price_amount TEXT NOT NULL,
		currency_code TEXT NOT NULL,
		features TEXT DEFAULT '{}',
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
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
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
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

// Open returns an isolated in-memory database with every table created.
// A single connection is kept so concurrent transactions serialize.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:nomas_" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}
