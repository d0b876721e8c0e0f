package store

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS gst_report_settings (
		id               SMALLINT PRIMARY KEY CHECK (id = 1),
		enabled          BOOLEAN NOT NULL DEFAULT FALSE,
		recipients       TEXT[] NOT NULL DEFAULT '{}',
		day_of_month     INTEGER NOT NULL DEFAULT 1,
		send_hour        INTEGER NOT NULL DEFAULT 9,
		send_minute      INTEGER NOT NULL DEFAULT 0,
		last_sent_period TEXT,
		claim_period     TEXT,
		claim_expires_at TIMESTAMPTZ,
		next_run_at      TIMESTAMPTZ,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`INSERT INTO gst_report_settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS gst_access_keys (
		id             UUID PRIMARY KEY,
		key_value      TEXT NOT NULL UNIQUE,
		is_active      BOOLEAN NOT NULL DEFAULT TRUE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deactivated_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS gst_access_keys_one_active
		ON gst_access_keys (is_active) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS gst_access_logs (
		id            UUID PRIMARY KEY,
		key_id        UUID REFERENCES gst_access_keys (id) ON DELETE SET NULL,
		logged_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		source_ip     TEXT NOT NULL DEFAULT '',
		browser       TEXT NOT NULL DEFAULT '',
		os            TEXT NOT NULL DEFAULT '',
		geolocation   TEXT NOT NULL DEFAULT '',
		success       BOOLEAN NOT NULL,
		error_message TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS gst_access_logs_logged_at ON gst_access_logs (logged_at DESC)`,
	`CREATE TABLE IF NOT EXISTS tax_classes (
		id       BIGSERIAL PRIMARY KEY,
		name     TEXT NOT NULL,
		slug     TEXT NOT NULL UNIQUE,
		position INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS tax_rates (
		id            BIGSERIAL PRIMARY KEY,
		class_slug    TEXT NOT NULL DEFAULT '',
		label         TEXT NOT NULL DEFAULT '',
		percent       TEXT NOT NULL DEFAULT '',
		rate_order    INTEGER NOT NULL DEFAULT 0,
		rate_priority INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id        BIGINT PRIMARY KEY,
		parent_id BIGINT NOT NULL DEFAULT 0,
		name      TEXT NOT NULL,
		sku       TEXT NOT NULL DEFAULT '',
		hsn_code  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                 BIGINT PRIMARY KEY,
		created_at         TIMESTAMPTZ NOT NULL,
		status             TEXT NOT NULL,
		invoice_number     TEXT NOT NULL DEFAULT '',
		billing_first_name TEXT NOT NULL DEFAULT '',
		billing_last_name  TEXT NOT NULL DEFAULT '',
		billing_city       TEXT NOT NULL DEFAULT '',
		billing_postcode   TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS orders_created_at_status ON orders (created_at, status)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id           BIGINT PRIMARY KEY,
		order_id     BIGINT NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
		item_type    TEXT NOT NULL CHECK (item_type IN ('line_item', 'shipping')),
		product_id   BIGINT NOT NULL DEFAULT 0,
		variation_id BIGINT NOT NULL DEFAULT 0,
		name         TEXT NOT NULL DEFAULT '',
		quantity     INTEGER NOT NULL DEFAULT 1,
		total        NUMERIC(20, 6) NOT NULL DEFAULT 0,
		total_tax    NUMERIC(20, 6) NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS order_item_taxes (
		item_id BIGINT NOT NULL REFERENCES order_items (id) ON DELETE CASCADE,
		rate_id BIGINT NOT NULL,
		amount  NUMERIC(20, 6) NOT NULL DEFAULT 0,
		PRIMARY KEY (item_id, rate_id)
	)`,
}

// Migrate creates the service tables when they do not exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
