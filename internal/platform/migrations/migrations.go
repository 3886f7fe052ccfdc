// Package migrations creates and evolves the database schema. Statements are
// idempotent so Apply can run on every startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		subdomain     TEXT NOT NULL DEFAULT '',
		currency      TEXT NOT NULL DEFAULT 'ZMW',
		tax_rate      DOUBLE PRECISION NOT NULL DEFAULT 0,
		business_type TEXT NOT NULL DEFAULT 'Retail',
		features      JSONB NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS tenants_subdomain_idx ON tenants (subdomain) WHERE subdomain <> ''`,
	`CREATE TABLE IF NOT EXISTS staff_users (
		id            TEXT PRIMARY KEY,
		tenant_id     TEXT NOT NULL REFERENCES tenants (id),
		email         TEXT NOT NULL,
		name          TEXT NOT NULL DEFAULT '',
		role          TEXT NOT NULL DEFAULT 'staff',
		password_hash TEXT NOT NULL,
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL,
		UNIQUE (tenant_id, email)
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id               TEXT PRIMARY KEY,
		tenant_id        TEXT NOT NULL REFERENCES tenants (id),
		name             TEXT NOT NULL,
		code             TEXT NOT NULL,
		parent_id        TEXT,
		description      TEXT NOT NULL DEFAULT '',
		storage_temp_min DOUBLE PRECISION,
		storage_temp_max DOUBLE PRECISION,
		display_order    INTEGER NOT NULL DEFAULT 0,
		active           BOOLEAN NOT NULL DEFAULT TRUE,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL,
		UNIQUE (tenant_id, code)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id             TEXT PRIMARY KEY,
		tenant_id      TEXT NOT NULL REFERENCES tenants (id),
		code           TEXT NOT NULL,
		name           TEXT NOT NULL,
		category_id    TEXT NOT NULL DEFAULT '',
		cut_type       TEXT NOT NULL DEFAULT '',
		description    TEXT NOT NULL DEFAULT '',
		price_per_kg   DOUBLE PRECISION NOT NULL DEFAULT 0,
		unit_price     DOUBLE PRECISION NOT NULL DEFAULT 0,
		sell_by_weight BOOLEAN NOT NULL DEFAULT FALSE,
		weight_options JSONB NOT NULL DEFAULT 'null',
		premium        BOOLEAN NOT NULL DEFAULT FALSE,
		certification  TEXT NOT NULL DEFAULT '',
		visible        BOOLEAN NOT NULL DEFAULT TRUE,
		safety_stock   DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL,
		UNIQUE (tenant_id, code)
	)`,
	`CREATE TABLE IF NOT EXISTS warehouses (
		id           TEXT PRIMARY KEY,
		tenant_id    TEXT NOT NULL REFERENCES tenants (id),
		name         TEXT NOT NULL,
		cold_storage BOOLEAN NOT NULL DEFAULT FALSE,
		storage_type TEXT NOT NULL DEFAULT 'Chilled',
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stock_levels (
		warehouse_id TEXT NOT NULL REFERENCES warehouses (id),
		product_id   TEXT NOT NULL,
		qty          DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at   TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (warehouse_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS batches (
		id             TEXT PRIMARY KEY,
		tenant_id      TEXT NOT NULL REFERENCES tenants (id),
		code           TEXT NOT NULL,
		category_id    TEXT NOT NULL DEFAULT '',
		supplier       TEXT NOT NULL DEFAULT '',
		receipt_date   TIMESTAMPTZ,
		slaughter_date TIMESTAMPTZ,
		expiry_date    TIMESTAMPTZ,
		certification  TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL DEFAULT 'Active',
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL,
		UNIQUE (tenant_id, code)
	)`,
	`CREATE TABLE IF NOT EXISTS delivery_zones (
		id               TEXT PRIMARY KEY,
		tenant_id        TEXT NOT NULL REFERENCES tenants (id),
		name             TEXT NOT NULL,
		code             TEXT NOT NULL DEFAULT '',
		fee              DOUBLE PRECISION NOT NULL DEFAULT 0,
		min_order_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		days             TEXT NOT NULL DEFAULT 'Daily',
		custom_days      TEXT NOT NULL DEFAULT '',
		cutoff_time      TEXT NOT NULL DEFAULT '',
		areas            TEXT NOT NULL DEFAULT '',
		postal_codes     TEXT NOT NULL DEFAULT '',
		estimated_hours  INTEGER NOT NULL DEFAULT 0,
		active           BOOLEAN NOT NULL DEFAULT TRUE,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                  TEXT PRIMARY KEY,
		tenant_id           TEXT NOT NULL REFERENCES tenants (id),
		order_type          TEXT NOT NULL,
		customer_name       TEXT NOT NULL DEFAULT '',
		customer_phone      TEXT NOT NULL DEFAULT '',
		customer_email      TEXT NOT NULL DEFAULT '',
		items               JSONB NOT NULL DEFAULT '[]',
		subtotal            DOUBLE PRECISION NOT NULL DEFAULT 0,
		discount            DOUBLE PRECISION NOT NULL DEFAULT 0,
		delivery_fee        DOUBLE PRECISION NOT NULL DEFAULT 0,
		tax_amount          DOUBLE PRECISION NOT NULL DEFAULT 0,
		grand_total         DOUBLE PRECISION NOT NULL DEFAULT 0,
		status              TEXT NOT NULL DEFAULT 'Pending',
		payment_status      TEXT NOT NULL DEFAULT 'Unpaid',
		delivery_zone_id    TEXT,
		delivery_address    TEXT NOT NULL DEFAULT '',
		delivery_date       TIMESTAMPTZ,
		delivery_time_slot  TEXT NOT NULL DEFAULT '',
		pickup_date         TIMESTAMPTZ,
		pickup_time         TEXT NOT NULL DEFAULT '',
		notes               TEXT NOT NULL DEFAULT '',
		cancellation_reason TEXT NOT NULL DEFAULT '',
		completed_at        TIMESTAMPTZ,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS orders_tenant_created_idx ON orders (tenant_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS payment_gateways (
		id              TEXT PRIMARY KEY,
		code            TEXT NOT NULL UNIQUE,
		name            TEXT NOT NULL,
		gateway_type    TEXT NOT NULL DEFAULT 'cash',
		active          BOOLEAN NOT NULL DEFAULT TRUE,
		sandbox_mode    BOOLEAN NOT NULL DEFAULT FALSE,
		supports_refund BOOLEAN NOT NULL DEFAULT FALSE,
		webhook_secret  TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payment_methods (
		id            TEXT PRIMARY KEY,
		tenant_id     TEXT NOT NULL REFERENCES tenants (id),
		gateway_code  TEXT NOT NULL,
		display_name  TEXT NOT NULL DEFAULT '',
		enabled       BOOLEAN NOT NULL DEFAULT TRUE,
		min_amount    DOUBLE PRECISION NOT NULL DEFAULT 0,
		max_amount    DOUBLE PRECISION NOT NULL DEFAULT 0,
		display_order INTEGER NOT NULL DEFAULT 0,
		merchant_id   TEXT NOT NULL DEFAULT '',
		merchant_code TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL,
		UNIQUE (tenant_id, gateway_code)
	)`,
	`CREATE TABLE IF NOT EXISTS payment_transactions (
		id                TEXT PRIMARY KEY,
		tenant_id         TEXT NOT NULL REFERENCES tenants (id),
		order_id          TEXT NOT NULL,
		gateway_code      TEXT NOT NULL,
		amount            DOUBLE PRECISION NOT NULL,
		currency          TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL DEFAULT 'Initiated',
		gateway_reference TEXT NOT NULL DEFAULT '',
		customer_phone    TEXT NOT NULL DEFAULT '',
		error_message     TEXT NOT NULL DEFAULT '',
		callback_data     TEXT NOT NULL DEFAULT '',
		refund_amount     DOUBLE PRECISION NOT NULL DEFAULT 0,
		initiated_at      TIMESTAMPTZ,
		completed_at      TIMESTAMPTZ,
		refunded_at       TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS payment_transactions_order_idx ON payment_transactions (order_id)`,
}

// Apply runs every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
