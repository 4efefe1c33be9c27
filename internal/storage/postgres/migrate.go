// Package postgres owns the schema bootstrap shared by the service binaries
// and the integration test environment.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The UNIQUE constraint on sales.payment_session_id is load-bearing: it is
// the mechanism that collapses racing fulfillment triggers into one commit.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		id BIGSERIAL PRIMARY KEY,
		seller_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		brand TEXT,
		condition TEXT NOT NULL DEFAULT 'good',
		price BIGINT NOT NULL,
		image_url TEXT NOT NULL,
		sold BOOLEAN NOT NULL DEFAULT FALSE,
		package_size TEXT NOT NULL DEFAULT 'medium',
		shipping_paid_by TEXT NOT NULL DEFAULT 'buyer',
		weight INT NOT NULL DEFAULT 16,
		international_shipping_price BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id BIGSERIAL PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		buyer_email TEXT,
		seller_id TEXT NOT NULL,
		listing_id BIGINT NOT NULL REFERENCES listings(id),
		amount BIGINT NOT NULL,
		fee BIGINT NOT NULL DEFAULT 100,
		shipping_cost BIGINT NOT NULL DEFAULT 0,
		shipping_label_url TEXT,
		tracking_number TEXT,
		shipped BOOLEAN NOT NULL DEFAULT FALSE,
		is_international BOOLEAN NOT NULL DEFAULT FALSE,
		payment_session_id TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		listing_id BIGINT NOT NULL REFERENCES listings(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, listing_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		listing_id BIGINT NOT NULL REFERENCES listings(id),
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		content TEXT NOT NULL,
		read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id BIGSERIAL PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		type TEXT NOT NULL,
		payload BYTEA NOT NULL,
		headers JSONB,
		traceparent TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		relay_id TEXT,
		lease_until TIMESTAMPTZ,
		retry_count INT NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (id) WHERE status = 'pending'`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
