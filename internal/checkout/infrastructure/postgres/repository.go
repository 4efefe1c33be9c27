package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archive-commodities/marketplace/internal/checkout/domain"
	"github.com/archive-commodities/marketplace/pkg/outbox"
	"github.com/archive-commodities/marketplace/pkg/tracing"
)

const uniqueViolation = "23505"

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const saleColumns = `id, buyer_id, COALESCE(buyer_email,''), seller_id, listing_id, amount, fee,
	shipping_cost, COALESCE(shipping_label_url,''), COALESCE(tracking_number,''), shipped,
	is_international, payment_session_id, created_at`

// Create inserts the sale, marks the listing sold and records the outbox
// event in one transaction. The sold flip is conditional on the listing
// still being unsold, so a race between two sessions for the same listing
// resolves to exactly one winner.
func (r *Repository) Create(ctx context.Context, s domain.Sale, eventType string, payload []byte) (domain.Sale, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Sale{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	created := s
	err = tx.QueryRow(ctx, `INSERT INTO sales
			(buyer_id, buyer_email, seller_id, listing_id, amount, fee, shipping_cost, is_international, payment_session_id)
		VALUES ($1, NULLIF($2,''), $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		s.BuyerID, s.BuyerEmail, s.SellerID, s.ListingID, s.AmountCents, s.FeeCents,
		s.ShippingCents, s.IsInternational, s.PaymentSessionID).
		Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Sale{}, domain.ErrSaleExists
		}
		return domain.Sale{}, err
	}

	ct, err := tx.Exec(ctx, `UPDATE listings SET sold = TRUE WHERE id = $1 AND sold = FALSE`, s.ListingID)
	if err != nil {
		return domain.Sale{}, err
	}
	if ct.RowsAffected() == 0 {
		// Another session already sold this listing; roll everything back.
		return domain.Sale{}, domain.ErrAlreadySold
	}

	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')`,
		"sale", s.PaymentSessionID, eventType, payload, map[string]string{"source": "checkout"}, tracing.Traceparent(ctx))
	if err != nil {
		return domain.Sale{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return domain.Sale{}, err
	}
	return created, nil
}

func (r *Repository) BySession(ctx context.Context, sessionID string) (domain.Sale, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE payment_session_id = $1`, sessionID))
}

func (r *Repository) ByID(ctx context.Context, id int64) (domain.Sale, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
}

func (r *Repository) ByBuyer(ctx context.Context, buyerID string) ([]domain.Sale, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, err
	}
	return r.scanMany(rows)
}

func (r *Repository) BySeller(ctx context.Context, sellerID string) ([]domain.Sale, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
	if err != nil {
		return nil, err
	}
	return r.scanMany(rows)
}

func (r *Repository) AttachLabel(ctx context.Context, id int64, labelURL, trackingNumber string) (domain.Sale, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `UPDATE sales
		SET shipping_label_url = $2, tracking_number = $3
		WHERE id = $1
		RETURNING `+saleColumns, id, labelURL, trackingNumber))
}

func (r *Repository) MarkShipped(ctx context.Context, id int64, trackingNumber string) (domain.Sale, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `UPDATE sales
		SET shipped = TRUE, tracking_number = $2
		WHERE id = $1
		RETURNING `+saleColumns, id, trackingNumber))
}

func (r *Repository) scanOne(row pgx.Row) (domain.Sale, error) {
	var s domain.Sale
	err := row.Scan(&s.ID, &s.BuyerID, &s.BuyerEmail, &s.SellerID, &s.ListingID, &s.AmountCents,
		&s.FeeCents, &s.ShippingCents, &s.ShippingLabelURL, &s.TrackingNumber, &s.Shipped,
		&s.IsInternational, &s.PaymentSessionID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Sale{}, domain.ErrSaleNotFound
	}
	if err != nil {
		return domain.Sale{}, err
	}
	return s, nil
}

func (r *Repository) scanMany(rows pgx.Rows) ([]domain.Sale, error) {
	defer rows.Close()
	var sales []domain.Sale
	for rows.Next() {
		var s domain.Sale
		if err := rows.Scan(&s.ID, &s.BuyerID, &s.BuyerEmail, &s.SellerID, &s.ListingID, &s.AmountCents,
			&s.FeeCents, &s.ShippingCents, &s.ShippingLabelURL, &s.TrackingNumber, &s.Shipped,
			&s.IsInternational, &s.PaymentSessionID, &s.CreatedAt); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

// OutboxStore backs the relay that pushes SaleCompleted events to kafka.
type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent, created_at
		FROM outbox
		WHERE status = 'pending'
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var event outbox.Event
		var headers map[string]string
		if err := rows.Scan(&event.ID, &event.AggregateType, &event.AggregateID, &event.Type, &event.Payload, &headers, &event.Traceparent, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.Headers = headers
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}

	_, err = tx.Exec(ctx, `UPDATE outbox SET status='in_progress', relay_id=$1, lease_until=now() + $2::interval WHERE id = ANY($3)`, relayID, lease.String(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent' WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("no rows updated")
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status='failed', last_error=$2, retry_count=retry_count+1 WHERE id=$1`, id, errMsg)
	return err
}

func (s *OutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET lease_until=now() + $1::interval WHERE id = ANY($2) AND relay_id=$3`, lease.String(), ids, relayID)
	return err
}
