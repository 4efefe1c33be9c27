package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archive-commodities/marketplace/internal/messaging/domain"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, m domain.Message) (domain.Message, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO messages (listing_id, sender_id, receiver_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, read, created_at`,
		m.ListingID, m.SenderID, m.ReceiverID, m.Content).
		Scan(&m.ID, &m.Read, &m.CreatedAt)
	if err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

func (r *Repository) ByListing(ctx context.Context, listingID int64) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, listing_id, sender_id, receiver_id, content, read, created_at
		FROM messages WHERE listing_id = $1 ORDER BY created_at`, listingID)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (r *Repository) ByUser(ctx context.Context, userID string) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, listing_id, sender_id, receiver_id, content, read, created_at
		FROM messages WHERE sender_id = $1 OR receiver_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (r *Repository) MarkRead(ctx context.Context, listingID int64, receiverID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE messages SET read = TRUE WHERE listing_id = $1 AND receiver_id = $2`,
		listingID, receiverID)
	return err
}

func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	defer rows.Close()
	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ListingID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Read, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
