package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archive-commodities/marketplace/internal/listing/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const listingColumns = `id, seller_id, title, description, COALESCE(brand,''), condition, price,
	image_url, sold, package_size, shipping_paid_by, weight, international_shipping_price, created_at`

func (r *Repository) Create(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO listings
			(seller_id, title, description, brand, condition, price, image_url, package_size, shipping_paid_by, weight, international_shipping_price)
		VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		l.SellerID, l.Title, l.Description, l.Brand, l.Condition, l.PriceCents, l.ImageURL,
		l.PackageSize, l.ShippingPaidBy, l.WeightOunces, l.InternationalShippingPriceCents).
		Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return domain.Listing{}, err
	}
	return l, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (domain.Listing, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id))
}

func (r *Repository) Active(ctx context.Context) ([]domain.Listing, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE sold = FALSE ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return r.scanMany(rows)
}

func (r *Repository) Sold(ctx context.Context) ([]domain.Listing, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE sold = TRUE ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return r.scanMany(rows)
}

func (r *Repository) BySeller(ctx context.Context, sellerID string) ([]domain.Listing, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
	if err != nil {
		return nil, err
	}
	return r.scanMany(rows)
}

func (r *Repository) Search(ctx context.Context, query string) ([]domain.Listing, error) {
	pattern := "%" + query + "%"
	rows, err := r.pool.Query(ctx, `SELECT `+listingColumns+` FROM listings
		WHERE sold = FALSE AND (title ILIKE $1 OR description ILIKE $1 OR brand ILIKE $1)
		ORDER BY created_at DESC`, pattern)
	if err != nil {
		return nil, err
	}
	return r.scanMany(rows)
}

func (r *Repository) LikeCounts(ctx context.Context) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT listing_id, count(*)::int FROM favorites GROUP BY listing_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (r *Repository) scanOne(row pgx.Row) (domain.Listing, error) {
	var l domain.Listing
	err := row.Scan(&l.ID, &l.SellerID, &l.Title, &l.Description, &l.Brand, &l.Condition,
		&l.PriceCents, &l.ImageURL, &l.Sold, &l.PackageSize, &l.ShippingPaidBy,
		&l.WeightOunces, &l.InternationalShippingPriceCents, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	if err != nil {
		return domain.Listing{}, err
	}
	return l, nil
}

func (r *Repository) scanMany(rows pgx.Rows) ([]domain.Listing, error) {
	defer rows.Close()
	var listings []domain.Listing
	for rows.Next() {
		var l domain.Listing
		if err := rows.Scan(&l.ID, &l.SellerID, &l.Title, &l.Description, &l.Brand, &l.Condition,
			&l.PriceCents, &l.ImageURL, &l.Sold, &l.PackageSize, &l.ShippingPaidBy,
			&l.WeightOunces, &l.InternationalShippingPriceCents, &l.CreatedAt); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Favorites lives on the same pool; split out so the application layer can
// depend on it separately.
type FavoriteRepository struct {
	pool *pgxpool.Pool
}

func NewFavoriteRepository(pool *pgxpool.Pool) *FavoriteRepository {
	return &FavoriteRepository{pool: pool}
}

func (r *FavoriteRepository) Add(ctx context.Context, userID string, listingID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO favorites (user_id, listing_id) VALUES ($1, $2)
		ON CONFLICT (user_id, listing_id) DO NOTHING`, userID, listingID)
	return err
}

func (r *FavoriteRepository) Remove(ctx context.Context, userID string, listingID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND listing_id = $2`, userID, listingID)
	return err
}

func (r *FavoriteRepository) ByUser(ctx context.Context, userID string) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT listing_id FROM favorites WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *FavoriteRepository) IsFavorited(ctx context.Context, userID string, listingID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = $1 AND listing_id = $2)`, userID, listingID).
		Scan(&exists)
	return exists, err
}

func (r *FavoriteRepository) Count(ctx context.Context, listingID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*)::int FROM favorites WHERE listing_id = $1`, listingID).Scan(&n)
	return n, err
}
