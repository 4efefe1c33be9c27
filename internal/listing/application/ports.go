package application

import (
	"context"

	"github.com/archive-commodities/marketplace/internal/listing/domain"
)

type ListingRepository interface {
	Create(ctx context.Context, l domain.Listing) (domain.Listing, error)
	Get(ctx context.Context, id int64) (domain.Listing, error)
	Active(ctx context.Context) ([]domain.Listing, error)
	Sold(ctx context.Context) ([]domain.Listing, error)
	BySeller(ctx context.Context, sellerID string) ([]domain.Listing, error)
	Search(ctx context.Context, query string) ([]domain.Listing, error)
	LikeCounts(ctx context.Context) (map[int64]int, error)
}

type FavoriteRepository interface {
	Add(ctx context.Context, userID string, listingID int64) error
	Remove(ctx context.Context, userID string, listingID int64) error
	ByUser(ctx context.Context, userID string) ([]int64, error)
	IsFavorited(ctx context.Context, userID string, listingID int64) (bool, error)
	Count(ctx context.Context, listingID int64) (int, error)
}
