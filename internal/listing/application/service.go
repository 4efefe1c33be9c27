package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/archive-commodities/marketplace/internal/listing/domain"
)

var ErrInvalidListing = errors.New("invalid listing")

const maxWeightOunces = 1120 // 70 lbs

type Service struct {
	listings  ListingRepository
	favorites FavoriteRepository
}

func NewService(listings ListingRepository, favorites FavoriteRepository) *Service {
	return &Service{listings: listings, favorites: favorites}
}

type CreateListingInput struct {
	SellerID                        string
	Title                           string
	Description                     string
	Brand                           string
	Condition                       domain.Condition
	PriceCents                      int64
	ImageURL                        string
	PackageSize                     domain.PackageSize
	ShippingPaidBy                  domain.ShippingPolicy
	WeightOunces                    int
	InternationalShippingPriceCents *int64
}

func (s *Service) Create(ctx context.Context, in CreateListingInput) (domain.Listing, error) {
	if in.Condition == "" {
		in.Condition = domain.ConditionGood
	}
	if in.PackageSize == "" {
		in.PackageSize = domain.PackageMedium
	}
	if in.ShippingPaidBy == "" {
		in.ShippingPaidBy = domain.ShippingBuyerPays
	}
	if in.WeightOunces == 0 {
		in.WeightOunces = 16
	}
	if err := validateListing(in); err != nil {
		return domain.Listing{}, err
	}
	return s.listings.Create(ctx, domain.Listing{
		SellerID:                        in.SellerID,
		Title:                           in.Title,
		Description:                     in.Description,
		Brand:                           in.Brand,
		Condition:                       in.Condition,
		PriceCents:                      in.PriceCents,
		ImageURL:                        in.ImageURL,
		PackageSize:                     in.PackageSize,
		ShippingPaidBy:                  in.ShippingPaidBy,
		WeightOunces:                    in.WeightOunces,
		InternationalShippingPriceCents: in.InternationalShippingPriceCents,
	})
}

func validateListing(in CreateListingInput) error {
	switch {
	case in.SellerID == "":
		return fmt.Errorf("%w: seller required", ErrInvalidListing)
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title required", ErrInvalidListing)
	case strings.TrimSpace(in.Description) == "":
		return fmt.Errorf("%w: description required", ErrInvalidListing)
	case in.PriceCents <= 0:
		return fmt.Errorf("%w: price must be positive", ErrInvalidListing)
	case in.ImageURL == "":
		return fmt.Errorf("%w: image required", ErrInvalidListing)
	case !domain.ValidCondition(in.Condition):
		return fmt.Errorf("%w: unknown condition %q", ErrInvalidListing, in.Condition)
	case !domain.ValidPackageSize(in.PackageSize):
		return fmt.Errorf("%w: unknown package size %q", ErrInvalidListing, in.PackageSize)
	case !domain.ValidShippingPolicy(in.ShippingPaidBy):
		return fmt.Errorf("%w: unknown shipping policy %q", ErrInvalidListing, in.ShippingPaidBy)
	case in.WeightOunces < 1 || in.WeightOunces > maxWeightOunces:
		return fmt.Errorf("%w: weight out of range", ErrInvalidListing)
	case in.InternationalShippingPriceCents != nil && *in.InternationalShippingPriceCents < 0:
		return fmt.Errorf("%w: international shipping price must not be negative", ErrInvalidListing)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Listing, error) {
	return s.listings.Get(ctx, id)
}

func (s *Service) BySeller(ctx context.Context, sellerID string) ([]domain.Listing, error) {
	return s.listings.BySeller(ctx, sellerID)
}

type ListingWithLikes struct {
	domain.Listing
	LikeCount int `json:"likeCount"`
}

// Active returns unsold listings, newest first, with favorite counts.
func (s *Service) Active(ctx context.Context) ([]ListingWithLikes, error) {
	listings, err := s.listings.Active(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.listings.LikeCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ListingWithLikes, 0, len(listings))
	for _, l := range listings {
		out = append(out, ListingWithLikes{Listing: l, LikeCount: counts[l.ID]})
	}
	return out, nil
}

// Search matches unsold listings by title, description or brand. The
// literal query "sold" instead returns the sold archive.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Listing, error) {
	if strings.EqualFold(strings.TrimSpace(query), "sold") {
		return s.listings.Sold(ctx)
	}
	return s.listings.Search(ctx, query)
}

func (s *Service) AddFavorite(ctx context.Context, userID string, listingID int64) error {
	if _, err := s.listings.Get(ctx, listingID); err != nil {
		return err
	}
	return s.favorites.Add(ctx, userID, listingID)
}

func (s *Service) RemoveFavorite(ctx context.Context, userID string, listingID int64) error {
	return s.favorites.Remove(ctx, userID, listingID)
}

func (s *Service) Favorites(ctx context.Context, userID string) ([]int64, error) {
	return s.favorites.ByUser(ctx, userID)
}

func (s *Service) IsFavorited(ctx context.Context, userID string, listingID int64) (bool, error) {
	return s.favorites.IsFavorited(ctx, userID, listingID)
}

func (s *Service) LikeCount(ctx context.Context, listingID int64) (int, error) {
	return s.favorites.Count(ctx, listingID)
}
