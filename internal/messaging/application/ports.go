package application

import (
	"context"

	"github.com/archive-commodities/marketplace/internal/messaging/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, m domain.Message) (domain.Message, error)
	ByListing(ctx context.Context, listingID int64) ([]domain.Message, error)
	ByUser(ctx context.Context, userID string) ([]domain.Message, error)
	MarkRead(ctx context.Context, listingID int64, receiverID string) error
}
