package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/archive-commodities/marketplace/internal/messaging/domain"
)

type Service struct {
	messages MessageRepository
}

func NewService(messages MessageRepository) *Service {
	return &Service{messages: messages}
}

func (s *Service) Send(ctx context.Context, m domain.Message) (domain.Message, error) {
	switch {
	case m.ListingID <= 0:
		return domain.Message{}, fmt.Errorf("%w: listing required", domain.ErrInvalidMessage)
	case m.SenderID == "" || m.ReceiverID == "":
		return domain.Message{}, fmt.Errorf("%w: sender and receiver required", domain.ErrInvalidMessage)
	case m.SenderID == m.ReceiverID:
		return domain.Message{}, fmt.Errorf("%w: cannot message yourself", domain.ErrInvalidMessage)
	case strings.TrimSpace(m.Content) == "":
		return domain.Message{}, fmt.Errorf("%w: empty content", domain.ErrInvalidMessage)
	}
	return s.messages.Create(ctx, m)
}

func (s *Service) ByListing(ctx context.Context, listingID int64) ([]domain.Message, error) {
	return s.messages.ByListing(ctx, listingID)
}

// Conversations groups a user's messages by listing, keeping the most
// recent message per listing with whoever sent or received it. Input from
// the repository is newest-first.
func (s *Service) Conversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	msgs, err := s.messages.ByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(msgs))
	var convs []domain.Conversation
	for _, m := range msgs {
		if seen[m.ListingID] {
			continue
		}
		seen[m.ListingID] = true
		other := m.ReceiverID
		if m.SenderID != userID {
			other = m.SenderID
		}
		convs = append(convs, domain.Conversation{ListingID: m.ListingID, OtherUserID: other, LastMessage: m})
	}
	return convs, nil
}

func (s *Service) MarkRead(ctx context.Context, listingID int64, receiverID string) error {
	return s.messages.MarkRead(ctx, listingID, receiverID)
}
