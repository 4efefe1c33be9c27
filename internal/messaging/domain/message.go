package domain

import (
	"errors"
	"time"
)

var ErrInvalidMessage = errors.New("invalid message")

type Message struct {
	ID         int64     `json:"id"`
	ListingID  int64     `json:"listingId"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Conversation is the latest exchange about a listing with one counterparty.
type Conversation struct {
	ListingID   int64   `json:"listingId"`
	OtherUserID string  `json:"otherUserId"`
	LastMessage Message `json:"lastMessage"`
}
