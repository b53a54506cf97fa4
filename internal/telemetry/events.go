package telemetry

import "time"

// Routing keys for domain events on the events exchange.
const (
	FriendRequestCreatedKey = "friend.request.created"
	FriendshipCreatedKey    = "friendship.created"
)

type FriendRequestCreated struct {
	RequestID   string    `json:"request_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type FriendshipCreated struct {
	RequestID  string    `json:"request_id"`
	UserID     string    `json:"user_id"`
	FriendID   string    `json:"friend_id"`
	AcceptedAt time.Time `json:"accepted_at"`
}
