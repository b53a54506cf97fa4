package models

import "time"

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
)

type FriendRequest struct {
	ID          string              `db:"id" json:"id"`
	SenderID    string              `db:"sender_id" json:"senderId"`
	RecipientID string              `db:"recipient_id" json:"recipientId"`
	Status      FriendRequestStatus `db:"status" json:"status"`
	CreatedAt   time.Time           `db:"created_at" json:"createdAt"`
	AcceptedAt  *time.Time          `db:"accepted_at" json:"acceptedAt,omitempty"`
}

// FriendRequestWithUser pairs a request with the user on the other side of it,
// from the point of view of whoever listed it.
type FriendRequestWithUser struct {
	FriendRequest
	User User `db:"user" json:"user"`
}

// PairKey returns the order-independent key for two user ids.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}
