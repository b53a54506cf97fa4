package services

import "errors"

// Expected, user-facing outcomes of friend graph and profile operations.
var (
	ErrSelfRequest           = errors.New("cannot send friend request to yourself")
	ErrAlreadyFriends        = errors.New("you are already friends with this user")
	ErrRequestAlreadyPending = errors.New("a friend request already exists between you and this user")
	ErrNotFound              = errors.New("not found")
	ErrNotAuthorized         = errors.New("you are not authorized to accept this request")
	ErrAlreadyResolved       = errors.New("friend request already accepted")
	ErrInvalidProfile        = errors.New("invalid profile")

	// ErrStoreUnavailable wraps storage failures. It is the only retryable kind.
	ErrStoreUnavailable = errors.New("relationship store unavailable")
)

// IsRetryable reports whether err may be retried with backoff by the caller.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
