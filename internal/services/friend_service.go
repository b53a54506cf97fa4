package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"social-service/internal/models"
	"social-service/internal/observability"
	"social-service/internal/repositories"
)

const (
	defaultStoreTimeout = 5 * time.Second
	defaultReadAttempts = 3
)

// FriendService owns the friend request state machine. It keeps no state of its
// own; every invariant is enforced by the relationship store's constraints and
// conditional updates.
type FriendService struct {
	friends      repositories.FriendRepository
	users        repositories.UserRepository
	logger       *zap.Logger
	timeout      time.Duration
	readAttempts uint
	readBackoff  func() backoff.BackOff
}

type FriendServiceOption func(*FriendService)

func WithStoreTimeout(d time.Duration) FriendServiceOption {
	return func(s *FriendService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithReadAttempts bounds how many times a failing read is tried.
func WithReadAttempts(n uint) FriendServiceOption {
	return func(s *FriendService) {
		if n > 0 {
			s.readAttempts = n
		}
	}
}

func NewFriendService(friends repositories.FriendRepository, users repositories.UserRepository, logger *zap.Logger, opts ...FriendServiceOption) *FriendService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &FriendService{
		friends:      friends,
		users:        users,
		logger:       logger,
		timeout:      defaultStoreTimeout,
		readAttempts: defaultReadAttempts,
		readBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FriendService) SendFriendRequest(ctx context.Context, actor, targetID string) (*models.FriendRequest, error) {
	const op = "send_friend_request"
	if actor == targetID {
		return nil, ErrSelfRequest
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exists, err := s.users.Exists(ctx, targetID)
	if err != nil {
		return nil, s.storeErr(op, err)
	}
	if !exists {
		return nil, fmt.Errorf("user %w", ErrNotFound)
	}

	req, err := s.friends.CreateRequest(ctx, actor, targetID)
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, repositories.ErrDuplicate) {
		return nil, s.storeErr(op, err)
	}

	existing, err := s.friends.GetRequestBetween(ctx, actor, targetID)
	if err != nil {
		return nil, s.storeErr(op, err)
	}
	s.logger.Debug("friend request rejected: pair already has a request",
		zap.String("actor", actor),
		zap.String("target", targetID),
		zap.String("existing_request_id", existing.ID),
		zap.String("status", string(existing.Status)),
	)
	if existing.Status == models.FriendRequestAccepted {
		return nil, ErrAlreadyFriends
	}
	return nil, ErrRequestAlreadyPending
}

func (s *FriendService) AcceptFriendRequest(ctx context.Context, actor, requestID string) (*models.FriendRequest, error) {
	const op = "accept_friend_request"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	accepted, err := s.friends.AcceptRequest(ctx, requestID, actor)
	if err == nil {
		return accepted, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, s.storeErr(op, err)
	}

	// Nothing matched. Recipient never changes and status only moves forward,
	// so reading the row now classifies the miss correctly.
	req, err := s.friends.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("friend request %w", ErrNotFound)
		}
		return nil, s.storeErr(op, err)
	}
	if req.RecipientID != actor {
		return nil, ErrNotAuthorized
	}
	return nil, ErrAlreadyResolved
}

// GetFriendRequests lists pending requests addressed to actor, with their senders.
func (s *FriendService) GetFriendRequests(ctx context.Context, actor string) ([]models.FriendRequestWithUser, error) {
	return retryRead(ctx, s, "list_incoming_requests", func(ctx context.Context) ([]models.FriendRequestWithUser, error) {
		return s.friends.ListIncoming(ctx, actor)
	})
}

// GetAcceptedRequests lists requests actor sent that have been accepted, with their recipients.
func (s *FriendService) GetAcceptedRequests(ctx context.Context, actor string) ([]models.FriendRequestWithUser, error) {
	return retryRead(ctx, s, "list_accepted_requests", func(ctx context.Context) ([]models.FriendRequestWithUser, error) {
		return s.friends.ListAcceptedSent(ctx, actor)
	})
}

// GetOutgoingFriendReqs lists pending requests actor sent, with their recipients.
func (s *FriendService) GetOutgoingFriendReqs(ctx context.Context, actor string) ([]models.FriendRequestWithUser, error) {
	return retryRead(ctx, s, "list_outgoing_requests", func(ctx context.Context) ([]models.FriendRequestWithUser, error) {
		return s.friends.ListOutgoing(ctx, actor)
	})
}

func (s *FriendService) GetMyFriends(ctx context.Context, actor string) ([]models.User, error) {
	return retryRead(ctx, s, "list_friends", func(ctx context.Context) ([]models.User, error) {
		return s.friends.ListFriends(ctx, actor)
	})
}

// GetRecommendedUsers returns users sharing no request of any status with actor,
// ordered by sign-up time.
func (s *FriendService) GetRecommendedUsers(ctx context.Context, actor string) ([]models.User, error) {
	return retryRead(ctx, s, "list_recommended", func(ctx context.Context) ([]models.User, error) {
		return s.friends.ListRecommended(ctx, actor)
	})
}

func (s *FriendService) CountFriends(ctx context.Context, actor string) (int, error) {
	return retryRead(ctx, s, "count_friends", func(ctx context.Context) (int, error) {
		return s.friends.CountFriends(ctx, actor)
	})
}

func (s *FriendService) CountIncoming(ctx context.Context, actor string) (int, error) {
	return retryRead(ctx, s, "count_incoming", func(ctx context.Context) (int, error) {
		return s.friends.CountIncoming(ctx, actor)
	})
}

func (s *FriendService) AreFriends(ctx context.Context, userID, otherID string) (bool, error) {
	return retryRead(ctx, s, "are_friends", func(ctx context.Context) (bool, error) {
		return s.friends.AreFriends(ctx, userID, otherID)
	})
}

func retryRead[T any](ctx context.Context, s *FriendService, op string, fn func(context.Context) (T, error)) (T, error) {
	res, err := backoff.Retry(ctx, func() (T, error) {
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		v, err := fn(opCtx)
		if err != nil && ctx.Err() != nil {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(s.readBackoff()),
		backoff.WithMaxTries(s.readAttempts),
	)
	if err != nil {
		var zero T
		return zero, s.storeErr(op, err)
	}
	return res, nil
}

func (s *FriendService) storeErr(op string, err error) error {
	observability.IncStoreUnavailable(op)
	s.logger.Error("relationship store failure", zap.String("operation", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
