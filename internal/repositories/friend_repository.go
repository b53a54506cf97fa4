package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"social-service/internal/models"
	"social-service/internal/rabbitmq"
	"social-service/internal/telemetry"
)

// FriendRepository is the relationship store. Uniqueness of a pair is enforced
// by the friend_requests.pair_key constraint, not by callers.
type FriendRepository interface {
	CreateRequest(ctx context.Context, senderID, recipientID string) (*models.FriendRequest, error)
	GetRequest(ctx context.Context, requestID string) (*models.FriendRequest, error)
	GetRequestBetween(ctx context.Context, userID, otherID string) (*models.FriendRequest, error)
	AcceptRequest(ctx context.Context, requestID, recipientID string) (*models.FriendRequest, error)
	ListIncoming(ctx context.Context, userID string) ([]models.FriendRequestWithUser, error)
	ListOutgoing(ctx context.Context, userID string) ([]models.FriendRequestWithUser, error)
	ListAcceptedSent(ctx context.Context, userID string) ([]models.FriendRequestWithUser, error)
	ListFriends(ctx context.Context, userID string) ([]models.User, error)
	CountFriends(ctx context.Context, userID string) (int, error)
	CountIncoming(ctx context.Context, userID string) (int, error)
	ListRecommended(ctx context.Context, userID string) ([]models.User, error)
	AreFriends(ctx context.Context, userID, otherID string) (bool, error)
}

const requestColumns = `fr.id, fr.sender_id, fr.recipient_id, fr.status, fr.created_at, fr.accepted_at`

var userFields = []string{"id", "full_name", "email", "profile_pic", "native_language", "learning_language", "bio", "created_at"}

func userColumns(alias string) string {
	cols := make([]string, len(userFields))
	for i, f := range userFields {
		cols[i] = alias + "." + f
	}
	return strings.Join(cols, ", ")
}

// nestedUserColumns selects the user columns into the FriendRequestWithUser.User field.
func nestedUserColumns(alias string) string {
	cols := make([]string, len(userFields))
	for i, f := range userFields {
		cols[i] = fmt.Sprintf(`%s.%s AS "user.%s"`, alias, f, f)
	}
	return strings.Join(cols, ", ")
}

type friendRepository struct {
	db        *sqlx.DB
	publisher rabbitmq.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewFriendRepository(db *sqlx.DB, publisher rabbitmq.Publisher, logger *zap.Logger) FriendRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &friendRepository{
		db:        db,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *friendRepository) CreateRequest(ctx context.Context, senderID, recipientID string) (*models.FriendRequest, error) {
	req := models.FriendRequest{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Status:      models.FriendRequestPending,
		CreatedAt:   r.now(),
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
INSERT INTO friend_requests (id, sender_id, recipient_id, pair_key, status, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`), req.ID, req.SenderID, req.RecipientID, models.PairKey(senderID, recipientID), string(req.Status), req.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert friend request: %w", err)
	}

	r.logger.Info("friend request created",
		zap.String("request_id", req.ID),
		zap.String("sender_id", req.SenderID),
		zap.String("recipient_id", req.RecipientID),
	)
	r.logPublish(ctx, telemetry.FriendRequestCreatedKey, telemetry.FriendRequestCreated{
		RequestID:   req.ID,
		SenderID:    req.SenderID,
		RecipientID: req.RecipientID,
		CreatedAt:   req.CreatedAt,
	})

	return &req, nil
}

func (r *friendRepository) GetRequest(ctx context.Context, requestID string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req, r.db.Rebind(`SELECT `+requestColumns+` FROM friend_requests fr WHERE fr.id=?`), requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get friend request: %w", err)
	}
	return &req, nil
}

func (r *friendRepository) GetRequestBetween(ctx context.Context, userID, otherID string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req, r.db.Rebind(`SELECT `+requestColumns+` FROM friend_requests fr WHERE fr.pair_key=?`), models.PairKey(userID, otherID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get friend request for pair: %w", err)
	}
	return &req, nil
}

// AcceptRequest moves a pending request addressed to recipientID to accepted and
// writes both friendship edges in the same transaction. ErrNotFound means no
// pending request with that id is addressed to recipientID.
func (r *friendRepository) AcceptRequest(ctx context.Context, requestID, recipientID string) (*models.FriendRequest, error) {
	var accepted models.FriendRequest
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		acceptedAt := r.now()
		res, err := tx.ExecContext(ctx, tx.Rebind(`
UPDATE friend_requests SET status='accepted', accepted_at=?
WHERE id=? AND recipient_id=? AND status='pending'
`), acceptedAt, requestID, recipientID)
		if err != nil {
			return fmt.Errorf("update friend request: %w", err)
		}
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}

		if err := tx.GetContext(ctx, &accepted, tx.Rebind(`SELECT `+requestColumns+` FROM friend_requests fr WHERE fr.id=?`), requestID); err != nil {
			return fmt.Errorf("reload friend request: %w", err)
		}

		if err := r.insertFriendship(ctx, tx, accepted.SenderID, accepted.RecipientID, acceptedAt); err != nil {
			return err
		}
		return r.insertFriendship(ctx, tx, accepted.RecipientID, accepted.SenderID, acceptedAt)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("friend request accepted",
		zap.String("request_id", accepted.ID),
		zap.String("sender_id", accepted.SenderID),
		zap.String("recipient_id", accepted.RecipientID),
	)
	acceptedAt := r.now()
	if accepted.AcceptedAt != nil {
		acceptedAt = *accepted.AcceptedAt
	}
	r.logPublish(ctx, telemetry.FriendshipCreatedKey, telemetry.FriendshipCreated{
		RequestID:  accepted.ID,
		UserID:     accepted.SenderID,
		FriendID:   accepted.RecipientID,
		AcceptedAt: acceptedAt,
	})

	return &accepted, nil
}

func (r *friendRepository) ListIncoming(ctx context.Context, userID string) ([]models.FriendRequestWithUser, error) {
	return r.listRequestsWithUser(ctx, "fr.sender_id", "fr.recipient_id=? AND fr.status='pending'", "fr.created_at DESC, fr.id", userID)
}

func (r *friendRepository) ListOutgoing(ctx context.Context, userID string) ([]models.FriendRequestWithUser, error) {
	return r.listRequestsWithUser(ctx, "fr.recipient_id", "fr.sender_id=? AND fr.status='pending'", "fr.created_at DESC, fr.id", userID)
}

func (r *friendRepository) ListAcceptedSent(ctx context.Context, userID string) ([]models.FriendRequestWithUser, error) {
	return r.listRequestsWithUser(ctx, "fr.recipient_id", "fr.sender_id=? AND fr.status='accepted'", "fr.accepted_at DESC, fr.id", userID)
}

func (r *friendRepository) listRequestsWithUser(ctx context.Context, joinColumn, where, orderBy, userID string) ([]models.FriendRequestWithUser, error) {
	reqs := []models.FriendRequestWithUser{}
	query := `SELECT ` + requestColumns + `, ` + nestedUserColumns("u") + `
FROM friend_requests fr
JOIN users u ON u.id = ` + joinColumn + `
WHERE ` + where + `
ORDER BY ` + orderBy
	if err := r.db.SelectContext(ctx, &reqs, r.db.Rebind(query), userID); err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	return reqs, nil
}

func (r *friendRepository) ListFriends(ctx context.Context, userID string) ([]models.User, error) {
	friends := []models.User{}
	err := r.db.SelectContext(ctx, &friends, r.db.Rebind(`
SELECT `+userColumns("u")+`
FROM friendships f
JOIN users u ON u.id = f.friend_id
WHERE f.user_id=?
ORDER BY u.full_name, u.id
`), userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return friends, nil
}

func (r *friendRepository) CountFriends(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM friendships WHERE user_id=?`), userID); err != nil {
		return 0, fmt.Errorf("count friends: %w", err)
	}
	return count, nil
}

func (r *friendRepository) CountIncoming(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM friend_requests WHERE recipient_id=? AND status='pending'`), userID); err != nil {
		return 0, fmt.Errorf("count incoming requests: %w", err)
	}
	return count, nil
}

// ListRecommended returns every other user with no friend request, in any
// status and either direction, shared with userID.
func (r *friendRepository) ListRecommended(ctx context.Context, userID string) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, r.db.Rebind(`
SELECT `+userColumns("u")+`
FROM users u
WHERE u.id <> ?
AND NOT EXISTS (
SELECT 1 FROM friend_requests fr
WHERE (fr.sender_id=? AND fr.recipient_id=u.id) OR (fr.recipient_id=? AND fr.sender_id=u.id)
)
ORDER BY u.created_at, u.id
`), userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list recommended users: %w", err)
	}
	return users, nil
}

func (r *friendRepository) AreFriends(ctx context.Context, userID, otherID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, r.db.Rebind(`
SELECT EXISTS(
SELECT 1 FROM friendships WHERE user_id=? AND friend_id=?
)
`), userID, otherID)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return exists, nil
}

func (r *friendRepository) insertFriendship(ctx context.Context, tx *sqlx.Tx, userID, friendID string, createdAt time.Time) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
INSERT INTO friendships (user_id, friend_id, created_at) VALUES (?, ?, ?)
ON CONFLICT (user_id, friend_id) DO NOTHING
`), userID, friendID, createdAt)
	if err != nil {
		return fmt.Errorf("insert friendship: %w", err)
	}
	return nil
}

func (r *friendRepository) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *friendRepository) logPublish(ctx context.Context, eventType string, payload any) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, eventType, payload); err != nil {
		r.logger.Warn("failed to publish event", zap.String("event", eventType), zap.Error(err))
	}
}
