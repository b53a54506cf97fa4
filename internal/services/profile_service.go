package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"social-service/internal/models"
	"social-service/internal/repositories"
)

// ActivityCounter reports chat and call totals kept by the chat backend.
type ActivityCounter interface {
	CountChats(ctx context.Context, userID string) (int, error)
	CountCalls(ctx context.Context, userID string) (int, error)
}

// NoActivity reports zero chats and calls.
type NoActivity struct{}

func (NoActivity) CountChats(context.Context, string) (int, error) { return 0, nil }
func (NoActivity) CountCalls(context.Context, string) (int, error) { return 0, nil }

type ProfileService struct {
	users    repositories.UserRepository
	friends  *FriendService
	activity ActivityCounter
	logger   *zap.Logger
}

func NewProfileService(users repositories.UserRepository, friends *FriendService, activity ActivityCounter, logger *zap.Logger) *ProfileService {
	if activity == nil {
		activity = NoActivity{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{users: users, friends: friends, activity: activity, logger: logger}
}

func (s *ProfileService) GetMe(ctx context.Context, actor string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, actor)
	if err != nil {
		return nil, s.userErr("get_me", err)
	}
	return user, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, actor string, update models.ProfileUpdate) (*models.User, error) {
	update.FullName = strings.TrimSpace(update.FullName)
	update.Bio = strings.TrimSpace(update.Bio)
	update.NativeLanguage = strings.ToLower(strings.TrimSpace(update.NativeLanguage))
	update.LearningLanguage = strings.ToLower(strings.TrimSpace(update.LearningLanguage))
	if update.FullName == "" {
		return nil, fmt.Errorf("%w: full name is required", ErrInvalidProfile)
	}

	user, err := s.users.UpdateProfile(ctx, actor, update)
	if err != nil {
		return nil, s.userErr("update_profile", err)
	}
	return user, nil
}

// AvatarURLPrefix is where uploaded avatars are served. Local pictures are
// AvatarURLPrefix + <user id> + "/" + <file name>.
const AvatarURLPrefix = "/uploads/avatars/"

// UpdateProfilePicture stores an absolute http(s) URL or one of actor's uploaded avatars.
func (s *ProfileService) UpdateProfilePicture(ctx context.Context, actor, picURL string) (*models.User, error) {
	picURL = strings.TrimSpace(picURL)
	if !validPictureURL(actor, picURL) {
		return nil, fmt.Errorf("%w: profile picture must be an http(s) URL or an uploaded avatar", ErrInvalidProfile)
	}
	user, err := s.users.SetProfilePic(ctx, actor, picURL)
	if err != nil {
		return nil, s.userErr("update_profile_picture", err)
	}
	return user, nil
}

func (s *ProfileService) ClearProfilePicture(ctx context.Context, actor string) error {
	if _, err := s.users.SetProfilePic(ctx, actor, ""); err != nil {
		return s.userErr("clear_profile_picture", err)
	}
	return nil
}

func (s *ProfileService) GetProfileStats(ctx context.Context, actor string) (models.ProfileStats, error) {
	var stats models.ProfileStats
	var err error

	if stats.FriendsCount, err = s.friends.CountFriends(ctx, actor); err != nil {
		return models.ProfileStats{}, err
	}
	if stats.PendingRequests, err = s.friends.CountIncoming(ctx, actor); err != nil {
		return models.ProfileStats{}, err
	}
	// Chat and call totals are best effort; the profile page still renders without them.
	if stats.TotalChats, err = s.activity.CountChats(ctx, actor); err != nil {
		s.logger.Warn("chat count unavailable", zap.String("user_id", actor), zap.Error(err))
		stats.TotalChats = 0
	}
	if stats.TotalCalls, err = s.activity.CountCalls(ctx, actor); err != nil {
		s.logger.Warn("call count unavailable", zap.String("user_id", actor), zap.Error(err))
		stats.TotalCalls = 0
	}
	return stats, nil
}

func (s *ProfileService) userErr(op string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("user %w", ErrNotFound)
	}
	s.logger.Error("identity store failure", zap.String("operation", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

func validPictureURL(actor, raw string) bool {
	if strings.HasPrefix(raw, "/") {
		return OwnsAvatarPath(actor, raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// OwnsAvatarPath reports whether p is a clean path to a file directly inside
// actor's avatar directory.
func OwnsAvatarPath(actor, p string) bool {
	if path.Clean(p) != p || strings.Contains(p, "..") || strings.Contains(p, "\\") {
		return false
	}
	rest, ok := strings.CutPrefix(p, AvatarURLPrefix)
	if !ok {
		return false
	}
	dir, file, ok := strings.Cut(rest, "/")
	return ok && dir == actor && file != "" && !strings.Contains(file, "/")
}
