package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"social-service/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.User, error)
	SetProfilePic(ctx context.Context, id, url string) (*models.User, error)
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `
INSERT INTO users (id, full_name, email, profile_pic, native_language, learning_language, bio, created_at)
VALUES (:id, :full_name, :email, :profile_pic, :native_language, :learning_language, :bio, :created_at)
`, user)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(`SELECT `+userColumns("u")+` FROM users u WHERE u.id=?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE id=?)`), id); err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.User, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
UPDATE users SET full_name=?, bio=?, native_language=?, learning_language=?
WHERE id=?
`), update.FullName, update.Bio, update.NativeLanguage, update.LearningLanguage, id)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if err := expectRow(res); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *userRepository) SetProfilePic(ctx context.Context, id, url string) (*models.User, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET profile_pic=? WHERE id=?`), url, id)
	if err != nil {
		return nil, fmt.Errorf("update profile picture: %w", err)
	}
	if err := expectRow(res); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func expectRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
