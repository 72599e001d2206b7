package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-postboard/internal/domain"
)

// CreateUser inserts a user. Unique violations surface as ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, username, email, passwordHash string) (*domain.User, error) {
	u := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by id, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return firstUser(ctx, db, "id = ?", id)
}

// GetUserByUsername fetches a user by exact username, or ErrNotFound.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	return firstUser(ctx, db, "username = ?", username)
}

// UsernameTaken reports whether username is already registered.
func UsernameTaken(ctx context.Context, db *gorm.DB, username string) (bool, error) {
	return exists(ctx, db, "username = ?", username)
}

// EmailTaken reports whether email is already registered.
func EmailTaken(ctx context.Context, db *gorm.DB, email string) (bool, error) {
	return exists(ctx, db, "email = ?", email)
}

func firstUser(ctx context.Context, db *gorm.DB, cond string, arg any) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where(cond, arg).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func exists(ctx context.Context, db *gorm.DB, cond string, arg any) (bool, error) {
	var u domain.User
	err := db.WithContext(ctx).Select("id").Where(cond, arg).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}
