package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fthabet1/Kaizen-sub000/internal/apperr"
	"github.com/fthabet1/Kaizen-sub000/pkg/models"
)

// UserStore provides user account operations.
type UserStore struct {
	store *Store
}

// NewUserStore creates a new user store.
func NewUserStore(store *Store) *UserStore {
	return &UserStore{store: store}
}

// Create inserts a new user. A duplicate email maps to ErrConflict.
func (s *UserStore) Create(ctx context.Context, email, passwordHash, displayName string) (*models.User, error) {
	row := User{Email: email, PasswordHash: passwordHash, DisplayName: displayName}
	if err := s.store.DB.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: email already registered", apperr.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return row.toModel(), nil
}

// GetByEmail fetches a user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var row User
	err := s.store.DB.WithContext(ctx).Where("email = ?", email).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("user %s", email)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.toModel(), nil
}

// GetByID fetches a user by id.
func (s *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var row User
	err := s.store.DB.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("user %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.toModel(), nil
}
