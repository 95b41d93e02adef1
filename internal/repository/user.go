package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"watch-match-backend/internal/kv"
	"watch-match-backend/internal/models"
)

// ErrCodeTaken is returned when a friend code is already assigned
var ErrCodeTaken = errors.New("code already taken")

// UserRepository handles storage operations for users
type UserRepository struct {
	store kv.Store
}

// NewUserRepository creates a new user repository
func NewUserRepository(store kv.Store) *UserRepository {
	return &UserRepository{store: store}
}

// Create stores a new user and claims its friend code
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	_, err := casJSON(ctx, r.store, userCodeKey(user.Code), user.ID, 0)
	if errors.Is(err, kv.ErrConflict) {
		return ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("failed to claim code: %w", err)
	}

	if err := putJSON(ctx, r.store, userKey(user.ID), user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if _, err := getJSON(ctx, r.store, userKey(id), &user); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByCode retrieves a user by friend code
func (r *UserRepository) GetByCode(ctx context.Context, code string) (*models.User, error) {
	var userID string
	if _, err := getJSON(ctx, r.store, userCodeKey(code), &userID); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get user by code: %w", err)
	}
	return r.GetByID(ctx, userID)
}

// CodeExists checks if a code already exists
func (r *UserRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	_, err := r.store.Get(ctx, userCodeKey(code))
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check code existence: %w", err)
	}
	return true, nil
}

// GetMany retrieves users in the order of ids, skipping unknown ones
func (r *UserRepository) GetMany(ctx context.Context, ids []string) ([]*models.User, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userKey(id)
	}

	entries, err := r.store.MGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	users := make([]*models.User, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		var user models.User
		if err := json.Unmarshal(e.Value, &user); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", e.Key, err)
		}
		users = append(users, &user)
	}
	return users, nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	_, err := update(ctx, r.store, userKey(userID), func(user *models.User) (bool, error) {
		if user.ID == "" {
			return false, fmt.Errorf("user not found: %w", kv.ErrNotFound)
		}
		user.PushToken = pushToken
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}
