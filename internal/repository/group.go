package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"watch-match-backend/internal/kv"
	"watch-match-backend/internal/models"
)

// GroupRepository handles storage operations for groups and the per-user group index
type GroupRepository struct {
	store kv.Store
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(store kv.Store) *GroupRepository {
	return &GroupRepository{store: store}
}

// Create stores a group and adds it to each member's group list
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	if err := putJSON(ctx, r.store, groupKey(group.ID), group); err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	for _, memberID := range group.Members {
		_, err := update(ctx, r.store, userGroupsKey(memberID), func(ids *[]string) (bool, error) {
			for _, id := range *ids {
				if id == group.ID {
					return false, nil
				}
			}
			*ids = append(*ids, group.ID)
			return true, nil
		})
		if err != nil {
			return fmt.Errorf("failed to index group for member %s: %w", memberID, err)
		}
	}
	return nil
}

// GetByID retrieves a group by ID
func (r *GroupRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	if _, err := getJSON(ctx, r.store, groupKey(id), &group); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("group not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &group, nil
}

// ListByUserID retrieves every group the user belongs to, in join order
func (r *GroupRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Group, error) {
	var ids []string
	if _, err := getJSON(ctx, r.store, userGroupsKey(userID), &ids); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return []*models.Group{}, nil
		}
		return nil, fmt.Errorf("failed to get user groups: %w", err)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = groupKey(id)
	}
	entries, err := r.store.MGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to get groups: %w", err)
	}

	groups := make([]*models.Group, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		var group models.Group
		if err := json.Unmarshal(e.Value, &group); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", e.Key, err)
		}
		groups = append(groups, &group)
	}
	return groups, nil
}
