package repository

import (
	"context"
	"errors"
	"fmt"

	"watch-match-backend/internal/kv"
	"watch-match-backend/internal/models"
)

// SwipeRepository handles storage of per-item swipe records
type SwipeRepository struct {
	store kv.Store
}

// NewSwipeRepository creates a new swipe repository
func NewSwipeRepository(store kv.Store) *SwipeRepository {
	return &SwipeRepository{store: store}
}

// Get loads the swipe record for an item, returning an empty record when none exists
func (r *SwipeRepository) Get(ctx context.Context, groupID string, item models.ItemRef) (*models.SwipeRecord, error) {
	var record models.SwipeRecord
	version, err := getJSON(ctx, r.store, swipeKey(groupID, string(item.Kind), item.ID), &record)
	if errors.Is(err, kv.ErrNotFound) {
		return models.NewSwipeRecord(groupID, item), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get swipe record: %w", err)
	}

	// Legacy records carry neither group nor item.
	record.GroupID = groupID
	record.Item = item
	record.Version = version
	return &record, nil
}

// Save writes the record if nobody else wrote it since it was loaded.
// Returns kv.ErrConflict otherwise; on success record.Version is updated.
func (r *SwipeRepository) Save(ctx context.Context, record *models.SwipeRecord) error {
	key := swipeKey(record.GroupID, string(record.Item.Kind), record.Item.ID)
	version, err := casJSON(ctx, r.store, key, record, record.Version)
	if err != nil {
		if errors.Is(err, kv.ErrConflict) {
			return err
		}
		return fmt.Errorf("failed to save swipe record: %w", err)
	}
	record.Version = version
	return nil
}
