package repository

import (
	"context"
	"errors"
	"fmt"

	"watch-match-backend/internal/kv"
	"watch-match-backend/internal/models"
)

// QueueRepository handles each group's shared candidate queue
type QueueRepository struct {
	store kv.Store
}

// NewQueueRepository creates a new queue repository
func NewQueueRepository(store kv.Store) *QueueRepository {
	return &QueueRepository{store: store}
}

// List returns the queue in insertion order
func (r *QueueRepository) List(ctx context.Context, groupID string) ([]models.CandidateItem, error) {
	var queue []models.CandidateItem
	if _, err := getJSON(ctx, r.store, groupQueueKey(groupID), &queue); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return []models.CandidateItem{}, nil
		}
		return nil, fmt.Errorf("failed to get queue: %w", err)
	}
	return queue, nil
}

// Add appends item unless the same (id, kind) is queued already.
// Returns the resulting queue and whether the item was already present.
func (r *QueueRepository) Add(ctx context.Context, groupID string, item models.CandidateItem) ([]models.CandidateItem, bool, error) {
	exists := false
	queue, err := update(ctx, r.store, groupQueueKey(groupID), func(queue *[]models.CandidateItem) (bool, error) {
		exists = false
		for _, q := range *queue {
			if q.ItemRef == item.ItemRef {
				exists = true
				return false, nil
			}
		}
		*queue = append(*queue, item)
		return true, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to add to queue: %w", err)
	}
	if queue == nil {
		queue = []models.CandidateItem{}
	}
	return queue, exists, nil
}

// Find returns the queued item for ref, if any
func (r *QueueRepository) Find(ctx context.Context, groupID string, ref models.ItemRef) (*models.CandidateItem, error) {
	queue, err := r.List(ctx, groupID)
	if err != nil {
		return nil, err
	}
	for i := range queue {
		if queue[i].ItemRef == ref {
			return &queue[i], nil
		}
	}
	return nil, nil
}
