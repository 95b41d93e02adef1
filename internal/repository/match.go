package repository

import (
	"context"
	"errors"
	"fmt"

	"watch-match-backend/internal/kv"
	"watch-match-backend/internal/models"
)

// MatchRepository handles the append-only match list of each group
type MatchRepository struct {
	store kv.Store
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(store kv.Store) *MatchRepository {
	return &MatchRepository{store: store}
}

// List returns a group's matches in creation order
func (r *MatchRepository) List(ctx context.Context, groupID string) ([]models.Match, error) {
	var matches []models.Match
	if _, err := getJSON(ctx, r.store, groupMatchesKey(groupID), &matches); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return []models.Match{}, nil
		}
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	return matches, nil
}

// AppendIfAbsent adds match unless one already exists for the same item.
// Reports whether the match was appended by this call.
func (r *MatchRepository) AppendIfAbsent(ctx context.Context, groupID string, match models.Match) (bool, error) {
	appended := false
	_, err := update(ctx, r.store, groupMatchesKey(groupID), func(matches *[]models.Match) (bool, error) {
		appended = false
		for _, m := range *matches {
			if m.Item == match.Item {
				return false, nil
			}
		}
		*matches = append(*matches, match)
		appended = true
		return true, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to append match: %w", err)
	}
	return appended, nil
}

// Exists reports whether a match was already recorded for item
func (r *MatchRepository) Exists(ctx context.Context, groupID string, item models.ItemRef) (bool, error) {
	matches, err := r.List(ctx, groupID)
	if err != nil {
		return false, err
	}
	for _, m := range matches {
		if m.Item == item {
			return true, nil
		}
	}
	return false, nil
}
