package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"watch-match-backend/internal/kv"
	"watch-match-backend/internal/models"
)

// feedLimit is how many activities a user's feed keeps
const feedLimit = 100

// RatingRepository handles personal ratings and the activity feed
type RatingRepository struct {
	store kv.Store
}

// NewRatingRepository creates a new rating repository
func NewRatingRepository(store kv.Store) *RatingRepository {
	return &RatingRepository{store: store}
}

// Set stores (or replaces) a user's rating for an item
func (r *RatingRepository) Set(ctx context.Context, userID string, rating models.Rating) error {
	key := ratingKey(userID, string(rating.Item.Kind), rating.Item.ID)
	if err := putJSON(ctx, r.store, key, rating); err != nil {
		return fmt.Errorf("failed to save rating: %w", err)
	}
	return nil
}

// ListByUserID returns all of a user's ratings
func (r *RatingRepository) ListByUserID(ctx context.Context, userID string) ([]models.Rating, error) {
	entries, err := r.store.Scan(ctx, ratingPrefix(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}

	ratings := make([]models.Rating, 0, len(entries))
	for _, e := range entries {
		var rating models.Rating
		if err := json.Unmarshal(e.Value, &rating); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", e.Key, err)
		}
		ratings = append(ratings, rating)
	}
	return ratings, nil
}

// PrependActivity adds an activity at the head of the feed, keeping the newest feedLimit
func (r *RatingRepository) PrependActivity(ctx context.Context, userID string, activity models.Activity) error {
	_, err := update(ctx, r.store, feedKey(userID), func(feed *[]models.Activity) (bool, error) {
		next := make([]models.Activity, 0, len(*feed)+1)
		next = append(next, activity)
		next = append(next, *feed...)
		if len(next) > feedLimit {
			next = next[:feedLimit]
		}
		*feed = next
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to add activity: %w", err)
	}
	return nil
}

// Feed returns the user's activity, newest first
func (r *RatingRepository) Feed(ctx context.Context, userID string) ([]models.Activity, error) {
	var feed []models.Activity
	if _, err := getJSON(ctx, r.store, feedKey(userID), &feed); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return []models.Activity{}, nil
		}
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return feed, nil
}
