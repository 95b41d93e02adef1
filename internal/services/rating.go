package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"watch-match-backend/internal/models"
	"watch-match-backend/internal/repository"
)

const (
	minRating = 0
	maxRating = 10
)

// RatingService handles personal ratings and the activity feed
type RatingService struct {
	ratingRepo *repository.RatingRepository
	userRepo   *repository.UserRepository
}

// NewRatingService creates a new rating service
func NewRatingService(ratingRepo *repository.RatingRepository, userRepo *repository.UserRepository) *RatingService {
	return &RatingService{
		ratingRepo: ratingRepo,
		userRepo:   userRepo,
	}
}

// Rate stores the user's rating and records it in their feed
func (s *RatingService) Rate(ctx context.Context, userID string, item models.CandidateItem, rating int) (*models.Rating, error) {
	ref, err := normalizeItem(item.ItemRef)
	if err != nil {
		return nil, err
	}
	item.ItemRef = ref
	if rating < minRating || rating > maxRating {
		return nil, invalid("rating must be between %d and %d", minRating, maxRating)
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, classify("user "+userID, err)
	}

	r := models.Rating{Item: item.ItemRef, Rating: rating, RatedAt: time.Now().UTC()}
	if err := s.ratingRepo.Set(ctx, userID, r); err != nil {
		return nil, classify("save rating", err)
	}

	activity := models.Activity{
		UserID:    userID,
		UserName:  user.Name,
		Action:    models.ActivityRated,
		Item:      item,
		Rating:    &rating,
		Timestamp: r.RatedAt,
	}
	if err := s.ratingRepo.PrependActivity(ctx, userID, activity); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to record rating activity")
	}
	return &r, nil
}

// ListRatings returns all of a user's ratings
func (s *RatingService) ListRatings(ctx context.Context, userID string) ([]models.Rating, error) {
	ratings, err := s.ratingRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, classify("list ratings", err)
	}
	return ratings, nil
}

// Feed returns the user's most recent activity, newest first
func (s *RatingService) Feed(ctx context.Context, userID string) ([]models.Activity, error) {
	feed, err := s.ratingRepo.Feed(ctx, userID)
	if err != nil {
		return nil, classify("load feed", err)
	}
	return feed, nil
}
