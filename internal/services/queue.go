package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"watch-match-backend/internal/catalog"
	"watch-match-backend/internal/metrics"
	"watch-match-backend/internal/models"
	"watch-match-backend/internal/repository"
)

// TitleLookup resolves catalog metadata for an item
type TitleLookup interface {
	Details(ctx context.Context, kind models.MediaKind, id int64) (*catalog.Title, error)
}

// QueueNotifier is told when a group's candidate queue grows
type QueueNotifier interface {
	NotifyQueueUpdated(ctx context.Context, group *models.Group, item models.CandidateItem)
}

// QueueService manages a group's candidate queue
type QueueService struct {
	groupRepo  *repository.GroupRepository
	queueRepo  *repository.QueueRepository
	userRepo   *repository.UserRepository
	ratingRepo *repository.RatingRepository
	titles     TitleLookup
	notifier   QueueNotifier
}

// NewQueueService creates a new queue service. titles and notifier may be nil.
func NewQueueService(
	groupRepo *repository.GroupRepository,
	queueRepo *repository.QueueRepository,
	userRepo *repository.UserRepository,
	ratingRepo *repository.RatingRepository,
	titles TitleLookup,
	notifier QueueNotifier,
) *QueueService {
	return &QueueService{
		groupRepo:  groupRepo,
		queueRepo:  queueRepo,
		userRepo:   userRepo,
		ratingRepo: ratingRepo,
		titles:     titles,
		notifier:   notifier,
	}
}

// GetQueue returns the group's queue in insertion order
func (s *QueueService) GetQueue(ctx context.Context, groupID string) ([]models.CandidateItem, error) {
	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		return nil, classify("group "+groupID, err)
	}
	items, err := s.queueRepo.List(ctx, groupID)
	if err != nil {
		return nil, classify("list queue", err)
	}
	return items, nil
}

// AddToQueue appends an item unless it is already queued; the bool reports a duplicate
func (s *QueueService) AddToQueue(ctx context.Context, groupID, userID string, item models.CandidateItem) ([]models.CandidateItem, bool, error) {
	ref, err := normalizeItem(item.ItemRef)
	if err != nil {
		return nil, false, err
	}
	item.ItemRef = ref
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, false, classify("group "+groupID, err)
	}

	existing, err := s.queueRepo.Find(ctx, groupID, item.ItemRef)
	if err != nil {
		return nil, false, classify("find queued item", err)
	}
	if existing != nil {
		metrics.QueueAdditions.WithLabelValues("duplicate").Inc()
		items, err := s.queueRepo.List(ctx, groupID)
		if err != nil {
			return nil, false, classify("list queue", err)
		}
		return items, true, nil
	}

	s.enrich(ctx, &item)
	item.AddedBy = userID
	item.AddedAt = time.Now().UTC()

	items, duplicate, err := s.queueRepo.Add(ctx, groupID, item)
	if err != nil {
		return nil, false, classify("add to queue", err)
	}
	if duplicate {
		metrics.QueueAdditions.WithLabelValues("duplicate").Inc()
		return items, true, nil
	}
	metrics.QueueAdditions.WithLabelValues("added").Inc()

	s.recordActivity(ctx, userID, item)
	if s.notifier != nil {
		s.notifier.NotifyQueueUpdated(ctx, group, item)
	}
	return items, false, nil
}

// enrich fills in missing title metadata; lookup failures leave the item as given
func (s *QueueService) enrich(ctx context.Context, item *models.CandidateItem) {
	if s.titles == nil || (item.Title != "" && item.Poster != "") {
		return
	}
	title, err := s.titles.Details(ctx, item.Kind, item.ID)
	if err != nil {
		log.Warn().Err(err).Int64("item_id", item.ID).Msg("Failed to enrich queued item")
		return
	}
	if item.Title == "" {
		item.Title = title.Title
	}
	if item.Poster == "" {
		item.Poster = title.Poster
	}
	if item.Overview == "" {
		item.Overview = title.Overview
	}
}

func (s *QueueService) recordActivity(ctx context.Context, userID string, item models.CandidateItem) {
	activity := models.Activity{
		UserID:    userID,
		Action:    models.ActivityAdded,
		Item:      item,
		Timestamp: item.AddedAt,
	}
	if user, err := s.userRepo.GetByID(ctx, userID); err == nil {
		activity.UserName = user.Name
	}
	if err := s.ratingRepo.PrependActivity(ctx, userID, activity); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to record queue activity")
	}
}
