package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"watch-match-backend/internal/kv"
	"watch-match-backend/internal/metrics"
	"watch-match-backend/internal/models"
	"watch-match-backend/internal/repository"
)

// maxSwipeAttempts bounds compare-and-swap retries on a contended swipe record
const maxSwipeAttempts = 5

// MatchNotifier is told once about every newly created match
type MatchNotifier interface {
	NotifyMatch(ctx context.Context, group *models.Group, match models.Match)
}

// ReactionInput is a normalised reaction submitted by a group member
type ReactionInput struct {
	GroupID       string
	Item          models.ItemRef
	MemberID      string
	Reaction      models.Reaction
	WatchedStatus models.WatchedStatus
	ServiceID     *int
}

// ReactionResult is the outcome of RecordReaction
type ReactionResult struct {
	Swipes *models.SwipeRecord `json:"swipes"`
	// Matched is true only on the call that created the match
	Matched bool          `json:"matched"`
	Match   *models.Match `json:"match,omitempty"`
}

// SwipeState is the current swipe record plus whether the item already matched
type SwipeState struct {
	Swipes  *models.SwipeRecord `json:"swipes"`
	Matched bool                `json:"matched"`
}

// MatchService records reactions and decides when an item becomes a group match
type MatchService struct {
	groupRepo *repository.GroupRepository
	swipeRepo *repository.SwipeRepository
	matchRepo *repository.MatchRepository
	queueRepo *repository.QueueRepository
	notifier  MatchNotifier
	locks     *keyedMutex
	now       func() time.Time
}

// NewMatchService creates a new match service. notifier may be nil.
func NewMatchService(
	groupRepo *repository.GroupRepository,
	swipeRepo *repository.SwipeRepository,
	matchRepo *repository.MatchRepository,
	queueRepo *repository.QueueRepository,
	notifier MatchNotifier,
) *MatchService {
	return &MatchService{
		groupRepo: groupRepo,
		swipeRepo: swipeRepo,
		matchRepo: matchRepo,
		queueRepo: queueRepo,
		notifier:  notifier,
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

// RecordReaction stores a member's reaction and creates the group match when
// every member has reacted positively. A match is never revoked or duplicated.
func (s *MatchService) RecordReaction(ctx context.Context, in ReactionInput) (*ReactionResult, error) {
	if !in.Reaction.Valid() {
		return nil, ErrInvalidReaction
	}
	item, err := normalizeItem(in.Item)
	if err != nil {
		return nil, err
	}
	in.Item = item
	if in.MemberID == "" {
		return nil, invalid("member id is required")
	}
	if in.WatchedStatus == "" {
		in.WatchedStatus = models.WatchedNotSeen
	}

	group, err := s.groupRepo.GetByID(ctx, in.GroupID)
	if err != nil {
		return nil, classify("group "+in.GroupID, err)
	}

	result, err := s.applyReaction(ctx, group, in)
	if err != nil {
		return nil, err
	}
	if result.Matched && s.notifier != nil {
		s.notifier.NotifyMatch(ctx, group, *result.Match)
	}
	return result, nil
}

// applyReaction holds the per-item lock for the swipe write and the match
// append only; notifications run after it is released.
func (s *MatchService) applyReaction(ctx context.Context, group *models.Group, in ReactionInput) (*ReactionResult, error) {
	unlock := s.locks.Lock(swipeLockKey(in.GroupID, in.Item))
	defer unlock()

	record, err := s.writeReaction(ctx, in)
	if err != nil {
		return nil, err
	}
	metrics.ReactionsRecorded.WithLabelValues(string(in.Reaction)).Inc()

	result := &ReactionResult{Swipes: record}
	if !record.CoversAll(group.Members) {
		return result, nil
	}

	match := models.Match{
		Item:      in.Item,
		MatchedAt: s.now().UTC(),
		Reactors:  record.Snapshot(),
	}
	if queued, err := s.queueRepo.Find(ctx, in.GroupID, in.Item); err == nil && queued != nil {
		match.Title = queued.Title
		match.Poster = queued.Poster
	}

	appended, err := s.matchRepo.AppendIfAbsent(ctx, in.GroupID, match)
	if err != nil {
		return nil, classify("append match", err)
	}
	if !appended {
		return result, nil
	}

	metrics.MatchesCreated.Inc()
	log.Info().
		Str("group_id", in.GroupID).
		Int64("item_id", in.Item.ID).
		Str("item_type", string(in.Item.Kind)).
		Msg("Group match created")

	result.Matched = true
	result.Match = &match
	return result, nil
}

func swipeLockKey(groupID string, item models.ItemRef) string {
	return fmt.Sprintf("%s/%s/%d", groupID, item.Kind, item.ID)
}

// writeReaction replaces the member's entry and persists the record,
// re-reading it when another writer got there first.
func (s *MatchService) writeReaction(ctx context.Context, in ReactionInput) (*models.SwipeRecord, error) {
	for attempt := 1; ; attempt++ {
		record, err := s.swipeRepo.Get(ctx, in.GroupID, in.Item)
		if err != nil {
			return nil, classify("load swipe record", err)
		}

		now := s.now().UTC()
		delete(record.Reactors, in.MemberID)
		record.Reactors[in.MemberID] = models.ReactorEntry{
			Reaction:      in.Reaction,
			WatchedStatus: in.WatchedStatus,
			ServiceID:     in.ServiceID,
			ReactedAt:     now,
		}
		record.UpdatedAt = now

		err = s.swipeRepo.Save(ctx, record)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, kv.ErrConflict) {
			return nil, classify("save swipe record", err)
		}
		if attempt >= maxSwipeAttempts {
			return nil, fmt.Errorf("%w: save swipe record: %w", ErrStorage, err)
		}
		metrics.SwipeWriteRetries.Inc()
	}
}

// GetMatches returns a group's matches in creation order
func (s *MatchService) GetMatches(ctx context.Context, groupID string) ([]models.Match, error) {
	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		return nil, classify("group "+groupID, err)
	}
	matches, err := s.matchRepo.List(ctx, groupID)
	if err != nil {
		return nil, classify("list matches", err)
	}
	return matches, nil
}

// GetSwipeState returns the current swipe record for an item; an unswiped item yields an empty record
func (s *MatchService) GetSwipeState(ctx context.Context, groupID string, item models.ItemRef) (*SwipeState, error) {
	item, err := normalizeItem(item)
	if err != nil {
		return nil, err
	}
	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		return nil, classify("group "+groupID, err)
	}

	record, err := s.swipeRepo.Get(ctx, groupID, item)
	if err != nil {
		return nil, classify("load swipe record", err)
	}
	matched, err := s.matchRepo.Exists(ctx, groupID, item)
	if err != nil {
		return nil, classify("list matches", err)
	}
	return &SwipeState{Swipes: record, Matched: matched}, nil
}

// normalizeItem validates an item reference and canonicalises its kind
func normalizeItem(item models.ItemRef) (models.ItemRef, error) {
	if item.ID <= 0 {
		return item, invalid("item id must be positive")
	}
	kind, ok := models.ParseMediaKind(string(item.Kind))
	if !ok {
		return item, invalid("unknown item type %q", item.Kind)
	}
	item.Kind = kind
	return item, nil
}
