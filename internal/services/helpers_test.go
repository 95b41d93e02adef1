package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"watch-match-backend/internal/kv"
	"watch-match-backend/internal/models"
	"watch-match-backend/internal/repository"
)

const testSecret = "test-secret-0123456789"

type recordingNotifier struct {
	mu      sync.Mutex
	matches []models.Match
	queued  []models.CandidateItem
}

func (n *recordingNotifier) NotifyMatch(_ context.Context, _ *models.Group, match models.Match) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.matches = append(n.matches, match)
}

func (n *recordingNotifier) NotifyQueueUpdated(_ context.Context, _ *models.Group, item models.CandidateItem) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queued = append(n.queued, item)
}

func (n *recordingNotifier) matchCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.matches)
}

type testEnv struct {
	store      kv.Store
	userRepo   *repository.UserRepository
	groupRepo  *repository.GroupRepository
	queueRepo  *repository.QueueRepository
	swipeRepo  *repository.SwipeRepository
	matchRepo  *repository.MatchRepository
	ratingRepo *repository.RatingRepository

	users    *UserService
	groups   *GroupService
	matches  *MatchService
	queue    *QueueService
	ratings  *RatingService
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T, store kv.Store) *testEnv {
	t.Helper()
	if store == nil {
		store = kv.NewMemoryStore()
	}

	e := &testEnv{
		store:      store,
		userRepo:   repository.NewUserRepository(store),
		groupRepo:  repository.NewGroupRepository(store),
		queueRepo:  repository.NewQueueRepository(store),
		swipeRepo:  repository.NewSwipeRepository(store),
		matchRepo:  repository.NewMatchRepository(store),
		ratingRepo: repository.NewRatingRepository(store),
		notifier:   &recordingNotifier{},
	}
	e.users = NewUserService(e.userRepo, testSecret, 30)
	e.groups = NewGroupService(e.groupRepo, e.userRepo)
	e.matches = NewMatchService(e.groupRepo, e.swipeRepo, e.matchRepo, e.queueRepo, e.notifier)
	e.queue = NewQueueService(e.groupRepo, e.queueRepo, e.userRepo, e.ratingRepo, nil, e.notifier)
	e.ratings = NewRatingService(e.ratingRepo, e.userRepo)
	return e
}

func (e *testEnv) createUsers(t *testing.T, n int) []*models.User {
	t.Helper()
	users := make([]*models.User, n)
	for i := range users {
		u, err := e.users.CreateUser(context.Background(), fmt.Sprintf("user-%d", i))
		if err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}
		users[i] = u
	}
	return users
}

// createGroup makes a group of n fresh users and returns it with its member IDs
func (e *testEnv) createGroup(t *testing.T, n int) (*models.GroupWithMembers, []string) {
	t.Helper()
	users := e.createUsers(t, n)
	ids := make([]string, 0, n-1)
	for _, u := range users[1:] {
		ids = append(ids, u.ID)
	}
	g, err := e.groups.CreateGroup(context.Background(), users[0].ID, "movie night", ids, nil)
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	return g, g.Members
}

func (e *testEnv) react(t *testing.T, groupID, memberID string, item models.ItemRef, r models.Reaction) *ReactionResult {
	t.Helper()
	res, err := e.matches.RecordReaction(context.Background(), ReactionInput{
		GroupID:  groupID,
		Item:     item,
		MemberID: memberID,
		Reaction: r,
	})
	if err != nil {
		t.Fatalf("RecordReaction(%s, %s) error = %v", memberID, r, err)
	}
	return res
}
