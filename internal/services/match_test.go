package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"watch-match-backend/internal/kv"
	"watch-match-backend/internal/models"
)

var movie = models.ItemRef{ID: 603, Kind: models.MediaMovie}

func TestRecordReaction_AllPositiveMatches(t *testing.T) {
	env := newTestEnv(t, nil)
	g, members := env.createGroup(t, 3)

	if res := env.react(t, g.ID, members[0], movie, models.ReactionPositive); res.Matched {
		t.Fatal("matched after one of three reactions")
	}
	if res := env.react(t, g.ID, members[1], movie, models.ReactionStrongPositive); res.Matched {
		t.Fatal("matched after two of three reactions")
	}
	res := env.react(t, g.ID, members[2], movie, models.ReactionPositive)
	if !res.Matched || res.Match == nil {
		t.Fatal("expected match once every member reacted positively")
	}
	if len(res.Match.Reactors) != 3 {
		t.Errorf("match reactors = %d, want 3", len(res.Match.Reactors))
	}

	matches, err := env.matches.GetMatches(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("GetMatches() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Item != movie {
		t.Fatalf("matches = %+v, want one for %v", matches, movie)
	}
	if env.notifier.matchCount() != 1 {
		t.Errorf("notifications = %d, want 1", env.notifier.matchCount())
	}
}

func TestRecordReaction_NegativeBlocksMatch(t *testing.T) {
	env := newTestEnv(t, nil)
	g, members := env.createGroup(t, 2)

	env.react(t, g.ID, members[0], movie, models.ReactionPositive)
	if res := env.react(t, g.ID, members[1], movie, models.ReactionNegative); res.Matched {
		t.Fatal("matched with a negative reaction")
	}

	// changing one's mind is last-write-wins
	res := env.react(t, g.ID, members[1], movie, models.ReactionPositive)
	if !res.Matched {
		t.Fatal("expected match after the negative reaction was replaced")
	}
	if got := res.Swipes.Reactors[members[1]].Reaction; got != models.ReactionPositive {
		t.Errorf("member reaction = %q, want positive", got)
	}
	if len(res.Swipes.Reactors) != 2 {
		t.Errorf("reactors = %d, want 2", len(res.Swipes.Reactors))
	}
}

func TestRecordReaction_MatchIsTerminal(t *testing.T) {
	env := newTestEnv(t, nil)
	g, members := env.createGroup(t, 2)

	env.react(t, g.ID, members[0], movie, models.ReactionPositive)
	env.react(t, g.ID, members[1], movie, models.ReactionPositive)

	res := env.react(t, g.ID, members[1], movie, models.ReactionNegative)
	if res.Matched {
		t.Error("a later reaction reported a new match")
	}
	res = env.react(t, g.ID, members[1], movie, models.ReactionStrongPositive)
	if res.Matched {
		t.Error("re-reaching all-positive created a second match")
	}

	matches, _ := env.matches.GetMatches(context.Background(), g.ID)
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	if env.notifier.matchCount() != 1 {
		t.Errorf("notifications = %d, want 1", env.notifier.matchCount())
	}

	state, err := env.matches.GetSwipeState(context.Background(), g.ID, movie)
	if err != nil {
		t.Fatalf("GetSwipeState() error = %v", err)
	}
	if !state.Matched {
		t.Error("GetSwipeState().Matched = false after match")
	}
}

func TestRecordReaction_OrderIndependent(t *testing.T) {
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}}
	for _, order := range orders {
		env := newTestEnv(t, nil)
		g, members := env.createGroup(t, 3)
		reactions := []models.Reaction{models.ReactionPositive, models.ReactionStrongPositive, models.ReactionPositive}

		matched := 0
		for _, i := range order {
			if env.react(t, g.ID, members[i], movie, reactions[i]).Matched {
				matched++
			}
		}
		if matched != 1 {
			t.Errorf("order %v: matched %d times, want 1", order, matched)
		}
	}
}

func TestRecordReaction_SingleMemberGroup(t *testing.T) {
	env := newTestEnv(t, nil)
	g, members := env.createGroup(t, 1)

	if !env.react(t, g.ID, members[0], movie, models.ReactionPositive).Matched {
		t.Error("single-member group should match on its only positive reaction")
	}
}

func TestRecordReaction_ItemsAreIndependent(t *testing.T) {
	env := newTestEnv(t, nil)
	g, members := env.createGroup(t, 2)
	series := models.ItemRef{ID: 603, Kind: models.MediaTV}

	env.react(t, g.ID, members[0], movie, models.ReactionPositive)
	if env.react(t, g.ID, members[1], series, models.ReactionPositive).Matched {
		t.Fatal("reactions on a tv item with the same id combined with the movie")
	}
}

func TestRecordReaction_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	g, members := env.createGroup(t, 2)
	ctx := context.Background()

	_, err := env.matches.RecordReaction(ctx, ReactionInput{GroupID: g.ID, Item: movie, MemberID: members[0], Reaction: "meh"})
	if !errors.Is(err, ErrInvalidReaction) || !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown reaction error = %v, want ErrInvalidReaction", err)
	}

	_, err = env.matches.RecordReaction(ctx, ReactionInput{GroupID: g.ID, Item: models.ItemRef{ID: 0, Kind: models.MediaMovie}, MemberID: members[0], Reaction: models.ReactionPositive})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero item id error = %v, want ErrInvalidInput", err)
	}

	_, err = env.matches.RecordReaction(ctx, ReactionInput{GroupID: "no-such-group", Item: movie, MemberID: members[0], Reaction: models.ReactionPositive})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing group error = %v, want ErrNotFound", err)
	}

	// nothing was written for the rejected reactions
	state, err := env.matches.GetSwipeState(ctx, g.ID, movie)
	if err != nil {
		t.Fatalf("GetSwipeState() error = %v", err)
	}
	if len(state.Swipes.Reactors) != 0 {
		t.Errorf("reactors = %d, want 0", len(state.Swipes.Reactors))
	}
}

func TestRecordReaction_SeriesAliasNormalised(t *testing.T) {
	env := newTestEnv(t, nil)
	g, members := env.createGroup(t, 2)

	env.react(t, g.ID, members[0], models.ItemRef{ID: 1399, Kind: "series"}, models.ReactionPositive)
	res := env.react(t, g.ID, members[1], models.ItemRef{ID: 1399, Kind: models.MediaTV}, models.ReactionPositive)
	if !res.Matched {
		t.Error("series and tv reactions should land on the same record")
	}
}

func TestRecordReaction_MetadataKept(t *testing.T) {
	env := newTestEnv(t, nil)
	g, members := env.createGroup(t, 2)
	sid := 337

	res, err := env.matches.RecordReaction(context.Background(), ReactionInput{
		GroupID:       g.ID,
		Item:          movie,
		MemberID:      members[0],
		Reaction:      models.ReactionNegative,
		WatchedStatus: models.WatchedAlready,
		ServiceID:     &sid,
	})
	if err != nil {
		t.Fatalf("RecordReaction() error = %v", err)
	}
	e := res.Swipes.Reactors[members[0]]
	if e.WatchedStatus != models.WatchedAlready || e.ServiceID == nil || *e.ServiceID != sid {
		t.Errorf("entry = %+v", e)
	}

	// default watched status
	res = env.react(t, g.ID, members[1], movie, models.ReactionPositive)
	if got := res.Swipes.Reactors[members[1]].WatchedStatus; got != models.WatchedNotSeen {
		t.Errorf("default watched status = %q, want not_seen", got)
	}
}

func TestRecordReaction_MatchCarriesQueuedTitle(t *testing.T) {
	env := newTestEnv(t, nil)
	g, members := env.createGroup(t, 2)
	ctx := context.Background()

	item := models.CandidateItem{ItemRef: movie, Title: "The Matrix", Poster: "https://img/m.jpg"}
	if _, _, err := env.queue.AddToQueue(ctx, g.ID, members[0], item); err != nil {
		t.Fatalf("AddToQueue() error = %v", err)
	}

	env.react(t, g.ID, members[0], movie, models.ReactionPositive)
	res := env.react(t, g.ID, members[1], movie, models.ReactionPositive)
	if res.Match == nil || res.Match.Title != "The Matrix" || res.Match.Poster != "https://img/m.jpg" {
		t.Errorf("match = %+v", res.Match)
	}
}

func TestRecordReaction_ConcurrentMembers(t *testing.T) {
	env := newTestEnv(t, nil)
	g, members := env.createGroup(t, 12)

	var (
		wg      sync.WaitGroup
		matched atomic.Int32
	)
	for _, m := range members {
		wg.Add(1)
		go func(memberID string) {
			defer wg.Done()
			res, err := env.matches.RecordReaction(context.Background(), ReactionInput{
				GroupID: g.ID, Item: movie, MemberID: memberID, Reaction: models.ReactionPositive,
			})
			if err != nil {
				t.Errorf("RecordReaction() error = %v", err)
				return
			}
			if res.Matched {
				matched.Add(1)
			}
		}(m)
	}
	wg.Wait()

	if matched.Load() != 1 {
		t.Errorf("matched = %d, want exactly 1", matched.Load())
	}
	state, _ := env.matches.GetSwipeState(context.Background(), g.ID, movie)
	if len(state.Swipes.Reactors) != len(members) {
		t.Errorf("reactors = %d, want %d (lost update)", len(state.Swipes.Reactors), len(members))
	}
	if env.notifier.matchCount() != 1 {
		t.Errorf("notifications = %d, want 1", env.notifier.matchCount())
	}
}

// racingStore simulates another process writing the same swipe record
// between this process's read and its compare-and-swap.
type racingStore struct {
	kv.Store
	races   atomic.Int32
	racing  atomic.Bool
	compete func(ctx context.Context)
}

func (s *racingStore) CompareAndSwap(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	if strings.Contains(key, ":swipes:") && s.races.Load() > 0 && s.racing.CompareAndSwap(false, true) {
		s.races.Add(-1)
		s.compete(ctx)
		s.racing.Store(false)
	}
	return s.Store.CompareAndSwap(ctx, key, value, expected)
}

func TestRecordReaction_RetriesOnConflict(t *testing.T) {
	store := &racingStore{Store: kv.NewMemoryStore()}
	env := newTestEnv(t, store)
	g, members := env.createGroup(t, 2)

	// the other member's reaction lands from "another instance" mid-write
	store.compete = func(ctx context.Context) {
		rec, err := env.swipeRepo.Get(ctx, g.ID, movie)
		if err != nil {
			t.Errorf("Get() error = %v", err)
			return
		}
		rec.Reactors[members[1]] = models.ReactorEntry{Reaction: models.ReactionPositive, WatchedStatus: models.WatchedNotSeen}
		if err := env.swipeRepo.Save(ctx, rec); err != nil {
			t.Errorf("Save() error = %v", err)
		}
	}
	store.races.Store(1)

	res := env.react(t, g.ID, members[0], movie, models.ReactionPositive)
	if len(res.Swipes.Reactors) != 2 {
		t.Fatalf("reactors = %d, want 2 (competing write lost)", len(res.Swipes.Reactors))
	}
	if !res.Matched {
		t.Error("expected the retry to observe the competing positive reaction and match")
	}
}

func TestRecordReaction_GivesUpAfterMaxAttempts(t *testing.T) {
	store := &racingStore{Store: kv.NewMemoryStore()}
	env := newTestEnv(t, store)
	g, members := env.createGroup(t, 2)

	store.compete = func(ctx context.Context) {
		rec, _ := env.swipeRepo.Get(ctx, g.ID, movie)
		rec.Reactors[members[1]] = models.ReactorEntry{Reaction: models.ReactionNegative}
		_ = env.swipeRepo.Save(ctx, rec)
	}
	store.races.Store(maxSwipeAttempts + 10)

	_, err := env.matches.RecordReaction(context.Background(), ReactionInput{
		GroupID: g.ID, Item: movie, MemberID: members[0], Reaction: models.ReactionPositive,
	})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("RecordReaction() error = %v, want ErrStorage", err)
	}
}

func TestRecordReaction_UpgradesLegacyRecord(t *testing.T) {
	env := newTestEnv(t, nil)
	g, members := env.createGroup(t, 2)
	ctx := context.Background()

	legacy := `{"likes":["` + members[1] + `"],"passes":[]}`
	key := "group:" + g.ID + ":swipes:movie:603"
	if err := env.store.Set(ctx, key, []byte(legacy)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	res := env.react(t, g.ID, members[0], movie, models.ReactionPositive)
	if !res.Matched {
		t.Error("legacy like plus a new positive reaction should match")
	}
}

func TestRecordReaction_LegacyMatchIsNotDuplicated(t *testing.T) {
	env := newTestEnv(t, nil)
	g, members := env.createGroup(t, 2)
	ctx := context.Background()

	matchesKey := "group:" + g.ID + ":matches"
	legacyMatches := `[{"id":603,"type":"movie","matchedAt":"2024-01-01T00:00:00.000Z"}]`
	if err := env.store.Set(ctx, matchesKey, []byte(legacyMatches)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	legacySwipes := `{"likes":["` + members[0] + `","` + members[1] + `"],"passes":[]}`
	if err := env.store.Set(ctx, "group:"+g.ID+":swipes:movie:603", []byte(legacySwipes)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	state, err := env.matches.GetSwipeState(ctx, g.ID, movie)
	if err != nil {
		t.Fatalf("GetSwipeState() error = %v", err)
	}
	if !state.Matched {
		t.Error("GetSwipeState().Matched = false for a previously matched item")
	}

	if res := env.react(t, g.ID, members[0], movie, models.ReactionStrongPositive); res.Matched {
		t.Error("re-reacting to a previously matched item reported a new match")
	}

	matches, err := env.matches.GetMatches(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetMatches() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Item != movie {
		t.Fatalf("matches = %+v, want the single existing match", matches)
	}
	if n := env.notifier.matchCount(); n != 0 {
		t.Errorf("notifications = %d, want 0", n)
	}
}

// addMember appends userID to a stored group, the way a migration or admin tool would
func (e *testEnv) addMember(t *testing.T, groupID, userID string) {
	t.Helper()
	ctx := context.Background()
	group, err := e.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	group.Members = append(group.Members, userID)
	raw, err := json.Marshal(group)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := e.store.Set(ctx, "group:"+groupID, raw); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
}

func TestRecordReaction_MemberAddedLater(t *testing.T) {
	env := newTestEnv(t, nil)
	g, members := env.createGroup(t, 2)
	newcomer := env.createUsers(t, 1)[0].ID
	ctx := context.Background()
	show := models.ItemRef{ID: 1399, Kind: models.MediaTV}

	// Full coverage before the new member joins: the match exists and must survive.
	env.react(t, g.ID, members[0], movie, models.ReactionPositive)
	if res := env.react(t, g.ID, members[1], movie, models.ReactionPositive); !res.Matched {
		t.Fatal("expected a match for the two original members")
	}
	// Partial coverage before the new member joins.
	env.react(t, g.ID, members[0], show, models.ReactionPositive)

	env.addMember(t, g.ID, newcomer)

	state, err := env.matches.GetSwipeState(ctx, g.ID, show)
	if err != nil {
		t.Fatalf("GetSwipeState() error = %v", err)
	}
	if state.Matched {
		t.Fatal("growing the group created a match after the fact")
	}
	if res := env.react(t, g.ID, members[1], show, models.ReactionPositive); res.Matched {
		t.Fatal("matched before the new member reacted")
	}
	if res := env.react(t, g.ID, newcomer, movie, models.ReactionNegative); res.Matched {
		t.Fatal("a negative reaction reported a match")
	}
	if res := env.react(t, g.ID, newcomer, show, models.ReactionStrongPositive); !res.Matched {
		t.Fatal("expected a match once the new member reacted positively")
	}

	matches, err := env.matches.GetMatches(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetMatches() error = %v", err)
	}
	if len(matches) != 2 || matches[0].Item != movie || matches[1].Item != show {
		t.Fatalf("matches = %+v, want [%v %v]", matches, movie, show)
	}
	if n := env.notifier.matchCount(); n != 2 {
		t.Errorf("notifications = %d, want 2", n)
	}
}

// reenteringNotifier reacts to the matched item again from inside NotifyMatch
type reenteringNotifier struct {
	svc      *MatchService
	memberID string
	done     chan error
}

func (n *reenteringNotifier) NotifyMatch(ctx context.Context, group *models.Group, match models.Match) {
	result := make(chan error, 1)
	go func() {
		_, err := n.svc.RecordReaction(ctx, ReactionInput{
			GroupID: group.ID, Item: match.Item, MemberID: n.memberID, Reaction: models.ReactionStrongPositive,
		})
		result <- err
	}()
	select {
	case err := <-result:
		n.done <- err
	case <-time.After(2 * time.Second):
		n.done <- errors.New("reaction blocked while the match notification was running")
	}
}

func TestRecordReaction_NotifiesOutsideItemLock(t *testing.T) {
	env := newTestEnv(t, nil)
	g, members := env.createGroup(t, 2)

	notifier := &reenteringNotifier{memberID: members[0], done: make(chan error, 1)}
	svc := NewMatchService(env.groupRepo, env.swipeRepo, env.matchRepo, env.queueRepo, notifier)
	notifier.svc = svc

	ctx := context.Background()
	for _, id := range members {
		if _, err := svc.RecordReaction(ctx, ReactionInput{
			GroupID: g.ID, Item: movie, MemberID: id, Reaction: models.ReactionPositive,
		}); err != nil {
			t.Fatalf("RecordReaction() error = %v", err)
		}
	}

	select {
	case err := <-notifier.done:
		if err != nil {
			t.Fatal(err)
		}
	default:
		t.Fatal("NotifyMatch was not called")
	}
}

func TestGetSwipeState_Unswiped(t *testing.T) {
	env := newTestEnv(t, nil)
	g, _ := env.createGroup(t, 2)

	state, err := env.matches.GetSwipeState(context.Background(), g.ID, movie)
	if err != nil {
		t.Fatalf("GetSwipeState() error = %v", err)
	}
	if state.Matched || state.Swipes == nil || len(state.Swipes.Reactors) != 0 {
		t.Errorf("state = %+v, want empty", state)
	}
}

func TestKeyedMutexSerialises(t *testing.T) {
	km := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		overlap atomic.Bool
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("k")
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if overlap.Load() {
		t.Error("two holders inside the same key")
	}
	if len(km.locks) != 0 {
		t.Errorf("locks left = %d, want 0", len(km.locks))
	}
}
