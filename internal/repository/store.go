package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"watch-match-backend/internal/kv"
)

// maxCASAttempts bounds optimistic retries when concurrent writers collide
const maxCASAttempts = 8

// ErrNotFound is returned when a required record does not exist
var ErrNotFound = kv.ErrNotFound

// Key layout shared by all repositories
func userKey(id string) string           { return "user:" + id }
func userCodeKey(code string) string     { return "userCode:" + code }
func groupKey(id string) string          { return "group:" + id }
func userGroupsKey(userID string) string { return "userGroups:" + userID }
func groupQueueKey(id string) string     { return groupKey(id) + ":queue" }
func groupMatchesKey(id string) string   { return groupKey(id) + ":matches" }
func swipeKey(groupID, kind string, itemID int64) string {
	return fmt.Sprintf("%s:swipes:%s:%d", groupKey(groupID), kind, itemID)
}
func ratingPrefix(userID string) string { return "rating:" + userID + ":" }
func ratingKey(userID, kind string, itemID int64) string {
	return fmt.Sprintf("%s%s:%d", ratingPrefix(userID), kind, itemID)
}
func feedKey(userID string) string { return "feed:" + userID }

// getJSON loads key into v and returns its version
func getJSON(ctx context.Context, store kv.Store, key string, v any) (int64, error) {
	e, err := store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal(e.Value, v); err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return e.Version, nil
}

func putJSON(ctx context.Context, store kv.Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return store.Set(ctx, key, data)
}

func casJSON(ctx context.Context, store kv.Store, key string, v any, expected int64) (int64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return store.CompareAndSwap(ctx, key, data, expected)
}

// update runs a read-modify-write on key with compare-and-swap, retrying on conflict.
// fn receives the current value (zero value when absent) and reports whether it changed it;
// an unchanged value is not written.
func update[T any](ctx context.Context, store kv.Store, key string, fn func(cur *T) (bool, error)) (T, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		var cur T
		version, err := getJSON(ctx, store, key, &cur)
		if err != nil && !errors.Is(err, kv.ErrNotFound) {
			return cur, err
		}

		changed, err := fn(&cur)
		if err != nil || !changed {
			return cur, err
		}

		_, err = casJSON(ctx, store, key, cur, version)
		if errors.Is(err, kv.ErrConflict) {
			continue
		}
		return cur, err
	}
	var zero T
	return zero, fmt.Errorf("update %s: %w after %d attempts", key, kv.ErrConflict, maxCASAttempts)
}
