package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSwipeRecord_CoversAll(t *testing.T) {
	rec := NewSwipeRecord("g1", ItemRef{ID: 7, Kind: MediaMovie})
	members := []string{"a", "b", "c"}

	rec.Reactors["a"] = ReactorEntry{Reaction: ReactionPositive}
	rec.Reactors["b"] = ReactorEntry{Reaction: ReactionStrongPositive}
	if rec.CoversAll(members) {
		t.Fatal("CoversAll() = true with c missing")
	}

	rec.Reactors["c"] = ReactorEntry{Reaction: ReactionNegative}
	if rec.CoversAll(members) {
		t.Fatal("CoversAll() = true with c negative")
	}

	rec.Reactors["c"] = ReactorEntry{Reaction: ReactionPositive}
	rec.Reactors["outsider"] = ReactorEntry{Reaction: ReactionNegative}
	if !rec.CoversAll(members) {
		t.Fatal("CoversAll() = false with every member positive")
	}

	if rec.CoversAll(nil) {
		t.Error("CoversAll(nil) = true, want false")
	}
}

func TestSwipeRecord_LegacyUpgrade(t *testing.T) {
	raw := []byte(`{"likes":["a","b"],"passes":["c","b"]}`)

	var rec SwipeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	want := map[string]Reaction{
		"a": ReactionPositive,
		"b": ReactionPositive,
		"c": ReactionNegative,
	}
	if len(rec.Reactors) != len(want) {
		t.Fatalf("len(Reactors) = %d, want %d", len(rec.Reactors), len(want))
	}
	for id, r := range want {
		if got := rec.Reactors[id].Reaction; got != r {
			t.Errorf("Reactors[%s] = %q, want %q", id, got, r)
		}
		if got := rec.Reactors[id].WatchedStatus; got != WatchedNotSeen {
			t.Errorf("Reactors[%s].WatchedStatus = %q, want not_seen", id, got)
		}
	}
	if !rec.CoversAll([]string{"a", "b"}) {
		t.Error("legacy likes should still count toward a match")
	}
}

func TestSwipeRecord_CurrentFormatUnchanged(t *testing.T) {
	rec := NewSwipeRecord("g1", ItemRef{ID: 1, Kind: MediaTV})
	sid := 8
	rec.Reactors["a"] = ReactorEntry{Reaction: ReactionStrongPositive, WatchedStatus: WatchedWant, ServiceID: &sid}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var back SwipeRecord
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	e := back.Reactors["a"]
	if e.Reaction != ReactionStrongPositive || e.WatchedStatus != WatchedWant || e.ServiceID == nil || *e.ServiceID != 8 {
		t.Errorf("entry = %+v", e)
	}
	if back.GroupID != "g1" || back.Item.Kind != MediaTV {
		t.Errorf("record = %+v", back)
	}
}

func TestSwipeRecord_SnapshotIsIndependent(t *testing.T) {
	rec := NewSwipeRecord("g", ItemRef{ID: 1, Kind: MediaMovie})
	rec.Reactors["a"] = ReactorEntry{Reaction: ReactionPositive}

	snap := rec.Snapshot()
	rec.Reactors["a"] = ReactorEntry{Reaction: ReactionNegative}

	if snap["a"].Reaction != ReactionPositive {
		t.Error("snapshot changed after the record was mutated")
	}
}

func TestMatch_LegacyUpgrade(t *testing.T) {
	raw := []byte(`[
		{"id":603,"type":"movie","matchedAt":"2024-01-01T00:00:00.000Z"},
		{"id":"1399","type":"tv","matchedAt":"2024-02-01T00:00:00Z",
		 "userDetails":{"a":{"watchedStatus":"watched","ratingType":"two_thumbs_up"},"b":{"ratingType":"thumbs_up"}}},
		{"item":{"id":550,"type":"movie"},"matched_at":"2024-03-01T00:00:00Z","reactors":{}}
	]`)

	var matches []Match
	if err := json.Unmarshal(raw, &matches); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("len(matches) = %d, want 3", len(matches))
	}

	wantItems := []ItemRef{
		{ID: 603, Kind: MediaMovie},
		{ID: 1399, Kind: MediaTV},
		{ID: 550, Kind: MediaMovie},
	}
	for i, want := range wantItems {
		if matches[i].Item != want {
			t.Errorf("matches[%d].Item = %+v, want %+v", i, matches[i].Item, want)
		}
	}
	if want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); !matches[0].MatchedAt.Equal(want) {
		t.Errorf("matches[0].MatchedAt = %v, want %v", matches[0].MatchedAt, want)
	}

	reactors := matches[1].Reactors
	if got := reactors["a"]; got.Reaction != ReactionStrongPositive || got.WatchedStatus != WatchedAlready {
		t.Errorf("Reactors[a] = %+v", got)
	}
	if got := reactors["b"]; got.Reaction != ReactionPositive || got.WatchedStatus != WatchedNotSeen {
		t.Errorf("Reactors[b] = %+v", got)
	}
}

func TestMatch_LegacyUpgradeRejectsBadItem(t *testing.T) {
	for _, raw := range []string{
		`{"id":"abc","type":"movie"}`,
		`{"id":603,"type":"podcast"}`,
	} {
		var m Match
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			t.Errorf("Unmarshal(%s) error = nil, want error", raw)
		}
	}
}
