package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReactorEntry is one member's reaction plus descriptive payload
type ReactorEntry struct {
	Reaction      Reaction      `json:"reaction"`
	WatchedStatus WatchedStatus `json:"watched_status,omitempty"`
	ServiceID     *int          `json:"service_id,omitempty"`
	ReactedAt     time.Time     `json:"reacted_at"`
}

// SwipeRecord holds every member's reaction to one item within one group.
// A member appears at most once in Reactors.
type SwipeRecord struct {
	GroupID   string                  `json:"group_id"`
	Item      ItemRef                 `json:"item"`
	Reactors  map[string]ReactorEntry `json:"reactors"`
	UpdatedAt time.Time               `json:"updated_at"`

	// Version is the store version the record was read at; zero when unsaved.
	Version int64 `json:"-"`
}

// NewSwipeRecord returns the empty (unswiped) record for an item
func NewSwipeRecord(groupID string, item ItemRef) *SwipeRecord {
	return &SwipeRecord{
		GroupID:  groupID,
		Item:     item,
		Reactors: make(map[string]ReactorEntry),
	}
}

// PositiveReactors returns the set of members whose reaction counts toward a match
func (s *SwipeRecord) PositiveReactors() map[string]struct{} {
	out := make(map[string]struct{}, len(s.Reactors))
	for id, e := range s.Reactors {
		if e.Reaction.IsPositive() {
			out[id] = struct{}{}
		}
	}
	return out
}

// CoversAll reports whether every member has reacted positively
func (s *SwipeRecord) CoversAll(members []string) bool {
	if len(members) == 0 {
		return false
	}
	positive := s.PositiveReactors()
	for _, m := range members {
		if _, ok := positive[m]; !ok {
			return false
		}
	}
	return true
}

// Snapshot copies the reactor map so later mutations don't leak into a match
func (s *SwipeRecord) Snapshot() map[string]ReactorEntry {
	out := make(map[string]ReactorEntry, len(s.Reactors))
	for k, v := range s.Reactors {
		out[k] = v
	}
	return out
}

// UnmarshalJSON also accepts the legacy {likes:[], passes:[]} layout.
// A member listed in both upgrades as positive.
func (s *SwipeRecord) UnmarshalJSON(data []byte) error {
	type plain SwipeRecord
	var raw struct {
		plain
		Likes  []string `json:"likes"`
		Passes []string `json:"passes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SwipeRecord(raw.plain)
	if s.Reactors == nil {
		s.Reactors = make(map[string]ReactorEntry)
	}
	for _, id := range raw.Passes {
		if _, ok := s.Reactors[id]; !ok {
			s.Reactors[id] = ReactorEntry{Reaction: ReactionNegative, WatchedStatus: WatchedNotSeen}
		}
	}
	for _, id := range raw.Likes {
		if e, ok := s.Reactors[id]; !ok || e.Reaction == ReactionNegative {
			s.Reactors[id] = ReactorEntry{Reaction: ReactionPositive, WatchedStatus: WatchedNotSeen}
		}
	}
	return nil
}

// Match is created once when every group member has reacted positively to an item
type Match struct {
	Item      ItemRef                 `json:"item"`
	Title     string                  `json:"title,omitempty"`
	Poster    string                  `json:"poster,omitempty"`
	MatchedAt time.Time               `json:"matched_at"`
	Reactors  map[string]ReactorEntry `json:"reactors"`
}

// UnmarshalJSON also accepts the legacy {id, type, matchedAt, userDetails} layout
// so matches stored before the upgrade still dedupe by item.
func (m *Match) UnmarshalJSON(data []byte) error {
	type plain Match
	var raw struct {
		plain
		LegacyID          json.RawMessage `json:"id"`
		LegacyType        string          `json:"type"`
		LegacyMatchedAt   *time.Time      `json:"matchedAt"`
		LegacyUserDetails map[string]struct {
			WatchedStatus string `json:"watchedStatus"`
			RatingType    string `json:"ratingType"`
		} `json:"userDetails"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Match(raw.plain)
	if m.Item.ID != 0 || len(raw.LegacyID) == 0 || string(raw.LegacyID) == "null" {
		return nil
	}

	id, err := strconv.ParseInt(strings.Trim(string(raw.LegacyID), `"`), 10, 64)
	if err != nil {
		return fmt.Errorf("legacy match id %s: %w", raw.LegacyID, err)
	}
	kind, ok := ParseMediaKind(raw.LegacyType)
	if !ok {
		return fmt.Errorf("legacy match type %q", raw.LegacyType)
	}
	m.Item = ItemRef{ID: id, Kind: kind}
	if raw.LegacyMatchedAt != nil {
		m.MatchedAt = *raw.LegacyMatchedAt
	}

	if len(m.Reactors) == 0 && len(raw.LegacyUserDetails) > 0 {
		m.Reactors = make(map[string]ReactorEntry, len(raw.LegacyUserDetails))
		for memberID, d := range raw.LegacyUserDetails {
			reaction, ok := ParseReaction(d.RatingType)
			if !ok {
				reaction = ReactionPositive
			}
			watched, ok := ParseWatchedStatus(d.WatchedStatus)
			if !ok {
				watched = WatchedNotSeen
			}
			m.Reactors[memberID] = ReactorEntry{Reaction: reaction, WatchedStatus: watched}
		}
	}
	return nil
}
