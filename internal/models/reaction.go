package models

import "strings"

// Reaction is a member's sentiment toward a candidate item.
// Values are ordered: negative < positive < strong_positive.
type Reaction string

const (
	ReactionNegative       Reaction = "negative"
	ReactionPositive       Reaction = "positive"
	ReactionStrongPositive Reaction = "strong_positive"
)

// ParseReaction normalises every tag clients have sent over time into a Reaction.
// Thumbs tags come from the rating buttons, like/pass and right/left from the binary swipe.
func ParseReaction(tag string) (Reaction, bool) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "negative", "thumbs_down", "pass", "left":
		return ReactionNegative, true
	case "positive", "thumbs_up", "like", "right":
		return ReactionPositive, true
	case "strong_positive", "strong-positive", "two_thumbs_up":
		return ReactionStrongPositive, true
	}
	return "", false
}

// Valid reports whether r is one of the three canonical values
func (r Reaction) Valid() bool {
	switch r {
	case ReactionNegative, ReactionPositive, ReactionStrongPositive:
		return true
	}
	return false
}

// IsPositive reports whether r counts toward a match
func (r Reaction) IsPositive() bool {
	return r == ReactionPositive || r == ReactionStrongPositive
}

// Rank orders reactions; invalid values rank below negative
func (r Reaction) Rank() int {
	switch r {
	case ReactionNegative:
		return 0
	case ReactionPositive:
		return 1
	case ReactionStrongPositive:
		return 2
	}
	return -1
}

// WatchedStatus is descriptive only and never affects matching
type WatchedStatus string

const (
	WatchedAlready WatchedStatus = "watched"
	WatchedNotSeen WatchedStatus = "not_seen"
	WatchedWant    WatchedStatus = "want_to_watch"
)

// ParseWatchedStatus defaults an empty value to not_seen
func ParseWatchedStatus(s string) (WatchedStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return WatchedNotSeen, true
	case "watched", "already_watched":
		return WatchedAlready, true
	case "not_seen":
		return WatchedNotSeen, true
	case "want_to_watch":
		return WatchedWant, true
	}
	return "", false
}
