package models

import "time"

// Group is a named set of users sharing a candidate queue and match state
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// HasMember reports whether userID belongs to the group
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// GroupWithMembers is a group together with its members' public profiles
type GroupWithMembers struct {
	Group
	MemberDetails []Member `json:"member_details"`
}

// MediaKind is the catalog type of a candidate item
type MediaKind string

const (
	MediaMovie MediaKind = "movie"
	MediaTV    MediaKind = "tv"
)

// ParseMediaKind accepts the catalog names plus "series" as an alias for tv
func ParseMediaKind(s string) (MediaKind, bool) {
	switch s {
	case "movie":
		return MediaMovie, true
	case "tv", "series":
		return MediaTV, true
	}
	return "", false
}

// ItemRef identifies a candidate item in the external catalog
type ItemRef struct {
	ID   int64     `json:"id"`
	Kind MediaKind `json:"type"`
}

// CandidateItem is a queued catalog reference with opportunistically cached metadata
type CandidateItem struct {
	ItemRef
	Title    string    `json:"title,omitempty"`
	Poster   string    `json:"poster,omitempty"`
	Overview string    `json:"overview,omitempty"`
	AddedBy  string    `json:"added_by,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}
