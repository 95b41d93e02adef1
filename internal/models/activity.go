package models

import "time"

// Rating is a user's personal 0-10 score for a catalog item
type Rating struct {
	Item    ItemRef   `json:"item"`
	Rating  int       `json:"rating"`
	RatedAt time.Time `json:"rated_at"`
}

// Activity actions
const (
	ActivityAdded = "added"
	ActivityRated = "rated"
)

// Activity is one entry of a user's feed
type Activity struct {
	UserID    string        `json:"user_id"`
	UserName  string        `json:"user_name,omitempty"`
	Action    string        `json:"action"`
	Item      CandidateItem `json:"item"`
	Rating    *int          `json:"rating,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
