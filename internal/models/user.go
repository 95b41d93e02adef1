package models

import "time"

// User represents a user in the system
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Token     string    `json:"token,omitempty"`
	PushToken *string   `json:"push_token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is the public view of a user inside a group
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AsMember strips credentials from a user
func (u *User) AsMember() Member {
	return Member{ID: u.ID, Name: u.Name}
}
