package models

import "time"

// Profile is the application-level record keyed by the user's ID.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// DefaultAvatarURL is used when a user registers without a usable avatar.
const DefaultAvatarURL = "https://i.pravatar.cc/150?img=3"
