package models

import "time"

// MaxCaptionLength is the maximum number of characters in a caption.
const MaxCaptionLength = 280

// Post is a single entry in the feed.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Caption   string    `json:"caption"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Author is the subset of a profile embedded in feed rows.
type Author struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// FeedPost is a post joined with its author's profile. Author is nil when
// the profile row is missing.
type FeedPost struct {
	Post
	Author *Author `json:"profiles"`
}
