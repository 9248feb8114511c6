package inspirehub

import (
	"encoding/json"
	"time"
)

// Profile is a user as returned by the auth endpoints.
type Profile struct {
	ID             string `json:"_id"`
	Username       string `json:"username"`
	Email          string `json:"email,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// Sender identifies the author of a post or comment. The backend sends
// either the bare user id or the populated user document.
type Sender struct {
	ID             string `json:"_id"`
	Username       string `json:"username,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (s *Sender) UnmarshalJSON(data []byte) error {
	if string(data) == "null" || string(data) == `""` {
		return nil
	}

	if data[0] == '"' {
		return json.Unmarshal(data, &s.ID)
	}

	type sender Sender
	return json.Unmarshal(data, (*sender)(s))
}

// DisplayName returns the username, falling back to "Unknown".
func (s Sender) DisplayName() string {
	if s.Username == "" {
		return "Unknown"
	}
	return s.Username
}

// Post is a text or image post.
type Post struct {
	ID       string `json:"_id"`
	Title    string `json:"title"`
	Content  string `json:"content,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Sender   Sender `json:"sender"`
	// Likes is the like count.
	Likes     int       `json:"likes"`
	LikedBy   []string  `json:"likedBy,omitempty"`
	Comments  []Comment `json:"comments,omitempty"`
	CreatedAt Time      `json:"createdAt"`
}

// LikedByUser reports whether userID is among the users who liked the post.
func (p Post) LikedByUser(userID string) bool {
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Comment is a comment on a post.
type Comment struct {
	ID        string `json:"_id"`
	Content   string `json:"content"`
	PostID    string `json:"postId,omitempty"`
	Sender    Sender `json:"sender"`
	CreatedAt Time   `json:"createdAt"`
}

// LikeResult is the post state after toggling a like.
type LikeResult struct {
	Likes int  `json:"likes"`
	Liked bool `json:"liked"`
}

// Quote is a motivational quote.
type Quote struct {
	Text   string `json:"q"`
	Author string `json:"a"`
}

// Time supports unmarshalling optional timestamps returned by the API.
type Time struct {
	time.Time
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (m *Time) UnmarshalJSON(data []byte) error {
	if string(data) == "null" || string(data) == `""` {
		return nil
	}

	return json.Unmarshal(data, &m.Time)
}
