package domain

import (
	"slices"
	"time"
)

// Comment is an append-only child of a Post.
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Post is a published image with its likes and comments. Likes holds each
// user id at most once; Comments are ordered oldest first.
type Post struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	ImageURL      string    `json:"imageUrl"`
	Caption       string    `json:"caption"`
	Likes         []string  `json:"likes"`
	Comments      []Comment `json:"comments"`
	CreatedAt     time.Time `json:"createdAt"`
	Location      string    `json:"location,omitempty"`
	PeoplePresent string    `json:"peoplePresent,omitempty"`
	Rating        int       `json:"rating,omitempty"`
}

// LikedBy reports whether userID has liked the post.
func (p *Post) LikedBy(userID string) bool {
	return slices.Contains(p.Likes, userID)
}

// ToggleLike removes userID from the likes if present and appends it
// otherwise. It returns true if the post is liked by userID afterwards.
func (p *Post) ToggleLike(userID string) bool {
	if i := slices.Index(p.Likes, userID); i >= 0 {
		p.Likes = slices.Delete(p.Likes, i, i+1)
		return false
	}
	p.Likes = append(p.Likes, userID)
	return true
}

// ClampRating maps a requested star rating into 1..5. Zero means no rating.
func ClampRating(r int) int {
	switch {
	case r == 0:
		return 0
	case r < 1:
		return 1
	case r > 5:
		return 5
	}
	return r
}

// PostComment is a comment row together with the post it belongs to.
type PostComment struct {
	PostID string
	Comment
}
