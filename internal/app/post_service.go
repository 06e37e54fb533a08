package app

import (
	"context"
	"strings"
	"time"

	"gallery/internal/cache"
	"gallery/internal/domain"

	"github.com/google/uuid"
)

// PostService encapsulates feed use cases on behalf of the signed-in user.
type PostService struct {
	storage Storage
	store   *cache.Store
}

// NewPostService creates a PostService backed by the given storage.
func NewPostService(storage Storage, store *cache.Store) *PostService {
	return &PostService{storage: storage, store: store}
}

// NewPost is the input of CreatePost. Location, PeoplePresent and Rating are
// optional.
type NewPost struct {
	ImageURL      string
	Caption       string
	Location      string
	PeoplePresent string
	Rating        int
}

// CreatePost publishes a post as the signed-in user.
func (s *PostService) CreatePost(ctx context.Context, in NewPost) (*domain.Post, error) {
	imageURL := strings.TrimSpace(in.ImageURL)
	if imageURL == "" {
		return nil, ErrInvalidInput
	}
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.storage.CreatePost(ctx, user, domain.Post{
		ImageURL:      imageURL,
		Caption:       strings.TrimSpace(in.Caption),
		Location:      strings.TrimSpace(in.Location),
		PeoplePresent: strings.TrimSpace(in.PeoplePresent),
		Rating:        domain.ClampRating(in.Rating),
	})
}

// Posts returns the feed, newest first.
func (s *PostService) Posts(ctx context.Context) ([]domain.Post, error) {
	return s.storage.Posts(ctx, "")
}

// PostsByUserID returns the posts of one user, newest first.
func (s *PostService) PostsByUserID(ctx context.Context, userID string) ([]domain.Post, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.storage.Posts(ctx, userID)
}

// ToggleLike likes or unlikes a post as the signed-in user.
func (s *PostService) ToggleLike(ctx context.Context, postID string) (*domain.Post, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.storage.ToggleLike(ctx, user, postID)
}

// AddComment appends a comment by the signed-in user.
func (s *PostService) AddComment(ctx context.Context, postID, text string) (*domain.Post, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrInvalidInput
	}
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.storage.AddComment(ctx, user, postID, domain.Comment{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})
}

// UserByID looks a user up in the local cache. It never asks the backend.
func (s *PostService) UserByID(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *PostService) requireUser(ctx context.Context) (*domain.User, error) {
	u, err := s.store.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotAuthenticated
	}
	return u, nil
}
