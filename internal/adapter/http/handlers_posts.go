package adapthttp

import (
	"net/http"

	"gallery/internal/app"
	"gallery/internal/domain"
)

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.posts.Posts(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": posts})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageURL      string `json:"imageUrl"`
		Caption       string `json:"caption"`
		Location      string `json:"location"`
		PeoplePresent string `json:"peoplePresent"`
		Rating        int    `json:"rating"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	post, err := s.posts.CreatePost(r.Context(), app.NewPost{
		ImageURL:      req.ImageURL,
		Caption:       req.Caption,
		Location:      req.Location,
		PeoplePresent: req.PeoplePresent,
		Rating:        req.Rating,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"post": post})
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	post, err := s.posts.ToggleLike(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": post})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	post, err := s.posts.AddComment(r.Context(), r.PathValue("id"), req.Text)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"post": post})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.posts.UserByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": viewOf(user)})
}

func (s *Server) handleUserPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.posts.PostsByUserID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": posts})
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role domain.Role `json:"role"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.auth.SetUserRole(r.Context(), r.PathValue("id"), req.Role); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
