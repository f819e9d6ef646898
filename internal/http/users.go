package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movie-reviews/internal/access"
	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/users"
)

type userResponse struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	ProfilePicture *string   `json:"profilePicture,omitempty"`
	Watchlist      []string  `json:"watchlist"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

type watchlistEntryResponse struct {
	Movie   movieResponse `json:"movie"`
	AddedAt time.Time     `json:"addedAt"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req users.RegisterInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	session, err := s.svc.Users.Register(r.Context(), req)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req users.LoginInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	session, err := s.svc.Users.Login(r.Context(), req)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toSessionResponse(session))
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Users.Me(r.Context(), access.CallerFrom(r.Context()))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req users.ProfileInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	user, err := s.svc.Users.UpdateMe(r.Context(), access.CallerFrom(r.Context()), req)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req users.PasswordInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := s.svc.Users.ChangePassword(r.Context(), access.CallerFrom(r.Context()), req); err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Password updated successfully"})
}

func (s *Server) handleSetProfilePicture(w http.ResponseWriter, r *http.Request) {
	var req users.ProfilePictureInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	user, err := s.svc.Users.SetProfilePicture(r.Context(), access.CallerFrom(r.Context()), req)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Users.Watchlist(r.Context(), access.CallerFrom(r.Context()))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	resp := make([]watchlistEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, watchlistEntryResponse{Movie: toMovieResponse(entry.Movie), AddedAt: entry.AddedAt})
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddToWatchlist(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movieID")
	if err := s.svc.Users.AddToWatchlist(r.Context(), access.CallerFrom(r.Context()), movieID); err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Movie added to watchlist", MovieID: movieID})
}

func (s *Server) handleRemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movieID")
	if err := s.svc.Users.RemoveFromWatchlist(r.Context(), access.CallerFrom(r.Context()), movieID); err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Movie removed from watchlist", MovieID: movieID})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Users.List(r.Context(), access.CallerFrom(r.Context()))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	resp := make([]userResponse, 0, len(list))
	for _, user := range list {
		resp = append(resp, toUserResponse(user))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Users.Get(r.Context(), access.CallerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req users.AdminUpdateInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	user, err := s.svc.Users.AdminUpdate(r.Context(), access.CallerFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req users.RoleInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	user, err := s.svc.Users.SetRole(r.Context(), access.CallerFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		Role:           string(user.Role),
		ProfilePicture: user.ProfilePicture,
		Watchlist:      nonNil(user.Watchlist),
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}
}

func toSessionResponse(session users.Session) sessionResponse {
	return sessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      toUserResponse(session.User),
	}
}
