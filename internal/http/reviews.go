package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movie-reviews/internal/access"
	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/reviews"
)

type reviewResponse struct {
	ID        string                `json:"id"`
	MovieID   string                `json:"movieId"`
	UserID    string                `json:"userId"`
	Rating    int                   `json:"rating"`
	Comment   string                `json:"comment"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
	User      *reviewAuthorResponse `json:"user,omitempty"`
	Movie     *movieSummaryResponse `json:"movie,omitempty"`
}

type reviewAuthorResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

func (s *Server) handleListMovieReviews(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Reviews.ListByMovie(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	resp := make([]reviewResponse, 0, len(list))
	for _, item := range list {
		review := toReviewResponse(item.Review)
		review.User = &reviewAuthorResponse{ID: item.Author.ID, Username: item.Author.Username}
		resp = append(resp, review)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req reviews.CreateInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	review, err := s.svc.Reviews.Create(r.Context(), access.CallerFrom(r.Context()), req)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, toReviewResponse(review))
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	var req reviews.UpdateInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	review, err := s.svc.Reviews.Update(r.Context(), access.CallerFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponse(review))
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reviews.Delete(r.Context(), access.CallerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Review deleted successfully"})
}

func (s *Server) handleMyReviews(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Reviews.ListByUser(r.Context(), access.CallerFrom(r.Context()))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	resp := make([]reviewResponse, 0, len(list))
	for _, item := range list {
		review := toReviewResponse(item.Review)
		movie := toMovieSummaryResponse(item.Movie)
		review.Movie = &movie
		resp = append(resp, review)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMyReviewCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.svc.Reviews.CountByUser(r.Context(), access.CallerFrom(r.Context()))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, countResponse{Count: count})
}

func toReviewResponse(review domain.Review) reviewResponse {
	return reviewResponse{
		ID:        review.ID,
		MovieID:   review.MovieID,
		UserID:    review.UserID,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: review.CreatedAt,
		UpdatedAt: review.UpdatedAt,
	}
}
