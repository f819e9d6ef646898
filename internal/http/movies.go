package httpserver

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movie-reviews/internal/access"
	"github.com/Clark-Hu/movie-reviews/internal/catalog"
	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

type movieListResponse struct {
	Items      []movieResponse `json:"items"`
	NextCursor *string         `json:"nextCursor,omitempty"`
}

type movieResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ReleaseYear   int       `json:"releaseYear"`
	ReleaseMonth  *int      `json:"releaseMonth,omitempty"`
	Genre         []string  `json:"genre"`
	Director      string    `json:"director"`
	Cast          []string  `json:"cast"`
	PosterURL     string    `json:"posterUrl"`
	BannerURL     *string   `json:"bannerUrl,omitempty"`
	TrailerURL    *string   `json:"trailerUrl,omitempty"`
	AverageRating float64   `json:"averageRating"`
	TotalReviews  int64     `json:"totalReviews"`
	CreatedBy     *string   `json:"createdBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type movieSummaryResponse struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	PosterURL     string   `json:"posterUrl"`
	ReleaseYear   int      `json:"releaseYear"`
	Genre         []string `json:"genre"`
	Director      string   `json:"director"`
	AverageRating float64  `json:"averageRating"`
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	query, err := buildMovieQuery(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.svc.Catalog.List(r.Context(), query)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	items := make([]movieResponse, 0, len(result.Items))
	for _, movie := range result.Items {
		items = append(items, toMovieResponse(movie))
	}
	s.respondJSON(w, http.StatusOK, movieListResponse{Items: items, NextCursor: result.NextCursor})
}

func buildMovieQuery(query url.Values) (catalog.ListQuery, error) {
	q := catalog.ListQuery{
		Genre:  strings.TrimSpace(query.Get("genre")),
		Search: strings.TrimSpace(query.Get("search")),
		Cursor: strings.TrimSpace(query.Get("cursor")),
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil || limit < 0 {
			return q, fmt.Errorf("invalid limit value")
		}
		q.Limit = limit
	}
	return q, nil
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	movie, err := s.svc.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	movie, err := s.svc.Catalog.Create(r.Context(), access.CallerFrom(r.Context()), req)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/movies/"+movie.ID)
	s.respondJSON(w, http.StatusCreated, toMovieResponse(movie))
}

func (s *Server) handleUpdateMovie(w http.ResponseWriter, r *http.Request) {
	var req catalog.UpdateInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	movie, err := s.svc.Catalog.Update(r.Context(), access.CallerFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Catalog.Delete(r.Context(), access.CallerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Movie deleted successfully"})
}

func toMovieResponse(movie domain.Movie) movieResponse {
	return movieResponse{
		ID:            movie.ID,
		Title:         movie.Title,
		Description:   movie.Description,
		ReleaseYear:   movie.ReleaseYear,
		ReleaseMonth:  movie.ReleaseMonth,
		Genre:         nonNil(movie.Genres),
		Director:      movie.Director,
		Cast:          nonNil(movie.Cast),
		PosterURL:     movie.PosterURL,
		BannerURL:     movie.BannerURL,
		TrailerURL:    movie.TrailerURL,
		AverageRating: movie.AverageRating,
		TotalReviews:  movie.TotalReviews,
		CreatedBy:     movie.CreatedBy,
		CreatedAt:     movie.CreatedAt,
		UpdatedAt:     movie.UpdatedAt,
	}
}

func toMovieSummaryResponse(movie domain.MovieSummary) movieSummaryResponse {
	return movieSummaryResponse{
		ID:            movie.ID,
		Title:         movie.Title,
		PosterURL:     movie.PosterURL,
		ReleaseYear:   movie.ReleaseYear,
		Genre:         nonNil(movie.Genres),
		Director:      movie.Director,
		AverageRating: movie.AverageRating,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
