// Package catalog manages movies. Reads are public; every write requires an
// administrator except Import, which serves trusted operator tooling.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-reviews/internal/access"
	"github.com/Clark-Hu/movie-reviews/internal/apperr"
	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
	"github.com/Clark-Hu/movie-reviews/internal/validation"
)

// Store persists movies.
type Store interface {
	Create(ctx context.Context, params repository.MovieCreateParams) (domain.Movie, error)
	GetByID(ctx context.Context, id string) (domain.Movie, error)
	Update(ctx context.Context, id string, params repository.MovieUpdateParams) (domain.Movie, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters repository.MovieListFilters) (repository.MovieListResult, error)
}

// CreateInput is the payload of a new movie. Derived rating fields are not
// accepted.
type CreateInput struct {
	Title        string   `json:"title" validate:"notblank"`
	Description  string   `json:"description" validate:"notblank"`
	ReleaseYear  int      `json:"releaseYear" validate:"releaseyear"`
	ReleaseMonth *int     `json:"releaseMonth" validate:"omitempty,min=1,max=12"`
	Genres       []string `json:"genre" validate:"required,min=1,dive,genre"`
	Director     string   `json:"director" validate:"notblank"`
	Cast         []string `json:"cast" validate:"required,min=1,dive,notblank"`
	PosterURL    string   `json:"posterUrl" validate:"required,url"`
	BannerURL    *string  `json:"bannerUrl" validate:"omitempty,url"`
	TrailerURL   *string  `json:"trailerUrl" validate:"omitempty,url"`
}

// UpdateInput is a partial update; absent fields keep their value.
type UpdateInput struct {
	Title        *string  `json:"title" validate:"omitempty,notblank"`
	Description  *string  `json:"description" validate:"omitempty,notblank"`
	ReleaseYear  *int     `json:"releaseYear" validate:"omitempty,releaseyear"`
	ReleaseMonth *int     `json:"releaseMonth" validate:"omitempty,min=1,max=12"`
	Genres       []string `json:"genre" validate:"omitempty,dive,genre"`
	Director     *string  `json:"director" validate:"omitempty,notblank"`
	Cast         []string `json:"cast" validate:"omitempty,dive,notblank"`
	PosterURL    *string  `json:"posterUrl" validate:"omitempty,url"`
	BannerURL    *string  `json:"bannerUrl" validate:"omitempty,url"`
	TrailerURL   *string  `json:"trailerUrl" validate:"omitempty,url"`
}

// ListQuery filters the public movie listing.
type ListQuery struct {
	Genre  string
	Search string
	Limit  int
	Cursor string
}

// Service exposes catalog operations.
type Service struct {
	store  Store
	logger zerolog.Logger
}

// NewService returns a catalog service over store.
func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{store: store, logger: logger.With().Str("component", "catalog").Logger()}
}

// List returns movies newest first, optionally filtered by exact genre and a
// case-insensitive search over title and description.
func (s *Service) List(ctx context.Context, q ListQuery) (repository.MovieListResult, error) {
	filters := repository.MovieListFilters{Limit: q.Limit}
	if g := strings.TrimSpace(q.Genre); g != "" {
		filters.Genre = &g
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		filters.Search = &term
	}
	if q.Cursor != "" {
		cursor, err := repository.DecodeCursor(q.Cursor)
		if err != nil {
			return repository.MovieListResult{}, apperr.Validation("Invalid cursor", apperr.FieldError{Field: "cursor", Message: "is invalid"})
		}
		filters.Cursor = cursor
	}

	result, err := s.store.List(ctx, filters)
	if err != nil {
		return repository.MovieListResult{}, s.storeError(err, "Error fetching movies")
	}
	return result, nil
}

// Get returns one movie.
func (s *Service) Get(ctx context.Context, id string) (domain.Movie, error) {
	movie, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.Movie{}, s.translate(err, "Error fetching movie")
	}
	return movie, nil
}

// Create adds a movie on behalf of an administrator.
func (s *Service) Create(ctx context.Context, caller access.Caller, in CreateInput) (domain.Movie, error) {
	if err := access.Check(caller, access.Admin, ""); err != nil {
		return domain.Movie{}, err
	}
	createdBy := caller.UserID
	return s.create(ctx, in, &createdBy)
}

// Import adds movies without a capability check, stopping at the first
// invalid entry. It returns how many were created.
func (s *Service) Import(ctx context.Context, inputs []CreateInput) (int, error) {
	for i, in := range inputs {
		if _, err := s.create(ctx, in, nil); err != nil {
			return i, err
		}
	}
	return len(inputs), nil
}

func (s *Service) create(ctx context.Context, in CreateInput, createdBy *string) (domain.Movie, error) {
	in.BannerURL = blankToNil(in.BannerURL)
	in.TrailerURL = blankToNil(in.TrailerURL)
	if err := validation.Struct(in); err != nil {
		return domain.Movie{}, err
	}

	movie, err := s.store.Create(ctx, repository.MovieCreateParams{
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		ReleaseYear:  in.ReleaseYear,
		ReleaseMonth: in.ReleaseMonth,
		Genres:       in.Genres,
		Director:     strings.TrimSpace(in.Director),
		Cast:         trimAll(in.Cast),
		PosterURL:    strings.TrimSpace(in.PosterURL),
		BannerURL:    trimPtr(in.BannerURL),
		TrailerURL:   trimPtr(in.TrailerURL),
		CreatedBy:    createdBy,
	})
	if err != nil {
		return domain.Movie{}, s.storeError(err, "Error creating movie")
	}
	s.logger.Info().Str("movie_id", movie.ID).Str("title", movie.Title).Msg("movie created")
	return movie, nil
}

// Update applies a partial update on behalf of an administrator.
func (s *Service) Update(ctx context.Context, caller access.Caller, id string, in UpdateInput) (domain.Movie, error) {
	if err := access.Check(caller, access.Admin, ""); err != nil {
		return domain.Movie{}, err
	}
	in.BannerURL = blankToNil(in.BannerURL)
	in.TrailerURL = blankToNil(in.TrailerURL)
	if err := validation.Struct(in); err != nil {
		return domain.Movie{}, err
	}
	if in.Genres != nil && len(in.Genres) == 0 {
		return domain.Movie{}, apperr.Validation("genre must contain at least 1 item(s)", apperr.FieldError{Field: "genre", Message: "must contain at least 1 item(s)"})
	}
	if in.Cast != nil && len(in.Cast) == 0 {
		return domain.Movie{}, apperr.Validation("cast must contain at least 1 item(s)", apperr.FieldError{Field: "cast", Message: "must contain at least 1 item(s)"})
	}

	movie, err := s.store.Update(ctx, id, repository.MovieUpdateParams{
		Title:        trimPtr(in.Title),
		Description:  trimPtr(in.Description),
		ReleaseYear:  in.ReleaseYear,
		ReleaseMonth: in.ReleaseMonth,
		Genres:       in.Genres,
		Director:     trimPtr(in.Director),
		Cast:         trimAll(in.Cast),
		PosterURL:    trimPtr(in.PosterURL),
		BannerURL:    trimPtr(in.BannerURL),
		TrailerURL:   trimPtr(in.TrailerURL),
	})
	if err != nil {
		return domain.Movie{}, s.translate(err, "Error updating movie")
	}
	return movie, nil
}

// Delete removes a movie together with its reviews and watchlist entries.
func (s *Service) Delete(ctx context.Context, caller access.Caller, id string) error {
	if err := access.Check(caller, access.Admin, ""); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return s.translate(err, "Error deleting movie")
	}
	s.logger.Info().Str("movie_id", id).Msg("movie deleted")
	return nil
}

func (s *Service) translate(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("Movie not found")
	}
	return s.storeError(err, message)
}

func (s *Service) storeError(err error, message string) error {
	s.logger.Error().Err(err).Msg(message)
	return apperr.Store(err, message)
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

// blankToNil treats an empty optional URL as absent.
func blankToNil(p *string) *string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	return p
}

func trimAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
