// Package reviews implements the review ledger: the only writer of reviews,
// which keeps each movie's aggregate in step after every change.
package reviews

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-reviews/internal/access"
	"github.com/Clark-Hu/movie-reviews/internal/apperr"
	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/metrics"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
	"github.com/Clark-Hu/movie-reviews/internal/validation"
)

// Store persists reviews.
type Store interface {
	Insert(ctx context.Context, params repository.ReviewInsertParams) (domain.Review, error)
	GetByID(ctx context.Context, id string) (domain.Review, error)
	Update(ctx context.Context, id string, rating int, comment string) (domain.Review, error)
	Delete(ctx context.Context, id string) error
	ListByMovie(ctx context.Context, movieID string) ([]domain.ReviewWithAuthor, error)
	ListByUser(ctx context.Context, userID string) ([]domain.ReviewWithMovie, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

// MovieLookup resolves movies referenced by reviews.
type MovieLookup interface {
	GetByID(ctx context.Context, id string) (domain.Movie, error)
}

// Recomputer refreshes a movie's aggregate from its reviews.
type Recomputer interface {
	Recompute(ctx context.Context, movieID string) (domain.RatingAggregate, error)
}

// CreateInput is the payload of a new review.
type CreateInput struct {
	MovieID string `json:"movieId" validate:"required,uuid"`
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"notblank"`
}

// UpdateInput replaces the rating and comment of a review.
type UpdateInput struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"notblank"`
}

// Ledger owns review mutations.
type Ledger struct {
	store      Store
	movies     MovieLookup
	aggregates Recomputer
	logger     zerolog.Logger
}

// NewLedger wires a ledger over its collaborators.
func NewLedger(store Store, movies MovieLookup, aggregates Recomputer, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:      store,
		movies:     movies,
		aggregates: aggregates,
		logger:     logger.With().Str("component", "reviews").Logger(),
	}
}

// Create records the caller's review of a movie. Checks run in order:
// authentication, input, movie existence, then one-review-per-movie.
func (l *Ledger) Create(ctx context.Context, caller access.Caller, in CreateInput) (review domain.Review, err error) {
	defer func() { record("create", err) }()

	if err := access.Check(caller, access.Authenticated, ""); err != nil {
		return domain.Review{}, err
	}
	if err := validation.Struct(in); err != nil {
		return domain.Review{}, err
	}

	if _, err := l.movies.GetByID(ctx, in.MovieID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Review{}, apperr.NotFound("Movie not found")
		}
		return domain.Review{}, l.storeError(err, "Failed to create review")
	}

	review, err = l.store.Insert(ctx, repository.ReviewInsertParams{
		MovieID: in.MovieID,
		UserID:  caller.UserID,
		Rating:  in.Rating,
		Comment: strings.TrimSpace(in.Comment),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return domain.Review{}, apperr.Conflict("You have already reviewed this movie")
		case errors.Is(err, repository.ErrNotFound):
			// Movie deleted between the lookup and the insert.
			return domain.Review{}, apperr.NotFound("Movie not found")
		}
		return domain.Review{}, l.storeError(err, "Failed to create review")
	}

	if err := l.recompute(ctx, review.MovieID); err != nil {
		return domain.Review{}, err
	}
	return review, nil
}

// Update lets the owner change rating and comment.
func (l *Ledger) Update(ctx context.Context, caller access.Caller, reviewID string, in UpdateInput) (review domain.Review, err error) {
	defer func() { record("update", err) }()

	if err := access.Check(caller, access.Authenticated, ""); err != nil {
		return domain.Review{}, err
	}
	if err := validation.Struct(in); err != nil {
		return domain.Review{}, err
	}

	existing, err := l.load(ctx, reviewID, "Failed to update review")
	if err != nil {
		return domain.Review{}, err
	}
	if err := access.Check(caller, access.Owner, existing.UserID); err != nil {
		return domain.Review{}, apperr.Forbidden("Not authorized to update this review")
	}

	review, err = l.store.Update(ctx, reviewID, in.Rating, strings.TrimSpace(in.Comment))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Review{}, apperr.NotFound("Review not found")
		}
		return domain.Review{}, l.storeError(err, "Failed to update review")
	}

	if err := l.recompute(ctx, review.MovieID); err != nil {
		return domain.Review{}, err
	}
	return review, nil
}

// Delete removes a review on behalf of its owner or an administrator.
func (l *Ledger) Delete(ctx context.Context, caller access.Caller, reviewID string) (err error) {
	defer func() { record("delete", err) }()

	if err := access.Check(caller, access.Authenticated, ""); err != nil {
		return err
	}

	existing, err := l.load(ctx, reviewID, "Failed to delete review")
	if err != nil {
		return err
	}
	if err := access.Check(caller, access.OwnerOrAdmin, existing.UserID); err != nil {
		return apperr.Forbidden("Not authorized to delete this review")
	}

	if err := l.store.Delete(ctx, reviewID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Review not found")
		}
		return l.storeError(err, "Failed to delete review")
	}

	return l.recompute(ctx, existing.MovieID)
}

// ListByMovie returns a movie's reviews newest first. Unknown movies yield an
// empty list.
func (l *Ledger) ListByMovie(ctx context.Context, movieID string) ([]domain.ReviewWithAuthor, error) {
	items, err := l.store.ListByMovie(ctx, movieID)
	if err != nil {
		return nil, l.storeError(err, "Failed to list reviews")
	}
	return items, nil
}

// ListByUser returns the caller's own reviews newest first.
func (l *Ledger) ListByUser(ctx context.Context, caller access.Caller) ([]domain.ReviewWithMovie, error) {
	if err := access.Check(caller, access.Self, ""); err != nil {
		return nil, err
	}
	items, err := l.store.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, l.storeError(err, "Failed to list reviews")
	}
	return items, nil
}

// CountByUser returns how many reviews the caller has written.
func (l *Ledger) CountByUser(ctx context.Context, caller access.Caller) (int64, error) {
	if err := access.Check(caller, access.Self, ""); err != nil {
		return 0, err
	}
	count, err := l.store.CountByUser(ctx, caller.UserID)
	if err != nil {
		return 0, l.storeError(err, "Failed to count reviews")
	}
	return count, nil
}

func (l *Ledger) load(ctx context.Context, reviewID, failure string) (domain.Review, error) {
	review, err := l.store.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Review{}, apperr.NotFound("Review not found")
		}
		return domain.Review{}, l.storeError(err, failure)
	}
	return review, nil
}

// recompute runs after a committed write. A failure leaves the review in
// place and the aggregate stale until the next recompute of that movie.
// A movie deleted in the meantime has no aggregate left to maintain.
func (l *Ledger) recompute(ctx context.Context, movieID string) error {
	if _, err := l.aggregates.Recompute(ctx, movieID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			l.logger.Debug().Str("movie_id", movieID).Msg("movie gone before aggregate recompute")
			return nil
		}
		l.logger.Error().Err(err).Str("movie_id", movieID).Msg("aggregate recompute failed after review write")
		return apperr.Store(err, "Failed to update movie rating")
	}
	return nil
}

func (l *Ledger) storeError(err error, message string) error {
	l.logger.Error().Err(err).Msg(message)
	return apperr.Store(err, message)
}

func record(operation string, err error) {
	if err == nil {
		metrics.RecordReviewMutation(operation, "")
		return
	}
	metrics.RecordReviewMutation(operation, apperr.KindOf(err).String())
}
