package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-reviews/internal/store"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("repository: not found")

// ErrDuplicate indicates a uniqueness constraint rejected the write. The
// wrapping error names the constraint.
var ErrDuplicate = errors.New("repository: duplicate")

// Unique constraints surfaced through ErrDuplicate.
const (
	ConstraintReviewMovieUser = "reviews_movie_user_key"
	ConstraintUsername        = "users_username_key"
	ConstraintEmail           = "users_email_key"
	ConstraintWatchlist       = "watchlist_entries_pkey"
)

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Movies  *MoviesRepository
	Reviews *ReviewsRepository
	Users   *UsersRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Movies:  &MoviesRepository{pool: pool},
		Reviews: &ReviewsRepository{pool: pool},
		Users:   &UsersRepository{pool: pool},
	}
}

// DuplicateConstraint returns the constraint name carried by an ErrDuplicate.
func DuplicateConstraint(err error) string {
	var dup *duplicateError
	if errors.As(err, &dup) {
		return dup.constraint
	}
	return ""
}

type duplicateError struct {
	constraint string
}

func (e *duplicateError) Error() string {
	return fmt.Sprintf("%v: %s", ErrDuplicate, e.constraint)
}

func (e *duplicateError) Unwrap() error { return ErrDuplicate }

// translate maps driver errors onto repository sentinels. Foreign-key
// violations mean a referenced row vanished, which callers see as not found.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &duplicateError{constraint: pgErr.ConstraintName}
		case "23503":
			return ErrNotFound
		case "22P02":
			return ErrNotFound
		}
	}
	return err
}

// validID reports whether id can address a row. Malformed ids cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
