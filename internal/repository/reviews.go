package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

// ReviewsRepository persists reviews and answers the rating queries the
// aggregation engine needs.
type ReviewsRepository struct {
	pool *pgxpool.Pool
}

const reviewColumns = `id, movie_id, user_id, rating, comment, created_at, updated_at`

// ReviewInsertParams captures a new review.
type ReviewInsertParams struct {
	MovieID string
	UserID  string
	Rating  int
	Comment string
}

// Insert stores a new review. A second review for the same (movie, user)
// pair fails with ErrDuplicate; an unknown movie or user with ErrNotFound.
func (r *ReviewsRepository) Insert(ctx context.Context, params ReviewInsertParams) (domain.Review, error) {
	if !validID(params.MovieID) || !validID(params.UserID) {
		return domain.Review{}, ErrNotFound
	}
	query := fmt.Sprintf(`
        INSERT INTO reviews (movie_id, user_id, rating, comment)
        VALUES ($1,$2,$3,$4)
        RETURNING %s
    `, reviewColumns)

	review, err := scanReview(r.pool.QueryRow(ctx, query, params.MovieID, params.UserID, params.Rating, params.Comment))
	if err != nil {
		return domain.Review{}, translate(err)
	}
	return review, nil
}

// GetByID fetches a review by id.
func (r *ReviewsRepository) GetByID(ctx context.Context, id string) (domain.Review, error) {
	if !validID(id) {
		return domain.Review{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1`, reviewColumns)
	review, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Review{}, ErrNotFound
		}
		return domain.Review{}, err
	}
	return review, nil
}

// Update overwrites the rating and comment of a review and bumps updated_at.
// Ownership and movie are immutable.
func (r *ReviewsRepository) Update(ctx context.Context, id string, rating int, comment string) (domain.Review, error) {
	if !validID(id) {
		return domain.Review{}, ErrNotFound
	}
	query := fmt.Sprintf(`
        UPDATE reviews
        SET rating = $2, comment = $3, updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, reviewColumns)

	review, err := scanReview(r.pool.QueryRow(ctx, query, id, rating, comment))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Review{}, ErrNotFound
		}
		return domain.Review{}, err
	}
	return review, nil
}

// Delete removes a review.
func (r *ReviewsRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RatingsByMovie returns every rating currently recorded for a movie.
func (r *ReviewsRepository) RatingsByMovie(ctx context.Context, movieID string) ([]int, error) {
	if !validID(movieID) {
		return []int{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT rating FROM reviews WHERE movie_id = $1`, movieID)
	if err != nil {
		return nil, fmt.Errorf("ratings by movie: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

// ListByMovie returns a movie's reviews newest first with author usernames.
func (r *ReviewsRepository) ListByMovie(ctx context.Context, movieID string) ([]domain.ReviewWithAuthor, error) {
	if !validID(movieID) {
		return []domain.ReviewWithAuthor{}, nil
	}
	const query = `
        SELECT r.id, r.movie_id, r.user_id, r.rating, r.comment, r.created_at, r.updated_at,
               u.username
        FROM reviews r
        JOIN users u ON u.id = r.user_id
        WHERE r.movie_id = $1
        ORDER BY r.created_at DESC, r.id DESC
    `
	rows, err := r.pool.Query(ctx, query, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ReviewWithAuthor, 0)
	for rows.Next() {
		var item domain.ReviewWithAuthor
		if err := rows.Scan(
			&item.ID, &item.MovieID, &item.UserID, &item.Rating, &item.Comment, &item.CreatedAt, &item.UpdatedAt,
			&item.Author.Username,
		); err != nil {
			return nil, err
		}
		item.Author.ID = item.UserID
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListByUser returns a user's reviews newest first with a summary of each movie.
func (r *ReviewsRepository) ListByUser(ctx context.Context, userID string) ([]domain.ReviewWithMovie, error) {
	if !validID(userID) {
		return []domain.ReviewWithMovie{}, nil
	}
	const query = `
        SELECT r.id, r.movie_id, r.user_id, r.rating, r.comment, r.created_at, r.updated_at,
               m.title, m.poster_url, m.release_year, m.genres, m.director, m.average_rating
        FROM reviews r
        JOIN movies m ON m.id = r.movie_id
        WHERE r.user_id = $1
        ORDER BY r.created_at DESC, r.id DESC
    `
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ReviewWithMovie, 0)
	for rows.Next() {
		var item domain.ReviewWithMovie
		if err := rows.Scan(
			&item.ID, &item.MovieID, &item.UserID, &item.Rating, &item.Comment, &item.CreatedAt, &item.UpdatedAt,
			&item.Movie.Title, &item.Movie.PosterURL, &item.Movie.ReleaseYear, &item.Movie.Genres,
			&item.Movie.Director, &item.Movie.AverageRating,
		); err != nil {
			return nil, err
		}
		item.Movie.ID = item.MovieID
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountByUser returns how many reviews a user has written.
func (r *ReviewsRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	if !validID(userID) {
		return 0, nil
	}
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanReview(row pgx.Row) (domain.Review, error) {
	var review domain.Review
	err := row.Scan(
		&review.ID,
		&review.MovieID,
		&review.UserID,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	return review, err
}
