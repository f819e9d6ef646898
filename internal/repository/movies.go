package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	pool *pgxpool.Pool
}

const movieColumns = `
    id,
    title,
    description,
    release_year,
    release_month,
    genres,
    director,
    cast_members,
    poster_url,
    banner_url,
    trailer_url,
    average_rating,
    total_reviews,
    created_by,
    created_at,
    updated_at
`

func qualifiedMovieColumns(alias string) string {
	return strings.ReplaceAll(movieColumns, "\n    ", "\n    "+alias+".")
}

// MovieCreateParams bundles the fields required to create a movie.
type MovieCreateParams struct {
	Title        string
	Description  string
	ReleaseYear  int
	ReleaseMonth *int
	Genres       []string
	Director     string
	Cast         []string
	PosterURL    string
	BannerURL    *string
	TrailerURL   *string
	CreatedBy    *string
}

// MovieUpdateParams carries a partial update. Nil fields keep their value.
type MovieUpdateParams struct {
	Title        *string
	Description  *string
	ReleaseYear  *int
	ReleaseMonth *int
	Genres       []string
	Director     *string
	Cast         []string
	PosterURL    *string
	BannerURL    *string
	TrailerURL   *string
}

// MovieListFilters encapsulates search and pagination options.
type MovieListFilters struct {
	Genre  *string
	Search *string
	Limit  int
	Cursor *MovieCursor
}

// MovieCursor allows stable pagination by created_at/id.
type MovieCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// MovieListResult returns the paginated payload.
type MovieListResult struct {
	Items      []domain.Movie
	NextCursor *string
}

// Create inserts a new movie row and returns the stored entity. Aggregates
// start at zero.
func (r *MoviesRepository) Create(ctx context.Context, params MovieCreateParams) (domain.Movie, error) {
	query := fmt.Sprintf(`
        INSERT INTO movies (title, description, release_year, release_month, genres, director,
                            cast_members, poster_url, banner_url, trailer_url, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING %s
    `, movieColumns)

	row := r.pool.QueryRow(ctx, query,
		params.Title, params.Description, params.ReleaseYear, params.ReleaseMonth, params.Genres,
		params.Director, params.Cast, params.PosterURL, params.BannerURL, params.TrailerURL, params.CreatedBy)
	movie, err := scanMovie(row)
	if err != nil {
		return domain.Movie{}, translate(err)
	}
	return movie, nil
}

// GetByID fetches a movie by its identifier.
func (r *MoviesRepository) GetByID(ctx context.Context, id string) (domain.Movie, error) {
	if !validID(id) {
		return domain.Movie{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = $1`, movieColumns)
	movie, err := scanMovie(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	return movie, nil
}

// Update applies a partial update. Derived aggregate columns are never touched.
func (r *MoviesRepository) Update(ctx context.Context, id string, params MovieUpdateParams) (domain.Movie, error) {
	if !validID(id) {
		return domain.Movie{}, ErrNotFound
	}
	query := fmt.Sprintf(`
        UPDATE movies
        SET title = COALESCE($2, title),
            description = COALESCE($3, description),
            release_year = COALESCE($4, release_year),
            release_month = COALESCE($5, release_month),
            genres = COALESCE($6::text[], genres),
            director = COALESCE($7, director),
            cast_members = COALESCE($8::text[], cast_members),
            poster_url = COALESCE($9, poster_url),
            banner_url = COALESCE($10, banner_url),
            trailer_url = COALESCE($11, trailer_url),
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, movieColumns)

	row := r.pool.QueryRow(ctx, query, id,
		params.Title, params.Description, params.ReleaseYear, params.ReleaseMonth, params.Genres,
		params.Director, params.Cast, params.PosterURL, params.BannerURL, params.TrailerURL)
	movie, err := scanMovie(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, translate(err)
	}
	return movie, nil
}

// Delete removes a movie. Its reviews and watchlist entries cascade.
func (r *MoviesRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM movies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every movie and returns how many were deleted.
func (r *MoviesRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM movies`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SetAggregate overwrites the derived rating fields of a movie.
func (r *MoviesRepository) SetAggregate(ctx context.Context, id string, agg domain.RatingAggregate) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE movies SET average_rating = $2, total_reviews = $3 WHERE id = $1`,
		id, agg.Average, agg.Count)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIDs returns every movie id, oldest first.
func (r *MoviesRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM movies ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// List returns movies that match the provided filters, newest first.
func (r *MoviesRepository) List(ctx context.Context, filters MovieListFilters) (MovieListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	} else if filters.Limit > 100 {
		filters.Limit = 100
	}

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Genre != nil && strings.TrimSpace(*filters.Genre) != "" {
		where = append(where, fmt.Sprintf("%s = ANY(genres)", arg(strings.TrimSpace(*filters.Genre))))
	}
	if filters.Search != nil && strings.TrimSpace(*filters.Search) != "" {
		p := arg("%" + escapeLike(strings.TrimSpace(*filters.Search)) + "%")
		where = append(where, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", p, p))
	}
	if filters.Cursor != nil {
		cursorCreated := arg(filters.Cursor.CreatedAt)
		cursorID := arg(filters.Cursor.ID)
		where = append(where, fmt.Sprintf("(created_at, id) < (%s, %s::uuid)", cursorCreated, cursorID))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(movieColumns)
	queryBuilder.WriteString(" FROM movies")

	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	rows, err := r.pool.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return MovieListResult{}, err
	}
	defer rows.Close()

	items := make([]domain.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return MovieListResult{}, err
		}
		items = append(items, movie)
	}
	if err := rows.Err(); err != nil {
		return MovieListResult{}, err
	}

	var nextCursor *string
	if len(items) == filters.Limit {
		last := items[len(items)-1]
		token, err := encodeCursor(MovieCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return MovieListResult{}, err
		}
		nextCursor = &token
	}

	return MovieListResult{Items: items, NextCursor: nextCursor}, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var movie domain.Movie
	err := row.Scan(
		&movie.ID,
		&movie.Title,
		&movie.Description,
		&movie.ReleaseYear,
		&movie.ReleaseMonth,
		&movie.Genres,
		&movie.Director,
		&movie.Cast,
		&movie.PosterURL,
		&movie.BannerURL,
		&movie.TrailerURL,
		&movie.AverageRating,
		&movie.TotalReviews,
		&movie.CreatedBy,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	)
	if err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}

func encodeCursor(c MovieCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// DecodeCursor parses a cursor token into a MovieCursor.
func DecodeCursor(token string) (*MovieCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor MovieCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	if !validID(cursor.ID) {
		return nil, fmt.Errorf("invalid cursor id")
	}
	return &cursor, nil
}
