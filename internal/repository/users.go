package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

// UsersRepository persists accounts and their watchlists.
type UsersRepository struct {
	pool *pgxpool.Pool
}

const userColumns = `
    u.id,
    u.username,
    u.email,
    u.password_hash,
    u.role,
    u.profile_picture,
    COALESCE((SELECT array_agg(w.movie_id::text ORDER BY w.added_at)
              FROM watchlist_entries w WHERE w.user_id = u.id), '{}') AS watchlist,
    u.created_at,
    u.updated_at
`

// UserCreateParams captures a new account. Email is stored lowercased.
type UserCreateParams struct {
	Username     string
	Email        string
	PasswordHash string
	Role         domain.Role
}

// UserProfileParams is a partial profile update. Nil fields keep their value.
type UserProfileParams struct {
	Username *string
	Email    *string
}

// Create inserts a user. Username or email collisions fail with ErrDuplicate.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	role := params.Role
	if role == "" {
		role = domain.RoleUser
	}
	const insert = `
        INSERT INTO users (username, email, password_hash, role)
        VALUES ($1,$2,$3,$4)
        RETURNING id
    `
	var id string
	err := r.pool.QueryRow(ctx, insert, params.Username, strings.ToLower(params.Email), params.PasswordHash, string(role)).Scan(&id)
	if err != nil {
		return domain.User{}, translate(err)
	}
	return r.GetByID(ctx, id)
}

// GetByID fetches a user by id.
func (r *UsersRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	if !validID(id) {
		return domain.User{}, ErrNotFound
	}
	return r.getOne(ctx, "u.id = $1", id)
}

// GetByEmail fetches a user by email, case-insensitively.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, "u.email = $1", strings.ToLower(strings.TrimSpace(email)))
}

func (r *UsersRepository) getOne(ctx context.Context, cond string, arg interface{}) (domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users u WHERE %s`, userColumns, cond)
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// List returns every user, newest first.
func (r *UsersRepository) List(ctx context.Context) ([]domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users u ORDER BY u.created_at DESC, u.id DESC`, userColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateProfile changes username and/or email.
func (r *UsersRepository) UpdateProfile(ctx context.Context, id string, params UserProfileParams) (domain.User, error) {
	var email *string
	if params.Email != nil {
		lowered := strings.ToLower(*params.Email)
		email = &lowered
	}
	return r.update(ctx, id,
		`UPDATE users SET username = COALESCE($2, username), email = COALESCE($3, email), updated_at = now() WHERE id = $1`,
		params.Username, email)
}

// UpdatePassword replaces the stored password hash.
func (r *UsersRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.update(ctx, id, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, passwordHash)
	return err
}

// UpdateRole sets the user's role.
func (r *UsersRepository) UpdateRole(ctx context.Context, id string, role domain.Role) (domain.User, error) {
	return r.update(ctx, id, `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, string(role))
}

// UpdateProfilePicture sets the profile picture URL.
func (r *UsersRepository) UpdateProfilePicture(ctx context.Context, id, url string) (domain.User, error) {
	return r.update(ctx, id, `UPDATE users SET profile_picture = $2, updated_at = now() WHERE id = $1`, url)
}

func (r *UsersRepository) update(ctx context.Context, id, stmt string, args ...interface{}) (domain.User, error) {
	if !validID(id) {
		return domain.User{}, ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, stmt, append([]interface{}{id}, args...)...)
	if err != nil {
		return domain.User{}, translate(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.User{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Watchlist returns the movies a user has saved, most recently added first.
func (r *UsersRepository) Watchlist(ctx context.Context, userID string) ([]domain.WatchlistEntry, error) {
	if !validID(userID) {
		return nil, ErrNotFound
	}
	query := fmt.Sprintf(`
        SELECT %s, w.added_at
        FROM watchlist_entries w
        JOIN movies m ON m.id = w.movie_id
        WHERE w.user_id = $1
        ORDER BY w.added_at DESC
    `, qualifiedMovieColumns("m"))

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.WatchlistEntry, 0)
	for rows.Next() {
		var entry domain.WatchlistEntry
		m := &entry.Movie
		if err := rows.Scan(
			&m.ID, &m.Title, &m.Description, &m.ReleaseYear, &m.ReleaseMonth, &m.Genres, &m.Director,
			&m.Cast, &m.PosterURL, &m.BannerURL, &m.TrailerURL, &m.AverageRating, &m.TotalReviews,
			&m.CreatedBy, &m.CreatedAt, &m.UpdatedAt, &entry.AddedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// AddToWatchlist saves a movie for a user. A movie already on the list fails
// with ErrDuplicate; an unknown user or movie with ErrNotFound.
func (r *UsersRepository) AddToWatchlist(ctx context.Context, userID, movieID string) error {
	if !validID(userID) || !validID(movieID) {
		return ErrNotFound
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO watchlist_entries (user_id, movie_id) VALUES ($1, $2)`, userID, movieID)
	return translate(err)
}

// RemoveFromWatchlist drops a movie from a user's watchlist. Removing a movie
// that is not on the list is a no-op.
func (r *UsersRepository) RemoveFromWatchlist(ctx context.Context, userID, movieID string) error {
	if !validID(userID) || !validID(movieID) {
		return nil
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM watchlist_entries WHERE user_id = $1 AND movie_id = $2`, userID, movieID)
	return err
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user domain.User
		role string
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.ProfilePicture,
		&user.Watchlist,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	user.Role = domain.Role(role)
	return user, nil
}
