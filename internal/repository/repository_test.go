package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/testutil"
)

type testEnv struct {
	ctx        context.Context
	pool       *pgxpool.Pool
	repository *Repository
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	pool := testutil.NewPool(t, "movies_test")
	return &testEnv{
		ctx:        context.Background(),
		pool:       pool,
		repository: NewWithPool(pool),
	}
}

func mustCreateUser(t testing.TB, env *testEnv, username string) domain.User {
	t.Helper()
	user, err := env.repository.Users.Create(env.ctx, UserCreateParams{
		Username:     username,
		Email:        username + "@Example.com",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("create user %q: %v", username, err)
	}
	return user
}

func mustCreateMovie(t testing.TB, env *testEnv, title string) domain.Movie {
	t.Helper()
	movie, err := env.repository.Movies.Create(env.ctx, MovieCreateParams{
		Title:       title,
		Description: "A film called " + title,
		ReleaseYear: 2020,
		Genres:      []string{"Action"},
		Director:    "Someone",
		Cast:        []string{"Lead"},
		PosterURL:   "https://img.example/poster.jpg",
	})
	if err != nil {
		t.Fatalf("create movie %q: %v", title, err)
	}
	return movie
}

func mustInsertReview(t testing.TB, env *testEnv, movieID, userID string, rating int) domain.Review {
	t.Helper()
	review, err := env.repository.Reviews.Insert(env.ctx, ReviewInsertParams{
		MovieID: movieID,
		UserID:  userID,
		Rating:  rating,
		Comment: "fine",
	})
	if err != nil {
		t.Fatalf("insert review: %v", err)
	}
	return review
}

func TestMoviesRepository_CreateGetList(t *testing.T) {
	env := newTestEnv(t)

	month := 7
	movieA, err := env.repository.Movies.Create(env.ctx, MovieCreateParams{
		Title:        "Movie A",
		Description:  "Space opera",
		ReleaseYear:  1999,
		ReleaseMonth: &month,
		Genres:       []string{"Science Fiction", "Adventure"},
		Director:     "Dir",
		Cast:         []string{"One", "Two"},
		PosterURL:    "https://img.example/a.jpg",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if movieA.AverageRating != 0 || movieA.TotalReviews != 0 {
		t.Fatalf("new movie aggregates = %v/%d, want 0/0", movieA.AverageRating, movieA.TotalReviews)
	}
	if movieA.ReleaseMonth == nil || *movieA.ReleaseMonth != 7 {
		t.Fatalf("release month not stored: %v", movieA.ReleaseMonth)
	}
	movieB := mustCreateMovie(t, env, "Movie B")

	if _, err := env.repository.Movies.GetByID(env.ctx, "non-existent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed ID, got %v", err)
	}
	if _, err := env.repository.Movies.GetByID(env.ctx, "6f1f6c4a-4c1b-4f0e-9a51-7b9d0c1f2a3b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown ID, got %v", err)
	}

	filters := MovieListFilters{Limit: 1}
	firstPage, err := env.repository.Movies.List(env.ctx, filters)
	if err != nil {
		t.Fatalf("List first page: %v", err)
	}
	if len(firstPage.Items) != 1 || firstPage.NextCursor == nil {
		t.Fatalf("first page = %d items, cursor %v", len(firstPage.Items), firstPage.NextCursor)
	}
	if firstPage.Items[0].ID != movieB.ID {
		t.Fatalf("first page should hold the newest movie")
	}

	cursor, err := DecodeCursor(*firstPage.NextCursor)
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	filters.Cursor = cursor
	secondPage, err := env.repository.Movies.List(env.ctx, filters)
	if err != nil {
		t.Fatalf("List second page: %v", err)
	}
	if len(secondPage.Items) != 1 || secondPage.Items[0].ID != movieA.ID {
		t.Fatalf("second page = %+v, want Movie A", secondPage.Items)
	}

	genre := "Science Fiction"
	byGenre, err := env.repository.Movies.List(env.ctx, MovieListFilters{Genre: &genre})
	if err != nil {
		t.Fatalf("List by genre: %v", err)
	}
	if len(byGenre.Items) != 1 || byGenre.Items[0].ID != movieA.ID {
		t.Fatalf("genre filter returned %d items", len(byGenre.Items))
	}

	search := "SPACE"
	bySearch, err := env.repository.Movies.List(env.ctx, MovieListFilters{Search: &search})
	if err != nil {
		t.Fatalf("List by search: %v", err)
	}
	if len(bySearch.Items) != 1 || bySearch.Items[0].ID != movieA.ID {
		t.Fatalf("search filter returned %d items", len(bySearch.Items))
	}

	wildcard := "%"
	byWildcard, err := env.repository.Movies.List(env.ctx, MovieListFilters{Search: &wildcard})
	if err != nil {
		t.Fatalf("List by wildcard: %v", err)
	}
	if len(byWildcard.Items) != 0 {
		t.Fatalf("literal %% should match nothing, got %d", len(byWildcard.Items))
	}
}

func TestMoviesRepository_UpdateKeepsAggregates(t *testing.T) {
	env := newTestEnv(t)
	movie := mustCreateMovie(t, env, "Before")

	if err := env.repository.Movies.SetAggregate(env.ctx, movie.ID, domain.RatingAggregate{Average: 3.5, Count: 2}); err != nil {
		t.Fatalf("set aggregate: %v", err)
	}

	title := "After"
	updated, err := env.repository.Movies.Update(env.ctx, movie.ID, MovieUpdateParams{
		Title:  &title,
		Genres: []string{"Drama"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "After" || len(updated.Genres) != 1 || updated.Genres[0] != "Drama" {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.Director != movie.Director || len(updated.Cast) != 1 {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
	if updated.AverageRating != 3.5 || updated.TotalReviews != 2 {
		t.Fatalf("aggregates = %v/%d, want 3.5/2", updated.AverageRating, updated.TotalReviews)
	}

	if _, err := env.repository.Movies.Update(env.ctx, "6f1f6c4a-4c1b-4f0e-9a51-7b9d0c1f2a3b", MovieUpdateParams{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMoviesRepository_DeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	user := mustCreateUser(t, env, "cascade")
	movie := mustCreateMovie(t, env, "Doomed")
	review := mustInsertReview(t, env, movie.ID, user.ID, 4)
	if err := env.repository.Users.AddToWatchlist(env.ctx, user.ID, movie.ID); err != nil {
		t.Fatalf("add to watchlist: %v", err)
	}

	if err := env.repository.Movies.Delete(env.ctx, movie.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.repository.Movies.Delete(env.ctx, movie.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}
	if _, err := env.repository.Reviews.GetByID(env.ctx, review.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("review should cascade, got %v", err)
	}
	reloaded, err := env.repository.Users.GetByID(env.ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(reloaded.Watchlist) != 0 {
		t.Fatalf("watchlist should cascade, got %v", reloaded.Watchlist)
	}
}

func TestReviewsRepository_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice := mustCreateUser(t, env, "alice")
	bob := mustCreateUser(t, env, "bob")
	movie := mustCreateMovie(t, env, "Reviewed")

	first := mustInsertReview(t, env, movie.ID, alice.ID, 4)
	mustInsertReview(t, env, movie.ID, bob.ID, 2)

	_, err := env.repository.Reviews.Insert(env.ctx, ReviewInsertParams{MovieID: movie.ID, UserID: alice.ID, Rating: 5, Comment: "again"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate insert = %v, want ErrDuplicate", err)
	}
	if got := DuplicateConstraint(err); got != ConstraintReviewMovieUser {
		t.Fatalf("constraint = %q", got)
	}

	_, err = env.repository.Reviews.Insert(env.ctx, ReviewInsertParams{MovieID: "6f1f6c4a-4c1b-4f0e-9a51-7b9d0c1f2a3b", UserID: alice.ID, Rating: 5, Comment: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("insert for unknown movie = %v, want ErrNotFound", err)
	}

	updated, err := env.repository.Reviews.Update(env.ctx, first.ID, 5, "better")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Rating != 5 || updated.Comment != "better" || updated.UpdatedAt.Before(first.UpdatedAt) {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.UserID != alice.ID || updated.MovieID != movie.ID {
		t.Fatalf("ownership changed on update")
	}

	ratings, err := env.repository.Reviews.RatingsByMovie(env.ctx, movie.ID)
	if err != nil {
		t.Fatalf("ratings: %v", err)
	}
	if len(ratings) != 2 {
		t.Fatalf("ratings = %v", ratings)
	}

	byMovie, err := env.repository.Reviews.ListByMovie(env.ctx, movie.ID)
	if err != nil {
		t.Fatalf("list by movie: %v", err)
	}
	if len(byMovie) != 2 || byMovie[0].Author.Username != "bob" {
		t.Fatalf("list by movie should be newest first with authors: %+v", byMovie)
	}

	byUser, err := env.repository.Reviews.ListByUser(env.ctx, alice.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(byUser) != 1 || byUser[0].Movie.Title != "Reviewed" {
		t.Fatalf("list by user: %+v", byUser)
	}

	count, err := env.repository.Reviews.CountByUser(env.ctx, bob.ID)
	if err != nil || count != 1 {
		t.Fatalf("count = %d, %v", count, err)
	}

	if err := env.repository.Reviews.Delete(env.ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.repository.Reviews.Delete(env.ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete = %v", err)
	}
}

func TestReviewsRepository_RatingsEmpty(t *testing.T) {
	env := newTestEnv(t)
	movie := mustCreateMovie(t, env, "No Reviews Movie")

	ratings, err := env.repository.Reviews.RatingsByMovie(env.ctx, movie.ID)
	if err != nil {
		t.Fatalf("ratings without reviews: %v", err)
	}
	if len(ratings) != 0 {
		t.Fatalf("ratings = %v, want none", ratings)
	}
}

func TestReviewsRepository_ConcurrentDuplicateInserts(t *testing.T) {
	env := newTestEnv(t)
	user := mustCreateUser(t, env, "racer")
	movie := mustCreateMovie(t, env, "Concurrent Movie")

	const workers = 10
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		inserted   int
		duplicates int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.repository.Reviews.Insert(env.ctx, ReviewInsertParams{
				MovieID: movie.ID,
				UserID:  user.ID,
				Rating:  1 + i%5,
				Comment: fmt.Sprintf("attempt %d", i),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				inserted++
			case errors.Is(err, ErrDuplicate):
				duplicates++
			default:
				t.Errorf("insert %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if inserted != 1 || duplicates != workers-1 {
		t.Fatalf("inserted=%d duplicates=%d, want 1/%d", inserted, duplicates, workers-1)
	}
}

func TestUsersRepository_ProfileAndWatchlist(t *testing.T) {
	env := newTestEnv(t)
	user := mustCreateUser(t, env, "carol")
	mustCreateUser(t, env, "dave")

	if user.Email != "carol@example.com" {
		t.Fatalf("email should be lowercased, got %s", user.Email)
	}
	if user.Role != domain.RoleUser {
		t.Fatalf("default role = %s", user.Role)
	}

	_, err := env.repository.Users.Create(env.ctx, UserCreateParams{Username: "carol2", Email: "CAROL@example.com", PasswordHash: "h"})
	if DuplicateConstraint(err) != ConstraintEmail {
		t.Fatalf("duplicate email = %v", err)
	}

	byEmail, err := env.repository.Users.GetByEmail(env.ctx, " Carol@Example.COM ")
	if err != nil || byEmail.ID != user.ID {
		t.Fatalf("get by email: %v", err)
	}

	taken := "dave"
	_, err = env.repository.Users.UpdateProfile(env.ctx, user.ID, UserProfileParams{Username: &taken})
	if DuplicateConstraint(err) != ConstraintUsername {
		t.Fatalf("duplicate username = %v", err)
	}

	promoted, err := env.repository.Users.UpdateRole(env.ctx, user.ID, domain.RoleAdmin)
	if err != nil || promoted.Role != domain.RoleAdmin {
		t.Fatalf("update role: %v %+v", err, promoted)
	}

	movie := mustCreateMovie(t, env, "Saved")
	if err := env.repository.Users.AddToWatchlist(env.ctx, user.ID, movie.ID); err != nil {
		t.Fatalf("add: %v", err)
	}
	err = env.repository.Users.AddToWatchlist(env.ctx, user.ID, movie.ID)
	if !errors.Is(err, ErrDuplicate) || DuplicateConstraint(err) != ConstraintWatchlist {
		t.Fatalf("duplicate add = %v", err)
	}
	if err := env.repository.Users.AddToWatchlist(env.ctx, user.ID, "6f1f6c4a-4c1b-4f0e-9a51-7b9d0c1f2a3b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("add unknown movie = %v", err)
	}

	entries, err := env.repository.Users.Watchlist(env.ctx, user.ID)
	if err != nil || len(entries) != 1 || entries[0].Movie.Title != "Saved" {
		t.Fatalf("watchlist = %+v, %v", entries, err)
	}

	if err := env.repository.Users.RemoveFromWatchlist(env.ctx, user.ID, movie.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := env.repository.Users.RemoveFromWatchlist(env.ctx, user.ID, movie.ID); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}

	users, err := env.repository.Users.List(env.ctx)
	if err != nil || len(users) != 2 {
		t.Fatalf("list users = %d, %v", len(users), err)
	}
}

func BenchmarkMoviesRepositoryCreate(b *testing.B) {
	env := newTestEnv(b)

	for i := 0; i < b.N; i++ {
		mustCreateMovie(b, env, fmt.Sprintf("Bench Movie %d", i))
	}
}

func BenchmarkReviewsRepositoryRatingsByMovie(b *testing.B) {
	env := newTestEnv(b)
	movie := mustCreateMovie(b, env, "Bench Movie")
	for i := 0; i < 50; i++ {
		user := mustCreateUser(b, env, fmt.Sprintf("bench-%d", i))
		mustInsertReview(b, env, movie.ID, user.ID, 1+i%5)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.repository.Reviews.RatingsByMovie(env.ctx, movie.ID); err != nil {
			b.Fatalf("ratings: %v", err)
		}
	}
}
