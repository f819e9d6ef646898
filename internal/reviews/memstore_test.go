package reviews

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
)

// memStore is an in-memory stand-in for the review, movie and aggregate
// repositories with the same sentinel errors as the pgx implementations.
type memStore struct {
	mu      sync.Mutex
	movies  map[string]domain.Movie
	reviews map[string]domain.Review
	users   map[string]string
	clock   time.Time

	failSetAggregate error
}

func newMemStore() *memStore {
	return &memStore{
		movies:  map[string]domain.Movie{},
		reviews: map[string]domain.Review{},
		users:   map[string]string{},
		clock:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) addMovie(title string) domain.Movie {
	m.mu.Lock()
	defer m.mu.Unlock()
	movie := domain.Movie{ID: uuid.NewString(), Title: title, CreatedAt: m.tick()}
	m.movies[movie.ID] = movie
	return movie
}

// dropMovie removes a movie without touching its reviews, as a concurrent
// catalog delete would between a review write and its recompute.
func (m *memStore) dropMovie(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.movies, id)
}

func (m *memStore) movie(id string) domain.Movie {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.movies[id]
}

func (m *memStore) GetByIDMovie(ctx context.Context, id string) (domain.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	movie, ok := m.movies[id]
	if !ok {
		return domain.Movie{}, repository.ErrNotFound
	}
	return movie, nil
}

func (m *memStore) Insert(ctx context.Context, p repository.ReviewInsertParams) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.movies[p.MovieID]; !ok {
		return domain.Review{}, repository.ErrNotFound
	}
	for _, r := range m.reviews {
		if r.MovieID == p.MovieID && r.UserID == p.UserID {
			return domain.Review{}, repository.ErrDuplicate
		}
	}
	now := m.tick()
	review := domain.Review{
		ID:        uuid.NewString(),
		MovieID:   p.MovieID,
		UserID:    p.UserID,
		Rating:    p.Rating,
		Comment:   p.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.reviews[review.ID] = review
	return review, nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	review, ok := m.reviews[id]
	if !ok {
		return domain.Review{}, repository.ErrNotFound
	}
	return review, nil
}

func (m *memStore) Update(ctx context.Context, id string, rating int, comment string) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	review, ok := m.reviews[id]
	if !ok {
		return domain.Review{}, repository.ErrNotFound
	}
	review.Rating = rating
	review.Comment = comment
	review.UpdatedAt = m.tick()
	m.reviews[id] = review
	return review, nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.reviews, id)
	return nil
}

func (m *memStore) sorted(keep func(domain.Review) bool) []domain.Review {
	out := make([]domain.Review, 0)
	for _, r := range m.reviews {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) ListByMovie(ctx context.Context, movieID string) ([]domain.ReviewWithAuthor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]domain.ReviewWithAuthor, 0)
	for _, r := range m.sorted(func(r domain.Review) bool { return r.MovieID == movieID }) {
		items = append(items, domain.ReviewWithAuthor{Review: r, Author: domain.ReviewAuthor{ID: r.UserID, Username: m.users[r.UserID]}})
	}
	return items, nil
}

func (m *memStore) ListByUser(ctx context.Context, userID string) ([]domain.ReviewWithMovie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]domain.ReviewWithMovie, 0)
	for _, r := range m.sorted(func(r domain.Review) bool { return r.UserID == userID }) {
		movie := m.movies[r.MovieID]
		items = append(items, domain.ReviewWithMovie{Review: r, Movie: domain.MovieSummary{ID: movie.ID, Title: movie.Title, AverageRating: movie.AverageRating}})
	}
	return items, nil
}

func (m *memStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sorted(func(r domain.Review) bool { return r.UserID == userID }))), nil
}

func (m *memStore) RatingsByMovie(ctx context.Context, movieID string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ratings := make([]int, 0)
	for _, r := range m.reviews {
		if r.MovieID == movieID {
			ratings = append(ratings, r.Rating)
		}
	}
	return ratings, nil
}

func (m *memStore) SetAggregate(ctx context.Context, movieID string, agg domain.RatingAggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSetAggregate != nil {
		return m.failSetAggregate
	}
	movie, ok := m.movies[movieID]
	if !ok {
		return repository.ErrNotFound
	}
	movie.AverageRating = agg.Average
	movie.TotalReviews = agg.Count
	m.movies[movieID] = movie
	return nil
}

// movieLookup adapts memStore to MovieLookup, whose GetByID collides with
// the review store's.
type movieLookup struct{ *memStore }

func (l movieLookup) GetByID(ctx context.Context, id string) (domain.Movie, error) {
	return l.memStore.GetByIDMovie(ctx, id)
}

var errInjected = errors.New("injected failure")
