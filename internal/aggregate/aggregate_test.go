package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

type fakeMovies struct {
	mu       sync.Mutex
	ratings  map[string][]int
	stored   map[string]domain.RatingAggregate
	writes   int
	failRead map[string]error
}

func newFakeMovies() *fakeMovies {
	return &fakeMovies{
		ratings:  map[string][]int{},
		stored:   map[string]domain.RatingAggregate{},
		failRead: map[string]error{},
	}
}

func (f *fakeMovies) RatingsByMovie(ctx context.Context, movieID string) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failRead[movieID]; err != nil {
		return nil, err
	}
	return append([]int(nil), f.ratings[movieID]...), nil
}

func (f *fakeMovies) SetAggregate(ctx context.Context, movieID string, agg domain.RatingAggregate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[movieID] = agg
	f.writes++
	return nil
}

func (f *fakeMovies) ListIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.ratings))
	for id := range f.ratings {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		want    domain.RatingAggregate
	}{
		{"empty", nil, domain.RatingAggregate{Average: 0, Count: 0}},
		{"single", []int{4}, domain.RatingAggregate{Average: 4, Count: 1}},
		{"mean", []int{4, 2}, domain.RatingAggregate{Average: 3, Count: 2}},
		{"fractional", []int{5, 2}, domain.RatingAggregate{Average: 3.5, Count: 2}},
		{"thirds", []int{1, 1, 2}, domain.RatingAggregate{Average: 4.0 / 3.0, Count: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(tt.ratings))
		})
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	movies := newFakeMovies()
	movies.ratings["m"] = []int{5, 4, 4}
	engine := New(movies, movies, zerolog.Nop())

	first, err := engine.Recompute(context.Background(), "m")
	require.NoError(t, err)
	second, err := engine.Recompute(context.Background(), "m")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first, movies.stored["m"])
	assert.Equal(t, 2, movies.writes)
}

func TestRecomputeEmptyWritesZero(t *testing.T) {
	movies := newFakeMovies()
	movies.stored["m"] = domain.RatingAggregate{Average: 4.2, Count: 9}
	engine := New(movies, movies, zerolog.Nop())

	agg, err := engine.Recompute(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, domain.RatingAggregate{}, agg)
	assert.Equal(t, domain.RatingAggregate{}, movies.stored["m"])
}

func TestRecomputeReadFailureSkipsWrite(t *testing.T) {
	movies := newFakeMovies()
	boom := errors.New("read failed")
	movies.failRead["m"] = boom
	engine := New(movies, movies, zerolog.Nop())

	_, err := engine.Recompute(context.Background(), "m")
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, movies.writes)
}

func TestRecomputeAll(t *testing.T) {
	movies := newFakeMovies()
	for i := 0; i < 25; i++ {
		movies.ratings[fmt.Sprintf("m%d", i)] = []int{1 + i%5, 5}
	}
	engine := New(movies, movies, zerolog.Nop())

	count, err := engine.RecomputeAll(context.Background(), movies, 4)
	require.NoError(t, err)
	assert.Equal(t, 25, count)
	assert.Len(t, movies.stored, 25)
	assert.Equal(t, domain.RatingAggregate{Average: 3, Count: 2}, movies.stored["m0"])
}

func TestRecomputeAllStopsOnError(t *testing.T) {
	movies := newFakeMovies()
	movies.ratings["good"] = []int{3}
	movies.ratings["bad"] = []int{3}
	boom := errors.New("boom")
	movies.failRead["bad"] = boom
	engine := New(movies, movies, zerolog.Nop())

	count, err := engine.RecomputeAll(context.Background(), movies, 1)
	assert.ErrorIs(t, err, boom)
	assert.Less(t, count, 2)
}

func BenchmarkCompute(b *testing.B) {
	ratings := make([]int, 10_000)
	for i := range ratings {
		ratings[i] = 1 + i%5
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Compute(ratings)
	}
}
