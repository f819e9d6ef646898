// Package aggregate keeps a movie's derived averageRating and totalReviews in
// step with its reviews by recomputing them from the full rating set.
package aggregate

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/metrics"
)

// RatingSource lists every rating currently recorded for a movie.
type RatingSource interface {
	RatingsByMovie(ctx context.Context, movieID string) ([]int, error)
}

// Writer stores the derived fields on a movie.
type Writer interface {
	SetAggregate(ctx context.Context, movieID string, agg domain.RatingAggregate) error
}

// MovieLister enumerates every movie for a full sweep.
type MovieLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// Engine recomputes movie aggregates.
type Engine struct {
	ratings RatingSource
	writer  Writer
	logger  zerolog.Logger
}

// New returns an Engine reading from ratings and writing through writer.
func New(ratings RatingSource, writer Writer, logger zerolog.Logger) *Engine {
	return &Engine{
		ratings: ratings,
		writer:  writer,
		logger:  logger.With().Str("component", "aggregate").Logger(),
	}
}

// Compute derives the aggregate of a rating set. An empty set yields exactly
// zero for both fields.
func Compute(ratings []int) domain.RatingAggregate {
	if len(ratings) == 0 {
		return domain.RatingAggregate{}
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return domain.RatingAggregate{
		Average: float64(sum) / float64(len(ratings)),
		Count:   int64(len(ratings)),
	}
}

// Recompute reads every rating of the movie and overwrites its aggregate.
// The write is unconditional, so repeated calls converge on the same result
// regardless of interleaving with other writers.
func (e *Engine) Recompute(ctx context.Context, movieID string) (domain.RatingAggregate, error) {
	start := time.Now()
	agg, err := e.recompute(ctx, movieID)
	metrics.RecordRecompute(time.Since(start), err)
	if err != nil {
		return domain.RatingAggregate{}, err
	}
	e.logger.Debug().
		Str("movie_id", movieID).
		Float64("average", agg.Average).
		Int64("count", agg.Count).
		Msg("aggregate recomputed")
	return agg, nil
}

func (e *Engine) recompute(ctx context.Context, movieID string) (domain.RatingAggregate, error) {
	ratings, err := e.ratings.RatingsByMovie(ctx, movieID)
	if err != nil {
		return domain.RatingAggregate{}, fmt.Errorf("load ratings for %s: %w", movieID, err)
	}
	agg := Compute(ratings)
	if err := e.writer.SetAggregate(ctx, movieID, agg); err != nil {
		return domain.RatingAggregate{}, fmt.Errorf("store aggregate for %s: %w", movieID, err)
	}
	return agg, nil
}

// RecomputeAll recomputes every movie listed by lister with at most
// concurrency recomputations in flight. It stops at the first failure and
// returns how many movies were recomputed.
func (e *Engine) RecomputeAll(ctx context.Context, lister MovieLister, concurrency int) (int, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	ids, err := lister.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list movies: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	var recomputed atomic.Int64
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := e.Recompute(gctx, id); err != nil {
				return err
			}
			recomputed.Add(1)
			return nil
		})
	}
	err = g.Wait()
	count := int(recomputed.Load())
	e.logger.Info().Int("movies", count).Int("total", len(ids)).Msg("aggregate sweep finished")
	return count, err
}
