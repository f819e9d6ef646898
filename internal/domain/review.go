package domain

import "time"

// MinRating and MaxRating bound the integer star rating of a review.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is one user's rating and comment for one movie.
type Review struct {
	ID        string
	MovieID   string
	UserID    string
	Rating    int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReviewAuthor is the public projection of a review's author.
type ReviewAuthor struct {
	ID       string
	Username string
}

// ReviewWithAuthor is a review as listed under its movie.
type ReviewWithAuthor struct {
	Review
	Author ReviewAuthor
}

// ReviewWithMovie is a review as listed under its author.
type ReviewWithMovie struct {
	Review
	Movie MovieSummary
}

// RatingAggregate provides average and count for a movie's reviews.
type RatingAggregate struct {
	Average float64
	Count   int64
}
