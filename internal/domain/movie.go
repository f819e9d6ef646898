package domain

import "time"

// Genres is the closed set of genres a movie may be tagged with.
var Genres = []string{
	"Action",
	"Adventure",
	"Animation",
	"Comedy",
	"Crime",
	"Documentary",
	"Drama",
	"Family",
	"Fantasy",
	"History",
	"Horror",
	"Music",
	"Mystery",
	"Romance",
	"Science Fiction",
	"TV Movie",
	"Thriller",
	"War",
	"Western",
}

var genreSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Genres))
	for _, g := range Genres {
		set[g] = struct{}{}
	}
	return set
}()

// IsGenre reports whether name is one of the supported genres. Matching is exact.
func IsGenre(name string) bool {
	_, ok := genreSet[name]
	return ok
}

// EarliestReleaseYear is the year of the first known motion picture.
const EarliestReleaseYear = 1888

// LatestReleaseYear returns the furthest future year a release may be announced for.
func LatestReleaseYear(now time.Time) int {
	return now.Year() + 5
}

// Movie represents the canonical movie entity in the database/service.
// AverageRating and TotalReviews are derived from the movie's reviews and are
// only ever written by the aggregation engine.
type Movie struct {
	ID            string
	Title         string
	Description   string
	ReleaseYear   int
	ReleaseMonth  *int
	Genres        []string
	Director      string
	Cast          []string
	PosterURL     string
	BannerURL     *string
	TrailerURL    *string
	AverageRating float64
	TotalReviews  int64
	CreatedBy     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MovieSummary is the projection of a movie embedded in a user's review listing.
type MovieSummary struct {
	ID            string
	Title         string
	PosterURL     string
	ReleaseYear   int
	Genres        []string
	Director      string
	AverageRating float64
}
