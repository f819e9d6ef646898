package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/movie-reviews/internal/apperr"
)

type reviewInput struct {
	MovieID string `json:"movieId" validate:"required,uuid"`
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"notblank"`
}

type movieInput struct {
	ReleaseYear int      `json:"releaseYear" validate:"releaseyear"`
	Genres      []string `json:"genre" validate:"min=1,dive,genre"`
	Cast        []string `json:"cast" validate:"min=1,dive,notblank"`
	Banner      *string  `json:"bannerUrl" validate:"omitempty,url"`
}

func TestStructValid(t *testing.T) {
	err := Struct(reviewInput{MovieID: "6f1f6c4a-4c1b-4f0e-9a51-7b9d0c1f2a3b", Rating: 4, Comment: "great"})
	assert.NoError(t, err)
}

func TestStructReportsEveryField(t *testing.T) {
	err := Struct(reviewInput{MovieID: "nope", Rating: 9, Comment: "   "})
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)

	got := map[string]string{}
	for _, f := range appErr.Fields {
		got[f.Field] = f.Message
	}
	assert.Equal(t, "must be a valid id", got["movieId"])
	assert.Equal(t, "must be at most 5", got["rating"])
	assert.Equal(t, "must not be empty", got["comment"])
}

func TestRatingBounds(t *testing.T) {
	for _, rating := range []int{0, -1, 6} {
		err := Struct(reviewInput{MovieID: "6f1f6c4a-4c1b-4f0e-9a51-7b9d0c1f2a3b", Rating: rating, Comment: "x"})
		assert.True(t, apperr.Is(err, apperr.KindValidation), "rating %d", rating)
	}
}

func TestMovieRules(t *testing.T) {
	restore := now
	now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = restore })

	tests := []struct {
		name      string
		in        movieInput
		wantField string
	}{
		{"valid", movieInput{ReleaseYear: 1999, Genres: []string{"Drama", "Science Fiction"}, Cast: []string{"A"}}, ""},
		{"year too early", movieInput{ReleaseYear: 1887, Genres: []string{"Drama"}, Cast: []string{"A"}}, "releaseYear"},
		{"year upper bound", movieInput{ReleaseYear: 2031, Genres: []string{"Drama"}, Cast: []string{"A"}}, ""},
		{"year too late", movieInput{ReleaseYear: 2032, Genres: []string{"Drama"}, Cast: []string{"A"}}, "releaseYear"},
		{"unknown genre", movieInput{ReleaseYear: 2000, Genres: []string{"drama"}, Cast: []string{"A"}}, "genre[0]"},
		{"empty genres", movieInput{ReleaseYear: 2000, Genres: []string{}, Cast: []string{"A"}}, "genre"},
		{"blank cast member", movieInput{ReleaseYear: 2000, Genres: []string{"War"}, Cast: []string{"A", " "}}, "cast[1]"},
		{"bad banner", movieInput{ReleaseYear: 2000, Genres: []string{"War"}, Cast: []string{"A"}, Banner: ptr("not a url")}, "bannerUrl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			appErr, ok := apperr.As(err)
			require.True(t, ok, "err = %v", err)
			require.NotEmpty(t, appErr.Fields)
			assert.Equal(t, tt.wantField, appErr.Fields[0].Field)
		})
	}
}

func ptr(s string) *string { return &s }
