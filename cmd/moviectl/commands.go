package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/movie-reviews/internal/catalog"
	"github.com/Clark-Hu/movie-reviews/internal/users"
)

func newSeedAdminCmd(a *app) *cobra.Command {
	var in users.RegisterInput
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an administrator, or promote the account with the given email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Password == "" {
				in.Password = os.Getenv("ADMIN_PASSWORD")
			}
			return a.seedAdmin(cmd.Context(), cmd.OutOrStdout(), in)
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "admin", "admin username")
	cmd.Flags().StringVar(&in.Email, "email", "", "admin email (required)")
	cmd.Flags().StringVar(&in.Password, "password", "", "admin password, defaults to $ADMIN_PASSWORD")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) seedAdmin(ctx context.Context, out io.Writer, in users.RegisterInput) error {
	user, created, err := a.users.EnsureAdmin(ctx, in)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(out, "created admin %s (%s)\n", user.Username, user.ID)
	} else {
		fmt.Fprintf(out, "%s (%s) is an admin\n", user.Username, user.ID)
	}
	return nil
}

// importFile is the bulk catalog format: {"movies": [...]}. Derived rating
// fields in the input are ignored.
type importFile struct {
	Movies []catalog.CreateInput `json:"movies"`
}

func readImportFile(r io.Reader) ([]catalog.CreateInput, error) {
	var f importFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode import file: %w", err)
	}
	if len(f.Movies) == 0 {
		return nil, fmt.Errorf("import file contains no movies")
	}
	return f.Movies, nil
}

func newImportMoviesCmd(a *app) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import-movies <file.json>",
		Short: "Bulk-load movies from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return a.importMovies(cmd.Context(), cmd.OutOrStdout(), f, replace)
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "delete every existing movie before importing")
	return cmd
}

func (a *app) importMovies(ctx context.Context, out io.Writer, r io.Reader, replace bool) error {
	movies, err := readImportFile(r)
	if err != nil {
		return err
	}
	if replace {
		if err := a.clearMovies(ctx, out); err != nil {
			return err
		}
	}
	n, err := a.catalog.Import(ctx, movies)
	if err != nil {
		return fmt.Errorf("movie %d: %w", n+1, err)
	}
	fmt.Fprintf(out, "imported %d movies\n", n)
	return nil
}

func newClearMoviesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-movies",
		Short: "Delete every movie along with its reviews and watchlist entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.clearMovies(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (a *app) clearMovies(ctx context.Context, out io.Writer) error {
	n, err := a.repo.Movies.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("clear movies: %w", err)
	}
	fmt.Fprintf(out, "cleared %d movies\n", n)
	return nil
}

func newRecomputeCmd(a *app) *cobra.Command {
	var (
		movieID     string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute rating aggregates from the stored reviews",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.recompute(cmd.Context(), cmd.OutOrStdout(), movieID, concurrency)
		},
	}
	cmd.Flags().StringVar(&movieID, "movie", "", "recompute a single movie")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "movies recomputed in parallel")
	return cmd
}

func (a *app) recompute(ctx context.Context, out io.Writer, movieID string, concurrency int) error {
	if movieID != "" {
		agg, err := a.engine.Recompute(ctx, movieID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "movie %s: average %.2f over %d reviews\n", movieID, agg.Average, agg.Count)
		return nil
	}
	n, err := a.engine.RecomputeAll(ctx, a.repo.Movies, concurrency)
	if err != nil {
		return fmt.Errorf("recompute after %d movies: %w", n, err)
	}
	fmt.Fprintf(out, "recomputed %d movies\n", n)
	return nil
}
