// Command moviectl is the operator CLI: it seeds administrators, bulk-loads
// and clears the catalog, and repairs movie rating aggregates.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Clark-Hu/movie-reviews/internal/aggregate"
	"github.com/Clark-Hu/movie-reviews/internal/catalog"
	"github.com/Clark-Hu/movie-reviews/internal/config"
	"github.com/Clark-Hu/movie-reviews/internal/logging"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
	"github.com/Clark-Hu/movie-reviews/internal/store"
	"github.com/Clark-Hu/movie-reviews/internal/users"
)

// app holds the dependencies shared by every subcommand.
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	store   *store.Store
	repo    *repository.Repository
	catalog *catalog.Service
	users   *users.Service
	engine  *aggregate.Engine
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd, a := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "moviectl",
		Short:         "Operator tooling for the movie review service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
	}
	rootCmd.AddCommand(
		newSeedAdminCmd(a),
		newImportMoviesCmd(a),
		newClearMoviesCmd(a),
		newRecomputeCmd(a),
	)
	return rootCmd, a
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.LoadForTools()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(logging.Config{Level: cfg.LogLevel, Format: "console", Output: os.Stderr}, "moviectl")

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	st, err := store.New(dbCtx, cfg.DBURL, store.OptionsFromConfig(cfg, a.logger))
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if cfg.DBAutoMigrate {
		if err := st.Migrate(dbCtx); err != nil {
			st.Close()
			return fmt.Errorf("migrate database: %w", err)
		}
	}
	a.store = st
	a.wire(repository.New(st))
	return nil
}

// wire builds the services over repo. Split from open so tests can run the
// commands against an embedded database.
func (a *app) wire(repo *repository.Repository) {
	bcryptCost := a.cfg.BcryptCost
	if bcryptCost == 0 {
		bcryptCost = 10
	}
	a.repo = repo
	a.catalog = catalog.NewService(repo.Movies, a.logger)
	a.users = users.NewService(repo.Users, repo.Movies, nil, bcryptCost, a.logger)
	a.engine = aggregate.New(repo.Reviews, repo.Movies, a.logger)
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}
