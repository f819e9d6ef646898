// Package users implements registration, login, self-service profile
// management, watchlists and user administration.
package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-reviews/internal/access"
	"github.com/Clark-Hu/movie-reviews/internal/apperr"
	"github.com/Clark-Hu/movie-reviews/internal/auth"
	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
	"github.com/Clark-Hu/movie-reviews/internal/validation"
)

// Store persists accounts and watchlists.
type Store interface {
	Create(ctx context.Context, params repository.UserCreateParams) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateProfile(ctx context.Context, id string, params repository.UserProfileParams) (domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateRole(ctx context.Context, id string, role domain.Role) (domain.User, error)
	UpdateProfilePicture(ctx context.Context, id, url string) (domain.User, error)
	Watchlist(ctx context.Context, userID string) ([]domain.WatchlistEntry, error)
	AddToWatchlist(ctx context.Context, userID, movieID string) error
	RemoveFromWatchlist(ctx context.Context, userID, movieID string) error
}

// MovieLookup resolves movies added to watchlists.
type MovieLookup interface {
	GetByID(ctx context.Context, id string) (domain.Movie, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(user domain.User) (string, time.Time, error)
}

// RegisterInput creates an account.
type RegisterInput struct {
	Username string `json:"username" validate:"notblank,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=6"`
}

// LoginInput authenticates with email and password.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileInput replaces the caller's username and email.
type ProfileInput struct {
	Username string `json:"username" validate:"notblank,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
}

// AdminUpdateInput changes another user's username and/or email.
type AdminUpdateInput struct {
	Username *string `json:"username" validate:"omitempty,notblank,min=3,max=30"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

// PasswordInput changes the caller's password.
type PasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"min=6"`
}

// ProfilePictureInput sets the caller's profile picture.
type ProfilePictureInput struct {
	ProfilePicture string `json:"profilePicture" validate:"required,url"`
}

// RoleInput sets a user's role.
type RoleInput struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

// Session is the result of a successful register or login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

// Service implements account operations.
type Service struct {
	store      Store
	movies     MovieLookup
	tokens     TokenIssuer
	bcryptCost int
	logger     zerolog.Logger
}

// NewService wires the users service.
func NewService(store Store, movies MovieLookup, tokens TokenIssuer, bcryptCost int, logger zerolog.Logger) *Service {
	return &Service{
		store:      store,
		movies:     movies,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger.With().Str("component", "users").Logger(),
	}
}

// Register creates a regular user and signs them in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	if err := validation.Struct(in); err != nil {
		return Session{}, err
	}
	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return Session{}, s.storeError(err, "Error registering user")
	}

	user, err := s.store.Create(ctx, repository.UserCreateParams{
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		Role:         domain.RoleUser,
	})
	if err != nil {
		return Session{}, s.translate(err, "Error registering user")
	}
	s.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return s.session(user)
}

// Login verifies credentials and issues a token. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	if err := validation.Struct(in); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, apperr.Unauthorized("Invalid credentials")
		}
		return Session{}, s.storeError(err, "Error logging in")
	}
	ok, err := auth.CheckPassword(user.PasswordHash, in.Password)
	if err != nil {
		return Session{}, s.storeError(err, "Error logging in")
	}
	if !ok {
		return Session{}, apperr.Unauthorized("Invalid credentials")
	}
	return s.session(user)
}

func (s *Service) session(user domain.User) (Session, error) {
	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, s.storeError(err, "Error issuing token")
	}
	return Session{Token: token, ExpiresAt: expires, User: user}, nil
}

// Me returns the caller's account.
func (s *Service) Me(ctx context.Context, caller access.Caller) (domain.User, error) {
	if err := access.Check(caller, access.Self, ""); err != nil {
		return domain.User{}, err
	}
	return s.get(ctx, caller.UserID, "Error fetching user profile")
}

// UpdateMe replaces the caller's username and email.
func (s *Service) UpdateMe(ctx context.Context, caller access.Caller, in ProfileInput) (domain.User, error) {
	if err := access.Check(caller, access.Self, ""); err != nil {
		return domain.User{}, err
	}
	if err := validation.Struct(in); err != nil {
		return domain.User{}, err
	}
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	user, err := s.store.UpdateProfile(ctx, caller.UserID, repository.UserProfileParams{Username: &username, Email: &email})
	if err != nil {
		return domain.User{}, s.translate(err, "Error updating user profile")
	}
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, caller access.Caller, in PasswordInput) error {
	if err := access.Check(caller, access.Self, ""); err != nil {
		return err
	}
	if err := validation.Struct(in); err != nil {
		return err
	}
	user, err := s.get(ctx, caller.UserID, "Error changing password")
	if err != nil {
		return err
	}
	ok, err := auth.CheckPassword(user.PasswordHash, in.CurrentPassword)
	if err != nil {
		return s.storeError(err, "Error changing password")
	}
	if !ok {
		return apperr.Validation("Current password is incorrect", apperr.FieldError{Field: "currentPassword", Message: "is incorrect"})
	}
	hash, err := auth.HashPassword(in.NewPassword, s.bcryptCost)
	if err != nil {
		return s.storeError(err, "Error changing password")
	}
	if err := s.store.UpdatePassword(ctx, caller.UserID, hash); err != nil {
		return s.translate(err, "Error changing password")
	}
	return nil
}

// SetProfilePicture stores the caller's profile picture URL.
func (s *Service) SetProfilePicture(ctx context.Context, caller access.Caller, in ProfilePictureInput) (domain.User, error) {
	if err := access.Check(caller, access.Self, ""); err != nil {
		return domain.User{}, err
	}
	if err := validation.Struct(in); err != nil {
		return domain.User{}, err
	}
	user, err := s.store.UpdateProfilePicture(ctx, caller.UserID, strings.TrimSpace(in.ProfilePicture))
	if err != nil {
		return domain.User{}, s.translate(err, "Error updating profile picture")
	}
	return user, nil
}

// Watchlist returns the caller's saved movies.
func (s *Service) Watchlist(ctx context.Context, caller access.Caller) ([]domain.WatchlistEntry, error) {
	if err := access.Check(caller, access.Self, ""); err != nil {
		return nil, err
	}
	entries, err := s.store.Watchlist(ctx, caller.UserID)
	if err != nil {
		return nil, s.translate(err, "Error fetching watchlist")
	}
	return entries, nil
}

// AddToWatchlist saves a movie to the caller's watchlist.
func (s *Service) AddToWatchlist(ctx context.Context, caller access.Caller, movieID string) error {
	if err := access.Check(caller, access.Self, ""); err != nil {
		return err
	}
	if _, err := s.movies.GetByID(ctx, movieID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Movie not found")
		}
		return s.storeError(err, "Error adding to watchlist")
	}
	if err := s.store.AddToWatchlist(ctx, caller.UserID, movieID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return apperr.Conflict("Movie already in watchlist")
		}
		return s.translate(err, "Error adding to watchlist")
	}
	return nil
}

// RemoveFromWatchlist drops a movie from the caller's watchlist.
func (s *Service) RemoveFromWatchlist(ctx context.Context, caller access.Caller, movieID string) error {
	if err := access.Check(caller, access.Self, ""); err != nil {
		return err
	}
	if err := s.store.RemoveFromWatchlist(ctx, caller.UserID, movieID); err != nil {
		return s.storeError(err, "Error removing from watchlist")
	}
	return nil
}

// List returns every user. Admin only.
func (s *Service) List(ctx context.Context, caller access.Caller) ([]domain.User, error) {
	if err := access.Check(caller, access.Admin, ""); err != nil {
		return nil, err
	}
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, s.storeError(err, "Error fetching users")
	}
	return users, nil
}

// Get returns one user. Admin only.
func (s *Service) Get(ctx context.Context, caller access.Caller, id string) (domain.User, error) {
	if err := access.Check(caller, access.Admin, ""); err != nil {
		return domain.User{}, err
	}
	return s.get(ctx, id, "Error fetching user")
}

// AdminUpdate changes another user's username and/or email. Admin only.
func (s *Service) AdminUpdate(ctx context.Context, caller access.Caller, id string, in AdminUpdateInput) (domain.User, error) {
	if err := access.Check(caller, access.Admin, ""); err != nil {
		return domain.User{}, err
	}
	if err := validation.Struct(in); err != nil {
		return domain.User{}, err
	}
	user, err := s.store.UpdateProfile(ctx, id, repository.UserProfileParams{
		Username: trimPtr(in.Username),
		Email:    trimPtr(in.Email),
	})
	if err != nil {
		return domain.User{}, s.translate(err, "Error updating user")
	}
	return user, nil
}

// SetRole changes a user's role. Admin only.
func (s *Service) SetRole(ctx context.Context, caller access.Caller, id string, in RoleInput) (domain.User, error) {
	if err := access.Check(caller, access.Admin, ""); err != nil {
		return domain.User{}, err
	}
	if err := validation.Struct(in); err != nil {
		return domain.User{}, apperr.Validation("Invalid role", apperr.FieldError{Field: "role", Message: "must be one of: user admin"})
	}
	user, err := s.store.UpdateRole(ctx, id, domain.Role(in.Role))
	if err != nil {
		return domain.User{}, s.translate(err, "Error updating user role")
	}
	s.logger.Info().Str("user_id", id).Str("role", in.Role).Str("by", caller.UserID).Msg("user role changed")
	return user, nil
}

// EnsureAdmin creates an administrator, or promotes the existing account
// with the same email. It serves trusted operator tooling and performs no
// capability check. created reports whether a new account was made.
func (s *Service) EnsureAdmin(ctx context.Context, in RegisterInput) (user domain.User, created bool, err error) {
	existing, err := s.store.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		if existing.Role == domain.RoleAdmin {
			return existing, false, nil
		}
		user, err = s.store.UpdateRole(ctx, existing.ID, domain.RoleAdmin)
		if err != nil {
			return domain.User{}, false, s.translate(err, "Error promoting user")
		}
		return user, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return domain.User{}, false, s.storeError(err, "Error looking up user")
	}

	if err := validation.Struct(in); err != nil {
		return domain.User{}, false, err
	}
	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return domain.User{}, false, s.storeError(err, "Error creating admin")
	}
	user, err = s.store.Create(ctx, repository.UserCreateParams{
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
	})
	if err != nil {
		return domain.User{}, false, s.translate(err, "Error creating admin")
	}
	return user, true, nil
}

func (s *Service) get(ctx context.Context, id, failure string) (domain.User, error) {
	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, s.translate(err, failure)
	}
	return user, nil
}

func (s *Service) translate(err error, message string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("User not found")
	case errors.Is(err, repository.ErrDuplicate):
		switch repository.DuplicateConstraint(err) {
		case repository.ConstraintEmail:
			return apperr.Conflict("Email is already in use")
		case repository.ConstraintUsername:
			return apperr.Conflict("Username is already in use")
		}
		return apperr.Conflict("Already exists")
	}
	return s.storeError(err, message)
}

func (s *Service) storeError(err error, message string) error {
	s.logger.Error().Err(err).Msg(message)
	return apperr.Store(err, message)
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}
