package domain

import "time"

// Role is the authorization role carried by a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a registered account. PasswordHash never leaves the service layer.
type User struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   string
	Role           Role
	ProfilePicture *string
	Watchlist      []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WatchlistEntry is a movie saved to a user's watchlist.
type WatchlistEntry struct {
	Movie   Movie
	AddedAt time.Time
}
