package user

import "time"

// User represents a registered user
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`

	// PasswordHash is only populated by credential lookups and never serialized
	PasswordHash string `json:"-"`
}
