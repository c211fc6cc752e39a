package domain

import "time"

// User represents an account able to own gemstones.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	Token        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
