package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an operator records can be assigned to. Authentication and roles
// live outside this module; only identity is needed here.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUser creates a user with the immutable pattern.
func NewUser(name, email string) User {
	return User{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now(),
	}
}
