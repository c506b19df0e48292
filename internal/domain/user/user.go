// Package user defines the human principal entity.
package user

import "time"

// Status is the user account lifecycle state.
type Status string

const (
	Active    Status = "ACTIVE"
	Invited   Status = "INVITED"
	Suspended Status = "SUSPENDED"
)

// User is a human principal that authenticates with a bearer token.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
