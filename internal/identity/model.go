package identity

import "time"

// Roles assignable to users.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User represents a registered wallet owner.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         string
	PasswordHash []byte
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    time.Time
}

// Credentials is the registration/login request structure.
type Credentials struct {
	Email    string
	Password string
	Name     string
}
