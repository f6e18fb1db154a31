package user

import (
	"errors"
	"time"
)

// Domain errors
var (
	ErrNotFound = errors.New("user not found")
)

type User struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	PasswordHash    string    `json:"-"`
	Address1        string    `json:"address1,omitempty"`
	City            string    `json:"city,omitempty"`
	State           string    `json:"state,omitempty"`
	PostalCode      string    `json:"postalCode,omitempty"`
	DateOfBirth     string    `json:"dateOfBirth,omitempty"` // YYYY-MM-DD
	RailCustomerRef *string   `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
}

type CreateUserParams struct {
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Address1     string
	City         string
	State        string
	PostalCode   string
	DateOfBirth  string
}

// RegisterParams is the caller-facing enrollment input.
type RegisterParams struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Address1    string
	City        string
	State       string
	PostalCode  string
	DateOfBirth string
}
