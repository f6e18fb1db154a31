package user

import "context"

// Repository defines the interface for user data access.
type Repository interface {
	Create(ctx context.Context, params CreateUserParams) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// Delete removes a user row. It exists for the enrollment saga's
	// compensation step as much as for explicit account deletion.
	Delete(ctx context.Context, id int64) error
	UpdateRailCustomer(ctx context.Context, id int64, ref string) error
}
