package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"horizon/internal/domain/user"
)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, first_name, last_name, password_hash, address1, city, state, postal_code, date_of_birth, rail_customer_ref, created_at`

func (r *UserRepository) Create(ctx context.Context, params user.CreateUserParams) (*user.User, error) {
	query := `
		INSERT INTO users (email, first_name, last_name, password_hash, address1, city, state, postal_code, date_of_birth)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, query,
		params.Email, params.FirstName, params.LastName, params.PasswordHash,
		params.Address1, params.City, params.State, params.PostalCode, params.DateOfBirth,
	))
	if err != nil {
		if integrityErr := mapConstraintError(err); integrityErr != nil {
			return nil, integrityErr
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err == sql.ErrNoRows {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdateRailCustomer(ctx context.Context, id int64, ref string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET rail_customer_ref = $1 WHERE id = $2`, ref, id)
	if err != nil {
		return fmt.Errorf("failed to update rail customer ref: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return user.ErrNotFound
	}
	return nil
}

// ListWithoutRailCustomer returns users whose payment-rail profile was never
// provisioned. Such rows indicate an enrollment whose compensation failed.
func (r *UserRepository) ListWithoutRailCustomer(ctx context.Context) ([]*user.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE rail_customer_ref IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query orphaned users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(s scanner) (*user.User, error) {
	var (
		u                                              user.User
		address1, city, state, postalCode, dateOfBirth sql.NullString
		railRef                                        sql.NullString
	)
	err := s.Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&address1, &city, &state, &postalCode, &dateOfBirth, &railRef, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Address1 = address1.String
	u.City = city.String
	u.State = state.String
	u.PostalCode = postalCode.String
	u.DateOfBirth = dateOfBirth.String
	if railRef.Valid {
		u.RailCustomerRef = &railRef.String
	}
	return &u, nil
}
