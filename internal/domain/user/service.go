package user

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"horizon/internal/infrastructure/paymentrail"
	"horizon/internal/shared/apperrors"
	"horizon/internal/shared/auth"
)

// Service runs user enrollment: persist the local row, then create the
// payment-rail customer profile. The external step follows the commit, so a
// rail failure triggers a compensating delete of the just-created row.
type Service struct {
	repo Repository
	rail paymentrail.Gateway
	log  *zap.Logger
}

// NewService creates a new user service.
func NewService(repo Repository, rail paymentrail.Gateway, log *zap.Logger) *Service {
	return &Service{repo: repo, rail: rail, log: log}
}

// Register enrolls a new user. On rail-customer failure the local row is
// rolled back and the rail error surfaces; if the rollback itself fails a
// CompensationFailure surfaces instead, since a local row now exists with no
// external counterpart and requires manual reconciliation.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*User, error) {
	if err := validateRegister(params); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := s.repo.Create(ctx, CreateUserParams{
		Email:        strings.ToLower(strings.TrimSpace(params.Email)),
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		PasswordHash: hash,
		Address1:     params.Address1,
		City:         params.City,
		State:        params.State,
		PostalCode:   params.PostalCode,
		DateOfBirth:  params.DateOfBirth,
	})
	if err != nil {
		return nil, err
	}

	customerRef, railErr := s.rail.CreateCustomer(ctx, paymentrail.CustomerParams{
		FirstName:   created.FirstName,
		LastName:    created.LastName,
		Email:       created.Email,
		Address1:    created.Address1,
		City:        created.City,
		State:       created.State,
		PostalCode:  created.PostalCode,
		DateOfBirth: created.DateOfBirth,
	})
	if railErr != nil {
		if compErr := s.RollbackEnrollment(ctx, created.ID); compErr != nil {
			return nil, compErr
		}
		return nil, fmt.Errorf("failed to create rail customer: %w", railErr)
	}

	if err := s.repo.UpdateRailCustomer(ctx, created.ID, customerRef); err != nil {
		return nil, fmt.Errorf("failed to store rail customer ref: %w", err)
	}
	created.RailCustomerRef = &customerRef

	s.log.Info("user enrolled",
		zap.Int64("user_id", created.ID),
		zap.String("email", created.Email),
	)
	return created, nil
}

// RollbackEnrollment is the saga's compensation step: it deletes the local
// user row created before the external profile failed. A failure here is
// surfaced as CompensationFailure and logged at the highest severity.
func (s *Service) RollbackEnrollment(ctx context.Context, userID int64) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		s.log.Error("enrollment rollback failed: user row has no external counterpart, manual reconciliation required",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return apperrors.Compensation(
			fmt.Sprintf("failed to delete user %d after rail customer creation failed", userID), err)
	}

	s.log.Warn("enrollment rolled back after rail customer creation failed",
		zap.Int64("user_id", userID))
	return nil
}

// Authenticate verifies credentials and returns the user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		// Do not reveal whether the email exists.
		return nil, apperrors.Validation("invalid email or password")
	}
	if err := auth.VerifyPassword(u.PasswordHash, password); err != nil {
		return nil, apperrors.Validation("invalid email or password")
	}
	return u, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func validateRegister(params RegisterParams) error {
	email := strings.TrimSpace(params.Email)
	if email == "" || !strings.Contains(email, "@") {
		return apperrors.Validation("a valid email is required")
	}
	if len(params.Password) < 8 {
		return apperrors.Validation("password must be at least 8 characters")
	}
	if strings.TrimSpace(params.FirstName) == "" || strings.TrimSpace(params.LastName) == "" {
		return apperrors.Validation("first and last name are required")
	}
	return nil
}
