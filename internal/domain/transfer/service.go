package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"horizon/internal/domain/banklink"
	"horizon/internal/infrastructure/paymentrail"
	"horizon/internal/shared/apperrors"
)

// Service contains the business logic for transfer operations.
type Service struct {
	repo  Repository
	links banklink.Repository
	rail  paymentrail.Gateway
	log   *zap.Logger
}

// NewService creates a new transfer service.
func NewService(repo Repository, links banklink.Repository, rail paymentrail.Gateway, log *zap.Logger) *Service {
	return &Service{repo: repo, links: links, rail: rail, log: log}
}

// Create records an internally originated transfer. Both link references must
// exist and belong to their respective users, and the amount must be positive.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Transfer, error) {
	if !params.Amount.IsPositive() {
		return nil, apperrors.Validation("transfer amount must be positive, got %s", params.Amount)
	}

	senderLink, err := s.ownedLink(ctx, params.SenderLinkID, params.SenderUserID, "sender")
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedLink(ctx, params.ReceiverLinkID, params.ReceiverUserID, "receiver"); err != nil {
		return nil, err
	}

	if params.OccurredAt.IsZero() {
		params.OccurredAt = time.Now().UTC()
	}
	if params.Channel == "" {
		params.Channel = "internal"
	}

	created, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to record transfer: %w", err)
	}

	s.log.Info("transfer recorded",
		zap.Int64("transfer_id", created.ID),
		zap.Int64("sender_link_id", senderLink.ID),
		zap.String("amount", created.Amount.String()),
	)
	return created, nil
}

// ListForLink returns the internally recorded transfers touching a link, for
// use by the reconciliation feed.
func (s *Service) ListForLink(ctx context.Context, userID, linkID int64) ([]*Transfer, error) {
	return s.repo.ListForLink(ctx, userID, linkID)
}

// InitiateRailTransfer starts an ACH transfer between two linked accounts'
// funding sources. The caller supplies the idempotency key; the call is never
// auto-retried.
func (s *Service) InitiateRailTransfer(ctx context.Context, userID int64, sourceHandle, destHandle string, amount decimal.Decimal, idemKey string) (string, error) {
	if idemKey == "" {
		return "", apperrors.Validation("idempotency key is required")
	}
	if !amount.IsPositive() {
		return "", apperrors.Validation("transfer amount must be positive, got %s", amount)
	}

	source, err := s.linkByHandle(ctx, sourceHandle)
	if err != nil {
		return "", err
	}
	if source.UserID != userID {
		return "", apperrors.NotFound("source account not found")
	}
	dest, err := s.linkByHandle(ctx, destHandle)
	if err != nil {
		return "", err
	}

	if !source.FundingSourcePresent() {
		return "", apperrors.Validation("source account has no funding source")
	}
	if !dest.FundingSourcePresent() {
		return "", apperrors.Validation("destination account has no funding source")
	}

	ref, err := s.rail.InitiateTransfer(ctx, *source.FundingSourceRef, *dest.FundingSourceRef, amount, idemKey)
	if err != nil {
		return "", fmt.Errorf("failed to initiate rail transfer: %w", err)
	}

	s.log.Info("rail transfer initiated",
		zap.Int64("source_link_id", source.ID),
		zap.Int64("dest_link_id", dest.ID),
		zap.String("amount", amount.StringFixed(2)),
	)
	return ref, nil
}

// Settle clears the pending flag on a transfer. Pending is the only mutable
// field of a recorded transfer; the caller must be a party to it. Settling an
// already-settled transfer is a no-op.
func (s *Service) Settle(ctx context.Context, userID, transferID int64) (*Transfer, error) {
	t, err := s.repo.GetByID(ctx, transferID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.NotFound("transfer not found")
		}
		return nil, err
	}
	if t.SenderUserID != userID && t.ReceiverUserID != userID {
		return nil, apperrors.NotFound("transfer not found")
	}
	if !t.Pending {
		return t, nil
	}

	if err := s.repo.SetPending(ctx, t.ID, false); err != nil {
		return nil, fmt.Errorf("failed to settle transfer: %w", err)
	}
	t.Pending = false

	s.log.Info("transfer settled", zap.Int64("transfer_id", t.ID))
	return t, nil
}

func (s *Service) ownedLink(ctx context.Context, linkID, userID int64, role string) (*banklink.BankLink, error) {
	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		if errors.Is(err, banklink.ErrNotFound) {
			return nil, apperrors.Validation("%s bank link %d does not exist", role, linkID)
		}
		return nil, err
	}
	if link.UserID != userID {
		return nil, apperrors.Validation("%s bank link %d does not belong to user %d", role, linkID, userID)
	}
	return link, nil
}

func (s *Service) linkByHandle(ctx context.Context, handle string) (*banklink.BankLink, error) {
	link, err := s.links.GetByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, banklink.ErrNotFound) {
			return nil, apperrors.NotFound("account not found")
		}
		return nil, err
	}
	return link, nil
}
