package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"horizon/internal/domain/transfer"
)

type TransferRepository struct {
	db *DB
}

func NewTransferRepository(db *DB) *TransferRepository {
	return &TransferRepository{db: db}
}

const transferColumns = `id, name, sender_user_id, receiver_user_id, sender_link_id, receiver_link_id, amount, category, channel, pending, occurred_at`

func (r *TransferRepository) Create(ctx context.Context, params transfer.CreateParams) (*transfer.Transfer, error) {
	query := `
		INSERT INTO transfers (name, sender_user_id, receiver_user_id, sender_link_id, receiver_link_id, amount, category, channel, pending, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + transferColumns

	tx, err := scanTransfer(r.db.QueryRowContext(ctx, query,
		params.Name, params.SenderUserID, params.ReceiverUserID,
		params.SenderLinkID, params.ReceiverLinkID,
		params.Amount.String(), params.Category, params.Channel,
		params.Pending, params.OccurredAt,
	))
	if err != nil {
		if integrityErr := mapConstraintError(err); integrityErr != nil {
			return nil, integrityErr
		}
		return nil, fmt.Errorf("failed to create transfer: %w", err)
	}
	return tx, nil
}

func (r *TransferRepository) GetByID(ctx context.Context, id int64) (*transfer.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`

	tx, err := scanTransfer(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, transfer.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer: %w", err)
	}
	return tx, nil
}

// ListForLink returns transfers where the link is sender or receiver and the
// user is a party on either side.
func (r *TransferRepository) ListForLink(ctx context.Context, userID, linkID int64) ([]*transfer.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE (sender_user_id = $1 OR receiver_user_id = $1)
		  AND (sender_link_id = $2 OR receiver_link_id = $2)
		ORDER BY occurred_at DESC, id DESC
	`
	return r.list(ctx, query, userID, linkID)
}

func (r *TransferRepository) ListByUser(ctx context.Context, userID int64) ([]*transfer.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE sender_user_id = $1 OR receiver_user_id = $1
		ORDER BY occurred_at DESC, id DESC
	`
	return r.list(ctx, query, userID)
}

func (r *TransferRepository) SetPending(ctx context.Context, id int64, pending bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE transfers SET pending = $1 WHERE id = $2`, pending, id)
	if err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return transfer.ErrNotFound
	}
	return nil
}

func (r *TransferRepository) list(ctx context.Context, query string, args ...any) ([]*transfer.Transfer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*transfer.Transfer
	for rows.Next() {
		tx, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, tx)
	}
	return transfers, rows.Err()
}

func scanTransfer(s scanner) (*transfer.Transfer, error) {
	var (
		tx     transfer.Transfer
		amount string
	)
	err := s.Scan(
		&tx.ID, &tx.Name, &tx.SenderUserID, &tx.ReceiverUserID,
		&tx.SenderLinkID, &tx.ReceiverLinkID, &amount,
		&tx.Category, &tx.Channel, &tx.Pending, &tx.OccurredAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q in transfer %d: %w", amount, tx.ID, err)
	}
	return &tx, nil
}
