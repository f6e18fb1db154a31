package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"horizon/internal/domain/banklink"
	"horizon/internal/shared/apperrors"
)

type BankLinkRepository struct {
	db *DB
}

func NewBankLinkRepository(db *DB) *BankLinkRepository {
	return &BankLinkRepository{db: db}
}

const bankLinkColumns = `id, user_id, item_id, account_id, access_token, funding_source_ref, public_handle, bank_name, created_at`

func (r *BankLinkRepository) Create(ctx context.Context, params banklink.CreateParams) (*banklink.BankLink, error) {
	query := `
		INSERT INTO bank_links (user_id, item_id, account_id, access_token, funding_source_ref, public_handle, bank_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + bankLinkColumns

	var fundingSource sql.NullString
	if params.FundingSourceRef != nil {
		fundingSource = sql.NullString{String: *params.FundingSourceRef, Valid: true}
	}

	link, err := scanBankLink(r.db.QueryRowContext(ctx, query,
		params.UserID, params.ItemID, params.AccountID,
		params.EncryptedToken, fundingSource, params.PublicHandle, params.BankName,
	))
	if err != nil {
		if integrityErr := mapConstraintError(err); integrityErr != nil {
			return nil, integrityErr
		}
		return nil, fmt.Errorf("failed to create bank link: %w", err)
	}
	return link, nil
}

func (r *BankLinkRepository) GetByID(ctx context.Context, id int64) (*banklink.BankLink, error) {
	query := `SELECT ` + bankLinkColumns + ` FROM bank_links WHERE id = $1`

	link, err := scanBankLink(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, banklink.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query bank link: %w", err)
	}
	return link, nil
}

func (r *BankLinkRepository) GetByHandle(ctx context.Context, handle string) (*banklink.BankLink, error) {
	query := `SELECT ` + bankLinkColumns + ` FROM bank_links WHERE public_handle = $1`

	link, err := scanBankLink(r.db.QueryRowContext(ctx, query, handle))
	if err == sql.ErrNoRows {
		return nil, banklink.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query bank link by handle: %w", err)
	}
	return link, nil
}

func (r *BankLinkRepository) ListByUser(ctx context.Context, userID int64) ([]*banklink.BankLink, error) {
	query := `SELECT ` + bankLinkColumns + ` FROM bank_links WHERE user_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank links: %w", err)
	}
	defer rows.Close()

	var links []*banklink.BankLink
	for rows.Next() {
		link, err := scanBankLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// ListAll walks every bank link, for maintenance audits.
func (r *BankLinkRepository) ListAll(ctx context.Context) ([]*banklink.BankLink, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+bankLinkColumns+` FROM bank_links ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank links: %w", err)
	}
	defer rows.Close()

	var links []*banklink.BankLink
	for rows.Next() {
		link, err := scanBankLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (r *BankLinkRepository) UpdateFundingSource(ctx context.Context, id int64, ref string) error {
	query := `UPDATE bank_links SET funding_source_ref = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, ref, id)
	if err != nil {
		return fmt.Errorf("failed to update funding source: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return banklink.ErrNotFound
	}
	return nil
}

// Delete removes a bank link. Transfers referencing it cascade via FK.
func (r *BankLinkRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bank_links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bank link: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return banklink.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBankLink(s scanner) (*banklink.BankLink, error) {
	var (
		link          banklink.BankLink
		fundingSource sql.NullString
		bankName      sql.NullString
	)
	err := s.Scan(
		&link.ID, &link.UserID, &link.ItemID, &link.AccountID,
		&link.AccessToken, &fundingSource, &link.PublicHandle, &bankName, &link.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if fundingSource.Valid {
		link.FundingSourceRef = &fundingSource.String
	}
	link.BankName = bankName.String
	return &link, nil
}

// mapConstraintError translates pq constraint violations into the taxonomy.
func mapConstraintError(err error) error {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}
	switch pqErr.Code {
	case "23505": // unique_violation
		return apperrors.Conflict("record already exists: %s", pqErr.Constraint)
	case "23503", "23502", "23514": // foreign_key, not_null, check
		return apperrors.Integrity(err)
	default:
		return nil
	}
}
