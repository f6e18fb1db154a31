package banklink

import "context"

// Repository defines the interface for bank-link persistence.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*BankLink, error)
	GetByID(ctx context.Context, id int64) (*BankLink, error)
	GetByHandle(ctx context.Context, handle string) (*BankLink, error)
	ListByUser(ctx context.Context, userID int64) ([]*BankLink, error)
	UpdateFundingSource(ctx context.Context, id int64, ref string) error
	Delete(ctx context.Context, id int64) error
}
