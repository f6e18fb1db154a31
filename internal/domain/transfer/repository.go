package transfer

import "context"

// Repository defines the interface for transfer persistence.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Transfer, error)
	GetByID(ctx context.Context, id int64) (*Transfer, error)
	// ListForLink returns transfers where the given link is sender or receiver
	// and the given user is a party.
	ListForLink(ctx context.Context, userID, linkID int64) ([]*Transfer, error)
	ListByUser(ctx context.Context, userID int64) ([]*Transfer, error)
	SetPending(ctx context.Context, id int64, pending bool) error
}
