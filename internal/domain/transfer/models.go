// Package transfer covers internally originated money movement between two
// users' linked accounts.
package transfer

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Domain errors
var (
	ErrNotFound = errors.New("transfer not found")
)

// Transfer is one internally recorded money movement. Immutable once created
// except Pending.
type Transfer struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	SenderUserID   int64           `json:"senderUserId"`
	ReceiverUserID int64           `json:"receiverUserId"`
	SenderLinkID   int64           `json:"senderLinkId"`
	ReceiverLinkID int64           `json:"receiverLinkId"`
	Amount         decimal.Decimal `json:"amount"`
	Category       string          `json:"category"`
	Channel        string          `json:"channel"`
	Pending        bool            `json:"pending"`
	OccurredAt     time.Time       `json:"occurredAt"`
}

// CreateParams contains parameters for recording a new transfer. OccurredAt
// defaults to the creation time when zero.
type CreateParams struct {
	Name           string
	SenderUserID   int64
	ReceiverUserID int64
	SenderLinkID   int64
	ReceiverLinkID int64
	Amount         decimal.Decimal
	Category       string
	Channel        string
	Pending        bool
	OccurredAt     time.Time
}
