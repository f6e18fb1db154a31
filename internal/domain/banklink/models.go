// Package banklink defines the persisted link between a user and one external
// bank account.
package banklink

import (
	"errors"
	"time"
)

// Domain errors
var (
	ErrNotFound = errors.New("bank link not found")
)

// BankLink is one linked external account. AccessToken is stored encrypted;
// PublicHandle is the codec output of AccountID and is safe to expose to the
// owning user. FundingSourceRef is present only when the account was
// provisioned on the payment rail. Rows are immutable after creation except
// FundingSourceRef, and are deleted only by explicit user action (transfers
// referencing the link cascade with it).
type BankLink struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"userId"`
	ItemID           string    `json:"itemId"`
	AccountID        string    `json:"accountId"`
	AccessToken      string    `json:"-"`
	FundingSourceRef *string   `json:"-"`
	PublicHandle     string    `json:"publicHandle"`
	BankName         string    `json:"bankName"`
	CreatedAt        time.Time `json:"createdAt"`
}

// FundingSourcePresent reports whether the link is usable for rail transfers.
func (l *BankLink) FundingSourcePresent() bool {
	return l.FundingSourceRef != nil && *l.FundingSourceRef != ""
}

// CreateParams contains the fields persisted for a new bank link.
type CreateParams struct {
	UserID           int64
	ItemID           string
	AccountID        string
	EncryptedToken   string
	FundingSourceRef *string
	PublicHandle     string
	BankName         string
}

// Summary is the externally visible bank-link shape.
type Summary struct {
	ID                   int64  `json:"id"`
	BankName             string `json:"bank_name"`
	Status               string `json:"status"`
	FundingSourcePresent bool   `json:"funding_source_present"`
	PublicHandle         string `json:"public_handle"`
}

func (l *BankLink) Summarize() Summary {
	return Summary{
		ID:                   l.ID,
		BankName:             l.BankName,
		Status:               "linked",
		FundingSourcePresent: l.FundingSourcePresent(),
		PublicHandle:         l.PublicHandle,
	}
}
