package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

// Feed entry origins.
const (
	SourceExternal = "external"
	SourceInternal = "internal"
)

// Directions, relative to the bank link being viewed.
const (
	DirectionDebit  = "debit"
	DirectionCredit = "credit"
)

// FeedEntry is the merged, externally visible transaction shape: either an
// externally fetched activity entry or an internally recorded transfer,
// tagged by Source.
type FeedEntry struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Channel   string          `json:"channel"`
	Category  string          `json:"category"`
	Direction string          `json:"direction"`
	Pending   bool            `json:"pending"`
	Source    string          `json:"source"`
}

// AccountView is the externally visible account summary.
type AccountView struct {
	AccountID        string   `json:"account_id"`
	AvailableBalance *float64 `json:"available_balance"`
	CurrentBalance   *float64 `json:"current_balance"`
	InstitutionID    string   `json:"institution_id"`
	Name             string   `json:"name"`
	OfficialName     string   `json:"official_name"`
	Mask             string   `json:"mask"`
	Type             string   `json:"type"`
	Subtype          string   `json:"subtype"`
	BankLinkID       int64    `json:"bank_link_id"`
	PublicHandle     string   `json:"public_handle"`
}

// AccountDetail is one account with its reconciled feed.
type AccountDetail struct {
	Account AccountView `json:"data"`
	Feed    []FeedEntry `json:"transactions"`
}

// ItemFailure reports one external item whose fetch failed during portfolio
// aggregation. Its accounts are excluded from the result, never zeroed in.
type ItemFailure struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

// Portfolio is the aggregate across all of a user's linked accounts.
type Portfolio struct {
	Accounts            []AccountView   `json:"accounts"`
	TotalLinks          int             `json:"total_links"`
	TotalCurrentBalance decimal.Decimal `json:"total_current_balance"`
	FailedItems         []ItemFailure   `json:"failed_items,omitempty"`
}
