package aggregator

import "time"

// ExchangeResult is the outcome of exchanging a one-time public token.
type ExchangeResult struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

// Account is one external account as reported by the aggregator.
type Account struct {
	AccountID        string   `json:"account_id"`
	Name             string   `json:"name"`
	OfficialName     string   `json:"official_name"`
	Mask             string   `json:"mask"`
	Type             string   `json:"type"`
	Subtype          string   `json:"subtype"`
	AvailableBalance *float64 `json:"available_balance"`
	CurrentBalance   *float64 `json:"current_balance"`
}

// AccountsResult is the accounts listing for one access token, including the
// item metadata the accounts hang off.
type AccountsResult struct {
	Accounts      []Account
	ItemID        string
	InstitutionID string
}

// Institution is the bank behind an item.
type Institution struct {
	InstitutionID string `json:"institution_id"`
	Name          string `json:"name"`
}

// ActivityRecord is one externally sourced activity entry for an account.
// Cursor is the opaque sync cursor of the page the entry arrived on.
type ActivityRecord struct {
	ID       string
	Name     string
	Amount   float64
	Pending  bool
	Category string
	Channel  string
	Date     time.Time
	Cursor   string
}

// Wire shapes.

type linkTokenCreateRequest struct {
	ClientUserID string `json:"client_user_id"`
	ClientName   string `json:"client_name"`
	Language     string `json:"language"`
	CountryCodes []string `json:"country_codes"`
	Products     []string `json:"products"`
}

type linkTokenCreateResponse struct {
	LinkToken string `json:"link_token"`
}

type publicTokenExchangeRequest struct {
	PublicToken string `json:"public_token"`
}

type accountsGetRequest struct {
	AccessToken string `json:"access_token"`
}

type accountsGetResponse struct {
	Accounts []Account `json:"accounts"`
	Item     struct {
		ItemID        string `json:"item_id"`
		InstitutionID string `json:"institution_id"`
	} `json:"item"`
}

type institutionsGetRequest struct {
	InstitutionID string   `json:"institution_id"`
	CountryCodes  []string `json:"country_codes"`
}

type institutionsGetResponse struct {
	Institution Institution `json:"institution"`
}

type activitySyncRequest struct {
	AccessToken string `json:"access_token"`
	Cursor      string `json:"cursor,omitempty"`
}

type activitySyncResponse struct {
	Added      []activityEntry `json:"added"`
	HasMore    bool            `json:"has_more"`
	NextCursor string          `json:"next_cursor"`
}

type activityEntry struct {
	TransactionID  string `json:"transaction_id"`
	AccountID      string `json:"account_id"`
	Name           string `json:"name"`
	Amount         float64 `json:"amount"`
	Pending        bool   `json:"pending"`
	PaymentChannel string `json:"payment_channel"`
	Date           string `json:"date"`
	Category       struct {
		Primary string `json:"primary"`
	} `json:"personal_finance_category"`
}

type processorTokenCreateRequest struct {
	AccessToken string `json:"access_token"`
	AccountID   string `json:"account_id"`
	Processor   string `json:"processor"`
}

type processorTokenCreateResponse struct {
	ProcessorToken string `json:"processor_token"`
}

// errorResponse is the aggregator's error envelope.
type errorResponse struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}
