package linking

// Saga states, carried on logs and spans while a linking attempt runs.
const (
	StateExchanging   = "EXCHANGING"
	StateEnumerating  = "ENUMERATING"
	StateClassifying  = "CLASSIFYING"
	StateProvisioning = "PROVISIONING"
	StatePersisting   = "PERSISTING"
	StateDone         = "DONE"
	StateFailed       = "FAILED"
)

// Outcome statuses per account.
const (
	StatusLinked = "linked"
	StatusFailed = "failed"
)

// Outcome is the per-account result of a linking attempt.
type Outcome struct {
	AccountID string `json:"account_id"`
	BankName  string `json:"bank_name"`
	Status    string `json:"status"`
	LinkID    int64  `json:"link_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of one full linking attempt. NoAccounts marks the
// terminal "nothing to link" case, which is not an error.
type Result struct {
	ItemID     string    `json:"item_id"`
	NoAccounts bool      `json:"no_accounts,omitempty"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Linked counts the accounts that ended up persisted.
func (r *Result) Linked() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusLinked {
			n++
		}
	}
	return n
}

// Rail-eligibility classification: only transactable deposit accounts can be
// provisioned as ACH funding sources.
const depositoryType = "depository"

var transactableDepositSubtypes = map[string]struct{}{
	"checking": {},
	"savings":  {},
}

func railEligible(accountType, subtype string) bool {
	if accountType != depositoryType {
		return false
	}
	_, ok := transactableDepositSubtypes[subtype]
	return ok
}
