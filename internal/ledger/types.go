package ledger

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the closed set of transaction kinds.
type TransactionType string

const (
	// Mimo is a multi-in multi-out transaction with arbitrary creditors and debitors.
	Mimo TransactionType = "mimo"
	// Purchase is paid by creditors and may carry line items.
	Purchase TransactionType = "purchase"
	// Transfer moves money from exactly one creditor to one debitor.
	Transfer TransactionType = "transfer"
)

// TransactionTypes lists every valid TransactionType in declaration order.
var TransactionTypes = []TransactionType{Mimo, Purchase, Transfer}

// ParseTransactionType validates s against the closed set of types.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(s)
	if !t.Valid() {
		return "", NewInvalidCommand("transaction", 0,
			fmt.Sprintf("unknown transaction type %q: must be one of %v", s, TransactionTypes))
	}
	return t, nil
}

// Valid reports whether t is one of the known types.
func (t TransactionType) Valid() bool {
	return slices.Contains(TransactionTypes, t)
}

func (t TransactionType) String() string {
	return string(t)
}

// Shares maps account IDs to their portion of a pooled amount.
type Shares map[int64]decimal.Decimal

// Details is the flattened view of a transaction's core fields and shares
// as of one revision.
type Details struct {
	RevisionID             int64           `json:"revision_id"`
	Description            string          `json:"description"`
	Value                  decimal.Decimal `json:"value"`
	CurrencySymbol         string          `json:"currency_symbol"`
	CurrencyConversionRate decimal.Decimal `json:"currency_conversion_rate"`
	BilledAt               Date            `json:"billed_at"`
	Deleted                bool            `json:"deleted"`
	ChangedBy              int64           `json:"changed_by"`
	CommittedAt            *time.Time      `json:"committed_at"`
	CreditorShares         Shares          `json:"creditor_shares"`
	DebitorShares          Shares          `json:"debitor_shares"`
}

// Position is a purchase line item as of one revision.
type Position struct {
	ID              int64           `json:"id"`
	RevisionID      int64           `json:"revision_id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	CommunistShares decimal.Decimal `json:"communist_shares"`
	Deleted         bool            `json:"deleted"`
	Usages          Shares          `json:"usages"`
}

// Attachment is a file attached to a transaction as of one revision.
type Attachment struct {
	ID         int64  `json:"id"`
	RevisionID int64  `json:"revision_id"`
	Filename   string `json:"filename"`
	BlobKey    string `json:"blob_key"`
	MimeType   string `json:"mime_type"`
	Deleted    bool   `json:"deleted"`
}

// Projection is the complete state of a transaction seen from one point of
// view: either the committed baseline or a user's pending change.
type Projection struct {
	Details   Details      `json:"details"`
	Positions []Position   `json:"positions"`
	Files     []Attachment `json:"files"`
}

// Transaction is what readers get back: the committed projection and, when
// the reader has a work-in-progress revision, their pending projection.
// Either may be nil.
type Transaction struct {
	ID          int64           `json:"id"`
	GroupID     int64           `json:"group_id"`
	Type        TransactionType `json:"type"`
	IsWIP       bool            `json:"is_wip"`
	LastChanged *time.Time      `json:"last_changed"`
	Committed   *Projection     `json:"committed"`
	Pending     *Projection     `json:"pending"`
}

// TransactionInput carries the fields for direct creation of a transaction.
type TransactionInput struct {
	Type                   TransactionType
	Description            string
	Value                  decimal.Decimal
	CurrencySymbol         string
	CurrencyConversionRate decimal.Decimal
	BilledAt               Date
	CreditorShares         Shares
	DebitorShares          Shares
	// Commit seals the first revision immediately instead of leaving it pending.
	Commit bool
}

// DetailsUpdate is a partial edit of the core fields. Nil fields keep the
// value inherited from the last committed revision.
type DetailsUpdate struct {
	Description            *string
	Value                  *decimal.Decimal
	CurrencySymbol         *string
	CurrencyConversionRate *decimal.Decimal
	BilledAt               *Date
}

// Empty reports whether the update sets no field.
func (u DetailsUpdate) Empty() bool {
	return u.Description == nil && u.Value == nil && u.CurrencySymbol == nil &&
		u.CurrencyConversionRate == nil && u.BilledAt == nil
}

// PositionInput carries the fields for a new purchase item.
type PositionInput struct {
	Name            string
	Price           decimal.Decimal
	CommunistShares decimal.Decimal
}

// PositionUpdate is a partial edit of a purchase item.
type PositionUpdate struct {
	Name            *string
	Price           *decimal.Decimal
	CommunistShares *decimal.Decimal
}

// LogEntry is one audit event appended to a group's log.
type LogEntry struct {
	GroupID int64
	UserID  int64
	Type    string
	Message string
}

// Audit event types.
const (
	EventTransactionCommitted = "transaction-committed"
	EventTransactionDeleted   = "transaction-deleted"
)
