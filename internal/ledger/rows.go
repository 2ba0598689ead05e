package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// NOTE: These are the persisted row shapes of the revision store. The store
// scans into them and the Build* functions in mapping.go flatten them.

// TransactionRow is the immutable identity of a transaction.
type TransactionRow struct {
	ID      int64
	GroupID int64
	Type    TransactionType
}

// RevisionRow is one user's attempt to modify a transaction.
// CommittedAt is nil while the revision is work in progress.
type RevisionRow struct {
	ID            int64
	TransactionID int64
	UserID        int64
	StartedAt     time.Time
	CommittedAt   *time.Time
}

// Committed reports whether the revision has been sealed.
func (r RevisionRow) Committed() bool {
	return r.CommittedAt != nil
}

// SnapshotRow holds the core fields of a transaction at one revision.
type SnapshotRow struct {
	TransactionID          int64
	RevisionID             int64
	Description            string
	Value                  decimal.Decimal
	CurrencySymbol         string
	CurrencyConversionRate decimal.Decimal
	BilledAt               Date
	Deleted                bool
}

// ShareRow is one creditor or debitor share at one revision.
type ShareRow struct {
	TransactionID int64
	RevisionID    int64
	AccountID     int64
	Amount        decimal.Decimal
}

// PositionRow holds the fields of a purchase item at one revision.
type PositionRow struct {
	ItemID          int64
	RevisionID      int64
	Name            string
	Price           decimal.Decimal
	CommunistShares decimal.Decimal
	Deleted         bool
}

// UsageRow is one account's usage share of a purchase item at one revision.
type UsageRow struct {
	ItemID     int64
	RevisionID int64
	AccountID  int64
	Amount     decimal.Decimal
}

// FileRow holds an attachment's metadata at one revision.
type FileRow struct {
	FileID     int64
	RevisionID int64
	Filename   string
	BlobID     int64
	BlobKey    string
	MimeType   string
	Deleted    bool
}
