package engine

import (
	"context"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
)

// PermissionGate answers membership, write-capability and type queries.
//
// Every method runs inside the caller's unit of work and returns a
// *ledger.Error:
//   - NOT_FOUND if the entity does not exist or is invisible to the user
//   - PERMISSION_DENIED if write is requested and the user lacks it
//   - INVALID_COMMAND if the transaction type is not in expected
type PermissionGate interface {
	RequireMember(ctx context.Context, tx *store.Tx, groupID, userID int64, write bool) error

	// RequireTransaction accepts any type when expected is empty.
	RequireTransaction(ctx context.Context, tx *store.Tx, transactionID, userID int64, write bool,
		expected ...ledger.TransactionType) (groupID int64, typ ledger.TransactionType, err error)

	RequireItem(ctx context.Context, tx *store.Tx, itemID, userID int64, write bool) (groupID, transactionID int64, err error)
}

// AuditLog records lifecycle events. Append runs in the same unit of work;
// an error aborts the operation.
type AuditLog interface {
	Append(ctx context.Context, tx *store.Tx, entry ledger.LogEntry) error
}

// AttachmentPolicy validates uploads and names stored blobs.
// Implemented by attachment.Validator.
type AttachmentPolicy interface {
	Validate(filename string, content []byte) (mimeType string, err error)
	NewKey() string
}
