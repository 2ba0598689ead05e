// Package access provides the reference PermissionGate and AuditLog backed
// by the group tables of the revision store.
package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
)

// Gate checks group membership and write capability.
//
// Transactions and items of groups the user is not a member of are reported
// as not found rather than denied, so their existence does not leak.
type Gate struct{}

// RequireMember fails unless the user belongs to the group, and when write
// is set, may write to it. Owners may always write.
func (Gate) RequireMember(ctx context.Context, tx *store.Tx, groupID, userID int64, write bool) error {
	m, found, err := tx.Member(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !found {
		return ledger.NewNotFound("group", groupID, "group not found")
	}
	if write && !m.CanWrite && !m.IsOwner {
		return ledger.NewPermissionDenied("group", groupID, "user may not write to group")
	}
	return nil
}

// RequireTransaction resolves the transaction's group and checks the user
// against it. A non-empty expected restricts the transaction type.
func (g Gate) RequireTransaction(ctx context.Context, tx *store.Tx, transactionID, userID int64, write bool,
	expected ...ledger.TransactionType) (int64, ledger.TransactionType, error) {
	row, err := tx.Transaction(ctx, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", ledger.NewNotFound("transaction", transactionID, "transaction not found")
	}
	if err != nil {
		return 0, "", fmt.Errorf("resolve transaction: %w", err)
	}

	if err := g.RequireMember(ctx, tx, row.GroupID, userID, write); err != nil {
		if ledger.IsNotFound(err) {
			return 0, "", ledger.NewNotFound("transaction", transactionID, "transaction not found")
		}
		return 0, "", err
	}

	if len(expected) > 0 && !slices.Contains(expected, row.Type) {
		return 0, "", ledger.NewInvalidCommand("transaction", transactionID,
			fmt.Sprintf("operation not allowed on %s transactions, requires one of %v", row.Type, expected))
	}
	return row.GroupID, row.Type, nil
}

// RequireItem resolves the item's transaction and checks the user against
// its group.
func (g Gate) RequireItem(ctx context.Context, tx *store.Tx, itemID, userID int64, write bool) (int64, int64, error) {
	transactionID, err := tx.ItemTransaction(ctx, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ledger.NewNotFound("item", itemID, "item not found")
	}
	if err != nil {
		return 0, 0, fmt.Errorf("resolve item: %w", err)
	}

	groupID, _, err := g.RequireTransaction(ctx, tx, transactionID, userID, write)
	if err != nil {
		if ledger.IsNotFound(err) {
			return 0, 0, ledger.NewNotFound("item", itemID, "item not found")
		}
		return 0, 0, err
	}
	return groupID, transactionID, nil
}

// Clock supplies log timestamps.
type Clock interface {
	Now() time.Time
}

// GroupLog appends audit events to the group_log table.
type GroupLog struct {
	clock Clock
}

// NewGroupLog creates a GroupLog stamping entries with clock.
func NewGroupLog(clock Clock) *GroupLog {
	return &GroupLog{clock: clock}
}

// Append writes one entry in the caller's unit of work.
func (l *GroupLog) Append(ctx context.Context, tx *store.Tx, entry ledger.LogEntry) error {
	return tx.AppendLog(ctx, entry, l.clock.Now())
}
