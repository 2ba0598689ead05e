package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
)

// AddOrChangeShare sets the amount of one share in the caller's pending
// change, inserting it if absent. Repeating the call changes nothing.
func (e *Engine) AddOrChangeShare(ctx context.Context, userID, transactionID int64, kind ledger.ShareKind, accountID int64, amount decimal.Decimal) error {
	return e.unit(ctx, "add or change "+kind.String()+" share", userID, func(tx *store.Tx) error {
		revID, err := e.pendingShareChange(ctx, tx, userID, transactionID, accountID)
		if err != nil {
			return err
		}
		return tx.UpsertShare(ctx, kind, ledger.ShareRow{
			TransactionID: transactionID,
			RevisionID:    revID,
			AccountID:     accountID,
			Amount:        amount,
		})
	})
}

// SwitchShare replaces every share of the kind in the caller's pending
// change with a single one. Only allowed for the types in
// ledger.SwitchTypes(kind).
func (e *Engine) SwitchShare(ctx context.Context, userID, transactionID int64, kind ledger.ShareKind, accountID int64, amount decimal.Decimal) error {
	return e.unit(ctx, "switch "+kind.String()+" share", userID, func(tx *store.Tx) error {
		revID, err := e.pendingShareChange(ctx, tx, userID, transactionID, accountID, ledger.SwitchTypes(kind)...)
		if err != nil {
			return err
		}
		return tx.ReplaceShares(ctx, kind, ledger.ShareRow{
			TransactionID: transactionID,
			RevisionID:    revID,
			AccountID:     accountID,
			Amount:        amount,
		})
	})
}

// DeleteShare removes one share from the caller's pending change.
func (e *Engine) DeleteShare(ctx context.Context, userID, transactionID int64, kind ledger.ShareKind, accountID int64) error {
	return e.unit(ctx, "delete "+kind.String()+" share", userID, func(tx *store.Tx) error {
		revID, err := e.pendingShareChange(ctx, tx, userID, transactionID, accountID)
		if err != nil {
			return err
		}
		ok, err := tx.DeleteShare(ctx, kind, transactionID, revID, accountID)
		if err != nil {
			return err
		}
		if !ok {
			return ledger.NewNotFound("share", accountID, kind.String()+" share not found")
		}
		return nil
	})
}

// pendingShareChange runs the checks common to every share mutation and
// returns the caller's propagated revision.
func (e *Engine) pendingShareChange(ctx context.Context, tx *store.Tx, userID, transactionID, accountID int64, expected ...ledger.TransactionType) (int64, error) {
	groupID, _, err := e.gate.RequireTransaction(ctx, tx, transactionID, userID, true, expected...)
	if err != nil {
		return 0, err
	}
	if err := requireAccount(ctx, tx, groupID, accountID); err != nil {
		return 0, err
	}
	return e.getOrCreatePendingChange(ctx, tx, userID, transactionID)
}
