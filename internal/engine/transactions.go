package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
)

// CreateTransaction creates a transaction in a group together with its first
// revision, its snapshot and the given initial shares. A zero billing date
// defaults to today and a zero conversion rate to 1. With in.Commit the
// revision is sealed immediately; otherwise it stays pending and only its
// creator can see or edit it.
func (e *Engine) CreateTransaction(ctx context.Context, userID, groupID int64, in ledger.TransactionInput) (int64, error) {
	var txID int64
	err := e.unit(ctx, "create transaction", userID, func(tx *store.Tx) error {
		if err := e.gate.RequireMember(ctx, tx, groupID, userID, true); err != nil {
			return err
		}
		if !in.Type.Valid() {
			return ledger.NewInvalidCommand("transaction", 0, fmt.Sprintf("unknown transaction type %q", in.Type))
		}
		if err := checkShares(ctx, tx, groupID, in.CreditorShares, in.DebitorShares); err != nil {
			return err
		}

		var err error
		txID, err = tx.CreateTransaction(ctx, groupID, in.Type)
		if err != nil {
			return err
		}
		now := e.clock.Now()
		revID, err := tx.InsertRevision(ctx, txID, userID, now)
		if err != nil {
			return err
		}

		if in.BilledAt.IsZero() {
			in.BilledAt = ledger.DateOf(now)
		}
		if in.CurrencyConversionRate.IsZero() {
			in.CurrencyConversionRate = decimal.NewFromInt(1)
		}

		if err := tx.InsertSnapshot(ctx, ledger.SnapshotRow{
			TransactionID:          txID,
			RevisionID:             revID,
			Description:            ledger.NormalizeText(in.Description),
			Value:                  in.Value,
			CurrencySymbol:         ledger.NormalizeText(in.CurrencySymbol),
			CurrencyConversionRate: in.CurrencyConversionRate,
			BilledAt:               in.BilledAt,
		}); err != nil {
			return err
		}

		if err := insertShares(ctx, tx, ledger.CreditorShare, txID, revID, in.CreditorShares); err != nil {
			return err
		}
		if err := insertShares(ctx, tx, ledger.DebitorShare, txID, revID, in.DebitorShares); err != nil {
			return err
		}

		e.logger.Info("transaction created", "transaction_id", txID, "group_id", groupID, "type", in.Type, "user_id", userID)

		if !in.Commit {
			return nil
		}
		return e.seal(ctx, tx, groupID, userID, txID, revID)
	})
	if err != nil {
		return 0, err
	}
	return txID, nil
}

func insertShares(ctx context.Context, tx *store.Tx, kind ledger.ShareKind, txID, revID int64, shares ledger.Shares) error {
	for _, accountID := range sortedAccountIDs(shares) {
		if err := tx.UpsertShare(ctx, kind, ledger.ShareRow{
			TransactionID: txID,
			RevisionID:    revID,
			AccountID:     accountID,
			Amount:        shares[accountID],
		}); err != nil {
			return err
		}
	}
	return nil
}

// sortedAccountIDs returns the account IDs of shares in ascending order.
func sortedAccountIDs(shares ledger.Shares) []int64 {
	ids := make([]int64, 0, len(shares))
	for id := range shares {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// checkShares verifies every referenced account belongs to the group.
func checkShares(ctx context.Context, tx *store.Tx, groupID int64, families ...ledger.Shares) error {
	for _, shares := range families {
		for _, accountID := range sortedAccountIDs(shares) {
			if err := requireAccount(ctx, tx, groupID, accountID); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpdateTransaction overwrites the fields set in upd in the caller's pending
// change. Unset fields keep their last committed value.
func (e *Engine) UpdateTransaction(ctx context.Context, userID, transactionID int64, upd ledger.DetailsUpdate) error {
	return e.unit(ctx, "update transaction", userID, func(tx *store.Tx) error {
		if _, _, err := e.gate.RequireTransaction(ctx, tx, transactionID, userID, true); err != nil {
			return err
		}
		revID, err := e.getOrCreatePendingChange(ctx, tx, userID, transactionID)
		if err != nil {
			return err
		}
		if upd.Empty() {
			return nil
		}

		if upd.Description != nil {
			d := ledger.NormalizeText(*upd.Description)
			upd.Description = &d
		}
		if upd.CurrencySymbol != nil {
			c := ledger.NormalizeText(*upd.CurrencySymbol)
			upd.CurrencySymbol = &c
		}
		_, err = tx.UpdateSnapshot(ctx, transactionID, revID, upd)
		return err
	})
}

// CreateChange opens the caller's pending change without editing anything
// and returns its revision ID.
func (e *Engine) CreateChange(ctx context.Context, userID, transactionID int64) (int64, error) {
	var revID int64
	err := e.unit(ctx, "create change", userID, func(tx *store.Tx) error {
		if _, _, err := e.gate.RequireTransaction(ctx, tx, transactionID, userID, true); err != nil {
			return err
		}
		var err error
		revID, err = e.getOrCreatePendingChange(ctx, tx, userID, transactionID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return revID, nil
}
