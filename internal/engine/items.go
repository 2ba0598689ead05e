package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
)

// CreatePurchaseItem adds a line item to a purchase in the caller's
// revision and returns its ID. The item stays pending until commit.
func (e *Engine) CreatePurchaseItem(ctx context.Context, userID, transactionID int64, in ledger.PositionInput) (int64, error) {
	var itemID int64
	err := e.unit(ctx, "create purchase item", userID, func(tx *store.Tx) error {
		if _, _, err := e.gate.RequireTransaction(ctx, tx, transactionID, userID, true, ledger.ItemTypes()...); err != nil {
			return err
		}
		revID, err := e.getOrCreateRevision(ctx, tx, userID, transactionID)
		if err != nil {
			return err
		}
		if err := requireBaseline(ctx, tx, transactionID, revID); err != nil {
			return err
		}

		itemID, err = tx.CreateItem(ctx, transactionID)
		if err != nil {
			return err
		}
		return tx.InsertPosition(ctx, ledger.PositionRow{
			ItemID:          itemID,
			RevisionID:      revID,
			Name:            ledger.NormalizeText(in.Name),
			Price:           in.Price,
			CommunistShares: in.CommunistShares,
		})
	})
	if err != nil {
		return 0, err
	}
	return itemID, nil
}

// UpdatePurchaseItem overwrites the fields set in upd in the caller's
// pending change of the item.
func (e *Engine) UpdatePurchaseItem(ctx context.Context, userID, itemID int64, upd ledger.PositionUpdate) error {
	return e.unit(ctx, "update purchase item", userID, func(tx *store.Tx) error {
		revID, err := e.pendingItemChange(ctx, tx, userID, itemID, 0)
		if err != nil {
			return err
		}
		if upd.Name != nil {
			n := ledger.NormalizeText(*upd.Name)
			upd.Name = &n
		}
		_, err = tx.UpdatePosition(ctx, itemID, revID, upd)
		return err
	})
}

// DeletePurchaseItem marks the item deleted in the caller's pending change.
func (e *Engine) DeletePurchaseItem(ctx context.Context, userID, itemID int64) error {
	return e.unit(ctx, "delete purchase item", userID, func(tx *store.Tx) error {
		revID, err := e.pendingItemChange(ctx, tx, userID, itemID, 0)
		if err != nil {
			return err
		}
		_, err = tx.MarkPositionDeleted(ctx, itemID, revID)
		return err
	})
}

// AddOrChangeItemUsage sets one account's usage share of an item.
func (e *Engine) AddOrChangeItemUsage(ctx context.Context, userID, itemID, accountID int64, amount decimal.Decimal) error {
	return e.unit(ctx, "add or change item usage", userID, func(tx *store.Tx) error {
		revID, err := e.pendingItemChange(ctx, tx, userID, itemID, accountID)
		if err != nil {
			return err
		}
		return tx.UpsertUsage(ctx, ledger.UsageRow{
			ItemID:     itemID,
			RevisionID: revID,
			AccountID:  accountID,
			Amount:     amount,
		})
	})
}

// DeleteItemUsage removes one account's usage share of an item.
func (e *Engine) DeleteItemUsage(ctx context.Context, userID, itemID, accountID int64) error {
	return e.unit(ctx, "delete item usage", userID, func(tx *store.Tx) error {
		revID, err := e.pendingItemChange(ctx, tx, userID, itemID, accountID)
		if err != nil {
			return err
		}
		ok, err := tx.DeleteUsage(ctx, itemID, revID, accountID)
		if err != nil {
			return err
		}
		if !ok {
			return ledger.NewNotFound("usage", accountID, "item usage not found")
		}
		return nil
	})
}

// pendingItemChange checks write access to the item and, when accountID is
// non-zero, the account's group, then returns the caller's propagated
// revision of the item.
func (e *Engine) pendingItemChange(ctx context.Context, tx *store.Tx, userID, itemID, accountID int64) (int64, error) {
	groupID, transactionID, err := e.gate.RequireItem(ctx, tx, itemID, userID, true)
	if err != nil {
		return 0, err
	}
	if accountID != 0 {
		if err := requireAccount(ctx, tx, groupID, accountID); err != nil {
			return 0, err
		}
	}
	return e.getOrCreatePendingItemChange(ctx, tx, userID, transactionID, itemID)
}
