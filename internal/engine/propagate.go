package engine

import (
	"context"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
)

// getOrCreatePendingChange returns the caller's revision with the
// transaction's core fields and shares present in it.
//
// On first touch the snapshot and both share families are copied from the
// latest committed revision. A transaction that was never committed can
// only be edited by the owner of its first revision, which already holds a
// snapshot.
func (e *Engine) getOrCreatePendingChange(ctx context.Context, tx *store.Tx, userID, transactionID int64) (int64, error) {
	if err := requireNotDeleted(ctx, tx, transactionID); err != nil {
		return 0, err
	}

	revID, err := e.getOrCreateRevision(ctx, tx, userID, transactionID)
	if err != nil {
		return 0, err
	}

	propagated, err := tx.Exists(ctx, store.KindSnapshot, transactionID, revID)
	if err != nil {
		return 0, err
	}
	if propagated {
		return revID, nil
	}

	base, found, err := tx.LatestCommitted(ctx, store.KindSnapshot, transactionID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ledger.NewInvalidCommand("transaction", transactionID,
			"transaction has no committed state to change")
	}

	for _, kind := range []store.EntityKind{store.KindSnapshot, store.KindCreditorShares, store.KindDebitorShares} {
		if _, err := tx.Propagate(ctx, kind, transactionID, base, revID); err != nil {
			return 0, err
		}
	}
	e.logger.Debug("change propagated", "transaction_id", transactionID, "from", base, "to", revID)
	return revID, nil
}

// getOrCreatePendingItemChange is getOrCreatePendingChange for one purchase
// item: the item's fields and usage shares are copied into the caller's
// revision on first touch. Items deleted in the baseline cannot be changed.
func (e *Engine) getOrCreatePendingItemChange(ctx context.Context, tx *store.Tx, userID, transactionID, itemID int64) (int64, error) {
	if err := requireNotDeleted(ctx, tx, transactionID); err != nil {
		return 0, err
	}

	revID, err := e.getOrCreateRevision(ctx, tx, userID, transactionID)
	if err != nil {
		return 0, err
	}

	pos, found, err := tx.Position(ctx, itemID, revID)
	if err != nil {
		return 0, err
	}
	if found {
		if pos.Deleted {
			return 0, ledger.NewInvalidCommand("item", itemID, "item is deleted")
		}
		return revID, nil
	}

	base, found, err := tx.LatestCommitted(ctx, store.KindPosition, itemID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ledger.NewInvalidCommand("item", itemID, "item has no committed state to change")
	}
	committed, _, err := tx.Position(ctx, itemID, base)
	if err != nil {
		return 0, err
	}
	if committed.Deleted {
		return 0, ledger.NewInvalidCommand("item", itemID, "item is deleted")
	}

	for _, kind := range []store.EntityKind{store.KindPosition, store.KindUsages} {
		if _, err := tx.Propagate(ctx, kind, itemID, base, revID); err != nil {
			return 0, err
		}
	}
	e.logger.Debug("item change propagated", "item_id", itemID, "from", base, "to", revID)
	return revID, nil
}

// getOrCreatePendingFileChange copies an attachment's metadata into the
// caller's revision on first touch. Files only present in another user's
// revision are invisible.
func (e *Engine) getOrCreatePendingFileChange(ctx context.Context, tx *store.Tx, userID, transactionID, fileID int64) (int64, error) {
	if err := requireNotDeleted(ctx, tx, transactionID); err != nil {
		return 0, err
	}

	revID, err := e.getOrCreateRevision(ctx, tx, userID, transactionID)
	if err != nil {
		return 0, err
	}

	f, found, err := tx.FileVersion(ctx, fileID, revID)
	if err != nil {
		return 0, err
	}
	if found {
		if f.Deleted {
			return 0, ledger.NewInvalidCommand("file", fileID, "file is deleted")
		}
		return revID, nil
	}

	base, found, err := tx.LatestCommitted(ctx, store.KindFile, fileID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ledger.NewNotFound("file", fileID, "file not found")
	}
	committed, _, err := tx.FileVersion(ctx, fileID, base)
	if err != nil {
		return 0, err
	}
	if committed.Deleted {
		return 0, ledger.NewInvalidCommand("file", fileID, "file is deleted")
	}

	if _, err := tx.Propagate(ctx, store.KindFile, fileID, base, revID); err != nil {
		return 0, err
	}
	return revID, nil
}
