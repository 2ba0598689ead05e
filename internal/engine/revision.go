package engine

import (
	"context"
	"fmt"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
)

// getOrCreateRevision returns the caller's uncommitted revision for the
// transaction, inserting one if absent. Repeated calls within a unit return
// the same ID.
func (e *Engine) getOrCreateRevision(ctx context.Context, tx *store.Tx, userID, transactionID int64) (int64, error) {
	id, found, err := tx.OpenRevision(ctx, transactionID, userID)
	if err != nil {
		return 0, err
	}
	if found {
		return id, nil
	}

	id, err = tx.InsertRevision(ctx, transactionID, userID, e.clock.Now())
	if err != nil {
		return 0, err
	}
	e.logger.Debug("revision started", "transaction_id", transactionID, "user_id", userID, "revision_id", id)
	return id, nil
}

// committedSnapshot returns the latest committed snapshot of a transaction.
func committedSnapshot(ctx context.Context, tx *store.Tx, transactionID int64) (ledger.SnapshotRow, bool, error) {
	revID, found, err := tx.LatestCommitted(ctx, store.KindSnapshot, transactionID)
	if err != nil || !found {
		return ledger.SnapshotRow{}, false, err
	}
	snap, found, err := tx.Snapshot(ctx, transactionID, revID)
	if err != nil {
		return ledger.SnapshotRow{}, false, err
	}
	if !found {
		return ledger.SnapshotRow{}, false, fmt.Errorf("snapshot of revision %d vanished", revID)
	}
	return snap, true, nil
}

// requireNotDeleted fails if the committed state of the transaction is
// deleted. A transaction without committed state passes.
func requireNotDeleted(ctx context.Context, tx *store.Tx, transactionID int64) error {
	snap, found, err := committedSnapshot(ctx, tx, transactionID)
	if err != nil {
		return err
	}
	if found && snap.Deleted {
		return ledger.NewInvalidCommand("transaction", transactionID, "transaction is deleted")
	}
	return nil
}

// requireBaseline fails unless the caller can see some state of the
// transaction to attach new entities to: a live committed snapshot or a
// snapshot in their own revision.
func requireBaseline(ctx context.Context, tx *store.Tx, transactionID, revisionID int64) error {
	if err := requireNotDeleted(ctx, tx, transactionID); err != nil {
		return err
	}

	own, err := tx.Exists(ctx, store.KindSnapshot, transactionID, revisionID)
	if err != nil || own {
		return err
	}
	_, found, err := tx.LatestCommitted(ctx, store.KindSnapshot, transactionID)
	if err != nil {
		return err
	}
	if !found {
		return ledger.NewInvalidCommand("transaction", transactionID, "transaction has no committed state")
	}
	return nil
}
