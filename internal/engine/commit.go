package engine

import (
	"context"
	"fmt"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
)

// Commit seals the caller's pending change, making it the committed state.
func (e *Engine) Commit(ctx context.Context, userID, transactionID int64) error {
	return e.unit(ctx, "commit transaction", userID, func(tx *store.Tx) error {
		groupID, _, err := e.gate.RequireTransaction(ctx, tx, transactionID, userID, true)
		if err != nil {
			return err
		}

		revID, found, err := tx.OpenRevision(ctx, transactionID, userID)
		if err != nil {
			return err
		}
		if !found {
			return ledger.NewInvalidCommand("transaction", transactionID, "no pending change to commit")
		}
		if err := requireNotDeleted(ctx, tx, transactionID); err != nil {
			return err
		}

		return e.seal(ctx, tx, groupID, userID, transactionID, revID)
	})
}

// seal commits a revision and records it in the audit log.
func (e *Engine) seal(ctx context.Context, tx *store.Tx, groupID, userID, transactionID, revID int64) error {
	ok, err := tx.CommitRevision(ctx, revID, e.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return ledger.NewInvalidCommand("transaction", transactionID, "revision is already committed")
	}

	if err := e.audit.Append(ctx, tx, ledger.LogEntry{
		GroupID: groupID,
		UserID:  userID,
		Type:    ledger.EventTransactionCommitted,
		Message: fmt.Sprintf("committed transaction %d", transactionID),
	}); err != nil {
		return err
	}

	e.logger.Info("transaction committed", "transaction_id", transactionID, "revision_id", revID, "user_id", userID)
	return nil
}

// Discard erases the caller's pending change. The first revision of a
// transaction cannot be discarded because nothing committed precedes it.
func (e *Engine) Discard(ctx context.Context, userID, transactionID int64) error {
	return e.unit(ctx, "discard transaction", userID, func(tx *store.Tx) error {
		if _, _, err := e.gate.RequireTransaction(ctx, tx, transactionID, userID, true); err != nil {
			return err
		}

		revID, found, err := tx.OpenRevision(ctx, transactionID, userID)
		if err != nil {
			return err
		}
		if !found {
			return ledger.NewInvalidCommand("transaction", transactionID, "no pending change to discard")
		}

		committed, err := tx.HasCommittedRevision(ctx, transactionID)
		if err != nil {
			return err
		}
		if !committed {
			return ledger.NewInvalidCommand("transaction", transactionID,
				"cannot discard the first revision of a transaction")
		}

		if _, err := tx.DeleteRevision(ctx, revID); err != nil {
			return err
		}
		e.logger.Info("change discarded", "transaction_id", transactionID, "revision_id", revID, "user_id", userID)
		return nil
	})
}

// Delete marks a transaction deleted and commits that immediately.
//
// A never-committed transaction can only be deleted by the owner of its
// first revision; the deletion seals that revision. Otherwise the deletion
// goes through the caller's pending change, which is committed along with it.
func (e *Engine) Delete(ctx context.Context, userID, transactionID int64) error {
	return e.unit(ctx, "delete transaction", userID, func(tx *store.Tx) error {
		groupID, _, err := e.gate.RequireTransaction(ctx, tx, transactionID, userID, true)
		if err != nil {
			return err
		}

		snap, committed, err := committedSnapshot(ctx, tx, transactionID)
		if err != nil {
			return err
		}

		var revID int64
		if committed {
			if snap.Deleted {
				return ledger.NewInvalidCommand("transaction", transactionID, "transaction is already deleted")
			}
			if revID, err = e.getOrCreatePendingChange(ctx, tx, userID, transactionID); err != nil {
				return err
			}
		} else {
			var found bool
			revID, found, err = tx.OpenRevision(ctx, transactionID, userID)
			if err != nil {
				return err
			}
			if !found {
				return ledger.NewInvalidCommand("transaction", transactionID,
					"only the creator can delete a transaction that was never committed")
			}
		}

		marked, err := tx.MarkSnapshotDeleted(ctx, transactionID, revID)
		if err != nil {
			return err
		}
		if !marked {
			return ledger.NewInvalidCommand("transaction", transactionID, "pending change has no snapshot to delete")
		}
		if _, err := tx.CommitRevision(ctx, revID, e.clock.Now()); err != nil {
			return err
		}

		if err := e.audit.Append(ctx, tx, ledger.LogEntry{
			GroupID: groupID,
			UserID:  userID,
			Type:    ledger.EventTransactionDeleted,
			Message: fmt.Sprintf("deleted transaction %d", transactionID),
		}); err != nil {
			return err
		}

		e.logger.Info("transaction deleted", "transaction_id", transactionID, "revision_id", revID, "user_id", userID)
		return nil
	})
}
