package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
)

// InsertSnapshot writes the core fields of a transaction at a revision.
func (t *Tx) InsertSnapshot(ctx context.Context, row ledger.SnapshotRow) error {
	_, err := t.exec(ctx, `
		INSERT INTO transaction_history
		(transaction_id, revision_id, description, value, currency_symbol, currency_conversion_rate, billed_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		row.TransactionID,
		row.RevisionID,
		row.Description,
		row.Value,
		row.CurrencySymbol,
		row.CurrencyConversionRate,
		row.BilledAt,
		encodeBool(row.Deleted),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// UpdateSnapshot overwrites the fields set in upd and keeps the others.
// Returns false if no snapshot exists at the revision.
func (t *Tx) UpdateSnapshot(ctx context.Context, transactionID, revisionID int64, upd ledger.DetailsUpdate) (bool, error) {
	res, err := t.exec(ctx, `
		UPDATE transaction_history SET
			description = COALESCE(?, description),
			value = COALESCE(?, value),
			currency_symbol = COALESCE(?, currency_symbol),
			currency_conversion_rate = COALESCE(?, currency_conversion_rate),
			billed_at = COALESCE(?, billed_at)
		WHERE transaction_id = ? AND revision_id = ?
	`,
		nullable(upd.Description),
		nullable(upd.Value),
		nullable(upd.CurrencySymbol),
		nullable(upd.CurrencyConversionRate),
		nullable(upd.BilledAt),
		transactionID,
		revisionID,
	)
	if err != nil {
		return false, fmt.Errorf("update snapshot: %w", err)
	}
	return affected(res)
}

// MarkSnapshotDeleted flags the snapshot at a revision as deleted.
// Returns false if no snapshot exists at the revision.
func (t *Tx) MarkSnapshotDeleted(ctx context.Context, transactionID, revisionID int64) (bool, error) {
	res, err := t.exec(ctx, `
		UPDATE transaction_history SET deleted = 1
		WHERE transaction_id = ? AND revision_id = ?
	`, transactionID, revisionID)
	if err != nil {
		return false, fmt.Errorf("mark snapshot deleted: %w", err)
	}
	return affected(res)
}

// Snapshot reads the core fields of a transaction at a revision.
func (t *Tx) Snapshot(ctx context.Context, transactionID, revisionID int64) (row ledger.SnapshotRow, found bool, err error) {
	var deleted int
	err = t.queryRow(ctx, `
		SELECT transaction_id, revision_id, description, value, currency_symbol,
		       currency_conversion_rate, billed_at, deleted
		FROM transaction_history
		WHERE transaction_id = ? AND revision_id = ?
	`, transactionID, revisionID).Scan(
		&row.TransactionID, &row.RevisionID, &row.Description, &row.Value,
		&row.CurrencySymbol, &row.CurrencyConversionRate, &row.BilledAt, &deleted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.SnapshotRow{}, false, nil
	}
	if err != nil {
		return ledger.SnapshotRow{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	row.Deleted = deleted != 0
	return row, true, nil
}
