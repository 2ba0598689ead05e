package store

import (
	"context"
	"fmt"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
)

func shareTable(kind ledger.ShareKind) (string, error) {
	switch kind {
	case ledger.CreditorShare:
		return "creditor_shares", nil
	case ledger.DebitorShare:
		return "debitor_shares", nil
	}
	return "", fmt.Errorf("unknown share kind %d", int(kind))
}

// UpsertShare inserts a share or overwrites the amount of an existing one.
// Repeating the call with the same arguments leaves the same single row.
func (t *Tx) UpsertShare(ctx context.Context, kind ledger.ShareKind, row ledger.ShareRow) error {
	table, err := shareTable(kind)
	if err != nil {
		return fmt.Errorf("upsert share: %w", err)
	}

	_, err = t.exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (transaction_id, revision_id, account_id, shares)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (transaction_id, revision_id, account_id) DO UPDATE SET shares = excluded.shares
	`, table), row.TransactionID, row.RevisionID, row.AccountID, row.Amount)
	if err != nil {
		return fmt.Errorf("upsert %s share: %w", kind, err)
	}
	return nil
}

// ReplaceShares deletes every share of the kind at the revision and inserts
// row as the only one.
func (t *Tx) ReplaceShares(ctx context.Context, kind ledger.ShareKind, row ledger.ShareRow) error {
	table, err := shareTable(kind)
	if err != nil {
		return fmt.Errorf("replace shares: %w", err)
	}

	if _, err := t.exec(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE transaction_id = ? AND revision_id = ?
	`, table), row.TransactionID, row.RevisionID); err != nil {
		return fmt.Errorf("replace %s shares: delete: %w", kind, err)
	}

	if _, err := t.exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (transaction_id, revision_id, account_id, shares)
		VALUES (?, ?, ?, ?)
	`, table), row.TransactionID, row.RevisionID, row.AccountID, row.Amount); err != nil {
		return fmt.Errorf("replace %s shares: insert: %w", kind, err)
	}
	return nil
}

// DeleteShare removes one share at the revision. Returns false if it did not
// exist.
func (t *Tx) DeleteShare(ctx context.Context, kind ledger.ShareKind, transactionID, revisionID, accountID int64) (bool, error) {
	table, err := shareTable(kind)
	if err != nil {
		return false, fmt.Errorf("delete share: %w", err)
	}

	res, err := t.exec(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE transaction_id = ? AND revision_id = ? AND account_id = ?
	`, table), transactionID, revisionID, accountID)
	if err != nil {
		return false, fmt.Errorf("delete %s share: %w", kind, err)
	}
	return affected(res)
}

// Shares returns the shares of the kind at the revision ordered by account.
func (t *Tx) Shares(ctx context.Context, kind ledger.ShareKind, transactionID, revisionID int64) ([]ledger.ShareRow, error) {
	table, err := shareTable(kind)
	if err != nil {
		return nil, fmt.Errorf("read shares: %w", err)
	}

	rows, err := t.query(ctx, fmt.Sprintf(`
		SELECT transaction_id, revision_id, account_id, shares
		FROM %s WHERE transaction_id = ? AND revision_id = ?
		ORDER BY account_id ASC
	`, table), transactionID, revisionID)
	if err != nil {
		return nil, fmt.Errorf("query %s shares: %w", kind, err)
	}
	defer rows.Close()

	result := []ledger.ShareRow{}
	for rows.Next() {
		var row ledger.ShareRow
		if err := rows.Scan(&row.TransactionID, &row.RevisionID, &row.AccountID, &row.Amount); err != nil {
			return nil, fmt.Errorf("scan %s share: %w", kind, err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s shares: %w", kind, err)
	}
	return result, nil
}
