package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
)

// CreateItem inserts a new purchase item identity for a transaction.
func (t *Tx) CreateItem(ctx context.Context, transactionID int64) (int64, error) {
	res, err := t.exec(ctx, `
		INSERT INTO purchase_items (transaction_id) VALUES (?)
	`, transactionID)
	if err != nil {
		return 0, fmt.Errorf("create item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create item: last insert id: %w", err)
	}
	return id, nil
}

// ItemTransaction returns the transaction owning a purchase item.
// Returns sql.ErrNoRows if the item does not exist.
func (t *Tx) ItemTransaction(ctx context.Context, itemID int64) (int64, error) {
	var id int64
	err := t.queryRow(ctx, `
		SELECT transaction_id FROM purchase_items WHERE id = ?
	`, itemID).Scan(&id)
	return id, err
}

// Items returns the IDs of all purchase items of a transaction.
func (t *Tx) Items(ctx context.Context, transactionID int64) ([]int64, error) {
	rows, err := t.query(ctx, `
		SELECT id FROM purchase_items WHERE transaction_id = ? ORDER BY id ASC
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	return ids, nil
}

// InsertPosition writes the fields of a purchase item at a revision.
func (t *Tx) InsertPosition(ctx context.Context, row ledger.PositionRow) error {
	_, err := t.exec(ctx, `
		INSERT INTO purchase_item_history
		(item_id, revision_id, name, price, communist_shares, deleted)
		VALUES (?, ?, ?, ?, ?, ?)
	`, row.ItemID, row.RevisionID, row.Name, row.Price, row.CommunistShares, encodeBool(row.Deleted))
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// UpdatePosition overwrites the fields set in upd and keeps the others.
// Returns false if the item has no row at the revision.
func (t *Tx) UpdatePosition(ctx context.Context, itemID, revisionID int64, upd ledger.PositionUpdate) (bool, error) {
	res, err := t.exec(ctx, `
		UPDATE purchase_item_history SET
			name = COALESCE(?, name),
			price = COALESCE(?, price),
			communist_shares = COALESCE(?, communist_shares)
		WHERE item_id = ? AND revision_id = ?
	`, nullable(upd.Name), nullable(upd.Price), nullable(upd.CommunistShares), itemID, revisionID)
	if err != nil {
		return false, fmt.Errorf("update position: %w", err)
	}
	return affected(res)
}

// MarkPositionDeleted flags a purchase item as deleted at a revision.
func (t *Tx) MarkPositionDeleted(ctx context.Context, itemID, revisionID int64) (bool, error) {
	res, err := t.exec(ctx, `
		UPDATE purchase_item_history SET deleted = 1 WHERE item_id = ? AND revision_id = ?
	`, itemID, revisionID)
	if err != nil {
		return false, fmt.Errorf("mark position deleted: %w", err)
	}
	return affected(res)
}

// Position reads the fields of a purchase item at a revision.
func (t *Tx) Position(ctx context.Context, itemID, revisionID int64) (row ledger.PositionRow, found bool, err error) {
	var deleted int
	err = t.queryRow(ctx, `
		SELECT item_id, revision_id, name, price, communist_shares, deleted
		FROM purchase_item_history WHERE item_id = ? AND revision_id = ?
	`, itemID, revisionID).Scan(&row.ItemID, &row.RevisionID, &row.Name, &row.Price, &row.CommunistShares, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.PositionRow{}, false, nil
	}
	if err != nil {
		return ledger.PositionRow{}, false, fmt.Errorf("read position: %w", err)
	}
	row.Deleted = deleted != 0
	return row, true, nil
}

// UpsertUsage inserts a usage share or overwrites the amount of an existing one.
func (t *Tx) UpsertUsage(ctx context.Context, row ledger.UsageRow) error {
	_, err := t.exec(ctx, `
		INSERT INTO purchase_item_usages (item_id, revision_id, account_id, share_amount)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (item_id, revision_id, account_id) DO UPDATE SET share_amount = excluded.share_amount
	`, row.ItemID, row.RevisionID, row.AccountID, row.Amount)
	if err != nil {
		return fmt.Errorf("upsert usage: %w", err)
	}
	return nil
}

// DeleteUsage removes one usage share at the revision. Returns false if it
// did not exist.
func (t *Tx) DeleteUsage(ctx context.Context, itemID, revisionID, accountID int64) (bool, error) {
	res, err := t.exec(ctx, `
		DELETE FROM purchase_item_usages WHERE item_id = ? AND revision_id = ? AND account_id = ?
	`, itemID, revisionID, accountID)
	if err != nil {
		return false, fmt.Errorf("delete usage: %w", err)
	}
	return affected(res)
}

// Usages returns the usage shares of an item at a revision ordered by account.
func (t *Tx) Usages(ctx context.Context, itemID, revisionID int64) ([]ledger.UsageRow, error) {
	rows, err := t.query(ctx, `
		SELECT item_id, revision_id, account_id, share_amount
		FROM purchase_item_usages WHERE item_id = ? AND revision_id = ?
		ORDER BY account_id ASC
	`, itemID, revisionID)
	if err != nil {
		return nil, fmt.Errorf("query usages: %w", err)
	}
	defer rows.Close()

	result := []ledger.UsageRow{}
	for rows.Next() {
		var row ledger.UsageRow
		if err := rows.Scan(&row.ItemID, &row.RevisionID, &row.AccountID, &row.Amount); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usages: %w", err)
	}
	return result, nil
}
