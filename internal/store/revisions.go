package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
)

// CreateTransaction inserts a new transaction identity and returns its ID.
func (t *Tx) CreateTransaction(ctx context.Context, groupID int64, typ ledger.TransactionType) (int64, error) {
	res, err := t.exec(ctx, `
		INSERT INTO transactions (group_id, type) VALUES (?, ?)
	`, groupID, string(typ))
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create transaction: last insert id: %w", err)
	}
	return id, nil
}

// Transaction reads a transaction identity.
// Returns sql.ErrNoRows if not found.
func (t *Tx) Transaction(ctx context.Context, id int64) (ledger.TransactionRow, error) {
	var row ledger.TransactionRow
	var typ string
	err := t.queryRow(ctx, `
		SELECT id, group_id, type FROM transactions WHERE id = ?
	`, id).Scan(&row.ID, &row.GroupID, &typ)
	if err != nil {
		return ledger.TransactionRow{}, err
	}
	row.Type = ledger.TransactionType(typ)
	return row, nil
}

// TransactionsInGroup returns every transaction of a group ordered by ID.
func (t *Tx) TransactionsInGroup(ctx context.Context, groupID int64) ([]ledger.TransactionRow, error) {
	rows, err := t.query(ctx, `
		SELECT id, group_id, type FROM transactions WHERE group_id = ? ORDER BY id ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	result := []ledger.TransactionRow{}
	for rows.Next() {
		var row ledger.TransactionRow
		var typ string
		if err := rows.Scan(&row.ID, &row.GroupID, &typ); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		row.Type = ledger.TransactionType(typ)
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return result, nil
}

// InsertRevision starts a new uncommitted revision for (transaction, user).
//
// Fails with a constraint error if the user already has an uncommitted
// revision for the transaction (single-WIP index).
func (t *Tx) InsertRevision(ctx context.Context, transactionID, userID int64, startedAt time.Time) (int64, error) {
	res, err := t.exec(ctx, `
		INSERT INTO transaction_revisions (transaction_id, user_id, started_at)
		VALUES (?, ?, ?)
	`, transactionID, userID, encodeTime(startedAt))
	if err != nil {
		return 0, fmt.Errorf("insert revision: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert revision: last insert id: %w", err)
	}
	return id, nil
}

// OpenRevision returns the user's uncommitted revision for a transaction.
func (t *Tx) OpenRevision(ctx context.Context, transactionID, userID int64) (id int64, found bool, err error) {
	err = t.queryRow(ctx, `
		SELECT id FROM transaction_revisions
		WHERE transaction_id = ? AND user_id = ? AND committed_at IS NULL
	`, transactionID, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("open revision: %w", err)
	}
	return id, true, nil
}

// Revision reads a single revision.
// Returns sql.ErrNoRows if not found.
func (t *Tx) Revision(ctx context.Context, id int64) (ledger.RevisionRow, error) {
	var rev ledger.RevisionRow
	var started int64
	var committed sql.NullInt64
	err := t.queryRow(ctx, `
		SELECT id, transaction_id, user_id, started_at, committed_at
		FROM transaction_revisions WHERE id = ?
	`, id).Scan(&rev.ID, &rev.TransactionID, &rev.UserID, &started, &committed)
	if err != nil {
		return ledger.RevisionRow{}, err
	}
	rev.StartedAt = decodeTime(started)
	rev.CommittedAt = decodeNullTime(committed)
	return rev, nil
}

// HasCommittedRevision reports whether any revision of the transaction has
// been committed.
func (t *Tx) HasCommittedRevision(ctx context.Context, transactionID int64) (bool, error) {
	var n int
	err := t.queryRow(ctx, `
		SELECT COUNT(*) FROM transaction_revisions
		WHERE transaction_id = ? AND committed_at IS NOT NULL
	`, transactionID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count committed revisions: %w", err)
	}
	return n > 0, nil
}

// CommitRevision seals an uncommitted revision. Returns false if the revision
// does not exist or is already committed.
func (t *Tx) CommitRevision(ctx context.Context, revisionID int64, at time.Time) (bool, error) {
	res, err := t.exec(ctx, `
		UPDATE transaction_revisions SET committed_at = ?
		WHERE id = ? AND committed_at IS NULL
	`, encodeTime(at), revisionID)
	if err != nil {
		return false, fmt.Errorf("commit revision: %w", err)
	}
	return affected(res)
}

// DeleteRevision removes an uncommitted revision together with every row it
// owns. Committed revisions are never deleted; returns false for them.
func (t *Tx) DeleteRevision(ctx context.Context, revisionID int64) (bool, error) {
	res, err := t.exec(ctx, `
		DELETE FROM transaction_revisions WHERE id = ? AND committed_at IS NULL
	`, revisionID)
	if err != nil {
		return false, fmt.Errorf("delete revision: %w", err)
	}
	return affected(res)
}

// LastChanged returns the latest commit timestamp of any revision of the
// transaction, or nil if it was never committed. This is the value the sync
// cursor is compared against.
func (t *Tx) LastChanged(ctx context.Context, transactionID int64) (*time.Time, error) {
	var v sql.NullInt64
	err := t.queryRow(ctx, `
		SELECT MAX(committed_at) FROM transaction_revisions WHERE transaction_id = ?
	`, transactionID).Scan(&v)
	if err != nil {
		return nil, fmt.Errorf("last changed: %w", err)
	}
	return decodeNullTime(v), nil
}
