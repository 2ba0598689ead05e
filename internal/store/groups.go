package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
)

// Membership is a user's standing in a group.
type Membership struct {
	GroupID  int64
	UserID   int64
	CanWrite bool
	IsOwner  bool
}

// LogRecord is a stored group log entry.
type LogRecord struct {
	ID int64
	ledger.LogEntry
	LoggedAt time.Time
}

// CreateUser inserts a user and returns its ID.
func (t *Tx) CreateUser(ctx context.Context, username string) (int64, error) {
	res, err := t.exec(ctx, `INSERT INTO users (username) VALUES (?)`, username)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create user: last insert id: %w", err)
	}
	return id, nil
}

// UserByName resolves a username.
// Returns sql.ErrNoRows if not found.
func (t *Tx) UserByName(ctx context.Context, username string) (int64, error) {
	var id int64
	err := t.queryRow(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&id)
	return id, err
}

// CreateGroup inserts a group and makes its creator a writing owner.
func (t *Tx) CreateGroup(ctx context.Context, name string, createdBy int64, at time.Time) (int64, error) {
	res, err := t.exec(ctx, `
		INSERT INTO groups (name, created_by, created_at) VALUES (?, ?, ?)
	`, name, createdBy, encodeTime(at))
	if err != nil {
		return 0, fmt.Errorf("create group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create group: last insert id: %w", err)
	}
	if err := t.AddMember(ctx, Membership{GroupID: id, UserID: createdBy, CanWrite: true, IsOwner: true}); err != nil {
		return 0, err
	}
	return id, nil
}

// GroupExists reports whether a group with the ID exists.
func (t *Tx) GroupExists(ctx context.Context, groupID int64) (bool, error) {
	var one int
	err := t.queryRow(ctx, `SELECT 1 FROM groups WHERE id = ?`, groupID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("group exists: %w", err)
	}
	return true, nil
}

// AddMember inserts or updates a group membership.
func (t *Tx) AddMember(ctx context.Context, m Membership) error {
	_, err := t.exec(ctx, `
		INSERT INTO group_memberships (group_id, user_id, can_write, is_owner)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (group_id, user_id) DO UPDATE SET
			can_write = excluded.can_write,
			is_owner = excluded.is_owner
	`, m.GroupID, m.UserID, encodeBool(m.CanWrite), encodeBool(m.IsOwner))
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// Member reads a user's membership of a group.
func (t *Tx) Member(ctx context.Context, groupID, userID int64) (m Membership, found bool, err error) {
	var canWrite, isOwner int
	err = t.queryRow(ctx, `
		SELECT group_id, user_id, can_write, is_owner
		FROM group_memberships WHERE group_id = ? AND user_id = ?
	`, groupID, userID).Scan(&m.GroupID, &m.UserID, &canWrite, &isOwner)
	if errors.Is(err, sql.ErrNoRows) {
		return Membership{}, false, nil
	}
	if err != nil {
		return Membership{}, false, fmt.Errorf("read membership: %w", err)
	}
	m.CanWrite = canWrite != 0
	m.IsOwner = isOwner != 0
	return m, true, nil
}

// CreateAccount inserts an account into a group.
func (t *Tx) CreateAccount(ctx context.Context, groupID int64, name string) (int64, error) {
	res, err := t.exec(ctx, `
		INSERT INTO accounts (group_id, name) VALUES (?, ?)
	`, groupID, name)
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create account: last insert id: %w", err)
	}
	return id, nil
}

// AccountGroup returns the group an account belongs to.
// Returns sql.ErrNoRows if the account does not exist.
func (t *Tx) AccountGroup(ctx context.Context, accountID int64) (int64, error) {
	var groupID int64
	err := t.queryRow(ctx, `SELECT group_id FROM accounts WHERE id = ?`, accountID).Scan(&groupID)
	return groupID, err
}

// AppendLog writes an entry to a group's log.
func (t *Tx) AppendLog(ctx context.Context, entry ledger.LogEntry, at time.Time) error {
	_, err := t.exec(ctx, `
		INSERT INTO group_log (group_id, user_id, type, message, logged_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.GroupID, entry.UserID, entry.Type, entry.Message, encodeTime(at))
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// GroupLog returns a group's log in insertion order.
func (t *Tx) GroupLog(ctx context.Context, groupID int64) ([]LogRecord, error) {
	rows, err := t.query(ctx, `
		SELECT id, group_id, user_id, type, message, logged_at
		FROM group_log WHERE group_id = ? ORDER BY id ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group log: %w", err)
	}
	defer rows.Close()

	result := []LogRecord{}
	for rows.Next() {
		var rec LogRecord
		var at int64
		if err := rows.Scan(&rec.ID, &rec.GroupID, &rec.UserID, &rec.Type, &rec.Message, &at); err != nil {
			return nil, fmt.Errorf("scan group log: %w", err)
		}
		rec.LoggedAt = decodeTime(at)
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group log: %w", err)
	}
	return result, nil
}
