package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// EntityKind identifies one family of revision-keyed rows.
type EntityKind int

const (
	// KindSnapshot is the core-field row of a transaction.
	KindSnapshot EntityKind = iota
	// KindCreditorShares are the creditor share rows of a transaction.
	KindCreditorShares
	// KindDebitorShares are the debitor share rows of a transaction.
	KindDebitorShares
	// KindPosition is the field row of a purchase item.
	KindPosition
	// KindUsages are the usage share rows of a purchase item.
	KindUsages
	// KindFile is the metadata row of an attachment.
	KindFile
)

// entitySpec describes where rows of one kind live. Table and column names
// are compile-time constants; nothing user-controlled reaches the SQL text.
type entitySpec struct {
	name    string
	table   string
	key     string   // column holding the owning entity's ID
	columns []string // copied verbatim by Propagate
}

var entities = map[EntityKind]entitySpec{
	KindSnapshot: {
		name:    "snapshot",
		table:   "transaction_history",
		key:     "transaction_id",
		columns: []string{"description", "value", "currency_symbol", "currency_conversion_rate", "billed_at", "deleted"},
	},
	KindCreditorShares: {
		name:    "creditor shares",
		table:   "creditor_shares",
		key:     "transaction_id",
		columns: []string{"account_id", "shares"},
	},
	KindDebitorShares: {
		name:    "debitor shares",
		table:   "debitor_shares",
		key:     "transaction_id",
		columns: []string{"account_id", "shares"},
	},
	KindPosition: {
		name:    "position",
		table:   "purchase_item_history",
		key:     "item_id",
		columns: []string{"name", "price", "communist_shares", "deleted"},
	},
	KindUsages: {
		name:    "usages",
		table:   "purchase_item_usages",
		key:     "item_id",
		columns: []string{"account_id", "share_amount"},
	},
	KindFile: {
		name:    "file",
		table:   "file_history",
		key:     "file_id",
		columns: []string{"filename", "blob_id", "deleted"},
	},
}

func (k EntityKind) String() string {
	if spec, ok := entities[k]; ok {
		return spec.name
	}
	return fmt.Sprintf("EntityKind(%d)", int(k))
}

func specOf(kind EntityKind) (entitySpec, error) {
	spec, ok := entities[kind]
	if !ok {
		return entitySpec{}, fmt.Errorf("unknown entity kind %d", int(kind))
	}
	return spec, nil
}

// Propagate copies every row of the given kind owned by entityID at revision
// from into revision to, unchanged. Returns the number of rows copied.
//
// This is the single copy-on-write primitive: the engine calls it once per
// kind when a WIP revision first touches an entity.
func (t *Tx) Propagate(ctx context.Context, kind EntityKind, entityID, from, to int64) (int64, error) {
	spec, err := specOf(kind)
	if err != nil {
		return 0, fmt.Errorf("propagate: %w", err)
	}

	cols := strings.Join(spec.columns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, revision_id, %[3]s)
		SELECT %[2]s, ?, %[3]s FROM %[1]s
		WHERE %[2]s = ? AND revision_id = ?
	`, spec.table, spec.key, cols)

	res, err := t.exec(ctx, query, to, entityID, from)
	if err != nil {
		return 0, fmt.Errorf("propagate %s: %w", spec.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("propagate %s: rows affected: %w", spec.name, err)
	}
	return n, nil
}

// Exists reports whether revision revisionID holds at least one row of the
// given kind for entityID.
func (t *Tx) Exists(ctx context.Context, kind EntityKind, entityID, revisionID int64) (bool, error) {
	spec, err := specOf(kind)
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT 1 FROM %s WHERE %s = ? AND revision_id = ? LIMIT 1
	`, spec.table, spec.key)

	var one int
	err = t.queryRow(ctx, query, entityID, revisionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", spec.name, err)
	}
	return true, nil
}

// LatestCommitted returns the most recent committed revision that holds a
// row of the given kind for entityID. Latest commit wins; ties on the commit
// timestamp go to the later-inserted revision.
//
// Only meaningful for the anchor kinds (KindSnapshot, KindPosition, KindFile):
// share rows may legitimately be absent from a revision.
func (t *Tx) LatestCommitted(ctx context.Context, kind EntityKind, entityID int64) (id int64, found bool, err error) {
	spec, err := specOf(kind)
	if err != nil {
		return 0, false, fmt.Errorf("latest committed: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT r.id
		FROM transaction_revisions r
		JOIN %s h ON h.revision_id = r.id
		WHERE h.%s = ? AND r.committed_at IS NOT NULL
		ORDER BY r.committed_at DESC, r.id DESC
		LIMIT 1
	`, spec.table, spec.key)

	err = t.queryRow(ctx, query, entityID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("latest committed %s: %w", spec.name, err)
	}
	return id, true, nil
}
