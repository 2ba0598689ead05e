package engine

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
)

// ListOptions narrows List to what changed since the client last synced.
type ListOptions struct {
	// MinChanged is the sync cursor: the largest LastChanged the client has
	// seen. Nil lists every transaction of the group.
	MinChanged *time.Time

	// ExtraIDs are always included while a cursor is set, so a client can
	// fetch transactions it learned about elsewhere.
	ExtraIDs []int64
}

// Get returns a transaction's committed projection and, if the caller has a
// pending change, the pending projection layered over it.
func (e *Engine) Get(ctx context.Context, userID, transactionID int64) (ledger.Transaction, error) {
	var out ledger.Transaction
	err := e.unit(ctx, "get transaction", userID, func(tx *store.Tx) error {
		if _, _, err := e.gate.RequireTransaction(ctx, tx, transactionID, userID, false); err != nil {
			return err
		}
		row, err := tx.Transaction(ctx, transactionID)
		if err != nil {
			return err
		}
		view, err := e.buildTransaction(ctx, tx, userID, row)
		if err != nil {
			return err
		}
		out = view
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	return out, nil
}

// List returns the group's transactions ordered by ID.
//
// With a cursor, a transaction is included when the caller has a pending
// change for it, when it changed at or after the cursor, or when its ID is
// in opts.ExtraIDs. The whole read sees one consistent state of the store.
func (e *Engine) List(ctx context.Context, userID, groupID int64, opts ListOptions) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	err := e.unit(ctx, "list transactions", userID, func(tx *store.Tx) error {
		if err := e.gate.RequireMember(ctx, tx, groupID, userID, false); err != nil {
			return err
		}
		rows, err := tx.TransactionsInGroup(ctx, groupID)
		if err != nil {
			return err
		}

		out = make([]ledger.Transaction, 0, len(rows))
		for _, row := range rows {
			view, err := e.buildTransaction(ctx, tx, userID, row)
			if err != nil {
				return err
			}
			if opts.MinChanged != nil && !changedSince(view, *opts.MinChanged, opts.ExtraIDs) {
				continue
			}
			out = append(out, view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func changedSince(view ledger.Transaction, cursor time.Time, extra []int64) bool {
	if view.IsWIP || slices.Contains(extra, view.ID) {
		return true
	}
	return view.LastChanged != nil && !view.LastChanged.Before(cursor)
}

func (e *Engine) buildTransaction(ctx context.Context, tx *store.Tx, userID int64, row ledger.TransactionRow) (ledger.Transaction, error) {
	lastChanged, err := tx.LastChanged(ctx, row.ID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	wip, open, err := tx.OpenRevision(ctx, row.ID, userID)
	if err != nil {
		return ledger.Transaction{}, err
	}

	committed, err := committedProjection(ctx, tx, row.ID)
	if err != nil {
		return ledger.Transaction{}, err
	}

	var pending *ledger.Projection
	if open {
		pending, err = pendingProjection(ctx, tx, row.ID, wip, committed)
		if err != nil {
			return ledger.Transaction{}, err
		}
	}

	return ledger.Transaction{
		ID:          row.ID,
		GroupID:     row.GroupID,
		Type:        row.Type,
		IsWIP:       open,
		LastChanged: lastChanged,
		Committed:   committed,
		Pending:     pending,
	}, nil
}

// committedProjection flattens the latest committed revision of every
// entity of the transaction. Nil if the transaction was never committed.
func committedProjection(ctx context.Context, tx *store.Tx, transactionID int64) (*ledger.Projection, error) {
	base, found, err := tx.LatestCommitted(ctx, store.KindSnapshot, transactionID)
	if err != nil || !found {
		return nil, err
	}
	details, _, err := detailsAt(ctx, tx, transactionID, base)
	if err != nil {
		return nil, err
	}

	p := &ledger.Projection{Details: details, Positions: []ledger.Position{}, Files: []ledger.Attachment{}}

	items, err := tx.Items(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	for _, itemID := range items {
		rev, found, err := tx.LatestCommitted(ctx, store.KindPosition, itemID)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		pos, _, err := positionAt(ctx, tx, itemID, rev)
		if err != nil {
			return nil, err
		}
		p.Positions = append(p.Positions, pos)
	}

	files, err := tx.Files(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	for _, fileID := range files {
		rev, found, err := tx.LatestCommitted(ctx, store.KindFile, fileID)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		f, _, err := tx.FileVersion(ctx, fileID, rev)
		if err != nil {
			return nil, err
		}
		p.Files = append(p.Files, ledger.BuildAttachment(f))
	}

	return p, nil
}

// pendingProjection flattens the caller's revision layered over the
// committed projection: entities the revision touched replace their
// committed versions, everything else shows through.
func pendingProjection(ctx context.Context, tx *store.Tx, transactionID, wip int64, committed *ledger.Projection) (*ledger.Projection, error) {
	details, found, err := detailsAt(ctx, tx, transactionID, wip)
	if err != nil {
		return nil, err
	}
	if !found {
		if committed == nil {
			return nil, nil
		}
		details = committed.Details
		details.CreditorShares = maps.Clone(committed.Details.CreditorShares)
		details.DebitorShares = maps.Clone(committed.Details.DebitorShares)
	}

	p := &ledger.Projection{Details: details, Positions: []ledger.Position{}, Files: []ledger.Attachment{}}

	committedPositions := map[int64]ledger.Position{}
	committedFiles := map[int64]ledger.Attachment{}
	if committed != nil {
		for _, pos := range committed.Positions {
			committedPositions[pos.ID] = pos
		}
		for _, f := range committed.Files {
			committedFiles[f.ID] = f
		}
	}

	items, err := tx.Items(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	for _, itemID := range items {
		pos, found, err := positionAt(ctx, tx, itemID, wip)
		if err != nil {
			return nil, err
		}
		if !found {
			var ok bool
			if pos, ok = committedPositions[itemID]; !ok {
				continue
			}
			pos.Usages = maps.Clone(pos.Usages)
		}
		p.Positions = append(p.Positions, pos)
	}

	files, err := tx.Files(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	for _, fileID := range files {
		row, found, err := tx.FileVersion(ctx, fileID, wip)
		if err != nil {
			return nil, err
		}
		if found {
			p.Files = append(p.Files, ledger.BuildAttachment(row))
		} else if f, ok := committedFiles[fileID]; ok {
			p.Files = append(p.Files, f)
		}
	}

	return p, nil
}

func detailsAt(ctx context.Context, tx *store.Tx, transactionID, revID int64) (ledger.Details, bool, error) {
	snap, found, err := tx.Snapshot(ctx, transactionID, revID)
	if err != nil || !found {
		return ledger.Details{}, false, err
	}
	rev, err := tx.Revision(ctx, revID)
	if err != nil {
		return ledger.Details{}, false, err
	}
	creditor, err := tx.Shares(ctx, ledger.CreditorShare, transactionID, revID)
	if err != nil {
		return ledger.Details{}, false, err
	}
	debitor, err := tx.Shares(ctx, ledger.DebitorShare, transactionID, revID)
	if err != nil {
		return ledger.Details{}, false, err
	}
	return ledger.BuildDetails(rev, snap, creditor, debitor), true, nil
}

func positionAt(ctx context.Context, tx *store.Tx, itemID, revID int64) (ledger.Position, bool, error) {
	row, found, err := tx.Position(ctx, itemID, revID)
	if err != nil || !found {
		return ledger.Position{}, false, err
	}
	usages, err := tx.Usages(ctx, itemID, revID)
	if err != nil {
		return ledger.Position{}, false, err
	}
	return ledger.BuildPosition(row, usages), true, nil
}
