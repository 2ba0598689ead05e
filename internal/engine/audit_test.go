package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OlfillasOdikno/abrechnung/internal/access"
	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
)

var errLogUnavailable = errors.New("log unavailable")

// failingLog rejects every entry.
type failingLog struct{}

func (failingLog) Append(context.Context, *store.Tx, ledger.LogEntry) error {
	return errLogUnavailable
}

// withFailingLog swaps the fixture's engine for one whose audit log always
// fails. Data prepared before the swap goes through the normal log.
func (f *fixture) withFailingLog() {
	f.engine = New(f.store, access.Gate{}, failingLog{}, WithClock(f.clock))
}

func (f *fixture) sealedCount(t *testing.T, txID int64) int {
	t.Helper()
	return f.count(t, `
		SELECT COUNT(*) FROM transaction_revisions
		WHERE transaction_id = ? AND committed_at IS NOT NULL
	`, txID)
}

func TestAuditFailure_CommitKeepsPendingChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, f.alice, ledger.Purchase, true)
	require.NoError(t, f.engine.UpdateTransaction(ctx, f.bob, id, ledger.DetailsUpdate{Description: ptr("dinner")}))
	sealed := f.sealedCount(t, id)

	f.withFailingLog()
	err := f.engine.Commit(ctx, f.bob, id)
	require.ErrorIs(t, err, errLogUnavailable)

	assert.Equal(t, 1, f.wipCount(t, id, f.bob))
	assert.Equal(t, sealed, f.sealedCount(t, id))

	view := f.get(t, f.bob, id)
	require.NotNil(t, view.Pending)
	assert.Equal(t, "dinner", view.Pending.Details.Description)
	assert.Equal(t, "groceries", view.Committed.Details.Description)
}

func TestAuditFailure_DeleteLeavesTransactionLive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, f.alice, ledger.Purchase, true)
	sealed := f.sealedCount(t, id)

	f.withFailingLog()
	err := f.engine.Delete(ctx, f.alice, id)
	require.ErrorIs(t, err, errLogUnavailable)

	assert.Equal(t, sealed, f.sealedCount(t, id))
	assert.Equal(t, 0, f.wipCount(t, id, f.alice))

	view := f.get(t, f.alice, id)
	require.NotNil(t, view.Committed)
	assert.False(t, view.Committed.Details.Deleted)
	assert.Nil(t, view.Pending)
}

func TestAuditFailure_CreateCommitLeavesNoTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, f.alice, ledger.Transfer, true)
	before := f.count(t, `SELECT COUNT(*) FROM transactions`)
	revisions := f.count(t, `SELECT COUNT(*) FROM transaction_revisions`)

	f.withFailingLog()
	_, err := f.engine.CreateTransaction(ctx, f.alice, f.groupID, f.input(ledger.Purchase, true))
	require.ErrorIs(t, err, errLogUnavailable)

	assert.Equal(t, before, f.count(t, `SELECT COUNT(*) FROM transactions`))
	assert.Equal(t, revisions, f.count(t, `SELECT COUNT(*) FROM transaction_revisions`))

	// Without commit nothing is logged, so the same log lets a draft through.
	_, err = f.engine.CreateTransaction(ctx, f.alice, f.groupID, f.input(ledger.Purchase, false))
	require.NoError(t, err)
	assert.Equal(t, before+1, f.count(t, `SELECT COUNT(*) FROM transactions`))
}
