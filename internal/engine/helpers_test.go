package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OlfillasOdikno/abrechnung/internal/access"
	"github.com/OlfillasOdikno/abrechnung/internal/attachment"
	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
	"github.com/OlfillasOdikno/abrechnung/internal/testutil"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// fixture is a group where alice owns, bob writes and carol only reads.
// acctA..acctC belong to the group; foreign belongs to another group.
type fixture struct {
	store  *store.Store
	engine *Engine
	clock  *testutil.ManualClock

	alice, bob, carol   int64
	groupID             int64
	acctA, acctB, acctC int64
	foreign             int64
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: setupTestStore(t),
		clock: testutil.NewManualClock(time.Time{}),
	}
	f.engine = New(f.store, access.Gate{}, access.NewGroupLog(f.clock),
		WithClock(f.clock),
		WithAttachments(attachment.New(attachment.Config{Keys: attachment.NewSequenceGenerator("blob")})),
	)

	err := f.store.InTx(context.Background(), func(tx *store.Tx) error {
		ctx := context.Background()
		var err error
		if f.alice, err = tx.CreateUser(ctx, "alice"); err != nil {
			return err
		}
		if f.bob, err = tx.CreateUser(ctx, "bob"); err != nil {
			return err
		}
		if f.carol, err = tx.CreateUser(ctx, "carol"); err != nil {
			return err
		}
		if f.groupID, err = tx.CreateGroup(ctx, "flat", f.alice, f.clock.Now()); err != nil {
			return err
		}
		if err := tx.AddMember(ctx, store.Membership{GroupID: f.groupID, UserID: f.bob, CanWrite: true}); err != nil {
			return err
		}
		if err := tx.AddMember(ctx, store.Membership{GroupID: f.groupID, UserID: f.carol}); err != nil {
			return err
		}
		if f.acctA, err = tx.CreateAccount(ctx, f.groupID, "a"); err != nil {
			return err
		}
		if f.acctB, err = tx.CreateAccount(ctx, f.groupID, "b"); err != nil {
			return err
		}
		if f.acctC, err = tx.CreateAccount(ctx, f.groupID, "c"); err != nil {
			return err
		}
		other, err := tx.CreateGroup(ctx, "elsewhere", f.carol, f.clock.Now())
		if err != nil {
			return err
		}
		f.foreign, err = tx.CreateAccount(ctx, other, "x")
		return err
	})
	require.NoError(t, err)
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

// input returns a committed-by-default transaction input.
func (f *fixture) input(typ ledger.TransactionType, commit bool) ledger.TransactionInput {
	return ledger.TransactionInput{
		Type:                   typ,
		Description:            "groceries",
		Value:                  dec("12.50"),
		CurrencySymbol:         "€",
		CurrencyConversionRate: dec("1"),
		BilledAt:               ledger.MustParseDate("2024-01-01"),
		CreditorShares:         ledger.Shares{f.acctA: dec("1")},
		DebitorShares:          ledger.Shares{f.acctA: dec("1"), f.acctB: dec("1")},
		Commit:                 commit,
	}
}

func (f *fixture) create(t *testing.T, user int64, typ ledger.TransactionType, commit bool) int64 {
	t.Helper()
	id, err := f.engine.CreateTransaction(context.Background(), user, f.groupID, f.input(typ, commit))
	require.NoError(t, err)
	return id
}

func (f *fixture) get(t *testing.T, user, txID int64) ledger.Transaction {
	t.Helper()
	view, err := f.engine.Get(context.Background(), user, txID)
	require.NoError(t, err)
	return view
}

// count runs a COUNT(*) query outside any unit of work.
func (f *fixture) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, f.store.DB().QueryRow(query, args...).Scan(&n))
	return n
}

func (f *fixture) wipCount(t *testing.T, txID, user int64) int {
	t.Helper()
	return f.count(t, `
		SELECT COUNT(*) FROM transaction_revisions
		WHERE transaction_id = ? AND user_id = ? AND committed_at IS NULL
	`, txID, user)
}

func (f *fixture) groupLog(t *testing.T) []store.LogRecord {
	t.Helper()
	var records []store.LogRecord
	err := f.store.InTx(context.Background(), func(tx *store.Tx) error {
		var err error
		records, err = tx.GroupLog(context.Background(), f.groupID)
		return err
	})
	require.NoError(t, err)
	return records
}

func assertShares(t *testing.T, want map[int64]string, got ledger.Shares) {
	t.Helper()
	require.Len(t, got, len(want), "shares: %v", got)
	for acct, amount := range want {
		v, ok := got[acct]
		if assert.True(t, ok, "missing share for account %d", acct) {
			assert.True(t, dec(amount).Equal(v), "account %d: got %s, want %s", acct, v, amount)
		}
	}
}

func requireCode(t *testing.T, err error, code ledger.ErrorCode) *ledger.Error {
	t.Helper()
	require.Error(t, err)
	var le *ledger.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, code, le.Code, "error: %v", err)
	return le
}
