package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/shopspring/decimal"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fixture is a group with one writing user, two accounts and one purchase.
type fixture struct {
	userID   int64
	groupID  int64
	alice    int64
	bob      int64
	txID     int64
	baseline int64
}

// seedFixture creates a fixture whose transaction has a single committed
// revision holding a snapshot.
func seedFixture(t *testing.T, s *Store) fixture {
	t.Helper()
	var f fixture
	err := s.InTx(context.Background(), func(tx *Tx) error {
		ctx := context.Background()
		var err error
		if f.userID, err = tx.CreateUser(ctx, "user1"); err != nil {
			return err
		}
		if f.groupID, err = tx.CreateGroup(ctx, "flat", f.userID, testEpoch); err != nil {
			return err
		}
		if f.alice, err = tx.CreateAccount(ctx, f.groupID, "alice"); err != nil {
			return err
		}
		if f.bob, err = tx.CreateAccount(ctx, f.groupID, "bob"); err != nil {
			return err
		}
		if f.txID, err = tx.CreateTransaction(ctx, f.groupID, ledger.Purchase); err != nil {
			return err
		}
		if f.baseline, err = tx.InsertRevision(ctx, f.txID, f.userID, testEpoch); err != nil {
			return err
		}
		if err := tx.InsertSnapshot(ctx, testSnapshot(f.txID, f.baseline)); err != nil {
			return err
		}
		_, err = tx.CommitRevision(ctx, f.baseline, testEpoch)
		return err
	})
	if err != nil {
		t.Fatalf("seed fixture failed: %v", err)
	}
	return f
}

func testSnapshot(txID, revID int64) ledger.SnapshotRow {
	return ledger.SnapshotRow{
		TransactionID:          txID,
		RevisionID:             revID,
		Description:            "groceries",
		Value:                  decimal.RequireFromString("12.50"),
		CurrencySymbol:         "€",
		CurrencyConversionRate: decimal.NewFromInt(1),
		BilledAt:               ledger.MustParseDate("2024-03-01"),
	}
}

// inTx runs fn and fails the test on error.
func inTx(t *testing.T, s *Store, fn func(ctx context.Context, tx *Tx) error) {
	t.Helper()
	ctx := context.Background()
	if err := s.InTx(ctx, func(tx *Tx) error { return fn(ctx, tx) }); err != nil {
		t.Fatalf("InTx() failed: %v", err)
	}
}
