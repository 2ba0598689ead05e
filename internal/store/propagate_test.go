package store

import (
	"context"
	"testing"
	"time"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/shopspring/decimal"
)

func TestPropagate_CopiesSnapshot(t *testing.T) {
	s := createTestStore(t)
	f := seedFixture(t, s)

	inTx(t, s, func(ctx context.Context, tx *Tx) error {
		wip, err := tx.InsertRevision(ctx, f.txID, f.userID, testEpoch)
		if err != nil {
			return err
		}
		n, err := tx.Propagate(ctx, KindSnapshot, f.txID, f.baseline, wip)
		if err != nil {
			return err
		}
		if n != 1 {
			t.Errorf("Propagate() copied %d rows, want 1", n)
		}

		got, found, err := tx.Snapshot(ctx, f.txID, wip)
		if err != nil {
			return err
		}
		want := testSnapshot(f.txID, wip)
		if !found {
			t.Fatal("snapshot not propagated")
		}
		if got.Description != want.Description || !got.Value.Equal(want.Value) || got.BilledAt != want.BilledAt {
			t.Errorf("Snapshot() = %+v, want %+v", got, want)
		}
		return nil
	})
}

func TestPropagate_SharesAndIsolation(t *testing.T) {
	s := createTestStore(t)
	f := seedFixture(t, s)

	inTx(t, s, func(ctx context.Context, tx *Tx) error {
		if err := tx.UpsertShare(ctx, ledger.DebitorShare, ledger.ShareRow{
			TransactionID: f.txID, RevisionID: f.baseline, AccountID: f.alice, Amount: decimal.NewFromInt(1),
		}); err != nil {
			return err
		}
		if err := tx.UpsertShare(ctx, ledger.DebitorShare, ledger.ShareRow{
			TransactionID: f.txID, RevisionID: f.baseline, AccountID: f.bob, Amount: decimal.NewFromInt(2),
		}); err != nil {
			return err
		}

		wip, err := tx.InsertRevision(ctx, f.txID, f.userID, testEpoch)
		if err != nil {
			return err
		}
		n, err := tx.Propagate(ctx, KindDebitorShares, f.txID, f.baseline, wip)
		if err != nil {
			return err
		}
		if n != 2 {
			t.Errorf("Propagate() copied %d rows, want 2", n)
		}

		if _, err := tx.DeleteShare(ctx, ledger.DebitorShare, f.txID, wip, f.alice); err != nil {
			return err
		}

		base, err := tx.Shares(ctx, ledger.DebitorShare, f.txID, f.baseline)
		if err != nil {
			return err
		}
		if len(base) != 2 {
			t.Errorf("baseline shares = %d, want 2 (WIP edit leaked)", len(base))
		}
		return nil
	})
}

func TestExists(t *testing.T) {
	s := createTestStore(t)
	f := seedFixture(t, s)

	inTx(t, s, func(ctx context.Context, tx *Tx) error {
		ok, err := tx.Exists(ctx, KindSnapshot, f.txID, f.baseline)
		if err != nil {
			return err
		}
		if !ok {
			t.Error("Exists(snapshot, baseline) = false, want true")
		}
		ok, err = tx.Exists(ctx, KindCreditorShares, f.txID, f.baseline)
		if err != nil {
			return err
		}
		if ok {
			t.Error("Exists(creditor shares, baseline) = true, want false")
		}
		return nil
	})
}

func TestLatestCommitted_OrdersByCommitTime(t *testing.T) {
	s := createTestStore(t)
	f := seedFixture(t, s)

	inTx(t, s, func(ctx context.Context, tx *Tx) error {
		other, err := tx.CreateUser(ctx, "user2")
		if err != nil {
			return err
		}

		// Started first, committed last.
		early, err := tx.InsertRevision(ctx, f.txID, f.userID, testEpoch.Add(time.Minute))
		if err != nil {
			return err
		}
		late, err := tx.InsertRevision(ctx, f.txID, other, testEpoch.Add(2*time.Minute))
		if err != nil {
			return err
		}
		for _, rev := range []int64{early, late} {
			if _, err := tx.Propagate(ctx, KindSnapshot, f.txID, f.baseline, rev); err != nil {
				return err
			}
		}
		if _, err := tx.CommitRevision(ctx, late, testEpoch.Add(3*time.Minute)); err != nil {
			return err
		}
		if _, err := tx.CommitRevision(ctx, early, testEpoch.Add(4*time.Minute)); err != nil {
			return err
		}

		id, found, err := tx.LatestCommitted(ctx, KindSnapshot, f.txID)
		if err != nil {
			return err
		}
		if !found || id != early {
			t.Errorf("LatestCommitted() = (%d, %v), want (%d, true)", id, found, early)
		}
		return nil
	})
}

func TestLatestCommitted_IgnoresWIP(t *testing.T) {
	s := createTestStore(t)
	f := seedFixture(t, s)

	inTx(t, s, func(ctx context.Context, tx *Tx) error {
		wip, err := tx.InsertRevision(ctx, f.txID, f.userID, testEpoch)
		if err != nil {
			return err
		}
		if _, err := tx.Propagate(ctx, KindSnapshot, f.txID, f.baseline, wip); err != nil {
			return err
		}
		id, found, err := tx.LatestCommitted(ctx, KindSnapshot, f.txID)
		if err != nil {
			return err
		}
		if !found || id != f.baseline {
			t.Errorf("LatestCommitted() = (%d, %v), want (%d, true)", id, found, f.baseline)
		}
		return nil
	})
}

func TestEntityKind_String(t *testing.T) {
	if got := KindUsages.String(); got != "usages" {
		t.Errorf("KindUsages.String() = %q, want %q", got, "usages")
	}
	if got := EntityKind(42).String(); got != "EntityKind(42)" {
		t.Errorf("EntityKind(42).String() = %q", got)
	}
}
