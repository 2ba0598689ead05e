package store

import (
	"context"
	"testing"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/shopspring/decimal"
)

func TestUpsertShare_Idempotent(t *testing.T) {
	s := createTestStore(t)
	f := seedFixture(t, s)
	row := ledger.ShareRow{TransactionID: f.txID, RevisionID: f.baseline, AccountID: f.alice, Amount: decimal.NewFromInt(1)}

	inTx(t, s, func(ctx context.Context, tx *Tx) error {
		for i := 0; i < 3; i++ {
			if err := tx.UpsertShare(ctx, ledger.CreditorShare, row); err != nil {
				return err
			}
		}
		got, err := tx.Shares(ctx, ledger.CreditorShare, f.txID, f.baseline)
		if err != nil {
			return err
		}
		if len(got) != 1 {
			t.Fatalf("Shares() = %d rows, want 1", len(got))
		}
		if !got[0].Amount.Equal(row.Amount) {
			t.Errorf("amount = %s, want %s", got[0].Amount, row.Amount)
		}
		return nil
	})
}

func TestUpsertShare_OverwritesAmount(t *testing.T) {
	s := createTestStore(t)
	f := seedFixture(t, s)

	inTx(t, s, func(ctx context.Context, tx *Tx) error {
		row := ledger.ShareRow{TransactionID: f.txID, RevisionID: f.baseline, AccountID: f.bob, Amount: decimal.NewFromInt(1)}
		if err := tx.UpsertShare(ctx, ledger.DebitorShare, row); err != nil {
			return err
		}
		row.Amount = decimal.RequireFromString("2.5")
		if err := tx.UpsertShare(ctx, ledger.DebitorShare, row); err != nil {
			return err
		}
		got, err := tx.Shares(ctx, ledger.DebitorShare, f.txID, f.baseline)
		if err != nil {
			return err
		}
		if len(got) != 1 || !got[0].Amount.Equal(decimal.RequireFromString("2.5")) {
			t.Errorf("Shares() = %+v, want single row with 2.5", got)
		}
		return nil
	})
}

func TestReplaceShares_LeavesSingleRow(t *testing.T) {
	s := createTestStore(t)
	f := seedFixture(t, s)

	inTx(t, s, func(ctx context.Context, tx *Tx) error {
		for _, acc := range []int64{f.alice, f.bob} {
			if err := tx.UpsertShare(ctx, ledger.CreditorShare, ledger.ShareRow{
				TransactionID: f.txID, RevisionID: f.baseline, AccountID: acc, Amount: decimal.NewFromInt(1),
			}); err != nil {
				return err
			}
		}
		if err := tx.ReplaceShares(ctx, ledger.CreditorShare, ledger.ShareRow{
			TransactionID: f.txID, RevisionID: f.baseline, AccountID: f.bob, Amount: decimal.NewFromInt(3),
		}); err != nil {
			return err
		}
		got, err := tx.Shares(ctx, ledger.CreditorShare, f.txID, f.baseline)
		if err != nil {
			return err
		}
		if len(got) != 1 || got[0].AccountID != f.bob {
			t.Errorf("Shares() = %+v, want only bob", got)
		}
		return nil
	})
}

func TestDeleteShare_Missing(t *testing.T) {
	s := createTestStore(t)
	f := seedFixture(t, s)

	inTx(t, s, func(ctx context.Context, tx *Tx) error {
		ok, err := tx.DeleteShare(ctx, ledger.CreditorShare, f.txID, f.baseline, f.alice)
		if err != nil {
			return err
		}
		if ok {
			t.Error("DeleteShare() = true for missing share")
		}
		return nil
	})
}
