package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
)

func TestConcurrentEditCommitAndList(t *testing.T) {
	const (
		editors = 8
		rounds  = 10
	)

	f := newFixture(t)
	ctx := context.Background()
	edited := f.create(t, f.alice, ledger.Purchase, true)
	committed := f.create(t, f.alice, ledger.Purchase, true)

	errs := make(chan error, editors*rounds*2+rounds*3+rounds)
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		views []ledger.Transaction
	)

	for i := 0; i < editors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				desc := fmt.Sprintf("edit %d/%d", i, r)
				if err := f.engine.UpdateTransaction(ctx, f.bob, edited, ledger.DetailsUpdate{Description: &desc}); err != nil {
					errs <- err
				}
				amount := decimal.NewFromInt(int64(i*rounds + r + 1))
				if err := f.engine.AddOrChangeShare(ctx, f.bob, edited, ledger.DebitorShare, f.acctC, amount); err != nil {
					errs <- err
				}
			}
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for r := 0; r < rounds; r++ {
			f.clock.Advance(time.Second)
			desc := fmt.Sprintf("round %d", r)
			if err := f.engine.UpdateTransaction(ctx, f.alice, committed, ledger.DetailsUpdate{Description: &desc}); err != nil {
				errs <- err
				continue
			}
			amount := decimal.NewFromInt(int64(r + 1))
			if err := f.engine.AddOrChangeShare(ctx, f.alice, committed, ledger.CreditorShare, f.acctB, amount); err != nil {
				errs <- err
			}
			if err := f.engine.Commit(ctx, f.alice, committed); err != nil {
				errs <- err
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for r := 0; r < rounds; r++ {
			list, err := f.engine.List(ctx, f.carol, f.groupID, ListOptions{})
			if err != nil {
				errs <- err
				continue
			}
			mu.Lock()
			views = append(views, list...)
			mu.Unlock()
		}
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, 1, f.wipCount(t, edited, f.bob))
	assert.Equal(t, 0, f.wipCount(t, committed, f.alice))

	final := f.get(t, f.alice, committed)
	assert.Equal(t, fmt.Sprintf("round %d", rounds-1), final.Committed.Details.Description)
	assertShares(t, map[int64]string{f.acctA: "1", f.acctB: fmt.Sprint(rounds)}, final.Committed.Details.CreditorShares)

	require.NotEmpty(t, views)
	err := f.store.InTx(ctx, func(tx *store.Tx) error {
		for _, view := range views {
			require.NotNil(t, view.Committed, "transaction %d", view.ID)
			assert.Nil(t, view.Pending, "carol has no pending change")
			d := view.Committed.Details
			for kind, got := range map[ledger.ShareKind]ledger.Shares{
				ledger.CreditorShare: d.CreditorShares,
				ledger.DebitorShare:  d.DebitorShares,
			} {
				rows, err := tx.Shares(ctx, kind, view.ID, d.RevisionID)
				if err != nil {
					return err
				}
				want := make(map[int64]string, len(rows))
				for _, row := range rows {
					want[row.AccountID] = row.Amount.String()
				}
				assertShares(t, want, got)
			}
		}
		return nil
	})
	require.NoError(t, err)
}
