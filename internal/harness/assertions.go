package harness

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/OlfillasOdikno/abrechnung/internal/engine"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	User     string // Reader the assertion was evaluated for
	Tx       string // Transaction label, if any
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Tx != "" {
		fmt.Fprintf(&buf, " %s", e.Tx)
	}
	fmt.Fprintf(&buf, " as %s\n", e.User)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// evaluateAssertions runs every assertion and returns the failure messages.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	userID := h.users[a.User]
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, User: a.User, Tx: a.Tx, Expected: expected, Actual: actual}
	}

	switch a.Type {
	case AssertCommitted, AssertPending, AssertNoPending:
		txID, ok := h.txs[a.Tx]
		if !ok {
			return fail("transaction to exist", fmt.Sprintf("%q was never created", a.Tx))
		}
		view, err := h.engine.Get(ctx, userID, txID)
		if err != nil {
			return fail("readable transaction", err.Error())
		}

		switch a.Type {
		case AssertNoPending:
			if view.Pending != nil {
				return fail("no pending change", "pending change present")
			}
			return nil
		case AssertCommitted:
			if view.Committed == nil {
				return fail("committed projection", "never committed")
			}
			return matchProjection(a.Expect, h.render(view.Committed), fail)
		default:
			if view.Pending == nil {
				return fail("pending projection", "no pending change")
			}
			return matchProjection(a.Expect, h.render(view.Pending), fail)
		}

	case AssertWIPCount:
		views, err := h.engine.List(ctx, userID, h.groupID, engine.ListOptions{})
		if err != nil {
			return fail("listable group", err.Error())
		}
		count := 0
		for _, v := range views {
			if v.IsWIP {
				count++
			}
		}
		if count != a.Count {
			return fail(fmt.Sprintf("%d pending transactions", a.Count), fmt.Sprintf("%d", count))
		}
		return nil

	case AssertListed:
		var opts engine.ListOptions
		if a.Cursor != "" {
			at := h.checkpoints[a.Cursor]
			opts.MinChanged = &at
		}
		views, err := h.engine.List(ctx, userID, h.groupID, opts)
		if err != nil {
			return fail("listable group", err.Error())
		}
		labels := make(map[int64]string, len(h.txs))
		for label, id := range h.txs {
			labels[id] = label
		}
		got := make([]string, 0, len(views))
		for _, v := range views {
			got = append(got, labels[v.ID])
		}
		want := a.Txs
		if want == nil {
			want = []string{}
		}
		if !slices.Equal(got, want) {
			return fail(fmt.Sprintf("%v", want), fmt.Sprintf("%v", got))
		}
		return nil
	}

	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// matchProjection compares the set fields of want against got.
func matchProjection(want *ProjectionExpect, got *ProjectionState, fail func(expected, actual string) error) error {
	if want == nil {
		return nil
	}
	if want.Description != nil && *want.Description != got.Description {
		return fail(fmt.Sprintf("description %q", *want.Description), fmt.Sprintf("description %q", got.Description))
	}
	if want.Value != nil && !decimalsEqual(*want.Value, got.Value) {
		return fail("value "+*want.Value, "value "+got.Value)
	}
	if want.CurrencySymbol != nil && *want.CurrencySymbol != got.CurrencySymbol {
		return fail("currency "+*want.CurrencySymbol, "currency "+got.CurrencySymbol)
	}
	if want.BilledAt != nil && *want.BilledAt != got.BilledAt {
		return fail("billed_at "+*want.BilledAt, "billed_at "+got.BilledAt)
	}
	if want.Deleted != nil && *want.Deleted != got.Deleted {
		return fail(fmt.Sprintf("deleted=%t", *want.Deleted), fmt.Sprintf("deleted=%t", got.Deleted))
	}
	if want.Creditors != nil && !sharesEqual(want.Creditors, got.Creditors) {
		return fail("creditors "+formatShares(want.Creditors), "creditors "+formatShares(got.Creditors))
	}
	if want.Debitors != nil && !sharesEqual(want.Debitors, got.Debitors) {
		return fail("debitors "+formatShares(want.Debitors), "debitors "+formatShares(got.Debitors))
	}
	if want.Positions != nil && *want.Positions != len(got.Positions) {
		return fail(fmt.Sprintf("%d positions", *want.Positions), fmt.Sprintf("%d positions", len(got.Positions)))
	}
	if want.Files != nil && *want.Files != len(got.Files) {
		return fail(fmt.Sprintf("%d files", *want.Files), fmt.Sprintf("%d files", len(got.Files)))
	}
	return nil
}

func decimalsEqual(a, b string) bool {
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return da.Equal(db)
}

// sharesEqual compares amounts numerically so "1" matches "1.00".
func sharesEqual(want, got map[string]string) bool {
	if len(want) != len(got) {
		return false
	}
	for account, amount := range want {
		actual, ok := got[account]
		if !ok || !decimalsEqual(amount, actual) {
			return false
		}
	}
	return true
}

func formatShares(shares map[string]string) string {
	keys := make([]string, 0, len(shares))
	for k := range shares {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + shares[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
