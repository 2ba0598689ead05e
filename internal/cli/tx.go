package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/OlfillasOdikno/abrechnung/internal/engine"
	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
)

// NewTxCommand creates the tx command group.
func NewTxCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Create, edit and inspect transactions",
		Long: `Create, edit and inspect transactions.

Edits go to the acting user's pending change. Use "tx commit" to make them
visible to the rest of the group or "tx discard" to drop them.`,
	}
	cmd.AddCommand(newTxCreateCommand(rootOpts))
	cmd.AddCommand(newTxUpdateCommand(rootOpts))
	cmd.AddCommand(newTxLifecycleCommand(rootOpts, "change", "Open a pending change on a transaction"))
	cmd.AddCommand(newTxLifecycleCommand(rootOpts, "commit", "Commit the pending change"))
	cmd.AddCommand(newTxLifecycleCommand(rootOpts, "discard", "Drop the pending change"))
	cmd.AddCommand(newTxLifecycleCommand(rootOpts, "delete", "Mark a transaction as deleted"))
	cmd.AddCommand(newTxGetCommand(rootOpts))
	cmd.AddCommand(newTxListCommand(rootOpts))
	return cmd
}

type txCreateOptions struct {
	txType      string
	description string
	value       string
	currency    string
	rate        string
	billedAt    string
	creditors   []string
	debitors    []string
	commit      bool
}

func newTxCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &txCreateOptions{}
	cmd := &cobra.Command{
		Use:   "create <group-id>",
		Short: "Create a transaction",
		Long: `Create a transaction in a group.

Shares are given as account-id=amount and may be repeated.

Examples:
  abrechnung tx create 1 -u alice --type purchase --value 30 \
    --creditor 1=1 --debitor 1=1 --debitor 2=2 --commit
  abrechnung tx create 1 -u alice --type transfer --value 10 \
    --creditor 1=1 --debitor 2=1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID, err := parseID("group id", args[0])
			if err != nil {
				return err
			}
			in, err := opts.input()
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				id, err := s.engine.CreateTransaction(ctx, userID, groupID, in)
				if err != nil {
					return err
				}
				return s.out.Success(CreatedResult{Entity: "transaction", ID: id})
			})
		},
	}

	cmd.Flags().StringVar(&opts.txType, "type", string(ledger.Purchase), "transaction type (mimo|purchase|transfer)")
	cmd.Flags().StringVar(&opts.description, "description", "", "free-text description")
	cmd.Flags().StringVar(&opts.value, "value", "0", "total value")
	cmd.Flags().StringVar(&opts.currency, "currency", "EUR", "currency symbol")
	cmd.Flags().StringVar(&opts.rate, "rate", "1", "currency conversion rate")
	cmd.Flags().StringVar(&opts.billedAt, "billed-at", "", "billing date YYYY-MM-DD (default today)")
	cmd.Flags().StringArrayVar(&opts.creditors, "creditor", nil, "creditor share account-id=amount (repeatable)")
	cmd.Flags().StringArrayVar(&opts.debitors, "debitor", nil, "debitor share account-id=amount (repeatable)")
	cmd.Flags().BoolVar(&opts.commit, "commit", false, "commit immediately instead of leaving a pending change")
	return cmd
}

func (o *txCreateOptions) input() (ledger.TransactionInput, error) {
	txType, err := ledger.ParseTransactionType(o.txType)
	if err != nil {
		return ledger.TransactionInput{}, NewExitError(ExitCommandError, err.Error())
	}
	value, err := parseDecimal("value", o.value)
	if err != nil {
		return ledger.TransactionInput{}, err
	}
	rate, err := parseDecimal("rate", o.rate)
	if err != nil {
		return ledger.TransactionInput{}, err
	}
	var billedAt ledger.Date
	if o.billedAt != "" {
		if billedAt, err = parseDate(o.billedAt); err != nil {
			return ledger.TransactionInput{}, err
		}
	}
	creditors, err := parseShares("creditor", o.creditors)
	if err != nil {
		return ledger.TransactionInput{}, err
	}
	debitors, err := parseShares("debitor", o.debitors)
	if err != nil {
		return ledger.TransactionInput{}, err
	}
	return ledger.TransactionInput{
		Type:                   txType,
		Description:            o.description,
		Value:                  value,
		CurrencySymbol:         o.currency,
		CurrencyConversionRate: rate,
		BilledAt:               billedAt,
		CreditorShares:         creditors,
		DebitorShares:          debitors,
		Commit:                 o.commit,
	}, nil
}

func newTxUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var description, value, currency, rate, billedAt string
	cmd := &cobra.Command{
		Use:   "update <tx-id>",
		Short: "Change core fields in the pending change",
		Long: `Change core fields of a transaction. Only the given flags are changed;
everything else is inherited from the last committed revision.

Example:
  abrechnung tx update 3 -u alice --value 36 --description "Dinner with wine"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txID, err := parseID("transaction id", args[0])
			if err != nil {
				return err
			}

			var upd ledger.DetailsUpdate
			flags := cmd.Flags()
			if flags.Changed("description") {
				upd.Description = &description
			}
			if flags.Changed("value") {
				d, err := parseDecimal("value", value)
				if err != nil {
					return err
				}
				upd.Value = &d
			}
			if flags.Changed("currency") {
				upd.CurrencySymbol = &currency
			}
			if flags.Changed("rate") {
				d, err := parseDecimal("rate", rate)
				if err != nil {
					return err
				}
				upd.CurrencyConversionRate = &d
			}
			if flags.Changed("billed-at") {
				d, err := parseDate(billedAt)
				if err != nil {
					return err
				}
				upd.BilledAt = &d
			}

			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				if err := s.engine.UpdateTransaction(ctx, userID, txID, upd); err != nil {
					return err
				}
				return s.out.Success(fmt.Sprintf("updated transaction %d", txID))
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "free-text description")
	cmd.Flags().StringVar(&value, "value", "", "total value")
	cmd.Flags().StringVar(&currency, "currency", "", "currency symbol")
	cmd.Flags().StringVar(&rate, "rate", "", "currency conversion rate")
	cmd.Flags().StringVar(&billedAt, "billed-at", "", "billing date YYYY-MM-DD")
	return cmd
}

// newTxLifecycleCommand builds the one-argument commands that move a
// transaction through its revision lifecycle.
func newTxLifecycleCommand(rootOpts *RootOptions, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <tx-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txID, err := parseID("transaction id", args[0])
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				switch name {
				case "change":
					revID, err := s.engine.CreateChange(ctx, userID, txID)
					if err != nil {
						return err
					}
					return s.out.Success(CreatedResult{Entity: "revision", ID: revID})
				case "commit":
					err = s.engine.Commit(ctx, userID, txID)
				case "discard":
					err = s.engine.Discard(ctx, userID, txID)
				case "delete":
					err = s.engine.Delete(ctx, userID, txID)
				}
				if err != nil {
					return err
				}
				return s.out.Success(fmt.Sprintf("%s transaction %d: ok", name, txID))
			})
		},
	}
}

func newTxGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <tx-id>",
		Short: "Show a transaction as seen by the acting user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txID, err := parseID("transaction id", args[0])
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				t, err := s.engine.Get(ctx, userID, txID)
				if err != nil {
					return err
				}
				return s.out.Success(txView(t))
			})
		},
	}
}

func newTxListCommand(rootOpts *RootOptions) *cobra.Command {
	var since string
	var extra []int64
	cmd := &cobra.Command{
		Use:   "list <group-id>",
		Short: "List a group's transactions",
		Long: `List the transactions of a group visible to the acting user.

With --since only transactions committed after the cursor are listed, plus
the acting user's drafts and any --extra IDs.

Example:
  abrechnung tx list 1 -u bob --since 2024-01-01T00:00:10Z --extra 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID, err := parseID("group id", args[0])
			if err != nil {
				return err
			}
			var opts engine.ListOptions
			if since != "" {
				t, err := time.Parse(time.RFC3339Nano, since)
				if err != nil {
					return NewExitError(ExitCommandError, fmt.Sprintf("invalid --since %q: must be RFC 3339", since))
				}
				opts.MinChanged = &t
				opts.ExtraIDs = extra
			} else if len(extra) > 0 {
				return NewExitError(ExitCommandError, "--extra requires --since")
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				txs, err := s.engine.List(ctx, userID, groupID, opts)
				if err != nil {
					return err
				}
				return s.out.Success(listView(txs))
			})
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "sync cursor (RFC 3339 timestamp)")
	cmd.Flags().Int64SliceVar(&extra, "extra", nil, "transaction IDs to include regardless of the cursor")
	return cmd
}

// parseDecimal parses a flag or argument holding an amount.
func parseDecimal(name, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s %q: not a number", name, raw))
	}
	return d, nil
}

func parseDate(raw string) (ledger.Date, error) {
	d, err := ledger.ParseDate(raw)
	if err != nil {
		return ledger.Date{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid date %q: must be YYYY-MM-DD", raw))
	}
	return d, nil
}

// parseShares turns repeated account-id=amount flags into shares. A
// repeated account keeps the last amount.
func parseShares(kind string, values []string) (ledger.Shares, error) {
	shares := ledger.Shares{}
	for _, v := range values {
		acct, amount, ok := strings.Cut(v, "=")
		if !ok {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("invalid %s share %q: expected account-id=amount", kind, v))
		}
		id, err := parseID("account id", acct)
		if err != nil {
			return nil, err
		}
		d, err := parseDecimal(kind+" amount", amount)
		if err != nil {
			return nil, err
		}
		shares[id] = d
	}
	return shares, nil
}

// txView renders one transaction with its committed and pending state.
type txView ledger.Transaction

func (v txView) renderText(w io.Writer) error {
	fmt.Fprintf(w, "transaction %d (%s) in group %d\n", v.ID, v.Type, v.GroupID)
	if v.LastChanged != nil {
		fmt.Fprintf(w, "  last changed: %s\n", v.LastChanged.Format(time.RFC3339))
	}
	if v.Committed != nil {
		fmt.Fprintln(w, "committed:")
		writeProjection(w, v.Committed)
	}
	if v.Pending != nil {
		fmt.Fprintln(w, "pending:")
		writeProjection(w, v.Pending)
	}
	return nil
}

func writeProjection(w io.Writer, p *ledger.Projection) {
	d := p.Details
	fmt.Fprintf(w, "  %q  %s %s  billed %s", d.Description, d.Value, d.CurrencySymbol, d.BilledAt)
	if d.Deleted {
		fmt.Fprint(w, "  [deleted]")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  creditors: %s\n", formatShares(d.CreditorShares))
	fmt.Fprintf(w, "  debitors:  %s\n", formatShares(d.DebitorShares))
	for _, pos := range p.Positions {
		fmt.Fprintf(w, "  item %d %q  %s x%s  usages: %s", pos.ID, pos.Name, pos.Price, pos.CommunistShares, formatShares(pos.Usages))
		if pos.Deleted {
			fmt.Fprint(w, "  [deleted]")
		}
		fmt.Fprintln(w)
	}
	for _, f := range p.Files {
		fmt.Fprintf(w, "  file %d %q  %s", f.ID, f.Filename, f.MimeType)
		if f.Deleted {
			fmt.Fprint(w, "  [deleted]")
		}
		fmt.Fprintln(w)
	}
}

// formatShares prints shares ordered by account ID.
func formatShares(s ledger.Shares) string {
	if len(s) == 0 {
		return "-"
	}
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10) + "=" + s[id].String()
	}
	return strings.Join(parts, " ")
}

// listView renders a transaction list one line per transaction.
type listView []ledger.Transaction

func (v listView) renderText(w io.Writer) error {
	if len(v) == 0 {
		_, err := fmt.Fprintln(w, "no transactions")
		return err
	}
	for _, t := range v {
		p := t.Committed
		state := "committed"
		switch {
		case t.Pending != nil:
			p = t.Pending
			state = "pending"
		case p == nil:
			state = "uncommitted"
		}
		line := fmt.Sprintf("%d\t%s\t%s", t.ID, t.Type, state)
		if p != nil {
			line += fmt.Sprintf("\t%s %s\t%q", p.Details.Value, p.Details.CurrencySymbol, p.Details.Description)
			if p.Details.Deleted {
				line += "\t[deleted]"
			}
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
