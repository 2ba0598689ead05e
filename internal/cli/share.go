package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
)

// NewShareCommand creates the share command group.
func NewShareCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Edit creditor and debitor shares",
		Long: `Edit creditor and debitor shares in the acting user's pending change.

Kind is "creditor" or "debitor". The amount defaults to 1.

Examples:
  abrechnung share set 3 debitor 2 2 -u alice
  abrechnung share switch 5 creditor 1 -u alice
  abrechnung share remove 3 debitor 2 -u alice`,
	}
	cmd.AddCommand(newShareSetCommand(rootOpts, "set", "Add or change a share", false))
	cmd.AddCommand(newShareSetCommand(rootOpts, "switch", "Replace all shares of a kind with one account", true))
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <tx-id> <kind> <account-id>",
		Short: "Remove a share",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			txID, kind, acct, err := parseShareTarget(args)
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				if err := s.engine.DeleteShare(ctx, userID, txID, kind, acct); err != nil {
					return err
				}
				return s.out.Success(fmt.Sprintf("removed %s share of account %d", kind, acct))
			})
		},
	})
	return cmd
}

func newShareSetCommand(rootOpts *RootOptions, name, short string, switchAll bool) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <tx-id> <kind> <account-id> [amount]",
		Short: short,
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			txID, kind, acct, err := parseShareTarget(args)
			if err != nil {
				return err
			}
			raw := "1"
			if len(args) == 4 {
				raw = args[3]
			}
			amount, err := parseDecimal("amount", raw)
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				if switchAll {
					err = s.engine.SwitchShare(ctx, userID, txID, kind, acct, amount)
				} else {
					err = s.engine.AddOrChangeShare(ctx, userID, txID, kind, acct, amount)
				}
				if err != nil {
					return err
				}
				return s.out.Success(fmt.Sprintf("%s share of account %d set to %s", kind, acct, amount))
			})
		},
	}
}

func parseShareTarget(args []string) (int64, ledger.ShareKind, int64, error) {
	txID, err := parseID("transaction id", args[0])
	if err != nil {
		return 0, 0, 0, err
	}
	kind, err := ledger.ParseShareKind(args[1])
	if err != nil {
		return 0, 0, 0, NewExitError(ExitCommandError, err.Error())
	}
	acct, err := parseID("account id", args[2])
	if err != nil {
		return 0, 0, 0, err
	}
	return txID, kind, acct, nil
}
