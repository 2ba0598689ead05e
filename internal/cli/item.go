package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
)

// NewItemCommand creates the item command group for purchase line items.
func NewItemCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Edit purchase items and their usages",
		Long: `Edit purchase items and who used them.

Items only exist on purchases. The price of an item is split between its
usages and, through communist shares, the purchase's debitors.

Examples:
  abrechnung item add 3 -u alice --name Wine --price 6
  abrechnung item usage 1 2 1 -u alice
  abrechnung item update 1 -u alice --communist-shares 1`,
	}
	cmd.AddCommand(newItemAddCommand(rootOpts))
	cmd.AddCommand(newItemUpdateCommand(rootOpts))
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <item-id>",
		Short: "Mark an item as deleted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID("item id", args[0])
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				if err := s.engine.DeletePurchaseItem(ctx, userID, itemID); err != nil {
					return err
				}
				return s.out.Success(fmt.Sprintf("removed item %d", itemID))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "usage <item-id> <account-id> <amount>",
		Short: "Add or change an account's usage of an item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID("item id", args[0])
			if err != nil {
				return err
			}
			acct, err := parseID("account id", args[1])
			if err != nil {
				return err
			}
			amount, err := parseDecimal("amount", args[2])
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				if err := s.engine.AddOrChangeItemUsage(ctx, userID, itemID, acct, amount); err != nil {
					return err
				}
				return s.out.Success(fmt.Sprintf("usage of item %d by account %d set to %s", itemID, acct, amount))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "unuse <item-id> <account-id>",
		Short: "Remove an account's usage of an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID("item id", args[0])
			if err != nil {
				return err
			}
			acct, err := parseID("account id", args[1])
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				if err := s.engine.DeleteItemUsage(ctx, userID, itemID, acct); err != nil {
					return err
				}
				return s.out.Success(fmt.Sprintf("removed usage of item %d by account %d", itemID, acct))
			})
		},
	})
	return cmd
}

func newItemAddCommand(rootOpts *RootOptions) *cobra.Command {
	var name, price, communist string
	cmd := &cobra.Command{
		Use:   "add <tx-id>",
		Short: "Add an item to a purchase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txID, err := parseID("transaction id", args[0])
			if err != nil {
				return err
			}
			in := ledger.PositionInput{Name: name}
			if in.Price, err = parseDecimal("price", price); err != nil {
				return err
			}
			if in.CommunistShares, err = parseDecimal("communist shares", communist); err != nil {
				return err
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				id, err := s.engine.CreatePurchaseItem(ctx, userID, txID, in)
				if err != nil {
					return err
				}
				return s.out.Success(CreatedResult{Entity: "item", ID: id})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "item name")
	cmd.Flags().StringVar(&price, "price", "0", "item price")
	cmd.Flags().StringVar(&communist, "communist-shares", "0", "shares split across the purchase's debitors")
	return cmd
}

func newItemUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var name, price, communist string
	cmd := &cobra.Command{
		Use:   "update <item-id>",
		Short: "Change an item; unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID("item id", args[0])
			if err != nil {
				return err
			}
			var upd ledger.PositionUpdate
			if cmd.Flags().Changed("name") {
				upd.Name = &name
			}
			if cmd.Flags().Changed("price") {
				d, err := parseDecimal("price", price)
				if err != nil {
					return err
				}
				upd.Price = &d
			}
			if cmd.Flags().Changed("communist-shares") {
				d, err := parseDecimal("communist shares", communist)
				if err != nil {
					return err
				}
				upd.CommunistShares = &d
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				if err := s.engine.UpdatePurchaseItem(ctx, userID, itemID, upd); err != nil {
					return err
				}
				return s.out.Success(fmt.Sprintf("updated item %d", itemID))
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "item name")
	cmd.Flags().StringVar(&price, "price", "", "item price")
	cmd.Flags().StringVar(&communist, "communist-shares", "", "shares split across the purchase's debitors")
	return cmd
}
