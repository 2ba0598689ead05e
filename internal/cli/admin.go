package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/OlfillasOdikno/abrechnung/internal/access"
	"github.com/OlfillasOdikno/abrechnung/internal/engine"
	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
)

// CreatedResult reports the ID of a newly created entity.
type CreatedResult struct {
	Entity string `json:"entity"`
	ID     int64  `json:"id"`
}

func (r CreatedResult) renderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "created %s %d\n", r.Entity, r.ID)
	return err
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database",
		Long: `Open the configured database, creating the schema if needed.

Example:
  abrechnung init --db ./ledger.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, false, func(ctx context.Context, s *session, _ int64) error {
				return s.out.Success(map[string]string{"database": s.cfg.Database.Path})
			})
		},
	}
}

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Register a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, false, func(ctx context.Context, s *session, _ int64) error {
				var id int64
				err := s.store.InTx(ctx, func(tx *store.Tx) error {
					var err error
					id, err = tx.CreateUser(ctx, ledger.NormalizeText(args[0]))
					return err
				})
				if err != nil {
					return err
				}
				return s.out.Success(CreatedResult{Entity: "user", ID: id})
			})
		},
	})
	return cmd
}

// NewGroupCommand creates the group command group.
func NewGroupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups, members and the group log",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a group owned by the acting user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				var id int64
				err := s.store.InTx(ctx, func(tx *store.Tx) error {
					var err error
					id, err = tx.CreateGroup(ctx, ledger.NormalizeText(args[0]), userID, engine.SystemClock{}.Now())
					return err
				})
				if err != nil {
					return err
				}
				return s.out.Success(CreatedResult{Entity: "group", ID: id})
			})
		},
	})

	var canWrite, isOwner bool
	member := &cobra.Command{
		Use:   "member <group-id> <user-name>",
		Short: "Add or update a group member (owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID, err := parseID("group id", args[0])
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				err := s.store.InTx(ctx, func(tx *store.Tx) error {
					if err := requireOwner(ctx, tx, groupID, userID); err != nil {
						return err
					}
					memberID, err := lookupUser(ctx, tx, args[1])
					if err != nil {
						return err
					}
					return tx.AddMember(ctx, store.Membership{
						GroupID:  groupID,
						UserID:   memberID,
						CanWrite: canWrite || isOwner,
						IsOwner:  isOwner,
					})
				})
				if err != nil {
					return err
				}
				return s.out.Success(fmt.Sprintf("%s is a member of group %d", args[1], groupID))
			})
		},
	}
	member.Flags().BoolVar(&canWrite, "write", false, "allow the member to edit transactions")
	member.Flags().BoolVar(&isOwner, "owner", false, "make the member an owner")
	cmd.AddCommand(member)

	cmd.AddCommand(&cobra.Command{
		Use:   "log <group-id>",
		Short: "Show the group's audit log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID, err := parseID("group id", args[0])
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				var records []store.LogRecord
				err := s.store.InTx(ctx, func(tx *store.Tx) error {
					if err := (access.Gate{}).RequireMember(ctx, tx, groupID, userID, false); err != nil {
						return err
					}
					var err error
					records, err = tx.GroupLog(ctx, groupID)
					return err
				})
				if err != nil {
					return err
				}
				return s.out.Success(logView(records))
			})
		},
	})

	return cmd
}

// NewAccountCommand creates the account command group.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage group accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <group-id> <name>",
		Short: "Create an account in a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID, err := parseID("group id", args[0])
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				var id int64
				err := s.store.InTx(ctx, func(tx *store.Tx) error {
					if err := (access.Gate{}).RequireMember(ctx, tx, groupID, userID, true); err != nil {
						return err
					}
					var err error
					id, err = tx.CreateAccount(ctx, groupID, ledger.NormalizeText(args[1]))
					return err
				})
				if err != nil {
					return err
				}
				return s.out.Success(CreatedResult{Entity: "account", ID: id})
			})
		},
	})
	return cmd
}

// requireOwner fails unless userID owns the group.
func requireOwner(ctx context.Context, tx *store.Tx, groupID, userID int64) error {
	if err := (access.Gate{}).RequireMember(ctx, tx, groupID, userID, true); err != nil {
		return err
	}
	m, _, err := tx.Member(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !m.IsOwner {
		return ledger.NewPermissionDenied("group", groupID, "only owners can manage members")
	}
	return nil
}

// lookupUser resolves a user name inside an open unit.
func lookupUser(ctx context.Context, tx *store.Tx, name string) (int64, error) {
	id, err := tx.UserByName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ledger.NewNotFound("user", 0, fmt.Sprintf("unknown user %q", name))
	}
	if err != nil {
		return 0, fmt.Errorf("resolve user: %w", err)
	}
	return id, nil
}

// logView renders audit records oldest first.
type logView []store.LogRecord

func (v logView) renderText(w io.Writer) error {
	if len(v) == 0 {
		_, err := fmt.Fprintln(w, "log is empty")
		return err
	}
	for _, r := range v {
		if _, err := fmt.Fprintf(w, "%s  user=%d  %-22s %s\n",
			r.LoggedAt.Format(time.RFC3339), r.UserID, r.Type, r.Message); err != nil {
			return err
		}
	}
	return nil
}
