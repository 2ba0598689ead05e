package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewFileCommand creates the file command group for attachments.
func NewFileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Attach, remove and read transaction files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "attach <tx-id> <path>",
		Short: "Attach a local file to a transaction",
		Long: `Attach a local file to the acting user's pending change.

The content type is detected from the bytes; only allowed types are
accepted (see attachments.allowed_types in the config).

Example:
  abrechnung file attach 3 ./receipt.png -u alice`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			txID, err := parseID("transaction id", args[0])
			if err != nil {
				return err
			}
			content, err := os.ReadFile(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read file", err)
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				id, err := s.engine.UploadFile(ctx, userID, txID, filepath.Base(args[1]), content)
				if err != nil {
					return err
				}
				return s.out.Success(CreatedResult{Entity: "file", ID: id})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <file-id>",
		Short: "Mark an attachment as deleted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := parseID("file id", args[0])
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				if err := s.engine.DeleteFile(ctx, userID, fileID); err != nil {
					return err
				}
				return s.out.Success(fmt.Sprintf("removed file %d", fileID))
			})
		},
	})

	var output string
	read := &cobra.Command{
		Use:   "read <file-id>",
		Short: "Write an attachment's content to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := parseID("file id", args[0])
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, true, func(ctx context.Context, s *session, userID int64) error {
				fc, err := s.engine.ReadFile(ctx, userID, fileID)
				if err != nil {
					return err
				}
				dest := output
				if dest == "" {
					dest = fc.Filename
				}
				if err := os.WriteFile(dest, fc.Content, 0o644); err != nil {
					return WrapExitError(ExitCommandError, "failed to write file", err)
				}
				return s.out.Success(map[string]any{
					"path":      dest,
					"mime_type": fc.MimeType,
					"bytes":     len(fc.Content),
				})
			})
		},
	}
	read.Flags().StringVarP(&output, "output", "o", "", "destination path (default: the stored filename)")
	cmd.AddCommand(read)

	return cmd
}
