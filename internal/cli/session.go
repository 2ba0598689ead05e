package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/OlfillasOdikno/abrechnung/internal/access"
	"github.com/OlfillasOdikno/abrechnung/internal/attachment"
	"github.com/OlfillasOdikno/abrechnung/internal/config"
	"github.com/OlfillasOdikno/abrechnung/internal/engine"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
)

// session bundles what a command needs to talk to the ledger.
type session struct {
	cfg    *config.Config
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger
	out    *OutputFormatter
}

// openSession loads the config, configures logging and opens the store.
// Flags override the config file.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}

	logger := cfg.Logger(cmd.ErrOrStderr())
	slog.SetDefault(logger)

	logger.Debug("opening database", "path", cfg.Database.Path)
	st, err := store.OpenConfig(cfg.StoreConfig())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	clock := engine.SystemClock{}
	eng := engine.New(st, access.Gate{}, access.NewGroupLog(clock),
		engine.WithClock(clock),
		engine.WithLogger(logger),
		engine.WithAttachments(attachment.New(cfg.AttachmentConfig())),
	)

	return &session{
		cfg:    cfg,
		store:  st,
		engine: eng,
		logger: logger,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}, nil
}

// Close closes the store, logging rather than returning a failure.
func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// actingUser resolves --user to a user ID.
func (s *session) actingUser(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, NewExitError(ExitCommandError, "--user is required")
	}
	var id int64
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		id, err = tx.UserByName(ctx, name)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("unknown user %q", name))
	}
	if err != nil {
		return 0, fmt.Errorf("resolve user: %w", err)
	}
	return id, nil
}

// withSession runs fn with an open session and the acting user. In JSON
// mode failures are also reported as an error response on stdout.
func withSession(opts *RootOptions, cmd *cobra.Command, needUser bool,
	fn func(ctx context.Context, s *session, userID int64) error) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var userID int64
	if needUser {
		if userID, err = s.actingUser(ctx, opts.User); err != nil {
			return err
		}
	}

	if err := fn(ctx, s, userID); err != nil {
		if s.out.Format != "json" {
			return err
		}
		if reportErr := s.out.Report(err); reportErr != nil {
			s.logger.Error("failed to report error", "error", reportErr)
		}
		return err
	}
	return nil
}

// parseID parses a positional numeric ID.
func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s %q: must be a positive integer", name, raw))
	}
	return id, nil
}
