package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/OlfillasOdikno/abrechnung/internal/attachment"
	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
)

// Engine is the revision-based versioning engine.
//
// Thread-safety: Engine holds no mutable state of its own and is safe for
// concurrent use. Units of work serialize at the store.
type Engine struct {
	store  *store.Store
	gate   PermissionGate
	audit  AuditLog
	clock  Clock
	files  AttachmentPolicy
	logger *slog.Logger
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithClock sets the clock used for revision and commit timestamps.
//
// Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the structured logger.
//
// Default: discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithAttachments sets the upload policy.
//
// Default: attachment.New with the image allow-list and UUIDv7 keys.
func WithAttachments(p AttachmentPolicy) Option {
	return func(e *Engine) {
		e.files = p
	}
}

// New creates an Engine over the given store and collaborators.
func New(s *store.Store, gate PermissionGate, audit AuditLog, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		gate:   gate,
		audit:  audit,
		clock:  SystemClock{},
		files:  attachment.New(attachment.Config{}),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// unit runs fn as one atomic unit of work named op.
//
// Classified errors get op attached and are returned as is so callers can
// inspect them with the ledger.Is* helpers. Anything else is wrapped with op.
func (e *Engine) unit(ctx context.Context, op string, userID int64, fn func(tx *store.Tx) error) error {
	e.logger.Debug("unit start", "op", op, "user_id", userID)

	err := e.store.InTx(ctx, fn)
	if err == nil {
		return nil
	}

	var le *ledger.Error
	if errors.As(err, &le) {
		if le.Op == "" {
			le.Op = op
		}
		e.logger.Debug("unit rejected", "op", op, "user_id", userID, "code", le.Code, "error", le.Message)
		return err
	}

	e.logger.Error("unit failed", "op", op, "user_id", userID, "error", err)
	return fmt.Errorf("%s: %w", op, err)
}

// requireAccount checks that an account exists in the group.
func requireAccount(ctx context.Context, tx *store.Tx, groupID, accountID int64) error {
	g, err := tx.AccountGroup(ctx, accountID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && g != groupID) {
		return ledger.NewNotFound("account", accountID, "account not found in group")
	}
	if err != nil {
		return fmt.Errorf("resolve account: %w", err)
	}
	return nil
}
