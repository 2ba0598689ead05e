package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/OlfillasOdikno/abrechnung/internal/access"
	"github.com/OlfillasOdikno/abrechnung/internal/attachment"
	"github.com/OlfillasOdikno/abrechnung/internal/engine"
	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
	"github.com/OlfillasOdikno/abrechnung/internal/store"
	"github.com/OlfillasOdikno/abrechnung/internal/testutil"
)

// Harness is the test execution engine.
// It runs one scenario against a fresh store with a deterministic clock.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.ManualClock
	logger *slog.Logger

	groupID int64
	members []string
	users   map[string]int64

	accounts     map[string]int64
	accountNames map[int64]string

	txs         map[string]int64
	txOrder     []string
	items       map[string]int64
	itemNames   map[int64]string
	files       map[string]int64
	checkpoints map[string]time.Time
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger routes engine and harness logs to l. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Create the group, its members and accounts
//  2. Execute steps, comparing each outcome with its expectation
//  3. Capture the final state of every labelled transaction
//  4. Evaluate assertions
//
// A returned error means the scenario could not be executed at all;
// failed expectations and assertions are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:        st,
		clock:        testutil.NewManualClock(time.Time{}),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		users:        map[string]int64{},
		accounts:     map[string]int64{},
		accountNames: map[int64]string{},
		txs:          map[string]int64{},
		items:        map[string]int64{},
		itemNames:    map[int64]string{},
		files:        map[string]int64{},
		checkpoints:  map[string]time.Time{},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.engine = engine.New(st, access.Gate{}, access.NewGroupLog(h.clock),
		engine.WithClock(h.clock),
		engine.WithLogger(h.logger),
		engine.WithAttachments(attachment.New(attachment.Config{
			Keys: attachment.NewSequenceGenerator("blob"),
		})),
	)

	if err := h.setup(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to set up group: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i, step, result); err != nil {
			return nil, err
		}
	}

	if err := h.captureFinal(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to capture final state: %w", err)
	}

	for _, errMsg := range h.evaluateAssertions(ctx, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// setup creates users, the group and its accounts in one transaction.
func (h *Harness) setup(ctx context.Context, s *Scenario) error {
	return h.store.InTx(ctx, func(tx *store.Tx) error {
		h.members = append(append([]string{}, s.Users...), s.Readers...)
		for _, name := range h.members {
			id, err := tx.CreateUser(ctx, name)
			if err != nil {
				return err
			}
			h.users[name] = id
		}

		owner := h.users[s.Users[0]]
		groupID, err := tx.CreateGroup(ctx, s.Name, owner, h.clock.Now())
		if err != nil {
			return err
		}
		h.groupID = groupID

		for _, name := range s.Users[1:] {
			if err := tx.AddMember(ctx, store.Membership{GroupID: groupID, UserID: h.users[name], CanWrite: true}); err != nil {
				return err
			}
		}
		for _, name := range s.Readers {
			if err := tx.AddMember(ctx, store.Membership{GroupID: groupID, UserID: h.users[name]}); err != nil {
				return err
			}
		}

		for _, name := range s.Accounts {
			id, err := tx.CreateAccount(ctx, groupID, name)
			if err != nil {
				return err
			}
			h.accounts[name] = id
			h.accountNames[id] = name
		}
		return nil
	})
}

// runStep advances the clock, executes step and records its outcome.
// Engine errors are outcomes; malformed args and unbound labels abort the run.
func (h *Harness) runStep(ctx context.Context, index int, step Step, result *Result) error {
	h.clock.Advance(time.Second)

	opErr := h.execute(ctx, step)
	var invalid *stepError
	if errors.As(opErr, &invalid) {
		return fmt.Errorf("step %d (%s): %w", index, step.Op, invalid.err)
	}

	outcome := OutcomeOK
	if opErr != nil {
		code := ledger.CodeOf(opErr)
		if code == "" {
			return fmt.Errorf("step %d (%s): %w", index, step.Op, opErr)
		}
		outcome = string(code)
	}

	want := step.Expect
	if want == "" {
		want = OutcomeOK
	}
	if outcome != want {
		msg := fmt.Sprintf("step %d (%s by %s): expected %s, got %s", index, step.Op, step.User, want, outcome)
		if opErr != nil {
			msg += ": " + opErr.Error()
		}
		result.AddError(msg)
	}

	result.AddTrace(step.Op, step.User, stepTarget(step), outcome)

	h.logger.Debug("scenario step",
		"step", index,
		"op", step.Op,
		"user", step.User,
		"outcome", outcome,
	)
	return nil
}

func stepTarget(step Step) string {
	for _, ref := range []string{step.Item, step.File, step.Tx, step.Label} {
		if ref != "" {
			return ref
		}
	}
	return ""
}

// stepError marks a problem with the scenario itself rather than an
// engine outcome.
type stepError struct {
	err error
}

func (e *stepError) Error() string { return e.err.Error() }

func invalidStep(err error) error {
	return &stepError{err: err}
}

// execute dispatches one step and returns the engine's error. Scenario
// problems come back as *stepError.
func (h *Harness) execute(ctx context.Context, step Step) error {
	userID := h.users[step.User]
	args := argMap(step.Args)

	if step.Op == OpCheckpoint {
		h.checkpoints[step.Label] = h.clock.Now()
		return nil
	}
	if step.Op == OpCreate {
		in, err := args.transactionInput(h.accounts)
		if err != nil {
			return invalidStep(err)
		}
		id, opErr := h.engine.CreateTransaction(ctx, userID, h.groupID, in)
		if opErr == nil {
			h.txs[step.Label] = id
			h.txOrder = append(h.txOrder, step.Label)
		}
		return opErr
	}

	switch stepTargets[step.Op] {
	case "tx":
		txID, ok := h.txs[step.Tx]
		if !ok {
			return invalidStep(fmt.Errorf("transaction %q was never created", step.Tx))
		}
		return h.executeOnTransaction(ctx, step, userID, txID, args)
	case "item":
		itemID, ok := h.items[step.Item]
		if !ok {
			return invalidStep(fmt.Errorf("item %q was never created", step.Item))
		}
		return h.executeOnItem(ctx, step, userID, itemID, args)
	case "file":
		fileID, ok := h.files[step.File]
		if !ok {
			return invalidStep(fmt.Errorf("file %q was never attached", step.File))
		}
		return h.engine.DeleteFile(ctx, userID, fileID)
	}
	return invalidStep(fmt.Errorf("unknown op %q", step.Op))
}

func (h *Harness) executeOnTransaction(ctx context.Context, step Step, userID, txID int64, args argMap) error {
	switch step.Op {
	case OpUpdate:
		upd, err := args.detailsUpdate()
		if err != nil {
			return invalidStep(err)
		}
		return h.engine.UpdateTransaction(ctx, userID, txID, upd)
	case OpChange:
		_, opErr := h.engine.CreateChange(ctx, userID, txID)
		return opErr
	case OpCommit:
		return h.engine.Commit(ctx, userID, txID)
	case OpDiscard:
		return h.engine.Discard(ctx, userID, txID)
	case OpDelete:
		return h.engine.Delete(ctx, userID, txID)
	case OpShareSet, OpShareSwitch, OpShareRemove:
		kind, err := ledger.ParseShareKind(args.string("kind"))
		if err != nil {
			return invalidStep(err)
		}
		accountID, err := h.account(args.string("account"))
		if err != nil {
			return invalidStep(err)
		}
		if step.Op == OpShareRemove {
			return h.engine.DeleteShare(ctx, userID, txID, kind, accountID)
		}
		amount, err := args.decimalOr("amount", "1")
		if err != nil {
			return invalidStep(err)
		}
		if step.Op == OpShareSwitch {
			return h.engine.SwitchShare(ctx, userID, txID, kind, accountID, amount)
		}
		return h.engine.AddOrChangeShare(ctx, userID, txID, kind, accountID, amount)
	case OpItemAdd:
		in, err := args.positionInput()
		if err != nil {
			return invalidStep(err)
		}
		id, opErr := h.engine.CreatePurchaseItem(ctx, userID, txID, in)
		if opErr == nil {
			h.items[step.Label] = id
			h.itemNames[id] = step.Label
		}
		return opErr
	case OpFileAttach:
		content, err := fixtureContent(args.string("content"))
		if err != nil {
			return invalidStep(err)
		}
		filename := args.string("filename")
		if filename == "" {
			filename = step.Label
		}
		id, opErr := h.engine.UploadFile(ctx, userID, txID, filename, content)
		if opErr == nil {
			h.files[step.Label] = id
		}
		return opErr
	}
	return invalidStep(fmt.Errorf("unknown op %q", step.Op))
}

func (h *Harness) executeOnItem(ctx context.Context, step Step, userID, itemID int64, args argMap) error {
	switch step.Op {
	case OpItemUpdate:
		upd, err := args.positionUpdate()
		if err != nil {
			return invalidStep(err)
		}
		return h.engine.UpdatePurchaseItem(ctx, userID, itemID, upd)
	case OpItemRemove:
		return h.engine.DeletePurchaseItem(ctx, userID, itemID)
	case OpUsageSet, OpUsageRemove:
		accountID, err := h.account(args.string("account"))
		if err != nil {
			return invalidStep(err)
		}
		if step.Op == OpUsageRemove {
			return h.engine.DeleteItemUsage(ctx, userID, itemID, accountID)
		}
		amount, err := args.decimalOr("amount", "1")
		if err != nil {
			return invalidStep(err)
		}
		return h.engine.AddOrChangeItemUsage(ctx, userID, itemID, accountID, amount)
	}
	return invalidStep(fmt.Errorf("unknown op %q", step.Op))
}

func (h *Harness) account(name string) (int64, error) {
	id, ok := h.accounts[name]
	if !ok {
		return 0, fmt.Errorf("unknown account %q", name)
	}
	return id, nil
}

// captureFinal reads every labelled transaction as each member and stores
// the committed projection once and the pending ones per member.
func (h *Harness) captureFinal(ctx context.Context, result *Result) error {
	labels := append([]string{}, h.txOrder...)
	sort.Strings(labels)

	for _, label := range labels {
		var state TxState
		for _, member := range h.members {
			view, err := h.engine.Get(ctx, h.users[member], h.txs[label])
			if err != nil {
				return fmt.Errorf("get %s as %s: %w", label, member, err)
			}
			state.Type = view.Type.String()
			if state.Committed == nil && view.Committed != nil {
				state.Committed = h.render(view.Committed)
			}
			if view.Pending != nil {
				if state.Pending == nil {
					state.Pending = map[string]*ProjectionState{}
				}
				state.Pending[member] = h.render(view.Pending)
			}
		}
		result.Final[label] = state
	}
	return nil
}

// render replaces IDs in p with scenario names.
func (h *Harness) render(p *ledger.Projection) *ProjectionState {
	out := &ProjectionState{
		Description:    p.Details.Description,
		Value:          p.Details.Value.String(),
		CurrencySymbol: p.Details.CurrencySymbol,
		BilledAt:       p.Details.BilledAt.String(),
		Deleted:        p.Details.Deleted,
		Creditors:      h.namedShares(p.Details.CreditorShares),
		Debitors:       h.namedShares(p.Details.DebitorShares),
	}
	for _, pos := range p.Positions {
		out.Positions = append(out.Positions, PositionState{
			Item:            h.itemNames[pos.ID],
			Name:            pos.Name,
			Price:           pos.Price.String(),
			CommunistShares: pos.CommunistShares.String(),
			Deleted:         pos.Deleted,
			Usages:          h.namedShares(pos.Usages),
		})
	}
	for _, f := range p.Files {
		name := f.Filename
		if f.Deleted {
			name += " (deleted)"
		}
		out.Files = append(out.Files, name)
	}
	return out
}

func (h *Harness) namedShares(shares ledger.Shares) map[string]string {
	if len(shares) == 0 {
		return nil
	}
	out := make(map[string]string, len(shares))
	for id, amount := range shares {
		name, ok := h.accountNames[id]
		if !ok {
			name = fmt.Sprintf("#%d", id)
		}
		out[name] = amount.String()
	}
	return out
}
