package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OlfillasOdikno/abrechnung/internal/config"
	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// execute runs the root command with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	require.NoError(t, err, "abrechnung %v", args)
	return out
}

// newLedger creates a database with users alice (owner), bob (writer) and
// carol (reader), group 1 and accounts 1 and 2.
func newLedger(t *testing.T) string {
	t.Helper()
	t.Setenv(config.EnvVar, "")
	db := filepath.Join(t.TempDir(), "ledger.db")

	mustExecute(t, "init", "--db", db)
	for _, name := range []string{"alice", "bob", "carol"} {
		mustExecute(t, "user", "add", name, "--db", db)
	}
	mustExecute(t, "group", "create", "Trip", "--db", db, "-u", "alice")
	mustExecute(t, "group", "member", "1", "bob", "--write", "--db", db, "-u", "alice")
	mustExecute(t, "group", "member", "1", "carol", "--db", db, "-u", "alice")
	mustExecute(t, "account", "add", "1", "Alice", "--db", db, "-u", "alice")
	mustExecute(t, "account", "add", "1", "Bob", "--db", db, "-u", "alice")
	return db
}

// getTx fetches a transaction as user via JSON output.
func getTx(t *testing.T, db, user, id string) ledger.Transaction {
	t.Helper()
	out := mustExecute(t, "tx", "get", id, "--db", db, "-u", user, "--format", "json")
	var resp struct {
		Status string             `json:"status"`
		Data   ledger.Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"init", "user", "group", "account", "tx", "share", "item", "file", "test"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
	for _, flag := range []string{"verbose", "format", "config", "db", "user"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := execute(t, "init", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestCreateCommitAndView(t *testing.T) {
	db := newLedger(t)

	out := mustExecute(t, "tx", "create", "1", "--db", db, "-u", "alice",
		"--type", "purchase", "--description", "Dinner", "--value", "30",
		"--billed-at", "2024-03-01",
		"--creditor", "1=1", "--debitor", "1=1", "--debitor", "2=2", "--commit")
	assert.Equal(t, "created transaction 1\n", out)

	got := getTx(t, db, "carol", "1")
	require.NotNil(t, got.Committed)
	assert.Nil(t, got.Pending)
	assert.Equal(t, ledger.Purchase, got.Type)
	assert.Equal(t, "Dinner", got.Committed.Details.Description)
	assert.Equal(t, "30", got.Committed.Details.Value.String())
	assert.Equal(t, "2024-03-01", got.Committed.Details.BilledAt.String())
	assert.Equal(t, "2", got.Committed.Details.DebitorShares[2].String())

	text := mustExecute(t, "tx", "get", "1", "--db", db, "-u", "carol")
	assert.Contains(t, text, "transaction 1 (purchase) in group 1")
	assert.Contains(t, text, "committed:")
	assert.Contains(t, text, `"Dinner"`)
	assert.Contains(t, text, "debitors:  1=1 2=2")
	assert.NotContains(t, text, "pending:")
}

func TestPendingChangeIsPrivateUntilCommit(t *testing.T) {
	db := newLedger(t)
	mustExecute(t, "tx", "create", "1", "--db", db, "-u", "alice",
		"--value", "30", "--creditor", "1=1", "--debitor", "2=1", "--commit")

	mustExecute(t, "tx", "update", "1", "--db", db, "-u", "bob", "--value", "40")

	bob := getTx(t, db, "bob", "1")
	require.NotNil(t, bob.Pending)
	assert.True(t, bob.IsWIP)
	assert.Equal(t, "40", bob.Pending.Details.Value.String())
	assert.Equal(t, "30", bob.Committed.Details.Value.String())

	alice := getTx(t, db, "alice", "1")
	assert.Nil(t, alice.Pending)
	assert.Equal(t, "30", alice.Committed.Details.Value.String())

	mustExecute(t, "tx", "commit", "1", "--db", db, "-u", "bob")

	alice = getTx(t, db, "alice", "1")
	assert.Equal(t, "40", alice.Committed.Details.Value.String())
	assert.Equal(t, "", alice.Committed.Details.Description)
}

func TestDiscardAndDelete(t *testing.T) {
	db := newLedger(t)
	mustExecute(t, "tx", "create", "1", "--db", db, "-u", "alice",
		"--type", "transfer", "--value", "10", "--creditor", "1=1", "--debitor", "2=1", "--commit")

	out := mustExecute(t, "tx", "change", "1", "--db", db, "-u", "alice")
	assert.Contains(t, out, "created revision")
	mustExecute(t, "tx", "discard", "1", "--db", db, "-u", "alice")
	assert.Nil(t, getTx(t, db, "alice", "1").Pending)

	mustExecute(t, "tx", "delete", "1", "--db", db, "-u", "alice")
	got := getTx(t, db, "bob", "1")
	assert.True(t, got.Committed.Details.Deleted)

	list := mustExecute(t, "tx", "list", "1", "--db", db, "-u", "bob")
	assert.Contains(t, list, "[deleted]")
}

func TestSharesItemsAndFiles(t *testing.T) {
	db := newLedger(t)
	mustExecute(t, "tx", "create", "1", "--db", db, "-u", "alice",
		"--value", "12", "--creditor", "1=1", "--debitor", "1=1", "--commit")

	mustExecute(t, "share", "set", "1", "debitor", "2", "3", "--db", db, "-u", "alice")
	mustExecute(t, "share", "remove", "1", "debitor", "1", "--db", db, "-u", "alice")
	mustExecute(t, "share", "switch", "1", "creditor", "2", "--db", db, "-u", "alice")

	out := mustExecute(t, "item", "add", "1", "--name", "Wine", "--price", "6", "--db", db, "-u", "alice")
	assert.Equal(t, "created item 1\n", out)
	mustExecute(t, "item", "usage", "1", "1", "2", "--db", db, "-u", "alice")
	mustExecute(t, "item", "update", "1", "--communist-shares", "1", "--db", db, "-u", "alice")

	path := filepath.Join(t.TempDir(), "receipt.png")
	require.NoError(t, os.WriteFile(path, pngBytes, 0o644))
	out = mustExecute(t, "file", "attach", "1", path, "--db", db, "-u", "alice")
	assert.Equal(t, "created file 1\n", out)

	pending := getTx(t, db, "alice", "1").Pending
	require.NotNil(t, pending)
	assert.Equal(t, "3", pending.Details.DebitorShares[2].String())
	assert.NotContains(t, pending.Details.DebitorShares, int64(1))
	assert.Equal(t, "1", pending.Details.CreditorShares[2].String())
	assert.NotContains(t, pending.Details.CreditorShares, int64(1))
	require.Len(t, pending.Positions, 1)
	assert.Equal(t, "Wine", pending.Positions[0].Name)
	assert.Equal(t, "1", pending.Positions[0].CommunistShares.String())
	assert.Equal(t, "2", pending.Positions[0].Usages[1].String())
	require.Len(t, pending.Files, 1)
	assert.Equal(t, "receipt.png", pending.Files[0].Filename)
	assert.Equal(t, "image/png", pending.Files[0].MimeType)

	mustExecute(t, "tx", "commit", "1", "--db", db, "-u", "alice")

	dest := filepath.Join(t.TempDir(), "copy.png")
	mustExecute(t, "file", "read", "1", "-o", dest, "--db", db, "-u", "bob")
	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, content)

	mustExecute(t, "item", "unuse", "1", "1", "--db", db, "-u", "bob")
	mustExecute(t, "item", "remove", "1", "--db", db, "-u", "bob")
	mustExecute(t, "file", "remove", "1", "--db", db, "-u", "bob")
	bob := getTx(t, db, "bob", "1").Pending
	require.NotNil(t, bob)
	assert.True(t, bob.Positions[0].Deleted)
	assert.True(t, bob.Files[0].Deleted)
}

func TestRejections(t *testing.T) {
	db := newLedger(t)
	mustExecute(t, "tx", "create", "1", "--db", db, "-u", "alice",
		"--value", "5", "--creditor", "1=1", "--debitor", "1=1", "--commit")

	tests := []struct {
		name     string
		args     []string
		wantCode string
		wantExit int
	}{
		{"unknown_transaction", []string{"tx", "get", "99", "-u", "alice"}, "NOT_FOUND", ExitFailure},
		{"reader_cannot_write", []string{"tx", "update", "1", "--value", "9", "-u", "carol"}, "PERMISSION_DENIED", ExitFailure},
		{"nothing_to_commit", []string{"tx", "commit", "1", "-u", "alice"}, "INVALID_COMMAND", ExitFailure},
		{"unknown_user", []string{"tx", "get", "1", "-u", "mallory"}, "", ExitCommandError},
		{"missing_user", []string{"tx", "get", "1"}, "", ExitCommandError},
		{"bad_id", []string{"tx", "get", "abc", "-u", "alice"}, "", ExitCommandError},
		{"bad_share", []string{"tx", "create", "1", "--creditor", "1:1", "-u", "alice"}, "", ExitCommandError},
		{"non_owner_member", []string{"group", "member", "1", "carol", "--write", "-u", "bob"}, "PERMISSION_DENIED", ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "--db", db, "--format", "json")
			out, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			if tt.wantCode == "" {
				return
			}
			assert.Equal(t, tt.wantCode, ErrorCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestListAndGroupLog(t *testing.T) {
	db := newLedger(t)
	mustExecute(t, "tx", "create", "1", "--description", "Bus", "--value", "3",
		"--creditor", "1=1", "--debitor", "2=1", "--commit", "--db", db, "-u", "alice")
	mustExecute(t, "tx", "create", "1", "--description", "Draft", "--value", "4",
		"--creditor", "1=1", "--debitor", "2=1", "--db", db, "-u", "alice")

	out := mustExecute(t, "tx", "list", "1", "--db", db, "-u", "alice", "--format", "json")
	var resp struct {
		Data []ledger.Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Data, 2)

	out = mustExecute(t, "tx", "list", "1", "--db", db, "-u", "bob")
	assert.Contains(t, out, `"Bus"`)
	assert.NotContains(t, out, `"Draft"`)

	_, err := execute(t, "tx", "list", "1", "--extra", "2", "--db", db, "-u", "bob")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	logOut := mustExecute(t, "group", "log", "1", "--db", db, "-u", "carol")
	assert.Contains(t, logOut, ledger.EventTransactionCommitted)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "from-config.db")
	cfgPath := filepath.Join(dir, "abrechnung.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database:\n  path: "+db+"\n"), 0o644))

	out := mustExecute(t, "init", "--config", cfgPath, "--format", "json")
	assert.Contains(t, out, "from-config.db")
	_, err := os.Stat(db)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(cfgPath, []byte("database:\n  pth: x\n"), 0o644))
	_, err = execute(t, "init", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand(t *testing.T) {
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")

	out := mustExecute(t, "test", scenarios)
	assert.Contains(t, out, "✓ purchase_roundtrip")
	assert.Contains(t, out, "✓ All scenarios passed")

	out = mustExecute(t, "test", scenarios, "--filter", "transfer_*", "--format", "json")
	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "transfer_lifecycle", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_UpdateAndMismatch(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0o755))
	src, err := os.ReadFile(filepath.Join("..", "harness", "testdata", "scenarios", "transfer_lifecycle.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, "transfer_lifecycle.yaml"), src, 0o644))

	out := mustExecute(t, "test", scenarios, "--update")
	assert.Contains(t, out, "golden updated")
	golden := filepath.Join(root, "golden", "transfer_lifecycle.golden")
	_, err = os.Stat(golden)
	require.NoError(t, err)

	mustExecute(t, "test", scenarios)

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0o644))
	out, err = execute(t, "test", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
