package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario defines a scripted run against the ledger engine.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Users are group members with write access. The first one owns the group.
	Users []string `yaml:"users"`

	// Readers are group members without write access.
	Readers []string `yaml:"readers,omitempty"`

	// Accounts are created in the group and referenced by name in args.
	Accounts []string `yaml:"accounts"`

	// Steps run in order, one clock second apart.
	Steps []Step `yaml:"steps"`

	// Assertions validate the state after all steps ran.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one engine call.
type Step struct {
	// Op selects the engine operation, see the Op* constants.
	Op string `yaml:"op"`

	// User performs the operation.
	User string `yaml:"user,omitempty"`

	// Tx, Item and File reference previously labelled entities.
	Tx   string `yaml:"tx,omitempty"`
	Item string `yaml:"item,omitempty"`
	File string `yaml:"file,omitempty"`

	// Label binds the entity created by this step to a name.
	Label string `yaml:"label,omitempty"`

	// Args carries the operation arguments.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect is the expected error code. Empty means the step must succeed.
	Expect string `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpCreate      = "create"
	OpUpdate      = "update"
	OpChange      = "change"
	OpCommit      = "commit"
	OpDiscard     = "discard"
	OpDelete      = "delete"
	OpShareSet    = "share_set"
	OpShareSwitch = "share_switch"
	OpShareRemove = "share_remove"
	OpItemAdd     = "item_add"
	OpItemUpdate  = "item_update"
	OpItemRemove  = "item_remove"
	OpUsageSet    = "usage_set"
	OpUsageRemove = "usage_remove"
	OpFileAttach  = "file_attach"
	OpFileRemove  = "file_remove"
	OpCheckpoint  = "checkpoint"
)

// stepTargets records which reference each op needs.
var stepTargets = map[string]string{
	OpCreate:      "",
	OpUpdate:      "tx",
	OpChange:      "tx",
	OpCommit:      "tx",
	OpDiscard:     "tx",
	OpDelete:      "tx",
	OpShareSet:    "tx",
	OpShareSwitch: "tx",
	OpShareRemove: "tx",
	OpItemAdd:     "tx",
	OpItemUpdate:  "item",
	OpItemRemove:  "item",
	OpUsageSet:    "item",
	OpUsageRemove: "item",
	OpFileAttach:  "tx",
	OpFileRemove:  "file",
	OpCheckpoint:  "",
}

// Assertion validates final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// User reads the state.
	User string `yaml:"user"`

	// Tx is the transaction label (committed, pending, no_pending).
	Tx string `yaml:"tx,omitempty"`

	// Expect is a subset match against a projection (committed, pending).
	Expect *ProjectionExpect `yaml:"expect,omitempty"`

	// Count is the expected number of pending transactions (wip_count).
	Count int `yaml:"count,omitempty"`

	// Cursor names a checkpoint label (listed). Empty lists without a cursor.
	Cursor string `yaml:"cursor,omitempty"`

	// Txs are the expected transaction labels in List order (listed).
	Txs []string `yaml:"txs,omitempty"`
}

// ProjectionExpect lists the projection fields to compare. Unset fields
// are not checked.
type ProjectionExpect struct {
	Description    *string           `yaml:"description,omitempty"`
	Value          *string           `yaml:"value,omitempty"`
	CurrencySymbol *string           `yaml:"currency_symbol,omitempty"`
	BilledAt       *string           `yaml:"billed_at,omitempty"`
	Deleted        *bool             `yaml:"deleted,omitempty"`
	Creditors      map[string]string `yaml:"creditors,omitempty"`
	Debitors       map[string]string `yaml:"debitors,omitempty"`
	Positions      *int              `yaml:"positions,omitempty"`
	Files          *int              `yaml:"files,omitempty"`
}

// Assertion type constants.
const (
	AssertCommitted = "committed"
	AssertPending   = "pending"
	AssertNoPending = "no_pending"
	AssertWIPCount  = "wip_count"
	AssertListed    = "listed"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// reference points at a declared user or an earlier label.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Users) == 0 {
		return fmt.Errorf("users list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	members := append(slices.Clone(s.Users), s.Readers...)
	seen := map[string]bool{}
	for _, name := range members {
		if seen[name] {
			return fmt.Errorf("user %q declared twice", name)
		}
		seen[name] = true
	}

	labels := map[string]string{}
	for i, step := range s.Steps {
		target, ok := stepTargets[step.Op]
		if !ok {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.Op != OpCheckpoint && !seen[step.User] {
			return fmt.Errorf("steps[%d]: unknown user %q", i, step.User)
		}

		ref := map[string]string{"tx": step.Tx, "item": step.Item, "file": step.File}[target]
		if target != "" {
			if ref == "" {
				return fmt.Errorf("steps[%d]: %s requires %s", i, step.Op, target)
			}
			if labels[ref] != target {
				return fmt.Errorf("steps[%d]: %s %q is not labelled by an earlier step", i, target, ref)
			}
		}

		if kind := createdKind(step.Op); kind != "" {
			if step.Label == "" {
				return fmt.Errorf("steps[%d]: %s requires label", i, step.Op)
			}
			if _, dup := labels[step.Label]; dup {
				return fmt.Errorf("steps[%d]: label %q already used", i, step.Label)
			}
			labels[step.Label] = kind
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, seen, labels); err != nil {
			return err
		}
	}

	return nil
}

// createdKind returns the entity kind a step labels, or "".
func createdKind(op string) string {
	switch op {
	case OpCreate:
		return "tx"
	case OpItemAdd:
		return "item"
	case OpFileAttach:
		return "file"
	case OpCheckpoint:
		return "checkpoint"
	}
	return ""
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, users map[string]bool, labels map[string]string) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if !users[a.User] {
		return fmt.Errorf("assertions[%d]: unknown user %q", index, a.User)
	}

	switch a.Type {
	case AssertCommitted, AssertPending:
		if labels[a.Tx] != "tx" {
			return fmt.Errorf("assertions[%d]: tx %q is not a transaction label", index, a.Tx)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
	case AssertNoPending:
		if labels[a.Tx] != "tx" {
			return fmt.Errorf("assertions[%d]: tx %q is not a transaction label", index, a.Tx)
		}
	case AssertWIPCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for wip_count", index)
		}
	case AssertListed:
		if a.Cursor != "" && labels[a.Cursor] != "checkpoint" {
			return fmt.Errorf("assertions[%d]: cursor %q is not a checkpoint label", index, a.Cursor)
		}
		for _, tx := range a.Txs {
			if labels[tx] != "tx" {
				return fmt.Errorf("assertions[%d]: tx %q is not a transaction label", index, tx)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
