// Package harness runs scripted ledger scenarios against a real engine.
//
// A scenario sets up one group with named users and accounts, drives the
// engine through a list of steps and then checks assertions against what
// each user would read back. Every run gets a fresh in-memory store, a
// manual clock that advances one second per step and sequential blob keys,
// so two runs of the same scenario produce byte-identical results.
//
// # Scenario Format
//
//	name: purchase_roundtrip
//	description: "Bob edits a committed purchase without alice seeing it"
//	users: [alice, bob]
//	readers: [carol]
//	accounts: [a, b]
//	steps:
//	  - op: create
//	    user: alice
//	    label: dinner
//	    args:
//	      type: purchase
//	      value: "30"
//	      creditors: { a: "1" }
//	      debitors: { b: "1" }
//	      commit: true
//	  - op: update
//	    user: bob
//	    tx: dinner
//	    args: { description: "Dinner" }
//	  - op: commit
//	    user: carol
//	    tx: dinner
//	    expect: PERMISSION_DENIED
//	assertions:
//	  - type: committed
//	    user: alice
//	    tx: dinner
//	    expect: { value: "30" }
//	  - type: pending
//	    user: bob
//	    tx: dinner
//	    expect: { description: "Dinner" }
//
// The first user owns the group. Remaining users can write, readers can
// only read.
//
// # Assertion Types
//
//   - committed: the committed projection as seen by user matches expect
//   - pending: user has a pending projection and it matches expect
//   - no_pending: user has no pending change on tx
//   - wip_count: the number of transactions user has pending equals count
//   - listed: List with the cursor taken at a checkpoint returns exactly txs
//
// # Golden Files
//
// RunWithGolden renders the step trace and the final state of every
// labelled transaction as indented JSON and compares it against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
