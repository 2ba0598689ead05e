// Package store provides SQLite-backed durable storage for the revision ledger.
//
// The store is append-only for committed history:
//   - Transactions, purchase items and files: immutable identities
//   - Revisions: one user's pending or sealed change to a transaction
//   - History rows: snapshots, shares, positions, usages and file versions,
//     each keyed by the revision that wrote it
//
// # Units of Work
//
// Every engine operation runs inside Store.InTx, which hands an explicit *Tx
// to the callback and rolls back on every exit path except a successful
// commit. All row-level methods live on Tx; the Store itself only opens,
// initializes and closes the database.
//
// # Critical Patterns
//
// Single-WIP invariant:
//   - Partial UNIQUE index on transaction_revisions(transaction_id, user_id)
//     WHERE committed_at IS NULL
//   - A second concurrent insert fails instead of creating a second WIP
//
// Copy-on-write:
//   - Tx.Propagate copies one entity kind from a committed revision into a
//     WIP revision with a single INSERT ... SELECT
//
// Deterministic ordering:
//   - "Latest committed" means ORDER BY committed_at DESC, id DESC, so ties
//     on the commit timestamp are broken by insertion order
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks (default 5 seconds)
//   - foreign_keys=ON: Enforce referential integrity and cascades
//
// Amounts are stored as decimal TEXT, calendar dates as YYYY-MM-DD TEXT and
// timestamps as INTEGER microseconds since the Unix epoch (UTC).
package store
