// Package engine implements the revision-based versioning engine for shared
// group transactions.
//
// ARCHITECTURE:
//
// Every public method is one atomic unit of work. It opens a store
// transaction with store.Store.InTx, consults the PermissionGate first and
// then drives the revision lifecycle:
//
//  1. Revision Manager: find or create the caller's single uncommitted
//     revision (getOrCreateRevision).
//  2. Change Propagator: on the first edit of an entity within that
//     revision, copy the entity's full value from the latest committed
//     revision (getOrCreatePendingChange, getOrCreatePendingItemChange,
//     getOrCreatePendingFileChange). All copies go through store.Tx.Propagate.
//  3. Share Ledger: additive upsert, exclusive switch and delete of creditor,
//     debitor and item usage shares.
//  4. Commit/Discard Coordinator: seal, erase or self-commit a deletion.
//
// Reads (Get, List) flatten revision rows into ledger.Transaction values
// through the pure mapping functions in package ledger.
//
// CRITICAL PATTERNS:
//
// Single-WIP: at most one uncommitted revision per (transaction, user). The
// store enforces it with a partial unique index; the engine never inserts a
// second one because getOrCreateRevision looks first.
//
// Copy-on-write: a revision holds only what it touched. Fields the caller
// did not edit survive because the whole entity is copied before the edit.
//
// Last committer wins: concurrent revisions are never merged. The view
// always shows the latest committed row of each entity.
package engine
