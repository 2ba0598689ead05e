// Package ledger defines the domain records of the shared-expense ledger.
//
// A Transaction is an immutable identity (id, group, type). Everything a user
// can change about it lives in versioned rows keyed by a revision:
//   - SnapshotRow: the core fields (description, value, currency, billed-at, deleted)
//   - ShareRow: creditor and debitor shares of the pooled amount
//   - PositionRow / UsageRow: purchase line items and who used them
//   - FileRow: attachments
//
// Rows are what the store persists. The Build* functions in mapping.go turn
// them into the flattened Details, Position and Attachment records that
// clients see. They are pure and total so they can be tested without a
// database.
//
// Errors returned by the engine are *Error values carrying one of three codes
// (NOT_FOUND, PERMISSION_DENIED, INVALID_COMMAND). Use the Is* helpers to
// classify wrapped errors.
package ledger
