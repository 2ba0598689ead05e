package ledger

import (
	"fmt"
	"slices"
)

// ShareKind distinguishes the two share families of a transaction.
type ShareKind int

const (
	// CreditorShare records who paid into the pool.
	CreditorShare ShareKind = iota
	// DebitorShare records who the pool was spent on.
	DebitorShare
)

func (k ShareKind) String() string {
	switch k {
	case CreditorShare:
		return "creditor"
	case DebitorShare:
		return "debitor"
	default:
		return fmt.Sprintf("ShareKind(%d)", int(k))
	}
}

// ParseShareKind accepts "creditor" or "debitor".
func ParseShareKind(s string) (ShareKind, error) {
	switch s {
	case "creditor":
		return CreditorShare, nil
	case "debitor":
		return DebitorShare, nil
	}
	return 0, NewInvalidCommand("share", 0, fmt.Sprintf("unknown share kind %q", s))
}

// switchRules is the static legality table for exclusive-replace share
// mutations. A switch encodes a single payer (or single payee), which only
// makes sense for some transaction types.
var switchRules = map[ShareKind][]TransactionType{
	CreditorShare: {Purchase, Transfer},
	DebitorShare:  {Transfer},
}

// itemTypes lists the transaction types that may carry purchase items.
var itemTypes = []TransactionType{Purchase}

// SwitchTypes returns the transaction types that allow switching shares of
// the given kind. The result is a copy.
func SwitchTypes(kind ShareKind) []TransactionType {
	return slices.Clone(switchRules[kind])
}

// CanSwitch reports whether a share of the given kind may be switched on a
// transaction of type t.
func CanSwitch(kind ShareKind, t TransactionType) bool {
	return slices.Contains(switchRules[kind], t)
}

// ItemTypes returns the transaction types that may carry purchase items.
func ItemTypes() []TransactionType {
	return slices.Clone(itemTypes)
}
