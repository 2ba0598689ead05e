package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanSwitch(t *testing.T) {
	cases := []struct {
		kind ShareKind
		typ  TransactionType
		want bool
	}{
		{CreditorShare, Mimo, false},
		{CreditorShare, Purchase, true},
		{CreditorShare, Transfer, true},
		{DebitorShare, Mimo, false},
		{DebitorShare, Purchase, false},
		{DebitorShare, Transfer, true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanSwitch(c.kind, c.typ), "%s switch on %s", c.kind, c.typ)
	}
}

func TestSwitchTypes_ReturnsCopy(t *testing.T) {
	types := SwitchTypes(CreditorShare)
	types[0] = Mimo

	assert.Equal(t, []TransactionType{Purchase, Transfer}, SwitchTypes(CreditorShare))
}

func TestParseShareKind(t *testing.T) {
	k, err := ParseShareKind("debitor")
	require.NoError(t, err)
	assert.Equal(t, DebitorShare, k)
	assert.Equal(t, "debitor", k.String())

	_, err = ParseShareKind("payer")
	assert.True(t, IsInvalidCommand(err))
}

func TestParseTransactionType(t *testing.T) {
	for _, s := range []string{"mimo", "purchase", "transfer"} {
		typ, err := ParseTransactionType(s)
		require.NoError(t, err)
		assert.Equal(t, s, typ.String())
	}

	_, err := ParseTransactionType("loan")
	assert.True(t, IsInvalidCommand(err))
}

func TestNormalizeText(t *testing.T) {
	// "é" as e + combining acute becomes the single precomposed rune.
	assert.Equal(t, "caf\u00e9", NormalizeText("  cafe\u0301 "))
}
