package harness

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/OlfillasOdikno/abrechnung/internal/ledger"
)

// argMap wraps YAML-decoded step args.
type argMap map[string]any

// Attachment fixtures addressable from scenarios by name.
var fixtures = map[string][]byte{
	"png":  []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00"),
	"jpeg": []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00"),
	"text": []byte("just some notes, not an image\n"),
}

func fixtureContent(name string) ([]byte, error) {
	if name == "" {
		name = "png"
	}
	content, ok := fixtures[name]
	if !ok {
		return nil, fmt.Errorf("unknown content fixture %q", name)
	}
	return content, nil
}

func (a argMap) has(key string) bool {
	_, ok := a[key]
	return ok
}

// string renders scalars with fmt so that unquoted YAML numbers work too.
func (a argMap) string(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (a argMap) bool(key string) (bool, error) {
	v, ok := a[key]
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s: expected bool, got %T", key, v)
	}
	return b, nil
}

func (a argMap) decimal(key string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(a.string(key))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func (a argMap) decimalOr(key, fallback string) (decimal.Decimal, error) {
	if !a.has(key) {
		return decimal.RequireFromString(fallback), nil
	}
	return a.decimal(key)
}

func (a argMap) optionalString(key string) *string {
	if !a.has(key) {
		return nil
	}
	s := a.string(key)
	return &s
}

func (a argMap) optionalDecimal(key string) (*decimal.Decimal, error) {
	if !a.has(key) {
		return nil, nil
	}
	d, err := a.decimal(key)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (a argMap) date(key string) (ledger.Date, error) {
	if !a.has(key) {
		return ledger.Date{}, nil
	}
	d, err := ledger.ParseDate(a.string(key))
	if err != nil {
		return ledger.Date{}, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// shares reads a map of account name to amount.
func (a argMap) shares(key string, accounts map[string]int64) (ledger.Shares, error) {
	v, ok := a[key]
	if !ok {
		return nil, nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected map of account to amount, got %T", key, v)
	}
	out := make(ledger.Shares, len(raw))
	for name, amount := range raw {
		id, ok := accounts[name]
		if !ok {
			return nil, fmt.Errorf("%s: unknown account %q", key, name)
		}
		d, err := decimal.NewFromString(fmt.Sprint(amount))
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", key, name, err)
		}
		out[id] = d
	}
	return out, nil
}

func (a argMap) transactionInput(accounts map[string]int64) (ledger.TransactionInput, error) {
	in := ledger.TransactionInput{
		Type:           ledger.TransactionType(a.string("type")),
		Description:    a.string("description"),
		CurrencySymbol: a.string("currency_symbol"),
	}
	if in.CurrencySymbol == "" {
		in.CurrencySymbol = "EUR"
	}

	var err error
	if in.Value, err = a.decimalOr("value", "0"); err != nil {
		return in, err
	}
	if a.has("currency_conversion_rate") {
		if in.CurrencyConversionRate, err = a.decimal("currency_conversion_rate"); err != nil {
			return in, err
		}
	}
	if in.BilledAt, err = a.date("billed_at"); err != nil {
		return in, err
	}
	if in.CreditorShares, err = a.shares("creditors", accounts); err != nil {
		return in, err
	}
	if in.DebitorShares, err = a.shares("debitors", accounts); err != nil {
		return in, err
	}
	if in.Commit, err = a.bool("commit"); err != nil {
		return in, err
	}
	return in, nil
}

func (a argMap) detailsUpdate() (ledger.DetailsUpdate, error) {
	upd := ledger.DetailsUpdate{
		Description:    a.optionalString("description"),
		CurrencySymbol: a.optionalString("currency_symbol"),
	}

	var err error
	if upd.Value, err = a.optionalDecimal("value"); err != nil {
		return upd, err
	}
	if upd.CurrencyConversionRate, err = a.optionalDecimal("currency_conversion_rate"); err != nil {
		return upd, err
	}
	if a.has("billed_at") {
		d, err := a.date("billed_at")
		if err != nil {
			return upd, err
		}
		upd.BilledAt = &d
	}
	return upd, nil
}

func (a argMap) positionInput() (ledger.PositionInput, error) {
	in := ledger.PositionInput{Name: a.string("name")}

	var err error
	if in.Price, err = a.decimalOr("price", "0"); err != nil {
		return in, err
	}
	if in.CommunistShares, err = a.decimalOr("communist_shares", "0"); err != nil {
		return in, err
	}
	return in, nil
}

func (a argMap) positionUpdate() (ledger.PositionUpdate, error) {
	upd := ledger.PositionUpdate{Name: a.optionalString("name")}

	var err error
	if upd.Price, err = a.optionalDecimal("price"); err != nil {
		return upd, err
	}
	if upd.CommunistShares, err = a.optionalDecimal("communist_shares"); err != nil {
		return upd, err
	}
	return upd, nil
}
