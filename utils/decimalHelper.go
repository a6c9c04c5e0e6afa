package utils

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrBlankValue = errors.New("value is blank")
	ErrNotNumeric = errors.New("value is not numeric")
)

// currency markers seen in exported POS reports; longest first so "MXN" wins over "MN".
var currencyTokens = []string{"MXN", "mxn", "M.N.", "MN", "mn", "USD", "usd", "$"}

// ParseAmount accepts user formatted numbers such as:
// - "1,200.50"
// - "$ 1,200.50"
// - "MXN -80"
// - "(80.00)"
//
// A comma after the decimal point ("1.234,56") is rejected rather than guessed at.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, ErrBlankValue
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	for _, tok := range currencyTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}

	var b strings.Builder
	b.Grow(len(s) + 1)
	dot := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.':
			dot = true
			b.WriteRune(r)
		case r == ',' && dot:
			return decimal.Zero, fmt.Errorf("%w: %q uses a decimal comma", ErrNotNumeric, raw)
		case r == ',' || r == ' ' || r == ' ':
			// thousands separators
		default:
			return decimal.Zero, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
		}
	}
	clean := b.String()
	if clean == "" || clean == "." {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	if neg {
		clean = "-" + clean
	}

	val, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	return val, nil
}

// ParsePercent accepts "45%", "45 %" and "45".
func ParsePercent(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	return ParseAmount(s)
}

var (
	minCount = decimal.NewFromInt(math.MinInt32)
	maxCount = decimal.NewFromInt(math.MaxInt32)
)

// ParseCount accepts whole numbers, including "12.0" as printed by spreadsheets.
// Counts are stored as integer columns, so values outside int32 are rejected.
func ParseCount(raw string) (int, error) {
	d, err := ParseAmount(raw)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q is not a whole number", ErrNotNumeric, raw)
	}
	if d.LessThan(minCount) || d.GreaterThan(maxCount) {
		return 0, fmt.Errorf("%w: %q is out of range", ErrNotNumeric, raw)
	}
	return int(d.IntPart()), nil
}
