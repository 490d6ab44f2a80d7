package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	amountScale        = 2
	thousandsSeparator = ","
)

var centsPerUnit = decimal.NewFromInt(100)

// AmountFromDecimal rounds value to two places and converts it to cents.
func AmountFromDecimal(value decimal.Decimal) (AmountCents, error) {
	rounded := value.Round(amountScale)
	if !rounded.IsPositive() {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
	}
	return NewAmountCents(rounded.Mul(centsPerUnit).IntPart())
}

// ParseAmount converts a decimal string such as "1250.5" to cents.
func ParseAmount(raw string) (AmountCents, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmountCents, raw)
	}
	return AmountFromDecimal(value)
}

// Decimal returns the amount in units.
func (amount AmountCents) Decimal() decimal.Decimal {
	return decimal.New(amount.Int64(), -amountScale)
}

// String renders the amount with two decimal places, e.g. "1234.50".
func (amount AmountCents) String() string {
	return amount.Decimal().StringFixed(amountScale)
}

// Format renders the amount for people, e.g. "1,234.50".
func (amount AmountCents) Format() string {
	fixed := amount.String()
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	whole, fraction, _ := strings.Cut(fixed, ".")
	var grouped strings.Builder
	for index, digit := range whole {
		if index > 0 && (len(whole)-index)%3 == 0 {
			grouped.WriteString(thousandsSeparator)
		}
		grouped.WriteRune(digit)
	}
	return sign + grouped.String() + "." + fraction
}
