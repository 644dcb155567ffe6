package fees

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

const (
	fractionDigits = 18
	percentDigits  = 16
)

// ParsePercentage converts a human readable fee fraction into its 18-decimal
// fixed-point form. Values ending in "%" are read as percentages ("1%",
// "0.25%"); anything else is read as a fraction of one ("0.01").
func ParsePercentage(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("fees: percentage required")
	}
	digits := fractionDigits
	if strings.HasSuffix(trimmed, "%") {
		digits = percentDigits
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "%"))
	}
	whole, frac, _ := strings.Cut(trimmed, ".")
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("fees: invalid percentage %q", raw)
	}
	if len(frac) > digits {
		return nil, fmt.Errorf("fees: percentage %q exceeds %d decimals", raw, digits)
	}
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return nil, fmt.Errorf("fees: invalid percentage %q", raw)
			}
		}
	}
	scaled := strings.TrimLeft(whole+frac+strings.Repeat("0", digits-len(frac)), "0")
	if scaled == "" {
		return new(uint256.Int), nil
	}
	value, err := uint256.FromDecimal(scaled)
	if err != nil {
		return nil, fmt.Errorf("fees: invalid percentage %q: %w", raw, err)
	}
	if value.Gt(One) {
		return nil, ErrPercentageAboveOne
	}
	return value, nil
}

// FormatPercentage renders a fixed-point fraction as a decimal fraction of
// one with trailing zeros removed, e.g. 1e16 -> "0.01".
func FormatPercentage(pct *uint256.Int) string {
	if pct == nil || pct.IsZero() {
		return "0"
	}
	whole, rem := new(uint256.Int).DivMod(pct, One, new(uint256.Int))
	if rem.IsZero() {
		return whole.Dec()
	}
	frac := rem.Dec()
	frac = strings.Repeat("0", fractionDigits-len(frac)) + frac
	return whole.Dec() + "." + strings.TrimRight(frac, "0")
}
