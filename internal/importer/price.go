package importer

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var errNegativePrice = errors.New("negative price")

// parsePrice turns "12.50", "12,50", "1.234,56", "1,234.56" or "€ 12" into
// minor units. The right-most separator is taken as the decimal point.
func parsePrice(s string) (int64, error) {
	clean := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			return r
		}

		return -1
	}, s)

	lastDot := strings.LastIndex(clean, ".")
	lastComma := strings.LastIndex(clean, ",")

	switch {
	case lastComma > lastDot:
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.Replace(clean, ",", ".", 1)
	default:
		clean = strings.ReplaceAll(clean, ",", "")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, err
	}

	if d.IsNegative() {
		return 0, errNegativePrice
	}

	return d.Shift(2).Round(0).IntPart(), nil
}
