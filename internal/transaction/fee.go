package transaction

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// SplitFee divides amount between the platform and the seller. The fee is
// rounded half away from zero to whole minor units and the seller gets the
// remainder, so fee + earnings always equals amount.
func SplitFee(amount int64, percent decimal.Decimal) (fee, earnings int64) {
	fee = decimal.NewFromInt(amount).Mul(percent).Div(hundred).Round(0).IntPart()

	return fee, amount - fee
}
