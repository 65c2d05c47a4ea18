package transaction_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/babyresell/babyresell/internal/transaction"
)

func TestSplitFee(t *testing.T) {
	tests := []struct {
		name         string
		amount       int64
		percent      decimal.Decimal
		wantFee      int64
		wantEarnings int64
	}{
		{name: "Hundred dollars at eight percent", amount: 10000, percent: decimal.NewFromInt(8), wantFee: 800, wantEarnings: 9200},
		{name: "Rounds up", amount: 1999, percent: decimal.NewFromInt(8), wantFee: 160, wantEarnings: 1839},
		{name: "Rounds down", amount: 1250, percent: decimal.RequireFromString("2.5"), wantFee: 31, wantEarnings: 1219},
		{name: "Half rounds away from zero", amount: 5, percent: decimal.NewFromInt(10), wantFee: 1, wantEarnings: 4},
		{name: "Zero rate", amount: 4200, percent: decimal.Zero, wantFee: 0, wantEarnings: 4200},
		{name: "Zero amount", amount: 0, percent: decimal.NewFromInt(8), wantFee: 0, wantEarnings: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, earnings := transaction.SplitFee(tt.amount, tt.percent)
			assert.Equal(t, tt.wantFee, fee)
			assert.Equal(t, tt.wantEarnings, earnings)
		})
	}
}

func TestSplitFee_PartsAddUp(t *testing.T) {
	rates := []decimal.Decimal{
		decimal.NewFromInt(8),
		decimal.RequireFromString("2.9"),
		decimal.RequireFromString("12.75"),
	}

	for _, rate := range rates {
		for amount := int64(1); amount < 5000; amount += 37 {
			fee, earnings := transaction.SplitFee(amount, rate)
			assert.Equal(t, amount, fee+earnings, "amount %d rate %s", amount, rate)
			assert.GreaterOrEqual(t, fee, int64(0))
		}
	}
}
