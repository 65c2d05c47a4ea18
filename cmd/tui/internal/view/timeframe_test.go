package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeframe_Range(t *testing.T) {
	// A Sunday.
	now := time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		tf        Timeframe
		wantStart time.Time
		wantEnd   time.Time
		wantOK    bool
	}{
		{tf: TimeframeAll},
		{
			tf:        TimeframeThisWeek,
			wantStart: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
			wantOK:    true,
		},
		{
			tf:        TimeframeThisMonth,
			wantStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			wantOK:    true,
		},
		{
			tf:        TimeframeLastMonth,
			wantStart: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			wantOK:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.tf.String(), func(t *testing.T) {
			start, end, ok := tt.tf.Range(now)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestTimeframe_NextCycles(t *testing.T) {
	tf := TimeframeAll
	for range timeframeCount {
		tf = tf.Next()
	}

	assert.Equal(t, TimeframeAll, tf)
}

func TestFormatAmountAndOptionalDate(t *testing.T) {
	assert.Equal(t, "92.00 USD", FormatAmount(9200, "usd"))
	assert.Equal(t, "0.05 EUR", FormatAmount(5, "eur"))
	assert.Equal(t, "-", FormatOptionalDate(nil))
}
