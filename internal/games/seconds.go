package games

import (
	"time"

	"github.com/shopspring/decimal"
)

// FinishSeconds converts a finish time to seconds at millisecond precision.
// Display it with StringFixed(2).
func FinishSeconds(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(d.Milliseconds()).Div(decimal.NewFromInt(1000))
}
