package billing

import (
	"math"
	"time"

	"github.com/camiloruiz/campus-parking/internal/domain"
)

// Calculator computes parking charges from zone tariffs. Rates are hourly
// amounts in COP; charges are prorated by the minute and never fall below
// one full hour.
type Calculator struct{}

// NewCalculator creates a billing calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Minutes returns the elapsed minutes between entry and exit as a real
// number. Fails when exit precedes entry.
func (c *Calculator) Minutes(enteredAt, exitedAt time.Time) (float64, error) {
	if exitedAt.Before(enteredAt) {
		return 0, domain.ErrInvalidInterval
	}
	return exitedAt.Sub(enteredAt).Minutes(), nil
}

// Cost computes the charge in COP for a stay of the given minutes at the
// given hourly rate. The prorated amount is rounded half up to the
// nearest peso, then floored at the one-hour minimum.
func (c *Calculator) Cost(hourlyRate int64, minutes float64) int64 {
	ratePerMinute := float64(hourlyRate) / 60.0
	amount := roundHalfUp(ratePerMinute * minutes)
	if amount < hourlyRate {
		return hourlyRate
	}
	return amount
}

// Quote computes duration and cost for a finalized stay in one call.
// DurationMinutes is rounded half up for reporting; the cost uses the
// exact fractional minutes.
func (c *Calculator) Quote(hourlyRate int64, enteredAt, exitedAt time.Time) (durationMinutes, cost int64, err error) {
	minutes, err := c.Minutes(enteredAt, exitedAt)
	if err != nil {
		return 0, 0, err
	}
	return roundHalfUp(minutes), c.Cost(hourlyRate, minutes), nil
}

func roundHalfUp(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}
