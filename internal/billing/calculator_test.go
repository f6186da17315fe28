package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camiloruiz/campus-parking/internal/domain"
)

func TestCalculator_Cost(t *testing.T) {
	calc := NewCalculator()

	tests := []struct {
		name       string
		hourlyRate int64
		minutes    float64
		want       int64
	}{
		{
			name:       "ninety minutes at 3000 per hour",
			hourlyRate: 3000,
			minutes:    90,
			want:       4500,
		},
		{
			name:       "ten minutes charges the one hour minimum",
			hourlyRate: 3000,
			minutes:    10,
			want:       3000,
		},
		{
			name:       "exactly one hour",
			hourlyRate: 3000,
			minutes:    60,
			want:       3000,
		},
		{
			name:       "zero minutes charges the minimum",
			hourlyRate: 2500,
			minutes:    0,
			want:       2500,
		},
		{
			name:       "fractional peso rounds half up",
			hourlyRate: 3000,
			minutes:    61.01, // 3050.5 prorated
			want:       3051,
		},
		{
			name:       "fractional peso below half rounds down",
			hourlyRate: 3000,
			minutes:    61.008, // 3050.4 prorated
			want:       3050,
		},
		{
			name:       "long stay",
			hourlyRate: 1000,
			minutes:    24 * 60,
			want:       24000,
		},
		{
			name:       "free category charges nothing",
			hourlyRate: 0,
			minutes:    200,
			want:       0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Cost(tt.hourlyRate, tt.minutes)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculator_Minutes(t *testing.T) {
	calc := NewCalculator()
	entered := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	t.Run("returns fractional minutes", func(t *testing.T) {
		minutes, err := calc.Minutes(entered, entered.Add(90*time.Minute+30*time.Second))
		require.NoError(t, err)
		assert.InDelta(t, 90.5, minutes, 0.001)
	})

	t.Run("zero duration is valid", func(t *testing.T) {
		minutes, err := calc.Minutes(entered, entered)
		require.NoError(t, err)
		assert.Zero(t, minutes)
	})

	t.Run("exit before entry fails", func(t *testing.T) {
		_, err := calc.Minutes(entered, entered.Add(-time.Minute))
		assert.ErrorIs(t, err, domain.ErrInvalidInterval)
	})
}

func TestCalculator_Quote(t *testing.T) {
	calc := NewCalculator()
	entered := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	t.Run("duration and cost for a ninety minute stay", func(t *testing.T) {
		duration, cost, err := calc.Quote(3000, entered, entered.Add(90*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(90), duration)
		assert.Equal(t, int64(4500), cost)
	})

	t.Run("short stay reports real duration but charges minimum", func(t *testing.T) {
		duration, cost, err := calc.Quote(3000, entered, entered.Add(10*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(10), duration)
		assert.Equal(t, int64(3000), cost)
	})

	t.Run("negative interval fails", func(t *testing.T) {
		_, _, err := calc.Quote(3000, entered, entered.Add(-time.Second))
		assert.ErrorIs(t, err, domain.ErrInvalidInterval)
	})
}
