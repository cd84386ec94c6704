package emi

import (
	"testing"
	"time"

	"emi-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildScheduleSumsExactly(t *testing.T) {
	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		total  int64
		tenure int
	}{
		{"even split", 12000, 12},
		{"remainder on last", 10000, 3},
		{"single installment", 9999, 1},
		{"amount smaller than tenure", 5, 3},
		{"large plan", 24_999_999, 24},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			schedule, err := BuildSchedule(tc.total, tc.tenure, start)
			require.NoError(t, err)
			require.Len(t, schedule, tc.tenure)

			var sum int64
			monthly := MonthlyAmount(tc.total, tc.tenure)
			for i, inst := range schedule {
				assert.Equal(t, i+1, inst.InstallmentNumber)
				assert.Equal(t, models.InstallmentStatusPending, inst.Status)
				assert.Positive(t, inst.Amount)
				if i < tc.tenure-1 {
					assert.Equal(t, monthly, inst.Amount)
				}
				sum += inst.Amount
			}
			assert.Equal(t, tc.total, sum, "schedule must sum exactly to the total")
		})
	}
}

func TestBuildScheduleRemainderExample(t *testing.T) {
	schedule, err := BuildSchedule(10000, 3, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	amounts := []int64{schedule[0].Amount, schedule[1].Amount, schedule[2].Amount}
	assert.Equal(t, []int64{3333, 3333, 3334}, amounts)
}

func TestBuildScheduleDueDates(t *testing.T) {
	start := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	schedule, err := BuildSchedule(30000, 3, start)
	require.NoError(t, err)

	// Installment k is due k calendar months after the start date, including
	// the first one.
	assert.Equal(t, time.Date(2024, 4, 15, 10, 30, 0, 0, time.UTC), schedule[0].DueDate)
	assert.Equal(t, time.Date(2024, 5, 15, 10, 30, 0, 0, time.UTC), schedule[1].DueDate)
	assert.Equal(t, time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC), schedule[2].DueDate)
}

func TestBuildScheduleInvalidInputs(t *testing.T) {
	start := time.Now()

	_, err := BuildSchedule(1000, 0, start)
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	_, err = BuildSchedule(0, 3, start)
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	_, err = BuildSchedule(-500, 3, start)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	jan31 := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), AddMonths(jan31, 1))

	leapJan31 := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), AddMonths(leapJan31, 1))

	// Crossing a year boundary keeps the day when it fits.
	nov15 := time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), AddMonths(nov15, 3))
}
