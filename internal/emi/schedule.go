// Package emi holds the pure installment-plan math: schedule generation and
// refund computation. Nothing in here touches storage or sessions.
package emi

import (
	"errors"
	"time"

	"emi-service/internal/models"
)

// ErrInvalidSchedule is returned for a non-positive amount or tenure.
var ErrInvalidSchedule = errors.New("invalid schedule: tenure must be >= 1 and amount > 0")

// MonthlyAmount is the per-installment amount for all but the last
// installment: floor(totalAmount / totalTenure).
func MonthlyAmount(totalAmount int64, totalTenure int) int64 {
	return totalAmount / int64(totalTenure)
}

// BuildSchedule derives the installment schedule for an EMI plan.
//
// Every installment carries the floored monthly amount except the last, which
// absorbs the remainder so the amounts sum exactly to totalAmount. Installment
// k (1-based) is due k calendar months after startDate; the first installment
// is therefore due one month after purchase, not immediately.
func BuildSchedule(totalAmount int64, totalTenure int, startDate time.Time) ([]models.Installment, error) {
	if totalTenure < 1 || totalAmount <= 0 {
		return nil, ErrInvalidSchedule
	}

	monthly := MonthlyAmount(totalAmount, totalTenure)
	schedule := make([]models.Installment, 0, totalTenure)

	for k := 1; k <= totalTenure; k++ {
		amount := monthly
		if k == totalTenure {
			amount = totalAmount - monthly*int64(totalTenure-1)
		}
		schedule = append(schedule, models.Installment{
			InstallmentNumber: k,
			Amount:            amount,
			DueDate:           AddMonths(startDate, k),
			Status:            models.InstallmentStatusPending,
		})
	}

	return schedule, nil
}

// AddMonths advances t by the given number of calendar months, clamping to the
// last day of the target month. Jan 31 + 1 month is Feb 28 (or 29), not Mar 3.
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
