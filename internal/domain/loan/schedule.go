package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

const currencyPlaces = 2

// InstallmentAmount splits total evenly with banker's rounding. The remainder is not
// redistributed, so the installments may sum to a few cents off total.
func InstallmentAmount(total decimal.Decimal, count int) decimal.Decimal {
	return total.Div(decimal.NewFromInt(int64(count))).RoundBank(currencyPlaces)
}

// FirstDueDate is the first day of the month after today, as a UTC calendar date.
func FirstDueDate(today time.Time) time.Time {
	return time.Date(today.Year(), today.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

func GenerateInstallments(total decimal.Decimal, count int, today time.Time) []Installment {
	amount := InstallmentAmount(total, count)
	first := FirstDueDate(today)

	installments := make([]Installment, 0, count)
	for i := 0; i < count; i++ {
		installments = append(installments, Installment{
			Amount:     amount,
			PaidAmount: decimal.Zero,
			DueDate:    first.AddDate(0, i, 0),
			IsPaid:     false,
		})
	}
	return installments
}

// addMonths moves t by n calendar months, clamping to the last day of the target month
// instead of overflowing into the next one (Nov 30 + 3 months is Feb 28, not Mar 2).
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	lastDay := time.Date(y, m+time.Month(n)+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(y, m+time.Month(n), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// dateOf keeps t's calendar day in its own zone and returns it as UTC midnight, the
// form pgx scans DATE columns into.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
