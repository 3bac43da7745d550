// Package refund computes the cancellation refund owed on a paid booking.
package refund

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid refund amount")
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// Tier names the cancellation window a quote fell into.
type Tier string

const (
	// TierLateCancellation covers services 24 hours away or less, including past ones.
	TierLateCancellation Tier = "late_cancellation"
	// TierShortNotice covers services at most four days away.
	TierShortNotice Tier = "short_notice"
	// TierStandard applies the provider share only.
	TierStandard Tier = "standard"
)

const (
	lateCancellationWindow = 24 * time.Hour
	shortNoticeWindow      = 96 * time.Hour

	moneyScale = 2

	scheduleDateLayout = "2006-01-02"
	scheduleTimeLayout = "15:04"
)

var (
	fullDeduction        = decimal.NewFromInt(1)
	shortNoticeDeduction = decimal.RequireFromString("0.5")
	providerShareRate    = decimal.RequireFromString("0.1")
)

// Quote is the outcome of a refund calculation.
// Refund and Deduction always add up to AmountPaid.
type Quote struct {
	Tier              Tier
	AmountPaid        decimal.Decimal
	Refund            decimal.Decimal
	Deduction         decimal.Decimal
	ProviderShare     decimal.Decimal
	HoursUntilService float64
}

// Calculate quotes the refund for a booking scheduled at scheduledAt and cancelled at now.
func Calculate(scheduledAt time.Time, now time.Time, amountPaid decimal.Decimal) (Quote, error) {
	if amountPaid.IsNegative() {
		return Quote{}, fmt.Errorf("%w: negative amount paid", ErrInvalidAmount)
	}
	if scheduledAt.IsZero() {
		return Quote{}, fmt.Errorf("%w: missing scheduled time", ErrInvalidSchedule)
	}
	untilService := scheduledAt.Sub(now)

	quote := Quote{
		AmountPaid:        amountPaid,
		HoursUntilService: untilService.Hours(),
	}
	var rate decimal.Decimal
	switch {
	case untilService <= lateCancellationWindow:
		quote.Tier = TierLateCancellation
		rate = fullDeduction
	case untilService <= shortNoticeWindow:
		quote.Tier = TierShortNotice
		rate = shortNoticeDeduction
	default:
		quote.Tier = TierStandard
		rate = providerShareRate
	}
	quote.Deduction = amountPaid.Mul(rate).Round(moneyScale)
	quote.Refund = amountPaid.Sub(quote.Deduction)
	if quote.Tier == TierStandard {
		quote.ProviderShare = quote.Deduction
	}
	return quote, nil
}

// ParseSchedule combines cart-style date (YYYY-MM-DD) and time (HH:MM) values in loc.
func ParseSchedule(date string, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	scheduled, err := time.ParseInLocation(scheduleDateLayout+" "+scheduleTimeLayout, strings.TrimSpace(date)+" "+strings.TrimSpace(clock), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return scheduled, nil
}
