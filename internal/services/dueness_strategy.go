// Package services hosts the ledger controller and the recurring roller.
//
// Dueness of a recurring rule is decided by one strategy per period; all of
// them work on calendar days in UTC.
package services

import (
	"fmt"
	"time"

	"presupuesto/internal/core"
)

// DuenessChecker decides whether a rule that already fired on lastApplied
// should fire again today.
type DuenessChecker interface {
	IsDue(lastApplied, today, start core.Date) bool
}

// DailyChecker fires on every new calendar day.
type DailyChecker struct{}

func (DailyChecker) IsDue(lastApplied, today, _ core.Date) bool {
	return today.After(lastApplied.Time)
}

// WeeklyChecker fires once seven or more days have passed.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(lastApplied, today, _ core.Date) bool {
	return daysBetween(lastApplied, today) >= 7
}

// MonthlyChecker fires in a new month once the start day is reached.
// Start days past the end of the month clamp to its last day.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastApplied, today, start core.Date) bool {
	if !monthAfter(lastApplied, today) {
		return false
	}
	return today.Day() >= clampDay(today.Year(), today.Month(), start.Day())
}

// YearlyChecker fires in a new year once the start month and day are reached.
type YearlyChecker struct{}

func (YearlyChecker) IsDue(lastApplied, today, start core.Date) bool {
	if today.Year() <= lastApplied.Year() {
		return false
	}
	switch {
	case today.Month() < start.Month():
		return false
	case today.Month() > start.Month():
		return true
	default:
		return today.Day() >= clampDay(today.Year(), today.Month(), start.Day())
	}
}

var duenessStrategies = map[core.RepetitionTypes]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker registered for a period.
func GetDuenessChecker(period core.RepetitionTypes) (DuenessChecker, error) {
	checker, ok := duenessStrategies[period]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidPeriod, period)
	}
	return checker, nil
}

// IsRuleDue combines the start date with the period strategy. A rule that
// never fired is due once today reaches its start date.
func IsRuleDue(rule core.RecurringRule, today core.Date) (bool, error) {
	checker, err := GetDuenessChecker(rule.Every)
	if err != nil {
		return false, err
	}
	if today.Before(rule.StartDate.Time) {
		return false, nil
	}
	if rule.LastApplied.IsEmpty() {
		return true, nil
	}
	return checker.IsDue(rule.LastApplied, today, rule.StartDate), nil
}

func daysBetween(from, to core.Date) int {
	return int(to.Sub(from.Time).Hours() / 24)
}

func monthAfter(last, today core.Date) bool {
	return today.Year()*12+today.Month() > last.Year()*12+last.Month()
}

func clampDay(year, month, day int) int {
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}
