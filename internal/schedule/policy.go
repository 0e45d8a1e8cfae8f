package schedule

import (
	"fmt"
	"strings"

	"paylink/pkg/models"
)

// MonthSpanPolicy counts the inclusive number of billable months between two dates.
// Implementations must be deterministic.
type MonthSpanPolicy interface {
	Name() string
	MonthSpan(start, end models.Date) int
}

// CalendarPolicy treats every touched calendar month as a full month.
type CalendarPolicy struct{}

func (CalendarPolicy) Name() string { return "calendar" }

func (CalendarPolicy) MonthSpan(start, end models.Date) int {
	return monthDiff(start, end) + 1
}

// TolerantPolicy absorbs day-level noise from extracted dates. The raw month
// difference is nudged by one month when the end day leads or trails the start
// day by more than a week, and spans of 11 or 13 months that are within 20 days
// of a full year snap to 12. The nudge makes the span non-monotonic in the end
// day when the start day is after the 8th (Jan 15 to Feb 28 counts 2 months,
// Jan 15 to Mar 1 counts 1).
type TolerantPolicy struct{}

func (TolerantPolicy) Name() string { return "tolerant" }

func (TolerantPolicy) MonthSpan(start, end models.Date) int {
	months := monthDiff(start, end)
	dayDiff := end.Day() - start.Day()

	if dayDiff < -7 {
		months--
	} else if dayDiff > 7 {
		months++
	}

	if months == 11 && dayDiff > 20 {
		months = 12
	} else if months == 13 && dayDiff < -20 {
		months = 12
	}

	return max(months, 0)
}

func monthDiff(start, end models.Date) int {
	return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
}

var policies = map[string]MonthSpanPolicy{
	"tolerant": TolerantPolicy{},
	"calendar": CalendarPolicy{},
}

// PolicyByName looks up a registered policy. An empty name selects the tolerant policy.
func PolicyByName(name string) (MonthSpanPolicy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return TolerantPolicy{}, nil
	}
	policy, ok := policies[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	return policy, nil
}

// InstallmentCount converts a month span into a number of installments for term.
// Spans that collapse to zero or below yield no installments.
func InstallmentCount(monthSpan int, term models.PaymentTerm) int {
	if monthSpan <= 0 {
		return 0
	}
	if term == models.PaymentTermQuarterly {
		return (monthSpan + 2) / 3
	}
	return monthSpan
}
