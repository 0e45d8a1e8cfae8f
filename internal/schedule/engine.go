// Package schedule turns invoice line items into a buyer-facing installment
// schedule.
//
// Subscription charges (items with a date range) are split into monthly or
// quarterly installments, installments from concurrent invoices that fall on
// the same calendar day are merged, and one-off fees are anchored to the
// earliest subscription start. All amounts are integer cents and every
// per-invoice schedule sums exactly to its invoice total.
//
// The package performs no I/O and keeps no state between calls, so an Engine
// can be shared by any number of goroutines.
package schedule

import (
	"fmt"
	"slices"

	"github.com/samber/lo"

	"paylink/pkg/models"
)

// Engine computes payment data under one month span policy.
type Engine struct {
	// Policy counts billable months. Nil means TolerantPolicy.
	Policy MonthSpanPolicy

	// Lenient skips invalid items instead of rejecting the batch. Skipped ids
	// are reported in PaymentData.Dropped.
	Lenient bool
}

var defaultEngine = Engine{Policy: TolerantPolicy{}}

// Compute runs the default engine (tolerant policy, strict validation).
func Compute(items []models.LineItem, term models.PaymentTerm) (*PaymentData, error) {
	return defaultEngine.Compute(items, term)
}

func (e Engine) policy() MonthSpanPolicy {
	if e.Policy == nil {
		return TolerantPolicy{}
	}
	return e.Policy
}

// Compute derives per-invoice schedules, the aggregated schedule and summary
// statistics for items under term. Item order does not affect the result.
func (e Engine) Compute(items []models.LineItem, term models.PaymentTerm) (*PaymentData, error) {
	if !term.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidPaymentTerm, term)
	}

	accepted, issues := checkBatch(items)
	var dropped []string
	if len(issues) > 0 {
		verr := &BatchValidationError{Issues: issues}
		if !e.Lenient {
			return nil, verr
		}
		dropped = verr.ItemIDs()
	}

	subscriptions, oneOffs := lo.FilterReject(accepted, func(item models.LineItem, _ int) bool {
		return item.IsSubscription()
	})

	details := lo.Map(subscriptions, func(item models.LineItem, _ int) InvoiceDetail {
		return e.deriveDetail(item, term)
	})

	start, end := overallSpan(details)
	aggregated := aggregate(details)
	amounts := lo.Map(aggregated, func(inst Installment, _ int) int64 { return inst.Amount })

	summary := SubscriptionSummary{
		OverallStartDate: start,
		OverallEndDate:   end,
		TotalSubscriptionAmount: lo.SumBy(details, func(d InvoiceDetail) int64 {
			return d.TotalAmount
		}),
		TotalInstallments:    len(aggregated),
		MinInstallmentAmount: lo.Min(amounts),
		MaxInstallmentAmount: lo.Max(amounts),
		Schedule:             aggregated,
	}

	oneOffDetails := lo.Map(oneOffs, func(item models.LineItem, _ int) OneOffDetail {
		return OneOffDetail{
			ID:           item.ID,
			ServiceTitle: item.ServiceTitle,
			DueDate:      copyDate(start),
			Amount:       item.ServiceAmount,
		}
	})

	return &PaymentData{
		Term:   term,
		Policy: e.policy().Name(),
		Summary: PaymentSummary{
			Subscription: summary,
			OneOff:       oneOffDetails,
		},
		Details: details,
		Dropped: dropped,
	}, nil
}

func (e Engine) deriveDetail(item models.LineItem, term models.PaymentTerm) InvoiceDetail {
	span := e.policy().MonthSpan(item.StartDate, item.EndDate)
	count := InstallmentCount(span, term)

	detail := InvoiceDetail{
		ID:               item.ID,
		ServiceTitle:     item.ServiceTitle,
		StartDate:        item.StartDate,
		EndDate:          item.EndDate,
		TotalAmount:      item.ServiceAmount,
		MonthSpan:        span,
		InstallmentCount: count,
		Schedule:         []Installment{},
	}
	if count == 0 {
		return detail
	}

	// Amounts were validated as non-negative and count is positive.
	amounts, _ := Distribute(item.ServiceAmount, count)
	detail.InstallmentAmount = item.ServiceAmount / int64(count)
	detail.InstallmentRemainder = item.ServiceAmount % int64(count)
	detail.Schedule = buildSchedule(item.StartDate, item.EndDate, amounts, term.IntervalMonths())
	return detail
}

// buildSchedule dates installment i at start + i*interval months. Dates past
// end are clamped to end.
func buildSchedule(start, end models.Date, amounts []int64, interval int) []Installment {
	entries := make([]Installment, len(amounts))
	for i, amount := range amounts {
		date := start.AddMonths(i * interval)
		if date.After(end) {
			date = end
		}
		entries[i] = Installment{Date: date, Amount: amount}
	}
	return entries
}

func overallSpan(details []InvoiceDetail) (*models.Date, *models.Date) {
	if len(details) == 0 {
		return nil, nil
	}
	start := lo.MinBy(details, func(a, b InvoiceDetail) bool { return a.StartDate.Before(b.StartDate) }).StartDate
	end := lo.MaxBy(details, func(a, b InvoiceDetail) bool { return a.EndDate.After(b.EndDate) }).EndDate
	return &start, &end
}

// aggregate merges installments of every invoice with a positive total into one
// entry per calendar day, sorted ascending.
func aggregate(details []InvoiceDetail) []Installment {
	billable := lo.Filter(details, func(d InvoiceDetail, _ int) bool { return d.TotalAmount > 0 })
	flat := lo.FlatMap(billable, func(d InvoiceDetail, _ int) []Installment { return d.Schedule })
	byDay := lo.GroupBy(flat, func(inst Installment) string { return inst.Date.String() })

	merged := lo.MapToSlice(byDay, func(_ string, group []Installment) Installment {
		return Installment{
			Date:   group[0].Date,
			Amount: lo.SumBy(group, func(inst Installment) int64 { return inst.Amount }),
		}
	})
	slices.SortFunc(merged, func(a, b Installment) int { return a.Date.Compare(b.Date.Time) })
	return merged
}

func copyDate(d *models.Date) *models.Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
