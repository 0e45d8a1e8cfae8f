package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylink/pkg/models"
)

func TestTolerantPolicyMonthSpan(t *testing.T) {
	tests := []struct {
		name  string
		start models.Date
		end   models.Date
		want  int
	}{
		{"full calendar year", date(2025, 1, 1), date(2025, 12, 31), 12},
		{"mid month year", date(2025, 1, 15), date(2026, 1, 14), 12},
		{"single month", date(2025, 1, 1), date(2025, 1, 31), 1},
		{"small lead ignored", date(2025, 1, 10), date(2025, 4, 15), 3},
		{"small trail ignored", date(2025, 1, 10), date(2025, 4, 5), 3},
		{"trailing more than a week", date(2025, 1, 31), date(2026, 1, 1), 11},
		{"almost a year snaps up", date(2025, 1, 1), date(2025, 11, 25), 12},
		{"just over a year snaps down", date(2025, 1, 25), date(2026, 3, 1), 12},
		{"same day", date(2025, 3, 10), date(2025, 3, 10), 0},
		{"end before start", date(2025, 5, 1), date(2025, 3, 1), 0},
		{"two years", date(2024, 1, 1), date(2025, 12, 31), 24},
		{"lead past a week", date(2025, 1, 15), date(2025, 2, 28), 2},
		{"trail past a week", date(2025, 1, 15), date(2025, 3, 1), 1},
	}

	policy := TolerantPolicy{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.MonthSpan(tt.start, tt.end))
		})
	}
}

func TestCalendarPolicyMonthSpan(t *testing.T) {
	tests := []struct {
		name  string
		start models.Date
		end   models.Date
		want  int
	}{
		{"full calendar year", date(2025, 1, 1), date(2025, 12, 31), 12},
		{"partial months count fully", date(2025, 1, 15), date(2025, 2, 14), 2},
		{"same day", date(2025, 3, 10), date(2025, 3, 10), 1},
		{"across years", date(2024, 11, 1), date(2025, 2, 28), 4},
		{"end before start", date(2025, 5, 1), date(2025, 3, 1), -1},
	}

	policy := CalendarPolicy{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.MonthSpan(tt.start, tt.end))
		})
	}
}

func TestCalendarPolicyIsMonotonic(t *testing.T) {
	policy := CalendarPolicy{}
	start := date(2025, 1, 15)
	prev := 0
	for end := start; end.Year() < 2027; end = models.DateOf(end.AddDate(0, 0, 1)) {
		got := policy.MonthSpan(start, end)
		require.GreaterOrEqual(t, got, prev, "span decreased at %s", end)
		prev = got
	}
}

func TestInstallmentCount(t *testing.T) {
	tests := []struct {
		span int
		term models.PaymentTerm
		want int
	}{
		{12, models.PaymentTermMonthly, 12},
		{12, models.PaymentTermQuarterly, 4},
		{13, models.PaymentTermQuarterly, 5},
		{1, models.PaymentTermQuarterly, 1},
		{0, models.PaymentTermMonthly, 0},
		{-3, models.PaymentTermQuarterly, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, InstallmentCount(tt.span, tt.term), "span %d %s", tt.span, tt.term)
	}
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("")
	require.NoError(t, err)
	assert.Equal(t, "tolerant", p.Name())

	p, err = PolicyByName(" Calendar ")
	require.NoError(t, err)
	assert.Equal(t, "calendar", p.Name())

	_, err = PolicyByName("lunar")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		from models.Date
		n    int
		want models.Date
	}{
		{date(2025, 1, 31), 1, date(2025, 2, 28)},
		{date(2024, 1, 31), 1, date(2024, 2, 29)},
		{date(2025, 1, 31), 3, date(2025, 4, 30)},
		{date(2025, 11, 30), 3, date(2026, 2, 28)},
		{date(2025, 3, 15), 0, date(2025, 3, 15)},
		{date(2025, 12, 1), 1, date(2026, 1, 1)},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.AddMonths(tt.n), "%s + %d", tt.from, tt.n)
	}
	assert.Equal(t, time.UTC, date(2025, 1, 1).AddMonths(1).Location())
}
