package schedule

import "paylink/pkg/models"

// Installment is one scheduled payment.
type Installment struct {
	Date   models.Date `json:"date"`
	Amount int64       `json:"amount"`
}

// InvoiceDetail is the installment plan derived from one subscription line item.
// InstallmentAmount is the base amount; the first InstallmentRemainder entries of
// Schedule carry one extra cent so the schedule sums to TotalAmount.
type InvoiceDetail struct {
	ID                   string        `json:"id"`
	ServiceTitle         string        `json:"serviceTitle"`
	StartDate            models.Date   `json:"startDate"`
	EndDate              models.Date   `json:"endDate"`
	TotalAmount          int64         `json:"totalAmount"`
	MonthSpan            int           `json:"monthSpan"`
	InstallmentCount     int           `json:"installmentCount"`
	InstallmentAmount    int64         `json:"installmentAmount"`
	InstallmentRemainder int64         `json:"installmentRemainder"`
	Schedule             []Installment `json:"schedule"`
}

// OneOffDetail is a special charge due at the start of the financing relationship.
// DueDate is nil when the batch has no subscriptions.
type OneOffDetail struct {
	ID           string       `json:"id"`
	ServiceTitle string       `json:"serviceTitle"`
	DueDate      *models.Date `json:"dueDate"`
	Amount       int64        `json:"amount"`
}

// SubscriptionSummary describes the aggregated schedule shown to the payer.
type SubscriptionSummary struct {
	OverallStartDate        *models.Date  `json:"overallStartDate"`
	OverallEndDate          *models.Date  `json:"overallEndDate"`
	TotalSubscriptionAmount int64         `json:"totalSubscriptionAmount"`
	TotalInstallments       int           `json:"totalInstallments"`
	MinInstallmentAmount    int64         `json:"minInstallmentAmount"`
	MaxInstallmentAmount    int64         `json:"maxInstallmentAmount"`
	Schedule                []Installment `json:"schedule"`
}

// PaymentSummary groups the subscription summary with the one-off fees.
type PaymentSummary struct {
	Subscription SubscriptionSummary `json:"subscription"`
	OneOff       []OneOffDetail      `json:"oneOff"`
}

// PaymentData is the full result of one computation. It is never reused
// between calls.
type PaymentData struct {
	Term    models.PaymentTerm `json:"paymentTerm"`
	Policy  string             `json:"monthPolicy"`
	Summary PaymentSummary     `json:"summary"`
	Details []InvoiceDetail    `json:"details"`

	// Dropped lists ids of invalid items skipped by a lenient engine.
	Dropped []string `json:"dropped,omitempty"`
}

// GrandTotal is the subscription total plus every one-off fee.
func (p *PaymentData) GrandTotal() int64 {
	total := p.Summary.Subscription.TotalSubscriptionAmount
	for _, fee := range p.Summary.OneOff {
		total += fee.Amount
	}
	return total
}
