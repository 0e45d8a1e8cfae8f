package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPaymentTerm is returned for any payment term other than monthly or quarterly.
var ErrInvalidPaymentTerm = errors.New("invalid payment term")

// PaymentTerm is the billing cadence chosen by the payer.
type PaymentTerm string

const (
	PaymentTermMonthly   PaymentTerm = "monthly"
	PaymentTermQuarterly PaymentTerm = "quarterly"
)

// ParsePaymentTerm normalizes s and rejects unknown terms.
func ParsePaymentTerm(s string) (PaymentTerm, error) {
	term := PaymentTerm(strings.ToLower(strings.TrimSpace(s)))
	if !term.Valid() {
		return "", fmt.Errorf("%w: %q (expected monthly or quarterly)", ErrInvalidPaymentTerm, s)
	}
	return term, nil
}

// Valid reports whether t is a known payment term.
func (t PaymentTerm) Valid() bool {
	return t == PaymentTermMonthly || t == PaymentTermQuarterly
}

// IntervalMonths is the number of months between two installments.
func (t PaymentTerm) IntervalMonths() int {
	if t == PaymentTermQuarterly {
		return 3
	}
	return 1
}

// LineItem is one charge extracted from a document or prompt.
// Amounts are integer cents.
type LineItem struct {
	ID                 string `json:"id"`
	ServiceTitle       string `json:"serviceTitle"`
	ServiceDescription string `json:"serviceDescription"`
	ServiceAmount      int64  `json:"serviceAmount"`
	IsSpecialCharge    bool   `json:"isSpecialCharge"`
	StartDate          Date   `json:"startDate"`
	EndDate            Date   `json:"endDate"`
}

// IsSubscription reports whether the item is a recurring charge with a full date range.
func (l LineItem) IsSubscription() bool {
	return !l.IsSpecialCharge && !l.StartDate.IsZero() && !l.EndDate.IsZero()
}

// BuyerProfile identifies the company being financed.
type BuyerProfile struct {
	CompanyName  string `json:"buyerCompanyName"`
	Address      string `json:"buyerCompanyAddress"`
	ContactName  string `json:"buyerCompanyContactName"`
	ContactEmail string `json:"buyerCompanyContactEmail"`
}

// Extraction is what an extraction backend produces from one document and
// what a payment link persists.
type Extraction struct {
	Buyer     BuyerProfile `json:"buyerData"`
	LineItems []LineItem   `json:"invoiceData"`
}
