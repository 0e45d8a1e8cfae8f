package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"paylink/pkg/models"
)

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

var fencePattern = regexp.MustCompile("(?s)^\\s*```(?:json)?\\s*(.*?)\\s*```\\s*$")

// dateLayouts are tried in order after ISO dates.
var dateLayouts = []string{
	"02.01.2006",
	"01/02/2006",
	"2006/01/02",
	"02-01-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// rawResponse accepts both the model's flat shape and the stored link shape.
type rawResponse struct {
	BuyerCompanyName         string    `json:"buyerCompanyName"`
	BuyerCompanyAddress      string    `json:"buyerCompanyAddress"`
	BuyerCompanyContactName  string    `json:"buyerCompanyContactName"`
	BuyerCompanyContactEmail string    `json:"buyerCompanyContactEmail"`
	ScheduleItems            []rawItem `json:"scheduleItems"`

	BuyerData   *models.BuyerProfile `json:"buyerData"`
	InvoiceData []rawItem            `json:"invoiceData"`
}

type rawItem struct {
	ID                 string     `json:"id"`
	ServiceTitle       string     `json:"serviceTitle"`
	ServiceDescription string     `json:"serviceDescription"`
	ServiceAmount      flexAmount `json:"serviceAmount"`
	IsSpecialCharge    flexBool   `json:"isSpecialCharge"`
	StartDate          *string    `json:"startDate"`
	EndDate            *string    `json:"endDate"`
}

// flexAmount is an integral cent amount given as a JSON number or string.
type flexAmount struct {
	cents int64
}

func (a *flexAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		a.cents = 0
		return nil
	}
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			a.cents = 0
			return nil
		}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("serviceAmount %s is not a number", raw)
	}
	if !d.IsInteger() {
		return fmt.Errorf("serviceAmount %s is not a whole number of cents", raw)
	}
	if d.GreaterThan(maxCents) || d.LessThan(minCents) {
		return fmt.Errorf("serviceAmount %s is out of range", raw)
	}
	a.cents = d.IntPart()
	return nil
}

// flexBool accepts true, false, "true", "false" and null.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(data)), `"`)) {
	case "true", "yes", "1":
		*b = true
	case "false", "no", "0", "", "null":
		*b = false
	default:
		return fmt.Errorf("isSpecialCharge %s is not a boolean", data)
	}
	return nil
}

// ParseResponse decodes model output into an Extraction. A ```json fence
// around the object is stripped. Missing ids become invoice-{index}.
func ParseResponse(text string) (*models.Extraction, error) {
	body := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(body); m != nil {
		body = m[1]
	}
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}

	var raw rawResponse
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	result := &models.Extraction{
		Buyer: models.BuyerProfile{
			CompanyName:  raw.BuyerCompanyName,
			Address:      raw.BuyerCompanyAddress,
			ContactName:  raw.BuyerCompanyContactName,
			ContactEmail: raw.BuyerCompanyContactEmail,
		},
	}
	if raw.BuyerData != nil {
		result.Buyer = *raw.BuyerData
	}

	items := raw.ScheduleItems
	if len(items) == 0 {
		items = raw.InvoiceData
	}
	result.LineItems = make([]models.LineItem, 0, len(items))
	for i, item := range items {
		lineItem, err := item.toLineItem(i)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrInvalidResponse, i, err)
		}
		result.LineItems = append(result.LineItems, lineItem)
	}

	return result, nil
}

func (r rawItem) toLineItem(index int) (models.LineItem, error) {
	start, err := parseFlexibleDate(lo.FromPtr(r.StartDate))
	if err != nil {
		return models.LineItem{}, fmt.Errorf("startDate: %w", err)
	}
	end, err := parseFlexibleDate(lo.FromPtr(r.EndDate))
	if err != nil {
		return models.LineItem{}, fmt.Errorf("endDate: %w", err)
	}

	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = fmt.Sprintf("invoice-%d", index)
	}

	return models.LineItem{
		ID:                 id,
		ServiceTitle:       strings.TrimSpace(r.ServiceTitle),
		ServiceDescription: strings.TrimSpace(r.ServiceDescription),
		ServiceAmount:      r.ServiceAmount.cents,
		IsSpecialCharge:    bool(r.IsSpecialCharge),
		StartDate:          start,
		EndDate:            end,
	}, nil
}

// parseFlexibleDate accepts ISO dates, RFC3339 timestamps and common
// European and US layouts. An empty string is the zero date.
func parseFlexibleDate(s string) (models.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Date{}, nil
	}
	if d, err := models.ParseDate(s); err == nil {
		return d, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateOf(t), nil
		}
	}
	return models.Date{}, fmt.Errorf("unable to parse date: %s", s)
}

var currencyTokens = []string{"€", "$", "£", "EUR", "USD", "GBP", "CHF"}

// ParseLocalizedAmount converts a major-unit amount such as "1.234,56",
// "1,234.56" or "€ 99" to cents, rounding half away from zero.
func ParseLocalizedAmount(s string) (int64, error) {
	cleaned := strings.TrimSpace(s)
	for _, token := range currencyTokens {
		cleaned = strings.ReplaceAll(cleaned, token, "")
	}
	cleaned = strings.Join(strings.Fields(cleaned), "")
	cleaned = strings.ReplaceAll(cleaned, "'", "")

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")
	switch {
	case hasComma && hasDot:
		// The separator that appears last is the decimal separator.
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasComma:
		parts := strings.Split(cleaned, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasDot:
		if strings.Count(cleaned, ".") > 1 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("unable to parse amount: %s (cleaned: %s)", s, cleaned)
	}
	return amount.Shift(2).Round(0).IntPart(), nil
}
