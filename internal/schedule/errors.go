package schedule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

var (
	// ErrInvalidBatch is matched by every *BatchValidationError.
	ErrInvalidBatch = errors.New("invalid line item batch")

	// ErrInvalidInstallmentCount is returned when distributing over fewer than one installment.
	ErrInvalidInstallmentCount = errors.New("installment count must be at least 1")

	// ErrNegativeAmount is returned when distributing a negative total.
	ErrNegativeAmount = errors.New("amount must not be negative")

	// ErrUnknownPolicy is returned by PolicyByName for unregistered month span policies.
	ErrUnknownPolicy = errors.New("unknown month span policy")
)

// ItemIssue describes why one line item was rejected.
type ItemIssue struct {
	ItemID  string `json:"id"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i ItemIssue) String() string {
	return fmt.Sprintf("%s: %s %s", i.ItemID, i.Field, i.Message)
}

// BatchValidationError rejects a whole batch and lists every offending item.
type BatchValidationError struct {
	Issues []ItemIssue
}

// Error implements the error interface.
func (e *BatchValidationError) Error() string {
	parts := lo.Map(e.Issues, func(issue ItemIssue, _ int) string { return issue.String() })
	return fmt.Sprintf("%v: %s", ErrInvalidBatch, strings.Join(parts, "; "))
}

// Is lets errors.Is match ErrInvalidBatch.
func (e *BatchValidationError) Is(target error) bool {
	return target == ErrInvalidBatch
}

// ItemIDs returns the distinct ids of the offending items in first-seen order.
func (e *BatchValidationError) ItemIDs() []string {
	return lo.Uniq(lo.Map(e.Issues, func(issue ItemIssue, _ int) string { return issue.ItemID }))
}
