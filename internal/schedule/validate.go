package schedule

import (
	"fmt"

	"github.com/samber/lo"

	"paylink/pkg/models"
)

// Validate checks a batch without computing it. It returns a
// *BatchValidationError listing every offending item, or nil.
func Validate(items []models.LineItem) error {
	if _, issues := checkBatch(items); len(issues) > 0 {
		return &BatchValidationError{Issues: issues}
	}
	return nil
}

// checkBatch returns the items that passed every check and the issues found
// for the rest. An item with several problems produces several issues. Every
// item sharing a duplicated id is rejected, so the outcome does not depend on
// input order. Items without an id are reported by input position.
func checkBatch(items []models.LineItem) ([]models.LineItem, []ItemIssue) {
	counts := lo.CountValuesBy(items, func(item models.LineItem) string { return item.ID })

	var (
		valid  = make([]models.LineItem, 0, len(items))
		issues []ItemIssue
	)

	for i, item := range items {
		itemIssues := checkItem(item)
		if item.ID != "" && counts[item.ID] > 1 {
			itemIssues = append(itemIssues, ItemIssue{ItemID: item.ID, Field: "id", Message: "is duplicated"})
		}

		if len(itemIssues) > 0 {
			if item.ID == "" {
				label := fmt.Sprintf("item[%d]", i)
				for j := range itemIssues {
					itemIssues[j].ItemID = label
				}
			}
			issues = append(issues, itemIssues...)
			continue
		}
		valid = append(valid, item)
	}

	return valid, issues
}

func checkItem(item models.LineItem) []ItemIssue {
	var issues []ItemIssue
	add := func(field, message string) {
		issues = append(issues, ItemIssue{ItemID: item.ID, Field: field, Message: message})
	}

	if item.ID == "" {
		add("id", "is required")
	}
	if item.ServiceAmount < 0 {
		add("serviceAmount", "must not be negative")
	}
	if !item.IsSpecialCharge {
		if item.StartDate.IsZero() {
			add("startDate", "is required for subscription charges")
		}
		if item.EndDate.IsZero() {
			add("endDate", "is required for subscription charges")
		}
	}
	return issues
}
