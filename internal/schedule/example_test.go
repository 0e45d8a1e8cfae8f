package schedule_test

import (
	"fmt"

	"paylink/internal/schedule"
	"paylink/pkg/models"
)

// Example computes a quarterly plan for a yearly subscription with a setup fee.
func Example() {
	items := []models.LineItem{
		{
			ID:            "invoice-0",
			ServiceTitle:  "Platform license",
			ServiceAmount: 1_200_000,
			StartDate:     models.NewDate(2025, 1, 1),
			EndDate:       models.NewDate(2025, 12, 31),
		},
		{
			ID:              "invoice-1",
			ServiceTitle:    "Onboarding",
			ServiceAmount:   250_000,
			IsSpecialCharge: true,
		},
	}

	data, err := schedule.Compute(items, models.PaymentTermQuarterly)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	for _, inst := range data.Summary.Subscription.Schedule {
		fmt.Printf("%s %d\n", inst.Date, inst.Amount)
	}
	for _, fee := range data.Summary.OneOff {
		fmt.Printf("%s due %s: %d\n", fee.ServiceTitle, fee.DueDate, fee.Amount)
	}

	// Output:
	// 2025-01-01 300000
	// 2025-04-01 300000
	// 2025-07-01 300000
	// 2025-10-01 300000
	// Onboarding due 2025-01-01: 250000
}

func ExampleDistribute() {
	amounts, _ := schedule.Distribute(100_000, 3)
	fmt.Println(amounts)
	// Output: [33334 33333 33333]
}
