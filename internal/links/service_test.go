package links

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylink/internal/linkstore"
	"paylink/internal/schedule"
	"paylink/pkg/models"
)

func sampleExtraction() models.Extraction {
	return models.Extraction{
		Buyer: models.BuyerProfile{
			CompanyName:  "Acme GmbH",
			Address:      "Hauptstr. 1, Berlin",
			ContactName:  "Jane Doe",
			ContactEmail: "jane@acme.example",
		},
		LineItems: []models.LineItem{
			{
				ID:                 "license",
				ServiceTitle:       "License",
				ServiceDescription: "Annual license",
				ServiceAmount:      1200000,
				StartDate:          models.NewDate(2025, time.January, 1),
				EndDate:            models.NewDate(2025, time.December, 31),
			},
			{
				ID:                 "setup",
				ServiceTitle:       "Setup",
				ServiceDescription: "Onboarding",
				ServiceAmount:      50000,
				IsSpecialCharge:    true,
			},
		},
	}
}

func TestCreateAndOpen(t *testing.T) {
	store := linkstore.NewMemoryStore(0)
	svc := NewService(store, schedule.Engine{}, "https://pay.example.com/")

	created, err := svc.Create(context.Background(), sampleExtraction())
	require.NoError(t, err)
	assert.Len(t, created.ID, linkstore.IDLength)
	assert.Equal(t, "https://pay.example.com/payment/"+created.ID, created.URL)

	monthly, err := svc.Open(context.Background(), created.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentTermMonthly, monthly.Term)
	assert.Equal(t, "Acme GmbH", monthly.Buyer.CompanyName)
	assert.Len(t, monthly.Payment.Summary.Subscription.Schedule, 12)
	assert.Equal(t, int64(1250000), monthly.Payment.GrandTotal())

	quarterly, err := svc.Open(context.Background(), created.ID, models.PaymentTermQuarterly)
	require.NoError(t, err)
	assert.Len(t, quarterly.Payment.Summary.Subscription.Schedule, 4)
	assert.Equal(t, monthly.Payment.GrandTotal(), quarterly.Payment.GrandTotal())
}

func TestCreateRejectsIncompleteInput(t *testing.T) {
	svc := NewService(linkstore.NewMemoryStore(0), schedule.Engine{}, "http://localhost:8080")

	ext := sampleExtraction()
	ext.Buyer.ContactEmail = ""
	ext.LineItems[0].ServiceDescription = ""
	ext.LineItems[0].EndDate = models.Date{}

	_, err := svc.Create(context.Background(), ext)
	require.ErrorIs(t, err, schedule.ErrInvalidBatch)

	var batchErr *schedule.BatchValidationError
	require.ErrorAs(t, err, &batchErr)

	fields := make([]string, len(batchErr.Issues))
	for i, issue := range batchErr.Issues {
		fields[i] = issue.Field
	}
	assert.ElementsMatch(t, []string{"buyerCompanyContactEmail", "serviceDescription", "endDate"}, fields)
	assert.Equal(t, []string{"buyerData", "license"}, batchErr.ItemIDs())
}

func TestCreateRequiresLineItems(t *testing.T) {
	svc := NewService(linkstore.NewMemoryStore(0), schedule.Engine{}, "http://localhost:8080")

	ext := sampleExtraction()
	ext.LineItems = nil
	_, err := svc.Create(context.Background(), ext)
	assert.ErrorIs(t, err, schedule.ErrInvalidBatch)
}

func TestCreateRetriesOnCollision(t *testing.T) {
	store := linkstore.NewMemoryStore(0)
	svc := NewService(store, schedule.Engine{}, "http://localhost:8080")

	first, err := svc.Create(context.Background(), sampleExtraction())
	require.NoError(t, err)

	ids := []string{first.ID, first.ID, "fresh1"}
	svc.newID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}

	second, err := svc.Create(context.Background(), sampleExtraction())
	require.NoError(t, err)
	assert.Equal(t, "fresh1", second.ID)
}

func TestCreateGivesUpAfterMaxAttempts(t *testing.T) {
	store := linkstore.NewMemoryStore(0)
	require.NoError(t, store.Put(context.Background(), linkstore.Link{ID: "taken1"}))

	svc := NewService(store, schedule.Engine{}, "http://localhost:8080")
	calls := 0
	svc.newID = func() (string, error) {
		calls++
		return "taken1", nil
	}

	_, err := svc.Create(context.Background(), sampleExtraction())
	assert.ErrorIs(t, err, ErrIDSpaceExhausted)
	assert.Equal(t, MaxIDAttempts, calls)
}

func TestOpenErrors(t *testing.T) {
	svc := NewService(linkstore.NewMemoryStore(0), schedule.Engine{}, "http://localhost:8080")

	_, err := svc.Open(context.Background(), "nope00", models.PaymentTermMonthly)
	assert.ErrorIs(t, err, linkstore.ErrLinkNotFound)

	_, err = svc.Open(context.Background(), "nope00", "weekly")
	assert.ErrorIs(t, err, models.ErrInvalidPaymentTerm)
}

type failingStore struct{ linkstore.Store }

func (failingStore) Put(context.Context, linkstore.Link) error { return errors.New("disk full") }

func TestCreateSurfacesStoreErrors(t *testing.T) {
	svc := NewService(failingStore{}, schedule.Engine{}, "http://localhost:8080")
	_, err := svc.Create(context.Background(), sampleExtraction())
	assert.ErrorContains(t, err, "disk full")
}
