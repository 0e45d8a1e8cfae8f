// Package links creates shareable payment links and reopens them with a
// freshly computed schedule.
package links

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"paylink/internal/linkstore"
	"paylink/internal/logger"
	"paylink/internal/schedule"
	"paylink/pkg/models"
)

// MaxIDAttempts bounds id generation when ids collide.
const MaxIDAttempts = 5

// ErrIDSpaceExhausted is returned when MaxIDAttempts ids in a row were taken.
var ErrIDSpaceExhausted = errors.New("could not allocate a free link id")

// Created is the result of Create.
type Created struct {
	ID   string          `json:"id"`
	URL  string          `json:"url"`
	Link *linkstore.Link `json:"-"`
}

// Opened is a stored link with its schedule computed for the requested term.
type Opened struct {
	ID        string                `json:"id"`
	Buyer     models.BuyerProfile   `json:"buyerData"`
	LineItems []models.LineItem     `json:"invoiceData"`
	Term      models.PaymentTerm    `json:"paymentTerm"`
	Payment   *schedule.PaymentData `json:"payment"`
	CreatedAt time.Time             `json:"createdAt"`
}

// Service ties the link store to the schedule engine.
type Service struct {
	store   linkstore.Store
	engine  schedule.Engine
	baseURL string
	newID   func() (string, error)
	now     func() time.Time
}

// NewService creates a link service. baseURL is the public origin used in share URLs.
func NewService(store linkstore.Store, engine schedule.Engine, baseURL string) *Service {
	return &Service{
		store:   store,
		engine:  engine,
		baseURL: strings.TrimRight(baseURL, "/"),
		newID:   linkstore.NewLinkID,
		now:     time.Now,
	}
}

// URL returns the share URL for id.
func (s *Service) URL(id string) string {
	return fmt.Sprintf("%s/payment/%s", s.baseURL, id)
}

// Create validates the extraction and stores it under a new id. Buyer
// fields and item titles are required in addition to the engine's checks.
func (s *Service) Create(ctx context.Context, ext models.Extraction) (*Created, error) {
	if err := validateForLink(ext); err != nil {
		return nil, err
	}

	link := linkstore.Link{
		Buyer:     ext.Buyer,
		LineItems: ext.LineItems,
		CreatedAt: s.now().UTC(),
	}

	for attempt := 1; attempt <= MaxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return nil, err
		}
		link.ID = id

		err = s.store.Put(ctx, link)
		if errors.Is(err, linkstore.ErrLinkExists) {
			log := logger.WithLinkID("links", id)
			log.Warn().Int("attempt", attempt).Msg("Link id collision, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store link: %w", err)
		}

		log := logger.WithLinkID("links", id)
		log.Info().
			Str("buyer", link.Buyer.CompanyName).
			Int("line_items", len(link.LineItems)).
			Msg("Payment link created")

		return &Created{ID: id, URL: s.URL(id), Link: &link}, nil
	}

	return nil, ErrIDSpaceExhausted
}

// Open loads a link and computes its schedule for term. An empty term means monthly.
func (s *Service) Open(ctx context.Context, id string, term models.PaymentTerm) (*Opened, error) {
	if term == "" {
		term = models.PaymentTermMonthly
	}
	if !term.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidPaymentTerm, term)
	}

	link, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	payment, err := s.engine.Compute(link.LineItems, term)
	if err != nil {
		return nil, fmt.Errorf("compute schedule for link %s: %w", id, err)
	}

	log := logger.WithLinkID("links", id)
	log.Debug().
		Str("term", string(term)).
		Int64("grand_total", payment.GrandTotal()).
		Msg("Payment link opened")

	return &Opened{
		ID:        link.ID,
		Buyer:     link.Buyer,
		LineItems: link.LineItems,
		Term:      term,
		Payment:   payment,
		CreatedAt: link.CreatedAt,
	}, nil
}

// validateForLink runs the engine's batch checks plus the form rules for
// sharing: complete buyer data and a title and description on every item.
func validateForLink(ext models.Extraction) error {
	var issues []schedule.ItemIssue

	buyerFields := []struct {
		field string
		value string
	}{
		{"buyerCompanyName", ext.Buyer.CompanyName},
		{"buyerCompanyAddress", ext.Buyer.Address},
		{"buyerCompanyContactName", ext.Buyer.ContactName},
		{"buyerCompanyContactEmail", ext.Buyer.ContactEmail},
	}
	for _, f := range buyerFields {
		if strings.TrimSpace(f.value) == "" {
			issues = append(issues, schedule.ItemIssue{ItemID: "buyerData", Field: f.field, Message: "is required"})
		}
	}

	if len(ext.LineItems) == 0 {
		issues = append(issues, schedule.ItemIssue{ItemID: "invoiceData", Field: "invoiceData", Message: "needs at least one line item"})
	}
	for _, item := range ext.LineItems {
		if strings.TrimSpace(item.ServiceTitle) == "" {
			issues = append(issues, schedule.ItemIssue{ItemID: item.ID, Field: "serviceTitle", Message: "is required"})
		}
		if strings.TrimSpace(item.ServiceDescription) == "" {
			issues = append(issues, schedule.ItemIssue{ItemID: item.ID, Field: "serviceDescription", Message: "is required"})
		}
	}

	var batchErr *schedule.BatchValidationError
	if err := schedule.Validate(ext.LineItems); errors.As(err, &batchErr) {
		issues = append(issues, batchErr.Issues...)
	}

	if len(issues) > 0 {
		return &schedule.BatchValidationError{Issues: issues}
	}
	return nil
}
