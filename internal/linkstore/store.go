// Package linkstore persists the inputs behind shareable payment links.
// Only buyer data and line items are stored; schedules are recomputed on
// every read.
package linkstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"paylink/internal/config"
	"paylink/pkg/models"
)

var (
	// ErrLinkNotFound is returned when no link exists for an id, or it expired.
	ErrLinkNotFound = errors.New("payment link not found")

	// ErrLinkExists is returned by Put when the id is already taken.
	ErrLinkExists = errors.New("payment link id already exists")
)

// IDLength is the number of base36 characters in a link id.
const IDLength = 6

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Link is a stored payment link.
type Link struct {
	ID        string              `json:"id"`
	Buyer     models.BuyerProfile `json:"buyerData"`
	LineItems []models.LineItem   `json:"invoiceData"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Store saves and loads links.
type Store interface {
	// Put stores link and fails with ErrLinkExists when link.ID is taken.
	Put(ctx context.Context, link Link) error

	// Get loads a link and fails with ErrLinkNotFound when it is missing.
	Get(ctx context.Context, id string) (*Link, error)

	Close() error
}

// NewLinkID returns IDLength random base36 characters.
func NewLinkID() (string, error) {
	// bytes >= 7*36 are rejected so every character is equally likely
	const limit = 252

	id := make([]byte, 0, IDLength)
	buf := make([]byte, IDLength*2)
	for len(id) < IDLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			id = append(id, idAlphabet[int(b)%len(idAlphabet)])
			if len(id) == IDLength {
				break
			}
		}
	}
	return string(id), nil
}

// NewStore opens the backend selected by cfg.LinkStore.
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	if err := cfg.ValidateLinkStore(); err != nil {
		return nil, err
	}

	switch cfg.LinkStore {
	case config.LinkStoreMemory:
		return NewMemoryStore(cfg.LinkTTL), nil
	case config.LinkStoreSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath, cfg.LinkTTL)
	case config.LinkStoreRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.LinkTTL,
		})
	default:
		return nil, fmt.Errorf("unknown link store %q", cfg.LinkStore)
	}
}
