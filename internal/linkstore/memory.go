package linkstore

import (
	"context"
	"sync"
	"time"

	"paylink/pkg/models"
)

type memoryEntry struct {
	link      Link
	expiresAt time.Time
}

// MemoryStore keeps links in process memory. Used for tests and single-process demos.
type MemoryStore struct {
	mu    sync.RWMutex
	links map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore creates an empty store. A zero ttl keeps links forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		links: make(map[string]memoryEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryStore) Put(ctx context.Context, link Link) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.links[link.ID]; ok && !existing.expired(now) {
		return ErrLinkExists
	}

	entry := memoryEntry{link: cloneLink(link)}
	if s.ttl > 0 {
		entry.expiresAt = now.Add(s.ttl)
	}
	s.links[link.ID] = entry
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.links[id]
	if !ok || entry.expired(s.now()) {
		return nil, ErrLinkNotFound
	}
	link := cloneLink(entry.link)
	return &link, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// cloneLink copies the line item slice so callers cannot mutate stored state.
func cloneLink(link Link) Link {
	link.LineItems = append([]models.LineItem(nil), link.LineItems...)
	return link
}
