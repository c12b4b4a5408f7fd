package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/campuseats/storefront/pkg/storage"
)

// guestCartKey is the fixed storage key of a guest cart inside the guest's
// namespace.
const guestCartKey = "cart"

// GuestStore persists guest carts on the client.
type GuestStore interface {
	Load(ctx context.Context, guestID string) ([]Line, error)
	Save(ctx context.Context, guestID string, lines []Line) error
	Clear(ctx context.Context, guestID string) error
}

// StorageGuestStore keeps each guest cart as a JSON array under
// "guest:<id>:cart" in a storage.Store.
type StorageGuestStore struct {
	store storage.Store
	ttl   time.Duration
}

// NewStorageGuestStore creates a guest store. A zero ttl uses the store's
// default.
func NewStorageGuestStore(store storage.Store, ttl time.Duration) *StorageGuestStore {
	return &StorageGuestStore{store: store, ttl: ttl}
}

func (s *StorageGuestStore) view(guestID string) storage.Store {
	return storage.Namespaced(s.store, "guest:"+guestID)
}

// Load returns the guest's lines; a guest with no saved cart has none.
func (s *StorageGuestStore) Load(ctx context.Context, guestID string) ([]Line, error) {
	var lines []Line
	err := storage.Load(ctx, s.view(guestID), guestCartKey, &lines)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load guest cart: %w", err)
	}
	return lines, nil
}

// Save replaces the guest's lines.
func (s *StorageGuestStore) Save(ctx context.Context, guestID string, lines []Line) error {
	if lines == nil {
		lines = []Line{}
	}
	if err := s.view(guestID).Set(ctx, guestCartKey, lines, s.ttl); err != nil {
		return fmt.Errorf("failed to save guest cart: %w", err)
	}
	return nil
}

// Clear drops the guest's cart.
func (s *StorageGuestStore) Clear(ctx context.Context, guestID string) error {
	if err := s.view(guestID).Delete(ctx, guestCartKey); err != nil {
		return fmt.Errorf("failed to clear guest cart: %w", err)
	}
	return nil
}
