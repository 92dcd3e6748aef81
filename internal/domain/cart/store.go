package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Storage implementations when no cart exists for
// a session.
var ErrNotFound = errors.New("cart not found")

// Storage persists carts keyed by session id.
type Storage interface {
	Load(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, sessionID string, c *Cart) error
	Delete(ctx context.Context, sessionID string) error
}

// Pulse signals a cart mutation to subscribers. It carries the session whose
// cart changed and the resulting item count; consumers use it for things like
// badge updates, it is not part of the correctness contract.
type Pulse struct {
	SessionID  string
	TotalItems int
}

// Store owns cart state for all sessions. Every mutation is written through
// to Storage before the in-memory copy is updated, so a storage failure
// leaves the cart unchanged. Mutations emit a Pulse to subscribers on a
// best-effort basis: a slow subscriber drops pulses rather than blocking the
// mutation.
type Store struct {
	storage Storage

	mu   sync.Mutex
	subs []chan Pulse
}

// NewStore creates a Store backed by storage.
func NewStore(storage Storage) *Store {
	return &Store{storage: storage}
}

// Subscribe returns a channel receiving a Pulse after every successful
// mutation. The channel is buffered; pulses are dropped when it is full.
func (s *Store) Subscribe() <-chan Pulse {
	ch := make(chan Pulse, 16)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) notify(sessionID string, items int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- Pulse{SessionID: sessionID, TotalItems: items}:
		default:
		}
	}
}

// Get returns the cart for the session, or an empty cart when none exists.
func (s *Store) Get(ctx context.Context, sessionID string) (*Cart, error) {
	c, err := s.storage.Load(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return &Cart{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return c, nil
}

// mutate loads the session's cart, applies fn, and persists the result when
// fn reports a change. The pulse fires only after a successful save.
func (s *Store) mutate(ctx context.Context, sessionID string, fn func(*Cart) bool) (*Cart, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !fn(c) {
		return c, nil
	}

	if err := s.storage.Save(ctx, sessionID, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	s.notify(sessionID, c.TotalItems())
	return c, nil
}

// AddItem merges item into the session's cart.
func (s *Store) AddItem(ctx context.Context, sessionID string, item Line) (*Cart, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) bool {
		return c.Add(item)
	})
}

// UpdateQuantity sets the quantity for a line; zero or less removes it.
func (s *Store) UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (*Cart, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) bool {
		return c.SetQuantity(productID, quantity)
	})
}

// RemoveItem removes the line for productID.
func (s *Store) RemoveItem(ctx context.Context, sessionID, productID string) (*Cart, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) bool {
		return c.Remove(productID)
	})
}

// Clear empties the session's cart.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.storage.Delete(ctx, sessionID); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	s.notify(sessionID, 0)
	return nil
}
