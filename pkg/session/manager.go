package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-faster/errors"

	"github.com/campuseats/storefront/pkg/errs"
	"github.com/campuseats/storefront/pkg/logger"
	"github.com/campuseats/storefront/pkg/storage"
)

const storageKey = "session"

// User is the identity the backend reports for a token.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	UniID string `json:"uniID,omitempty"`
	Role  string `json:"role,omitempty"`
}

// UserResolver looks up the user a token belongs to.
type UserResolver interface {
	CurrentUser(ctx context.Context, token string) (User, error)
}

// Manager owns the current session and keeps it in local storage so a
// restarted client resumes as the same guest or user.
type Manager struct {
	users  UserResolver
	store  storage.Store
	logger logger.Logger

	mu      sync.RWMutex
	current *Session
}

// NewManager creates a session manager. A nil store keeps sessions in memory.
func NewManager(users UserResolver, store storage.Store, log logger.Logger) *Manager {
	if store == nil {
		store = storage.NewInMemoryStore()
	}
	if log == nil {
		log = logger.NoOp{}
	}
	return &Manager{users: users, store: store, logger: log.WithField("component", "session")}
}

// Current returns the active session, restoring it from storage or starting a
// new guest session when there is none.
func (m *Manager) Current(ctx context.Context) (Session, error) {
	m.mu.RLock()
	if m.current != nil {
		s := *m.current
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		return *m.current, nil
	}

	var saved Session
	err := storage.Load(ctx, m.store, storageKey, &saved)
	switch {
	case err == nil && (saved.IsAuthenticated() || saved.GuestID != ""):
		m.current = &saved
		return saved, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		m.logger.Warn("Failed to restore session, starting as guest", map[string]interface{}{
			"error": err.Error(),
		})
	}

	guest := NewGuest()
	if err := m.store.Set(ctx, storageKey, guest, 0); err != nil {
		return Session{}, fmt.Errorf("failed to persist guest session: %w", err)
	}
	m.current = &guest
	return guest, nil
}

// Login resolves token to a user and makes it the active session. The guest
// cart is left where it is; it is not merged into the user's server cart.
func (m *Manager) Login(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, errs.New("session.Login", errs.CategoryAuthRequired, errs.ErrAuthRequired)
	}
	user, err := m.users.CurrentUser(ctx, token)
	if err != nil {
		return Session{}, err
	}
	if user.ID == "" {
		return Session{}, &errs.Error{
			Op:       "session.Login",
			Category: errs.CategoryAuthRequired,
			Message:  "backend returned no user for token",
			Err:      errs.ErrAuthRequired,
		}
	}

	s := NewAuthenticated(token, user.ID)
	s.UniID = user.UniID

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Set(ctx, storageKey, s, 0); err != nil {
		return Session{}, fmt.Errorf("failed to persist session: %w", err)
	}
	m.current = &s

	m.logger.Info("User logged in", map[string]interface{}{"user_id": user.ID})
	return s, nil
}

// Logout drops the active session and starts a fresh guest session.
func (m *Manager) Logout(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(ctx, storageKey); err != nil {
		return Session{}, fmt.Errorf("failed to clear session: %w", err)
	}
	guest := NewGuest()
	if err := m.store.Set(ctx, storageKey, guest, 0); err != nil {
		return Session{}, fmt.Errorf("failed to persist guest session: %w", err)
	}
	m.current = &guest
	return guest, nil
}
