// Package session is the payment session registry: the process-lifetime store
// standing in for a payment gateway's in-flight transaction state. It is
// deliberately not durable; losing it on restart loses only simulated gateway
// state, never booking state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"emi-service/internal/models"
)

var (
	// ErrSessionNotFound is returned when no session exists for a payment ID.
	ErrSessionNotFound = errors.New("payment session not found")
	// ErrInvalidTransition is returned for a status change the forward-only
	// state machine does not allow.
	ErrInvalidTransition = errors.New("invalid session status transition")
)

// Store is the capability the orchestration service is given for gateway
// session state. The in-memory implementation below is the default; a durable
// one can be swapped in without touching orchestration logic.
type Store interface {
	// Create registers the session, generating a payment ID if unset.
	Create(ctx context.Context, s *models.PaymentSession) error
	// Get returns a copy of the session, or ErrSessionNotFound.
	Get(ctx context.Context, paymentID string) (*models.PaymentSession, error)
	// Transition moves the session to newStatus, applying extra mutations
	// under the same lock. Transitioning to the current status is a no-op
	// success so that verification can be retried safely.
	Transition(ctx context.Context, paymentID, newStatus string, apply func(*models.PaymentSession)) (*models.PaymentSession, error)
	// Expire fails every created/processing session not updated since cutoff
	// and returns the affected sessions.
	Expire(ctx context.Context, cutoff time.Time) ([]*models.PaymentSession, error)
}

// allowedTransitions encodes the forward-only state machine:
// created -> processing -> completed, with failed reachable from any
// non-terminal state. Verification may complete a created session directly.
var allowedTransitions = map[string]map[string]bool{
	models.SessionStatusCreated: {
		models.SessionStatusProcessing: true,
		models.SessionStatusCompleted:  true,
		models.SessionStatusFailed:     true,
	},
	models.SessionStatusProcessing: {
		models.SessionStatusCompleted: true,
		models.SessionStatusFailed:    true,
	},
	models.SessionStatusCompleted: {},
	models.SessionStatusFailed:    {},
}

// MemoryStore keeps sessions in a process-wide map guarded by a mutex.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.PaymentSession
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.PaymentSession),
		now:      time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, s *models.PaymentSession) error {
	if s.PaymentID == "" {
		s.PaymentID = models.NewPaymentID()
	}
	if s.Status == "" {
		s.Status = models.SessionStatusCreated
	}
	now := m.now()
	s.CreatedAt = now
	s.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.PaymentID]; exists {
		return fmt.Errorf("payment session %s already exists", s.PaymentID)
	}
	stored := *s
	m.sessions[s.PaymentID] = &stored
	return nil
}

func (m *MemoryStore) Get(_ context.Context, paymentID string) (*models.PaymentSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.sessions[paymentID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *stored
	return &copied, nil
}

func (m *MemoryStore) Transition(_ context.Context, paymentID, newStatus string, apply func(*models.PaymentSession)) (*models.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[paymentID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	if stored.Status != newStatus {
		if !allowedTransitions[stored.Status][newStatus] {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, stored.Status, newStatus)
		}
		stored.Status = newStatus
		stored.UpdatedAt = m.now()
	}
	if apply != nil {
		apply(stored)
	}

	copied := *stored
	return &copied, nil
}

func (m *MemoryStore) Expire(_ context.Context, cutoff time.Time) ([]*models.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []*models.PaymentSession
	for _, stored := range m.sessions {
		switch stored.Status {
		case models.SessionStatusCreated, models.SessionStatusProcessing:
		default:
			continue
		}
		if stored.UpdatedAt.After(cutoff) {
			continue
		}
		stored.Status = models.SessionStatusFailed
		stored.UpdatedAt = m.now()
		copied := *stored
		expired = append(expired, &copied)
	}
	return expired, nil
}

// Len reports the number of registered sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
