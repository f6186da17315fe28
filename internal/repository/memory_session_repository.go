package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/camiloruiz/campus-parking/internal/domain"
)

// MemorySessionRepository implements SessionRepository with in-memory
// maps. Used for tests and local development without PostgreSQL.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.ParkingSession
	// activeByVehicle enforces the single active session rule the
	// partial unique index provides in PostgreSQL
	activeByVehicle map[string]string
}

// NewMemorySessionRepository creates a new MemorySessionRepository
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions:        make(map[string]*domain.ParkingSession),
		activeByVehicle: make(map[string]string),
	}
}

// Create persists a new active session
func (r *MemorySessionRepository) Create(ctx context.Context, session *domain.ParkingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.activeByVehicle[session.VehicleID]; exists {
		return domain.ErrVehicleAlreadyParked
	}

	r.sessions[session.ID] = cloneSession(session)
	r.activeByVehicle[session.VehicleID] = session.ID
	return nil
}

// GetByID retrieves a session by its ID
func (r *MemorySessionRepository) GetByID(ctx context.Context, id string) (*domain.ParkingSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

// GetActiveByVehicle retrieves the active session for a vehicle
func (r *MemorySessionRepository) GetActiveByVehicle(ctx context.Context, vehicleID string) (*domain.ParkingSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessionID, exists := r.activeByVehicle[vehicleID]
	if !exists {
		return nil, domain.ErrNoActiveSession
	}
	return cloneSession(r.sessions[sessionID]), nil
}

// Finalize persists the closed state of a session
func (r *MemorySessionRepository) Finalize(ctx context.Context, session *domain.ParkingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.sessions[session.ID]
	if !exists {
		return domain.ErrSessionNotFound
	}
	if !stored.IsActive() {
		return domain.ErrSessionAlreadyClosed
	}

	stored.ExitedAt = session.ExitedAt
	stored.DurationMinutes = session.DurationMinutes
	stored.CostTotal = session.CostTotal
	stored.Status = domain.SessionStatusFinalized
	stored.UpdatedAt = time.Now()

	delete(r.activeByVehicle, stored.VehicleID)
	return nil
}

// ListActiveByZone retrieves all active sessions in a zone
func (r *MemorySessionRepository) ListActiveByZone(ctx context.Context, zoneID string) ([]*domain.ParkingSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []*domain.ParkingSession
	for _, session := range r.sessions {
		if session.ZoneID == zoneID && session.IsActive() {
			sessions = append(sessions, cloneSession(session))
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].EnteredAt.Before(sessions[j].EnteredAt)
	})
	return sessions, nil
}

// CountActiveByZone counts active sessions in a zone
func (r *MemorySessionRepository) CountActiveByZone(ctx context.Context, zoneID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, session := range r.sessions {
		if session.ZoneID == zoneID && session.IsActive() {
			count++
		}
	}
	return count, nil
}

func cloneSession(session *domain.ParkingSession) *domain.ParkingSession {
	clone := *session
	if session.ExitedAt != nil {
		t := *session.ExitedAt
		clone.ExitedAt = &t
	}
	if session.DurationMinutes != nil {
		d := *session.DurationMinutes
		clone.DurationMinutes = &d
	}
	if session.CostTotal != nil {
		c := *session.CostTotal
		clone.CostTotal = &c
	}
	return &clone
}

// Ensure MemorySessionRepository implements SessionRepository
var _ SessionRepository = (*MemorySessionRepository)(nil)
