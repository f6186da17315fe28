package repository

import (
	"context"

	"github.com/camiloruiz/campus-parking/internal/domain"
)

// ZoneRepository defines the interface for zone persistence and the
// atomic occupancy operations the allocation flow depends on.
type ZoneRepository interface {
	// Create persists a new zone
	Create(ctx context.Context, zone *domain.Zone) error

	// GetByID retrieves a zone by its ID
	GetByID(ctx context.Context, id string) (*domain.Zone, error)

	// List retrieves all zones
	List(ctx context.Context) ([]*domain.Zone, error)

	// ListBySite retrieves all zones belonging to a site
	ListBySite(ctx context.Context, siteID string) ([]*domain.Zone, error)

	// Reserve atomically claims one slot in a zone for a vehicle
	// category. It fails with ErrZoneNotFound, ErrCategoryNotAllowed
	// or ErrNoCapacity; on success the slot is held until Release.
	Reserve(ctx context.Context, zoneID string, category domain.VehicleCategory) error

	// Release atomically frees one slot in a zone. Freeing a slot in
	// a zone with zero occupancy fails with ErrCapacityUnderflow.
	Release(ctx context.Context, zoneID string) error

	// SetOccupied overwrites a zone's occupancy, but only while the
	// counter still holds the value the caller observed. A concurrent
	// change fails with ErrOccupancyChanged so a stale repair never
	// erases a reservation that landed after the observation. Used by
	// the audit loop to repair drift against the session ledger.
	SetOccupied(ctx context.Context, zoneID string, occupied, observed int) error
}

// SessionRepository defines the interface for parking session persistence
type SessionRepository interface {
	// Create persists a new active session. A second active session
	// for the same vehicle fails with ErrVehicleAlreadyParked.
	Create(ctx context.Context, session *domain.ParkingSession) error

	// GetByID retrieves a session by its ID
	GetByID(ctx context.Context, id string) (*domain.ParkingSession, error)

	// GetActiveByVehicle retrieves the single active session for a
	// vehicle, or ErrNoActiveSession.
	GetActiveByVehicle(ctx context.Context, vehicleID string) (*domain.ParkingSession, error)

	// Finalize persists the closed state of a session. Finalizing a
	// session that is already closed fails with ErrSessionAlreadyClosed.
	Finalize(ctx context.Context, session *domain.ParkingSession) error

	// ListActiveByZone retrieves all active sessions in a zone
	ListActiveByZone(ctx context.Context, zoneID string) ([]*domain.ParkingSession, error)

	// CountActiveByZone counts active sessions in a zone
	CountActiveByZone(ctx context.Context, zoneID string) (int, error)
}

// AvailabilityCache mirrors zone occupancy into a fast read path. The
// durable store stays authoritative; cache writes are best effort.
type AvailabilityCache interface {
	// SetAvailability overwrites the cached occupancy for a zone
	SetAvailability(ctx context.Context, zoneID string, capacity, occupied int) error

	// AdjustOccupied applies a delta to the cached occupancy, clamped
	// to [0, capacity]
	AdjustOccupied(ctx context.Context, zoneID string, delta int) error

	// GetAvailability returns cached (capacity, occupied); the bool is
	// false on a cache miss
	GetAvailability(ctx context.Context, zoneID string) (capacity, occupied int, ok bool, err error)

	// Invalidate drops the cached entry for a zone
	Invalidate(ctx context.Context, zoneID string) error
}
