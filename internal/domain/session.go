package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of a parking session
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "activo"
	SessionStatusFinalized SessionStatus = "finalizado"
)

// ParkingSession represents a vehicle's stay in a zone, from entry until
// exit. Duration and cost are set only once the session is finalized.
type ParkingSession struct {
	ID              string          `json:"id"`
	VehicleID       string          `json:"vehicle_id"`
	ZoneID          string          `json:"zone_id"`
	SiteID          string          `json:"site_id"`
	Category        VehicleCategory `json:"category"`
	EnteredAt       time.Time       `json:"entered_at"`
	ExitedAt        *time.Time      `json:"exited_at,omitempty"`
	DurationMinutes *int64          `json:"duration_minutes,omitempty"`
	CostTotal       *int64          `json:"cost_total,omitempty"` // COP
	Status          SessionStatus   `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewParkingSession creates an active session for a vehicle entering a zone
func NewParkingSession(vehicleID string, zone *Zone, category VehicleCategory, enteredAt time.Time) *ParkingSession {
	now := time.Now()
	return &ParkingSession{
		ID:        uuid.New().String(),
		VehicleID: vehicleID,
		ZoneID:    zone.ID,
		SiteID:    zone.SiteID,
		Category:  category,
		EnteredAt: enteredAt,
		Status:    SessionStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive returns true if the session has not been finalized
func (s *ParkingSession) IsActive() bool {
	return s.Status == SessionStatusActive
}

// Finalize closes the session with the computed duration and cost.
// It fails when the session is already finalized or the exit time
// precedes the entry time.
func (s *ParkingSession) Finalize(exitedAt time.Time, durationMinutes, cost int64) error {
	if !s.IsActive() {
		return ErrSessionAlreadyClosed
	}
	if exitedAt.Before(s.EnteredAt) {
		return ErrInvalidInterval
	}
	s.ExitedAt = &exitedAt
	s.DurationMinutes = &durationMinutes
	s.CostTotal = &cost
	s.Status = SessionStatusFinalized
	s.UpdatedAt = time.Now()
	return nil
}

// Validate checks session invariants before persistence
func (s *ParkingSession) Validate() error {
	if s.VehicleID == "" {
		return ErrInvalidVehicleID
	}
	if s.ZoneID == "" {
		return ErrInvalidZoneID
	}
	if !s.Category.Valid() {
		return ErrInvalidCategory
	}
	return nil
}
