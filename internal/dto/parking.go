package dto

import (
	"time"

	"github.com/camiloruiz/campus-parking/internal/domain"
)

// EnterRequest represents a vehicle entry request
type EnterRequest struct {
	VehicleID string `json:"vehicle_id" binding:"required"`
	ZoneID    string `json:"zone_id" binding:"required"`
	Category  string `json:"category" binding:"required"`
}

// EnterResponse represents the response after a vehicle enters a zone
type EnterResponse struct {
	SessionID string    `json:"session_id"`
	VehicleID string    `json:"vehicle_id"`
	ZoneID    string    `json:"zone_id"`
	SiteID    string    `json:"site_id"`
	Category  string    `json:"category"`
	EnteredAt time.Time `json:"entered_at"`
	Status    string    `json:"status"`
}

// ExitRequest represents a vehicle exit request
type ExitRequest struct {
	VehicleID string `json:"vehicle_id" binding:"required"`
}

// ExitResponse represents the response after a vehicle exits
type ExitResponse struct {
	SessionID       string    `json:"session_id"`
	VehicleID       string    `json:"vehicle_id"`
	ZoneID          string    `json:"zone_id"`
	EnteredAt       time.Time `json:"entered_at"`
	ExitedAt        time.Time `json:"exited_at"`
	DurationMinutes int64     `json:"duration_minutes"`
	CostTotal       int64     `json:"cost_total"`
	Currency        string    `json:"currency"`
}

// CreateZoneRequest represents a request to register a new zone
type CreateZoneRequest struct {
	ID                string           `json:"id" binding:"required"`
	SiteID            string           `json:"site_id" binding:"required"`
	Name              string           `json:"name" binding:"required"`
	Capacity          int              `json:"capacity" binding:"required,min=1"`
	AllowedCategories []string         `json:"allowed_categories" binding:"required,min=1"`
	Tariffs           map[string]int64 `json:"tariffs" binding:"required"`
}

// ZoneAvailabilityResponse represents zone occupancy in API responses
type ZoneAvailabilityResponse struct {
	ZoneID            string   `json:"zone_id"`
	SiteID            string   `json:"site_id"`
	Name              string   `json:"name"`
	Capacity          int      `json:"capacity"`
	Occupied          int      `json:"occupied"`
	Available         int      `json:"available"`
	AllowedCategories []string `json:"allowed_categories"`
}

// SessionResponse represents a parking session in API responses
type SessionResponse struct {
	ID              string     `json:"id"`
	VehicleID       string     `json:"vehicle_id"`
	ZoneID          string     `json:"zone_id"`
	SiteID          string     `json:"site_id"`
	Category        string     `json:"category"`
	EnteredAt       time.Time  `json:"entered_at"`
	ExitedAt        *time.Time `json:"exited_at,omitempty"`
	DurationMinutes *int64     `json:"duration_minutes,omitempty"`
	CostTotal       *int64     `json:"cost_total,omitempty"`
	Status          string     `json:"status"`
}

// FromSession converts a domain session to SessionResponse
func FromSession(s *domain.ParkingSession) *SessionResponse {
	return &SessionResponse{
		ID:              s.ID,
		VehicleID:       s.VehicleID,
		ZoneID:          s.ZoneID,
		SiteID:          s.SiteID,
		Category:        string(s.Category),
		EnteredAt:       s.EnteredAt,
		ExitedAt:        s.ExitedAt,
		DurationMinutes: s.DurationMinutes,
		CostTotal:       s.CostTotal,
		Status:          string(s.Status),
	}
}

// FromZone converts a domain zone to ZoneAvailabilityResponse
func FromZone(z *domain.Zone) *ZoneAvailabilityResponse {
	categories := make([]string, 0, len(z.AllowedCategories))
	for _, c := range z.AllowedCategories {
		categories = append(categories, string(c))
	}
	return &ZoneAvailabilityResponse{
		ZoneID:            z.ID,
		SiteID:            z.SiteID,
		Name:              z.Name,
		Capacity:          z.Capacity,
		Occupied:          z.Occupied,
		Available:         z.Available(),
		AllowedCategories: categories,
	}
}
