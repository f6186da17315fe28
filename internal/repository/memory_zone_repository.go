package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/camiloruiz/campus-parking/internal/domain"
)

// MemoryZoneRepository implements ZoneRepository with an in-memory map.
// Used for tests and local development without PostgreSQL. Reserve and
// Release take the same lock, so the no-oversell guarantee holds here
// too.
type MemoryZoneRepository struct {
	mu    sync.RWMutex
	zones map[string]*domain.Zone
}

// NewMemoryZoneRepository creates a new MemoryZoneRepository
func NewMemoryZoneRepository() *MemoryZoneRepository {
	return &MemoryZoneRepository{
		zones: make(map[string]*domain.Zone),
	}
}

// Create persists a new zone
func (r *MemoryZoneRepository) Create(ctx context.Context, zone *domain.Zone) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.zones[zone.ID]; exists {
		return domain.ErrZoneAlreadyExists
	}

	r.zones[zone.ID] = cloneZone(zone)
	return nil
}

// GetByID retrieves a zone by its ID
func (r *MemoryZoneRepository) GetByID(ctx context.Context, id string) (*domain.Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	zone, exists := r.zones[id]
	if !exists {
		return nil, domain.ErrZoneNotFound
	}
	return cloneZone(zone), nil
}

// List retrieves all zones ordered by site and name
func (r *MemoryZoneRepository) List(ctx context.Context) ([]*domain.Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	zones := make([]*domain.Zone, 0, len(r.zones))
	for _, zone := range r.zones {
		zones = append(zones, cloneZone(zone))
	}

	sort.Slice(zones, func(i, j int) bool {
		if zones[i].SiteID != zones[j].SiteID {
			return zones[i].SiteID < zones[j].SiteID
		}
		return zones[i].Name < zones[j].Name
	})
	return zones, nil
}

// ListBySite retrieves all zones belonging to a site
func (r *MemoryZoneRepository) ListBySite(ctx context.Context, siteID string) ([]*domain.Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zones []*domain.Zone
	for _, zone := range r.zones {
		if zone.SiteID == siteID {
			zones = append(zones, cloneZone(zone))
		}
	}

	sort.Slice(zones, func(i, j int) bool {
		return zones[i].Name < zones[j].Name
	})
	return zones, nil
}

// Reserve atomically claims one slot in a zone
func (r *MemoryZoneRepository) Reserve(ctx context.Context, zoneID string, category domain.VehicleCategory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	zone, exists := r.zones[zoneID]
	if !exists {
		return domain.ErrZoneNotFound
	}
	if !zone.Allows(category) {
		return domain.ErrCategoryNotAllowed
	}
	if zone.Occupied >= zone.Capacity {
		return domain.ErrNoCapacity
	}

	zone.Occupied++
	zone.UpdatedAt = time.Now()
	return nil
}

// Release atomically frees one slot in a zone
func (r *MemoryZoneRepository) Release(ctx context.Context, zoneID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	zone, exists := r.zones[zoneID]
	if !exists {
		return domain.ErrZoneNotFound
	}
	if zone.Occupied <= 0 {
		return domain.ErrCapacityUnderflow
	}

	zone.Occupied--
	zone.UpdatedAt = time.Now()
	return nil
}

// SetOccupied overwrites a zone's occupancy. The compare against the
// observed value makes the write a compare-and-swap, same as the
// conditional UPDATE on the PostgreSQL side.
func (r *MemoryZoneRepository) SetOccupied(ctx context.Context, zoneID string, occupied, observed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	zone, exists := r.zones[zoneID]
	if !exists {
		return domain.ErrZoneNotFound
	}
	if zone.Occupied != observed {
		return domain.ErrOccupancyChanged
	}

	zone.Occupied = occupied
	zone.UpdatedAt = time.Now()
	return nil
}

func cloneZone(zone *domain.Zone) *domain.Zone {
	clone := *zone
	clone.AllowedCategories = append([]domain.VehicleCategory(nil), zone.AllowedCategories...)
	clone.Tariffs = make(map[domain.VehicleCategory]int64, len(zone.Tariffs))
	for k, v := range zone.Tariffs {
		clone.Tariffs[k] = v
	}
	return &clone
}

// Ensure MemoryZoneRepository implements ZoneRepository
var _ ZoneRepository = (*MemoryZoneRepository)(nil)
