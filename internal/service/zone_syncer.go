package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/camiloruiz/campus-parking/internal/repository"
)

// ZoneSyncer rebuilds the availability cache from the durable store.
// The cache is best effort, so whenever it is cold or suspect the syncer
// repopulates it from PostgreSQL counts.
type ZoneSyncer interface {
	// SyncZone syncs one zone's occupancy to the cache (single-flight)
	SyncZone(ctx context.Context, zoneID string) error

	// SyncAll syncs every zone's occupancy to the cache
	SyncAll(ctx context.Context) (int, error)
}

// DefaultZoneSyncer implements ZoneSyncer with a single-flight group so
// concurrent misses on the same zone trigger one database read
type DefaultZoneSyncer struct {
	zoneRepo     repository.ZoneRepository
	availability repository.AvailabilityCache
	sfGroup      singleflight.Group
}

// NewZoneSyncer creates a new zone syncer
func NewZoneSyncer(zoneRepo repository.ZoneRepository, availability repository.AvailabilityCache) *DefaultZoneSyncer {
	return &DefaultZoneSyncer{
		zoneRepo:     zoneRepo,
		availability: availability,
	}
}

// SyncZone syncs one zone's occupancy to the cache
func (s *DefaultZoneSyncer) SyncZone(ctx context.Context, zoneID string) error {
	_, err, _ := s.sfGroup.Do(zoneID, func() (interface{}, error) {
		return nil, s.doSync(ctx, zoneID)
	})
	return err
}

// SyncAll syncs every zone's occupancy to the cache and returns the
// number of zones synced
func (s *DefaultZoneSyncer) SyncAll(ctx context.Context) (int, error) {
	zones, err := s.zoneRepo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list zones: %w", err)
	}

	synced := 0
	for _, zone := range zones {
		if err := s.availability.SetAvailability(ctx, zone.ID, zone.Capacity, zone.Occupied); err != nil {
			return synced, fmt.Errorf("failed to sync zone %s: %w", zone.ID, err)
		}
		synced++
	}
	return synced, nil
}

func (s *DefaultZoneSyncer) doSync(ctx context.Context, zoneID string) error {
	zone, err := s.zoneRepo.GetByID(ctx, zoneID)
	if err != nil {
		return fmt.Errorf("failed to fetch zone %s: %w", zoneID, err)
	}

	if err := s.availability.SetAvailability(ctx, zone.ID, zone.Capacity, zone.Occupied); err != nil {
		return fmt.Errorf("failed to sync zone %s to cache: %w", zoneID, err)
	}

	return nil
}
