package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camiloruiz/campus-parking/internal/domain"
)

func newTestZone(id string, capacity int) *domain.Zone {
	now := time.Now()
	return &domain.Zone{
		ID:                id,
		SiteID:            "sede-norte",
		Name:              "Zona " + id,
		Capacity:          capacity,
		AllowedCategories: []domain.VehicleCategory{domain.CategoryCar, domain.CategoryMotorcycle},
		Tariffs: map[domain.VehicleCategory]int64{
			domain.CategoryCar:        3000,
			domain.CategoryMotorcycle: 1500,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryZoneRepository_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves a slot", func(t *testing.T) {
		repo := NewMemoryZoneRepository()
		require.NoError(t, repo.Create(ctx, newTestZone("z1", 2)))

		require.NoError(t, repo.Reserve(ctx, "z1", domain.CategoryCar))

		zone, err := repo.GetByID(ctx, "z1")
		require.NoError(t, err)
		assert.Equal(t, 1, zone.Occupied)
		assert.Equal(t, 1, zone.Available())
	})

	t.Run("unknown zone", func(t *testing.T) {
		repo := NewMemoryZoneRepository()
		err := repo.Reserve(ctx, "missing", domain.CategoryCar)
		assert.ErrorIs(t, err, domain.ErrZoneNotFound)
	})

	t.Run("category not allowed", func(t *testing.T) {
		repo := NewMemoryZoneRepository()
		require.NoError(t, repo.Create(ctx, newTestZone("z1", 2)))

		err := repo.Reserve(ctx, "z1", domain.CategoryPickup)
		assert.ErrorIs(t, err, domain.ErrCategoryNotAllowed)
	})

	t.Run("full zone", func(t *testing.T) {
		repo := NewMemoryZoneRepository()
		require.NoError(t, repo.Create(ctx, newTestZone("z1", 1)))
		require.NoError(t, repo.Reserve(ctx, "z1", domain.CategoryCar))

		err := repo.Reserve(ctx, "z1", domain.CategoryCar)
		assert.ErrorIs(t, err, domain.ErrNoCapacity)
	})
}

func TestMemoryZoneRepository_Reserve_NoOversell(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryZoneRepository()

	const capacity = 10
	const contenders = 25
	require.NoError(t, repo.Create(ctx, newTestZone("z1", capacity)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	rejected := 0

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Reserve(ctx, "z1", domain.CategoryCar)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if assert.ErrorIs(t, err, domain.ErrNoCapacity) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, capacity, succeeded)
	assert.Equal(t, contenders-capacity, rejected)

	zone, err := repo.GetByID(ctx, "z1")
	require.NoError(t, err)
	assert.Equal(t, capacity, zone.Occupied)
}

func TestMemoryZoneRepository_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("frees a slot", func(t *testing.T) {
		repo := NewMemoryZoneRepository()
		require.NoError(t, repo.Create(ctx, newTestZone("z1", 2)))
		require.NoError(t, repo.Reserve(ctx, "z1", domain.CategoryCar))

		require.NoError(t, repo.Release(ctx, "z1"))

		zone, err := repo.GetByID(ctx, "z1")
		require.NoError(t, err)
		assert.Zero(t, zone.Occupied)
	})

	t.Run("empty zone underflows", func(t *testing.T) {
		repo := NewMemoryZoneRepository()
		require.NoError(t, repo.Create(ctx, newTestZone("z1", 2)))

		err := repo.Release(ctx, "z1")
		assert.ErrorIs(t, err, domain.ErrCapacityUnderflow)
		assert.True(t, domain.IsConsistencyError(err))
	})

	t.Run("unknown zone", func(t *testing.T) {
		repo := NewMemoryZoneRepository()
		err := repo.Release(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrZoneNotFound)
	})
}

func TestMemoryZoneRepository_SetOccupied(t *testing.T) {
	ctx := context.Background()

	t.Run("swaps when the counter matches the observed value", func(t *testing.T) {
		repo := NewMemoryZoneRepository()
		require.NoError(t, repo.Create(ctx, newTestZone("z1", 5)))
		require.NoError(t, repo.Reserve(ctx, "z1", domain.CategoryCar))

		require.NoError(t, repo.SetOccupied(ctx, "z1", 3, 1))

		zone, err := repo.GetByID(ctx, "z1")
		require.NoError(t, err)
		assert.Equal(t, 3, zone.Occupied)
	})

	t.Run("misses when the counter moved since the observation", func(t *testing.T) {
		repo := NewMemoryZoneRepository()
		require.NoError(t, repo.Create(ctx, newTestZone("z1", 5)))

		// Another writer claims a slot after occupancy was read as 0
		require.NoError(t, repo.Reserve(ctx, "z1", domain.CategoryCar))

		err := repo.SetOccupied(ctx, "z1", 0, 0)
		assert.ErrorIs(t, err, domain.ErrOccupancyChanged)

		zone, err := repo.GetByID(ctx, "z1")
		require.NoError(t, err)
		assert.Equal(t, 1, zone.Occupied)
	})

	t.Run("unknown zone", func(t *testing.T) {
		repo := NewMemoryZoneRepository()
		err := repo.SetOccupied(ctx, "missing", 1, 0)
		assert.ErrorIs(t, err, domain.ErrZoneNotFound)
	})
}

func TestMemoryZoneRepository_ListBySite(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryZoneRepository()

	zoneA := newTestZone("a", 5)
	zoneB := newTestZone("b", 5)
	zoneC := newTestZone("c", 5)
	zoneC.SiteID = "sede-centro"

	require.NoError(t, repo.Create(ctx, zoneB))
	require.NoError(t, repo.Create(ctx, zoneA))
	require.NoError(t, repo.Create(ctx, zoneC))

	zones, err := repo.ListBySite(ctx, "sede-norte")
	require.NoError(t, err)
	require.Len(t, zones, 2)
	assert.Equal(t, "a", zones[0].ID)
	assert.Equal(t, "b", zones[1].ID)
}

func TestMemoryZoneRepository_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryZoneRepository()
	require.NoError(t, repo.Create(ctx, newTestZone("z1", 2)))

	err := repo.Create(ctx, newTestZone("z1", 2))
	assert.ErrorIs(t, err, domain.ErrZoneAlreadyExists)
}
