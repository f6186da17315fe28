package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validZone() *Zone {
	now := time.Now()
	return &Zone{
		ID:                "zona-a",
		SiteID:            "sede-norte",
		Name:              "Zona A",
		Capacity:          10,
		AllowedCategories: []VehicleCategory{CategoryCar, CategoryBicycle},
		Tariffs: map[VehicleCategory]int64{
			CategoryCar:     3000,
			CategoryBicycle: 500,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestZone_Validate(t *testing.T) {
	t.Run("valid zone", func(t *testing.T) {
		assert.NoError(t, validZone().Validate())
	})

	t.Run("zero tariff is a free category", func(t *testing.T) {
		zone := validZone()
		zone.Tariffs[CategoryBicycle] = 0
		assert.NoError(t, zone.Validate())
	})

	t.Run("negative tariff", func(t *testing.T) {
		zone := validZone()
		zone.Tariffs[CategoryCar] = -100
		assert.ErrorIs(t, zone.Validate(), ErrInvalidTariff)
	})

	t.Run("missing tariff for allowed category", func(t *testing.T) {
		zone := validZone()
		delete(zone.Tariffs, CategoryBicycle)
		assert.ErrorIs(t, zone.Validate(), ErrInvalidTariff)
	})

	t.Run("zero capacity", func(t *testing.T) {
		zone := validZone()
		zone.Capacity = 0
		assert.ErrorIs(t, zone.Validate(), ErrInvalidCapacity)
	})

	t.Run("occupied above capacity", func(t *testing.T) {
		zone := validZone()
		zone.Occupied = 11
		assert.ErrorIs(t, zone.Validate(), ErrCapacityOverflow)
	})

	t.Run("negative occupied", func(t *testing.T) {
		zone := validZone()
		zone.Occupied = -1
		assert.ErrorIs(t, zone.Validate(), ErrCapacityOverflow)
	})

	t.Run("unknown category", func(t *testing.T) {
		zone := validZone()
		zone.AllowedCategories = append(zone.AllowedCategories, VehicleCategory("patineta"))
		assert.ErrorIs(t, zone.Validate(), ErrInvalidCategory)
	})

	t.Run("missing ids", func(t *testing.T) {
		zone := validZone()
		zone.ID = ""
		assert.ErrorIs(t, zone.Validate(), ErrInvalidZoneID)

		zone = validZone()
		zone.SiteID = ""
		assert.ErrorIs(t, zone.Validate(), ErrInvalidSiteID)
	})
}
