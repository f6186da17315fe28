package domain

import "time"

// VehicleCategory classifies a vehicle for allocation and tariff lookup
type VehicleCategory string

const (
	CategoryCar        VehicleCategory = "carro"
	CategoryMotorcycle VehicleCategory = "moto"
	CategoryBicycle    VehicleCategory = "bicicleta"
	CategoryPickup     VehicleCategory = "camioneta"
)

// Valid reports whether the category is one of the known vehicle types
func (c VehicleCategory) Valid() bool {
	switch c {
	case CategoryCar, CategoryMotorcycle, CategoryBicycle, CategoryPickup:
		return true
	}
	return false
}

// Zone represents a parking zone within a site. Occupied counts currently
// parked vehicles and is never allowed outside [0, Capacity].
type Zone struct {
	ID                string                    `json:"id"`
	SiteID            string                    `json:"site_id"`
	Name              string                    `json:"name"`
	Capacity          int                       `json:"capacity"`
	Occupied          int                       `json:"occupied"`
	AllowedCategories []VehicleCategory         `json:"allowed_categories"`
	Tariffs           map[VehicleCategory]int64 `json:"tariffs"` // hourly rate in COP per category
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

// Available returns the number of free slots
func (z *Zone) Available() int {
	return z.Capacity - z.Occupied
}

// Allows reports whether the zone accepts the given vehicle category
func (z *Zone) Allows(category VehicleCategory) bool {
	for _, c := range z.AllowedCategories {
		if c == category {
			return true
		}
	}
	return false
}

// TariffFor returns the hourly rate for a category. The second return
// value is false when the zone has no tariff for the category.
func (z *Zone) TariffFor(category VehicleCategory) (int64, bool) {
	rate, ok := z.Tariffs[category]
	return rate, ok
}

// Validate checks zone invariants before persistence
func (z *Zone) Validate() error {
	if z.ID == "" {
		return ErrInvalidZoneID
	}
	if z.SiteID == "" {
		return ErrInvalidSiteID
	}
	if z.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	if z.Occupied < 0 || z.Occupied > z.Capacity {
		return ErrCapacityOverflow
	}
	for _, c := range z.AllowedCategories {
		if !c.Valid() {
			return ErrInvalidCategory
		}
		// A zero tariff is a free category; only missing and negative
		// rates are invalid.
		rate, ok := z.Tariffs[c]
		if !ok || rate < 0 {
			return ErrInvalidTariff
		}
	}
	return nil
}
