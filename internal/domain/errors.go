package domain

import "errors"

// Domain errors
var (
	// Zone errors
	ErrZoneNotFound       = errors.New("zone not found")
	ErrSiteNotFound       = errors.New("site not found")
	ErrZoneAlreadyExists  = errors.New("zone already exists")
	ErrNoCapacity         = errors.New("no capacity available in zone")
	ErrCategoryNotAllowed = errors.New("vehicle category not allowed in zone")

	// Session errors
	ErrSessionNotFound      = errors.New("parking session not found")
	ErrNoActiveSession      = errors.New("no active session for vehicle")
	ErrVehicleAlreadyParked = errors.New("vehicle already has an active session")
	ErrSessionAlreadyClosed = errors.New("parking session already finalized")

	// Validation errors
	ErrInvalidVehicleID = errors.New("invalid vehicle id")
	ErrInvalidZoneID    = errors.New("invalid zone id")
	ErrInvalidSiteID    = errors.New("invalid site id")
	ErrInvalidCategory  = errors.New("invalid vehicle category")
	ErrInvalidInterval  = errors.New("exit time precedes entry time")
	ErrInvalidTariff    = errors.New("tariff must not be negative")
	ErrInvalidCapacity  = errors.New("capacity must be greater than zero")

	// Contention errors
	ErrContention       = errors.New("concurrent update conflict, retries exhausted")
	ErrOccupancyChanged = errors.New("zone occupancy changed concurrently")

	// Consistency errors
	ErrCapacityUnderflow = errors.New("occupancy would drop below zero")
	ErrCapacityOverflow  = errors.New("occupancy exceeds zone capacity")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrZoneNotFound) ||
		errors.Is(err, ErrSiteNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrNoActiveSession)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidVehicleID) ||
		errors.Is(err, ErrInvalidZoneID) ||
		errors.Is(err, ErrInvalidSiteID) ||
		errors.Is(err, ErrInvalidCategory) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidTariff) ||
		errors.Is(err, ErrInvalidCapacity)
}

// IsConflictError checks if the error is a business conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrNoCapacity) ||
		errors.Is(err, ErrCategoryNotAllowed) ||
		errors.Is(err, ErrVehicleAlreadyParked) ||
		errors.Is(err, ErrSessionAlreadyClosed) ||
		errors.Is(err, ErrZoneAlreadyExists)
}

// IsContentionError checks if the error is a transient contention error
func IsContentionError(err error) bool {
	return errors.Is(err, ErrContention) ||
		errors.Is(err, ErrOccupancyChanged)
}

// IsConsistencyError checks if the error indicates corrupted occupancy state
func IsConsistencyError(err error) bool {
	return errors.Is(err, ErrCapacityUnderflow) ||
		errors.Is(err, ErrCapacityOverflow)
}
