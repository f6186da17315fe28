package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/camiloruiz/campus-parking/internal/billing"
	"github.com/camiloruiz/campus-parking/internal/domain"
	"github.com/camiloruiz/campus-parking/internal/dto"
	"github.com/camiloruiz/campus-parking/internal/metrics"
	"github.com/camiloruiz/campus-parking/internal/repository"
	"github.com/camiloruiz/campus-parking/pkg/logger"
	"github.com/camiloruiz/campus-parking/pkg/retry"
	"github.com/camiloruiz/campus-parking/pkg/telemetry"
)

// AllocationService defines the interface for parking allocation and
// billing business logic
type AllocationService interface {
	// EnterZone allocates a slot and opens a session for a vehicle
	EnterZone(ctx context.Context, req *dto.EnterRequest) (*dto.EnterResponse, error)

	// ExitZone finalizes the vehicle's active session, computes the
	// charge and frees the slot
	ExitZone(ctx context.Context, req *dto.ExitRequest) (*dto.ExitResponse, error)

	// GetZoneAvailability returns current occupancy for a zone
	GetZoneAvailability(ctx context.Context, zoneID string) (*dto.ZoneAvailabilityResponse, error)

	// ListZones returns all zones, optionally filtered by site
	ListZones(ctx context.Context, siteID string) ([]*dto.ZoneAvailabilityResponse, error)

	// CreateZone registers a new zone
	CreateZone(ctx context.Context, req *dto.CreateZoneRequest) (*dto.ZoneAvailabilityResponse, error)

	// GetSession retrieves a session by ID
	GetSession(ctx context.Context, sessionID string) (*dto.SessionResponse, error)
}

// allocationService implements AllocationService
type allocationService struct {
	zoneRepo       repository.ZoneRepository
	sessionRepo    repository.SessionRepository
	availability   repository.AvailabilityCache
	eventPublisher EventPublisher
	calculator     *billing.Calculator
	retryConfig    *retry.Config
	now            func() time.Time
}

// AllocationServiceConfig contains configuration for the allocation service
type AllocationServiceConfig struct {
	// MaxConflictRetries bounds how often a contended occupancy update
	// is retried before the request fails with ErrContention
	MaxConflictRetries int

	// ConflictBackoff is the initial backoff between retries
	ConflictBackoff time.Duration

	// Clock overrides the time source, used by tests
	Clock func() time.Time
}

// NewAllocationService creates a new allocation service
func NewAllocationService(
	zoneRepo repository.ZoneRepository,
	sessionRepo repository.SessionRepository,
	availability repository.AvailabilityCache,
	eventPublisher EventPublisher,
	cfg *AllocationServiceConfig,
) AllocationService {
	maxRetries := 3
	backoff := 25 * time.Millisecond
	now := time.Now
	if cfg != nil {
		if cfg.MaxConflictRetries > 0 {
			maxRetries = cfg.MaxConflictRetries
		}
		if cfg.ConflictBackoff > 0 {
			backoff = cfg.ConflictBackoff
		}
		if cfg.Clock != nil {
			now = cfg.Clock
		}
	}
	if eventPublisher == nil {
		eventPublisher = NewNoOpEventPublisher()
	}
	return &allocationService{
		zoneRepo:       zoneRepo,
		sessionRepo:    sessionRepo,
		availability:   availability,
		eventPublisher: eventPublisher,
		calculator:     billing.NewCalculator(),
		retryConfig: &retry.Config{
			MaxRetries:      maxRetries,
			InitialInterval: backoff,
			MaxInterval:     time.Second,
			Multiplier:      2.0,
			JitterFactor:    0.2,
		},
		now: now,
	}
}

// EnterZone allocates a slot and opens a session for a vehicle
func (s *allocationService) EnterZone(ctx context.Context, req *dto.EnterRequest) (*dto.EnterResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.allocation.enter_zone")
	defer span.End()

	// Validate request
	if req == nil || req.VehicleID == "" {
		span.SetStatus(codes.Error, "invalid vehicle_id")
		return nil, domain.ErrInvalidVehicleID
	}
	if req.ZoneID == "" {
		span.SetStatus(codes.Error, "invalid zone_id")
		return nil, domain.ErrInvalidZoneID
	}
	category := domain.VehicleCategory(req.Category)
	if !category.Valid() {
		span.SetStatus(codes.Error, "invalid category")
		return nil, domain.ErrInvalidCategory
	}

	span.SetAttributes(
		attribute.String("vehicle_id", req.VehicleID),
		attribute.String("zone_id", req.ZoneID),
		attribute.String("category", req.Category),
	)

	// Cheap pre-check; the unique index on active sessions is the real
	// guard against a concurrent double enter.
	if _, err := s.sessionRepo.GetActiveByVehicle(ctx, req.VehicleID); err == nil {
		span.SetStatus(codes.Error, "vehicle already parked")
		metrics.RecordRejection(ctx, req.ZoneID, "already_parked")
		return nil, domain.ErrVehicleAlreadyParked
	} else if !errors.Is(err, domain.ErrNoActiveSession) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	zone, err := s.zoneRepo.GetByID(ctx, req.ZoneID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Atomically claim a slot; the conditional update in the repository
	// is what makes N concurrent entries on N slots never oversell.
	if err := s.reserveSlot(ctx, req.ZoneID, category); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.recordEntryRejection(ctx, req.ZoneID, err)
		return nil, err
	}

	session := domain.NewParkingSession(req.VehicleID, zone, category, s.now())
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		// Compensate: give the claimed slot back before surfacing the
		// failure, otherwise the zone leaks capacity.
		if relErr := s.zoneRepo.Release(ctx, req.ZoneID); relErr != nil {
			logger.Get().Error("failed to release slot after session create failure",
				zap.String("zone_id", req.ZoneID),
				zap.String("vehicle_id", req.VehicleID),
				zap.Error(relErr),
			)
			metrics.RecordConsistencyViolation(ctx, req.ZoneID, "orphaned_slot")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, domain.ErrVehicleAlreadyParked) {
			metrics.RecordRejection(ctx, req.ZoneID, "already_parked")
		}
		return nil, err
	}

	// Mirror the new occupancy into the cache, best effort
	if s.availability != nil {
		if cacheErr := s.availability.AdjustOccupied(ctx, req.ZoneID, 1); cacheErr != nil {
			logger.Get().Warn("failed to mirror occupancy to cache",
				zap.String("zone_id", req.ZoneID),
				zap.Error(cacheErr),
			)
		}
	}

	// Publish session opened event (async, don't block on failure)
	go func(sess *domain.ParkingSession) {
		if pubErr := s.eventPublisher.PublishSessionOpened(context.Background(), sess); pubErr != nil {
			logger.Get().Warn("failed to publish session opened event",
				zap.String("session_id", sess.ID),
				zap.Error(pubErr),
			)
		}
	}(session)

	metrics.RecordEntry(ctx, req.ZoneID, req.Category)

	span.AddEvent("session_opened", trace.WithAttributes(
		attribute.String("session_id", session.ID),
		attribute.String("zone_id", session.ZoneID),
		attribute.String("category", string(session.Category)),
	))

	span.SetAttributes(attribute.String("session_id", session.ID))
	span.SetStatus(codes.Ok, "")
	return &dto.EnterResponse{
		SessionID: session.ID,
		VehicleID: session.VehicleID,
		ZoneID:    session.ZoneID,
		SiteID:    session.SiteID,
		Category:  string(session.Category),
		EnteredAt: session.EnteredAt,
		Status:    string(session.Status),
	}, nil
}

// ExitZone finalizes the vehicle's active session, computes the charge
// and frees the slot. Once the session is finalized it stays finalized:
// a failure to free the slot surfaces as a consistency error for the
// audit worker, never as a rollback of the charge.
func (s *allocationService) ExitZone(ctx context.Context, req *dto.ExitRequest) (*dto.ExitResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.allocation.exit_zone")
	defer span.End()

	if req == nil || req.VehicleID == "" {
		span.SetStatus(codes.Error, "invalid vehicle_id")
		return nil, domain.ErrInvalidVehicleID
	}

	span.SetAttributes(attribute.String("vehicle_id", req.VehicleID))

	session, err := s.sessionRepo.GetActiveByVehicle(ctx, req.VehicleID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	zone, err := s.zoneRepo.GetByID(ctx, session.ZoneID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rate, ok := zone.TariffFor(session.Category)
	if !ok {
		span.SetStatus(codes.Error, "missing tariff")
		return nil, domain.ErrInvalidTariff
	}

	exitedAt := s.now()
	durationMinutes, cost, err := s.calculator.Quote(rate, session.EnteredAt, exitedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := session.Finalize(exitedAt, durationMinutes, cost); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Persist the close first; of two concurrent exits only one update
	// matches the active row, so only one release follows.
	if err := s.sessionRepo.Finalize(ctx, session); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.releaseSlot(ctx, session.ZoneID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, domain.ErrCapacityUnderflow) {
			metrics.RecordConsistencyViolation(ctx, session.ZoneID, "underflow")
		}
		return nil, err
	}

	if s.availability != nil {
		if cacheErr := s.availability.AdjustOccupied(ctx, session.ZoneID, -1); cacheErr != nil {
			logger.Get().Warn("failed to mirror occupancy to cache",
				zap.String("zone_id", session.ZoneID),
				zap.Error(cacheErr),
			)
		}
	}

	go func(sess *domain.ParkingSession) {
		if pubErr := s.eventPublisher.PublishSessionClosed(context.Background(), sess); pubErr != nil {
			logger.Get().Warn("failed to publish session closed event",
				zap.String("session_id", sess.ID),
				zap.Error(pubErr),
			)
		}
	}(session)

	metrics.RecordExit(ctx, session.ZoneID, string(session.Category), durationMinutes, cost)

	span.AddEvent("session_closed", trace.WithAttributes(
		attribute.String("session_id", session.ID),
		attribute.Int64("duration_minutes", durationMinutes),
		attribute.Int64("cost_total", cost),
	))

	span.SetStatus(codes.Ok, "")
	return &dto.ExitResponse{
		SessionID:       session.ID,
		VehicleID:       session.VehicleID,
		ZoneID:          session.ZoneID,
		EnteredAt:       session.EnteredAt,
		ExitedAt:        exitedAt,
		DurationMinutes: durationMinutes,
		CostTotal:       cost,
		Currency:        "COP",
	}, nil
}

// GetZoneAvailability returns current occupancy for a zone. The cached
// counts are preferred when present; the durable store fills misses and
// rewarms the cache.
func (s *allocationService) GetZoneAvailability(ctx context.Context, zoneID string) (*dto.ZoneAvailabilityResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.allocation.zone_availability")
	defer span.End()

	if zoneID == "" {
		span.SetStatus(codes.Error, "invalid zone_id")
		return nil, domain.ErrInvalidZoneID
	}

	span.SetAttributes(attribute.String("zone_id", zoneID))

	zone, err := s.zoneRepo.GetByID(ctx, zoneID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp := dto.FromZone(zone)

	if s.availability != nil {
		capacity, occupied, ok, cacheErr := s.availability.GetAvailability(ctx, zoneID)
		switch {
		case cacheErr != nil:
			logger.Get().Warn("availability cache read failed",
				zap.String("zone_id", zoneID),
				zap.Error(cacheErr),
			)
		case ok:
			resp.Capacity = capacity
			resp.Occupied = occupied
			resp.Available = capacity - occupied
			span.SetAttributes(attribute.Bool("cache_hit", true))
		default:
			// Warm the cache from the durable counts
			if setErr := s.availability.SetAvailability(ctx, zoneID, zone.Capacity, zone.Occupied); setErr != nil {
				logger.Get().Warn("failed to warm availability cache",
					zap.String("zone_id", zoneID),
					zap.Error(setErr),
				)
			}
		}
	}

	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// ListZones returns all zones, optionally filtered by site
func (s *allocationService) ListZones(ctx context.Context, siteID string) ([]*dto.ZoneAvailabilityResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.allocation.list_zones")
	defer span.End()

	var (
		zones []*domain.Zone
		err   error
	)
	if siteID == "" {
		zones, err = s.zoneRepo.List(ctx)
	} else {
		span.SetAttributes(attribute.String("site_id", siteID))
		zones, err = s.zoneRepo.ListBySite(ctx, siteID)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	responses := make([]*dto.ZoneAvailabilityResponse, len(zones))
	for i, zone := range zones {
		responses[i] = dto.FromZone(zone)
	}

	span.SetAttributes(attribute.Int("count", len(responses)))
	span.SetStatus(codes.Ok, "")
	return responses, nil
}

// CreateZone registers a new zone
func (s *allocationService) CreateZone(ctx context.Context, req *dto.CreateZoneRequest) (*dto.ZoneAvailabilityResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.allocation.create_zone")
	defer span.End()

	if req == nil || req.ID == "" {
		span.SetStatus(codes.Error, "invalid zone_id")
		return nil, domain.ErrInvalidZoneID
	}

	span.SetAttributes(
		attribute.String("zone_id", req.ID),
		attribute.String("site_id", req.SiteID),
		attribute.Int("capacity", req.Capacity),
	)

	now := s.now()
	zone := &domain.Zone{
		ID:        req.ID,
		SiteID:    req.SiteID,
		Name:      req.Name,
		Capacity:  req.Capacity,
		Tariffs:   make(map[domain.VehicleCategory]int64, len(req.Tariffs)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, c := range req.AllowedCategories {
		zone.AllowedCategories = append(zone.AllowedCategories, domain.VehicleCategory(c))
	}
	for c, rate := range req.Tariffs {
		zone.Tariffs[domain.VehicleCategory(c)] = rate
	}

	if err := zone.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.zoneRepo.Create(ctx, zone); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if s.availability != nil {
		if cacheErr := s.availability.SetAvailability(ctx, zone.ID, zone.Capacity, zone.Occupied); cacheErr != nil {
			logger.Get().Warn("failed to seed availability cache",
				zap.String("zone_id", zone.ID),
				zap.Error(cacheErr),
			)
		}
	}

	span.SetStatus(codes.Ok, "")
	return dto.FromZone(zone), nil
}

// GetSession retrieves a session by ID
func (s *allocationService) GetSession(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.allocation.get_session")
	defer span.End()

	if sessionID == "" {
		span.SetStatus(codes.Error, "session not found")
		return nil, domain.ErrSessionNotFound
	}

	span.SetAttributes(attribute.String("session_id", sessionID))

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return dto.FromSession(session), nil
}

// reserveSlot runs the atomic reserve with bounded retries for transient
// database conflicts. Business rejections are permanent and returned
// immediately; exhausted retries surface as ErrContention.
func (s *allocationService) reserveSlot(ctx context.Context, zoneID string, category domain.VehicleCategory) error {
	result := retry.DoWithCallback(ctx, s.retryConfig, func(ctx context.Context) error {
		err := s.zoneRepo.Reserve(ctx, zoneID, category)
		return classifyConflict(err)
	}, func(attempt int, err error, next time.Duration) {
		metrics.RecordContentionRetry(ctx, zoneID)
	})

	if result.Err != nil {
		if errors.Is(result.Err, retry.ErrMaxRetriesExceeded) {
			return domain.ErrContention
		}
		return result.Err
	}
	return nil
}

// releaseSlot mirrors reserveSlot for the decrement path
func (s *allocationService) releaseSlot(ctx context.Context, zoneID string) error {
	result := retry.DoWithCallback(ctx, s.retryConfig, func(ctx context.Context) error {
		err := s.zoneRepo.Release(ctx, zoneID)
		return classifyConflict(err)
	}, func(attempt int, err error, next time.Duration) {
		metrics.RecordContentionRetry(ctx, zoneID)
	})

	if result.Err != nil {
		if errors.Is(result.Err, retry.ErrMaxRetriesExceeded) {
			return domain.ErrContention
		}
		return result.Err
	}
	return nil
}

// classifyConflict marks business rejections permanent so the retrier
// gives up on them immediately, and lets transient database conflicts
// through for another attempt.
func classifyConflict(err error) error {
	if err == nil {
		return nil
	}
	if isTransientConflict(err) {
		return retry.Retryable(err)
	}
	return retry.Permanent(err)
}

// isTransientConflict reports whether the error is a database-level
// conflict worth retrying (serialization failure or deadlock)
func isTransientConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func (s *allocationService) recordEntryRejection(ctx context.Context, zoneID string, err error) {
	switch {
	case errors.Is(err, domain.ErrNoCapacity):
		metrics.RecordRejection(ctx, zoneID, "no_capacity")
	case errors.Is(err, domain.ErrCategoryNotAllowed):
		metrics.RecordRejection(ctx, zoneID, "category_not_allowed")
	case errors.Is(err, domain.ErrContention):
		metrics.RecordRejection(ctx, zoneID, "contention")
	case errors.Is(err, domain.ErrZoneNotFound):
		metrics.RecordRejection(ctx, zoneID, "unknown_zone")
	}
}
