package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/camiloruiz/campus-parking/internal/domain"
	"github.com/camiloruiz/campus-parking/pkg/telemetry"
)

// PostgresZoneRepository implements ZoneRepository using PostgreSQL with
// pgxpool. Occupancy changes go through conditional single-row updates so
// the capacity check and the increment are one atomic statement.
type PostgresZoneRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresZoneRepository creates a new PostgresZoneRepository
func NewPostgresZoneRepository(pool *pgxpool.Pool) *PostgresZoneRepository {
	return &PostgresZoneRepository{pool: pool}
}

// Create persists a new zone
func (r *PostgresZoneRepository) Create(ctx context.Context, zone *domain.Zone) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.zone.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("zone_id", zone.ID),
		attribute.String("site_id", zone.SiteID),
	)

	tariffs, err := json.Marshal(zone.Tariffs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to marshal tariffs: %w", err)
	}

	query := `
		INSERT INTO zones (
			id, site_id, name, capacity, occupied,
			allowed_categories, tariffs, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
	`

	_, err = r.pool.Exec(ctx, query,
		zone.ID,
		zone.SiteID,
		zone.Name,
		zone.Capacity,
		zone.Occupied,
		categoriesToStrings(zone.AllowedCategories),
		tariffs,
		zone.CreatedAt,
		zone.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			span.SetStatus(codes.Error, "already exists")
			return domain.ErrZoneAlreadyExists
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create zone: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a zone by its ID
func (r *PostgresZoneRepository) GetByID(ctx context.Context, id string) (*domain.Zone, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.zone.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("zone_id", id))

	query := `
		SELECT id, site_id, name, capacity, occupied,
			allowed_categories, tariffs, created_at, updated_at
		FROM zones
		WHERE id = $1
	`

	zone, err := scanZoneRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrZoneNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get zone: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return zone, nil
}

// List retrieves all zones ordered by site and name
func (r *PostgresZoneRepository) List(ctx context.Context) ([]*domain.Zone, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.zone.list")
	defer span.End()

	query := `
		SELECT id, site_id, name, capacity, occupied,
			allowed_categories, tariffs, created_at, updated_at
		FROM zones
		ORDER BY site_id, name
	`

	zones, err := r.queryZones(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(zones)))
	span.SetStatus(codes.Ok, "")
	return zones, nil
}

// ListBySite retrieves all zones belonging to a site
func (r *PostgresZoneRepository) ListBySite(ctx context.Context, siteID string) ([]*domain.Zone, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.zone.list_by_site")
	defer span.End()

	span.SetAttributes(attribute.String("site_id", siteID))

	query := `
		SELECT id, site_id, name, capacity, occupied,
			allowed_categories, tariffs, created_at, updated_at
		FROM zones
		WHERE site_id = $1
		ORDER BY name
	`

	zones, err := r.queryZones(ctx, query, siteID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(zones)))
	span.SetStatus(codes.Ok, "")
	return zones, nil
}

// Reserve atomically claims one slot in a zone. The WHERE clause carries
// both the category check and the capacity check so two concurrent calls
// can never oversell the last slot.
func (r *PostgresZoneRepository) Reserve(ctx context.Context, zoneID string, category domain.VehicleCategory) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.zone.reserve")
	defer span.End()

	span.SetAttributes(
		attribute.String("zone_id", zoneID),
		attribute.String("category", string(category)),
	)

	query := `
		UPDATE zones SET
			occupied = occupied + 1,
			updated_at = $3
		WHERE id = $1
			AND $2 = ANY(allowed_categories)
			AND occupied < capacity
	`

	result, err := r.pool.Exec(ctx, query, zoneID, string(category), time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to reserve slot: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Re-read the zone to tell apart why the conditional update
		// matched no row.
		zone, err := r.GetByID(ctx, zoneID)
		if err != nil {
			span.SetStatus(codes.Error, "not found")
			return err
		}
		if !zone.Allows(category) {
			span.SetStatus(codes.Error, "category not allowed")
			return domain.ErrCategoryNotAllowed
		}
		span.SetStatus(codes.Error, "no capacity")
		return domain.ErrNoCapacity
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Release atomically frees one slot in a zone. The occupied > 0 guard
// keeps occupancy from going negative under double release.
func (r *PostgresZoneRepository) Release(ctx context.Context, zoneID string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.zone.release")
	defer span.End()

	span.SetAttributes(attribute.String("zone_id", zoneID))

	query := `
		UPDATE zones SET
			occupied = occupied - 1,
			updated_at = $2
		WHERE id = $1 AND occupied > 0
	`

	result, err := r.pool.Exec(ctx, query, zoneID, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to release slot: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM zones WHERE id = $1)", zoneID).Scan(&exists); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to check zone existence: %w", err)
		}
		if !exists {
			span.SetStatus(codes.Error, "not found")
			return domain.ErrZoneNotFound
		}
		span.SetStatus(codes.Error, "underflow")
		return domain.ErrCapacityUnderflow
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// SetOccupied overwrites a zone's occupancy, clamped to capacity by the
// table constraint. The occupied = $4 guard makes the write a compare-
// and-swap: a reservation or release that lands after the caller read
// the counter fails the repair instead of being erased by it.
func (r *PostgresZoneRepository) SetOccupied(ctx context.Context, zoneID string, occupied, observed int) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.zone.set_occupied")
	defer span.End()

	span.SetAttributes(
		attribute.String("zone_id", zoneID),
		attribute.Int("occupied", occupied),
		attribute.Int("observed", observed),
	)

	query := `
		UPDATE zones SET
			occupied = $2,
			updated_at = $3
		WHERE id = $1 AND occupied = $4
	`

	result, err := r.pool.Exec(ctx, query, zoneID, occupied, time.Now(), observed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to set occupancy: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM zones WHERE id = $1)", zoneID).Scan(&exists); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to check zone existence: %w", err)
		}
		if !exists {
			span.SetStatus(codes.Error, "not found")
			return domain.ErrZoneNotFound
		}
		span.SetStatus(codes.Error, "occupancy changed")
		return domain.ErrOccupancyChanged
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *PostgresZoneRepository) queryZones(ctx context.Context, query string, args ...interface{}) ([]*domain.Zone, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	defer rows.Close()

	var zones []*domain.Zone
	for rows.Next() {
		zone, err := scanZoneRow(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, zone)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating zones: %w", err)
	}

	return zones, nil
}

// scanZoneRow scans a row into a Zone struct
func scanZoneRow(row pgx.Row) (*domain.Zone, error) {
	zone := &domain.Zone{}
	var (
		categories  []string
		tariffsJSON []byte
	)

	err := row.Scan(
		&zone.ID,
		&zone.SiteID,
		&zone.Name,
		&zone.Capacity,
		&zone.Occupied,
		&categories,
		&tariffsJSON,
		&zone.CreatedAt,
		&zone.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	zone.AllowedCategories = make([]domain.VehicleCategory, 0, len(categories))
	for _, c := range categories {
		zone.AllowedCategories = append(zone.AllowedCategories, domain.VehicleCategory(c))
	}

	if len(tariffsJSON) > 0 {
		if err := json.Unmarshal(tariffsJSON, &zone.Tariffs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tariffs: %w", err)
		}
	}

	return zone, nil
}

func categoriesToStrings(categories []domain.VehicleCategory) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, string(c))
	}
	return out
}

// Ensure PostgresZoneRepository implements ZoneRepository
var _ ZoneRepository = (*PostgresZoneRepository)(nil)
