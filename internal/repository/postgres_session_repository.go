package repository

import (
	"context"
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

// PostgresSessionRepository implements SessionRepository using PostgreSQL
// with pgxpool. The one-active-session-per-vehicle rule is enforced by a
// partial unique index on (vehicle_id) WHERE status = 'activo'.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSessionRepository creates a new PostgresSessionRepository
func NewPostgresSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

// Create persists a new active session
func (r *PostgresSessionRepository) Create(ctx context.Context, session *domain.ParkingSession) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.session.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", session.ID),
		attribute.String("vehicle_id", session.VehicleID),
		attribute.String("zone_id", session.ZoneID),
	)

	query := `
		INSERT INTO parking_sessions (
			id, vehicle_id, zone_id, site_id, category,
			entered_at, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
	`

	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.VehicleID,
		session.ZoneID,
		session.SiteID,
		string(session.Category),
		session.EnteredAt,
		string(session.Status),
		session.CreatedAt,
		session.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			span.SetStatus(codes.Error, "vehicle already parked")
			return domain.ErrVehicleAlreadyParked
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create session: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a session by its ID
func (r *PostgresSessionRepository) GetByID(ctx context.Context, id string) (*domain.ParkingSession, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.session.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("session_id", id))

	query := sessionSelect + ` WHERE id = $1`

	session, err := scanSessionRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrSessionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return session, nil
}

// GetActiveByVehicle retrieves the active session for a vehicle
func (r *PostgresSessionRepository) GetActiveByVehicle(ctx context.Context, vehicleID string) (*domain.ParkingSession, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.session.get_active_by_vehicle")
	defer span.End()

	span.SetAttributes(attribute.String("vehicle_id", vehicleID))

	query := sessionSelect + ` WHERE vehicle_id = $1 AND status = 'activo'`

	session, err := scanSessionRow(r.pool.QueryRow(ctx, query, vehicleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "no active session")
			return nil, domain.ErrNoActiveSession
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return session, nil
}

// Finalize persists the closed state of a session. The status guard in
// the WHERE clause makes a concurrent double exit lose cleanly.
func (r *PostgresSessionRepository) Finalize(ctx context.Context, session *domain.ParkingSession) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.session.finalize")
	defer span.End()

	span.SetAttributes(attribute.String("session_id", session.ID))

	query := `
		UPDATE parking_sessions SET
			exited_at = $2,
			duration_minutes = $3,
			cost_total = $4,
			status = $5,
			updated_at = $6
		WHERE id = $1 AND status = 'activo'
	`

	result, err := r.pool.Exec(ctx, query,
		session.ID,
		session.ExitedAt,
		session.DurationMinutes,
		session.CostTotal,
		string(domain.SessionStatusFinalized),
		time.Now(),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to finalize session: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM parking_sessions WHERE id = $1)", session.ID).Scan(&exists); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to check session existence: %w", err)
		}
		if !exists {
			span.SetStatus(codes.Error, "not found")
			return domain.ErrSessionNotFound
		}
		span.SetStatus(codes.Error, "already finalized")
		return domain.ErrSessionAlreadyClosed
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListActiveByZone retrieves all active sessions in a zone
func (r *PostgresSessionRepository) ListActiveByZone(ctx context.Context, zoneID string) ([]*domain.ParkingSession, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.session.list_active_by_zone")
	defer span.End()

	span.SetAttributes(attribute.String("zone_id", zoneID))

	query := sessionSelect + ` WHERE zone_id = $1 AND status = 'activo' ORDER BY entered_at`

	rows, err := r.pool.Query(ctx, query, zoneID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.ParkingSession
	for rows.Next() {
		session, err := scanSessionRow(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(sessions)))
	span.SetStatus(codes.Ok, "")
	return sessions, nil
}

// CountActiveByZone counts active sessions in a zone
func (r *PostgresSessionRepository) CountActiveByZone(ctx context.Context, zoneID string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.session.count_active_by_zone")
	defer span.End()

	span.SetAttributes(attribute.String("zone_id", zoneID))

	query := `SELECT COUNT(*) FROM parking_sessions WHERE zone_id = $1 AND status = 'activo'`

	var count int
	if err := r.pool.QueryRow(ctx, query, zoneID).Scan(&count); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}

	span.SetAttributes(attribute.Int("count", count))
	span.SetStatus(codes.Ok, "")
	return count, nil
}

const sessionSelect = `
	SELECT id, vehicle_id, zone_id, site_id, category,
		entered_at, exited_at, duration_minutes, cost_total,
		status, created_at, updated_at
	FROM parking_sessions`

// scanSessionRow scans a row into a ParkingSession struct
func scanSessionRow(row pgx.Row) (*domain.ParkingSession, error) {
	session := &domain.ParkingSession{}
	var (
		category string
		status   string
	)

	err := row.Scan(
		&session.ID,
		&session.VehicleID,
		&session.ZoneID,
		&session.SiteID,
		&category,
		&session.EnteredAt,
		&session.ExitedAt,
		&session.DurationMinutes,
		&session.CostTotal,
		&status,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	session.Category = domain.VehicleCategory(category)
	session.Status = domain.SessionStatus(status)
	return session, nil
}

// Ensure PostgresSessionRepository implements SessionRepository
var _ SessionRepository = (*PostgresSessionRepository)(nil)
