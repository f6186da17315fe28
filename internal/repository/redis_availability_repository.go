package repository

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	pkgredis "github.com/camiloruiz/campus-parking/pkg/redis"
	"github.com/camiloruiz/campus-parking/pkg/telemetry"
)

//go:embed scripts/adjust_occupied.lua
var adjustOccupiedScript string

const scriptAdjustOccupied = "adjust_occupied"

// RedisAvailabilityRepository implements AvailabilityCache using Redis
// hashes. PostgreSQL stays the source of truth for occupancy; this cache
// only serves the hot availability read path and is rebuilt by the
// syncer whenever it drifts.
type RedisAvailabilityRepository struct {
	client *pkgredis.Client
}

// NewRedisAvailabilityRepository creates a new RedisAvailabilityRepository
func NewRedisAvailabilityRepository(client *pkgredis.Client) *RedisAvailabilityRepository {
	return &RedisAvailabilityRepository{client: client}
}

// LoadScripts loads the Lua scripts into Redis
func (r *RedisAvailabilityRepository) LoadScripts(ctx context.Context) error {
	if _, err := r.client.LoadScript(ctx, scriptAdjustOccupied, adjustOccupiedScript); err != nil {
		return fmt.Errorf("failed to load script %s: %w", scriptAdjustOccupied, err)
	}
	return nil
}

// SetAvailability overwrites the cached occupancy for a zone
func (r *RedisAvailabilityRepository) SetAvailability(ctx context.Context, zoneID string, capacity, occupied int) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.availability.set")
	defer span.End()

	span.SetAttributes(
		attribute.String("zone_id", zoneID),
		attribute.Int("capacity", capacity),
		attribute.Int("occupied", occupied),
	)

	key := availabilityKey(zoneID)
	if err := r.client.HSet(ctx, key, "capacity", capacity, "occupied", occupied).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to set availability: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// AdjustOccupied applies a delta to the cached occupancy, clamped to
// [0, capacity] by the Lua script. A cache miss is not an error; the
// entry will be repopulated on the next sync.
func (r *RedisAvailabilityRepository) AdjustOccupied(ctx context.Context, zoneID string, delta int) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.availability.adjust")
	defer span.End()

	span.SetAttributes(
		attribute.String("zone_id", zoneID),
		attribute.Int("delta", delta),
	)

	keys := []string{availabilityKey(zoneID)}
	result := r.client.EvalWithFallback(ctx, scriptAdjustOccupied, adjustOccupiedScript, keys, delta)
	if result.Err() != nil {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return fmt.Errorf("failed to adjust occupancy: %w", result.Err())
	}

	values, err := result.Slice()
	if err != nil || len(values) < 2 {
		span.SetStatus(codes.Error, "unexpected script result")
		return fmt.Errorf("unexpected adjust_occupied result: %v", result.Val())
	}

	if hit, _ := toInt64(values[0]); hit == 1 {
		occupied, _ := toInt64(values[1])
		span.SetAttributes(attribute.Int64("occupied", occupied))
	} else {
		span.AddEvent("cache miss")
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetAvailability returns cached (capacity, occupied) for a zone
func (r *RedisAvailabilityRepository) GetAvailability(ctx context.Context, zoneID string) (int, int, bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.availability.get")
	defer span.End()

	span.SetAttributes(attribute.String("zone_id", zoneID))

	fields, err := r.client.HGetAll(ctx, availabilityKey(zoneID)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, 0, false, fmt.Errorf("failed to get availability: %w", err)
	}

	if len(fields) == 0 {
		span.SetStatus(codes.Ok, "miss")
		return 0, 0, false, nil
	}

	capacity, err := strconv.Atoi(fields["capacity"])
	if err != nil {
		span.SetStatus(codes.Error, "corrupt capacity field")
		return 0, 0, false, fmt.Errorf("corrupt availability entry for zone %s: %w", zoneID, err)
	}
	occupied, err := strconv.Atoi(fields["occupied"])
	if err != nil {
		span.SetStatus(codes.Error, "corrupt occupied field")
		return 0, 0, false, fmt.Errorf("corrupt availability entry for zone %s: %w", zoneID, err)
	}

	span.SetStatus(codes.Ok, "")
	return capacity, occupied, true, nil
}

// Invalidate drops the cached entry for a zone
func (r *RedisAvailabilityRepository) Invalidate(ctx context.Context, zoneID string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.availability.invalidate")
	defer span.End()

	span.SetAttributes(attribute.String("zone_id", zoneID))

	if err := r.client.Del(ctx, availabilityKey(zoneID)).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to invalidate availability: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func availabilityKey(zoneID string) string {
	return fmt.Sprintf("zone:availability:%s", zoneID)
}

// toInt64 converts a Lua script result element to int64
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return parsed, err == nil
	}
	return 0, false
}

// Ensure RedisAvailabilityRepository implements AvailabilityCache
var _ AvailabilityCache = (*RedisAvailabilityRepository)(nil)
