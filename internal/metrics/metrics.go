package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/camiloruiz/campus-parking/pkg/telemetry"
)

var (
	// Session counters
	SessionsOpened    *telemetry.Counter
	SessionsClosed    *telemetry.Counter
	EntriesRejected   *telemetry.Counter
	ContentionRetries *telemetry.Counter

	// Consistency tracking
	ConsistencyViolations *telemetry.Counter
	DriftRepairs          *telemetry.Counter

	// Histograms
	StayDuration    *telemetry.Histogram
	RequestDuration *telemetry.Histogram

	// Gauges
	OccupiedSlots *telemetry.UpDownCounter

	// Revenue
	RevenueTotal *telemetry.Counter

	initOnce sync.Once
	initErr  error
)

// Init initializes all parking metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	SessionsOpened, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_sessions_opened_total",
		Description: "Total number of parking sessions opened",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SessionsClosed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_sessions_closed_total",
		Description: "Total number of parking sessions finalized",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	EntriesRejected, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_entries_rejected_total",
		Description: "Total number of rejected entry attempts by reason",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ContentionRetries, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_contention_retries_total",
		Description: "Total number of retried occupancy updates",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ConsistencyViolations, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_consistency_violations_total",
		Description: "Occupancy states that violated zone invariants",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	DriftRepairs, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_drift_repairs_total",
		Description: "Occupancy drift corrections applied by the audit worker",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	// Stays from a few minutes up to a full day
	StayDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "parking_stay_duration_minutes",
		Description: "Duration of finalized parking sessions",
		Unit:        "min",
	}, []float64{5, 15, 30, 60, 120, 240, 480, 720, 1440})
	if err != nil {
		return err
	}

	RequestDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "parking_request_duration_seconds",
		Description: "HTTP request duration in seconds",
		Unit:        "s",
	}, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10})
	if err != nil {
		return err
	}

	OccupiedSlots, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "parking_occupied_slots",
		Description: "Current number of occupied slots",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	RevenueTotal, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "parking_revenue_cop_total",
		Description: "Total billed amount in COP",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordEntry records a vehicle entering a zone
func RecordEntry(ctx context.Context, zoneID, category string) {
	if SessionsOpened != nil {
		SessionsOpened.Inc(ctx,
			attribute.String("zone_id", zoneID),
			attribute.String("category", category),
		)
	}
	if OccupiedSlots != nil {
		OccupiedSlots.Inc(ctx, attribute.String("zone_id", zoneID))
	}
}

// RecordExit records a vehicle exiting with its stay duration and cost
func RecordExit(ctx context.Context, zoneID, category string, durationMinutes, cost int64) {
	if SessionsClosed != nil {
		SessionsClosed.Inc(ctx,
			attribute.String("zone_id", zoneID),
			attribute.String("category", category),
		)
	}
	if StayDuration != nil {
		StayDuration.Record(ctx, float64(durationMinutes),
			attribute.String("zone_id", zoneID),
		)
	}
	if RevenueTotal != nil {
		RevenueTotal.Add(ctx, cost,
			attribute.String("zone_id", zoneID),
			attribute.String("category", category),
		)
	}
	if OccupiedSlots != nil {
		OccupiedSlots.Dec(ctx, attribute.String("zone_id", zoneID))
	}
}

// RecordRejection records a rejected entry attempt
func RecordRejection(ctx context.Context, zoneID, reason string) {
	if EntriesRejected != nil {
		EntriesRejected.Inc(ctx,
			attribute.String("zone_id", zoneID),
			attribute.String("reason", reason),
		)
	}
}

// RecordContentionRetry records a retried occupancy update
func RecordContentionRetry(ctx context.Context, zoneID string) {
	if ContentionRetries != nil {
		ContentionRetries.Inc(ctx, attribute.String("zone_id", zoneID))
	}
}

// RecordConsistencyViolation records an invariant violation
func RecordConsistencyViolation(ctx context.Context, zoneID, kind string) {
	if ConsistencyViolations != nil {
		ConsistencyViolations.Inc(ctx,
			attribute.String("zone_id", zoneID),
			attribute.String("kind", kind),
		)
	}
}

// RecordDriftRepair records an occupancy correction by the audit worker
func RecordDriftRepair(ctx context.Context, zoneID string, delta int64) {
	if DriftRepairs != nil {
		DriftRepairs.Inc(ctx, attribute.String("zone_id", zoneID))
	}
	if OccupiedSlots != nil {
		OccupiedSlots.Add(ctx, delta, attribute.String("zone_id", zoneID))
	}
}

// RecordRequestDuration records HTTP request duration
func RecordRequestDuration(ctx context.Context, operation string, durationSeconds float64) {
	if RequestDuration != nil {
		RequestDuration.Record(ctx, durationSeconds,
			attribute.String("operation", operation),
		)
	}
}
