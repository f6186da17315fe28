package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/camiloruiz/campus-parking/internal/domain"
	"github.com/camiloruiz/campus-parking/internal/metrics"
	"github.com/camiloruiz/campus-parking/internal/repository"
	"github.com/camiloruiz/campus-parking/internal/service"
	"github.com/camiloruiz/campus-parking/pkg/logger"
)

// ConsistencyWorkerConfig holds configuration for the consistency worker
type ConsistencyWorkerConfig struct {
	AuditInterval time.Duration
	RepairDrift   bool
}

// AuditReport summarizes one audit pass over all zones
type AuditReport struct {
	ZonesAudited int
	DriftsFound  int
	Repaired     int
	CacheSynced  int
}

// ConsistencyWorker periodically audits zone occupancy against the
// session ledger. The ledger of active sessions is the ground truth;
// when the counter on the zone row drifts (crash between reserve and
// session insert, manual edits), the worker rewrites the counter and
// resyncs the availability cache.
type ConsistencyWorker struct {
	config      *ConsistencyWorkerConfig
	zoneRepo    repository.ZoneRepository
	sessionRepo repository.SessionRepository
	syncer      service.ZoneSyncer
	log         *zap.Logger
}

// NewConsistencyWorker creates a new consistency worker
func NewConsistencyWorker(
	cfg *ConsistencyWorkerConfig,
	zoneRepo repository.ZoneRepository,
	sessionRepo repository.SessionRepository,
	syncer service.ZoneSyncer,
) *ConsistencyWorker {
	if cfg == nil {
		cfg = &ConsistencyWorkerConfig{}
	}
	if cfg.AuditInterval <= 0 {
		cfg.AuditInterval = time.Minute
	}

	return &ConsistencyWorker{
		config:      cfg,
		zoneRepo:    zoneRepo,
		sessionRepo: sessionRepo,
		syncer:      syncer,
		log:         logger.Get(),
	}
}

// Start runs the audit loop until the context is cancelled
func (w *ConsistencyWorker) Start(ctx context.Context) {
	w.log.Info("Consistency worker started",
		zap.Duration("audit_interval", w.config.AuditInterval),
		zap.Bool("repair_drift", w.config.RepairDrift),
	)

	ticker := time.NewTicker(w.config.AuditInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Consistency worker stopped")
			return
		case <-ticker.C:
			report, err := w.RunAudit(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.log.Error(fmt.Sprintf("Audit pass failed: %v", err))
				continue
			}
			if report.DriftsFound > 0 {
				w.log.Warn("Audit pass found occupancy drift",
					zap.Int("zones_audited", report.ZonesAudited),
					zap.Int("drifts_found", report.DriftsFound),
					zap.Int("repaired", report.Repaired),
				)
			}
		}
	}
}

// RunAudit performs a single audit pass over all zones
func (w *ConsistencyWorker) RunAudit(ctx context.Context) (*AuditReport, error) {
	zones, err := w.zoneRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}

	report := &AuditReport{}

	for _, zone := range zones {
		report.ZonesAudited++

		activeCount, err := w.sessionRepo.CountActiveByZone(ctx, zone.ID)
		if err != nil {
			w.log.Error(fmt.Sprintf("Failed to count active sessions for zone %s: %v", zone.ID, err))
			continue
		}

		if activeCount == zone.Occupied {
			continue
		}

		report.DriftsFound++
		metrics.RecordConsistencyViolation(ctx, zone.ID, "occupancy_drift")
		w.log.Warn("Zone occupancy drifted from session ledger",
			zap.String("zone_id", zone.ID),
			zap.Int("occupied", zone.Occupied),
			zap.Int("active_sessions", activeCount),
		)

		if !w.config.RepairDrift {
			continue
		}

		// Overfull ledgers are left alone: more active sessions than
		// capacity means the ledger itself needs operator attention.
		if activeCount > zone.Capacity {
			metrics.RecordConsistencyViolation(ctx, zone.ID, "ledger_overflow")
			w.log.Error("Active sessions exceed zone capacity, skipping repair",
				zap.String("zone_id", zone.ID),
				zap.Int("capacity", zone.Capacity),
				zap.Int("active_sessions", activeCount),
			)
			continue
		}

		// The repair is a compare-and-swap against the counter value
		// this pass observed. A reservation or release that lands
		// between the ledger count and the write moves the counter,
		// the swap misses, and the zone is re-audited next pass.
		if err := w.zoneRepo.SetOccupied(ctx, zone.ID, activeCount, zone.Occupied); err != nil {
			if errors.Is(err, domain.ErrOccupancyChanged) {
				w.log.Info("Zone occupancy moved during audit, deferring repair",
					zap.String("zone_id", zone.ID),
				)
				continue
			}
			w.log.Error(fmt.Sprintf("Failed to repair zone %s: %v", zone.ID, err))
			continue
		}

		report.Repaired++
		metrics.RecordDriftRepair(ctx, zone.ID, int64(activeCount-zone.Occupied))

		if w.syncer != nil {
			if err := w.syncer.SyncZone(ctx, zone.ID); err != nil {
				w.log.Warn(fmt.Sprintf("Failed to resync zone %s to cache: %v", zone.ID, err))
			} else {
				report.CacheSynced++
			}
		}
	}

	return report, nil
}
