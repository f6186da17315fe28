package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camiloruiz/campus-parking/internal/domain"
	"github.com/camiloruiz/campus-parking/internal/repository"
)

// MockZoneSyncer is a mock implementation of ZoneSyncer
type MockZoneSyncer struct {
	SyncZoneFunc func(ctx context.Context, zoneID string) error
	SyncAllFunc  func(ctx context.Context) (int, error)
	SyncedZones  []string
}

func (m *MockZoneSyncer) SyncZone(ctx context.Context, zoneID string) error {
	m.SyncedZones = append(m.SyncedZones, zoneID)
	if m.SyncZoneFunc != nil {
		return m.SyncZoneFunc(ctx, zoneID)
	}
	return nil
}

func (m *MockZoneSyncer) SyncAll(ctx context.Context) (int, error) {
	if m.SyncAllFunc != nil {
		return m.SyncAllFunc(ctx)
	}
	return 0, nil
}

// racingSessionRepository opens a session (and claims its slot) right
// after reporting the active count, simulating a vehicle that enters
// between the audit's ledger read and its repair write.
type racingSessionRepository struct {
	repository.SessionRepository
	zoneRepo *repository.MemoryZoneRepository
	zone     *domain.Zone
	once     sync.Once
}

func (r *racingSessionRepository) CountActiveByZone(ctx context.Context, zoneID string) (int, error) {
	count, err := r.SessionRepository.CountActiveByZone(ctx, zoneID)
	r.once.Do(func() {
		if err := r.zoneRepo.Reserve(ctx, zoneID, domain.CategoryCar); err != nil {
			panic(err)
		}
		session := domain.NewParkingSession("VEH-ENTRANTE", r.zone, domain.CategoryCar, time.Now())
		if err := r.SessionRepository.Create(ctx, session); err != nil {
			panic(err)
		}
	})
	return count, err
}

func newAuditZone(id string, capacity, occupied int) *domain.Zone {
	now := time.Now()
	return &domain.Zone{
		ID:                id,
		SiteID:            "sede-norte",
		Name:              "Zona " + id,
		Capacity:          capacity,
		Occupied:          occupied,
		AllowedCategories: []domain.VehicleCategory{domain.CategoryCar},
		Tariffs:           map[domain.VehicleCategory]int64{domain.CategoryCar: 3000},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func openSessions(t *testing.T, repo repository.SessionRepository, zone *domain.Zone, count int) {
	t.Helper()
	entered := time.Now().Add(-time.Hour)
	for i := 0; i < count; i++ {
		session := domain.NewParkingSession(
			"VEH-"+zone.ID+"-"+string(rune('A'+i)),
			zone,
			domain.CategoryCar,
			entered,
		)
		require.NoError(t, repo.Create(context.Background(), session))
	}
}

func TestConsistencyWorker_RunAudit(t *testing.T) {
	ctx := context.Background()

	t.Run("no drift leaves zones untouched", func(t *testing.T) {
		zoneRepo := repository.NewMemoryZoneRepository()
		sessionRepo := repository.NewMemorySessionRepository()

		zone := newAuditZone("zona-a", 10, 3)
		require.NoError(t, zoneRepo.Create(ctx, zone))
		openSessions(t, sessionRepo, zone, 3)

		worker := NewConsistencyWorker(
			&ConsistencyWorkerConfig{RepairDrift: true},
			zoneRepo, sessionRepo, nil,
		)

		report, err := worker.RunAudit(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.ZonesAudited)
		assert.Equal(t, 0, report.DriftsFound)
		assert.Equal(t, 0, report.Repaired)
	})

	t.Run("drift repaired to ledger count", func(t *testing.T) {
		zoneRepo := repository.NewMemoryZoneRepository()
		sessionRepo := repository.NewMemorySessionRepository()

		// Counter says 7 but only 3 sessions are active
		zone := newAuditZone("zona-a", 10, 7)
		require.NoError(t, zoneRepo.Create(ctx, zone))
		openSessions(t, sessionRepo, zone, 3)

		syncer := &MockZoneSyncer{}
		worker := NewConsistencyWorker(
			&ConsistencyWorkerConfig{RepairDrift: true},
			zoneRepo, sessionRepo, syncer,
		)

		report, err := worker.RunAudit(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.DriftsFound)
		assert.Equal(t, 1, report.Repaired)
		assert.Equal(t, []string{"zona-a"}, syncer.SyncedZones)

		repaired, err := zoneRepo.GetByID(ctx, zone.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, repaired.Occupied)
	})

	t.Run("entry racing the repair is never erased", func(t *testing.T) {
		zoneRepo := repository.NewMemoryZoneRepository()
		memSessions := repository.NewMemorySessionRepository()

		// Counter says 3 but only 1 session is active, so the pass will
		// attempt a repair. A vehicle enters between the ledger count
		// and the repair write; the stale write must miss instead of
		// overwriting the freshly claimed slot.
		zone := newAuditZone("zona-a", 10, 3)
		require.NoError(t, zoneRepo.Create(ctx, zone))
		openSessions(t, memSessions, zone, 1)

		sessionRepo := &racingSessionRepository{
			SessionRepository: memSessions,
			zoneRepo:          zoneRepo,
			zone:              zone,
		}

		worker := NewConsistencyWorker(
			&ConsistencyWorkerConfig{RepairDrift: true},
			zoneRepo, sessionRepo, nil,
		)

		report, err := worker.RunAudit(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.DriftsFound)
		assert.Equal(t, 0, report.Repaired)

		// The concurrent entry moved the counter from 3 to 4; the stale
		// repair (to 1) must not have landed on top of it.
		deferred, err := zoneRepo.GetByID(ctx, zone.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, deferred.Occupied)

		// The next pass sees a quiet zone and converges the counter to
		// the ledger.
		report, err = worker.RunAudit(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Repaired)

		converged, err := zoneRepo.GetByID(ctx, zone.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, converged.Occupied)

		active, err := memSessions.CountActiveByZone(ctx, zone.ID)
		require.NoError(t, err)
		assert.Equal(t, active, converged.Occupied)
	})

	t.Run("drift detected but not repaired when disabled", func(t *testing.T) {
		zoneRepo := repository.NewMemoryZoneRepository()
		sessionRepo := repository.NewMemorySessionRepository()

		zone := newAuditZone("zona-a", 10, 5)
		require.NoError(t, zoneRepo.Create(ctx, zone))
		openSessions(t, sessionRepo, zone, 2)

		worker := NewConsistencyWorker(
			&ConsistencyWorkerConfig{RepairDrift: false},
			zoneRepo, sessionRepo, nil,
		)

		report, err := worker.RunAudit(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.DriftsFound)
		assert.Equal(t, 0, report.Repaired)

		unchanged, err := zoneRepo.GetByID(ctx, zone.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, unchanged.Occupied)
	})

	t.Run("ledger overflow is flagged but never repaired", func(t *testing.T) {
		zoneRepo := repository.NewMemoryZoneRepository()
		sessionRepo := repository.NewMemorySessionRepository()

		// More active sessions than capacity: the ledger itself is
		// broken, so the worker must not write a counter above capacity.
		zone := newAuditZone("zona-a", 2, 2)
		require.NoError(t, zoneRepo.Create(ctx, zone))
		openSessions(t, sessionRepo, zone, 4)

		worker := NewConsistencyWorker(
			&ConsistencyWorkerConfig{RepairDrift: true},
			zoneRepo, sessionRepo, nil,
		)

		report, err := worker.RunAudit(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.DriftsFound)
		assert.Equal(t, 0, report.Repaired)

		unchanged, err := zoneRepo.GetByID(ctx, zone.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, unchanged.Occupied)
	})

	t.Run("audits multiple zones independently", func(t *testing.T) {
		zoneRepo := repository.NewMemoryZoneRepository()
		sessionRepo := repository.NewMemorySessionRepository()

		clean := newAuditZone("zona-a", 10, 2)
		drifted := newAuditZone("zona-b", 10, 6)
		require.NoError(t, zoneRepo.Create(ctx, clean))
		require.NoError(t, zoneRepo.Create(ctx, drifted))

		openSessions(t, sessionRepo, clean, 2)
		openSessions(t, sessionRepo, drifted, 1)

		worker := NewConsistencyWorker(
			&ConsistencyWorkerConfig{RepairDrift: true},
			zoneRepo, sessionRepo, nil,
		)

		report, err := worker.RunAudit(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, report.ZonesAudited)
		assert.Equal(t, 1, report.DriftsFound)
		assert.Equal(t, 1, report.Repaired)

		repaired, err := zoneRepo.GetByID(ctx, drifted.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, repaired.Occupied)
	})
}

func TestConsistencyWorker_Start_StopsOnCancel(t *testing.T) {
	zoneRepo := repository.NewMemoryZoneRepository()
	sessionRepo := repository.NewMemorySessionRepository()

	worker := NewConsistencyWorker(
		&ConsistencyWorkerConfig{AuditInterval: 10 * time.Millisecond, RepairDrift: true},
		zoneRepo, sessionRepo, nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
