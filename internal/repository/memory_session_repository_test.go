package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camiloruiz/campus-parking/internal/domain"
)

func newTestSession(vehicleID, zoneID string) *domain.ParkingSession {
	zone := newTestZone(zoneID, 10)
	return domain.NewParkingSession(vehicleID, zone, domain.CategoryCar, time.Now())
}

func TestMemorySessionRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active session", func(t *testing.T) {
		repo := NewMemorySessionRepository()
		session := newTestSession("ABC123", "z1")

		require.NoError(t, repo.Create(ctx, session))

		got, err := repo.GetActiveByVehicle(ctx, "ABC123")
		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)
		assert.True(t, got.IsActive())
	})

	t.Run("rejects a second active session for the same vehicle", func(t *testing.T) {
		repo := NewMemorySessionRepository()
		require.NoError(t, repo.Create(ctx, newTestSession("ABC123", "z1")))

		err := repo.Create(ctx, newTestSession("ABC123", "z2"))
		assert.ErrorIs(t, err, domain.ErrVehicleAlreadyParked)
	})

	t.Run("same vehicle can park again after finalizing", func(t *testing.T) {
		repo := NewMemorySessionRepository()
		first := newTestSession("ABC123", "z1")
		require.NoError(t, repo.Create(ctx, first))

		require.NoError(t, first.Finalize(first.EnteredAt.Add(time.Hour), 60, 3000))
		require.NoError(t, repo.Finalize(ctx, first))

		assert.NoError(t, repo.Create(ctx, newTestSession("ABC123", "z2")))
	})
}

func TestMemorySessionRepository_Finalize(t *testing.T) {
	ctx := context.Background()

	t.Run("closes the session and frees the vehicle", func(t *testing.T) {
		repo := NewMemorySessionRepository()
		session := newTestSession("ABC123", "z1")
		require.NoError(t, repo.Create(ctx, session))

		require.NoError(t, session.Finalize(session.EnteredAt.Add(90*time.Minute), 90, 4500))
		require.NoError(t, repo.Finalize(ctx, session))

		got, err := repo.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionStatusFinalized, got.Status)
		require.NotNil(t, got.CostTotal)
		assert.Equal(t, int64(4500), *got.CostTotal)

		_, err = repo.GetActiveByVehicle(ctx, "ABC123")
		assert.ErrorIs(t, err, domain.ErrNoActiveSession)
	})

	t.Run("double finalize fails", func(t *testing.T) {
		repo := NewMemorySessionRepository()
		session := newTestSession("ABC123", "z1")
		require.NoError(t, repo.Create(ctx, session))

		require.NoError(t, session.Finalize(session.EnteredAt.Add(time.Hour), 60, 3000))
		require.NoError(t, repo.Finalize(ctx, session))

		err := repo.Finalize(ctx, session)
		assert.ErrorIs(t, err, domain.ErrSessionAlreadyClosed)
	})

	t.Run("unknown session", func(t *testing.T) {
		repo := NewMemorySessionRepository()
		err := repo.Finalize(ctx, newTestSession("ABC123", "z1"))
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}

func TestMemorySessionRepository_ListActiveByZone(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	first := newTestSession("AAA111", "z1")
	first.EnteredAt = time.Now().Add(-2 * time.Hour)
	second := newTestSession("BBB222", "z1")
	second.EnteredAt = time.Now().Add(-time.Hour)
	other := newTestSession("CCC333", "z2")

	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, other))

	sessions, err := repo.ListActiveByZone(ctx, "z1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "AAA111", sessions[0].VehicleID)
	assert.Equal(t, "BBB222", sessions[1].VehicleID)

	count, err := repo.CountActiveByZone(ctx, "z1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
