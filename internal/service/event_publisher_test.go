package service

import (
	"context"
	"testing"
	"time"

	"github.com/camiloruiz/campus-parking/internal/domain"
)

func TestNoOpEventPublisher(t *testing.T) {
	publisher := NewNoOpEventPublisher()
	ctx := context.Background()
	session := &domain.ParkingSession{
		ID:        "session-123",
		VehicleID: "ABC123",
		ZoneID:    "zona-a",
		SiteID:    "sede-norte",
		Category:  domain.CategoryCar,
		EnteredAt: time.Now(),
		Status:    domain.SessionStatusActive,
	}

	t.Run("PublishSessionOpened returns nil", func(t *testing.T) {
		if err := publisher.PublishSessionOpened(ctx, session); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	t.Run("PublishSessionClosed returns nil", func(t *testing.T) {
		if err := publisher.PublishSessionClosed(ctx, session); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	t.Run("Close returns nil", func(t *testing.T) {
		if err := publisher.Close(); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})
}

func TestSessionEvent(t *testing.T) {
	now := time.Now()
	session := &domain.ParkingSession{
		ID:        "session-123",
		VehicleID: "ABC123",
		ZoneID:    "zona-a",
		SiteID:    "sede-norte",
		Category:  domain.CategoryCar,
		EnteredAt: now,
		Status:    domain.SessionStatusActive,
	}

	t.Run("NewSessionEvent creates event with correct data", func(t *testing.T) {
		event := domain.NewSessionEvent(domain.SessionEventOpened, session, "event-id-123")

		if event.EventID != "event-id-123" {
			t.Errorf("expected event ID 'event-id-123', got %s", event.EventID)
		}
		if event.EventType != domain.SessionEventOpened {
			t.Errorf("expected event type %s, got %s", domain.SessionEventOpened, event.EventType)
		}
		if event.Session == nil {
			t.Fatal("expected session data to be set")
		}
		if event.Session.ID != session.ID {
			t.Errorf("expected session ID %s, got %s", session.ID, event.Session.ID)
		}
		if event.Timestamp.IsZero() {
			t.Error("expected timestamp to be set")
		}
	})

	t.Run("Event Key returns vehicle ID", func(t *testing.T) {
		event := domain.NewSessionEvent(domain.SessionEventClosed, session, "event-id-456")
		if event.Key() != session.VehicleID {
			t.Errorf("expected key %s, got %s", session.VehicleID, event.Key())
		}
	})

	t.Run("Event types are correct", func(t *testing.T) {
		if string(domain.SessionEventOpened) != "session.opened" {
			t.Errorf("expected 'session.opened', got %s", domain.SessionEventOpened)
		}
		if string(domain.SessionEventClosed) != "session.closed" {
			t.Errorf("expected 'session.closed', got %s", domain.SessionEventClosed)
		}
	})
}
