package domain

import "time"

// SessionEventType identifies the kind of session lifecycle event
type SessionEventType string

const (
	SessionEventOpened SessionEventType = "session.opened"
	SessionEventClosed SessionEventType = "session.closed"
)

// SessionEvent is the message published when a session opens or closes
type SessionEvent struct {
	EventID   string           `json:"event_id"`
	EventType SessionEventType `json:"event_type"`
	Session   *ParkingSession  `json:"session"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewSessionEvent creates an event envelope for a session
func NewSessionEvent(eventType SessionEventType, session *ParkingSession, eventID string) *SessionEvent {
	return &SessionEvent{
		EventID:   eventID,
		EventType: eventType,
		Session:   session,
		Timestamp: time.Now(),
	}
}

// Key returns the partition key for the event. Keyed by vehicle so all
// events for one vehicle land on the same partition in order.
func (e *SessionEvent) Key() string {
	return e.Session.VehicleID
}
