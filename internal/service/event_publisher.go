package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/camiloruiz/campus-parking/internal/domain"
	"github.com/camiloruiz/campus-parking/pkg/kafka"
)

// EventPublisher defines the interface for publishing session events
type EventPublisher interface {
	// PublishSessionOpened publishes a session opened event
	PublishSessionOpened(ctx context.Context, session *domain.ParkingSession) error

	// PublishSessionClosed publishes a session closed event
	PublishSessionClosed(ctx context.Context, session *domain.ParkingSession) error

	// Close closes the event publisher
	Close() error
}

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer    *kafka.Producer
	topic       string
	serviceName string
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "parking-events"
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "campus-parking"
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "campus-parking-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		BatchSize:     100,
		LingerMs:      10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaEventPublisher{
		producer:    producer,
		topic:       topic,
		serviceName: serviceName,
	}, nil
}

// PublishSessionOpened publishes a session opened event
func (p *KafkaEventPublisher) PublishSessionOpened(ctx context.Context, session *domain.ParkingSession) error {
	return p.publishEvent(ctx, domain.SessionEventOpened, session)
}

// PublishSessionClosed publishes a session closed event
func (p *KafkaEventPublisher) PublishSessionClosed(ctx context.Context, session *domain.ParkingSession) error {
	return p.publishEvent(ctx, domain.SessionEventClosed, session)
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

// publishEvent publishes a session event to Kafka
func (p *KafkaEventPublisher) publishEvent(ctx context.Context, eventType domain.SessionEventType, session *domain.ParkingSession) error {
	eventID := uuid.New().String()
	event := domain.NewSessionEvent(eventType, session, eventID)

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := map[string]string{
		"event_type":   string(eventType),
		"event_id":     eventID,
		"source":       p.serviceName,
		"content_type": "application/json",
	}

	msg := &kafka.Message{
		Topic:     p.topic,
		Key:       []byte(event.Key()),
		Value:     value,
		Headers:   headers,
		Timestamp: time.Now(),
	}

	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	return nil
}

// NoOpEventPublisher is a no-op implementation of EventPublisher for testing
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// PublishSessionOpened is a no-op
func (p *NoOpEventPublisher) PublishSessionOpened(ctx context.Context, session *domain.ParkingSession) error {
	return nil
}

// PublishSessionClosed is a no-op
func (p *NoOpEventPublisher) PublishSessionClosed(ctx context.Context, session *domain.ParkingSession) error {
	return nil
}

// Close is a no-op
func (p *NoOpEventPublisher) Close() error {
	return nil
}
