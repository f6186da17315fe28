package di

import (
	"github.com/camiloruiz/campus-parking/internal/handler"
	"github.com/camiloruiz/campus-parking/internal/repository"
	"github.com/camiloruiz/campus-parking/internal/service"
	"github.com/camiloruiz/campus-parking/internal/worker"
	"github.com/camiloruiz/campus-parking/pkg/database"
	"github.com/camiloruiz/campus-parking/pkg/redis"
)

// Container holds all dependencies for the parking service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Repositories
	ZoneRepo     repository.ZoneRepository
	SessionRepo  repository.SessionRepository
	Availability repository.AvailabilityCache

	// Publishers
	EventPublisher service.EventPublisher

	// Services
	AllocationService service.AllocationService
	ZoneSyncer        service.ZoneSyncer

	// Workers
	ConsistencyWorker *worker.ConsistencyWorker

	// Handlers
	HealthHandler  *handler.HealthHandler
	ParkingHandler *handler.ParkingHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB             *database.PostgresDB
	Redis          *redis.Client
	ZoneRepo       repository.ZoneRepository
	SessionRepo    repository.SessionRepository
	Availability   repository.AvailabilityCache
	EventPublisher service.EventPublisher
	ServiceConfig  *service.AllocationServiceConfig
	WorkerConfig   *worker.ConsistencyWorkerConfig
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		ZoneRepo:       cfg.ZoneRepo,
		SessionRepo:    cfg.SessionRepo,
		Availability:   cfg.Availability,
		EventPublisher: cfg.EventPublisher,
	}

	// Initialize services
	c.AllocationService = service.NewAllocationService(
		c.ZoneRepo,
		c.SessionRepo,
		c.Availability,
		c.EventPublisher,
		cfg.ServiceConfig,
	)
	c.ZoneSyncer = service.NewZoneSyncer(c.ZoneRepo, c.Availability)

	// Initialize workers
	c.ConsistencyWorker = worker.NewConsistencyWorker(
		cfg.WorkerConfig,
		c.ZoneRepo,
		c.SessionRepo,
		c.ZoneSyncer,
	)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.ParkingHandler = handler.NewParkingHandler(c.AllocationService)

	return c
}
