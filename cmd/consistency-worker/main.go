package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camiloruiz/campus-parking/internal/metrics"
	"github.com/camiloruiz/campus-parking/internal/repository"
	"github.com/camiloruiz/campus-parking/internal/service"
	"github.com/camiloruiz/campus-parking/internal/worker"
	"github.com/camiloruiz/campus-parking/pkg/config"
	"github.com/camiloruiz/campus-parking/pkg/database"
	"github.com/camiloruiz/campus-parking/pkg/logger"
	pkgredis "github.com/camiloruiz/campus-parking/pkg/redis"
)

// Standalone occupancy audit worker. Runs the same audit loop the API
// process embeds, for deployments that want the repair path isolated
// from request serving.
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       "info",
		ServiceName: "consistency-worker",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Consistency Worker...")

	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Failed to register metrics: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	dbCfg := &database.PostgresConfig{
		Host:          cfg.Database.Host,
		Port:          cfg.Database.Port,
		User:          cfg.Database.User,
		Password:      cfg.Database.Password,
		Database:      cfg.Database.DBName,
		SSLMode:       cfg.Database.SSLMode,
		MaxConns:      cfg.Database.MaxConns,
		MinConns:      cfg.Database.MinConns,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	// Initialize Redis connection
	redisCfg := &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	}
	redis, err := pkgredis.NewClient(ctx, redisCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	defer redis.Close()
	appLog.Info("Redis connected")

	// Wire repositories and the cache syncer
	zoneRepo := repository.NewPostgresZoneRepository(db.Pool())
	sessionRepo := repository.NewPostgresSessionRepository(db.Pool())
	availability := repository.NewRedisAvailabilityRepository(redis)
	syncer := service.NewZoneSyncer(zoneRepo, availability)

	workerCfg := &worker.ConsistencyWorkerConfig{
		AuditInterval: cfg.Parking.AuditInterval,
		RepairDrift:   true,
	}
	consistencyWorker := worker.NewConsistencyWorker(workerCfg, zoneRepo, sessionRepo, syncer)

	// Rebuild the availability cache on startup
	if synced, err := syncer.SyncAll(ctx); err != nil {
		appLog.Error(fmt.Sprintf("Failed to rebuild availability cache: %v", err))
		// Continue anyway, the audit loop will catch up
	} else {
		appLog.Info(fmt.Sprintf("Availability cache rebuilt: %d zones", synced))
	}

	// Start worker
	go consistencyWorker.Start(ctx)
	appLog.Info("Consistency worker started")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down consistency worker...")
	cancel()

	// Give the audit loop time to finish its pass
	time.Sleep(2 * time.Second)
	appLog.Info("Consistency worker stopped")
}
