package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pfm-ledger/internal/config"
	"github.com/pfm-ledger/internal/data/mongo"
	"github.com/pfm-ledger/internal/data/postgres"
	"github.com/pfm-ledger/internal/import_worker/consumer"
	"github.com/pfm-ledger/internal/import_worker/service"
	"github.com/pfm-ledger/internal/importer"
	"github.com/pfm-ledger/internal/logger"
	"github.com/pfm-ledger/internal/platform/messaging/consumers"
	"github.com/pfm-ledger/internal/platform/messaging/producers"
	"github.com/pfm-ledger/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("import_worker")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Import Worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	transactionRepo := postgres.NewTransactionRepository(log, postgresDB)
	masterDataRepo := postgres.NewMasterDataRepository(log, postgresDB)
	issueRepo := postgres.NewIssueRepository(log, postgresDB)
	batchRepo := postgres.NewBatchRepository(log, postgresDB)
	archiveRepo := mongo.NewArchiveRepository(log, mongoDB.Database())

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	// Load the keyword rule table; an empty path falls back to the built-in rules
	rules, err := importer.LoadRuleTable(cfg.Import.CategoryRulesPath)
	if err != nil {
		log.Error("Failed to load category rules", "path", cfg.Import.CategoryRulesPath, "error", err)
		os.Exit(1)
	}

	// Initialize the import pipeline
	pipeline := importer.NewPipeline(
		postgresDB.Pool(),
		transactionRepo,
		masterDataRepo,
		issueRepo,
		batchRepo,
		archiveRepo,
		rules,
		importer.NewFingerprinter(cfg.Import.FuzzyPrefixLength),
		cfg.Import.DefaultCurrency,
		log,
	)

	// Wrap the pipeline in a bounded worker pool
	importService, err := service.NewWorkerPoolImportService(
		pipeline,
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		log,
	)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// Initialize import event handler
	importEventHandler := consumer.NewImportEventHandler(
		log,
		importService,
		dlqProducer,
	)

	// Create error channel for service errors
	errChan := make(chan error, 1)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.ImportTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.ImportTopic, cfg.Kafka.ConsumerGroup, importEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
	}

	// Cancel the application context
	cancelAppCtx()

	// Let running batches drain before tearing down connections
	log.Info("Shutting down worker pool", "running_batches", importService.Running())
	importService.Shutdown()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close DLQ Kafka producer
	if dlqProducer != nil { // dlqProducer can be nil if DLQTopic was not configured
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	log.Info("Import worker shutdown completed")
}
