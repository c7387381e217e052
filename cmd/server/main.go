/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the assessment engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and optional YAML config
  2. Initialize SQLite store
  3. Wire lifecycle, response service, grading engine and queue
  4. Start the queue consumer
  5. Start HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: assessments.db)
           Use ":memory:" for an in-memory database
  -config  Optional YAML config file; flags override it
  -demo    Enable the demo-data endpoint and seed on startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the expiry scheduler and the queue consumer after the
     in-flight job finishes
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/assessments.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run with a config file
  ./server -config=./config.yaml

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tenet/assessment-engine/api"
	"github.com/tenet/assessment-engine/assessment"
	"github.com/tenet/assessment-engine/queue"
	"github.com/tenet/assessment-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	configPath := flag.String("config", "", "YAML config file path")
	demo := flag.Bool("demo", false, "enable demo-data seeding")
	flag.Parse()

	cfg, err := api.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire services
	q := queue.New(cfg.QueueSize)
	lifecycle := assessment.NewLifecycle(store, store, store, assessment.NopPublisher{}, q)
	responses := assessment.NewResponseService(store, store)
	engine := assessment.NewGradingEngine(store)

	// Start the grading consumer
	consumer := queue.NewConsumer(q, assessment.NewWorker(engine))
	consumer.Start()

	// Expire cycles that ran past their audit period
	scheduler := api.NewExpiryScheduler(store)
	scheduler.Start()

	// Create router
	handler := api.NewHandler(store, lifecycle, responses, engine)
	if *demo {
		handler.Seeder = store
		if err := api.LoadDemoData(context.Background(), store); err != nil {
			log.Fatalf("Failed to seed demo data: %v", err)
		}
		log.Println("Demo data seeded")
	}
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	scheduler.Stop()
	consumer.Stop()
	q.Close()

	log.Println("Server stopped")
}
