/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the deposit engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration (config package)
  2. Initialize the zap logger
  3. Open the SQLite or PostgreSQL store
  4. Load stored products, then presets and the YAML catalog if configured
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config     YAML configuration file (optional)
  -port       HTTP server port, overrides server.port
  -db         SQLite database path, overrides database.path
              Use ":memory:" for in-memory database
  -log-level  Overrides logging.level

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (server.shutdownTimeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/deposits.db"

  # Run against PostgreSQL
  DEPOSIT_DATABASE_DRIVER=postgres DEPOSIT_DATABASE_URL=postgres://... ./server

  # Run with a config file and a product catalog
  ./server -config=deposit.yaml

ENVIRONMENT:
  Every configuration key can be set as DEPOSIT_<SECTION>_<KEY>, see
  config/config.go.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - config/config.go: Configuration sources
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/warp/deposit-engine/api"
	"github.com/warp/deposit-engine/config"
	"github.com/warp/deposit-engine/store/postgres"
	"github.com/warp/deposit-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	flag.Parse()

	conf, err := config.LoadConfiguration(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		conf.Server.Port = *port
	}
	if *dbPath != "" {
		conf.Database.Driver = "sqlite"
		conf.Database.Path = *dbPath
	}

	logger, err := config.NewLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Initialize store
	store, closeStore, err := openStore(ctx, conf.Database)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.String("driver", conf.Database.Driver), zap.Error(err))
	}
	defer closeStore()

	// Initialize handler
	handler := api.NewHandler(store, logger)
	if err := loadProducts(ctx, handler, conf.Products); err != nil {
		logger.Fatal("failed to load products", zap.Error(err))
	}

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: conf.Server.AllowedOrigins})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", conf.Server.Port),
		Handler:      router,
		ReadTimeout:  conf.Server.ReadTimeout,
		WriteTimeout: conf.Server.WriteTimeout,
		IdleTimeout:  conf.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", conf.Server.Port),
			zap.String("driver", conf.Database.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("server stopped")
}

func openStore(ctx context.Context, db config.DatabaseConfig) (api.Store, func() error, error) {
	switch db.Driver {
	case "postgres":
		s, err := postgres.New(ctx, db.URL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		s, err := sqlite.New(db.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

// loadProducts fills the product cache from the store. Presets are only
// registered into an empty store; catalog products always replace stored
// ones with the same ID.
func loadProducts(ctx context.Context, handler *api.Handler, conf config.ProductsConfig) error {
	if err := handler.LoadProducts(ctx); err != nil {
		return err
	}

	if conf.LoadPresets && handler.ProductCount() == 0 {
		if err := handler.RegisterPresets(ctx); err != nil {
			return fmt.Errorf("presets: %w", err)
		}
	}

	if conf.CatalogFile == "" {
		return nil
	}
	if !config.Exists(conf.CatalogFile) {
		return fmt.Errorf("catalog file %s not found", conf.CatalogFile)
	}
	data, err := os.ReadFile(conf.CatalogFile)
	if err != nil {
		return err
	}
	products, err := handler.ProductFactory.ParseCatalogYAML(data)
	if err != nil {
		return err
	}
	for _, p := range products {
		if err := handler.RegisterProduct(ctx, p); err != nil {
			return err
		}
	}
	handler.Logger.Info("product catalog loaded",
		zap.String("file", conf.CatalogFile),
		zap.Int("products", len(products)))
	return nil
}
