package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/absentia/absentia/internal/auth"
	"github.com/absentia/absentia/internal/config"
	"github.com/absentia/absentia/internal/domain/entities"
	"github.com/absentia/absentia/internal/domain/services"
	"github.com/absentia/absentia/internal/infrastructure/database/postgres"
	"github.com/absentia/absentia/internal/pkg/idgen"
	"github.com/absentia/absentia/internal/pkg/logger"
	"github.com/absentia/absentia/migrations"
	"github.com/absentia/absentia/server/internal/handlers"
	"github.com/absentia/absentia/server/internal/middleware"
	"github.com/absentia/absentia/server/internal/rest"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		forceVersion  int
		configPath    string
		logLevel      string
		logFile       string
		logToStderr   bool
		alsoLogStderr bool
		logFormat     string
	)

	cmd := &cobra.Command{
		Use:   "absentia",
		Short: "Absentia leave management server",
		Long:  "The HTTP API server for the absentia leave management service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return setupServerLogging(logLevel, logFile, logToStderr, alsoLogStderr, logFormat)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(configPath, forceVersion)
		},
	}

	cmd.Flags().IntVar(&forceVersion, "force-migration", -1, "Force migration version (use to fix dirty migration state)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (optional)")

	// Add logging flags
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Log file path (if specified, logs to file instead of stderr)")
	cmd.Flags().BoolVar(&logToStderr, "logtostderr", false, "Log to stderr (default behavior unless --log-file specified)")
	cmd.Flags().BoolVar(&alsoLogStderr, "alsologtostderr", false, "Log to both file and stderr")
	cmd.Flags().StringVar(&logFormat, "log-format", "json", "Log format (text, json)")

	return cmd
}

// setupServerLogging configures the global logger for the server
func setupServerLogging(logLevel, logFile string, logToStderr, alsoLogStderr bool, logFormat string) error {
	// Default to stderr logging unless file is specified
	if logFile == "" {
		logToStderr = true
	}

	cfg := logger.Config{
		Level:         logger.ParseLevel(logLevel),
		LogFile:       logFile,
		LogToStderr:   logToStderr,
		AlsoLogStderr: alsoLogStderr,
		Format:        logFormat,
	}

	globalLogger, err := logger.SetupLogger(cfg)
	if err != nil {
		return err
	}

	slog.SetDefault(globalLogger)

	return nil
}

func runServer(configPath string, forceVersion int) error {
	logger := slog.Default().With("component", "server")
	logger.Info("Starting server initialization")

	// Initialize Snowflake ID generator
	if err := idgen.Initialize(1); err != nil {
		return fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Info("Initializing PostgreSQL database",
		"user", cfg.Database.Postgres.User,
		"host", cfg.Database.Postgres.Host,
		"database", cfg.Database.Postgres.Database)

	connString := cfg.Database.Postgres.ConnectionString()

	// Connect to PostgreSQL with retries (for Kubernetes startup)
	var pgConn *postgres.Connection
	maxRetries := 10
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		var err error
		pgConn, err = postgres.NewConnection(connString)
		if err == nil {
			logger.Info("Successfully connected to PostgreSQL")
			break
		}

		if i < maxRetries-1 {
			logger.Warn("Failed to connect to PostgreSQL",
				"attempt", i+1,
				"max_retries", maxRetries,
				"error", err,
				"retry_delay", retryDelay)
			time.Sleep(retryDelay)
			retryDelay *= 2 // Exponential backoff
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}
		} else {
			return fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", maxRetries, err)
		}
	}
	defer pgConn.Close()

	// Handle force migration if requested
	if forceVersion >= 0 {
		logger.Info("Force setting migration version", "version", forceVersion)
		if err := pgConn.ForceMigrationVersion(migrations.FS, forceVersion); err != nil {
			return fmt.Errorf("failed to force migration version: %w", err)
		}
		logger.Info("Migration version forced, exiting", "version", forceVersion)
		return nil
	}

	// Run migrations
	if err := pgConn.RunMigrations(migrations.FS); err != nil {
		return fmt.Errorf("failed to run PostgreSQL migrations: %w", err)
	}

	// Initialize PostgreSQL repositories
	userRepo := postgres.NewUserRepository(pgConn.DB)
	leaveRepo := postgres.NewLeaveRequestRepository(pgConn.DB)
	absenceRepo := postgres.NewAbsenceRepository(pgConn.DB)
	balanceRepo := postgres.NewBalanceRepository(pgConn.DB)

	// Wire the identity resolution chain: key cache, verifier, identity
	// cache, resolver
	keys := auth.NewKeyCache(auth.KeyCacheOptions{
		URL:          cfg.Auth.ResolvedJWKSURL(),
		TTL:          cfg.Auth.JWKSTTL,
		MaxKeys:      cfg.Auth.JWKSMaxKeys,
		FetchTimeout: cfg.Auth.JWKSFetchTimeout,
	})
	verifier := auth.NewVerifier(cfg.Auth.Issuer, cfg.Auth.Audience, keys)
	identityCache := auth.NewIdentityCache(cfg.Auth.IdentityCacheTTL, cfg.Auth.IdentityCacheSize)
	resolver := auth.NewResolver(verifier, identityCache, userRepo)

	logger.Info("Identity resolution configured",
		"issuer", cfg.Auth.Issuer,
		"jwks_url", cfg.Auth.ResolvedJWKSURL(),
		"cache_ttl", cfg.Auth.IdentityCacheTTL,
		"cache_size", cfg.Auth.IdentityCacheSize)

	// Initialize services
	entitlements := make(map[entities.LeaveType]int, len(cfg.Leave.DefaultEntitlements))
	for leaveType, days := range cfg.Leave.DefaultEntitlements {
		entitlements[entities.LeaveType(leaveType)] = days
	}

	leaveService := services.NewLeaveService(leaveRepo, balanceRepo, userRepo, entitlements)
	absenceService := services.NewAbsenceService(absenceRepo, balanceRepo, entitlements)
	userService := services.NewUserService(userRepo, identityCache)

	// Build the HTTP surface
	handler := handlers.NewHandler(leaveService, absenceService, userService)
	authn := middleware.NewAuthenticator(resolver, cfg.IsProduction())
	router := rest.NewRouter(handler, authn)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("Starting HTTP server", "address", cfg.Server.Address())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve HTTP server: %w", err)
	}

	return nil
}
