// Package main provides the entry point for the cohort dataset server.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cohortlab/cohort/cmd/server/config"
	"github.com/cohortlab/cohort/pkg/api"
	"github.com/cohortlab/cohort/pkg/cache"
	"github.com/cohortlab/cohort/pkg/dataset"
	"github.com/cohortlab/cohort/pkg/infrastructure/metrics"
	"github.com/cohortlab/cohort/pkg/loader"
	"github.com/cohortlab/cohort/pkg/models"
	"github.com/cohortlab/cohort/pkg/registry"
	"github.com/cohortlab/cohort/pkg/repositories"
	"github.com/cohortlab/cohort/pkg/repositories/duckdb"
	"github.com/cohortlab/cohort/pkg/services"

	_ "github.com/marcboeker/go-duckdb/v2"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "cohort",
	Short: "Cohort dataset server",
	Long: `A dataset loading, validation, and analysis server for tabular
healthcare data.

Cohort loads CSV sources into typed, immutable datasets and serves filtered
views, summaries, quality checks, and exports over an HTTP JSON API.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cohort dataset server",
	Long: `Start the cohort dataset server with the specified configuration.

Example:
  cohort serve --config ./config.yaml
  cohort serve --address 0.0.0.0:8080 --database ./cohort.db`,
	RunE: runServer,
}

var loadCmd = &cobra.Command{
	Use:   "load <source>",
	Short: "Load a dataset and print its summary",
	Long: `Load a CSV file or URL and print the per-column summary as JSON.

Example:
  cohort load ./admissions.csv --numeric age,cost --date admission_date`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loadCmd)

	// Serve flags
	serveCmd.Flags().StringP("config", "c", "", "config file path")
	serveCmd.Flags().String("address", "0.0.0.0:8080", "server listen address")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	serveCmd.Flags().String("database", "", "DuckDB database path; empty disables persistence")
	serveCmd.Flags().Bool("auth", false, "enable authentication")
	serveCmd.Flags().Bool("metrics", true, "enable Prometheus metrics")
	serveCmd.Flags().String("metrics-address", ":9090", "metrics server address")
	serveCmd.Flags().Bool("cache", true, "enable the view cache")
	serveCmd.Flags().Int64("cache-max-bytes", 256*1024*1024, "view cache size bound in bytes")
	serveCmd.Flags().StringSlice("cors-origins", []string{"http://localhost:3000"}, "allowed CORS origins")
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "graceful shutdown timeout")

	// Load flags
	loadCmd.Flags().StringSlice("required", nil, "columns that must be present")
	loadCmd.Flags().StringSlice("numeric", nil, "columns to parse as numbers")
	loadCmd.Flags().StringSlice("date", nil, "columns to parse as dates")
	loadCmd.Flags().StringSlice("categorical", nil, "columns to treat as categorical")

	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		panic(fmt.Errorf("failed to bind flags: %w", err))
	}
	viper.SetEnvPrefix("COHORT")
	viper.AutomaticEnv()

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Cohort Dataset Server\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", commit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogging(cfg.LogLevel)
	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Msg("Starting cohort dataset server")

	// Metrics
	var metricsCollector metrics.Collector
	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		metricsCollector = metrics.NewPrometheusCollector()
		metricsServer = metrics.NewMetricsServer(cfg.Metrics.Address, cfg.Metrics.Path)
		go func() {
			logger.Info().Str("address", cfg.Metrics.Address).Msg("Starting metrics server")
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	} else {
		metricsCollector = metrics.NewNoOpCollector()
	}

	// Core components
	reg := registry.New()
	ldr := loader.New(loader.Config{
		HTTPTimeout:  cfg.Loader.HTTPTimeout,
		MaxBodyBytes: cfg.Loader.MaxBodyBytes,
	}, logger.With().Str("component", "loader").Logger())

	var views cache.Cache
	if cfg.Cache.Enabled {
		views = cache.NewMemoryCache(cfg.Cache.MaxBytes)
		defer views.Close()
	}

	var store repositories.DatasetRepository
	if cfg.Database.Path != "" {
		db, err := sql.Open("duckdb", cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		store, err = duckdb.NewDatasetRepository(context.Background(),
			db, logger.With().Str("component", "duckdb").Logger())
		if err != nil {
			return fmt.Errorf("failed to initialize dataset repository: %w", err)
		}
		defer store.Close()

		restored, err := restoreDatasets(context.Background(), store, reg)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to restore persisted datasets")
		} else if restored > 0 {
			logger.Info().Int("datasets", restored).Msg("Restored persisted datasets")
		}
	}

	svc := services.NewDatasetService(
		ldr, reg, views, store,
		&serviceLoggerAdapter{logger: logger.With().Str("component", "dataset_service").Logger()},
		&serviceMetricsAdapter{collector: metricsCollector},
	)

	router := buildRouter(cfg, svc, metricsCollector, logger)

	server := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("address", cfg.Address).
			Bool("auth", cfg.Auth.Enabled).
			Bool("persistence", store != nil).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-shutdownCh:
		logger.Info().Msg("Received shutdown signal")
	case err := <-serverErrCh:
		return err
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("Starting graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Error during server shutdown")
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}

	logger.Info().Msg("Server shutdown complete")
	return nil
}

// buildRouter assembles the HTTP router with the middleware chain.
func buildRouter(cfg *config.Config, svc services.DatasetService, collector metrics.Collector, logger zerolog.Logger) *chi.Mux {
	router := chi.NewRouter()

	router.Use(api.Recovery(logger.With().Str("component", "recovery").Logger()))
	router.Use(api.RequestLogging(logger.With().Str("component", "http").Logger()))
	router.Use(api.Metrics(collector))

	if cfg.CORS.Enabled {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Use(api.Auth(api.AuthConfig{
		Enabled: cfg.Auth.Enabled,
		Type:    cfg.Auth.Type,
		Tokens:  cfg.Auth.Tokens,
		JWT: api.JWTConfig{
			Secret:   cfg.Auth.JWT.Secret,
			Issuer:   cfg.Auth.JWT.Issuer,
			Audience: cfg.Auth.JWT.Audience,
		},
	}, logger.With().Str("component", "auth").Logger()))

	api.NewHandler(svc, logger).RegisterRoutes(router)
	return router
}

// restoreDatasets loads persisted datasets back into the registry on boot.
func restoreDatasets(ctx context.Context, store repositories.DatasetRepository, reg *registry.Registry) (int, error) {
	ids, err := store.List(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, id := range ids {
		ds, err := store.Load(ctx, id)
		if err != nil {
			return restored, err
		}
		reg.Put(ds)
		restored++
	}
	return restored, nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	logger := setupLogging("warn")

	schema := loader.Schema{Columns: map[string]models.ColumnType{}}
	schema.Required, _ = cmd.Flags().GetStringSlice("required")

	for flag, typ := range map[string]models.ColumnType{
		"numeric":     models.TypeNumeric,
		"date":        models.TypeDate,
		"categorical": models.TypeCategorical,
	} {
		names, _ := cmd.Flags().GetStringSlice(flag)
		for _, name := range names {
			schema.Columns[name] = typ
		}
	}

	ldr := loader.New(loader.Config{}, logger)
	ds, err := ldr.Load(cmd.Context(), args[0], schema)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(dataset.Summary(ds), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func loadConfig() (*config.Config, error) {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &config.Config{
		Address:         viper.GetString("address"),
		LogLevel:        viper.GetString("log-level"),
		ShutdownTimeout: viper.GetDuration("shutdown-timeout"),
		CORS: config.CORSConfig{
			Enabled:        true,
			AllowedOrigins: viper.GetStringSlice("cors-origins"),
		},
		Auth: config.AuthConfig{
			Enabled: viper.GetBool("auth"),
			Type:    viper.GetString("auth.type"),
			Tokens:  viper.GetStringMapString("auth.tokens"),
			JWT: config.JWTConfig{
				Secret:   viper.GetString("auth.jwt.secret"),
				Issuer:   viper.GetString("auth.jwt.issuer"),
				Audience: viper.GetString("auth.jwt.audience"),
			},
		},
		Metrics: config.MetricsConfig{
			Enabled: viper.GetBool("metrics"),
			Address: viper.GetString("metrics-address"),
		},
		Database: config.DatabaseConfig{
			Path: viper.GetString("database"),
		},
		Cache: config.CacheConfig{
			Enabled:  viper.GetBool("cache"),
			MaxBytes: viper.GetInt64("cache-max-bytes"),
		},
	}

	if cfg.Auth.Enabled && cfg.Auth.Type == "" {
		cfg.Auth.Type = "bearer"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogging(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
		zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
			short := file
			for i := len(file) - 1; i > 0; i-- {
				if file[i] == '/' {
					short = file[i+1:]
					break
				}
			}
			return fmt.Sprintf("%s:%d", short, line)
		}
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).
		Level(logLevel).
		With().
		Timestamp().
		Str("service", "cohort")

	if logLevel == zerolog.DebugLevel {
		logger = logger.Caller()
	}

	return logger.Logger()
}
