package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fhirsync/fhirsync/internal/config"
	"github.com/fhirsync/fhirsync/internal/domain/terminology"
	"github.com/fhirsync/fhirsync/internal/domain/valueset"
	"github.com/fhirsync/fhirsync/internal/platform/db"
	"github.com/fhirsync/fhirsync/internal/platform/fhir"
	"github.com/fhirsync/fhirsync/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fhirsync",
		Short: "FHIR terminology sync server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(expandCmd())
	rootCmd.AddCommand(syncCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the terminology sync API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func expandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expand <value-set-url>",
		Short: "Expand a value set against its terminology server and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			client, err := newTerminologyClient(cfg, logger)
			if err != nil {
				return err
			}

			vs, err := client.ExpandValueSet(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(vs)
		},
	}
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [value-set-urls...]",
		Short: "Expand value sets and insert their codes into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgDir, _ := cmd.Flags().GetString("package-dir")
			if len(args) == 0 && pkgDir == "" {
				return fmt.Errorf("provide value set URLs or --package-dir")
			}

			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			client, err := newTerminologyClient(cfg, logger)
			if err != nil {
				return err
			}

			manager := fhir.NewPackageManager()
			var pkg *fhir.Package
			if pkgDir != "" {
				pkg, err = fhir.LoadPackageDir(pkgDir)
				if err != nil {
					return fmt.Errorf("load package dir: %w", err)
				}
				manager.Add(pkg)
			}

			repo := valueset.NewCodesRepoPG(pool, valueset.DefaultCodesTable)
			svc := valueset.NewService(repo, client, valueset.NewResolver(manager), logger)

			var run *valueset.SyncRun
			if pkg != nil {
				run, err = svc.SyncPackage(ctx, pkg)
				if err != nil {
					return err
				}
			} else {
				run = svc.SyncURLs(ctx, args)
			}

			for _, res := range run.Results {
				if res.Error != "" {
					fmt.Printf("FAIL  %s: %s\n", res.URL, res.Error)
					continue
				}
				fmt.Printf("OK    %s (version %q): %d new code(s)\n", res.URL, res.Version, res.Inserted)
			}
			if run.Failed > 0 {
				return fmt.Errorf("%d of %d value set(s) failed", run.Failed, len(run.Results))
			}
			return nil
		},
	}
	cmd.Flags().String("package-dir", "", "Sync every value set reachable from a FHIR package directory")
	return cmd
}

func runServer() error {
	logger := newLogger()

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Terminology client
	client, err := newTerminologyClient(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build terminology client")
	}

	// Local package context, if configured
	manager := fhir.NewPackageManager()
	if cfg.PackageDir != "" {
		pkg, err := fhir.LoadPackageDir(cfg.PackageDir)
		if err != nil {
			logger.Fatal().Err(err).Str("dir", cfg.PackageDir).Msg("failed to load package dir")
		}
		manager.Add(pkg)
		logger.Info().
			Str("dir", cfg.PackageDir).
			Int("value_sets", len(pkg.ValueSets)).
			Int("structure_definitions", len(pkg.StructureDefinitions)).
			Msg("loaded FHIR package")
	}

	repo := valueset.NewCodesRepoPG(pool, valueset.DefaultCodesTable)
	svc := valueset.NewService(repo, client, valueset.NewResolver(manager), logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// API groups
	apiV1 := e.Group("/api/v1")
	fhirGroup := e.Group("/fhir")

	terminology.NewHandler(client).RegisterRoutes(fhirGroup)
	valueset.NewHandler(svc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func newTerminologyClient(cfg *config.Config, logger zerolog.Logger) (*terminology.Client, error) {
	creds, err := cfg.TxCredentials()
	if err != nil {
		return nil, err
	}
	var auth map[string]terminology.BasicAuth
	if len(creds) > 0 {
		auth = make(map[string]terminology.BasicAuth, len(creds))
		for server, cred := range creds {
			auth[server] = terminology.BasicAuth{Username: cred.Username, Password: cred.Password}
		}
	}
	return terminology.NewClient(auth, terminology.NewSessionFactory(cfg.HTTPRetryMax), logger)
}
