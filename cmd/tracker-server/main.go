package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/tracker/internal/config"
	"github.com/ehr/tracker/internal/domain/importer"
	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/domain/tracker"
	"github.com/ehr/tracker/internal/platform/db"
	"github.com/ehr/tracker/internal/platform/middleware"
	"github.com/ehr/tracker/internal/validation"
)

const importPath = "/api/v1/tracker"

func main() {
	rootCmd := &cobra.Command{
		Use:          "tracker-server",
		Short:        "Tracker import API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out})
	} else {
		logger = zerolog.New(out)
	}
	return logger.Level(cfg.Level()).With().Timestamp().Logger()
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the tracker import API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cfg, newLogger(cfg, os.Stdout))
		},
	}
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a tracker bundle from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stderr)
			general, err := cfg.IDScheme()
			if err != nil {
				return err
			}
			params, err := importer.ParseParams(importQuery(cmd), general)
			if err != nil {
				return err
			}
			b, err := readBundle(file)
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.Pool())
			if err != nil {
				return err
			}
			defer pool.Close()

			report, err := newService(pool, cfg, logger).Import(ctx, params, b)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if report.Status == importer.StatusError {
				return fmt.Errorf("import finished with %d validation error(s)", len(report.Validation.Errors))
			}
			return nil
		},
	}
	cmd.Flags().String("file", "", "Path to a tracker bundle JSON file")
	cmd.Flags().String("id-scheme", "", "Identifier scheme for metadata: UID, CODE, NAME or ATTRIBUTE:<uid>")
	cmd.Flags().String("org-unit-id-scheme", "", "Identifier scheme for organisation units")
	cmd.Flags().String("program-id-scheme", "", "Identifier scheme for programs")
	cmd.Flags().String("program-stage-id-scheme", "", "Identifier scheme for program stages")
	cmd.Flags().String("data-element-id-scheme", "", "Identifier scheme for data elements")
	cmd.Flags().String("category-option-combo-id-scheme", "", "Identifier scheme for category option combos")
	cmd.Flags().String("category-option-id-scheme", "", "Identifier scheme for category options")
	cmd.Flags().String("atomic-mode", "", "ALL or OBJECT")
	cmd.Flags().Bool("dry-run", false, "Validate without persisting")
	return cmd
}

// importFlags maps import flags to the query parameters the HTTP endpoint
// accepts.
var importFlags = map[string]string{
	"id-scheme":                       "idScheme",
	"org-unit-id-scheme":              "orgUnitIdScheme",
	"program-id-scheme":               "programIdScheme",
	"program-stage-id-scheme":         "programStageIdScheme",
	"data-element-id-scheme":          "dataElementIdScheme",
	"category-option-combo-id-scheme": "categoryOptionComboIdScheme",
	"category-option-id-scheme":       "categoryOptionIdScheme",
	"atomic-mode":                     "atomicMode",
}

func importQuery(cmd *cobra.Command) url.Values {
	q := url.Values{}
	for flag, param := range importFlags {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			q.Set(param, v)
		}
	}
	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		q.Set("importMode", string(importer.ImportValidate))
	}
	return q
}

func readBundle(path string) (*tracker.Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	var b tracker.Bundle
	if err := json.NewDecoder(f).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", path, err)
	}
	return &b, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(run func(ctx context.Context, m *db.Migrator, schema string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			schema, _ := cmd.Flags().GetString("schema")
			if schema == "" {
				schema = cfg.DBSchema
			}
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pc := cfg.Pool()
			pc.Schema = ""
			pool, err := db.NewPool(ctx, pc)
			if err != nil {
				return err
			}
			defer pool.Close()
			return run(ctx, db.NewMigrator(pool, dir, schema), schema)
		}
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator, schema string) error {
			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := m.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		}),
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator, schema string) error {
			statuses, err := m.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("Migration status for schema: %s\n", schema)
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
		}),
	}

	for _, c := range []*cobra.Command{upCmd, statusCmd} {
		c.Flags().String("schema", "", "Target schema (default DB_SCHEMA)")
		c.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
		cmd.AddCommand(c)
	}
	return cmd
}

func newService(pool *pgxpool.Pool, cfg *config.Config, logger zerolog.Logger) *importer.Service {
	trackerRepo := tracker.NewRepoPG(pool)
	supplier := importer.NewSupplier(metadata.NewRepoPG(pool), trackerRepo, cfg.PreheatFetchConcurrency, logger)
	validator := validation.NewValidator(logger)
	return importer.NewService(supplier, validator, trackerRepo, pool, logger)
}

// newServer wires the middleware and routes. /health/db is only registered
// when health is non-nil.
func newServer(cfg *config.Config, logger zerolog.Logger, svc *importer.Service, health echo.HandlerFunc) (*echo.Echo, error) {
	general, err := cfg.IDScheme()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.BodyLimit("1M", cfg.ImportBodyLimit, importPath))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if health != nil {
		e.GET("/health/db", health)
	}

	api := e.Group("/api/v1")
	importer.NewHandler(svc, general).RegisterRoutes(api)
	return e, nil
}

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Pool())
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	health := db.HealthHandler(pool, cfg.DBSchema, func() *db.PoolStats { return db.GetPoolStats(pool) })
	e, err := newServer(cfg, logger, newService(pool, cfg, logger), health)
	if err != nil {
		return err
	}

	// Graceful shutdown
	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errc:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
