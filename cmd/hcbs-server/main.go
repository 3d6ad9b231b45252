package main

import (
	"context"
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

	"github.com/hcbs/hcbs/internal/config"
	"github.com/hcbs/hcbs/internal/domain/authorization"
	"github.com/hcbs/hcbs/internal/domain/claim"
	"github.com/hcbs/hcbs/internal/domain/client"
	"github.com/hcbs/hcbs/internal/domain/payer"
	"github.com/hcbs/hcbs/internal/domain/servicerecord"
	"github.com/hcbs/hcbs/internal/domain/submission"
	"github.com/hcbs/hcbs/internal/platform/auth"
	"github.com/hcbs/hcbs/internal/platform/clearinghouse"
	"github.com/hcbs/hcbs/internal/platform/db"
	"github.com/hcbs/hcbs/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hcbs-server",
		Short: "HCBS authorization and billing API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the billing API server",
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

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

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
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	// API group with rate limiting
	api := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		h := db.CheckHealth(c.Request().Context(), pool)
		code := http.StatusOK
		if !h.OK {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, h)
	})

	txRunner := db.PoolTxRunner{Pool: pool}

	// Clearinghouse integration
	chClient := clearinghouse.NewHTTPClient(clearinghouse.Config{
		BaseURL: cfg.ClearinghouseURL,
		APIKey:  cfg.ClearinghouseKey,
		Timeout: cfg.SubmissionTimeout,
		Retries: cfg.SubmissionRetries,
	}, logger)

	// -- Register domain handlers --

	// Clients
	clientRepo := client.NewRepoPG(pool)
	clientSvc := client.NewService(clientRepo)
	client.NewHandler(clientSvc).RegisterRoutes(api)

	// Payers
	payerRepo := payer.NewRepoPG(pool)
	payerSvc := payer.NewService(payerRepo)
	payer.NewHandler(payerSvc).RegisterRoutes(api)

	// Service records
	recordRepo := servicerecord.NewRepoPG(pool)
	recordSvc := servicerecord.NewService(recordRepo)
	servicerecord.NewHandler(recordSvc).RegisterRoutes(api)

	// Authorizations
	authRepo := authorization.NewRepoPG(pool)
	authSvc := authorization.NewService(authRepo, recordRepo, txRunner, logger)
	authorization.NewHandler(authSvc).RegisterRoutes(api)

	// Claims
	claimRepo := claim.NewRepoPG(pool)
	claimSvc := claim.NewService(claimRepo, recordRepo, payerRepo, txRunner, logger)
	claim.NewHandler(claimSvc).RegisterRoutes(api)

	// Submissions
	attemptRepo := submission.NewRepoPG(pool)
	submissionSvc := submission.NewService(claimSvc, payerRepo, attemptRepo, chClient, submission.NewRegistry(), logger)
	submission.NewHandler(submissionSvc).RegisterRoutes(api)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
