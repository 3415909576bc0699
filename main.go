package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LovationAdmin/gst-api/config"
	"github.com/LovationAdmin/gst-api/handlers"
	"github.com/LovationAdmin/gst-api/middleware"
	"github.com/LovationAdmin/gst-api/routes"
	"github.com/LovationAdmin/gst-api/services"
	"github.com/LovationAdmin/gst-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "gst-api",
	Short: "GST Calculator API - HSN rate lookup and GST calculation",
	Long: `gst-api serves the GST calculator: it matches product descriptions
against HSN rate schedules imported from government PDFs and computes
base, CGST/SGST and total amounts.

Run without arguments to start the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !config.LoadEnv() {
			fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
		}
		settings = config.Load()
		if _, err := utils.InitLogger(settings.LogLevel); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = utils.Logger().Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var settings config.Settings

func main() {
	rootCmd.AddCommand(serveCmd, seedCmd, parseCmd, statsCmd, hashKeyCmd, totpSetupCmd, migrateMongoCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// openRateService connects to the database and builds the rate service.
func openRateService() (*sqlx.DB, *services.RateService, error) {
	db, err := config.InitDB(settings.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := config.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	rates := services.NewRateService(services.NewRateRepository(db), services.NewPDFParser(), services.RateServiceConfig{
		MatchThreshold: settings.MatchThreshold,
		DefaultGSTRate: settings.DefaultGSTRate,
		RateBasis:      settings.RateBasis,
		UploadDir:      settings.UploadDir,
	})
	return db, rates, nil
}

func runServer(ctx context.Context) error {
	log := utils.Logger()
	if utils.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, rates, err := openRateService()
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("✅ Database connected successfully")

	ws := handlers.NewWSHandler()
	defer ws.Close()
	rates.SetPublisher(ws)

	seeder := services.NewSeeder(rates, services.NewPDFParser(), settings.SeedDir)
	if _, err := seeder.SeedIfEmpty(ctx); err != nil {
		log.Warn("❌ Database seeding failed", zap.Error(err))
	}

	if settings.WatchSeedDir {
		watcher := services.NewSeedWatcher(seeder)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Warn("⚠️ Seed watcher stopped", zap.Error(err))
			}
		}()
	}

	if !settings.AdminConfigured() {
		log.Warn("⚠️ ADMIN_SECRET / ADMIN_KEY_HASH not set: admin routes are open")
	} else if settings.EphemeralJWTSecret {
		log.Warn("⚠️ JWT_SECRET not set: admin tokens are signed with a per-process key and expire on restart")
	}
	if settings.AdminConfigured() && settings.AdminTOTPSecret != "" {
		log.Info("🔐 Admin 2FA enabled", zap.String("totp_secret", utils.MaskSecret(settings.AdminTOTPSecret)))
	}

	limiter := middleware.NewRateLimiter(settings.RateLimitPerMinute, time.Minute)
	limiter.Start(ctx)

	router := routes.NewRouter(settings, rates, ws, limiter)

	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	utils.LogStartup("GST Calculator API", handlers.Version, settings.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("🛑 Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
