package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loankeeper/core/config"
	"loankeeper/core/database"
	"loankeeper/core/logger"
	"loankeeper/core/middleware/auth"
	"loankeeper/core/middleware/rayid"
	"loankeeper/core/session"
	"loankeeper/core/storage"

	"loankeeper/feature/history"
	"loankeeper/feature/inventory"
	"loankeeper/feature/loan"
	"loankeeper/feature/reservation"
	"loankeeper/feature/user"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// @title Loan Keeper API
// @version 1.0
// @description API for managing a lendable catalog: items, loans, reservations.
// @host localhost:8080
// @BasePath /

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the loan keeper server",
	Long:  `Starts the HTTP server, the reservation expiry schedule, and all features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logg.Fatal("Failed to connect to database", zap.Error(err))
		}
		if err := database.Migrate(db); err != nil {
			logg.Fatal("Failed to run migrations", zap.Error(err))
		}

		// 4. Connect to Redis (sessions + reset tokens)
		rdb, err := session.Connect(cfg.Session)
		if err != nil {
			logg.Fatal("Failed to connect to redis", zap.Error(err))
		}
		sessions := session.NewStore(rdb, cfg.Session)

		// 5. Initialize Storage (item photos)
		store, err := storage.NewClient(cfg.Storage)
		if err != nil {
			logg.Fatal("Failed to create storage client", zap.Error(err))
		}
		if err := storage.EnsureBucket(context.Background(), store, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
			logg.Fatal("Failed to ensure storage bucket", zap.Error(err))
		}

		// 6. Build Services
		recorder := history.NewRecorder()
		reconciler := inventory.NewReconciler(recorder, logg, nil)

		inventoryService := inventory.NewService(db, recorder, reconciler, store, cfg.Storage.Bucket, logg)
		loanService := loan.NewService(db, recorder, reconciler, logg)
		reservationService := reservation.NewService(db, recorder, reconciler, logg)
		historyService := history.NewService(db, logg)

		// Reset tokens are surfaced to the log for the operator to hand
		// over; the service itself never delivers anything.
		notifier := func(ctx context.Context, userID, username, token string) {
			logg.Info("Password reset token issued",
				zap.String("username", username),
				zap.String("token", token))
		}
		userService := user.NewService(db, sessions, recorder, notifier, logg)

		// 7. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		// Middleware Registration
		app.Use(rayid.New())
		app.Use(recover.New())
		app.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.CORSOrigins,
			AllowCredentials: true,
		}))

		// Request logging with the ray ID attached.
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// Swagger Documentation (Public)
		app.Get("/swagger/*", swagger.HandlerDefault)

		// Auth routes stay outside the session middleware.
		userHandler := user.NewHandler(userService, cfg.Server.CookieSecure)
		userHandler.RegisterAuthRoutes(app)

		// Everything else requires an admin session.
		app.Use(auth.New(auth.Config{
			Sessions:    sessions,
			LookupAdmin: userService.IsAdmin,
		}))

		inventory.NewHandler(inventoryService).RegisterRoutes(app)
		loan.NewHandler(loanService).RegisterRoutes(app)
		reservation.NewHandler(reservationService).RegisterRoutes(app)
		history.NewHandler(historyService).RegisterRoutes(app)
		userHandler.RegisterRoutes(app)

		// 8. Reservation Expiry Schedule
		scheduler := cron.New()
		_, err = scheduler.AddFunc(cfg.Server.SweepSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if _, err := reservationService.SweepExpired(ctx, time.Now()); err != nil {
				logg.Error("Scheduled reservation sweep failed", zap.Error(err))
			}
		})
		if err != nil {
			logg.Fatal("Invalid sweep schedule",
				zap.String("schedule", cfg.Server.SweepSchedule), zap.Error(err))
		}
		scheduler.Start()

		// 9. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(":" + cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 10. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		<-scheduler.Stop().Done()
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
