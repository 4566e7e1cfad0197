package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"osint-market/auth"
	"osint-market/config"
	"osint-market/handlers"
	"osint-market/middleware"
	"osint-market/models"
	"osint-market/oracle"
	"osint-market/ratelimit"
	"osint-market/services"
	"osint-market/solana"
	"osint-market/utils"
	"osint-market/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	configPath := flag.String("config", "config.toml", "path to the configuration file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	cfg, err := config.UnmarshalConfig(*configPath)
	if err != nil {
		if os.IsNotExist(err) || strings.Contains(err.Error(), "no such file") {
			zap.S().Warnf("⚠️  Config file %s not found, using defaults with env overrides", *configPath)
			cfg = config.Default()
		} else {
			zap.S().Fatalf("failed to load config: %v", err)
		}
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = os.Getenv("DATABASE_URL")
	}
	if cfg.Database.DSN == "" {
		zap.S().Fatal("database DSN not set (config database.dsn or DATABASE_URL)")
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		zap.S().Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Bounty{},
		&models.Submission{},
		&models.Resolution{},
		&models.Transaction{},
		&models.Dispute{},
		&models.HunterReputation{},
		&models.Badge{},
	); err != nil {
		zap.S().Fatalf("failed to migrate database: %v", err)
	}

	// Core dependencies.
	authenticator := auth.NewAuthenticator()
	limiter := ratelimit.NewLimiter(cfg.RateLimit)
	alerts := services.NewAlertService(cfg.Alerts.DiscordWebhook, cfg.Alerts.SlackWebhook)
	rail := solana.NewClient(cfg.Solana.RPCURL, cfg.Solana.PayoutSignerURL, cfg.Solana.SignerToken,
		cfg.Solana.RequestTimeout, cfg.Solana.AmountTolerance)
	judge := oracle.NewAnthropicClient(cfg.Resolver.APIKey, cfg.Resolver.Model, cfg.Resolver.BaseURL, cfg.Resolver.Timeout)

	var archiver services.EvidenceArchiver
	if r2, err := utils.NewR2Archiver(cfg.Archive); err != nil {
		zap.S().Fatalf("failed to initialize evidence archiver: %v", err)
	} else if r2 != nil {
		archiver = r2
		zap.S().Info("📦 Evidence archiving enabled")
	}

	// Services and the resolution pipeline.
	escrow := services.NewEscrowService(db, cfg.Escrow, rail)
	reputation := services.NewReputationService(db)
	resolver := services.NewResolverService(db, escrow, judge, reputation, alerts, cfg.Resolver)
	worker := workers.NewResolverWorker(resolver, cfg.Resolver.QueueSize, cfg.Resolver.Delay)
	bounties := services.NewBountyService(db, escrow, authenticator, worker, archiver, alerts)
	disputes := services.NewDisputeService(db, escrow, authenticator, alerts)
	stats := services.NewStatsService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker.Start(ctx)

	scheduler, err := services.NewMaintenanceScheduler(bounties, resolver, worker, limiter)
	if err != nil {
		zap.S().Fatalf("failed to initialize scheduler: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP surface.
	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024,
	})

	allowedOrigins := strings.Join(cfg.Api.AllowedOrigins, ",")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, X-Wallet-Address, X-Admin-Secret, X-Admin-ID",
		ExposeHeaders: "X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After",
		MaxAge:        86400,
	}))

	healthcheck := func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	}
	app.Get("/health", healthcheck)
	app.Get("/api/health", healthcheck)

	api := app.Group("/api", middleware.WalletContext(), middleware.RateLimit(limiter, "api-general"))
	handlers.SetupAuthRoutes(api, handlers.NewAuthHandler(authenticator))
	handlers.SetupBountyRoutes(api, handlers.NewBountyHandler(bounties, disputes), limiter)
	handlers.SetupEscrowRoutes(api, handlers.NewEscrowHandler(escrow), bounties)
	handlers.SetupMarketRoutes(api, handlers.NewMarketHandler(stats, reputation))

	admin := app.Group("/api/admin", middleware.AdminOnly(cfg.Admin.Secret))
	handlers.SetupAdminRoutes(admin, handlers.NewAdminHandler(db, bounties, escrow, resolver, disputes))

	go func() {
		if err := app.Listen(cfg.Api.Port); err != nil {
			zap.S().Errorf("Server error: %v", err)
			stop()
		}
	}()

	zap.S().Infof("✅ Server running on %s", cfg.Api.Port)
	zap.S().Info("✅ Resolver worker running")
	zap.S().Infof("✅ CORS configured for origins: %s", allowedOrigins)

	<-ctx.Done()
	zap.S().Info("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		zap.S().Errorf("Shutdown error: %v", err)
	}
}
