package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"campaign-manager-system/handlers"
	"campaign-manager-system/middleware"
	"campaign-manager-system/models"
	"campaign-manager-system/services"
	"campaign-manager-system/utils"
	"campaign-manager-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024, // 20MB — portraits only, nothing bigger comes through here
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Session-Token, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Campaign{},
		&models.CampaignMember{},
		&models.CampaignInvite{},
		&models.Character{},
		&models.Scene{},
		&models.NPC{},
		&models.Faction{},
		&models.Clock{},
		&models.TurnOrder{},
		&models.TurnOrderEntry{},
		&models.TurnTimerJob{},
		&models.Notification{},
		&models.NotificationPreference{},
		&models.UserProfile{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.EnsureUploadDir(); err != nil {
		log.Fatal("failed to ensure upload dir:", err)
	}

	// --- CONFIGURE Redis live channel ---
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	live, err := services.NewLiveBroker(db, redisAddr, os.Getenv("REDIS_PASSWORD"), 0)
	if err != nil {
		log.Fatal("failed to connect to redis:", err)
	}
	// --- END CONFIG ---

	mailClient, err := services.NewMailClientFromEnv()
	if err != nil {
		log.Fatal("failed to configure SMTP client:", err)
	}
	if mailClient == nil {
		log.Println("⚠️  SMTP_HOST not set — email notifications disabled")
	}
	pushClient := services.NewPushClientFromEnv()
	if pushClient == nil {
		log.Println("⚠️  PUSH_GATEWAY_URL not set — push notifications disabled")
	}

	notificationService := services.NewNotificationService(db, live, mailClient, pushClient)
	turnOrderService := services.NewTurnOrderService(db, live, notificationService)
	sceneService := services.NewSceneService(db, live, notificationService, turnOrderService)
	campaignService := services.NewCampaignService(db, notificationService)
	characterService := services.NewCharacterService(db)

	// --- CONFIGURE Account Service Details for profile mirroring ---
	accountServiceURL := os.Getenv("ACCOUNT_SERVICE_URL")
	if accountServiceURL == "" {
		log.Fatal("ACCOUNT_SERVICE_URL environment variable not set")
	}
	campaignServiceToken := os.Getenv("CAMPAIGN_SERVICE_TOKEN")
	if campaignServiceToken == "" {
		log.Fatal("CAMPAIGN_SERVICE_TOKEN environment variable not set")
	}
	// --- END CONFIG ---

	authClient := services.NewAuthServiceClient(accountServiceURL, campaignServiceToken)
	profileSync := workers.NewProfileSyncWorker(db, accountServiceURL, "/api/v1/public/profiles", campaignServiceToken, 60*time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go workers.PollTurnTimers(ctx, db, turnOrderService, 15*time.Second)
	go profileSync.Start(ctx)

	notificationService.StartCleanupScheduler()

	// ✅ Setup routes — enforced Gateway auth, user context from headers
	handlers.SetupCampaignRoutes(app, campaignService, characterService)
	handlers.SetupSceneRoutes(app, sceneService, turnOrderService)
	handlers.SetupNotificationRoutes(app, notificationService, live, authClient)

	app.Static("/uploads", "./uploads")

	go func() {
		if err := app.Listen(":5200"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5200")
	log.Println("✅ Turn timer sweep running (every 15s)")
	log.Println("✅ Profile sync worker running (every 60s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
