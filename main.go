package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"recycle-pickup-system/handlers"
	"recycle-pickup-system/middleware"
	"recycle-pickup-system/models"
	"recycle-pickup-system/services"
	"recycle-pickup-system/utils"
	"recycle-pickup-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// requiredEnv fails startup loudly when a variable is missing — no silent
// fallbacks for anything the service cannot safely guess.
func requiredEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("%s environment variable not set", key)
	}
	return value
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024, // photos only, 20MB is plenty
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := requiredEnv("DATABASE_URL")

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.PickupRequest{},
		&models.Account{},
		&models.ActivityRecord{},
		&models.NotificationEvent{},
		&models.ParticipantMirror{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	registry := services.NewSessionRegistry()
	notifier := services.NewNotificationService(db, registry)
	accounts := services.NewAccountService(db)
	engine := services.NewAssignmentService(db, accounts, notifier)

	serviceToken := requiredEnv("PICKUP_SERVICE_TOKEN")
	authServiceURL := requiredEnv("AUTH_SERVICE_URL")
	profileServiceURL := requiredEnv("PROFILE_SERVICE_URL")

	authClient := services.NewAuthServiceClient(authServiceURL, serviceToken)
	syncWorker := workers.NewParticipantSyncWorker(db, profileServiceURL, "/api/v1/public/profiles", serviceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncWorker.Start(ctx)

	// Store-observation fallback: sweeps undelivered notification rows into
	// live channels. The synchronous publish path inside the engine is primary.
	notifier.StartDeliverySweep()

	handlers.SetupRequestRoutes(app, engine, accounts)
	handlers.SetupNotificationRoutes(app, notifier, authClient)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Participant Sync Worker running")
	log.Println("✅ Notification delivery sweep running (every 5s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
