package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"lifedigital/internal/config"
	"lifedigital/internal/handlers"
	"lifedigital/internal/middleware"
	"lifedigital/internal/pdf"
	"lifedigital/internal/realtime"
	"lifedigital/internal/repositories"
	"lifedigital/internal/routes"
	"lifedigital/internal/services"
	"lifedigital/internal/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "lifedigital/docs"
)

func Run() {
	cfg := config.LoadConfig()
	middleware.SetJWTKey(cfg.Auth.JWTSecret)

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("Erro ao conectar no banco: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Erro ao fechar o banco: %v", err)
		}
	}()

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	challengeRepo := repositories.NewChallengeRepository(db)
	uploadRepo := repositories.NewUploadRepository(db)
	marginRepo := repositories.NewMarginRepository(db)
	simRepo := repositories.NewSimulationRepository(db)
	eventRepo := repositories.NewEventRepository(db)
	webhookRepo := repositories.NewWebhookRepository(db)

	// === Gateways externos ===
	whatsappClient := utils.NewWhatsAppClient(
		cfg.WhatsApp.APIKey, cfg.WhatsApp.Sender, cfg.WhatsApp.BaseURL, cfg.WhatsApp.DryRun,
	)
	storageClient := utils.NewStorageClient(
		cfg.Storage.BaseURL, cfg.Storage.Bucket, cfg.Storage.SigningKey, cfg.Storage.DryRun,
	)
	scannerClient := utils.NewScannerClient(cfg.Scanner.BaseURL, "/webhooks/scan", cfg.Scanner.DryRun)
	scoringClient := utils.NewScoringClient(cfg.Scoring.BaseURL, cfg.Scoring.DryRun)
	marginClient := utils.NewMarginSourceClient(cfg.Margin.BaseURL, cfg.Margin.APIKey, cfg.Margin.DryRun)

	telegramService := services.NewTelegramService(cfg.Telegram.BotToken, cfg.Telegram.ChatID)

	// === Services ===
	authService := services.NewAuthService(cfg.Google.ClientID, cfg.Google.DryRun)
	userService := services.NewUserService(userRepo)
	verifyService := services.NewVerificationService(challengeRepo, userRepo, whatsappClient)

	uploadService := services.NewUploadService(uploadRepo, storageClient, scannerClient, telegramService)
	uploadService.MaxScanAttempts = cfg.Scanner.MaxAttempts

	marginService := services.NewMarginService(marginRepo, userRepo, marginClient)
	marginService.Staleness = time.Duration(cfg.Margin.StalenessHours) * time.Hour

	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
	)

	// PDF do termo de aceite (TTF com acentuação)
	termGen := pdf.NewTermGenerator(cfg.Files.RootDir, "assets/fonts/DejaVuSans.ttf")

	simService := services.NewSimulationService(
		simRepo, marginRepo, uploadRepo, userRepo,
		marginService, scoringClient, emailService, termGen,
	)

	hub := realtime.NewEventHub()
	eventService := services.NewEventService(eventRepo, webhookRepo, hub, cfg.Webhooks.Targets)
	eventService.Subscribe(simService.OnWorkflowEvent)

	webhookService := services.NewWebhookService(webhookRepo, eventRepo, telegramService, cfg.Webhooks.Secret)

	// === Workers de fundo ===
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go eventService.Start(ctx, time.Second)
	go webhookService.Run(ctx, 5*time.Second)
	go uploadService.RunScanRetries(ctx, 15*time.Second)
	go simService.RunAcceptanceSweeper(ctx, time.Minute)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := verifyService.ExpireStale(); err != nil {
					log.Printf("[verify][sweep] falhou: %v", err)
				}
			}
		}
	}()

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(userService, authService)
	profileHandler := handlers.NewProfileHandler(userService, verifyService)
	uploadHandler := handlers.NewUploadHandler(uploadService)
	marginHandler := handlers.NewMarginHandler(marginService)
	simulationHandler := handlers.NewSimulationHandler(simService)
	eventHandler := handlers.NewEventHandler(eventService, hub)
	webhookHandler := handlers.NewWebhookHandler(webhookService, uploadService, marginService)

	// === Gin ===
	router := gin.Default()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(
		router,
		authHandler,
		profileHandler,
		uploadHandler,
		marginHandler,
		simulationHandler,
		eventHandler,
		webhookHandler,
	)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Servidor no ar em %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("Erro ao subir o servidor: ", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, Last-Event-ID")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
