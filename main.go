package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/macrogi/macrogi-server/internal/config"
	"github.com/macrogi/macrogi-server/internal/database"
	"github.com/macrogi/macrogi-server/internal/inference"
	"github.com/macrogi/macrogi-server/internal/logger"
	"github.com/macrogi/macrogi-server/internal/repository"
	"github.com/macrogi/macrogi-server/internal/server"
	"github.com/macrogi/macrogi-server/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.InitWithConfig(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	}); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	logger.Info("Starting MacroGI server...")

	db, err := database.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	// Repositories share the one connection opened at process start
	userRepo := repository.NewUserRepository(db)
	mealRepo := repository.NewMealRepository(db)
	glucoseRepo := repository.NewGlucoseRepository(db)

	inferenceClient := inference.NewClient(cfg.Inference)
	ocrClient := inference.NewOCRClient(cfg.Inference)

	profileService := services.NewProfileService(userRepo, mealRepo)
	insulinService := services.NewInsulinService(glucoseRepo, mealRepo, profileService)
	dashboardService := services.NewDashboardService(mealRepo)
	glucoseService := services.NewGlucoseService(glucoseRepo, mealRepo, inferenceClient)
	foodService := services.NewFoodService(mealRepo, inferenceClient, ocrClient)
	logger.Info("Services initialized successfully")

	srv := server.New(cfg.HTTP.Addr,
		profileService,
		insulinService,
		dashboardService,
		glucoseService,
		foodService,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("Server stopped with error", "error", err)
	}
	logger.Info("Server shut down cleanly")
}
