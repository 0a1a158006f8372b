package main

import (
	"context"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/dkaya/expbench/internal/adapters/docker"
	"github.com/dkaya/expbench/internal/adapters/git"
	httpadapter "github.com/dkaya/expbench/internal/adapters/http"
	"github.com/dkaya/expbench/internal/config"
	"github.com/dkaya/expbench/internal/core/services"
)

func main() {
	// .env is optional; real settings come from the config file.
	_ = godotenv.Load()

	cfgPath := os.Getenv("EXPBENCH_CONFIG")
	if cfgPath == "" {
		cfgPath = "experiments.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 1. Initialize Adapters (Infrastructure)
	runtime, err := docker.NewAdapter()
	if err != nil {
		log.Fatalf("Failed to initialize Docker adapter: %v", err)
	}
	if err := runtime.Ping(context.Background()); err != nil {
		log.Printf("Warning: %v", err)
	}
	fetcher := git.NewFetcher()

	// 2. Core services
	registry := services.NewRegistry(cfg.ExperimentsPath, cfg.Experiments)
	controller := services.NewController(registry, runtime, fetcher)
	hub := services.NewLogHub(runtime)
	packager := services.NewPackager(registry)

	// 3. HTTP handlers
	experiments := httpadapter.NewExperimentHandler(registry, controller, packager)
	logs := httpadapter.NewLogsHandler(hub, cfg.LogSessionLimit)

	// 4. Setup Framework (Fiber)
	app := fiber.New()
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(logger.New())

	// 5. Define Routes
	app.Get("/experiments", experiments.ListExperiments)
	app.Post("/build", experiments.Build)
	app.Post("/run", experiments.Run)
	app.Post("/remove", experiments.Remove)
	app.Post("/fetch", experiments.Fetch)
	app.Get("/status/:experiment_name", experiments.Status)
	app.Get("/artifacts/:experiment_name", experiments.Artifacts)

	app.Use("/ws", logs.Upgrade)
	app.Get("/ws/logs/container/:container_id", websocket.New(logs.Stream))

	// 6. Start Server
	log.Printf("Server starting on %s", cfg.ListenAddr)
	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
