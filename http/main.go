package main

import (
	"log"

	"github.com/cardforge/mint-worker/config"
	"github.com/cardforge/mint-worker/http/controller"
	routes "github.com/cardforge/mint-worker/http/route"
	infraPkg "github.com/cardforge/mint-worker/infra"
	"github.com/cardforge/mint-worker/repository"
	"github.com/joho/godotenv"
)

func main() {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra, cfg.EnvConfig)

	ctrl := controller.NewController(cfg, infra, repo)

	router := routes.SetupRouter(ctrl)

	log.Println("HTTP Server started on :8080")
	if err := router.Run(":8080"); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
