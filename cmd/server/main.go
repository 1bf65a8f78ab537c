package main

import (
	"log"

	"github.com/joho/godotenv"

	"questlog/internal/server"
)

func main() {
	// Missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	defer srv.Close()

	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
