package main

import (
	"flag"
	"log"

	"github.com/oggyb/match-relay/internal/config"
	"github.com/oggyb/match-relay/internal/db"
)

func main() {
	minimal := flag.Bool("minimal", false, "seed the three-user fixture instead of fake profiles")
	flag.Parse()

	// Load configuration
	cfg := config.New()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}

	seed := db.SeedTestData
	if *minimal {
		seed = db.SeedMinimalTestData
	}
	if err := seed(database); err != nil {
		log.Fatalf("failed to seed: %v", err)
	}

	log.Printf("Seeding completed (driver=%s).", cfg.DB.Driver)
}
