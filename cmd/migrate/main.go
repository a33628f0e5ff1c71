// Command migrate applies the schema and default settings, then exits.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"testseries/internal/platform/config"
	"testseries/internal/platform/database"
)

func main() {
	skipSeed := flag.Bool("skip-seed", false, "apply the schema without inserting default settings")
	flag.Parse()

	cfg := config.Load()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("ERROR: migrating schema: %v", err)
	}
	log.Println("Schema is up to date.")

	if *skipSeed {
		return
	}
	if err := database.Seed(ctx, db); err != nil {
		log.Fatalf("ERROR: seeding defaults: %v", err)
	}
	log.Println("Default settings seeded.")
}
