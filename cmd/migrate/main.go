package main

import (
	"log"
	"os"

	"github.com/palisade-io/palisade/internal/storage"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		if err := storage.Migrate(dbURL); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations applied successfully")
	case "down":
		if err := storage.MigrateDown(dbURL); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		log.Println("Rolled back one migration")
	case "version":
		version, dirty, err := storage.MigrateVersion(dbURL)
		if err != nil {
			log.Fatalf("Version lookup failed: %v", err)
		}
		if version == 0 {
			log.Println("No migrations applied")
		} else if dirty {
			log.Printf("Schema at version %d (dirty)", version)
		} else {
			log.Printf("Schema at version %d", version)
		}
	default:
		log.Fatalf("Unknown command %q (want up, down, or version)", command)
	}
}
