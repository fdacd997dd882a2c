package main

import (
	"log"

	"modmail-relay/config"
	"modmail-relay/internal/domain/thread"
	"modmail-relay/pkg/database"
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&thread.Thread{},
		&thread.Message{},
	); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	if err := database.ApplyRawMigrations(db, "migrations"); err != nil {
		log.Fatalf("Failed to apply raw migrations: %v", err)
	}

	log.Println("Migrations applied")
}
