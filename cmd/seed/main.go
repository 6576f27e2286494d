// Command seed loads a sample active event and a few students so a
// fresh install has something to check in against.
package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"pointtrack/internal/config"
	"pointtrack/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db not reachable: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	if _, err := db.Client.ExecContext(ctx, `
		INSERT INTO events (name, description, date, is_active)
		SELECT $1, $2, $3, TRUE
		WHERE NOT EXISTS (SELECT 1 FROM events WHERE name = $1)
	`, "Sample TA Session", "First TA session of the semester", "2025-01-21"); err != nil {
		log.Fatalf("seed event: %v", err)
	}

	students := map[string]string{
		"123456789": "John Doe",
		"987654321": "Jane Smith",
		"456789123": "Bob Johnson",
	}
	for id, name := range students {
		if _, err := db.Client.ExecContext(ctx, `
			INSERT INTO students (student_id, name)
			VALUES ($1, $2)
			ON CONFLICT (student_id) DO NOTHING
		`, id, name); err != nil {
			log.Fatalf("seed student %s: %v", id, err)
		}
	}

	log.Println("Sample data loaded")
}
