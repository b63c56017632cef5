package main

import (
	"database/sql"
	"flag"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/resolvedesk/resolvedesk/internal/config"
)

func main() {
	schemaFile := flag.String("schema", "migrations/schema.sql", "path to the schema file to apply")
	flag.Parse()

	if err := config.LoadConfig(os.Getenv("RESOLVEDESK_CONFIG_PATH")); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if config.App.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable (or config) is required")
	}

	pg, err := sql.Open("postgres", config.App.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()

	if err := pg.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	schema, err := os.ReadFile(*schemaFile)
	if err != nil {
		log.Fatalf("Failed to read schema file %s: %v", *schemaFile, err)
	}

	log.Printf("Applying %s...", *schemaFile)
	if _, err := pg.Exec(string(schema)); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Schema applied")
}
