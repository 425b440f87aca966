package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"happycast/adapters/db"
	"happycast/internal/migration"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	url := flag.String("url", os.Getenv("DATABASE_URL"), "Database URL (default $DATABASE_URL)")
	driver := flag.String("driver", os.Getenv("DATABASE_DRIVER"), "postgres or sqlite (default inferred from the URL)")
	flag.Parse()

	if *url == "" {
		log.Fatal("Usage: migrate -url <database_url> [-driver postgres|sqlite]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, *driver, *url)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	runner := migration.NewRunner()
	log.Printf("Applying schema %s on %s", runner.Version(), conn.DriverName())
	if err := runner.Run(ctx, conn); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Migration complete")
}
